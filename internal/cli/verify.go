package cli

import (
	"context"
	"fmt"
	"io"

	"fipabet-seal-service/internal/app"
	"fipabet-seal-service/internal/config"
	"fipabet-seal-service/internal/domain"
	pgstore "fipabet-seal-service/internal/infra/postgres"
	"fipabet-seal-service/internal/logging"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/spf13/cobra"
)

// auditor is the principal used for offline audits.
var auditor = domain.Principal{ID: "cli-auditor", Username: "cli", IsAdmin: true}

// NewVerifyCmd recomputes the seals of every stored answer for a question.
func NewVerifyCmd(configPath *string) *cobra.Command {
	var questionID int64
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Recompute answer seals for a question and report tampering",
		RunE: func(cmd *cobra.Command, args []string) error {
			if questionID <= 0 {
				return fmt.Errorf("--question must be a positive id")
			}
			return runVerify(cmd.Context(), *configPath, questionID, cmd.OutOrStdout())
		},
	}
	cmd.Flags().Int64Var(&questionID, "question", 0, "question id to audit")
	return cmd
}

func runVerify(ctx context.Context, configPath string, questionID int64, out io.Writer) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.Postgres.URL == "" {
		return fmt.Errorf("postgres url not configured")
	}
	log, err := logging.New(cfg.Env)
	if err != nil {
		return err
	}
	defer log.Sync()

	pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()

	questions := app.NewQuestionStore(pgstore.NewQuestionRepository(pool))
	ledger := app.NewReadOnlyLedger(questions, pgstore.NewAnswerRepository(pool), log)
	return auditQuestion(ctx, ledger, questionID, out)
}

func auditQuestion(ctx context.Context, ledger *app.AnswerLedger, questionID int64, out io.Writer) error {
	entries, err := ledger.Audit(ctx, auditor, questionID)
	if err != nil {
		return err
	}
	broken := 0
	for _, e := range entries {
		status := "ok"
		if !e.Intact {
			status = "TAMPERED"
			broken++
		}
		fmt.Fprintf(out, "%d\t%s\t%s\t%s\n", e.ID, e.UserID, e.SealHash, status)
	}
	fmt.Fprintf(out, "%d answers checked, %d tampered\n", len(entries), broken)
	if broken > 0 {
		return fmt.Errorf("%d answers failed seal verification", broken)
	}
	return nil
}

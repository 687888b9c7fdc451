package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"fipabet-seal-service/internal/app"
	"fipabet-seal-service/internal/config"
	"fipabet-seal-service/internal/identity"
	"fipabet-seal-service/internal/infra/memory"
	pgstore "fipabet-seal-service/internal/infra/postgres"
	rediscache "fipabet-seal-service/internal/infra/redis"
	"fipabet-seal-service/internal/logging"
	transport "fipabet-seal-service/internal/transport/http"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const devJWTSecret = "qa-seal-dev-secret"

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the Q&A server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

// backends groups the storage choices made from config.
type backends struct {
	questions app.QuestionRepository
	answers   app.AnswerRepository
	locker    app.KeyLocker
	users     identity.UserRepository
	close     func()
}

func openBackends(ctx context.Context, cfg config.Config, log *zap.Logger) (backends, error) {
	b := backends{close: func() {}}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, log); err != nil {
			return b, err
		}
		var err error
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return b, fmt.Errorf("connect postgres: %w", err)
		}
		b.questions = pgstore.NewQuestionRepository(pool)
		b.answers = pgstore.NewAnswerRepository(pool)
		b.users = pgstore.NewUserRepository(pool)
		log.Info("using postgres storage")
	} else {
		b.questions = memory.NewQuestionRepository()
		b.answers = memory.NewAnswerRepository()
		b.users = memory.NewUserRepository()
		log.Warn("postgres url not configured, answers are kept in memory only")
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		cacheTTL := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)
		lockTTL := config.TTLDuration(cfg.Ledger.LockTTL, 5*time.Second)
		b.questions = rediscache.NewQuestionCache(redisClient, b.questions, cacheTTL)
		b.locker = rediscache.NewKeyLocker(redisClient, lockTTL)
		log.Info("using redis question cache and locks", zap.String("addr", cfg.Redis.Addr))
	} else {
		b.locker = memory.NewKeyLocker()
	}

	b.close = func() {
		if redisClient != nil {
			_ = redisClient.Close()
		}
		if pool != nil {
			pool.Close()
		}
	}
	return b, nil
}

func identityConfig(cfg config.Config, log *zap.Logger) (identity.Config, error) {
	secret := cfg.Auth.JWTSecret
	if secret == "" {
		if cfg.Env == "production" {
			return identity.Config{}, errors.New("auth.jwt_secret is required in production")
		}
		log.Warn("auth.jwt_secret not set, using development secret")
		secret = devJWTSecret
	}
	return identity.Config{
		Secret:      []byte(secret),
		TokenTTL:    config.TTLDuration(cfg.Auth.TokenTTL, 7*24*time.Hour),
		AdminInvite: cfg.Auth.AdminInvite,
	}, nil
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log, err := logging.New(cfg.Env)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	b, err := openBackends(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer b.close()

	idCfg, err := identityConfig(cfg, log)
	if err != nil {
		return err
	}
	accounts := identity.NewService(b.users, idCfg)
	questions := app.NewQuestionStore(b.questions)
	ledger := app.NewAnswerLedger(questions, b.answers, b.locker, log.Named("ledger"))
	service := app.NewService(accounts, questions, ledger, log.Named("service"))
	handler := transport.NewHandler(service, accounts, log.Named("http"), cfg.Server.AllowedOrigin)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      handler.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting q&a service", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

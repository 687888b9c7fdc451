package http

import (
	"encoding/json"
	"net/http"

	"fipabet-seal-service/internal/domain"
	"go.uber.org/zap"
)

type errorPayload struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

var statusByKind = map[string]int{
	domain.KindAuthentication: http.StatusUnauthorized,
	domain.KindAuthorization:  http.StatusForbidden,
	domain.KindNotFound:       http.StatusNotFound,
	domain.KindValidation:     http.StatusBadRequest,
	domain.KindConflict:       http.StatusConflict,
	domain.KindInternal:       http.StatusInternalServerError,
}

// writeError never exposes internal error detail to the client.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	kind := domain.KindOf(err)
	msg := err.Error()
	if kind == domain.KindInternal {
		h.log.Error("request failed", zap.Error(err))
		msg = "internal error, please retry"
	}
	writeJSON(w, statusByKind[kind], errorPayload{Error: msg, Kind: kind})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

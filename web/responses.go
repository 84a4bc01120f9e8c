package web

import (
	"log/slog"
	"net/http"

	"github.com/disgoorg/json"
	"github.com/lmittmann/tint"

	"sticker-bot/errs"
)

type errorResponse struct {
	Error string `json:"error"`
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("web: error while encoding a response", tint.Err(err))
	}
}

// writeError maps domain codes to statuses. Foreign errors are logged and
// masked as a plain 500.
func writeError(w http.ResponseWriter, err error) {
	status := errs.HTTPStatus(err)
	message := err.Error()
	if status == http.StatusInternalServerError || status == http.StatusBadGateway {
		slog.Error("web: request failed", tint.Err(err))
		message = "internal server error"
	}
	respondJSON(w, status, errorResponse{Error: message})
}

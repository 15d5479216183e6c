package transport

import (
	"encoding/json"
	"net/http"

	"chatori-be/internal/logger"

	"go.uber.org/zap"
)

type MessageResponse struct {
	Message string `json:"message"`
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.L().Warn("failed to encode response", zap.Error(err))
	}
}

func WriteMessage(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, MessageResponse{Message: msg})
}

// WriteError maps err to a status and writes {"message": ...}. Server errors
// are logged and replaced with a generic message.
func WriteError(w http.ResponseWriter, r *http.Request, err error, maps ...StatusMap) {
	status := StatusOf(err, maps...)
	if status >= http.StatusInternalServerError {
		logger.FromCtx(r.Context()).Error("request failed",
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		WriteMessage(w, status, "internal server error")
		return
	}
	WriteMessage(w, status, err.Error())
}

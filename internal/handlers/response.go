package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"isa-chat/internal/chat"
	"isa-chat/internal/models"
)

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func errorResp(code, message string, r *http.Request) models.ErrorResponse {
	return models.ErrorResponse{
		Error: models.APIError{
			Code:      code,
			Message:   message,
			RequestID: r.Header.Get("X-Request-ID"),
		},
	}
}

func handleChatError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, chat.ErrEmptyPrompt):
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Prompt is required", r))
	case errors.Is(err, chat.ErrBusy):
		writeJSON(w, http.StatusConflict, errorResp("BUSY", "A previous prompt is still being answered", r))
	default:
		log.Printf("Chat error: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "An unexpected error occurred", r))
	}
}

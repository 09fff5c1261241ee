package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"isa-chat/internal/models"
)

// chatController is the part of chat.Controller the handlers drive.
type chatController interface {
	Snapshot() models.Snapshot
	History() []models.HistoryEntry
	SetPrompt(text string)
	SubmitPrompt(ctx context.Context, text string) error
}

type ChatHandler struct {
	chat chatController
}

func NewChatHandler(chat chatController) *ChatHandler {
	return &ChatHandler{chat: chat}
}

// GetState returns the current prompt, response, loading flag and history.
func (h *ChatHandler) GetState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.chat.Snapshot())
}

// Submit sends a prompt and answers with the resulting state. A failed
// generation is still a 200: the state carries the error text and kind.
func (h *ChatHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	if strings.TrimSpace(req.Prompt) == "" {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Prompt is required", r))
		return
	}

	if err := h.chat.SubmitPrompt(r.Context(), req.Prompt); err != nil {
		handleChatError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, h.chat.Snapshot())
}

// UpdatePrompt stores the text currently typed into the input.
func (h *ChatHandler) UpdatePrompt(w http.ResponseWriter, r *http.Request) {
	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	h.chat.SetPrompt(req.Prompt)
	writeJSON(w, http.StatusOK, h.chat.Snapshot())
}

func (h *ChatHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	history := h.chat.History()
	writeJSON(w, http.StatusOK, models.HistoryResponse{
		History: history,
		Total:   len(history),
	})
}

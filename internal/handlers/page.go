package handlers

import (
	"errors"
	"log"
	"net/http"

	"isa-chat/internal/chat"
	"isa-chat/internal/web"
)

// PageHandler serves the HTML page and its no-JavaScript form fallback.
type PageHandler struct {
	chat     chatController
	renderer *web.Renderer
}

func NewPageHandler(chat chatController, renderer *web.Renderer) *PageHandler {
	return &PageHandler{chat: chat, renderer: renderer}
}

func (h *PageHandler) Index(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.renderer.Render(w, h.chat.Snapshot()); err != nil {
		log.Printf("Failed to render page: %v", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// SubmitForm handles a plain form post and redirects back to the page.
// Blank or concurrent submits leave the state untouched.
func (h *PageHandler) SubmitForm(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	err := h.chat.SubmitPrompt(r.Context(), r.PostFormValue("prompt"))
	if err != nil && !errors.Is(err, chat.ErrEmptyPrompt) && !errors.Is(err, chat.ErrBusy) {
		log.Printf("Form submit failed: %v", err)
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

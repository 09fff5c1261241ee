// Package chat holds the application controller: the single owner of the
// prompt, the latest response, the loading flag and the history list.
package chat

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"

	"isa-chat/internal/models"
	"isa-chat/internal/services"
)

// FailureMessage replaces the response whenever generation fails.
const FailureMessage = "Произошла ошибка. Проверь API-ключ и регион."

var (
	ErrEmptyPrompt = errors.New("prompt is empty")
	ErrBusy        = errors.New("a prompt is already being answered")
)

// Generator turns a prompt into generated text.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// HistoryStore is the persisted slot holding the history list.
type HistoryStore interface {
	Load(ctx context.Context) []models.HistoryEntry
	Save(ctx context.Context, entries []models.HistoryEntry) error
}

type Option func(*Controller)

// WithHistoryLimit keeps only the newest n entries. Zero means no limit.
func WithHistoryLimit(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.historyLimit = n
		}
	}
}

type Controller struct {
	gen          Generator
	store        HistoryStore
	historyLimit int

	mu        sync.Mutex
	prompt    string
	response  string
	loading   bool
	errorKind services.ErrorKind
	history   []models.HistoryEntry
	listeners []func(models.Snapshot)
}

func New(gen Generator, store HistoryStore, opts ...Option) *Controller {
	c := &Controller{
		gen:     gen,
		store:   store,
		history: []models.HistoryEntry{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start rehydrates the history from the store.
func (c *Controller) Start(ctx context.Context) {
	entries := c.store.Load(ctx)

	c.mu.Lock()
	c.history = c.truncate(entries)
	snap := c.snapshotLocked()
	c.mu.Unlock()

	log.Printf("Chat history loaded (%d entries)", len(snap.History))
	c.publish(snap)
}

// OnChange registers fn to receive a snapshot after every state change.
func (c *Controller) OnChange(fn func(models.Snapshot)) {
	c.mu.Lock()
	c.listeners = append(c.listeners, fn)
	c.mu.Unlock()
}

// SetPrompt replaces the text currently typed into the input.
func (c *Controller) SetPrompt(text string) {
	c.mu.Lock()
	c.prompt = text
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.publish(snap)
}

// Submit sends the current prompt.
func (c *Controller) Submit(ctx context.Context) error {
	return c.submit(ctx, nil)
}

// SubmitPrompt sets the prompt to text and submits it.
func (c *Controller) SubmitPrompt(ctx context.Context, text string) error {
	return c.submit(ctx, &text)
}

func (c *Controller) submit(ctx context.Context, text *string) error {
	c.mu.Lock()
	if c.loading {
		c.mu.Unlock()
		return ErrBusy
	}

	prompt := c.prompt
	if text != nil {
		prompt = *text
	}
	if strings.TrimSpace(prompt) == "" {
		c.mu.Unlock()
		return ErrEmptyPrompt
	}

	c.prompt = prompt
	c.loading = true
	c.response = ""
	c.errorKind = ""
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.publish(snap)

	// The call belongs to the session, not to the request that started it:
	// a closed tab must not abort it. GEMINI_TIMEOUT still bounds it.
	ctx = context.WithoutCancel(ctx)

	reply, err := c.gen.Generate(ctx, prompt)
	if err != nil {
		log.Printf("Gemini request failed: %v", err)
		c.finish(FailureMessage, services.KindOf(err))
		return nil
	}

	c.mu.Lock()
	c.response = reply
	updated := make([]models.HistoryEntry, 0, len(c.history)+1)
	updated = append(updated, models.HistoryEntry{Prompt: prompt, Response: reply})
	updated = append(updated, c.history...)
	c.history = c.truncate(updated)
	saved := append([]models.HistoryEntry{}, c.history...)
	c.mu.Unlock()

	// loading stays set until the write lands, so saves never overlap.
	if err := c.store.Save(ctx, saved); err != nil {
		log.Printf("Failed to persist chat history: %v", err)
	}

	c.finish(reply, "")
	return nil
}

// finish moves the session back to idle with the given response.
func (c *Controller) finish(response string, kind services.ErrorKind) {
	c.mu.Lock()
	c.response = response
	c.errorKind = kind
	c.prompt = ""
	c.loading = false
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.publish(snap)
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() models.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// History returns a copy of the history list, newest first.
func (c *Controller) History() []models.HistoryEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.HistoryEntry{}, c.history...)
}

func (c *Controller) snapshotLocked() models.Snapshot {
	return models.Snapshot{
		Prompt:    c.prompt,
		Response:  c.response,
		Loading:   c.loading,
		ErrorKind: string(c.errorKind),
		History:   append([]models.HistoryEntry{}, c.history...),
	}
}

func (c *Controller) truncate(entries []models.HistoryEntry) []models.HistoryEntry {
	if entries == nil {
		return []models.HistoryEntry{}
	}
	if c.historyLimit > 0 && len(entries) > c.historyLimit {
		return entries[:c.historyLimit:c.historyLimit]
	}
	return entries
}

func (c *Controller) publish(snap models.Snapshot) {
	c.mu.Lock()
	listeners := append([]func(models.Snapshot){}, c.listeners...)
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(snap)
	}
}

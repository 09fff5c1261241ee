package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"isa-chat/internal/models"
)

// DefaultHistoryKey is the slot the chat history lives under.
const DefaultHistoryKey = "geminiHistory"

// HistoryStore persists the whole history list under a single key.
//
// Load never fails the caller: a missing, unreadable or malformed slot yields
// an empty list. Save replaces the stored list in full.
type HistoryStore interface {
	Load(ctx context.Context) []models.HistoryEntry
	Save(ctx context.Context, entries []models.HistoryEntry) error
}

func decodeHistory(raw []byte) ([]models.HistoryEntry, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return []models.HistoryEntry{}, nil
	}

	var entries []models.HistoryEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return []models.HistoryEntry{}, fmt.Errorf("failed to decode history: %w", err)
	}
	if entries == nil {
		entries = []models.HistoryEntry{}
	}
	return entries, nil
}

func encodeHistory(entries []models.HistoryEntry) ([]byte, error) {
	if entries == nil {
		entries = []models.HistoryEntry{}
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return nil, fmt.Errorf("failed to encode history: %w", err)
	}
	return data, nil
}

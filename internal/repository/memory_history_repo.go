package repository

import (
	"context"
	"log"
	"sync"

	"isa-chat/internal/models"
)

// MemoryHistoryRepo holds slots in process memory. Used for ephemeral runs.
type MemoryHistoryRepo struct {
	mu    sync.RWMutex
	key   string
	slots map[string]string
}

func NewMemoryHistoryRepo(key string) *MemoryHistoryRepo {
	if key == "" {
		key = DefaultHistoryKey
	}
	return &MemoryHistoryRepo{key: key, slots: make(map[string]string)}
}

func (r *MemoryHistoryRepo) Load(ctx context.Context) []models.HistoryEntry {
	r.mu.RLock()
	raw := r.slots[r.key]
	r.mu.RUnlock()

	entries, err := decodeHistory([]byte(raw))
	if err != nil {
		log.Printf("In-memory history %q is corrupt, starting empty: %v", r.key, err)
	}
	return entries
}

func (r *MemoryHistoryRepo) Save(ctx context.Context, entries []models.HistoryEntry) error {
	data, err := encodeHistory(entries)
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.slots[r.key] = string(data)
	r.mu.Unlock()
	return nil
}

// Raw returns the serialized slot as stored.
func (r *MemoryHistoryRepo) Raw() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.slots[r.key]
}

// SetRaw replaces the serialized slot without validation.
func (r *MemoryHistoryRepo) SetRaw(raw string) {
	r.mu.Lock()
	r.slots[r.key] = raw
	r.mu.Unlock()
}

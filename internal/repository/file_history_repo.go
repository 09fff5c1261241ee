package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sync"

	"isa-chat/internal/models"
)

// FileHistoryRepo keeps a JSON object of key -> serialized list on disk.
type FileHistoryRepo struct {
	mu   sync.Mutex
	path string
	key  string
}

func NewFileHistoryRepo(path, key string) *FileHistoryRepo {
	if key == "" {
		key = DefaultHistoryKey
	}
	return &FileHistoryRepo{path: path, key: key}
}

func (r *FileHistoryRepo) Load(ctx context.Context) []models.HistoryEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	slots, err := r.readSlots()
	if err != nil {
		log.Printf("History file %s unreadable, starting empty: %v", r.path, err)
		return []models.HistoryEntry{}
	}

	entries, err := decodeHistory([]byte(slots[r.key]))
	if err != nil {
		log.Printf("History slot %q in %s is corrupt, starting empty: %v", r.key, r.path, err)
	}
	return entries
}

func (r *FileHistoryRepo) Save(ctx context.Context, entries []models.HistoryEntry) error {
	data, err := encodeHistory(entries)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	slots, err := r.readSlots()
	if err != nil {
		// Other slots are unreadable anyway; rewrite the file from scratch.
		slots = map[string]string{}
	}
	slots[r.key] = string(data)

	content, err := json.MarshalIndent(slots, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode history file: %w", err)
	}

	return writeFileAtomic(r.path, content)
}

func (r *FileHistoryRepo) readSlots() (map[string]string, error) {
	content, err := os.ReadFile(r.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read history file: %w", err)
	}

	slots := map[string]string{}
	if len(content) == 0 {
		return slots, nil
	}
	if err := json.Unmarshal(content, &slots); err != nil {
		return nil, fmt.Errorf("failed to parse history file: %w", err)
	}
	if slots == nil {
		slots = map[string]string{}
	}
	return slots, nil
}

func writeFileAtomic(path string, content []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create history directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp history file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write history file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close history file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace history file: %w", err)
	}
	return nil
}

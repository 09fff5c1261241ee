package repository

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"isa-chat/internal/models"
)

// PostgresHistoryRepo stores the serialized list in the kv_store table.
type PostgresHistoryRepo struct {
	pool *pgxpool.Pool
	key  string
}

func NewPostgresHistoryRepo(pool *pgxpool.Pool, key string) *PostgresHistoryRepo {
	if key == "" {
		key = DefaultHistoryKey
	}
	return &PostgresHistoryRepo{pool: pool, key: key}
}

func (r *PostgresHistoryRepo) Load(ctx context.Context) []models.HistoryEntry {
	var value string
	err := r.pool.QueryRow(ctx, `SELECT value FROM kv_store WHERE key = $1`, r.key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return []models.HistoryEntry{}
	}
	if err != nil {
		log.Printf("Postgres history read for %q failed, starting empty: %v", r.key, err)
		return []models.HistoryEntry{}
	}

	entries, err := decodeHistory([]byte(value))
	if err != nil {
		log.Printf("Postgres history %q is corrupt, starting empty: %v", r.key, err)
	}
	return entries
}

func (r *PostgresHistoryRepo) Save(ctx context.Context, entries []models.HistoryEntry) error {
	data, err := encodeHistory(entries)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO kv_store (key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE
		SET value = EXCLUDED.value,
			updated_at = NOW()
	`
	if _, err := r.pool.Exec(ctx, query, r.key, string(data)); err != nil {
		return fmt.Errorf("failed to save history to postgres: %w", err)
	}
	return nil
}

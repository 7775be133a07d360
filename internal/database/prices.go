package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/urielssan/subite/internal/models"
)

// Price returns the stored value for key, or fallback when none is stored.
func (db *DB) Price(ctx context.Context, key string, fallback float64) (float64, error) {
	var value float64
	err := db.QueryRowContext(ctx, `SELECT value FROM price_config WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return fallback, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get price %s: %w", key, err)
	}
	return value, nil
}

// ListPrices returns the known keys in display order with their effective
// values, followed by any other stored keys sorted by name.
func (db *DB) ListPrices(ctx context.Context) ([]models.PriceEntry, error) {
	rows, err := db.QueryContext(ctx, `SELECT key, value FROM price_config`)
	if err != nil {
		return nil, fmt.Errorf("failed to list prices: %w", err)
	}
	defer rows.Close()

	stored := make(map[string]float64)
	for rows.Next() {
		var key string
		var value float64
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan price: %w", err)
		}
		stored[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	entries := make([]models.PriceEntry, 0, len(models.PriceKeys)+len(stored))
	known := make(map[string]bool, len(models.PriceKeys))
	for _, key := range models.PriceKeys {
		known[key] = true
		value, ok := stored[key]
		if !ok {
			value = models.PriceDefaults[key]
		}
		entries = append(entries, models.PriceEntry{Key: key, Value: value, Stored: ok})
	}

	var extra []string
	for key := range stored {
		if !known[key] {
			extra = append(extra, key)
		}
	}
	sort.Strings(extra)
	for _, key := range extra {
		entries = append(entries, models.PriceEntry{Key: key, Value: stored[key], Stored: true})
	}
	return entries, nil
}

// UpsertPrices writes every value in one transaction.
func (db *DB) UpsertPrices(ctx context.Context, values map[string]float64) error {
	now := time.Now()
	return db.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO price_config (key, value, updated_at) VALUES (?, ?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`)
		if err != nil {
			return fmt.Errorf("failed to prepare price upsert: %w", err)
		}
		defer stmt.Close()

		for key, value := range values {
			if _, err := stmt.ExecContext(ctx, key, value, now); err != nil {
				return fmt.Errorf("failed to upsert price %s: %w", key, err)
			}
		}
		return nil
	})
}

// SeedPrices inserts values whose keys are not stored yet and reports how
// many were added. Existing keys are never overwritten.
func (db *DB) SeedPrices(ctx context.Context, values map[string]float64) (int, error) {
	inserted := 0
	now := time.Now()
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		for key, value := range values {
			res, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO price_config (key, value, updated_at) VALUES (?, ?, ?)`, key, value, now)
			if err != nil {
				return fmt.Errorf("failed to seed price %s: %w", key, err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			inserted += int(n)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

// LoadPriceSeed reads a JSON object of key -> number.
func LoadPriceSeed(path string) (map[string]float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read price seed: %w", err)
	}
	var values map[string]float64
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("failed to decode price seed %s: %w", path, err)
	}
	return values, nil
}

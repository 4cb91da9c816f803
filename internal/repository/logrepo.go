package repository

import (
	"context"

	"github.com/and161185/doc-keeper/internal/model"
)

// LogRepository is the append-only Action Log.
type LogRepository interface {
	// Append stores one entry. Entries are never updated or deleted.
	Append(ctx context.Context, e model.LogEntry) error
	// Tail returns the newest entries, timestamp descending.
	Tail(ctx context.Context, limit int) ([]model.LogEntry, error)
}

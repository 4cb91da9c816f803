package sqlite

import (
	"context"
	"fmt"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/doc-keeper/internal/model"
)

// LogRepo implements LogRepository on SQLite.
type LogRepo struct{ db *DB }

// NewLogRepo constructs an action-log repository.
func NewLogRepo(db *DB) *LogRepo { return &LogRepo{db: db} }

// Append inserts one log row.
func (r *LogRepo) Append(ctx context.Context, e model.LogEntry) error {
	const q = `INSERT INTO logs (id, timestamp, user, action, file) VALUES (?, ?, ?, ?, ?)`
	_, err := r.db.SQL.ExecContext(ctx, q, e.ID.String(), formatTS(e.Timestamp), e.User, string(e.Action), e.File)
	return err
}

// Tail returns the newest rows, timestamp descending.
func (r *LogRepo) Tail(ctx context.Context, limit int) ([]model.LogEntry, error) {
	const q = `SELECT id, timestamp, user, action, file FROM logs ORDER BY timestamp DESC LIMIT ?`
	rows, err := r.db.SQL.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.LogEntry{}
	for rows.Next() {
		var (
			e              model.LogEntry
			id, ts, action string
		)
		if err := rows.Scan(&id, &ts, &e.User, &action, &e.File); err != nil {
			return nil, err
		}
		if e.ID, err = uuid.FromString(id); err != nil {
			return nil, fmt.Errorf("log id %q: %w", id, err)
		}
		if e.Timestamp, err = parseTS(ts); err != nil {
			return nil, fmt.Errorf("log %s timestamp: %w", id, err)
		}
		e.Action = model.Action(action)
		out = append(out, e)
	}
	return out, rows.Err()
}

package postgres

import (
	"context"

	"github.com/and161185/doc-keeper/internal/model"
)

// LogRepo implements LogRepository using PostgreSQL.
type LogRepo struct{ db *DB }

// NewLogRepo constructs an action-log repository.
func NewLogRepo(db *DB) *LogRepo { return &LogRepo{db: db} }

// Append inserts one log row.
func (r *LogRepo) Append(ctx context.Context, e model.LogEntry) error {
	const q = `
INSERT INTO logs (id, "timestamp", "user", action, file)
VALUES ($1, $2, $3, $4, $5)`
	_, err := r.db.Pool.Exec(ctx, q, e.ID, e.Timestamp, e.User, string(e.Action), e.File)
	return err
}

// Tail returns the newest rows, timestamp descending.
func (r *LogRepo) Tail(ctx context.Context, limit int) ([]model.LogEntry, error) {
	const q = `
SELECT id, "timestamp", "user", action, file
FROM logs ORDER BY "timestamp" DESC LIMIT $1`
	rows, err := r.db.Pool.Query(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.LogEntry{}
	for rows.Next() {
		var (
			e      model.LogEntry
			action string
		)
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.User, &action, &e.File); err != nil {
			return nil, err
		}
		e.Action = model.Action(action)
		out = append(out, e)
	}
	return out, rows.Err()
}

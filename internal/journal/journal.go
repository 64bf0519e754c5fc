// Package journal persists accepted deals in SQLite.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/glebarez/go-sqlite"
	"github.com/sugawarayuuta/sonnet"

	"btrader/internal/arbitrage"
)

type Journal struct {
	db  *sql.DB
	now func() time.Time
}

// Open creates or opens the journal at path with WAL mode enabled.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	// single writer
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma %s: %w", pragma, err)
		}
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS deals (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			relationship TEXT NOT NULL,
			profit REAL NOT NULL,
			ts REAL NOT NULL,
			recorded_at INTEGER NOT NULL,
			actions BLOB NOT NULL
		);
		CREATE INDEX IF NOT EXISTS deals_relationship_id ON deals (relationship, id);
	`)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create deals table: %w", err)
	}
	return &Journal{db: db, now: time.Now}, nil
}

func (j *Journal) Name() string { return "journal" }

// Record appends one deal.
func (j *Journal) Record(ctx context.Context, d arbitrage.Deal) error {
	actions, err := sonnet.Marshal(d.Actions)
	if err != nil {
		return fmt.Errorf("failed to marshal actions: %w", err)
	}
	_, err = j.db.ExecContext(ctx,
		"INSERT INTO deals (relationship, profit, ts, recorded_at, actions) VALUES (?, ?, ?, ?, ?)",
		d.Relationship, d.Profit, d.Timestamp, j.now().UnixMilli(), actions,
	)
	if err != nil {
		return fmt.Errorf("failed to insert deal: %w", err)
	}
	return nil
}

// Recent returns up to limit deals of a relationship, newest first. An empty
// relationship matches all.
func (j *Journal) Recent(ctx context.Context, relationship string, limit int) ([]arbitrage.Deal, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := j.db.QueryContext(ctx, `
		SELECT relationship, profit, ts, actions FROM deals
		WHERE ? = '' OR relationship = ?
		ORDER BY id DESC LIMIT ?`,
		relationship, relationship, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query deals: %w", err)
	}
	defer rows.Close()

	var out []arbitrage.Deal
	for rows.Next() {
		var (
			d       arbitrage.Deal
			actions []byte
		)
		if err := rows.Scan(&d.Relationship, &d.Profit, &d.Timestamp, &actions); err != nil {
			return nil, fmt.Errorf("failed to scan deal: %w", err)
		}
		if err := sonnet.Unmarshal(actions, &d.Actions); err != nil {
			return nil, fmt.Errorf("failed to decode actions: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Close closes the database connection.
func (j *Journal) Close() error {
	return j.db.Close()
}

package state

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/melih-ucgun/pldownloader/internal/dispatch"
)

// Record is one completed operation.
type Record struct {
	ID        int64
	Op        string
	FileName  string
	Location  string
	Error     string
	CreatedAt time.Time
}

// History stores completed operations in SQLite. It implements dispatch.Observer.
type History struct {
	db     *sql.DB
	owned  bool
	logger *slog.Logger
}

// NewHistory prepares the schema on an existing connection.
func NewHistory(db *sql.DB, logger *slog.Logger) (*History, error) {
	query := `CREATE TABLE IF NOT EXISTS acquisitions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	op TEXT NOT NULL,
	file_name TEXT,
	location TEXT,
	error TEXT,
	created_at DATETIME NOT NULL
);`
	if _, err := db.Exec(query); err != nil {
		return nil, fmt.Errorf("failed to create table: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &History{db: db, logger: logger}, nil
}

// Open opens (or creates) the history database at path.
func Open(path string, logger *slog.Logger) (*History, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set up history: %w", err)
	}

	h, err := NewHistory(db, logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	h.owned = true
	return h, nil
}

// Close closes the database if Open created it.
func (h *History) Close() error {
	if h.owned {
		return h.db.Close()
	}
	return nil
}

func (h *History) Record(ctx context.Context, ev dispatch.Event) error {
	var errText string
	if ev.Err != nil {
		errText = ev.Err.Error()
	}
	created := ev.Started
	if created.IsZero() {
		created = time.Now()
	}

	_, err := h.db.ExecContext(ctx,
		"INSERT INTO acquisitions (op, file_name, location, error, created_at) VALUES (?, ?, ?, ?, ?);",
		ev.Op, ev.FileName, ev.Location, errText, created.UTC(),
	)
	return err
}

// Observe records ev; failures are logged, never returned to the operation.
func (h *History) Observe(ctx context.Context, ev dispatch.Event) {
	if err := h.Record(ctx, ev); err != nil {
		h.logger.Warn("Failed to record history", "op", ev.Op, "error", err)
	}
}

// List returns up to limit records, newest first. limit <= 0 returns all.
func (h *History) List(ctx context.Context, limit int) ([]Record, error) {
	query := "SELECT id, op, file_name, location, error, created_at FROM acquisitions ORDER BY created_at DESC, id DESC"
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := h.db.QueryContext(ctx, query+";", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		var fileName, location, errText sql.NullString
		if err := rows.Scan(&r.ID, &r.Op, &fileName, &location, &errText, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.FileName, r.Location, r.Error = fileName.String, location.String, errText.String
		records = append(records, r)
	}
	return records, rows.Err()
}

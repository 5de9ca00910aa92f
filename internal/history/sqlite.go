package history

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/fluxgraph/fluxgraph/pkg/api"
)

// SQLiteStore journals history events in SQLite.
type SQLiteStore struct {
	db *sql.DB
}

var _ api.HistoryStore = (*SQLiteStore)(nil)

// NewSQLiteStore creates the schema if needed and returns a store backed by
// db. The caller owns the *sql.DB (typically opened with the modernc.org
// "sqlite" driver).
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS run_history (
			id TEXT PRIMARY KEY,
			workflow_id TEXT NOT NULL,
			at INTEGER NOT NULL,
			type TEXT NOT NULL,
			node_id TEXT NOT NULL DEFAULT '',
			detail TEXT NOT NULL DEFAULT ''
		);
		CREATE INDEX IF NOT EXISTS idx_run_history_workflow_id ON run_history(workflow_id, at);
	`)
	return err
}

func (s *SQLiteStore) Append(ctx context.Context, ev api.HistoryEvent) error {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO run_history (id, workflow_id, at, type, node_id, detail)
		VALUES (?, ?, ?, ?, ?, ?)`,
		ev.ID,
		ev.WorkflowID,
		at.UnixNano(),
		ev.Type,
		ev.NodeID,
		ev.Detail,
	)
	return err
}

func (s *SQLiteStore) List(ctx context.Context, workflowID string) ([]api.HistoryEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, workflow_id, at, type, node_id, detail
		FROM run_history
		WHERE workflow_id = ?
		ORDER BY at ASC, id ASC`, workflowID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []api.HistoryEvent
	for rows.Next() {
		var (
			ev  api.HistoryEvent
			atN int64
		)
		if err := rows.Scan(&ev.ID, &ev.WorkflowID, &atN, &ev.Type, &ev.NodeID, &ev.Detail); err != nil {
			return nil, err
		}
		ev.At = time.Unix(0, atN)
		out = append(out, ev)
	}
	return out, rows.Err()
}

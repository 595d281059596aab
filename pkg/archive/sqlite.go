package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"nimbus-hq/ganymede/pkg/config"
	"nimbus-hq/ganymede/pkg/telemetry/metrics"
)

const schema = `
CREATE TABLE IF NOT EXISTS traces (
	id            TEXT PRIMARY KEY,
	request_id    TEXT,
	agent_id      TEXT NOT NULL,
	model_id      TEXT NOT NULL,
	caller_id     TEXT,
	intent        TEXT,
	start_time    INTEGER NOT NULL,
	end_time      INTEGER NOT NULL,
	latency_ns    INTEGER NOT NULL,
	tokens_used   INTEGER NOT NULL,
	tools         TEXT,
	outcome       TEXT NOT NULL,
	error_message TEXT
);
CREATE INDEX IF NOT EXISTS idx_traces_end_time ON traces(end_time);
CREATE INDEX IF NOT EXISTS idx_traces_caller ON traces(caller_id);
`

// Store is a SQLite-backed archive of finalized traces.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open creates the database file (and parent directory) if needed,
// applies the schema and returns a ready store.
func Open(cfg config.ArchiveConfig) (*Store, error) {
	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating archive directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)",
		cfg.Path, cfg.BusyTimeout.Milliseconds())
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening archive database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying archive schema: %w", err)
	}

	return &Store{
		db:     db,
		logger: slog.Default().With("component", "archive"),
	}, nil
}

// Insert persists one finalized trace. Re-inserting the same trace id is
// a no-op.
func (s *Store) Insert(ctx context.Context, t *metrics.RequestTrace) error {
	tools, err := json.Marshal(t.ToolsInvoked)
	if err != nil {
		return fmt.Errorf("encoding tools: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO traces
		(id, request_id, agent_id, model_id, caller_id, intent,
		 start_time, end_time, latency_ns, tokens_used, tools, outcome, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.RequestID, t.AgentID, t.ModelID, t.CallerID, t.Intent,
		t.StartTime.UnixNano(), t.EndTime.UnixNano(), int64(t.Latency),
		t.TokensUsed, string(tools), string(t.Outcome), t.ErrorMessage)
	if err != nil {
		return fmt.Errorf("inserting trace %s: %w", t.ID, err)
	}
	return nil
}

// Query returns traces whose end time falls in [from, to), newest first,
// capped at limit.
func (s *Store) Query(ctx context.Context, from, to time.Time, limit int) ([]*metrics.RequestTrace, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, request_id, agent_id, model_id, caller_id, intent,
		       start_time, end_time, latency_ns, tokens_used, tools, outcome, error_message
		FROM traces
		WHERE end_time >= ? AND end_time < ?
		ORDER BY end_time DESC
		LIMIT ?`,
		from.UnixNano(), to.UnixNano(), limit)
	if err != nil {
		return nil, fmt.Errorf("querying traces: %w", err)
	}
	defer rows.Close()

	var out []*metrics.RequestTrace
	for rows.Next() {
		var (
			t          metrics.RequestTrace
			start, end int64
			latency    int64
			tools      string
			outcome    string
		)
		if err := rows.Scan(&t.ID, &t.RequestID, &t.AgentID, &t.ModelID, &t.CallerID,
			&t.Intent, &start, &end, &latency, &t.TokensUsed, &tools, &outcome,
			&t.ErrorMessage); err != nil {
			return nil, fmt.Errorf("scanning trace: %w", err)
		}
		t.StartTime = time.Unix(0, start)
		t.EndTime = time.Unix(0, end)
		t.Latency = time.Duration(latency)
		t.Outcome = metrics.Outcome(outcome)
		t.Success = t.Outcome == metrics.OutcomeSuccess
		if tools != "" && tools != "null" {
			if err := json.Unmarshal([]byte(tools), &t.ToolsInvoked); err != nil {
				return nil, fmt.Errorf("decoding tools for trace %s: %w", t.ID, err)
			}
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}

// Count returns the number of archived traces.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM traces`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting traces: %w", err)
	}
	return n, nil
}

// Prune deletes traces that ended before the cutoff and returns how many
// were removed.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM traces WHERE end_time < ?`, cutoff.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("pruning traces: %w", err)
	}
	return res.RowsAffected()
}

// Ping verifies the database is reachable. Used by health checks.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Sink returns a metrics.TraceSink that archives every finalized trace.
// Insert failures are logged, never propagated to the hot path.
func (s *Store) Sink() metrics.TraceSink {
	return func(t *metrics.RequestTrace) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.Insert(ctx, t); err != nil {
			s.logger.Error("failed to archive trace", "trace_id", t.ID, "error", err)
		}
	}
}

package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

const spoolSchema = `
CREATE TABLE IF NOT EXISTS violation_reports (
	id             TEXT PRIMARY KEY,
	operation      TEXT NOT NULL,
	object_type    TEXT NOT NULL,
	namespace      TEXT NOT NULL,
	principal_id   TEXT NOT NULL,
	correlation_id TEXT NOT NULL,
	occurred_at    INTEGER NOT NULL,
	violations     TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_violation_reports_occurred_at
	ON violation_reports(occurred_at);
`

// SQLiteSpool is a Reporter that persists violation reports to a local
// SQLite database. It gives audit reporting best-effort durability
// across restarts: an external governance client drains the spool and
// ships reports upstream, after which they can be pruned.
type SQLiteSpool struct {
	db *sql.DB

	insertStmt *sql.Stmt
	pruneStmt  *sql.Stmt
}

// SQLiteSpoolConfig configures the spool.
type SQLiteSpoolConfig struct {
	// Path is the SQLite database file path.
	Path string

	// BusyTimeout is how long to wait for locks before failing.
	// Default: 5 seconds.
	BusyTimeout time.Duration
}

// NewSQLiteSpool opens (creating if needed) the spool database.
func NewSQLiteSpool(cfg SQLiteSpoolConfig) (*SQLiteSpool, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("audit: spool path cannot be empty")
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = 5 * time.Second
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=%d&_synchronous=NORMAL",
		cfg.Path, int(cfg.BusyTimeout.Milliseconds()))

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("audit: failed to open spool: %w", err)
	}

	if _, err := db.Exec(spoolSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("audit: failed to initialize spool schema: %w", err)
	}

	insertStmt, err := db.Prepare(`
		INSERT INTO violation_reports
			(id, operation, object_type, namespace, principal_id, correlation_id, occurred_at, violations)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("audit: failed to prepare insert: %w", err)
	}

	pruneStmt, err := db.Prepare(`DELETE FROM violation_reports WHERE occurred_at < ?`)
	if err != nil {
		insertStmt.Close()
		db.Close()
		return nil, fmt.Errorf("audit: failed to prepare prune: %w", err)
	}

	return &SQLiteSpool{
		db:         db,
		insertStmt: insertStmt,
		pruneStmt:  pruneStmt,
	}, nil
}

// Report persists the violation report to the spool.
func (s *SQLiteSpool) Report(ctx context.Context, report *ViolationReport) error {
	violations, err := json.Marshal(report.Violations)
	if err != nil {
		return fmt.Errorf("audit: failed to encode violations: %w", err)
	}

	_, err = s.insertStmt.ExecContext(ctx,
		report.ID,
		report.Operation,
		report.ObjectType,
		report.Namespace,
		report.PrincipalID,
		report.CorrelationID,
		report.OccurredAt.UnixNano(),
		string(violations),
	)
	if err != nil {
		return fmt.Errorf("audit: failed to spool report %s: %w", report.ID, err)
	}
	return nil
}

// List returns up to limit spooled reports, oldest first, for an
// external shipper to drain.
func (s *SQLiteSpool) List(ctx context.Context, limit int) ([]*ViolationReport, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, operation, object_type, namespace, principal_id, correlation_id, occurred_at, violations
		FROM violation_reports
		ORDER BY occurred_at ASC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("audit: failed to list spooled reports: %w", err)
	}
	defer rows.Close()

	var reports []*ViolationReport
	for rows.Next() {
		var (
			r          ViolationReport
			occurredAt int64
			violations string
		)
		if err := rows.Scan(&r.ID, &r.Operation, &r.ObjectType, &r.Namespace,
			&r.PrincipalID, &r.CorrelationID, &occurredAt, &violations); err != nil {
			return nil, fmt.Errorf("audit: failed to scan spooled report: %w", err)
		}
		r.OccurredAt = time.Unix(0, occurredAt)
		if err := json.Unmarshal([]byte(violations), &r.Violations); err != nil {
			return nil, fmt.Errorf("audit: failed to decode violations for %s: %w", r.ID, err)
		}
		reports = append(reports, &r)
	}
	return reports, rows.Err()
}

// Count returns the number of spooled reports.
func (s *SQLiteSpool) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM violation_reports`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("audit: failed to count spooled reports: %w", err)
	}
	return n, nil
}

// Prune deletes reports older than the cutoff and returns how many
// were removed.
func (s *SQLiteSpool) Prune(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := s.pruneStmt.ExecContext(ctx, olderThan.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("audit: failed to prune spool: %w", err)
	}
	return res.RowsAffected()
}

// Close releases the spool's database resources.
func (s *SQLiteSpool) Close() error {
	s.insertStmt.Close()
	s.pruneStmt.Close()
	return s.db.Close()
}

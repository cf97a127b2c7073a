package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"go-funnel-metrics/internal/model"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rotisserie/eris"
)

// Supported database/sql driver names
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "pgx"
)

// ErrRunNotFound is returned when a run id is unknown
var ErrRunNotFound = eris.New("run not found")

// Store keeps report run history, branch errors and the response cache
type Store struct {
	db     *sql.DB
	driver string
	now    func() time.Time
}

// RunSummary is one row of the run history listing
type RunSummary struct {
	ID                 string    `json:"id"`
	WindowDays         int       `json:"windowDays"`
	City               string    `json:"city,omitempty"`
	State              string    `json:"state,omitempty"`
	Alerts             int       `json:"alerts"`
	UnavailableSources int       `json:"unavailableSources"`
	CreatedAt          time.Time `json:"createdAt"`
}

// BranchError is a persisted provider failure of one run
type BranchError struct {
	RunID     string    `json:"runId"`
	Source    string    `json:"source"`
	Reason    string    `json:"reason"`
	Message   string    `json:"message,omitempty"`
	Attempts  int       `json:"attempts"`
	CreatedAt time.Time `json:"createdAt"`
}

// Open connects to the database and creates the tables if needed.
// driver is "sqlite3" or "pgx" ("postgres" is accepted as an alias).
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	driver = normalizeDriver(driver)
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, eris.Wrapf(err, "store: open %s", driver)
	}
	if driver == DriverSQLite {
		// one writer at a time
		db.SetMaxOpenConns(1)
	}
	s, err := New(ctx, db, driver)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an existing connection and migrates the schema
func New(ctx context.Context, db *sql.DB, driver string) (*Store, error) {
	s := &Store{db: db, driver: normalizeDriver(driver), now: time.Now}
	if err := s.migrate(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func normalizeDriver(driver string) string {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "pgx", "postgres", "postgresql":
		return DriverPostgres
	default:
		return DriverSQLite
	}
}

// Close releases the connection pool
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database is reachable
func (s *Store) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "store: ping")
}

func (s *Store) migrate(ctx context.Context) error {
	blob, ts, serial := "BLOB", "DATETIME", "INTEGER PRIMARY KEY AUTOINCREMENT"
	if s.driver == DriverPostgres {
		blob, ts, serial = "BYTEA", "TIMESTAMPTZ", "BIGSERIAL PRIMARY KEY"
	}

	statements := []string{
		`CREATE TABLE IF NOT EXISTS report_runs (
			id TEXT PRIMARY KEY,
			window_days INTEGER NOT NULL,
			city TEXT,
			state TEXT,
			alerts INTEGER NOT NULL,
			unavailable_sources INTEGER NOT NULL,
			report ` + blob + ` NOT NULL,
			created_at ` + ts + ` NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS branch_errors (
			id ` + serial + `,
			run_id TEXT NOT NULL,
			source TEXT NOT NULL,
			reason TEXT NOT NULL,
			message TEXT,
			attempts INTEGER NOT NULL,
			created_at ` + ts + ` NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_branch_errors_run ON branch_errors (run_id)`,
		`CREATE TABLE IF NOT EXISTS report_cache (
			cache_key TEXT PRIMARY KEY,
			value ` + blob + ` NOT NULL,
			expires_at ` + ts + ` NOT NULL
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return eris.Wrap(err, "store: migrate")
		}
	}
	return nil
}

// rebind rewrites ? placeholders to $n for PostgreSQL
func (s *Store) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// SaveRun stores a report and the failures of its unavailable branches
func (s *Store) SaveRun(ctx context.Context, report model.Report) error {
	if report.RunID == "" {
		return eris.New("store: save run: empty run id")
	}
	body, err := json.Marshal(report)
	if err != nil {
		return eris.Wrap(err, "store: encode report")
	}

	unavailable := 0
	for _, src := range report.Sources {
		if !src.Available {
			unavailable++
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "store: begin")
	}
	defer tx.Rollback()

	now := s.now().UTC()
	_, err = tx.ExecContext(ctx, s.rebind(`INSERT INTO report_runs
		(id, window_days, city, state, alerts, unavailable_sources, report, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		report.RunID, report.WindowDays, report.Filter.City, report.Filter.State,
		len(report.Alerts), unavailable, body, now)
	if err != nil {
		return eris.Wrapf(err, "store: save run %s", report.RunID)
	}

	for _, src := range report.Sources {
		if src.Available {
			continue
		}
		_, err = tx.ExecContext(ctx, s.rebind(`INSERT INTO branch_errors
			(run_id, source, reason, message, attempts, created_at) VALUES (?, ?, ?, ?, ?, ?)`),
			report.RunID, string(src.Source), src.MissingReason, src.Error, src.Attempts, now)
		if err != nil {
			return eris.Wrapf(err, "store: save branch error %s", src.Source)
		}
	}

	return eris.Wrap(tx.Commit(), "store: commit run")
}

// ListRuns returns the most recent runs first
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, s.rebind(`SELECT id, window_days, city, state, alerts, unavailable_sources, created_at
		FROM report_runs ORDER BY created_at DESC LIMIT ?`), limit)
	if err != nil {
		return nil, eris.Wrap(err, "store: list runs")
	}
	defer rows.Close()

	runs := make([]RunSummary, 0)
	for rows.Next() {
		var r RunSummary
		var city, state sql.NullString
		if err := rows.Scan(&r.ID, &r.WindowDays, &city, &state, &r.Alerts, &r.UnavailableSources, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "store: scan run")
		}
		r.City, r.State = city.String, state.String
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "store: iterate runs")
}

// GetRun returns the stored report of a run
func (s *Store) GetRun(ctx context.Context, id string) (model.Report, error) {
	var body []byte
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT report FROM report_runs WHERE id = ?`), id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Report{}, eris.Wrapf(ErrRunNotFound, "run %s", id)
	}
	if err != nil {
		return model.Report{}, eris.Wrapf(err, "store: get run %s", id)
	}

	var report model.Report
	if err := json.Unmarshal(body, &report); err != nil {
		return model.Report{}, eris.Wrapf(err, "store: decode run %s", id)
	}
	return report, nil
}

// BranchErrors returns the provider failures recorded for a run
func (s *Store) BranchErrors(ctx context.Context, runID string) ([]BranchError, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`SELECT run_id, source, reason, message, attempts, created_at
		FROM branch_errors WHERE run_id = ? ORDER BY id`), runID)
	if err != nil {
		return nil, eris.Wrap(err, "store: list branch errors")
	}
	defer rows.Close()

	out := make([]BranchError, 0)
	for rows.Next() {
		var e BranchError
		var msg sql.NullString
		if err := rows.Scan(&e.RunID, &e.Source, &e.Reason, &msg, &e.Attempts, &e.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "store: scan branch error")
		}
		e.Message = msg.String
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "store: iterate branch errors")
}

package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver (pure Go)
)

// ErrNotFound is returned when an evaluation does not exist.
var ErrNotFound = errors.New("evaluation not found")

// SQLiteStore implements HistoryStore using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

var _ HistoryStore = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new SQLite history store instance.
// If logger is nil, a discard logger is used.
func NewSQLiteStore(logger *slog.Logger) *SQLiteStore {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &SQLiteStore{logger: logger}
}

// Open opens a connection to the SQLite database and migrates it.
// Use ":memory:" for an in-memory database.
func (s *SQLiteStore) Open(path string) error {
	dsn := path
	if path != ":memory:" {
		dsn = "file:" + path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// An in-memory database exists per connection.
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	s.db = db
	s.path = path
	s.logger.Debug("opened history store", slog.String("path", path))

	if err := s.Migrate(); err != nil {
		_ = db.Close()
		s.db = nil
		return err
	}
	return nil
}

// Open is a convenience that creates and opens a store.
func Open(path string, logger *slog.Logger) (*SQLiteStore, error) {
	s := NewSQLiteStore(logger)
	if err := s.Open(path); err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the database path given to Open.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// RecordEvaluation inserts e. An empty ID is filled with a new UUID and a
// zero StartedAt with the current time.
func (s *SQLiteStore) RecordEvaluation(ctx context.Context, e *Evaluation) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.StartedAt.IsZero() {
		e.StartedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO evaluations (id, template, mode, scope, output, error, started_at, duration_ns)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Template, string(e.Mode), rawOrNull(e.Scope), rawOrNull(e.Output),
		e.Error, e.StartedAt.UTC(), e.Duration.Nanoseconds(),
	)
	if err != nil {
		return fmt.Errorf("failed to record evaluation: %w", err)
	}

	s.logger.Debug("recorded evaluation",
		slog.String("id", e.ID),
		slog.String("template", e.Template),
		slog.String("mode", string(e.Mode)))
	return nil
}

// ListEvaluations returns recorded evaluations, newest first.
func (s *SQLiteStore) ListEvaluations(ctx context.Context, opts ListOptions) ([]*Evaluation, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}

	var (
		query strings.Builder
		args  []any
	)
	query.WriteString(`SELECT id, template, mode, scope, output, error, started_at, duration_ns FROM evaluations`)
	if opts.Template != "" {
		query.WriteString(` WHERE template = ?`)
		args = append(args, opts.Template)
	}
	query.WriteString(` ORDER BY started_at DESC, rowid DESC LIMIT ?`)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list evaluations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*Evaluation
	for rows.Next() {
		e, err := scanEvaluation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list evaluations: %w", err)
	}
	return out, nil
}

// GetEvaluation retrieves an evaluation by ID. It returns an error
// wrapping ErrNotFound when no row matches.
func (s *SQLiteStore) GetEvaluation(ctx context.Context, id string) (*Evaluation, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT id, template, mode, scope, output, error, started_at, duration_ns FROM evaluations WHERE id = ?`, id)
	e, err := scanEvaluation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return e, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEvaluation(row scanner) (*Evaluation, error) {
	var (
		e             Evaluation
		mode          string
		scope, output string
		durationNS    int64
	)
	err := row.Scan(&e.ID, &e.Template, &mode, &scope, &output, &e.Error, &e.StartedAt, &durationNS)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan evaluation: %w", err)
	}
	e.Mode = Mode(mode)
	e.Scope = []byte(scope)
	e.Output = []byte(output)
	e.Duration = time.Duration(durationNS)
	return &e, nil
}

func rawOrNull(b []byte) string {
	if len(b) == 0 {
		return "null"
	}
	return string(b)
}

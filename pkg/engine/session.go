package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	_ "github.com/duckdb/duckdb-go/v2"
)

// ErrNotFound is returned when an input path matches no files.
var ErrNotFound = errors.New("not found")

// Config configures an engine session.
type Config struct {
	// Threads caps DuckDB's worker threads; 0 keeps the engine default.
	Threads int
	// MemoryLimit is a DuckDB size string such as "4GB"; empty keeps the default.
	MemoryLimit string
	// TempDirectory is where DuckDB spills when MemoryLimit is exceeded.
	TempDirectory string
	// Compression is the parquet codec used for writes (default "snappy").
	Compression string
	// S3 must be set when any path the session touches is s3://.
	S3 *S3Config
}

// Session is a single DuckDB connection. All tables a pipeline creates are
// temporary and live on this connection, so it must be used for every step.
type Session struct {
	log  *slog.Logger
	cfg  Config
	db   *sql.DB
	conn *sql.Conn
	mu   sync.Mutex
}

// NewSession opens an in-memory DuckDB database and prepares it for reading
// and writing the configured storage.
func NewSession(ctx context.Context, log *slog.Logger, cfg Config) (*Session, error) {
	if cfg.Compression == "" {
		cfg.Compression = "snappy"
	}

	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	conn, err := db.Conn(ctx)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open connection: %w", err)
	}

	s := &Session{
		log:  log,
		cfg:  cfg,
		db:   db,
		conn: conn,
	}
	if err := s.init(ctx); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Session) init(ctx context.Context) error {
	if s.cfg.Threads > 0 {
		if _, err := s.conn.ExecContext(ctx, fmt.Sprintf("SET threads = %d", s.cfg.Threads)); err != nil {
			return fmt.Errorf("failed to set threads: %w", err)
		}
	}
	if s.cfg.MemoryLimit != "" {
		if _, err := s.conn.ExecContext(ctx, "SET memory_limit = "+quote(s.cfg.MemoryLimit)); err != nil {
			return fmt.Errorf("failed to set memory_limit: %w", err)
		}
	}
	if s.cfg.TempDirectory != "" {
		if err := os.MkdirAll(s.cfg.TempDirectory, 0755); err != nil {
			return fmt.Errorf("failed to create temp directory: %w", err)
		}
		if _, err := s.conn.ExecContext(ctx, "SET temp_directory = "+quote(s.cfg.TempDirectory)); err != nil {
			return fmt.Errorf("failed to set temp_directory: %w", err)
		}
	}

	if s.cfg.S3 == nil {
		return nil
	}

	for _, ext := range []string{"httpfs", "aws"} {
		if _, err := s.conn.ExecContext(ctx, fmt.Sprintf("INSTALL '%s'", ext)); err != nil {
			return fmt.Errorf("failed to install extension %s: %w", ext, err)
		}
		if _, err := s.conn.ExecContext(ctx, fmt.Sprintf("LOAD '%s'", ext)); err != nil {
			return fmt.Errorf("failed to load extension %s: %w", ext, err)
		}
	}

	if _, err := s.conn.ExecContext(ctx, s.cfg.S3.secretSQL()); err != nil {
		return fmt.Errorf("failed to create S3 secret: %w", s.cfg.S3.sanitizeError(err))
	}
	s.log.Info("configured S3 storage", "s3", s.cfg.S3)
	return nil
}

// Close releases the connection and the database.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var errs []error
	if s.conn != nil {
		errs = append(errs, s.conn.Close())
		s.conn = nil
	}
	if s.db != nil {
		errs = append(errs, s.db.Close())
		s.db = nil
	}
	return errors.Join(errs...)
}

func (s *Session) exec(ctx context.Context, query string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log.Debug("engine: exec", "sql", query)
	if _, err := s.conn.ExecContext(ctx, query); err != nil {
		return s.cfg.S3.sanitizeError(err)
	}
	return nil
}

func (s *Session) queryInt(ctx context.Context, query string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	if err := s.conn.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, s.cfg.S3.sanitizeError(err)
	}
	return n, nil
}

// Query runs a read-only query and scans every row into a slice of values.
// It is meant for small result sets such as verification and tests.
func (s *Session) Query(ctx context.Context, query string) ([][]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, s.cfg.S3.sanitizeError(err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out [][]any
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		out = append(out, vals)
	}
	return out, rows.Err()
}

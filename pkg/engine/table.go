package engine

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"
)

// ReadJSON loads every JSON file matching uri into a temporary table using
// the explicit schema. Keys missing from a record read as NULL and keys not
// in the schema are ignored. It returns the number of rows loaded.
func (s *Session) ReadJSON(ctx context.Context, table, uri string, schema Schema) (int64, error) {
	if len(schema) == 0 {
		return 0, fmt.Errorf("schema cannot be empty")
	}
	uri = NormalizeURI(uri)
	if err := s.requireFiles(ctx, uri); err != nil {
		return 0, err
	}

	query := fmt.Sprintf("SELECT * FROM read_json(%s, columns = %s, format = 'auto')",
		quote(uri), schema.structLiteral())
	return s.CreateTable(ctx, table, query)
}

// ReadParquet loads a table previously written by WriteParquet. When
// partitions is non-empty the directory is read as hive-partitioned and the
// partition columns are restored with the given types. A directory holding
// only the schema file of an empty partitioned table reads as zero rows.
func (s *Session) ReadParquet(ctx context.Context, table, uri string, partitions Schema) (int64, error) {
	var query string
	if len(partitions) > 0 {
		if err := s.requireFiles(ctx, JoinURI(uri, "**", "*.parquet")); err != nil {
			return 0, err
		}
		pattern := JoinURI(uri, "*=*", "**", "*.parquet")
		n, err := s.queryInt(ctx, fmt.Sprintf("SELECT count(*) FROM glob(%s)", quote(pattern)))
		if err != nil {
			return 0, fmt.Errorf("failed to list %s: %w", RedactedURI(pattern), err)
		}
		if n == 0 {
			// Empty partitioned table: only the schema file at the root.
			query = fmt.Sprintf("SELECT * FROM read_parquet(%s)", quote(JoinURI(uri, "*.parquet")))
		} else {
			query = fmt.Sprintf("SELECT * FROM read_parquet(%s, hive_partitioning = true, hive_types = %s)",
				quote(pattern), partitions.structLiteral())
		}
	} else {
		pattern := JoinURI(uri, "*.parquet")
		if err := s.requireFiles(ctx, pattern); err != nil {
			return 0, err
		}
		query = fmt.Sprintf("SELECT * FROM read_parquet(%s)", quote(pattern))
	}
	return s.CreateTable(ctx, table, query)
}

// CreateTable materializes a query into a temporary table, replacing any
// previous table with the same name, and returns its row count.
func (s *Session) CreateTable(ctx context.Context, table, query string) (int64, error) {
	start := time.Now()
	if err := s.exec(ctx, fmt.Sprintf("CREATE OR REPLACE TEMP TABLE %s AS %s", quoteIdent(table), query)); err != nil {
		return 0, fmt.Errorf("failed to create table %s: %w", table, err)
	}
	n, err := s.Count(ctx, table)
	if err != nil {
		return 0, err
	}
	s.log.Debug("engine: table created", "table", table, "rows", n, "duration", time.Since(start).String())
	return n, nil
}

// WriteParquet writes a table under uri. With partition columns the output
// is a hive-style directory tree (col=value/...); otherwise a single
// part_0.parquet file. An empty partitioned table has no partitions, so it
// is written as a schema-only part_0.parquet at the root. Existing files
// are not removed; callers that need overwrite semantics clear the prefix
// first. Returns the rows written.
func (s *Session) WriteParquet(ctx context.Context, table, uri string, partitionBy []string) (int64, error) {
	uri = NormalizeURI(uri)
	if !IsS3(uri) {
		if err := os.MkdirAll(uri, 0755); err != nil {
			return 0, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	rows, err := s.Count(ctx, table)
	if err != nil {
		return 0, err
	}

	var copySQL string
	if len(partitionBy) > 0 && rows > 0 {
		cols := make([]string, len(partitionBy))
		for i, c := range partitionBy {
			cols[i] = quoteIdent(c)
		}
		copySQL = fmt.Sprintf("COPY %s TO %s (FORMAT parquet, COMPRESSION %s, PARTITION_BY (%s), OVERWRITE_OR_IGNORE true, FILENAME_PATTERN 'part_{i}')",
			quoteIdent(table), quote(uri), s.cfg.Compression, strings.Join(cols, ", "))
	} else {
		copySQL = fmt.Sprintf("COPY %s TO %s (FORMAT parquet, COMPRESSION %s)",
			quoteIdent(table), quote(JoinURI(uri, "part_0.parquet")), s.cfg.Compression)
	}

	start := time.Now()
	if err := s.exec(ctx, copySQL); err != nil {
		return 0, fmt.Errorf("failed to write %s to parquet: %w", table, err)
	}
	s.log.Debug("engine: parquet written", "table", table, "uri", RedactedURI(uri), "rows", rows, "partition_by", partitionBy, "duration", time.Since(start).String())
	return rows, nil
}

// DropTable removes a temporary table if it exists.
func (s *Session) DropTable(ctx context.Context, table string) error {
	if err := s.exec(ctx, "DROP TABLE IF EXISTS "+quoteIdent(table)); err != nil {
		return fmt.Errorf("failed to drop table %s: %w", table, err)
	}
	return nil
}

// Count returns the number of rows in a table.
func (s *Session) Count(ctx context.Context, table string) (int64, error) {
	n, err := s.queryInt(ctx, "SELECT count(*) FROM "+quoteIdent(table))
	if err != nil {
		return 0, fmt.Errorf("failed to count rows in %s: %w", table, err)
	}
	return n, nil
}

// Columns returns a table's column names in ordinal order.
func (s *Session) Columns(ctx context.Context, table string) ([]string, error) {
	rows, err := s.Query(ctx, fmt.Sprintf("SELECT name FROM pragma_table_info(%s) ORDER BY cid", quote(table)))
	if err != nil {
		return nil, fmt.Errorf("failed to describe %s: %w", table, err)
	}
	cols := make([]string, 0, len(rows))
	for _, row := range rows {
		name, ok := row[0].(string)
		if !ok {
			return nil, fmt.Errorf("unexpected column name type %T", row[0])
		}
		cols = append(cols, name)
	}
	return cols, nil
}

// requireFiles fails with ErrNotFound when the glob pattern matches nothing,
// so that an empty input never silently produces an empty table.
func (s *Session) requireFiles(ctx context.Context, pattern string) error {
	n, err := s.queryInt(ctx, fmt.Sprintf("SELECT count(*) FROM glob(%s)", quote(pattern)))
	if err != nil {
		return fmt.Errorf("failed to list %s: %w", RedactedURI(pattern), err)
	}
	if n == 0 {
		return fmt.Errorf("%w: no files match %s", ErrNotFound, RedactedURI(pattern))
	}
	return nil
}

package engine

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func testSession(t *testing.T) *Session {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	s, err := NewSession(context.Background(), log, Config{Threads: 2})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

var testRecordSchema = MustParseSchema(
	"id:VARCHAR",
	"name:VARCHAR",
	"score:DOUBLE",
	"year:INTEGER",
)

func TestEngine_ParseSchema(t *testing.T) {
	schema, err := ParseSchema("a:VARCHAR", " b : DOUBLE ")
	require.NoError(t, err)
	require.Equal(t, Schema{{Name: "a", Type: "VARCHAR"}, {Name: "b", Type: "DOUBLE"}}, schema)
	require.Equal(t, []string{"a", "b"}, schema.Names())
	require.Equal(t, "{'a': 'VARCHAR', 'b': 'DOUBLE'}", schema.structLiteral())

	_, err = ParseSchema("missing-type")
	require.ErrorContains(t, err, "expected format 'name:type'")

	_, err = ParseSchema("name:")
	require.ErrorContains(t, err, "name and type are required")

	sub, err := schema.Lookup("b")
	require.NoError(t, err)
	require.Equal(t, Schema{{Name: "b", Type: "DOUBLE"}}, sub)

	_, err = schema.Lookup("c")
	require.ErrorContains(t, err, `column "c" not in schema`)
}

func TestEngine_ReadJSON_ExplicitSchema(t *testing.T) {
	ctx := context.Background()
	s := testSession(t)

	dir := t.TempDir()
	// One object per file and newline-delimited files are both accepted.
	writeFile(t, filepath.Join(dir, "a.json"), `{"id":"r1","name":"one","score":1.5,"year":2001,"extra":"ignored"}`)
	writeFile(t, filepath.Join(dir, "b.json"), `{"id":"r2","name":"two","score":2}
{"id":"r3","year":1999}
`)

	n, err := s.ReadJSON(ctx, "records", filepath.Join(dir, "*.json"), testRecordSchema)
	require.NoError(t, err)
	require.Equal(t, int64(3), n)

	cols, err := s.Columns(ctx, "records")
	require.NoError(t, err)
	require.Equal(t, []string{"id", "name", "score", "year"}, cols)

	rows, err := s.Query(ctx, "SELECT id, name, score, year FROM records ORDER BY id")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Equal(t, []any{"r1", "one", 1.5, int32(2001)}, rows[0])
	require.Equal(t, []any{"r2", "two", 2.0, nil}, rows[1])
	require.Equal(t, []any{"r3", nil, nil, int32(1999)}, rows[2])
}

func TestEngine_ReadJSON_NoFilesIsNotFound(t *testing.T) {
	ctx := context.Background()
	s := testSession(t)

	_, err := s.ReadJSON(ctx, "records", filepath.Join(t.TempDir(), "*.json"), testRecordSchema)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestEngine_ReadJSON_EmptySchema(t *testing.T) {
	s := testSession(t)
	_, err := s.ReadJSON(context.Background(), "records", "/tmp/*.json", nil)
	require.ErrorContains(t, err, "schema cannot be empty")
}

func TestEngine_WriteParquet_PartitionedRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := testSession(t)

	_, err := s.CreateTable(ctx, "records", `
		SELECT * FROM (VALUES
			('r1', 'one', 1.5, 2001),
			('r2', 'two', 2.0, 2001),
			('r3', 'three', 3.0, 1999)
		) AS t(id, name, score, year)`)
	require.NoError(t, err)

	out := filepath.Join(t.TempDir(), "records")
	n, err := s.WriteParquet(ctx, "records", out, []string{"year"})
	require.NoError(t, err)
	require.Equal(t, int64(3), n)

	require.DirExists(t, filepath.Join(out, "year=2001"))
	require.DirExists(t, filepath.Join(out, "year=1999"))

	partitions, err := testRecordSchema.Lookup("year")
	require.NoError(t, err)
	n, err = s.ReadParquet(ctx, "records_back", out, partitions)
	require.NoError(t, err)
	require.Equal(t, int64(3), n)

	cols, err := s.Columns(ctx, "records_back")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"id", "name", "score", "year"}, cols)

	rows, err := s.Query(ctx, "SELECT id, year FROM records_back ORDER BY id")
	require.NoError(t, err)
	require.Equal(t, [][]any{{"r1", int32(2001)}, {"r2", int32(2001)}, {"r3", int32(1999)}}, rows)
}

func TestEngine_WriteParquet_EmptyPartitionedRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := testSession(t)

	_, err := s.CreateTable(ctx, "records", `
		SELECT 'r1' AS id, 'one' AS name, 1.5 AS score, CAST(2001 AS INTEGER) AS year
		WHERE false`)
	require.NoError(t, err)

	out := filepath.Join(t.TempDir(), "records")
	n, err := s.WriteParquet(ctx, "records", out, []string{"year"})
	require.NoError(t, err)
	require.Equal(t, int64(0), n)
	require.FileExists(t, filepath.Join(out, "part_0.parquet"))

	partitions, err := testRecordSchema.Lookup("year")
	require.NoError(t, err)
	n, err = s.ReadParquet(ctx, "records_back", out, partitions)
	require.NoError(t, err)
	require.Equal(t, int64(0), n)

	cols, err := s.Columns(ctx, "records_back")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"id", "name", "score", "year"}, cols)
}

func TestEngine_WriteParquet_UnpartitionedRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := testSession(t)

	_, err := s.CreateTable(ctx, "records", "SELECT range AS id FROM range(10)")
	require.NoError(t, err)

	out := filepath.Join(t.TempDir(), "records")
	n, err := s.WriteParquet(ctx, "records", "file://"+out, nil)
	require.NoError(t, err)
	require.Equal(t, int64(10), n)
	require.FileExists(t, filepath.Join(out, "part_0.parquet"))

	n, err = s.ReadParquet(ctx, "records_back", out, nil)
	require.NoError(t, err)
	require.Equal(t, int64(10), n)
}

func TestEngine_ReadParquet_MissingIsNotFound(t *testing.T) {
	s := testSession(t)
	_, err := s.ReadParquet(context.Background(), "missing", filepath.Join(t.TempDir(), "songs"), nil)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestEngine_Close_Idempotent(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	s, err := NewSession(context.Background(), log, Config{MemoryLimit: "256MB", TempDirectory: t.TempDir()})
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
}

func TestEngine_DropTable(t *testing.T) {
	ctx := context.Background()
	s := testSession(t)

	_, err := s.CreateTable(ctx, "scratch", "SELECT 1 AS one")
	require.NoError(t, err)
	require.NoError(t, s.DropTable(ctx, "scratch"))
	require.NoError(t, s.DropTable(ctx, "scratch"))

	_, err = s.Count(ctx, "scratch")
	require.Error(t, err)
}

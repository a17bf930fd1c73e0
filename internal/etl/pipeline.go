package etl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/malbeclabs/songlake/internal/metrics"
	"github.com/malbeclabs/songlake/internal/objstore"
	"github.com/malbeclabs/songlake/pkg/engine"
)

// Engine is the dataframe engine the pipeline runs on. *engine.Session
// implements it.
type Engine interface {
	ReadJSON(ctx context.Context, table, uri string, schema engine.Schema) (int64, error)
	ReadParquet(ctx context.Context, table, uri string, partitions engine.Schema) (int64, error)
	CreateTable(ctx context.Context, table, query string) (int64, error)
	WriteParquet(ctx context.Context, table, uri string, partitionBy []string) (int64, error)
	DropTable(ctx context.Context, table string) error
	Count(ctx context.Context, table string) (int64, error)
	Columns(ctx context.Context, table string) ([]string, error)
}

type Config struct {
	Logger *slog.Logger
	Engine Engine
	Store  objstore.Store
	Clock  clockwork.Clock

	SongData   string
	LogData    string
	OutputRoot string

	// DedupeUsers collapses identical users rows before writing.
	DedupeUsers bool
	// Verify reads every written table back and compares it to the source.
	Verify bool
}

func (c *Config) Validate() error {
	if c.Logger == nil {
		return errors.New("logger is required")
	}
	if c.Engine == nil {
		return errors.New("engine is required")
	}
	if c.Store == nil {
		return errors.New("store is required")
	}
	if c.SongData == "" {
		return errors.New("song data path is required")
	}
	if c.LogData == "" {
		return errors.New("log data path is required")
	}
	if c.OutputRoot == "" {
		return errors.New("output root is required")
	}
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	return nil
}

// TableResult describes one written output table.
type TableResult struct {
	URI            string
	Rows           int64
	ObjectsDeleted int
	Verified       bool
}

// Summary collects what a run read and wrote.
type Summary struct {
	SongRecords    int64
	LogRecords     int64
	NextSongEvents int64
	Tables         map[string]TableResult
	Duration       time.Duration
}

func newSummary() *Summary {
	return &Summary{Tables: make(map[string]TableResult)}
}

type Pipeline struct {
	log *slog.Logger
	cfg *Config
}

func New(cfg *Config) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Pipeline{
		log: cfg.Logger,
		cfg: cfg,
	}, nil
}

// Run processes song data and then log data. The log stage reads the songs
// and artists tables back from the output root, so the order is fixed.
func (p *Pipeline) Run(ctx context.Context) (*Summary, error) {
	start := p.cfg.Clock.Now()
	summary := newSummary()

	if err := p.processSongData(ctx, summary); err != nil {
		return summary, err
	}
	if err := p.processLogData(ctx, summary); err != nil {
		return summary, err
	}

	summary.Duration = p.cfg.Clock.Since(start)
	p.log.Info("etl: run complete", "duration", summary.Duration.String(), "tables", len(summary.Tables))
	return summary, nil
}

// ProcessSongData reads song metadata and writes the songs and artists tables.
func (p *Pipeline) ProcessSongData(ctx context.Context) (*Summary, error) {
	start := p.cfg.Clock.Now()
	summary := newSummary()
	err := p.processSongData(ctx, summary)
	summary.Duration = p.cfg.Clock.Since(start)
	return summary, err
}

// ProcessLogData reads activity logs and writes the time, users and
// songplays tables. songs and artists must already exist under the output
// root.
func (p *Pipeline) ProcessLogData(ctx context.Context) (*Summary, error) {
	start := p.cfg.Clock.Now()
	summary := newSummary()
	err := p.processLogData(ctx, summary)
	summary.Duration = p.cfg.Clock.Since(start)
	return summary, err
}

func (p *Pipeline) processSongData(ctx context.Context, summary *Summary) error {
	defer p.observeStage("songs", p.cfg.Clock.Now())

	p.log.Info("etl: reading song data", "uri", engine.RedactedURI(p.cfg.SongData))
	n, err := p.cfg.Engine.ReadJSON(ctx, stagingSongsTable, p.cfg.SongData, SongSchema)
	if err != nil {
		return fmt.Errorf("failed to read song data: %w", err)
	}
	summary.SongRecords = n
	metrics.RowsRead.WithLabelValues("songs").Set(float64(n))
	p.log.Info("etl: read song data", "records", n)

	if err := p.buildAndWrite(ctx, SongsTable, songsQuery(), summary); err != nil {
		return err
	}
	if err := p.buildAndWrite(ctx, ArtistsTable, artistsQuery(), summary); err != nil {
		return err
	}
	return nil
}

func (p *Pipeline) processLogData(ctx context.Context, summary *Summary) error {
	defer p.observeStage("logs", p.cfg.Clock.Now())

	p.log.Info("etl: reading log data", "uri", engine.RedactedURI(p.cfg.LogData))
	n, err := p.cfg.Engine.ReadJSON(ctx, stagingEventsTable, p.cfg.LogData, LogSchema)
	if err != nil {
		return fmt.Errorf("failed to read log data: %w", err)
	}
	summary.LogRecords = n
	metrics.RowsRead.WithLabelValues("logs").Set(float64(n))

	events, err := p.cfg.Engine.CreateTable(ctx, nextSongTable, nextSongQuery())
	if err != nil {
		return fmt.Errorf("failed to filter %s events: %w", nextSongPage, err)
	}
	summary.NextSongEvents = events
	p.log.Info("etl: read log data", "records", n, "next_song_events", events)

	if err := p.buildAndWrite(ctx, TimeTable, timeQuery(), summary); err != nil {
		return err
	}
	if err := p.buildAndWrite(ctx, UsersTable, usersQuery(p.cfg.DedupeUsers), summary); err != nil {
		return err
	}

	if err := p.loadStored(ctx, storedSongsTable, SongsTable); err != nil {
		return err
	}
	if err := p.loadStored(ctx, storedArtistsTable, ArtistsTable); err != nil {
		return err
	}
	return p.buildAndWrite(ctx, SongplaysTable, songplaysQuery(), summary)
}

// loadStored reads a previously written output table back into the session.
func (p *Pipeline) loadStored(ctx context.Context, name string, t Table) error {
	uri := t.URI(p.cfg.OutputRoot)
	n, err := p.cfg.Engine.ReadParquet(ctx, name, uri, t.Partitions)
	if err != nil {
		return fmt.Errorf("failed to read %s from %s: %w", t.Name, engine.RedactedURI(uri), err)
	}
	p.log.Debug("etl: loaded stored table", "table", t.Name, "rows", n)
	return nil
}

// buildAndWrite materializes query as the table, clears the table's
// previous output, and writes it.
func (p *Pipeline) buildAndWrite(ctx context.Context, t Table, query string, summary *Summary) error {
	if _, err := p.cfg.Engine.CreateTable(ctx, t.Name, query); err != nil {
		return fmt.Errorf("failed to build %s: %w", t.Name, err)
	}

	uri := t.URI(p.cfg.OutputRoot)
	deleted, err := p.cfg.Store.DeletePrefix(ctx, uri)
	if err != nil {
		return fmt.Errorf("failed to clear %s output: %w", t.Name, err)
	}
	if deleted > 0 {
		metrics.ObjectsDeleted.WithLabelValues(t.Name).Add(float64(deleted))
	}

	rows, err := p.cfg.Engine.WriteParquet(ctx, t.Name, uri, t.Partitions.Names())
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", t.Name, err)
	}
	metrics.RowsWritten.WithLabelValues(t.Name).Set(float64(rows))

	result := TableResult{URI: uri, Rows: rows, ObjectsDeleted: deleted}
	if p.cfg.Verify {
		if err := p.verify(ctx, t); err != nil {
			return err
		}
		result.Verified = true
	}
	summary.Tables[t.Name] = result

	p.log.Info("etl: wrote table", "table", t.Name, "rows", rows, "uri", engine.RedactedURI(uri), "replaced_objects", deleted)
	return nil
}

func (p *Pipeline) observeStage(stage string, start time.Time) {
	metrics.StageDuration.WithLabelValues(stage).Observe(p.cfg.Clock.Since(start).Seconds())
}

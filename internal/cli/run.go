package cli

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"

	"github.com/malbeclabs/songlake/internal/config"
	"github.com/malbeclabs/songlake/internal/etl"
	"github.com/malbeclabs/songlake/internal/metrics"
	"github.com/malbeclabs/songlake/internal/objstore"
	"github.com/malbeclabs/songlake/pkg/engine"
	"github.com/malbeclabs/songlake/pkg/logger"
)

type stage string

const (
	stageAll   stage = "all"
	stageSongs stage = "songs"
	stageLogs  stage = "logs"
)

const metricsPushTimeout = 10 * time.Second

type options struct {
	verbose    bool
	configPath string
	songData   string
	logData    string
	output     string
}

func readOptions(cmd *cobra.Command) (*options, error) {
	flags := cmd.Root().PersistentFlags()
	var opts options
	var err error
	if opts.verbose, err = flags.GetBool("verbose"); err != nil {
		return nil, fmt.Errorf("failed to get verbose flag: %w", err)
	}
	if opts.configPath, err = flags.GetString("config"); err != nil {
		return nil, fmt.Errorf("failed to get config flag: %w", err)
	}
	if opts.songData, err = flags.GetString("song-data"); err != nil {
		return nil, fmt.Errorf("failed to get song-data flag: %w", err)
	}
	if opts.logData, err = flags.GetString("log-data"); err != nil {
		return nil, fmt.Errorf("failed to get log-data flag: %w", err)
	}
	if opts.output, err = flags.GetString("output"); err != nil {
		return nil, fmt.Errorf("failed to get output flag: %w", err)
	}
	return &opts, nil
}

func run(cmd *cobra.Command, info BuildInfo, st stage) error {
	opts, err := readOptions(cmd)
	if err != nil {
		return err
	}
	log := logger.New(cmd.OutOrStdout(), opts.verbose)

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		log.Error("songlake: failed to load configuration", "error", err)
		return errReported{err}
	}
	cfg.ApplyOverrides(&opts.songData, &opts.logData, &opts.output)
	if err := cfg.Validate(); err != nil {
		log.Error("songlake: invalid configuration", "error", err)
		return errReported{err}
	}

	metrics.BuildInfo.WithLabelValues(info.Version, info.Commit, info.Date).Set(1)
	log.Info("songlake: starting",
		"version", info.Version,
		"stage", string(st),
		"song_data", engine.RedactedURI(cfg.Input.SongData),
		"log_data", engine.RedactedURI(cfg.Input.LogData),
		"output", engine.RedactedURI(cfg.Output.Root),
		"aws", cfg.AWS,
	)

	ctx := cmd.Context()
	summary, err := execute(ctx, log, cfg, st)

	result := "success"
	if err != nil {
		result = "error"
	} else {
		metrics.LastSuccess.SetToCurrentTime()
	}
	metrics.RunTotal.WithLabelValues(result).Inc()
	pushMetrics(ctx, log, cfg.Metrics.PushgatewayURL)

	if err != nil {
		log.Error("songlake: run failed", "stage", string(st), "error", err)
		return errReported{err}
	}

	logSummary(log, summary)
	return nil
}

func execute(ctx context.Context, log *slog.Logger, cfg *config.Config, st stage) (*etl.Summary, error) {
	session, err := engine.NewSession(ctx, log, cfg.EngineSettings())
	if err != nil {
		return nil, fmt.Errorf("failed to start engine session: %w", err)
	}
	defer session.Close()

	s3Cfg := cfg.S3Config()
	store, err := objstore.New(ctx, log, s3Cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create object store: %w", err)
	}
	defer store.Close()

	if err := store.EnsureBucket(ctx, s3Cfg, cfg.Output.Root); err != nil {
		return nil, err
	}

	pipeline, err := etl.New(&etl.Config{
		Logger:      log,
		Engine:      session,
		Store:       store,
		Clock:       clockwork.NewRealClock(),
		SongData:    cfg.Input.SongData,
		LogData:     cfg.Input.LogData,
		OutputRoot:  cfg.Output.Root,
		DedupeUsers: cfg.Transform.DedupeUsers,
		Verify:      cfg.Output.Verify,
	})
	if err != nil {
		return nil, err
	}

	switch st {
	case stageSongs:
		return pipeline.ProcessSongData(ctx)
	case stageLogs:
		return pipeline.ProcessLogData(ctx)
	default:
		return pipeline.Run(ctx)
	}
}

func pushMetrics(ctx context.Context, log *slog.Logger, url string) {
	if url == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), metricsPushTimeout)
	defer cancel()
	if err := metrics.Push(ctx, url); err != nil {
		log.Warn("songlake: failed to push metrics", "error", err)
	}
}

func logSummary(log *slog.Logger, summary *etl.Summary) {
	attrs := []any{"duration", summary.Duration.String()}
	if summary.SongRecords > 0 {
		attrs = append(attrs, "song_records", summary.SongRecords)
	}
	if summary.LogRecords > 0 {
		attrs = append(attrs, "log_records", summary.LogRecords, "next_song_events", summary.NextSongEvents)
	}
	for _, t := range etl.Tables {
		if r, ok := summary.Tables[t.Name]; ok {
			attrs = append(attrs, t.Name, r.Rows)
		}
	}
	log.Info("songlake: done", attrs...)
}

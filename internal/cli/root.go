package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

type ExitCode int

const (
	exitCodeSuccess = 0
	exitCodeError   = 1
)

// BuildInfo is injected into the binary by ldflags.
type BuildInfo struct {
	Version string
	Commit  string
	Date    string
}

// errReported marks an error that has already been logged.
type errReported struct {
	err error
}

func (e errReported) Error() string { return e.err.Error() }
func (e errReported) Unwrap() error { return e.err }

func Run(info BuildInfo) ExitCode {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	rootCmd := NewRootCmd(info)
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		var reported errReported
		if !errors.As(err, &reported) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		return exitCodeError
	}

	return exitCodeSuccess
}

func NewRootCmd(info BuildInfo) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "songlake",
		Short: "Build the songplays star schema from song metadata and activity logs.",
		Long: `songlake reads song metadata and user activity logs as JSON, reshapes them
into a star schema (songplays fact table with songs, artists, users and time
dimensions) and writes every table as partitioned parquet under the output
root. Without a subcommand both stages run in order.`,
		Args:          cobra.NoArgs,
		Version:       fmt.Sprintf("%s (commit: %s, date: %s)", info.Version, info.Commit, info.Date),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, info, stageAll)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.BoolP("verbose", "v", false, "set debug logging level")
	flags.StringP("config", "c", "", "path to a TOML configuration file")
	flags.String("song-data", "", "song metadata JSON path or glob (overrides config)")
	flags.String("log-data", "", "activity log JSON path or glob (overrides config)")
	flags.String("output", "", "output root for the parquet tables (overrides config)")

	rootCmd.AddCommand(
		NewSongsCmd(info).Command(),
		NewLogsCmd(info).Command(),
	)

	return rootCmd
}

package cli

import (
	"github.com/spf13/cobra"
)

type SongsCmd struct {
	info BuildInfo
}

func NewSongsCmd(info BuildInfo) *SongsCmd {
	return &SongsCmd{info: info}
}

func (c *SongsCmd) Command() *cobra.Command {
	return &cobra.Command{
		Use:   "songs",
		Short: "Write the songs and artists tables from song metadata",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, c.info, stageSongs)
		},
	}
}

type LogsCmd struct {
	info BuildInfo
}

func NewLogsCmd(info BuildInfo) *LogsCmd {
	return &LogsCmd{info: info}
}

func (c *LogsCmd) Command() *cobra.Command {
	return &cobra.Command{
		Use:   "logs",
		Short: "Write the time, users and songplays tables from activity logs",
		Long: `Write the time, users and songplays tables from activity logs. The songs
and artists tables must already exist under the output root.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, c.info, stageLogs)
		},
	}
}

package cmd

import (
	"fmt"
	"io"
	stdlog "log"
	"os"

	"github.com/grovetools/notifsync/logging"
	"github.com/hpcloud/tail"
	"github.com/spf13/cobra"
)

// NewLogsCmd creates the `logs` command.
func NewLogsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the notifsync log file",
		Long: `Prints today's log file. With --follow, keeps printing as lines are written,
including across a date rollover of the file.

Examples:
  # Follow the log while watch runs in another terminal
  notifsync logs -f`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			component, _ := cmd.Flags().GetString("component")
			follow, _ := cmd.Flags().GetBool("follow")

			path := logging.CurrentFilePath(component)
			if path == "" {
				return fmt.Errorf("no log directory for %s", component)
			}
			if _, err := os.Stat(path); err != nil {
				if os.IsNotExist(err) && !follow {
					fmt.Fprintf(cmd.ErrOrStderr(), "No log file at %s\n", path)
					return nil
				}
				if !os.IsNotExist(err) {
					return err
				}
			}
			return tailLog(cmd, path, follow)
		},
	}
	cmd.Flags().BoolP("follow", "f", false, "Follow log output")
	cmd.Flags().String("component", "notifsync", "Logger component whose file to show")
	return cmd
}

func tailLog(cmd *cobra.Command, path string, follow bool) error {
	t, err := tail.TailFile(path, tail.Config{
		Follow:    follow,
		ReOpen:    follow,
		MustExist: !follow,
		Location:  &tail.SeekInfo{Offset: 0, Whence: io.SeekStart},
		Logger:    stdlog.New(io.Discard, "", 0),
	})
	if err != nil {
		return err
	}
	defer t.Cleanup()

	ctx := cmd.Context()
	for {
		select {
		case <-ctx.Done():
			return t.Stop()
		case line, ok := <-t.Lines:
			if !ok {
				return t.Err()
			}
			if line.Err != nil {
				return line.Err
			}
			fmt.Fprintln(cmd.OutOrStdout(), line.Text)
		}
	}
}

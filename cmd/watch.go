package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/grovetools/notifsync/cli"
	"github.com/grovetools/notifsync/logging"
	"github.com/grovetools/notifsync/pkg/notifsync"
	"github.com/grovetools/notifsync/pkg/session"
	"github.com/grovetools/notifsync/tui/watch"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

// NewWatchCmd creates the `watch` command.
func NewWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow notifications live",
		Long: `Loads the notification list, subscribes to the push channel and keeps the
view current. Logging in or out (notifsync login/logout) while watch runs
starts or ends the live session.

Examples:
  # Interactive view
  notifsync watch

  # One line per event, for scripts and logs
  notifsync watch --plain`,
		Args: cobra.NoArgs,
		RunE: runWatch,
	}
	cmd.Flags().Bool("plain", false, "Print one line per change instead of the interactive view")
	return cmd
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := cli.LoadConfig(cmd)
	if err != nil {
		return err
	}
	logger := cli.GetLogger(cmd)

	var client notifsync.Client
	provider, err := session.Open(cfg.Session, logger)
	if err != nil {
		logger.WithError(err).Warn("No session provider available, notifications are disabled")
		client = notifsync.New(cfg, nil)
	} else {
		defer provider.Close()
		client = notifsync.New(cfg, provider)
	}
	defer client.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	plain, _ := cmd.Flags().GetBool("plain")
	if plain || !isatty.IsTerminal(os.Stdout.Fd()) {
		return watchPlain(ctx, cmd.OutOrStdout(), client)
	}

	views := client.Subscribe()
	defer client.Unsubscribe(views)
	return fullScreen(func() error {
		program := tea.NewProgram(watch.New(client, views), tea.WithAltScreen(), tea.WithContext(ctx))
		if _, err := program.Run(); err != nil && ctx.Err() == nil {
			return err
		}
		return nil
	})
}

// fullScreen silences the console log sink while fn owns the terminal.
func fullScreen(fn func() error) error {
	restore := logging.RedirectConsole(io.Discard)
	defer restore()
	return fn()
}

// watchPlain prints a status line whenever the connection or the counter
// changes and one line per notification not seen before.
func watchPlain(ctx context.Context, w io.Writer, client notifsync.Client) error {
	views := client.Subscribe()
	defer client.Unsubscribe(views)

	seen := make(map[int64]bool)
	var last notifsync.View
	first := true
	for {
		select {
		case <-ctx.Done():
			return nil
		case v, ok := <-views:
			if !ok {
				return nil
			}
			if first || v.Connection != last.Connection || v.UnreadCount != last.UnreadCount || v.LastError != last.LastError {
				line := fmt.Sprintf("%s state=%s unread=%d", time.Now().Format(time.TimeOnly), v.Connection, v.UnreadCount)
				if v.LastError != "" {
					line += fmt.Sprintf(" error=%q", v.LastError)
				}
				fmt.Fprintln(w, line)
			}
			// Oldest first so the output reads top to bottom
			for i := len(v.Notifications) - 1; i >= 0; i-- {
				n := v.Notifications[i]
				if seen[n.ID] {
					continue
				}
				seen[n.ID] = true
				fmt.Fprintf(w, "%s #%d [%s] %s\n", n.CreatedAt.Local().Format(time.TimeOnly), n.ID, n.Kind, n.Title)
			}
			if len(v.Notifications) == 0 {
				seen = make(map[int64]bool)
			}
			last = v
			first = false
		}
	}
}

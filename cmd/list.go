package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"
	ltable "github.com/charmbracelet/lipgloss/table"
	"github.com/grovetools/notifsync/cli"
	"github.com/grovetools/notifsync/pkg/models"
	"github.com/grovetools/notifsync/tui/theme"
	"github.com/spf13/cobra"
)

// NewListCmd creates the `list` command.
func NewListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List notifications from the server",
		Long: `Fetches the admin notifications once and prints them newest first.

Examples:
  # Everything
  notifsync list

  # Only what still needs attention, as JSON
  notifsync list --unread --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			defer e.close()

			svc, err := e.service()
			if err != nil {
				return err
			}

			unread, _ := cmd.Flags().GetBool("unread")
			var list []models.Notification
			if unread {
				list, err = svc.FetchUnread(cmd.Context())
			} else {
				list, err = svc.FetchAll(cmd.Context())
			}
			if err != nil {
				return err
			}

			if cli.GetOptions(cmd).JSONOutput {
				return writeJSON(cmd.OutOrStdout(), wireList(list))
			}
			renderList(cmd.OutOrStdout(), list, time.Now())
			return nil
		},
	}
	cmd.Flags().BoolP("unread", "u", false, "Only show unread notifications")
	return cmd
}

func wireList(list []models.Notification) []models.Wire {
	out := make([]models.Wire, len(list))
	for i, n := range list {
		out[i] = n.ToWire()
	}
	return out
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func renderList(w io.Writer, list []models.Notification, now time.Time) {
	t := theme.DefaultTheme
	if len(list) == 0 {
		fmt.Fprintln(w, t.Muted.Render("No notifications"))
		return
	}

	table := ltable.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(t.Colors.Border)).
		Headers("ID", "", "KIND", "TITLE", "AGE").
		StyleFunc(func(row, col int) lipgloss.Style {
			base := lipgloss.NewStyle().Padding(0, 1)
			if row == ltable.HeaderRow {
				return base.Bold(true)
			}
			if row >= 0 && row < len(list) && !list[row].IsRead {
				return base.Bold(true)
			}
			return base.Faint(true)
		})

	for _, n := range list {
		marker := ""
		if !n.IsRead {
			marker = "●"
		}
		label := n.KindLabel
		if label == "" {
			label = n.Kind.Label()
		}
		table.Row(fmt.Sprint(n.ID), marker, label, n.Title, n.Age(now))
	}
	fmt.Fprintln(w, table.Render())
}

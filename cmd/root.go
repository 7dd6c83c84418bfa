package cmd

import (
	"github.com/grovetools/notifsync/cli"
	"github.com/spf13/cobra"
)

// NewRootCmd assembles the notifsync command tree.
func NewRootCmd() *cobra.Command {
	root := cli.NewStandardCommand(
		"notifsync",
		"Keep admin notifications in sync with the server",
	)
	root.Long = `Keeps the admin notification list and unread counter current by combining
a snapshot from the REST API with the STOMP push channel.

Examples:
  notifsync login
  notifsync watch
  notifsync list --unread`

	root.AddCommand(
		NewWatchCmd(),
		NewListCmd(),
		NewCountCmd(),
		NewReadCmd(),
		NewReadAllCmd(),
		NewDeleteCmd(),
		NewLoginCmd(),
		NewLogoutCmd(),
		NewConfigCmd(),
		NewLogsCmd(),
		cli.NewVersionCommand("notifsync"),
	)
	return root
}

package cmd

import (
	"fmt"

	"github.com/grovetools/notifsync/cli"
	"github.com/grovetools/notifsync/logging"
	"github.com/spf13/cobra"
)

// NewCountCmd creates the `count` command.
func NewCountCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "count",
		Short: "Print the number of unread notifications",
		Args:  cobra.NoArgs,
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
			count, err := svc.FetchUnreadCount(cmd.Context())
			if err != nil {
				return err
			}
			if cli.GetOptions(cmd).JSONOutput {
				return writeJSON(cmd.OutOrStdout(), map[string]int{"count": count})
			}
			fmt.Fprintln(cmd.OutOrStdout(), count)
			return nil
		},
	}
}

// NewReadCmd creates the `read` command.
func NewReadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "read <id>...",
		Short: "Mark notifications as read",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return forEachID(cmd, args, "Marked %d as read", func(e *env, id int64) error {
				svc, err := e.service()
				if err != nil {
					return err
				}
				return svc.MarkRead(cmd.Context(), id)
			})
		},
	}
}

// NewDeleteCmd creates the `delete` command.
func NewDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>...",
		Aliases: []string{"rm"},
		Short:   "Delete notifications",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return forEachID(cmd, args, "Deleted %d", func(e *env, id int64) error {
				svc, err := e.service()
				if err != nil {
					return err
				}
				return svc.Delete(cmd.Context(), id)
			})
		},
	}
}

// NewReadAllCmd creates the `read-all` command.
func NewReadAllCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "read-all",
		Short: "Mark every notification as read",
		Args:  cobra.NoArgs,
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
			if err := svc.MarkAllRead(cmd.Context()); err != nil {
				return err
			}
			logging.NewPrettyLogger().WithWriter(cmd.OutOrStdout()).Success("All notifications marked as read")
			return nil
		},
	}
}

// forEachID parses every id first, then applies fn in order and stops at the
// first failure.
func forEachID(cmd *cobra.Command, args []string, done string, fn func(*env, int64) error) error {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := parseID(arg)
		if err != nil {
			return err
		}
		ids = append(ids, id)
	}

	e, err := loadEnv(cmd)
	if err != nil {
		return err
	}
	defer e.close()

	pretty := logging.NewPrettyLogger().WithWriter(cmd.OutOrStdout())
	for _, id := range ids {
		if err := fn(e, id); err != nil {
			return err
		}
		pretty.Success(fmt.Sprintf(done, id))
	}
	return nil
}

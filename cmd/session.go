package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/grovetools/notifsync/cli"
	"github.com/grovetools/notifsync/errors"
	"github.com/grovetools/notifsync/logging"
	"github.com/grovetools/notifsync/pkg/dataservice"
	"github.com/grovetools/notifsync/pkg/session"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// NewLoginCmd creates the `login` command.
func NewLoginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store the admin bearer token",
		Long: `Saves the admin token where the configured session source reads it. A
running 'notifsync watch' picks it up and starts the live session.

Examples:
  # Prompt for the token
  notifsync login

  # Read it from a pipe
  pass show shop/admin-token | notifsync login --token -`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cli.LoadConfig(cmd)
			if err != nil {
				return err
			}

			token, _ := cmd.Flags().GetString("token")
			token, err = readToken(cmd, token)
			if err != nil {
				return err
			}
			if token == "" {
				return errors.New(errors.ErrCodeInvalidInput, "empty token")
			}

			if verify, _ := cmd.Flags().GetBool("verify"); verify {
				svc := dataservice.NewRemote(cfg.API.BaseURL, dataservice.StaticToken(token), cfg.API.Timeout)
				if _, err := svc.FetchUnreadCount(cmd.Context()); err != nil {
					return err
				}
			}

			if err := session.Store(cfg.Session, token); err != nil {
				return err
			}
			logging.NewPrettyLogger().WithWriter(cmd.OutOrStdout()).
				Success(fmt.Sprintf("Logged in (session source: %s)", cfg.Session.Source))
			return nil
		},
	}
	cmd.Flags().String("token", "", "Token value, or - to read it from stdin")
	cmd.Flags().Bool("verify", true, "Check the token against the server before storing it")
	return cmd
}

// NewLogoutCmd creates the `logout` command.
func NewLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the stored admin token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cli.LoadConfig(cmd)
			if err != nil {
				return err
			}
			if err := session.Clear(cfg.Session); err != nil {
				return err
			}
			logging.NewPrettyLogger().WithWriter(cmd.OutOrStdout()).Success("Logged out")
			return nil
		},
	}
}

// readToken resolves the --token flag: a literal, "-" for stdin, or a
// password prompt on a terminal.
func readToken(cmd *cobra.Command, flag string) (string, error) {
	switch {
	case flag == "-":
		return readLine(cmd.InOrStdin())
	case flag != "":
		return strings.TrimSpace(flag), nil
	}

	if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(cmd.ErrOrStderr(), "Admin token: ")
		data, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(data)), nil
	}
	return readLine(cmd.InOrStdin())
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

package cmd

import (
	"fmt"
	"os"

	"github.com/grovetools/notifsync/cli"
	"github.com/grovetools/notifsync/config"
	"github.com/grovetools/notifsync/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// NewConfigCmd creates the `config` command group.
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the notifsync configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the merged configuration with defaults applied",
		Long: `Shows the configuration after merging the layers:
1. Global config ($XDG_CONFIG_HOME/notifsync/notifsync.yml)
2. Project config (notifsync.yml found upward from the working directory)`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cli.LoadConfig(cmd)
			if err != nil {
				return err
			}
			if cli.GetOptions(cmd).JSONOutput {
				return writeJSON(cmd.OutOrStdout(), cfg)
			}
			data, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), string(data))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "schema",
		Short: "Print the JSON Schema of notifsync.yml",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := config.GenerateSchema()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print where configuration is read from",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "global:  %s\n", config.GlobalConfigPath())

			cwd, err := os.Getwd()
			if err != nil {
				return err
			}
			project, err := config.FindConfigFile(cwd)
			switch {
			case err == nil:
				fmt.Fprintf(cmd.OutOrStdout(), "project: %s\n", project)
			case errors.Is(err, errors.ErrCodeConfigNotFound):
				fmt.Fprintln(cmd.OutOrStdout(), "project: (none)")
			default:
				return err
			}
			return nil
		},
	})

	return cmd
}

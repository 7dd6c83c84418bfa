// Package cmd holds the notifsync subcommands.
package cmd

import (
	"strconv"

	"github.com/grovetools/notifsync/cli"
	"github.com/grovetools/notifsync/config"
	"github.com/grovetools/notifsync/errors"
	"github.com/grovetools/notifsync/pkg/dataservice"
	"github.com/grovetools/notifsync/pkg/session"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// env is what most commands need: the merged config, a logger and the session.
type env struct {
	cfg      *config.Config
	logger   *logrus.Entry
	provider session.Provider
}

func loadEnv(cmd *cobra.Command) (*env, error) {
	cfg, err := cli.LoadConfig(cmd)
	if err != nil {
		return nil, err
	}
	logger := cli.GetLogger(cmd)
	provider, err := session.Open(cfg.Session, logger)
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, logger: logger, provider: provider}, nil
}

func (e *env) close() {
	if err := e.provider.Close(); err != nil {
		e.logger.WithError(err).Debug("Closing session provider")
	}
}

// service returns the REST client, or NOT_AUTHENTICATED without a session.
func (e *env) service() (dataservice.Service, error) {
	if !e.provider.IsAuthenticated() {
		return nil, errors.NotAuthenticated()
	}
	return dataservice.NewRemote(e.cfg.API.BaseURL, e.provider, e.cfg.API.Timeout), nil
}

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New(errors.ErrCodeInvalidInput, "notification id must be a positive integer").
			WithDetail("id", arg)
	}
	return id, nil
}

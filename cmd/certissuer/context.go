package main

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"certissuer/internal/apiclient"
	"certissuer/internal/config"
	"certissuer/internal/logging"
)

// apiTimeout bounds control API calls except batch triggers, which wait for
// the batch to finish.
const apiTimeout = 10 * time.Second

const cliLogFileName = "certissuer-cli.log"

type commandContext struct {
	configFlag *string
	jsonFlag   *bool

	configOnce   sync.Once
	config       *config.Config
	configPath   string
	configExists bool
	configErr    error
}

func newCommandContext(configFlag *string, jsonFlag *bool) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		jsonFlag:   jsonFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, exists, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = resolved
		c.configExists = exists
	})
	return c.config, c.configErr
}

func (c *commandContext) jsonOutput() bool {
	return c.jsonFlag != nil && *c.jsonFlag
}

// logger builds the logger for in-process commands. Human-oriented output
// keeps stderr at warn unless debug is configured; the full stream goes to
// <log_dir>/certissuer-cli.log.
func (c *commandContext) logger(cfg *config.Config) (*slog.Logger, error) {
	level := cfg.Logging.Level
	if level != "debug" {
		level = "warn"
	}
	logPath := filepath.Join(cfg.Paths.LogDir, cliLogFileName)
	return logging.New(logging.Options{
		Level:            level,
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{"stderr", logPath},
		ErrorOutputPaths: []string{"stderr", logPath},
	})
}

func (c *commandContext) apiClient(timeout time.Duration) (*apiclient.Client, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return apiclient.New(cfg.Daemon.APIBind, cfg.Daemon.APIToken, timeout)
}

func wrapAPIError(err error, bind string) error {
	switch {
	case apiclient.IsAPIUnavailable(err):
		return fmt.Errorf("connect to daemon: nothing is listening on %s; start it with `certissuer daemon`", bind)
	case errors.Is(err, apiclient.ErrUnauthorized):
		return fmt.Errorf("connect to daemon: token rejected; check daemon.api_token or CERTISSUER_API_TOKEN")
	default:
		return err
	}
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

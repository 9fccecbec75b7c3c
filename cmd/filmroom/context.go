package main

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"filmroom/internal/config"
	"filmroom/internal/logging"
	"filmroom/internal/services"
	"filmroom/internal/services/gemini"
	"filmroom/internal/vectorstore"
)

// skipConfigLoad marks commands that must run without a loadable config.
const skipConfigLoad = "skipConfigLoad"

type commandContext struct {
	configFlag   *string
	logLevelFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag, logLevelFlag *string) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		logLevelFlag: logLevelFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, _, _, err := config.Load(c.configPath())
		if err != nil {
			c.configErr = err
			return
		}
		if c.logLevelFlag != nil && strings.TrimSpace(*c.logLevelFlag) != "" {
			cfg.Logging.Level = strings.TrimSpace(*c.logLevelFlag)
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) configPath() string {
	if c.configFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.configFlag)
}

func (c *commandContext) logger(cfg *config.Config) (*slog.Logger, logging.CloseFunc, error) {
	return logging.NewFromConfig(cfg)
}

// openGateway builds the model gateway. A missing credential is an input
// error: nothing can be retried until the operator supplies a key.
func (c *commandContext) openGateway(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*gemini.Gateway, error) {
	if err := cfg.RequireGemini(); err != nil {
		return nil, services.Wrap(services.ErrInput, "input", "credentials", "", err)
	}
	backend, err := gemini.NewGenAIBackend(ctx, gemini.BackendConfigFrom(cfg))
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "input", "gemini_client", "", err)
	}
	return gemini.New(backend, gemini.ConfigFrom(cfg), gemini.WithLogger(logger)), nil
}

func (c *commandContext) openStore(ctx context.Context, cfg *config.Config) (vectorstore.Store, error) {
	store, err := vectorstore.Open(ctx, cfg)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "input", "open_vector_store", cfg.VectorStore.Backend, err)
	}
	return store, nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations[skipConfigLoad] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}

// Package cli holds the querai command tree.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"querai-chat/internal/app"
	"querai-chat/internal/config"
	"querai-chat/pkg/logger"
)

var (
	version = "dev"
	commit  = "unknown"
)

type options struct {
	configPath string
	logLevel   string
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "querai",
		Short: "Chat sessions over your data sources",
		Long: `querai keeps natural-language chat sessions against a SQL-generation backend.

It serves the chat core over HTTP, runs an interactive terminal chat, and
manages the stored session list.`,
		Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to config file (YAML)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override log level")
	root.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	root.AddCommand(
		newServeCommand(opts),
		newChatCommand(opts),
		newSessionsCommand(opts),
	)
	return root
}

func (o *options) load() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if o.configPath != "" {
		cfg, err = config.Load(o.configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	} else {
		cfg = config.Default()
	}

	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	if err := logger.Init(cfg.Log.Level, cfg.Log.Format); err != nil {
		return nil, fmt.Errorf("failed to init logger: %w", err)
	}
	return cfg, nil
}

func (o *options) openApp() (*app.App, error) {
	cfg, err := o.load()
	if err != nil {
		return nil, err
	}
	return app.New(cfg)
}

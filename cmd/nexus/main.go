// Package main provides the CLI entry point for the agent gateway.
//
// main.go wires the cobra command tree: serve runs the gateway until
// signalled, status reports the state of a configured instance without
// starting one, and migrate brings persisted stores up to date.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/rexlunae/agentgw/internal/sandbox"
	"github.com/rexlunae/agentgw/internal/transport"
	"github.com/rexlunae/agentgw/internal/vault"
	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	configPath  string
	bindAddr    string
	port        int
	settingsDir string
)

func main() {
	if err := buildRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "nexus",
		Short:         "agentgw mediates LLM providers, local tools, and chat transports",
		Version:       fmt.Sprintf("%s (%s, built %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to gateway.yaml (default: $XDG_CONFIG_HOME/agentgw/gateway.yaml)")
	root.PersistentFlags().StringVar(&bindAddr, "bind", "", "override the daemon's bind address")
	root.PersistentFlags().IntVar(&port, "port", 0, "override the daemon's port")
	root.PersistentFlags().StringVar(&settingsDir, "settings-dir", "", "override the tool workspace directory")

	root.AddCommand(buildServeCmd())
	root.AddCommand(buildStatusCmd())
	root.AddCommand(buildMigrateCmd())
	return root
}

func newLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

func resolvedConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return defaultConfigPath()
}

func loadConfigWithOverrides() (*Config, error) {
	cfg, err := loadConfig(resolvedConfigPath())
	if err != nil {
		return nil, err
	}
	if bindAddr != "" {
		cfg.Server.Bind = bindAddr
	}
	if port != 0 {
		cfg.Server.Port = port
	}
	if settingsDir != "" {
		cfg.Tools.Workspace = settingsDir
	}
	return cfg, nil
}

func buildServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the gateway: provider loop, tool registry, transport, and cron scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := newLogger()

			cfg, err := loadConfigWithOverrides()
			if err != nil {
				return err
			}

			gw, err := buildGateway(cfg, log)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			log.Info("gateway starting",
				"bind", cfg.Server.Bind,
				"port", cfg.Server.Port,
				"workspace", cfg.Tools.Workspace,
				"provider", cfg.Provider.Name,
			)
			err = gw.Run(ctx)
			log.Info("gateway stopped")
			return err
		},
	}
}

func buildStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Report the configuration and sandbox state without starting the gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfigWithOverrides()
			if err != nil {
				return err
			}

			fmt.Printf("config:       %s\n", resolvedConfigPath())
			fmt.Printf("workspace:    %s\n", cfg.Tools.Workspace)
			fmt.Printf("provider:     %s\n", defaultString(cfg.Provider.Name, "anthropic"))
			fmt.Printf("sandbox:      %s\n", sandbox.DetectBackend())
			fmt.Printf("vault:        %s\n", cfg.Vault.Path)

			v := vault.New(cfg.Vault.Path, cfg.Vault.KeyFile)
			fmt.Printf("vault locked: %v\n", !v.IsUnlocked())

			fmt.Printf("transport:    %s\n", describeTransport(cfg))
			return nil
		},
	}
}

func buildMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Ensure the media index and other persisted stores are at the current schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfigWithOverrides()
			if err != nil {
				return err
			}

			idx, err := transport.OpenMediaIndex(cfg.Tools.MediaIndexDB, cfg.Tools.MediaCacheDir)
			if err != nil {
				return fmt.Errorf("migrate media index: %w", err)
			}
			defer idx.Close()

			fmt.Printf("media index up to date: %s\n", cfg.Tools.MediaIndexDB)
			return nil
		},
	}
}

func describeTransport(cfg *Config) string {
	if cfg.Transport.WebSocketURL == "" {
		return "none configured (cron-only)"
	}
	return cfg.Transport.WebSocketURL
}

func defaultString(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

// Package main provides the CLI entry point for the agent gateway.
//
// serve.go wires the vault, sandboxed tool registry, provider adapter,
// loop engine, and transport frontend into a running gateway process.
package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rexlunae/agentgw/internal/cron"
	"github.com/rexlunae/agentgw/internal/loopengine"
	"github.com/rexlunae/agentgw/internal/media/transcribe"
	"github.com/rexlunae/agentgw/internal/provideradapter"
	"github.com/rexlunae/agentgw/internal/toolregistry"
	croncfgtool "github.com/rexlunae/agentgw/internal/tools/cron"
	"github.com/rexlunae/agentgw/internal/tools/exec"
	"github.com/rexlunae/agentgw/internal/tools/files"
	mediatools "github.com/rexlunae/agentgw/internal/tools/media"
	"github.com/rexlunae/agentgw/internal/tools/memorysearch"
	"github.com/rexlunae/agentgw/internal/tools/webfetch"
	"github.com/rexlunae/agentgw/internal/tools/websearch"
	"github.com/rexlunae/agentgw/internal/transport"
	"github.com/rexlunae/agentgw/internal/tts"
	"github.com/rexlunae/agentgw/internal/vault"
)

// gateway bundles the long-lived components a running server needs to shut
// down cleanly.
type gateway struct {
	vault     *vault.Vault
	scheduler *cron.Scheduler
	pollLoop  *transport.PollLoop
	log       *slog.Logger
}

// buildGateway wires every component named in the config into a runnable
// gateway: tool registry, provider adapter, loop engine, transport
// frontend, and cron scheduler.
func buildGateway(cfg *Config, log *slog.Logger) (*gateway, error) {
	v := vault.New(cfg.Vault.Path, cfg.Vault.KeyFile)
	if pw := vaultPasswordFromEnv(); pw != "" {
		if err := v.Unlock(pw); err != nil {
			return nil, fmt.Errorf("unlock vault: %w", err)
		}
	}

	scheduler, err := cron.NewScheduler(cfg.Cron)
	if err != nil {
		return nil, fmt.Errorf("build cron scheduler: %w", err)
	}

	registry, err := buildToolRegistry(cfg, v, scheduler, log)
	if err != nil {
		return nil, fmt.Errorf("build tool registry: %w", err)
	}

	provider, err := buildProvider(cfg.Provider)
	if err != nil {
		return nil, fmt.Errorf("build provider: %w", err)
	}

	engine := loopengine.New(provider, registry, loopengine.Config{
		MaxTokens: cfg.Transport.MaxTokens,
	})

	var pollLoop *transport.PollLoop
	if cfg.Transport.WebSocketURL != "" {
		messenger := transport.NewWebSocketMessenger(cfg.Transport.WebSocketURL)
		pollLoop = transport.NewPollLoop(messenger, engine, transport.PollLoopConfig{
			PollInterval: cfg.Transport.PollInterval,
			Model:        cfg.Transport.Model,
			SystemPrompt: cfg.Transport.SystemPrompt,
		}, log)
	}

	return &gateway{vault: v, scheduler: scheduler, pollLoop: pollLoop, log: log}, nil
}

// Run starts every configured component and blocks until ctx is cancelled.
func (g *gateway) Run(ctx context.Context) error {
	errCh := make(chan error, 2)
	running := 0

	running++
	go func() { errCh <- g.scheduler.Start(ctx) }()

	if g.pollLoop != nil {
		running++
		go func() { errCh <- g.pollLoop.Run(ctx) }()
	} else {
		g.log.Warn("no transport configured; running cron-only")
		running++
		go func() {
			<-ctx.Done()
			errCh <- nil
		}()
	}

	var firstErr error
	for i := 0; i < running; i++ {
		if err := <-errCh; err != nil && err != context.Canceled {
			g.log.Error("gateway component stopped", "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// buildToolRegistry registers every built-in tool the gateway ships, scoped
// to the configured workspace and sandbox backend.
func buildToolRegistry(cfg *Config, v *vault.Vault, scheduler *cron.Scheduler, log *slog.Logger) (*toolregistry.Registry, error) {
	registry := toolregistry.New()

	fileCfg := files.Config{
		Workspace:     cfg.Tools.Workspace,
		MaxReadBytes:  cfg.Tools.Files.MaxReadBytes,
		ProtectedDirs: cfg.Tools.Files.ProtectedDirs,
		DenyRead:      cfg.Tools.Files.DenyRead,
		DenyWrite:     cfg.Tools.Files.DenyWrite,
	}
	registry.Register(files.NewReadTool(fileCfg))
	registry.Register(files.NewWriteTool(fileCfg))
	registry.Register(files.NewEditTool(fileCfg))
	registry.Register(files.NewApplyPatchTool(fileCfg))

	execManager := exec.NewManager(cfg.Tools.Workspace)
	registry.Register(exec.NewExecTool("exec", execManager))
	registry.Register(exec.NewProcessTool(execManager))

	registry.Register(webfetch.NewTool(&webfetch.Config{Vault: v}))
	registry.Register(websearch.NewWebSearchTool(&websearch.Config{
		SearXNGURL:         cfg.Tools.WebSearch.SearXNGURL,
		BraveAPIKey:        cfg.Tools.WebSearch.BraveAPIKey,
		DefaultBackend:     websearch.SearchBackend(cfg.Tools.WebSearch.Backend),
		ExtractContent:     cfg.Tools.WebSearch.ExtractContent,
		DefaultResultCount: cfg.Tools.WebSearch.DefaultResultCount,
		CacheTTL:           cfg.Tools.WebSearch.CacheTTLSeconds,
	}))
	registry.Register(websearch.NewWebFetchTool(&websearch.FetchConfig{}))

	registry.Register(memorysearch.NewMemorySearchTool(&memorysearch.Config{
		Directory:     cfg.Tools.MemorySearch.Directory,
		MemoryFile:    cfg.Tools.MemorySearch.MemoryFile,
		WorkspacePath: cfg.Tools.Workspace,
		MaxResults:    cfg.Tools.MemorySearch.MaxResults,
		MaxSnippetLen: cfg.Tools.MemorySearch.MaxSnippetLen,
		Mode:          cfg.Tools.MemorySearch.Mode,
	}))
	registry.Register(memorysearch.NewMemoryGetTool(&memorysearch.Config{
		Directory:     cfg.Tools.MemorySearch.Directory,
		MemoryFile:    cfg.Tools.MemorySearch.MemoryFile,
		WorkspacePath: cfg.Tools.Workspace,
	}))

	mediaIndex, err := transport.OpenMediaIndex(cfg.Tools.MediaIndexDB, cfg.Tools.MediaCacheDir)
	if err != nil {
		return nil, fmt.Errorf("open media index: %w", err)
	}

	if cfg.Tools.TTS.Enabled {
		ttsCfg := cfg.Tools.TTS
		registry.Register(mediatools.NewSpeakTool(mediaIndex, &ttsCfg))
	}
	if tr, err := transcribe.New(transcribe.Config{Provider: "openai", APIKey: cfg.Provider.APIKey, Logger: log}); err == nil {
		registry.Register(mediatools.NewTranscribeTool(mediaIndex, tr))
	} else {
		log.Warn("transcription tool disabled", "error", err)
	}

	registry.Register(croncfgtool.NewTool(scheduler))

	return registry, nil
}

// buildProvider selects and constructs the configured LLM provider.
func buildProvider(cfg ProviderConfig) (provideradapter.LLMProvider, error) {
	switch cfg.Name {
	case "", "anthropic":
		return provideradapter.NewAnthropicProvider(provideradapter.AnthropicConfig{
			APIKey:       cfg.APIKey,
			BaseURL:      cfg.BaseURL,
			DefaultModel: cfg.DefaultModel,
		})
	case "openai":
		return provideradapter.NewOpenAIProvider(cfg.APIKey), nil
	case "google":
		return provideradapter.NewGoogleProvider(provideradapter.GoogleConfig{
			APIKey:       cfg.APIKey,
			DefaultModel: cfg.DefaultModel,
		})
	case "bedrock":
		return provideradapter.NewBedrockProvider(context.Background(), provideradapter.BedrockConfig{
			Region:       cfg.Region,
			DefaultModel: cfg.DefaultModel,
		})
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Name)
	}
}

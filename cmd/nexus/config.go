// Package main provides the CLI entry point for the agent gateway.
//
// config.go loads the YAML gateway configuration: provider credentials,
// tool settings, the transport frontend, and scheduled jobs.
package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rexlunae/agentgw/internal/cron"
	"github.com/rexlunae/agentgw/internal/tts"
	"gopkg.in/yaml.v3"
)

// Config is the top-level gateway configuration loaded from YAML.
type Config struct {
	Provider  ProviderConfig  `yaml:"provider"`
	Transport TransportConfig `yaml:"transport"`
	Tools     ToolsConfig     `yaml:"tools"`
	Vault     VaultConfig     `yaml:"vault"`
	Cron      cron.CronConfig `yaml:"cron"`
	Server    ServerConfig    `yaml:"server"`
}

// ServerConfig controls the daemon's own bind address, independent of any
// transport frontend it drives.
type ServerConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

// ProviderConfig selects and configures the LLM backend the loop engine
// talks to. Name picks the backend; the other fields configure it.
type ProviderConfig struct {
	// Name is one of "anthropic", "openai", "google", "bedrock".
	Name         string `yaml:"name"`
	APIKey       string `yaml:"api_key"`
	BaseURL      string `yaml:"base_url,omitempty"`
	DefaultModel string `yaml:"default_model,omitempty"`
	Region       string `yaml:"region,omitempty"`
}

// TransportConfig configures the poll loop and its messenger frontend.
type TransportConfig struct {
	WebSocketURL string        `yaml:"websocket_url"`
	PollInterval time.Duration `yaml:"poll_interval"`
	Model        string        `yaml:"model"`
	SystemPrompt string        `yaml:"system_prompt"`
	MaxTokens    int           `yaml:"max_tokens"`
}

// ToolsConfig configures every built-in tool wired into the registry.
type ToolsConfig struct {
	Workspace     string             `yaml:"workspace"`
	Files         FilesToolConfig    `yaml:"files"`
	WebSearch     WebSearchConfig    `yaml:"websearch"`
	MemorySearch  MemorySearchConfig `yaml:"memorysearch"`
	MediaCacheDir string             `yaml:"media_cache_dir"`
	MediaIndexDB  string             `yaml:"media_index_db"`
	TTS           tts.Config         `yaml:"tts"`
}

// FilesToolConfig restricts the file read/write/edit/patch tools to the
// workspace and an explicit deny list.
type FilesToolConfig struct {
	MaxReadBytes  int      `yaml:"max_read_bytes"`
	ProtectedDirs []string `yaml:"protected_dirs"`
	DenyRead      []string `yaml:"deny_read"`
	DenyWrite     []string `yaml:"deny_write"`
}

// WebSearchConfig configures the web search tool's backend.
type WebSearchConfig struct {
	Backend            string `yaml:"backend"`
	SearXNGURL         string `yaml:"searxng_url,omitempty"`
	BraveAPIKey        string `yaml:"brave_api_key,omitempty"`
	ExtractContent     bool   `yaml:"extract_content"`
	DefaultResultCount int    `yaml:"default_result_count"`
	CacheTTLSeconds    int    `yaml:"cache_ttl_seconds"`
}

// MemorySearchConfig configures the local memory search tool.
type MemorySearchConfig struct {
	Directory     string `yaml:"directory"`
	MemoryFile    string `yaml:"memory_file"`
	MaxResults    int    `yaml:"max_results"`
	MaxSnippetLen int    `yaml:"max_snippet_len"`
	Mode          string `yaml:"mode"`
}

// VaultConfig locates the encrypted secrets store.
type VaultConfig struct {
	Path    string `yaml:"path"`
	KeyFile string `yaml:"key_file"`
}

const (
	envModelAPIKey    = "RUSTYCLAW_MODEL_API_KEY"
	envVaultPassword  = "RUSTYCLAW_VAULT_PASSWORD"
	defaultConfigName = "gateway.yaml"
)

// defaultConfigPath returns the per-user default config path, honoring
// XDG_CONFIG_HOME when set.
func defaultConfigPath() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return dir + "/agentgw/" + defaultConfigName
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return defaultConfigName
	}
	return home + "/.config/agentgw/" + defaultConfigName
}

// loadConfig reads and parses the YAML config at path, applying defaults
// and environment overrides. RUSTYCLAW_MODEL_API_KEY and
// RUSTYCLAW_VAULT_PASSWORD convey secrets from the parent process to the
// daemon without ever touching disk.
func loadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found at %s (pass --config or set defaults)", path)
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if key := strings.TrimSpace(os.Getenv(envModelAPIKey)); key != "" {
		cfg.Provider.APIKey = key
	}
	if cfg.Server.Bind == "" {
		cfg.Server.Bind = "127.0.0.1"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8787
	}
	if cfg.Tools.Workspace == "" {
		cfg.Tools.Workspace = "."
	}
	if cfg.Vault.Path == "" {
		cfg.Vault.Path = cfg.Tools.Workspace + "/.agentgw/vault.json"
	}
	if cfg.Tools.MediaCacheDir == "" {
		cfg.Tools.MediaCacheDir = cfg.Tools.Workspace + "/.agentgw/media"
	}
	if cfg.Tools.MediaIndexDB == "" {
		cfg.Tools.MediaIndexDB = cfg.Tools.Workspace + "/.agentgw/media.db"
	}

	return &cfg, nil
}

// vaultPasswordFromEnv returns the vault unlock password conveyed by the
// parent process, if any.
func vaultPasswordFromEnv() string {
	return os.Getenv(envVaultPassword)
}

package main

import "testing"

func TestBuildRootCmdIncludesSubcommands(t *testing.T) {
	cmd := buildRootCmd()
	names := map[string]bool{}
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}

	required := []string{"serve", "status", "migrate"}
	for _, name := range required {
		if !names[name] {
			t.Fatalf("expected subcommand %q to be registered", name)
		}
	}
}

func TestDefaultStringFallsBackWhenEmpty(t *testing.T) {
	if got := defaultString("", "anthropic"); got != "anthropic" {
		t.Fatalf("expected fallback, got %q", got)
	}
	if got := defaultString("openai", "anthropic"); got != "openai" {
		t.Fatalf("expected passthrough, got %q", got)
	}
}

func TestDescribeTransportReportsCronOnly(t *testing.T) {
	cfg := &Config{}
	if got := describeTransport(cfg); got != "none configured (cron-only)" {
		t.Fatalf("expected cron-only message, got %q", got)
	}
	cfg.Transport.WebSocketURL = "wss://example.invalid/ws"
	if got := describeTransport(cfg); got != cfg.Transport.WebSocketURL {
		t.Fatalf("expected websocket url passthrough, got %q", got)
	}
}

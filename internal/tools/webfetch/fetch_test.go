package webfetch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rexlunae/agentgw/internal/vault"
)

func TestToolGetSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("hello from web_request"))
	}))
	defer server.Close()

	tool := NewToolForTesting(nil)
	params, _ := json.Marshal(map[string]interface{}{"url": server.URL})
	result, err := tool.Execute(context.Background(), params)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if result.IsError {
		t.Fatalf("expected success, got error: %s", result.Content)
	}
	if !strings.Contains(result.Content, "hello from web_request") {
		t.Fatalf("expected body in result, got: %s", result.Content)
	}
}

func TestToolPostSendsBody(t *testing.T) {
	var receivedBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := make([]byte, 1024)
		n, _ := r.Body.Read(buf)
		receivedBody = string(buf[:n])
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	tool := NewToolForTesting(nil)
	params, _ := json.Marshal(map[string]interface{}{
		"url":    server.URL,
		"method": "POST",
		"body":   "payload data",
	})
	result, err := tool.Execute(context.Background(), params)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if result.IsError {
		t.Fatalf("expected success, got error: %s", result.Content)
	}
	if receivedBody != "payload data" {
		t.Fatalf("expected server to receive posted body, got %q", receivedBody)
	}
}

func TestToolRejectsPrivateAddressByDefault(t *testing.T) {
	tool := NewTool(nil)
	params, _ := json.Marshal(map[string]interface{}{"url": "http://127.0.0.1:1"})
	result, err := tool.Execute(context.Background(), params)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !result.IsError {
		t.Fatal("expected SSRF rejection for loopback address")
	}
}

func TestToolRejectsNonHTTPScheme(t *testing.T) {
	tool := NewToolForTesting(nil)
	params, _ := json.Marshal(map[string]interface{}{"url": "file:///etc/passwd"})
	result, err := tool.Execute(context.Background(), params)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !result.IsError {
		t.Fatal("expected rejection of non-http(s) scheme")
	}
}

func TestToolPersistsCookiesThroughVault(t *testing.T) {
	dir := t.TempDir()
	v := vault.New(filepath.Join(dir, "secrets.json"), filepath.Join(dir, "key"))
	if err := v.Unlock("test-password"); err != nil {
		t.Fatalf("Unlock() error = %v", err)
	}

	var sawCookie bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie("session"); err == nil && c.Value == "abc123" {
			sawCookie = true
		}
		if !sawCookie {
			http.SetCookie(w, &http.Cookie{Name: "session", Value: "abc123", Path: "/"})
		}
	}))
	defer server.Close()

	tool := NewToolForTesting(&Config{Vault: v})
	params, _ := json.Marshal(map[string]interface{}{"url": server.URL})

	if _, err := tool.Execute(context.Background(), params); err != nil {
		t.Fatalf("first Execute() error = %v", err)
	}
	if _, err := tool.Execute(context.Background(), params); err != nil {
		t.Fatalf("second Execute() error = %v", err)
	}
	if !sawCookie {
		t.Fatal("expected second request to carry the cookie set by the first, via the vault-backed jar")
	}
}

// Package webfetch implements a raw HTTP GET/POST tool with SSRF
// protection and vault-backed cookie persistence, distinct from
// websearch's read-only content-extraction fetch.
package webfetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rexlunae/agentgw/internal/toolregistry"
	"github.com/rexlunae/agentgw/internal/vault"
)

const (
	defaultMaxResponseBytes = 1 << 20 // 1 MiB
	defaultTimeout          = 15 * time.Second
)

// Config controls web_request defaults.
type Config struct {
	MaxResponseBytes int64
	Timeout          time.Duration
	// Vault, when set, backs the tool's cookie jar so session cookies
	// persist across requests the way any other secret does.
	Vault *vault.Vault
	// skipSSRFCheck allows localhost/private targets in tests.
	skipSSRFCheck bool
}

// Tool implements a raw HTTP request tool (GET/POST/PUT/PATCH/DELETE) with
// SSRF guards and an optional vault-backed cookie jar.
type Tool struct {
	client           *http.Client
	maxResponseBytes int64
	skipSSRFCheck    bool
}

// NewTool creates a web_request tool from the given configuration.
func NewTool(cfg *Config) *Tool {
	c := Config{}
	if cfg != nil {
		c = *cfg
	}
	if c.MaxResponseBytes <= 0 {
		c.MaxResponseBytes = defaultMaxResponseBytes
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}

	t := &Tool{maxResponseBytes: c.MaxResponseBytes, skipSSRFCheck: c.skipSSRFCheck}
	client := &http.Client{
		Timeout: c.Timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 5 {
				return fmt.Errorf("too many redirects")
			}
			return t.checkSSRF(req.URL.String())
		},
	}
	if c.Vault != nil {
		client.Jar = vault.NewJar(c.Vault)
	}
	t.client = client
	return t
}

// NewToolForTesting creates a web_request tool that skips SSRF checks so
// tests can target httptest servers on loopback addresses.
func NewToolForTesting(cfg *Config) *Tool {
	c := Config{}
	if cfg != nil {
		c = *cfg
	}
	c.skipSSRFCheck = true
	return NewTool(&c)
}

func (t *Tool) Name() string { return "web_request" }

func (t *Tool) Category() toolregistry.Category { return toolregistry.CategoryNetwork }

func (t *Tool) Description() string {
	return "Perform an HTTP request (GET/POST/PUT/PATCH/DELETE) against a URL, with cookies persisted across calls."
}

func (t *Tool) Schema() json.RawMessage {
	schema := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"url": map[string]interface{}{
				"type":        "string",
				"description": "URL to request (http/https only).",
			},
			"method": map[string]interface{}{
				"type":        "string",
				"description": "HTTP method (default: GET).",
				"enum":        []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD"},
			},
			"headers": map[string]interface{}{
				"type":        "object",
				"description": "Request headers.",
			},
			"body": map[string]interface{}{
				"type":        "string",
				"description": "Request body (for POST/PUT/PATCH).",
			},
		},
		"required": []string{"url"},
	}
	payload, err := json.Marshal(schema)
	if err != nil {
		return json.RawMessage(`{"type":"object"}`)
	}
	return payload
}

func (t *Tool) Execute(ctx context.Context, params json.RawMessage) (*toolregistry.Result, error) {
	var input struct {
		URL     string            `json:"url"`
		Method  string            `json:"method"`
		Headers map[string]string `json:"headers"`
		Body    string            `json:"body"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return toolError(fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	rawURL := strings.TrimSpace(input.URL)
	if rawURL == "" {
		return toolError("url is required"), nil
	}
	if err := t.checkSSRF(rawURL); err != nil {
		return toolError(err.Error()), nil
	}

	method := strings.ToUpper(strings.TrimSpace(input.Method))
	if method == "" {
		method = http.MethodGet
	}

	var bodyReader io.Reader
	if input.Body != "" {
		bodyReader = strings.NewReader(input.Body)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, bodyReader)
	if err != nil {
		return toolError(fmt.Sprintf("build request: %v", err)), nil
	}
	for key, value := range input.Headers {
		req.Header.Set(key, value)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return toolError(fmt.Sprintf("request failed: %v", err)), nil
	}
	defer resp.Body.Close()

	limited := io.LimitReader(resp.Body, t.maxResponseBytes+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return toolError(fmt.Sprintf("read response: %v", err)), nil
	}
	truncated := int64(len(data)) > t.maxResponseBytes
	if truncated {
		data = data[:t.maxResponseBytes]
	}

	result := map[string]interface{}{
		"url":         rawURL,
		"status":      resp.StatusCode,
		"headers":     firstHeaders(resp.Header),
		"body":        string(data),
		"truncated":   truncated,
		"content_len": len(data),
	}
	payload, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return toolError(fmt.Sprintf("encode result: %v", err)), nil
	}
	return &toolregistry.Result{Content: string(payload)}, nil
}

func firstHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	return out
}

func toolError(message string) *toolregistry.Result {
	payload, err := json.Marshal(map[string]string{"error": message})
	if err != nil {
		return &toolregistry.Result{Content: message, IsError: true}
	}
	return &toolregistry.Result{Content: string(payload), IsError: true}
}

// checkSSRF rejects non-http(s) schemes and requests targeting private,
// loopback, link-local, or cloud-metadata addresses.
func (t *Tool) checkSSRF(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("url scheme must be http or https, got: %s", parsed.Scheme)
	}
	hostname := parsed.Hostname()
	if hostname == "" {
		return fmt.Errorf("url must have a hostname")
	}
	if t.skipSSRFCheck {
		return nil
	}

	ips, err := net.LookupIP(hostname)
	if err != nil {
		// Hostname resolution failures surface at request time instead.
		return nil
	}
	for _, ip := range ips {
		if isBlockedIP(ip) {
			return fmt.Errorf("url resolves to a disallowed address")
		}
	}
	return nil
}

func isBlockedIP(ip net.IP) bool {
	if ip == nil {
		return false
	}
	if ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() ||
		ip.IsPrivate() || ip.IsUnspecified() || ip.IsMulticast() {
		return true
	}
	metadataIP := net.ParseIP("169.254.169.254")
	return ip.Equal(metadataIP)
}

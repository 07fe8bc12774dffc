package provideradapter

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rexlunae/agentgw/internal/retryengine"
	"github.com/rexlunae/agentgw/internal/toolregistry"
	"github.com/rexlunae/agentgw/pkg/models"
	"google.golang.org/genai"
)

// GoogleProvider implements LLMProvider for Google's Gemini API.
type GoogleProvider struct {
	client       *genai.Client
	defaultModel string
	policy       retryengine.Policy
}

// GoogleConfig configures a GoogleProvider.
type GoogleConfig struct {
	APIKey       string
	DefaultModel string
}

// NewGoogleProvider builds a provider from config.
func NewGoogleProvider(cfg GoogleConfig) (*GoogleProvider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("google: API key is required")
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "gemini-2.0-flash"
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("google: create client: %w", err)
	}

	return &GoogleProvider{client: client, defaultModel: cfg.DefaultModel, policy: retryengine.DefaultPolicy()}, nil
}

func (p *GoogleProvider) Name() string { return "google" }

func (p *GoogleProvider) Models() []Model {
	return []Model{
		{ID: "gemini-2.0-flash", Name: "Gemini 2.0 Flash", ContextSize: 1048576, SupportsVision: true, SupportsTools: true},
		{ID: "gemini-2.0-flash-lite", Name: "Gemini 2.0 Flash Lite", ContextSize: 1048576, SupportsVision: true, SupportsTools: true},
		{ID: "gemini-1.5-pro", Name: "Gemini 1.5 Pro", ContextSize: 2097152, SupportsVision: true, SupportsTools: true},
		{ID: "gemini-1.5-flash", Name: "Gemini 1.5 Flash", ContextSize: 1048576, SupportsVision: true, SupportsTools: true},
	}
}

func (p *GoogleProvider) SupportsTools() bool { return true }

func (p *GoogleProvider) model(req *CompletionRequest) string {
	if req.Model != "" {
		return req.Model
	}
	return p.defaultModel
}

// Complete issues a GenerateContentStream call, retried under retryengine's
// policy at the call level (the Gemini SDK exposes a push-style iterator
// rather than an open stream handle, so unlike OpenAI/Anthropic the whole
// call-and-drain sequence is what gets retried, not just the open).
func (p *GoogleProvider) Complete(ctx context.Context, req *CompletionRequest) (<-chan *CompletionChunk, error) {
	chunks := make(chan *CompletionChunk)
	model := p.model(req)

	go func() {
		defer close(chunks)

		contents, err := convertGoogleMessages(req.Messages)
		if err != nil {
			chunks <- &CompletionChunk{Error: NewProviderError("google", model, err)}
			return
		}
		config := p.buildConfig(req)

		_, runErr := retryengine.Run(
			ctx, p.policy, retryengine.MaxAttempts,
			func(ctx context.Context, attempt int) (struct{}, error) {
				iterErr := p.processStream(ctx, p.client.Models.GenerateContentStream(ctx, model, contents, config), chunks)
				return struct{}{}, iterErr
			},
			func(_ struct{}, err error) retryengine.Decision {
				if err == nil {
					return retryengine.Decision{}
				}
				return retryengine.ClassifyError(err)
			},
			nil, nil,
		)
		if runErr != nil {
			chunks <- &CompletionChunk{Error: NewProviderError("google", model, runErr)}
			return
		}

		chunks <- &CompletionChunk{Done: true}
	}()

	return chunks, nil
}

func (p *GoogleProvider) processStream(ctx context.Context, streamIter func(func(*genai.GenerateContentResponse, error) bool), chunks chan<- *CompletionChunk) error {
	var streamErr error
	streamIter(func(resp *genai.GenerateContentResponse, err error) bool {
		select {
		case <-ctx.Done():
			streamErr = ctx.Err()
			return false
		default:
		}
		if err != nil {
			streamErr = err
			return false
		}
		if resp == nil {
			return true
		}
		for _, candidate := range resp.Candidates {
			if candidate == nil || candidate.Content == nil {
				continue
			}
			for _, part := range candidate.Content.Parts {
				if part == nil {
					continue
				}
				if part.Text != "" {
					chunks <- &CompletionChunk{Text: part.Text}
				}
				if part.FunctionCall != nil {
					argsJSON, jsonErr := json.Marshal(part.FunctionCall.Args)
					if jsonErr != nil {
						argsJSON = []byte("{}")
					}
					chunks <- &CompletionChunk{ToolCall: &models.ToolCall{
						ID:    generateGoogleToolCallID(part.FunctionCall.Name),
						Name:  part.FunctionCall.Name,
						Input: argsJSON,
					}}
				}
			}
		}
		return true
	})
	return streamErr
}

func convertGoogleMessages(messages []CompletionMessage) ([]*genai.Content, error) {
	var result []*genai.Content

	for _, msg := range messages {
		if msg.Role == "system" {
			continue
		}

		content := &genai.Content{}
		switch msg.Role {
		case "assistant":
			content.Role = genai.RoleModel
		default:
			content.Role = genai.RoleUser
		}

		if text := msg.Content.FlatText(); text != "" {
			content.Parts = append(content.Parts, &genai.Part{Text: text})
		}

		for _, att := range msg.Content.Attachments() {
			if att.Type != "image" {
				continue
			}
			part, err := convertGoogleAttachment(att)
			if err != nil {
				continue
			}
			content.Parts = append(content.Parts, part)
		}

		for _, tc := range msg.Content.ToolCalls() {
			var args map[string]any
			if err := json.Unmarshal(tc.Input, &args); err != nil {
				args = map[string]any{}
			}
			content.Parts = append(content.Parts, &genai.Part{
				FunctionCall: &genai.FunctionCall{Name: tc.Name, Args: args},
			})
		}

		for _, tr := range msg.Content.ToolResults() {
			var response map[string]any
			if err := json.Unmarshal([]byte(tr.Content), &response); err != nil {
				response = map[string]any{"result": tr.Content, "error": tr.IsError}
			}
			content.Parts = append(content.Parts, &genai.Part{
				FunctionResponse: &genai.FunctionResponse{
					Name:     googleToolNameFromID(tr.ToolCallID, messages),
					Response: response,
				},
			})
		}

		if len(content.Parts) > 0 {
			result = append(result, content)
		}
	}

	return result, nil
}

func convertGoogleAttachment(att models.Attachment) (*genai.Part, error) {
	if strings.HasPrefix(att.URL, "data:") {
		parts := strings.SplitN(att.URL, ",", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid data URL format")
		}
		mimeType := "image/jpeg"
		if strings.Contains(parts[0], ";") {
			mimeParts := strings.Split(strings.TrimPrefix(parts[0], "data:"), ";")
			if len(mimeParts) > 0 && mimeParts[0] != "" {
				mimeType = mimeParts[0]
			}
		} else if trimmed := strings.TrimPrefix(parts[0], "data:"); trimmed != "" {
			mimeType = trimmed
		}
		data, err := base64.StdEncoding.DecodeString(parts[1])
		if err != nil {
			return nil, fmt.Errorf("decode base64 data: %w", err)
		}
		return &genai.Part{InlineData: &genai.Blob{Data: data, MIMEType: mimeType}}, nil
	}

	mimeType := att.MimeType
	if mimeType == "" {
		mimeType = guessGoogleMimeType(att.URL)
	}
	return &genai.Part{FileData: &genai.FileData{FileURI: att.URL, MIMEType: mimeType}}, nil
}

func (p *GoogleProvider) buildConfig(req *CompletionRequest) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{}
	if req.System != "" {
		config.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: req.System}}}
	}
	if req.MaxTokens > 0 {
		maxTokens := min(req.MaxTokens, math.MaxInt32)
		config.MaxOutputTokens = int32(maxTokens)
	}
	if len(req.Tools) > 0 {
		config.Tools = toolregistry.ToGeminiTools(req.Tools)
	}
	return config
}

func generateGoogleToolCallID(name string) string {
	return fmt.Sprintf("call_%s_%d", name, time.Now().UnixNano())
}

func googleToolNameFromID(toolCallID string, messages []CompletionMessage) string {
	for _, msg := range messages {
		for _, tc := range msg.Content.ToolCalls() {
			if tc.ID == toolCallID {
				return tc.Name
			}
		}
	}
	parts := strings.Split(toolCallID, "_")
	if len(parts) >= 2 {
		return parts[1]
	}
	return ""
}

func guessGoogleMimeType(url string) string {
	lower := strings.ToLower(url)
	switch {
	case strings.HasSuffix(lower, ".jpg"), strings.HasSuffix(lower, ".jpeg"):
		return "image/jpeg"
	case strings.HasSuffix(lower, ".png"):
		return "image/png"
	case strings.HasSuffix(lower, ".gif"):
		return "image/gif"
	case strings.HasSuffix(lower, ".webp"):
		return "image/webp"
	case strings.HasSuffix(lower, ".pdf"):
		return "application/pdf"
	default:
		return "image/jpeg"
	}
}

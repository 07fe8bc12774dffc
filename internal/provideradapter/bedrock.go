package provideradapter

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/rexlunae/agentgw/internal/retryengine"
	"github.com/rexlunae/agentgw/internal/toolregistry"
	openai "github.com/sashabaranov/go-openai"
)

// BedrockProvider implements LLMProvider for AWS Bedrock. Requests are
// encoded identically to the OpenAI-compatible dialect, then signed and
// dispatched via InvokeModelWithResponseStream instead of a plain HTTP POST;
// this assumes the configured model ID fronts an OpenAI-compatible
// request/response shape (as Bedrock access gateways commonly do), so the
// same openAIChunkAccumulator used by OpenAIProvider reassembles the event
// stream into the shared chunk shape.
type BedrockProvider struct {
	client       *bedrockruntime.Client
	defaultModel string
	policy       retryengine.Policy
}

// BedrockConfig configures a BedrockProvider.
type BedrockConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	DefaultModel    string
}

// NewBedrockProvider builds a provider, resolving AWS credentials via the
// standard SDK chain unless explicit keys are given.
func NewBedrockProvider(ctx context.Context, cfg BedrockConfig) (*BedrockProvider, error) {
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "anthropic.claude-3-sonnet-20240229-v1:0"
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("bedrock: load AWS config: %w", err)
	}

	return &BedrockProvider{
		client:       bedrockruntime.NewFromConfig(awsCfg),
		defaultModel: cfg.DefaultModel,
		policy:       retryengine.DefaultPolicy(),
	}, nil
}

func (p *BedrockProvider) Name() string { return "bedrock" }

func (p *BedrockProvider) Models() []Model {
	return []Model{
		{ID: "anthropic.claude-3-sonnet-20240229-v1:0", Name: "Claude 3 Sonnet (Bedrock)", ContextSize: 200000, SupportsVision: true, SupportsTools: true},
		{ID: "anthropic.claude-3-haiku-20240307-v1:0", Name: "Claude 3 Haiku (Bedrock)", ContextSize: 200000, SupportsVision: true, SupportsTools: true},
		{ID: "meta.llama3-70b-instruct-v1:0", Name: "Llama 3 70B (Bedrock)", ContextSize: 8192, SupportsTools: false},
	}
}

func (p *BedrockProvider) SupportsTools() bool { return true }

func (p *BedrockProvider) model(req *CompletionRequest) string {
	if req.Model != "" {
		return req.Model
	}
	return p.defaultModel
}

// Complete encodes an OpenAI-compatible chat-completions body, invokes the
// model with a response stream, and reassembles the event-stream frames
// into CompletionChunks via the shared accumulator.
func (p *BedrockProvider) Complete(ctx context.Context, req *CompletionRequest) (<-chan *CompletionChunk, error) {
	chunks := make(chan *CompletionChunk)
	model := p.model(req)

	messages, err := convertOpenAIMessages(req.Messages, req.System)
	if err != nil {
		return nil, fmt.Errorf("convert messages: %w", err)
	}

	body := openai.ChatCompletionRequest{
		Model:    model,
		Messages: messages,
		Stream:   true,
	}
	if req.MaxTokens > 0 {
		body.MaxTokens = req.MaxTokens
	}
	if len(req.Tools) > 0 {
		body.Tools = toolregistry.ToOpenAITools(req.Tools)
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal bedrock request: %w", err)
	}

	go func() {
		defer close(chunks)

		result, err := retryengine.Run(
			ctx, p.policy, retryengine.MaxAttempts,
			func(ctx context.Context, attempt int) (*bedrockruntime.InvokeModelWithResponseStreamOutput, error) {
				return p.client.InvokeModelWithResponseStream(ctx, &bedrockruntime.InvokeModelWithResponseStreamInput{
					ModelId:     aws.String(model),
					ContentType: aws.String("application/json"),
					Body:        payload,
				})
			},
			func(out *bedrockruntime.InvokeModelWithResponseStreamOutput, err error) retryengine.Decision {
				if err == nil {
					return retryengine.Decision{}
				}
				return retryengine.ClassifyError(err)
			},
			nil, nil,
		)
		if err != nil {
			chunks <- &CompletionChunk{Error: NewProviderError("bedrock", model, err)}
			return
		}

		p.processEventStream(result.Value, chunks, model)
	}()

	return chunks, nil
}

func (p *BedrockProvider) processEventStream(out *bedrockruntime.InvokeModelWithResponseStreamOutput, chunks chan<- *CompletionChunk, model string) {
	stream := out.GetStream()
	defer stream.Close()

	acc := newOpenAIChunkAccumulator()
	for event := range stream.Events() {
		member, ok := event.(*types.ResponseStreamMemberChunk)
		if !ok {
			continue
		}
		var resp openai.ChatCompletionStreamResponse
		if err := json.Unmarshal(member.Value.Bytes, &resp); err != nil {
			chunks <- &CompletionChunk{Error: NewProviderError("bedrock", model,
				fmt.Errorf("decode event-stream frame: %w", err))}
			return
		}
		for _, c := range acc.Ingest(resp) {
			chunks <- c
		}
	}

	if err := stream.Err(); err != nil {
		chunks <- &CompletionChunk{Error: NewProviderError("bedrock", model, err)}
		return
	}

	for _, c := range acc.Flush() {
		chunks <- c
	}
	chunks <- &CompletionChunk{Done: true, InputTokens: acc.inputTokens, OutputTokens: acc.outputTokens}
}

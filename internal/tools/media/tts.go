package media

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/rexlunae/agentgw/internal/media"
	"github.com/rexlunae/agentgw/internal/toolregistry"
	"github.com/rexlunae/agentgw/internal/transport"
	"github.com/rexlunae/agentgw/internal/tts"
)

// SpeakTool renders text to speech using a configured TTS provider and
// caches the resulting audio as a new media reference.
type SpeakTool struct {
	index *transport.MediaIndex
	cfg   *tts.Config
}

// NewSpeakTool builds a text_to_speech tool. cfg selects the provider
// chain; index caches the rendered audio under a content-addressed id.
func NewSpeakTool(index *transport.MediaIndex, cfg *tts.Config) *SpeakTool {
	return &SpeakTool{index: index, cfg: cfg}
}

func (t *SpeakTool) Name() string { return "text_to_speech" }

func (t *SpeakTool) Category() toolregistry.Category { return toolregistry.CategoryMedia }

func (t *SpeakTool) Description() string {
	return "Renders text to speech and returns a media reference to the generated audio."
}

func (t *SpeakTool) Schema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "text": {"type": "string", "description": "Text to synthesize"},
    "channel": {"type": "string", "description": "Target delivery channel, used to pick the output format"}
  },
  "required": ["text"]
}`)
}

func (t *SpeakTool) Execute(ctx context.Context, params json.RawMessage) (*toolregistry.Result, error) {
	var input struct {
		Text    string `json:"text"`
		Channel string `json:"channel"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return toolError(fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	if input.Text == "" {
		return toolError("text is required"), nil
	}

	result, err := tts.TextToSpeech(ctx, t.cfg, input.Text, input.Channel)
	if err != nil {
		return toolError(fmt.Sprintf("synthesize speech: %v", err)), nil
	}
	defer tts.Cleanup(result)

	data, err := os.ReadFile(result.AudioPath)
	if err != nil {
		return toolError(fmt.Sprintf("read generated audio: %v", err)), nil
	}

	mimeType := media.MIMEFromExtension(media.GetExtension(result.AudioPath))
	derived, err := t.index.Store(ctx, data, mimeType)
	if err != nil {
		return toolError(fmt.Sprintf("cache audio: %v", err)), nil
	}

	payload, err := json.MarshalIndent(map[string]interface{}{
		"media_id": derived.ID,
		"provider": result.Provider,
		"format":   result.OutputFormat,
	}, "", "  ")
	if err != nil {
		return toolError(fmt.Sprintf("encode result: %v", err)), nil
	}

	return &toolregistry.Result{
		Content: string(payload),
		Artifacts: []toolregistry.Artifact{{
			ID:       derived.ID,
			Type:     "audio",
			URI:      derived.LocalPath,
			MimeType: derived.MimeType,
		}},
	}, nil
}

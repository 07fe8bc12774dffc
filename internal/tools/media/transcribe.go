// Package media exposes speech-to-text (transcribe_audio) and text-to-speech
// (text_to_speech) as tools: thin wrappers that call a configured provider,
// cache the result under a new media reference, and return that reference.
package media

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/rexlunae/agentgw/internal/media/transcribe"
	"github.com/rexlunae/agentgw/internal/toolregistry"
	"github.com/rexlunae/agentgw/internal/transport"
)

// TranscribeTool converts an audio media reference to text using a
// configured transcription provider.
type TranscribeTool struct {
	index       *transport.MediaIndex
	transcriber *transcribe.Transcriber
}

// NewTranscribeTool builds a transcribe_audio tool. index resolves media
// reference ids to cached bytes; transcriber does the actual speech-to-text
// call.
func NewTranscribeTool(index *transport.MediaIndex, transcriber *transcribe.Transcriber) *TranscribeTool {
	return &TranscribeTool{index: index, transcriber: transcriber}
}

func (t *TranscribeTool) Name() string { return "transcribe_audio" }

func (t *TranscribeTool) Category() toolregistry.Category { return toolregistry.CategoryMedia }

func (t *TranscribeTool) Description() string {
	return "Transcribes an audio media reference to text using the configured transcription provider."
}

func (t *TranscribeTool) Schema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "media_id": {"type": "string", "description": "Media reference id of the audio to transcribe"},
    "language": {"type": "string", "description": "ISO 639-1 language hint, auto-detected if omitted"}
  },
  "required": ["media_id"]
}`)
}

func (t *TranscribeTool) Execute(ctx context.Context, params json.RawMessage) (*toolregistry.Result, error) {
	var input struct {
		MediaID  string `json:"media_id"`
		Language string `json:"language"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return toolError(fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	if input.MediaID == "" {
		return toolError("media_id is required"), nil
	}

	att, err := t.index.Get(ctx, input.MediaID)
	if err != nil {
		return toolError(err.Error()), nil
	}

	f, err := os.Open(att.LocalPath)
	if err != nil {
		return toolError(fmt.Sprintf("open cached media: %v", err)), nil
	}
	defer f.Close()

	text, err := t.transcriber.Transcribe(f, att.MimeType, input.Language)
	if err != nil {
		return toolError(fmt.Sprintf("transcribe: %v", err)), nil
	}

	derived, err := t.index.Store(ctx, []byte(text), "text/plain")
	if err != nil {
		return toolError(fmt.Sprintf("cache transcript: %v", err)), nil
	}

	payload, err := json.MarshalIndent(map[string]interface{}{
		"media_id":   derived.ID,
		"transcript": text,
		"source":     input.MediaID,
	}, "", "  ")
	if err != nil {
		return toolError(fmt.Sprintf("encode result: %v", err)), nil
	}

	return &toolregistry.Result{
		Content: string(payload),
		Artifacts: []toolregistry.Artifact{{
			ID:       derived.ID,
			Type:     "text",
			URI:      derived.LocalPath,
			MimeType: derived.MimeType,
		}},
	}, nil
}

func toolError(message string) *toolregistry.Result {
	return &toolregistry.Result{Content: message, IsError: true}
}

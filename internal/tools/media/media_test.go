package media

import (
	"context"
	"encoding/json"
	"io"
	"path/filepath"
	"testing"

	"github.com/rexlunae/agentgw/internal/media/transcribe"
	"github.com/rexlunae/agentgw/internal/transport"
	"github.com/rexlunae/agentgw/internal/tts"
)

type fakeTranscriberProvider struct {
	text string
}

func (f *fakeTranscriberProvider) Transcribe(audio io.Reader, mimeType string, language string) (string, error) {
	io.Copy(io.Discard, audio)
	return f.text, nil
}

func openTestIndex(t *testing.T) *transport.MediaIndex {
	t.Helper()
	dir := t.TempDir()
	idx, err := transport.OpenMediaIndex(filepath.Join(dir, "media.db"), filepath.Join(dir, "cache"))
	if err != nil {
		t.Fatalf("OpenMediaIndex: %v", err)
	}
	t.Cleanup(func() { idx.Close() })
	return idx
}

func TestTranscribeToolProducesTextMediaReference(t *testing.T) {
	idx := openTestIndex(t)

	source, err := idx.Store(context.Background(), []byte("fake wav bytes"), "audio/wav")
	if err != nil {
		t.Fatalf("Store source audio: %v", err)
	}

	transcriber := transcribe.NewWithProvider("fake", &fakeTranscriberProvider{text: "hello from audio"}, nil)
	tool := NewTranscribeTool(idx, transcriber)

	params, _ := json.Marshal(map[string]interface{}{"media_id": source.ID})
	result, err := tool.Execute(context.Background(), params)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", result.Content)
	}
	if len(result.Artifacts) != 1 || result.Artifacts[0].Type != "text" {
		t.Fatalf("expected one text artifact, got %+v", result.Artifacts)
	}

	cached, err := idx.Get(context.Background(), result.Artifacts[0].ID)
	if err != nil {
		t.Fatalf("expected transcript to be cached as a media reference: %v", err)
	}
	if cached.MimeType != "text/plain" {
		t.Fatalf("expected text/plain, got %s", cached.MimeType)
	}
}

func TestTranscribeToolRejectsMissingMediaID(t *testing.T) {
	idx := openTestIndex(t)
	transcriber := transcribe.NewWithProvider("fake", &fakeTranscriberProvider{}, nil)
	tool := NewTranscribeTool(idx, transcriber)

	params, _ := json.Marshal(map[string]interface{}{})
	result, err := tool.Execute(context.Background(), params)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected an error result for a missing media_id")
	}
}

func TestTranscribeToolRejectsUnknownMediaID(t *testing.T) {
	idx := openTestIndex(t)
	transcriber := transcribe.NewWithProvider("fake", &fakeTranscriberProvider{}, nil)
	tool := NewTranscribeTool(idx, transcriber)

	params, _ := json.Marshal(map[string]interface{}{"media_id": "does-not-exist"})
	result, err := tool.Execute(context.Background(), params)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected an error result for an unknown media id")
	}
}

func TestSpeakToolRequiresText(t *testing.T) {
	idx := openTestIndex(t)
	cfg := tts.DefaultConfig()
	cfg.Enabled = true
	tool := NewSpeakTool(idx, cfg)

	params, _ := json.Marshal(map[string]interface{}{"text": ""})
	result, err := tool.Execute(context.Background(), params)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected an error result for empty text")
	}
}

func TestSpeakToolSurfacesDisabledConfigError(t *testing.T) {
	idx := openTestIndex(t)
	cfg := tts.DefaultConfig()
	cfg.Enabled = false // TextToSpeech rejects disabled configs before touching any provider
	tool := NewSpeakTool(idx, cfg)

	params, _ := json.Marshal(map[string]interface{}{"text": "hello"})
	result, err := tool.Execute(context.Background(), params)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected an error result when tts is not enabled")
	}
}

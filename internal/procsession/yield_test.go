package procsession

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestExecuteCommandReturnsForegroundResultWhenFast(t *testing.T) {
	m := NewManager(t.TempDir())
	fg, bg, err := m.ExecuteCommand(context.Background(), "echo quick", "", 500*time.Millisecond, 0)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if bg != nil {
		t.Fatalf("expected no background handoff, got %+v", bg)
	}
	if fg == nil || !strings.Contains(fg.Stdout, "quick") {
		t.Fatalf("expected foreground result with stdout, got %+v", fg)
	}
	if fg.Status != StatusExited {
		t.Fatalf("expected exited status, got %s", fg.Status)
	}
}

func TestExecuteCommandYieldsToBackgroundWhenSlow(t *testing.T) {
	m := NewManager(t.TempDir())
	fg, bg, err := m.ExecuteCommand(context.Background(), "sleep 1", "", 50*time.Millisecond, 0)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if fg != nil {
		t.Fatalf("expected no foreground result, got %+v", fg)
	}
	if bg == nil || bg.SessionID == "" {
		t.Fatalf("expected background handoff with session id, got %+v", bg)
	}

	waitForStatus(t, m, bg.SessionID, StatusExited, 2*time.Second)
}

func TestExecuteCommandHonorsContextCancellation(t *testing.T) {
	m := NewManager(t.TempDir())
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	_, _, err := m.ExecuteCommand(ctx, "sleep 5", "", 2*time.Second, 0)
	if err == nil {
		t.Fatal("expected error from cancelled context")
	}
}

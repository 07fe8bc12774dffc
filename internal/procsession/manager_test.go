package procsession

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func waitForStatus(t *testing.T, m *Manager, id string, want Status, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if _, status, err := m.Poll(id); err == nil && status == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for session %s to reach %s", id, want)
}

func TestSpawnRunsCommandToCompletion(t *testing.T) {
	m := NewManager(t.TempDir())
	sess, err := m.Spawn(context.Background(), "echo hello", "", 0)
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	waitForStatus(t, m, sess.ID, StatusExited, time.Second)
	out, _ := m.Log(sess.ID, -1, 0)
	if !strings.Contains(out, "hello") {
		t.Fatalf("expected stdout to contain hello, got %q", out)
	}
	if sess.ExitCode() != 0 {
		t.Fatalf("expected exit code 0, got %d", sess.ExitCode())
	}
}

func TestPollReturnsOnlyNewOutput(t *testing.T) {
	m := NewManager(t.TempDir())
	sess, err := m.Spawn(context.Background(), "echo one; sleep 0.1; echo two", "", 0)
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}

	time.Sleep(30 * time.Millisecond)
	first, _, _ := m.Poll(sess.ID)
	waitForStatus(t, m, sess.ID, StatusExited, time.Second)
	second, _, _ := m.Poll(sess.ID)

	if !strings.Contains(first, "one") {
		t.Fatalf("expected first poll to see 'one', got %q", first)
	}
	if strings.Contains(second, "one") {
		t.Fatalf("expected second poll to not repeat 'one', got %q", second)
	}
	if !strings.Contains(second, "two") {
		t.Fatalf("expected second poll to see 'two', got %q", second)
	}
}

func TestKillTerminatesSession(t *testing.T) {
	m := NewManager(t.TempDir())
	sess, err := m.Spawn(context.Background(), "sleep 30", "", 0)
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	if err := m.Kill(sess.ID); err != nil {
		t.Fatalf("kill: %v", err)
	}
	if sess.Status() != StatusKilled {
		t.Fatalf("expected killed status, got %s", sess.Status())
	}
}

func TestStatusNeverLeavesTerminalState(t *testing.T) {
	m := NewManager(t.TempDir())
	sess, err := m.Spawn(context.Background(), "echo done", "", 0)
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	waitForStatus(t, m, sess.ID, StatusExited, time.Second)
	sess.setStatus(StatusRunning)
	if sess.Status() != StatusExited {
		t.Fatalf("expected status to stay exited, got %s", sess.Status())
	}
}

func TestWriteStdinToRunningSession(t *testing.T) {
	m := NewManager(t.TempDir())
	sess, err := m.Spawn(context.Background(), "read line; echo \"got: $line\"", "", 0)
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	if err := m.Write(sess.ID, []byte("hi\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	waitForStatus(t, m, sess.ID, StatusExited, time.Second)
	out, _ := m.Log(sess.ID, -1, 0)
	if !strings.Contains(out, "got: hi") {
		t.Fatalf("expected echoed input, got %q", out)
	}
}

func TestPollUnknownSession(t *testing.T) {
	m := NewManager(t.TempDir())
	if _, _, err := m.Poll("nonexistent"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestWriteToCompletedSessionFails(t *testing.T) {
	m := NewManager(t.TempDir())
	sess, err := m.Spawn(context.Background(), "true", "", 0)
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	waitForStatus(t, m, sess.ID, StatusExited, time.Second)
	if err := m.Write(sess.ID, []byte("x")); !errors.Is(err, ErrNotAlive) {
		t.Fatalf("expected ErrNotAlive, got %v", err)
	}
}

func TestClearCompletedRemovesTerminalSessions(t *testing.T) {
	m := NewManager(t.TempDir())
	sess, err := m.Spawn(context.Background(), "true", "", 0)
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	waitForStatus(t, m, sess.ID, StatusExited, time.Second)
	if n := m.ClearCompleted(); n != 1 {
		t.Fatalf("expected 1 cleared, got %d", n)
	}
	if _, _, err := m.Poll(sess.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected session removed, got %v", err)
	}
}

func TestSendKeysTranslatesNamedKeys(t *testing.T) {
	m := NewManager(t.TempDir())
	sess, err := m.Spawn(context.Background(), "read line; echo \"got: $line\"", "", 0)
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	if err := m.SendKeys(sess.ID, []string{"hi", "Enter"}); err != nil {
		t.Fatalf("send keys: %v", err)
	}
	waitForStatus(t, m, sess.ID, StatusExited, time.Second)
	out, _ := m.Log(sess.ID, -1, 0)
	if !strings.Contains(out, "got: hi") {
		t.Fatalf("expected echoed input, got %q", out)
	}
}

func TestListReturnsAllSessions(t *testing.T) {
	m := NewManager(t.TempDir())
	s1, _ := m.Spawn(context.Background(), "true", "", 0)
	s2, _ := m.Spawn(context.Background(), "true", "", 0)
	waitForStatus(t, m, s1.ID, StatusExited, time.Second)
	waitForStatus(t, m, s2.ID, StatusExited, time.Second)

	infos := m.List()
	if len(infos) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(infos))
	}
}

func TestSpawnTimeoutMarksTimedOut(t *testing.T) {
	m := NewManager(t.TempDir())
	sess, err := m.Spawn(context.Background(), "sleep 5", "", 30*time.Millisecond)
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	waitForStatus(t, m, sess.ID, StatusTimedOut, 2*time.Second)
}

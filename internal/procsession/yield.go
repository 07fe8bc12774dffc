package procsession

import (
	"context"
	"time"
)

const (
	// DefaultYieldDeadline is how long execute_command polls in the
	// foreground before handing the process off to a background session.
	DefaultYieldDeadline = 10 * time.Second
	// foregroundPollInterval is the polling cadence while waiting in the
	// foreground (§4.C: "100 ms loop").
	foregroundPollInterval = 100 * time.Millisecond
)

// ForegroundResult is returned by ExecuteCommand when the process finished
// within the yield deadline.
type ForegroundResult struct {
	Stdout   string
	ExitCode int
	Status   Status
}

// BackgroundHandoff is returned by ExecuteCommand when the process outlived
// the yield deadline and was transferred into a background session.
type BackgroundHandoff struct {
	SessionID string
}

// ExecuteCommand spawns command directly, then polls it in a 100ms loop. If
// the process finishes before yieldDeadline elapses, its full output and
// final status are returned. Otherwise the still-running process's session
// is left registered in the manager and a BackgroundHandoff is returned so
// the caller can reply with a running-background result (§4.C
// "Yield-to-background"). timeout is the command's total hard deadline,
// independent of yieldDeadline.
func (m *Manager) ExecuteCommand(ctx context.Context, command, cwd string, yieldDeadline, timeout time.Duration) (*ForegroundResult, *BackgroundHandoff, error) {
	if yieldDeadline <= 0 {
		yieldDeadline = DefaultYieldDeadline
	}

	sess, err := m.Spawn(ctx, command, cwd, timeout)
	if err != nil {
		return nil, nil, err
	}

	deadline := time.Now().Add(yieldDeadline)
	ticker := time.NewTicker(foregroundPollInterval)
	defer ticker.Stop()

	for {
		if _, status, pollErr := m.Poll(sess.ID); pollErr == nil && status != StatusRunning {
			return &ForegroundResult{
				Stdout:   sess.buf.String(),
				ExitCode: sess.ExitCode(),
				Status:   status,
			}, nil, nil
		}

		if time.Now().After(deadline) {
			return nil, &BackgroundHandoff{SessionID: sess.ID}, nil
		}

		select {
		case <-ctx.Done():
			m.Kill(sess.ID)
			return nil, nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

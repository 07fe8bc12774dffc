// Package sandbox validates tool-supplied filesystem paths against a
// workspace boundary and a protected-credentials directory, and wraps
// subprocess commands with the strongest OS isolation primitive available.
package sandbox

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrProtectedPath is returned when a path canonicalizes into the protected
// credentials directory. It is the stable, non-leaking message surfaced to
// the model as a tool error (§7: "never exfiltrate path internals").
var ErrProtectedPath = errors.New("access denied: protected path")

// ErrOutsideWorkspace is returned when a path escapes the workspace root and
// whitelist mode is not in effect to permit it.
var ErrOutsideWorkspace = errors.New("access denied: path escapes workspace")

// Policy describes which paths a tool call may touch.
type Policy struct {
	WorkspaceRoot string
	ProtectedDirs []string
	DenyRead      []string
	DenyWrite     []string
	// AllowPaths, when non-empty, activates whitelist mode: only paths
	// canonicalizing under one of these roots (in addition to the workspace
	// root) are permitted.
	AllowPaths []string
}

// Mode describes access intent for a Validate call.
type Mode int

const (
	ModeRead Mode = iota
	ModeWrite
)

// Validator canonicalizes a caller-supplied path and rejects it before any
// syscall if it would reach a protected or out-of-policy location. Grounded
// on internal/tools/files/resolver.go's Resolve(); generalized from a single
// root to a full deny/allow policy.
type Validator struct {
	policy Policy
	roots  []string
}

// New builds a Validator from a Policy, pre-resolving all root paths once.
func New(policy Policy) (*Validator, error) {
	root := strings.TrimSpace(policy.WorkspaceRoot)
	if root == "" {
		root = "."
	}
	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("sandbox: resolve workspace root: %w", err)
	}

	protected := make([]string, 0, len(policy.ProtectedDirs))
	for _, p := range policy.ProtectedDirs {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("sandbox: resolve protected dir %q: %w", p, err)
		}
		protected = append(protected, abs)
	}

	allow := make([]string, 0, len(policy.AllowPaths))
	for _, p := range policy.AllowPaths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("sandbox: resolve allow path %q: %w", p, err)
		}
		allow = append(allow, abs)
	}

	return &Validator{
		policy: Policy{
			WorkspaceRoot: rootAbs,
			ProtectedDirs: protected,
			DenyRead:      policy.DenyRead,
			DenyWrite:     policy.DenyWrite,
			AllowPaths:    allow,
		},
	}, nil
}

// Validate canonicalizes path and returns the absolute form, or an error if
// the path is protected or falls outside the active policy. No syscall is
// issued by this function; callers must check the error before touching the
// filesystem (§3 invariant, §8 property 3).
func (v *Validator) Validate(path string, mode Mode) (string, error) {
	clean := strings.TrimSpace(path)
	if clean == "" {
		return "", fmt.Errorf("sandbox: path is required")
	}

	var target string
	if filepath.IsAbs(clean) {
		target = filepath.Clean(clean)
	} else {
		target = filepath.Join(v.policy.WorkspaceRoot, clean)
	}
	targetAbs, err := filepath.Abs(target)
	if err != nil {
		return "", fmt.Errorf("sandbox: resolve path: %w", err)
	}

	for _, protected := range v.policy.ProtectedDirs {
		if isWithin(targetAbs, protected) {
			return "", ErrProtectedPath
		}
	}

	denyList := v.policy.DenyRead
	if mode == ModeWrite {
		denyList = v.policy.DenyWrite
	}
	for _, denied := range denyList {
		deniedAbs, err := filepath.Abs(denied)
		if err != nil {
			continue
		}
		if isWithin(targetAbs, deniedAbs) {
			return "", ErrProtectedPath
		}
	}

	if len(v.policy.AllowPaths) > 0 {
		if !isWithin(targetAbs, v.policy.WorkspaceRoot) {
			allowed := false
			for _, root := range v.policy.AllowPaths {
				if isWithin(targetAbs, root) {
					allowed = true
					break
				}
			}
			if !allowed {
				return "", ErrOutsideWorkspace
			}
		}
		return targetAbs, nil
	}

	if !isWithin(targetAbs, v.policy.WorkspaceRoot) {
		return "", ErrOutsideWorkspace
	}
	return targetAbs, nil
}

func isWithin(target, root string) bool {
	rel, err := filepath.Rel(root, target)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(os.PathSeparator)))
}

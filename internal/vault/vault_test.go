package vault

import (
	"errors"
	"path/filepath"
	"testing"
)

func newTestVault(t *testing.T) *Vault {
	t.Helper()
	dir := t.TempDir()
	v := New(filepath.Join(dir, "secrets.json"), filepath.Join(dir, "key"))
	if err := v.Unlock("correct horse"); err != nil {
		t.Fatalf("unlock fresh vault: %v", err)
	}
	return v
}

func TestUnlockCreatesFreshVault(t *testing.T) {
	v := newTestVault(t)
	if !v.IsUnlocked() {
		t.Fatal("expected vault to be unlocked")
	}
	if entries := v.List(""); len(entries) != 0 {
		t.Fatalf("expected empty fresh vault, got %d entries", len(entries))
	}
}

func TestStoreGetRoundTrip(t *testing.T) {
	v := newTestVault(t)
	if err := v.Store("github_token", KindToken, "ghp_abc123", Policy{Kind: PolicyAlways}, Metadata{}); err != nil {
		t.Fatalf("store: %v", err)
	}
	got, err := v.Get("github_token", AccessContext{})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != "ghp_abc123" {
		t.Fatalf("got %q, want %q", got, "ghp_abc123")
	}
}

func TestGetMissingEntry(t *testing.T) {
	v := newTestVault(t)
	if _, err := v.Get("nope", AccessContext{}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetLockedVault(t *testing.T) {
	v := newTestVault(t)
	if err := v.Store("k", KindAPIKey, "v", Policy{Kind: PolicyAlways}, Metadata{}); err != nil {
		t.Fatalf("store: %v", err)
	}
	v.Lock()
	if v.IsUnlocked() {
		t.Fatal("expected locked")
	}
	if _, err := v.Get("k", AccessContext{}); !errors.Is(err, ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}
}

func TestUnlockPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "secrets.json")
	v1 := New(path, filepath.Join(dir, "key"))
	if err := v1.Unlock("hunter2"); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	if err := v1.Store("api_key", KindAPIKey, "sk-live", Policy{Kind: PolicyAlways}, Metadata{}); err != nil {
		t.Fatalf("store: %v", err)
	}

	v2 := New(path, filepath.Join(dir, "key"))
	if err := v2.Unlock("hunter2"); err != nil {
		t.Fatalf("reopen unlock: %v", err)
	}
	got, err := v2.Get("api_key", AccessContext{})
	if err != nil {
		t.Fatalf("get after reopen: %v", err)
	}
	if got != "sk-live" {
		t.Fatalf("got %q, want sk-live", got)
	}
}

func TestUnlockWrongPassword(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "secrets.json")
	v1 := New(path, filepath.Join(dir, "key"))
	if err := v1.Unlock("correct"); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	if err := v1.Store("x", KindAPIKey, "y", Policy{Kind: PolicyAlways}, Metadata{}); err != nil {
		t.Fatalf("store: %v", err)
	}

	v2 := New(path, filepath.Join(dir, "key"))
	if err := v2.Unlock("incorrect"); !errors.Is(err, ErrWrongPassword) {
		t.Fatalf("expected ErrWrongPassword, got %v", err)
	}
}

func TestGetWithApprovalPolicy(t *testing.T) {
	v := newTestVault(t)
	if err := v.Store("approve_me", KindAPIKey, "secret", Policy{Kind: PolicyWithApproval}, Metadata{}); err != nil {
		t.Fatalf("store: %v", err)
	}

	if _, err := v.Get("approve_me", AccessContext{}); !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("expected denial with no approval fn, got %v", err)
	}

	approved, err := v.Get("approve_me", AccessContext{ApprovalFn: func(string) (bool, error) { return true, nil }})
	if err != nil {
		t.Fatalf("get with approval: %v", err)
	}
	if approved != "secret" {
		t.Fatalf("got %q", approved)
	}

	if _, err := v.Get("approve_me", AccessContext{ApprovalFn: func(string) (bool, error) { return false, nil }}); !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("expected denial on rejected approval, got %v", err)
	}
}

func TestGetSkillScopedPolicy(t *testing.T) {
	v := newTestVault(t)
	if err := v.Store("scoped", KindToken, "t", Policy{Kind: PolicySkillScoped, Skill: "weather"}, Metadata{}); err != nil {
		t.Fatalf("store: %v", err)
	}

	if _, err := v.Get("scoped", AccessContext{Skill: "other"}); !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("expected denial for wrong skill, got %v", err)
	}
	got, err := v.Get("scoped", AccessContext{Skill: "weather"})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != "t" {
		t.Fatalf("got %q", got)
	}
}

func TestListReturnsNamesAndKindsOnly(t *testing.T) {
	v := newTestVault(t)
	_ = v.Store("alpha_key", KindAPIKey, "secretvalue", Policy{Kind: PolicyAlways}, Metadata{})
	_ = v.Store("alpha_token", KindToken, "anothersecret", Policy{Kind: PolicyAlways}, Metadata{})
	_ = v.Store("beta_key", KindAPIKey, "thirdsecret", Policy{Kind: PolicyAlways}, Metadata{})

	all := v.List("")
	if len(all) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(all))
	}
	alphaOnly := v.List("alpha_")
	if len(alphaOnly) != 2 {
		t.Fatalf("expected 2 alpha_ entries, got %d", len(alphaOnly))
	}
	for _, e := range alphaOnly {
		if e.Name == "" || e.Kind == "" {
			t.Fatalf("expected name and kind populated: %+v", e)
		}
	}
}

func TestDeleteEntry(t *testing.T) {
	v := newTestVault(t)
	_ = v.Store("gone", KindAPIKey, "v", Policy{Kind: PolicyAlways}, Metadata{})
	if err := v.Delete("gone"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := v.Get("gone", AccessContext{}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if err := v.Delete("gone"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on double delete, got %v", err)
	}
}

func TestChangePasswordRotatesKey(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "secrets.json")
	v := New(path, filepath.Join(dir, "key"))
	if err := v.Unlock("old-pass"); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	_ = v.Store("persist", KindAPIKey, "still-here", Policy{Kind: PolicyAlways}, Metadata{})
	if err := v.ChangePassword("new-pass"); err != nil {
		t.Fatalf("change password: %v", err)
	}

	v2 := New(path, filepath.Join(dir, "key"))
	if err := v2.Unlock("old-pass"); !errors.Is(err, ErrWrongPassword) {
		t.Fatalf("expected old password rejected, got %v", err)
	}
	if err := v2.Unlock("new-pass"); err != nil {
		t.Fatalf("unlock with new password: %v", err)
	}
	got, err := v2.Get("persist", AccessContext{})
	if err != nil || got != "still-here" {
		t.Fatalf("got %q, err %v", got, err)
	}
}

func TestSetupAndVerifyTOTP(t *testing.T) {
	v := newTestVault(t)
	_, _, err := v.SetupTOTP("agentgw", "user@example.com")
	if err != nil {
		t.Fatalf("setup totp: %v", err)
	}
	if v.VerifyTOTP("000000") {
		t.Fatal("arbitrary code should not validate against a random secret except by chance; retry if flaky")
	}
}

func TestSetupTOTPRequiresUnlockedVault(t *testing.T) {
	v := New(filepath.Join(t.TempDir(), "secrets.json"), "")
	if _, _, err := v.SetupTOTP("agentgw", "user@example.com"); !errors.Is(err, ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}
}

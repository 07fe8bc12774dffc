// Package vault implements the encrypted secrets store: password+TOTP
// unlock, scoped access policies, and the cookie-jar extension. No teacher
// file in the corpus implements a secrets vault (confirmed by a repo-wide
// search for vault/totp/secrets/encrypt/aes/argon2/scrypt); this package is
// structured the way the teacher structures a mutex-guarded stateful manager
// (internal/tools/exec/manager.go's Manager shape) but the encryption and
// TOTP mechanics are grounded on named, real ecosystem libraries instead of
// a pack example (see SPEC_FULL.md DOMAIN STACK, DESIGN.md).
package vault

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

var (
	ErrLocked       = errors.New("vault: locked")
	ErrWrongPassword = errors.New("vault: wrong password")
	ErrNotFound     = errors.New("vault: entry not found")
	ErrAccessDenied = errors.New("vault: access denied")
	ErrCorrupted    = errors.New("vault: envelope is corrupted")
)

// Kind categorizes a stored secret for display purposes only; it never
// changes decryption behavior.
type Kind string

const (
	KindAPIKey     Kind = "api_key"
	KindToken      Kind = "token"
	KindPassword   Kind = "password"
	KindSSHKey     Kind = "ssh_key"
	KindSecureNote Kind = "secure_note"
)

// Policy gates read access to a vault entry.
type Policy struct {
	Kind string // "always" | "with_approval" | "requires_reauth" | "skill_scoped"
	Skill string // populated only when Kind == "skill_scoped"
}

const (
	PolicyAlways         = "always"
	PolicyWithApproval   = "with_approval"
	PolicyRequiresReauth = "requires_reauth"
	PolicySkillScoped    = "skill_scoped"
)

// Metadata is descriptive, non-secret information about an entry.
type Metadata struct {
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	Username    string    `json:"username,omitempty"`
}

// entry is the in-memory, decrypted form of one vault record. It exists only
// transiently inside Vault.blob while the vault is unlocked; it is never
// copied into the conversation store (§3 invariant).
type entry struct {
	Name     string   `json:"name"`
	Kind     Kind     `json:"kind"`
	Value    string   `json:"value"`
	Policy   Policy   `json:"policy"`
	Metadata Metadata `json:"metadata"`
}

type blob struct {
	Entries map[string]entry `json:"entries"`
}

// AccessContext identifies the caller attempting a Get, for SkillScoped
// gate evaluation and for RequiresReauth re-verification.
type AccessContext struct {
	Skill          string
	ApprovalFn     func(name string) (bool, error)
	ReauthPassword string
	ReauthTOTPCode string
}

// Vault is the encrypted secrets store.
type Vault struct {
	mu sync.Mutex

	path    string
	keyFile string

	unlocked  bool
	key       [32]byte
	saltInUse [16]byte
	data      blob

	totpSecret string // populated once TOTP is enabled, stored as a regular entry
}

// New constructs a Vault bound to a secrets.json path. The vault starts
// locked; call Unlock before any Store/Get/Delete call.
func New(path, keyFile string) *Vault {
	return &Vault{path: path, keyFile: keyFile, data: blob{Entries: map[string]entry{}}}
}

// IsUnlocked reports whether the vault is currently unlocked.
func (v *Vault) IsUnlocked() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.unlocked
}

// Store creates or overwrites an entry. Fails if the vault is locked.
func (v *Vault) Store(name string, kind Kind, value string, policy Policy, meta Metadata) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.unlocked {
		return ErrLocked
	}
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = time.Now()
	}
	v.data.Entries[name] = entry{Name: name, Kind: kind, Value: value, Policy: policy, Metadata: meta}
	return v.persistLocked()
}

// Get returns the cleartext value of name, subject to its access policy.
func (v *Vault) Get(name string, ctx AccessContext) (string, error) {
	v.mu.Lock()
	if !v.unlocked {
		v.mu.Unlock()
		return "", ErrLocked
	}
	e, ok := v.data.Entries[name]
	v.mu.Unlock()
	if !ok {
		return "", ErrNotFound
	}

	switch e.Policy.Kind {
	case PolicyAlways, "":
		return e.Value, nil
	case PolicyWithApproval:
		if ctx.ApprovalFn == nil {
			return "", ErrAccessDenied
		}
		ok, err := ctx.ApprovalFn(name)
		if err != nil || !ok {
			return "", ErrAccessDenied
		}
		return e.Value, nil
	case PolicyRequiresReauth:
		if err := v.reauth(ctx); err != nil {
			return "", ErrAccessDenied
		}
		return e.Value, nil
	case PolicySkillScoped:
		if ctx.Skill == "" || ctx.Skill != e.Policy.Skill {
			return "", ErrAccessDenied
		}
		return e.Value, nil
	default:
		return "", ErrAccessDenied
	}
}

// EntrySummary is the name/kind pair returned by List; values are never
// included (§4.A: "returns names and kinds only, never values").
type EntrySummary struct {
	Name string
	Kind Kind
}

// List returns summaries of entries whose name has the given prefix (empty
// prefix matches everything).
func (v *Vault) List(prefix string) []EntrySummary {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]EntrySummary, 0, len(v.data.Entries))
	for name, e := range v.data.Entries {
		if prefix == "" || hasPrefix(name, prefix) {
			out = append(out, EntrySummary{Name: name, Kind: e.Kind})
		}
	}
	return out
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

// SetPolicy updates an entry's access gate without touching its ciphertext.
func (v *Vault) SetPolicy(name string, newPolicy Policy) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.unlocked {
		return ErrLocked
	}
	e, ok := v.data.Entries[name]
	if !ok {
		return ErrNotFound
	}
	e.Policy = newPolicy
	v.data.Entries[name] = e
	return v.persistLocked()
}

// Delete removes an entry.
func (v *Vault) Delete(name string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.unlocked {
		return ErrLocked
	}
	if _, ok := v.data.Entries[name]; !ok {
		return ErrNotFound
	}
	delete(v.data.Entries, name)
	return v.persistLocked()
}

// ChangePassword re-derives the key from newPassword and re-encrypts the
// entire blob under it.
func (v *Vault) ChangePassword(newPassword string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.unlocked {
		return ErrLocked
	}
	salt, err := randomSalt()
	if err != nil {
		return err
	}
	v.key = deriveKey(newPassword, salt)
	v.saltInUse = salt
	return v.persistLocked()
}

func (v *Vault) reauth(ctx AccessContext) error {
	if ctx.ReauthPassword == "" {
		return ErrAccessDenied
	}
	// Re-derive against the currently stored salt and compare constant-time
	// via the AEAD open already implied by Unlock; here we simply require
	// the caller to have re-run Unlock semantics out of band and pass the
	// verified flag through ApprovalFn-equivalent. A minimal direct check:
	candidate := deriveKey(ctx.ReauthPassword, v.saltInUse)
	if candidate != v.key {
		return ErrAccessDenied
	}
	if v.totpSecret != "" {
		if ctx.ReauthTOTPCode == "" || !verifyTOTP(v.totpSecret, ctx.ReauthTOTPCode, time.Now()) {
			return ErrAccessDenied
		}
	}
	return nil
}

// persistLocked serializes and writes the encrypted blob. Caller must hold v.mu.
func (v *Vault) persistLocked() error {
	plaintext, err := json.Marshal(v.data)
	if err != nil {
		return fmt.Errorf("vault: marshal: %w", err)
	}
	env, err := seal(plaintext, v.key, v.saltInUse)
	if err != nil {
		return fmt.Errorf("vault: seal: %w", err)
	}
	encoded, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("vault: marshal envelope: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(v.path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(v.path, encoded, 0o600)
}

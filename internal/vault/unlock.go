package vault

import (
	"encoding/json"
	"errors"
	"os"
)

// Unlock derives a key from password (ignoring the key file when a password
// is supplied, per §4.A: "the key file is ignored") and opens the vault. A
// fresh vault (no secrets.json yet) is initialized empty under a new salt.
func (v *Vault) Unlock(password string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	raw, err := os.ReadFile(v.path)
	if errors.Is(err, os.ErrNotExist) {
		salt, err := randomSalt()
		if err != nil {
			return err
		}
		v.key = deriveKey(password, salt)
		v.saltInUse = salt
		v.data = blob{Entries: map[string]entry{}}
		v.unlocked = true
		return v.persistLocked()
	}
	if err != nil {
		return err
	}

	env, err := parseEnvelope(raw)
	if err != nil {
		return err
	}
	if len(env.Salt) != saltSize {
		return ErrCorrupted
	}
	var salt [16]byte
	copy(salt[:], env.Salt)

	key := deriveKey(password, salt)
	plaintext, err := open(env, key)
	if err != nil {
		return err // ErrWrongPassword or ErrCorrupted; no partial state retained
	}

	var data blob
	if err := json.Unmarshal(plaintext, &data); err != nil {
		return ErrCorrupted
	}
	if data.Entries == nil {
		data.Entries = map[string]entry{}
	}

	v.key = key
	v.saltInUse = salt
	v.data = data
	v.unlocked = true
	if secret, ok := data.Entries[totpEntryName]; ok {
		v.totpSecret = secret.Value
	}
	return nil
}

// Lock clears key material from memory and marks the vault locked.
func (v *Vault) Lock() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.key = [32]byte{}
	v.data = blob{Entries: map[string]entry{}}
	v.totpSecret = ""
	v.unlocked = false
}

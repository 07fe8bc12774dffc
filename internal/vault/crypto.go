package vault

import (
	"crypto/rand"
	"encoding/json"
	"fmt"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/nacl/secretbox"
)

const (
	envelopeVersion = 1
	saltSize        = 16
	nonceSize       = 24
)

// envelope is the on-disk format of secrets.json: §4.A "salt (if
// password-derived), cipher nonce, ciphertext, and a version byte."
type envelope struct {
	Version    int    `json:"version"`
	Salt       []byte `json:"salt,omitempty"`
	Nonce      []byte `json:"nonce"`
	Ciphertext []byte `json:"ciphertext"`
}

// deriveKey runs argon2id over password with a per-vault salt, producing a
// 32-byte secretbox key. Parameters are tuned for an interactive unlock
// (roughly 64MB memory, 1s on commodity hardware) per §4.A's "memory-hard
// KDF" requirement.
func deriveKey(password string, salt [16]byte) [32]byte {
	derived := argon2.IDKey([]byte(password), salt[:], 3, 64*1024, 4, 32)
	var key [32]byte
	copy(key[:], derived)
	return key
}

func randomSalt() ([16]byte, error) {
	var salt [16]byte
	if _, err := rand.Read(salt[:]); err != nil {
		return salt, fmt.Errorf("vault: generate salt: %w", err)
	}
	return salt, nil
}

// seal encrypts plaintext under key with a fresh random nonce using
// nacl/secretbox (XSalsa20-Poly1305).
func seal(plaintext []byte, key [32]byte, salt [16]byte) (*envelope, error) {
	var nonce [24]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, fmt.Errorf("vault: generate nonce: %w", err)
	}
	ciphertext := secretbox.Seal(nil, plaintext, &nonce, &key)
	return &envelope{
		Version:    envelopeVersion,
		Salt:       salt[:],
		Nonce:      nonce[:],
		Ciphertext: ciphertext,
	}, nil
}

// open decrypts an envelope under key. A wrong key or corrupted envelope
// both fail cleanly with no partial state retained (§4.A failure model).
func open(env *envelope, key [32]byte) ([]byte, error) {
	if env.Version != envelopeVersion {
		return nil, ErrCorrupted
	}
	if len(env.Nonce) != nonceSize {
		return nil, ErrCorrupted
	}
	var nonce [24]byte
	copy(nonce[:], env.Nonce)

	plaintext, ok := secretbox.Open(nil, env.Ciphertext, &nonce, &key)
	if !ok {
		return nil, ErrWrongPassword
	}
	return plaintext, nil
}

func parseEnvelope(raw []byte) (*envelope, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, ErrCorrupted
	}
	return &env, nil
}

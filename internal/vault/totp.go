package vault

import (
	"fmt"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	qrcode "github.com/skip2/go-qrcode"
)

const totpEntryName = "__totp_secret"

// SetupTOTP generates an RFC 6238 secret (SHA-1, 30s step, 6 digits),
// stores it inside the already-unlocked vault (§4.A: "TOTP setup requires an
// already-unlocked vault"), and returns the otpauth:// URL plus a PNG QR
// code rendering it, grounded on the teacher's existing go-qrcode dependency
// (used elsewhere for device pairing under internal/pairing).
func (v *Vault) SetupTOTP(issuer, accountName string) (otpauthURL string, qrPNG []byte, err error) {
	v.mu.Lock()
	unlocked := v.unlocked
	v.mu.Unlock()
	if !unlocked {
		return "", nil, ErrLocked
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: accountName,
		Algorithm:   otp.AlgorithmSHA1,
		Digits:      otp.DigitsSix,
		Period:      30,
	})
	if err != nil {
		return "", nil, fmt.Errorf("vault: generate totp secret: %w", err)
	}

	if err := v.Store(totpEntryName, KindSecureNote, key.Secret(), Policy{Kind: PolicyAlways}, Metadata{Description: "TOTP seed"}); err != nil {
		return "", nil, err
	}
	v.mu.Lock()
	v.totpSecret = key.Secret()
	v.mu.Unlock()

	png, err := qrcode.Encode(key.URL(), qrcode.Medium, 256)
	if err != nil {
		return key.URL(), nil, nil
	}
	return key.URL(), png, nil
}

// VerifyTOTP checks a 6-digit code against the vault's stored TOTP secret,
// accepting ±1 time step to absorb clock skew (§4.A failure model).
func (v *Vault) VerifyTOTP(code string) bool {
	v.mu.Lock()
	secret := v.totpSecret
	v.mu.Unlock()
	if secret == "" {
		return false
	}
	return verifyTOTP(secret, code, time.Now())
}

func verifyTOTP(secret, code string, at time.Time) bool {
	valid, _ := totp.ValidateCustom(code, secret, at, totp.ValidateOpts{
		Period:    30,
		Skew:      1,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	return valid
}

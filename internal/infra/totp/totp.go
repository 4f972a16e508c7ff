package totp

import (
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"

	"vaultd/internal/domain"
)

const (
	codeDigits = 6
	stepSecs   = 30
	// One step of drift either side, and never more: wider windows grow the
	// replay surface.
	driftSteps = 1
)

// Verifier checks RFC 6238 time-based codes. It holds no state; every call
// is independent and nothing is consumed on success.
type Verifier struct{}

func NewVerifier() Verifier {
	return Verifier{}
}

func (Verifier) Verify(secret, code string, at time.Time) error {
	if secret == "" {
		return domain.ErrNotConfigured
	}
	if len(code) != codeDigits || !allDigits(code) {
		return domain.ErrInvalidFormat
	}
	ok, err := totp.ValidateCustom(code, secret, at, totp.ValidateOpts{
		Period:    stepSecs,
		Skew:      driftSteps,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		// Malformed secrets surface as configuration problems, not as a
		// retriable bad code.
		return domain.ErrNotConfigured
	}
	if !ok {
		return domain.ErrInvalidCode
	}
	return nil
}

// GenerateSecret provisions a new per-user secret and the otpauth URI used
// by authenticator apps. Enrollment rendering (QR codes) is up to the
// presentation layer.
func GenerateSecret(issuer, account string) (secret, uri string, err error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: account,
		Period:      stepSecs,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return "", "", err
	}
	return key.Secret(), key.URL(), nil
}

func allDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

package domain

import (
	"context"
	"time"
)

const OTPPurposeDataAccess = "data_access"

// OTPToken is a mailed single-use code, distinct from the TOTP channel.
// Once a submitted code matches an unexpired unused token it is marked used
// immediately and can never verify again.
type OTPToken struct {
	ID        int64
	UserID    int64
	Code      string
	Purpose   string
	CreatedAt time.Time
	ExpiresAt time.Time
	Used      bool
	UsedAt    *time.Time
}

func (t OTPToken) ValidAt(now time.Time) bool {
	return !t.Used && now.Before(t.ExpiresAt)
}

type OTPTokenRepository interface {
	Create(ctx context.Context, token OTPToken) (OTPToken, error)

	// ConsumeLatest marks the newest matching unused, unexpired token as used
	// and returns it. The mark is a conditional update so that two concurrent
	// verifications of the same code cannot both succeed. No match yields
	// ErrInvalidCode.
	ConsumeLatest(ctx context.Context, userID int64, code, purpose string, now time.Time) (OTPToken, error)

	// DeleteExpired removes unused tokens whose expiry has passed. Driven by
	// a periodic external sweep, not by the verification path.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// OTPDispatcher issues and delivers a mailed single-use code.
type OTPDispatcher interface {
	Dispatch(ctx context.Context, user User, purpose string) (OTPToken, error)
}

// TOTPVerifier checks a time-based code against a per-user secret.
// Verification is stateless: every call is independent and nothing is
// consumed on success.
type TOTPVerifier interface {
	Verify(secret, code string, at time.Time) error
}

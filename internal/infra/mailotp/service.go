package mailotp

import (
	"context"
	"crypto/rand"
	"math/big"
	"time"

	"github.com/sirupsen/logrus"

	"vaultd/internal/domain"
)

const codeDigits = 6

// Service issues and verifies mailed single-use codes. Unlike the TOTP
// channel, a code here is consumed on first successful verification.
type Service struct {
	tokens domain.OTPTokenRepository
	sender Sender
	expiry time.Duration
	now    func() time.Time
	log    *logrus.Entry
}

func NewService(tokens domain.OTPTokenRepository, sender Sender, expiry time.Duration, log *logrus.Entry) *Service {
	if expiry <= 0 {
		expiry = 10 * time.Minute
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Service{
		tokens: tokens,
		sender: sender,
		expiry: expiry,
		now:    time.Now,
		log:    log,
	}
}

// WithClock overrides the time source, for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Dispatch generates a fresh code, persists it and hands it to the sender.
// The token row is the source of truth; a delivery failure surfaces to the
// caller so the dispatch can be retried.
func (s *Service) Dispatch(ctx context.Context, user domain.User, purpose string) (domain.OTPToken, error) {
	code, err := randomCode()
	if err != nil {
		return domain.OTPToken{}, err
	}
	now := s.now().UTC()
	token := domain.OTPToken{
		UserID:    user.ID,
		Code:      code,
		Purpose:   purpose,
		CreatedAt: now,
		ExpiresAt: now.Add(s.expiry),
	}
	token, err = s.tokens.Create(ctx, token)
	if err != nil {
		return domain.OTPToken{}, err
	}
	if err := s.sender.Send(ctx, user, code, purpose, s.expiry); err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{
			"user_id": user.ID,
			"purpose": purpose,
		}).Warn("otp delivery failed")
		return domain.OTPToken{}, err
	}
	return token, nil
}

// Verify consumes the newest matching unused, unexpired token. A second
// verification of the same code fails even when the code is correct.
func (s *Service) Verify(ctx context.Context, userID int64, code, purpose string) error {
	if len(code) != codeDigits {
		return domain.ErrInvalidFormat
	}
	_, err := s.tokens.ConsumeLatest(ctx, userID, code, purpose, s.now().UTC())
	return err
}

// SweepExpired deletes expired unused tokens. Intended to be driven by a
// periodic external scheduler, not by the request path.
func (s *Service) SweepExpired(ctx context.Context) (int64, error) {
	removed, err := s.tokens.DeleteExpired(ctx, s.now().UTC())
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		s.log.WithField("removed", removed).Info("expired otp tokens swept")
	}
	return removed, nil
}

func randomCode() (string, error) {
	max := big.NewInt(1)
	for i := 0; i < codeDigits; i++ {
		max.Mul(max, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	digits := n.String()
	for len(digits) < codeDigits {
		digits = "0" + digits
	}
	return digits, nil
}

package mailotp

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"vaultd/internal/domain"
)

// Sender delivers a one-time code to a user on some out-of-band channel.
type Sender interface {
	Send(ctx context.Context, user domain.User, code, purpose string, expiry time.Duration) error
}

type SMTPConfig struct {
	Addr     string // host:port
	From     string
	Username string
	Password string
}

type smtpSender struct {
	cfg SMTPConfig
}

func NewSMTPSender(cfg SMTPConfig) Sender {
	return &smtpSender{cfg: cfg}
}

func (s *smtpSender) Send(_ context.Context, user domain.User, code, purpose string, expiry time.Duration) error {
	if user.Email == "" {
		return fmt.Errorf("user %d has no email address", user.ID)
	}
	subject := "Your one-time code for " + purposeTitle(purpose)
	body := fmt.Sprintf(
		"Hello %s,\r\n\r\nYour one-time code is: %s\r\n\r\nIt expires in %d minutes.\r\nPurpose: %s\r\n\r\nIf you did not request this code, ignore this message.\r\n",
		user.Username, code, int(expiry.Minutes()), purposeTitle(purpose),
	)
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s",
		s.cfg.From, user.Email, subject, body)

	var auth smtp.Auth
	if s.cfg.Username != "" {
		host := s.cfg.Addr
		if i := strings.IndexByte(host, ':'); i >= 0 {
			host = host[:i]
		}
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, host)
	}
	return smtp.SendMail(s.cfg.Addr, auth, s.cfg.From, []string{user.Email}, []byte(msg))
}

// logSender writes the code to the log instead of delivering it. Development
// only.
type logSender struct {
	log *logrus.Entry
}

func NewLogSender(log *logrus.Entry) Sender {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &logSender{log: log}
}

func (s *logSender) Send(_ context.Context, user domain.User, code, purpose string, _ time.Duration) error {
	s.log.WithFields(logrus.Fields{
		"user_id": user.ID,
		"email":   user.Email,
		"purpose": purpose,
		"code":    code,
	}).Info("otp dispatched (log sender)")
	return nil
}

func purposeTitle(purpose string) string {
	words := strings.Split(purpose, "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

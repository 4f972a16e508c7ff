package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"vaultd/internal/domain"
)

// Mirror wraps a Ledger with best-effort semantics. Every call makes one
// attempt within a bounded timeout, persists a trace of the attempt, and
// always returns a receipt: callers never see an error, they see an empty
// TxID when the mirror did not land. The local state machine stays
// authoritative either way.
type Mirror struct {
	ledger   domain.Ledger
	attempts domain.LedgerAttemptRepository
	timeout  time.Duration
	enabled  bool
	now      func() time.Time
	log      *logrus.Entry
}

func NewMirror(ledger domain.Ledger, attempts domain.LedgerAttemptRepository, timeout time.Duration, log *logrus.Entry) *Mirror {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Mirror{
		ledger:   ledger,
		attempts: attempts,
		timeout:  timeout,
		enabled:  ledger != nil,
		now:      time.Now,
		log:      log,
	}
}

// NewDisabledMirror returns a mirror that records skipped receipts only.
func NewDisabledMirror(log *logrus.Entry) *Mirror {
	m := NewMirror(nil, nil, 0, log)
	m.enabled = false
	return m
}

func (m *Mirror) Mirror(ctx context.Context, op string, args map[string]any) domain.LedgerReceipt {
	receipt := domain.LedgerReceipt{Op: op, Status: domain.MirrorStatusSkipped}
	if !m.enabled {
		m.persist(ctx, receipt, args)
		return receipt
	}

	callCtx, cancel := context.WithTimeout(ctx, m.timeout)
	got, err := m.ledger.Submit(callCtx, op, args)
	timedOut := callCtx.Err() == context.DeadlineExceeded
	cancel()

	switch {
	case err == nil && !timedOut:
		receipt = got
		receipt.Op = op
		if receipt.Status == "" {
			receipt.Status = domain.MirrorStatusMirrored
		}
	case errors.Is(err, context.DeadlineExceeded) || timedOut:
		// A timed-out submission counts as failed, never as pending.
		receipt.Status = domain.MirrorStatusFailed
		receipt.ErrorCode = domain.MirrorErrorTimeout
	default:
		receipt.Status = domain.MirrorStatusFailed
		receipt.ErrorCode = domain.MirrorErrorNetwork
	}

	if receipt.Status == domain.MirrorStatusFailed {
		m.log.WithFields(logrus.Fields{
			"op":         op,
			"error_code": receipt.ErrorCode,
		}).WithError(err).Warn("ledger mirror failed")
	}
	m.persist(ctx, receipt, args)
	return receipt
}

func (m *Mirror) persist(ctx context.Context, receipt domain.LedgerReceipt, args map[string]any) {
	if m.attempts == nil {
		return
	}
	argsJSON, err := json.Marshal(args)
	if err != nil {
		argsJSON = nil
	}
	attempt := domain.LedgerAttempt{
		Op:          receipt.Op,
		Status:      receipt.Status,
		ErrorCode:   receipt.ErrorCode,
		TxID:        receipt.TxID,
		BlockNumber: receipt.BlockNumber,
		ArgsJSON:    argsJSON,
		CreatedAt:   m.now().UTC(),
	}
	if err := m.attempts.Append(ctx, attempt); err != nil {
		m.log.WithError(err).WithField("op", receipt.Op).Warn("ledger attempt not persisted")
	}
}

package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"vaultd/internal/domain"
)

type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func SystemClock() Clock { return systemClock{} }

// AccessController orchestrates the access-request lifecycle: request
// creation, admin triage, the TOTP-gated release and download logging. The
// local repositories are authoritative; the ledger mirror is attempted after
// every committed transition and its failures are absorbed.
type AccessController struct {
	Requests domain.AccessRequestRepository
	Release  domain.ReleaseStore
	Logs     domain.AccessLogRepository
	Files    domain.FileRepository
	Mods     domain.FileModificationRepository
	Users    domain.UserRepository
	Attempts domain.LedgerAttemptRepository

	TOTP   domain.TOTPVerifier
	OTP    domain.OTPDispatcher
	Mirror domain.LedgerMirror
	Policy domain.PolicyEngine

	// Attempt limiting for the release step. AttemptLimit <= 0 disables it
	// and release attempts are unbounded.
	Limiter       domain.RateLimiter
	AttemptLimit  int
	AttemptWindow time.Duration

	Clock Clock
	Log   *logrus.Entry
}

func (c *AccessController) now() time.Time {
	if c.Clock != nil {
		return c.Clock.Now()
	}
	return time.Now()
}

func (c *AccessController) log() *logrus.Entry {
	if c.Log != nil {
		return c.Log
	}
	return logrus.NewEntry(logrus.StandardLogger())
}

func (c *AccessController) allow(ctx context.Context, role domain.Role, action string) error {
	if c.Policy == nil {
		return nil
	}
	allowed, err := c.Policy.Allow(ctx, domain.PolicyInput{Role: role, Action: action})
	if err != nil {
		return err
	}
	if !allowed {
		return domain.ErrForbidden
	}
	return nil
}

// CreateRequest validates and persists a pending access request, then
// mirrors it to the ledger best-effort.
func (c *AccessController) CreateRequest(ctx context.Context, userID int64, fileID, reason string) (domain.AccessRequest, error) {
	user, err := c.Users.GetByID(ctx, userID)
	if err != nil {
		return domain.AccessRequest{}, err
	}
	if err := c.allow(ctx, user.Role, domain.ActionRequestCreate); err != nil {
		return domain.AccessRequest{}, err
	}

	file, err := c.Files.GetActive(ctx, fileID)
	if err != nil {
		if err == domain.ErrNotFound {
			return domain.AccessRequest{}, domain.ErrFileUnavailable
		}
		return domain.AccessRequest{}, err
	}

	req, err := domain.NewAccessRequest(userID, file.DataID, reason, c.now())
	if err != nil {
		return domain.AccessRequest{}, err
	}
	req, err = c.Requests.CreateIfNoActive(ctx, req)
	if err != nil {
		return domain.AccessRequest{}, err
	}

	// Local row is committed; now the mirror, one attempt, absorbed on
	// failure.
	if c.Mirror != nil {
		receipt := c.Mirror.Mirror(ctx, domain.LedgerOpCreateRequest, map[string]any{
			"user_address": user.LedgerIdentity(),
			"username":     user.Username,
			"data_id":      file.DataID,
			"data_name":    file.Title,
		})
		if receipt.Mirrored() {
			req.RequestTxID = receipt.TxID
			if err := c.Requests.SetLedgerTx(ctx, req.ID, domain.TxFieldRequest, receipt.TxID); err != nil {
				c.log().WithError(err).WithField("request_id", req.ID).Warn("request tx not recorded")
			}
		}
	}
	return req, nil
}

// ProcessRequest approves or rejects a pending request. Concurrent calls on
// the same request serialize on the conditional update; the loser observes
// ErrInvalidStateTransition and the first decision stands.
func (c *AccessController) ProcessRequest(ctx context.Context, requestID, adminID int64, approve bool, notes string) (domain.AccessRequest, error) {
	admin, err := c.Users.GetByID(ctx, adminID)
	if err != nil {
		return domain.AccessRequest{}, err
	}
	if err := c.allow(ctx, admin.Role, domain.ActionRequestProcess); err != nil {
		return domain.AccessRequest{}, err
	}

	req, err := c.Requests.GetByID(ctx, requestID)
	if err != nil {
		return domain.AccessRequest{}, err
	}

	var updated domain.AccessRequest
	if approve {
		updated, err = req.Approve(adminID, notes, c.now())
	} else {
		updated, err = req.Reject(adminID, notes, c.now())
	}
	if err != nil {
		return domain.AccessRequest{}, err
	}
	if err := c.Requests.UpdateTransition(ctx, updated, domain.StatusPending); err != nil {
		return domain.AccessRequest{}, err
	}

	if approve {
		updated = c.dispatchAccessOTP(ctx, updated)
	}

	if c.Mirror != nil {
		receipt := c.Mirror.Mirror(ctx, domain.LedgerOpProcessRequest, map[string]any{
			"request_id": requestID,
			"approved":   approve,
		})
		if receipt.Mirrored() {
			updated.ProcessTxID = receipt.TxID
			if err := c.Requests.SetLedgerTx(ctx, requestID, domain.TxFieldProcess, receipt.TxID); err != nil {
				c.log().WithError(err).WithField("request_id", requestID).Warn("process tx not recorded")
			}
		}
	}
	return updated, nil
}

// dispatchAccessOTP sends the mailed data-access code for an approved
// request and flags otp_sent. Delivery failure leaves otp_sent false; the
// code can be re-sent through ResendOTP.
func (c *AccessController) dispatchAccessOTP(ctx context.Context, req domain.AccessRequest) domain.AccessRequest {
	if c.OTP == nil {
		return req
	}
	requester, err := c.Users.GetByID(ctx, req.UserID)
	if err != nil {
		c.log().WithError(err).WithField("request_id", req.ID).Warn("otp requester lookup failed")
		return req
	}
	if _, err := c.OTP.Dispatch(ctx, requester, domain.OTPPurposeDataAccess); err != nil {
		c.log().WithError(err).WithField("request_id", req.ID).Warn("access otp dispatch failed")
		return req
	}
	req.OTPSent = true
	if err := c.Requests.UpdateTransition(ctx, req, domain.StatusApproved); err != nil {
		c.log().WithError(err).WithField("request_id", req.ID).Warn("otp_sent flag not persisted")
		req.OTPSent = false
	}
	return req
}

// ResendOTP re-dispatches the data-access code for an approved request the
// caller owns.
func (c *AccessController) ResendOTP(ctx context.Context, requestID, userID int64) error {
	req, err := c.Requests.GetByID(ctx, requestID)
	if err != nil {
		return err
	}
	if req.UserID != userID {
		return domain.ErrForbidden
	}
	if req.Status != domain.StatusApproved {
		return domain.ErrInvalidStateTransition
	}
	c.dispatchAccessOTP(ctx, req)
	return nil
}

// VerifyAndRelease checks the submitted TOTP code and, on success, performs
// the approved -> accessed transition, appends the view audit row and
// mirrors both to the ledger. A failed verification leaves the request
// approved, so the caller may retry with a fresh code.
func (c *AccessController) VerifyAndRelease(ctx context.Context, requestID, userID int64, code string, meta domain.ClientMeta) (domain.DataFile, domain.AccessRequest, error) {
	req, err := c.Requests.GetByID(ctx, requestID)
	if err != nil {
		return domain.DataFile{}, domain.AccessRequest{}, err
	}
	if req.UserID != userID {
		return domain.DataFile{}, domain.AccessRequest{}, domain.ErrForbidden
	}

	user, err := c.Users.GetByID(ctx, userID)
	if err != nil {
		return domain.DataFile{}, domain.AccessRequest{}, err
	}
	if err := c.allow(ctx, user.Role, domain.ActionDataView); err != nil {
		return domain.DataFile{}, domain.AccessRequest{}, err
	}

	if c.Limiter != nil && c.AttemptLimit > 0 {
		key := fmt.Sprintf("release:req:%d:user:%d", requestID, userID)
		decision, err := c.Limiter.Allow(ctx, key, c.AttemptLimit, c.AttemptWindow)
		if err != nil {
			// Fail open: losing the limiter must not lock users out.
			c.log().WithError(err).Warn("attempt limiter unavailable")
		} else if !decision.Allowed {
			return domain.DataFile{}, domain.AccessRequest{}, domain.ErrRateLimited
		}
	}

	updated, err := req.MarkAccessed(c.now())
	if err != nil {
		return domain.DataFile{}, domain.AccessRequest{}, err
	}

	if err := c.TOTP.Verify(user.TOTPSecret, code, c.now()); err != nil {
		return domain.DataFile{}, domain.AccessRequest{}, err
	}

	// Transition and view row commit together: a failed audit write rolls
	// the transition back and the request stays approved for a retry.
	entry, err := c.Release.CommitRelease(ctx, updated, domain.StatusApproved, c.newLogEntry(updated, user, domain.AccessView, meta))
	if err != nil {
		return domain.DataFile{}, domain.AccessRequest{}, err
	}
	entry = c.mirrorAccess(ctx, user, updated.FileID, domain.AccessView, entry)
	if entry.LedgerTxID != "" {
		updated.AccessTxID = entry.LedgerTxID
		if err := c.Requests.SetLedgerTx(ctx, requestID, domain.TxFieldAccess, entry.LedgerTxID); err != nil {
			c.log().WithError(err).WithField("request_id", requestID).Warn("access tx not recorded")
		}
	}

	file, err := c.Files.GetByID(ctx, updated.FileID)
	if err != nil {
		return domain.DataFile{}, domain.AccessRequest{}, err
	}
	return file, updated, nil
}

// RecordDownload appends a download audit row for a request that already
// passed the release step. Downloads are unbounded once accessed and never
// change the request status.
func (c *AccessController) RecordDownload(ctx context.Context, requestID, userID int64, meta domain.ClientMeta) (domain.AccessLog, error) {
	req, err := c.Requests.GetByID(ctx, requestID)
	if err != nil {
		return domain.AccessLog{}, err
	}
	if req.UserID != userID || req.Status != domain.StatusAccessed {
		return domain.AccessLog{}, domain.ErrForbidden
	}

	user, err := c.Users.GetByID(ctx, userID)
	if err != nil {
		return domain.AccessLog{}, err
	}
	if err := c.allow(ctx, user.Role, domain.ActionDataDownload); err != nil {
		return domain.AccessLog{}, err
	}

	return c.appendLog(ctx, req, user, domain.AccessDownload, meta)
}

// appendLog writes the immutable audit row, then mirrors the access event.
// The row exists whether or not the mirror lands; a successful mirror is
// stamped onto the row afterwards.
func (c *AccessController) appendLog(ctx context.Context, req domain.AccessRequest, user domain.User, accessType domain.AccessType, meta domain.ClientMeta) (domain.AccessLog, error) {
	entry, err := c.Logs.Append(ctx, c.newLogEntry(req, user, accessType, meta))
	if err != nil {
		return domain.AccessLog{}, fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}
	return c.mirrorAccess(ctx, user, req.FileID, accessType, entry), nil
}

func (c *AccessController) newLogEntry(req domain.AccessRequest, user domain.User, accessType domain.AccessType, meta domain.ClientMeta) domain.AccessLog {
	requestID := req.ID
	return domain.AccessLog{
		UserID:     user.ID,
		FileID:     req.FileID,
		RequestID:  &requestID,
		AccessType: accessType,
		AccessedAt: c.now().UTC(),
		IPAddress:  meta.IPAddress,
		UserAgent:  meta.UserAgent,
	}
}

// mirrorAccess mirrors one committed audit row and stamps the receipt onto
// it when the mirror lands.
func (c *AccessController) mirrorAccess(ctx context.Context, user domain.User, fileID string, accessType domain.AccessType, entry domain.AccessLog) domain.AccessLog {
	if c.Mirror == nil {
		return entry
	}
	receipt := c.Mirror.Mirror(ctx, domain.LedgerOpLogAccess, map[string]any{
		"user_address": user.LedgerIdentity(),
		"username":     user.Username,
		"data_id":      fileID,
		"action":       string(accessType),
	})
	if receipt.Mirrored() {
		entry.LedgerTxID = receipt.TxID
		if err := c.Logs.SetLedgerTx(ctx, entry.ID, receipt.TxID); err != nil {
			c.log().WithError(err).WithField("log_id", entry.ID).Warn("access log tx not recorded")
		}
	}
	return entry
}

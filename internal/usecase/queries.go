package usecase

import (
	"context"

	"vaultd/internal/domain"
)

// Read-side queries for the presentation layer. They do not mutate state
// and never touch the ledger.

type UserDashboard struct {
	PendingCount   int64
	ApprovedCount  int64
	AccessedCount  int64
	AvailableFiles int64
	RecentRequests []domain.AccessRequest
}

type AdminDashboard struct {
	PendingCount  int64
	ApprovedCount int64
	RejectedCount int64
	AccessedCount int64
	ActiveFiles   int64
}

const recentRequestLimit = 10

func (c *AccessController) ListRequestsByUser(ctx context.Context, userID int64) ([]domain.AccessRequest, error) {
	return c.Requests.ListByUser(ctx, userID)
}

// ListRequestsByStatus is the admin triage view and is policy gated.
func (c *AccessController) ListRequestsByStatus(ctx context.Context, actorID int64, status domain.RequestStatus) ([]domain.AccessRequest, error) {
	actor, err := c.Users.GetByID(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if err := c.allow(ctx, actor.Role, domain.ActionAdminDashboard); err != nil {
		return nil, err
	}
	if !status.Valid() {
		return nil, domain.ErrValidation
	}
	return c.Requests.ListByStatus(ctx, status)
}

// ListAccessLogs returns the audit trail of one request. The owner sees
// their own trail; anyone passing the admin policy sees any trail.
func (c *AccessController) ListAccessLogs(ctx context.Context, actorID, requestID int64) ([]domain.AccessLog, error) {
	actor, err := c.Users.GetByID(ctx, actorID)
	if err != nil {
		return nil, err
	}
	req, err := c.Requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.UserID != actorID {
		if err := c.allow(ctx, actor.Role, domain.ActionAdminDashboard); err != nil {
			return nil, err
		}
	}
	return c.Logs.ListByRequest(ctx, requestID)
}

// ListUserAccessLogs returns one user's audit trail across all requests.
// Users see their own trail; anyone passing the admin policy sees any.
func (c *AccessController) ListUserAccessLogs(ctx context.Context, actorID, userID int64) ([]domain.AccessLog, error) {
	actor, err := c.Users.GetByID(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if userID != actorID {
		if err := c.allow(ctx, actor.Role, domain.ActionAdminDashboard); err != nil {
			return nil, err
		}
	}
	return c.Logs.ListByUser(ctx, userID)
}

// ListMirrorAttempts is the admin inspection view over ledger mirror
// attempts for one operation, newest first.
func (c *AccessController) ListMirrorAttempts(ctx context.Context, actorID int64, op string, limit int) ([]domain.LedgerAttempt, error) {
	actor, err := c.Users.GetByID(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if err := c.allow(ctx, actor.Role, domain.ActionAdminDashboard); err != nil {
		return nil, err
	}
	switch op {
	case domain.LedgerOpCreateRequest, domain.LedgerOpProcessRequest,
		domain.LedgerOpLogAccess, domain.LedgerOpRecordUpload:
	default:
		return nil, domain.ErrValidation
	}
	if c.Attempts == nil {
		return nil, nil
	}
	return c.Attempts.ListByOp(ctx, op, limit)
}

func (c *AccessController) GetUserDashboard(ctx context.Context, userID int64) (UserDashboard, error) {
	var dash UserDashboard
	var err error
	if dash.PendingCount, err = c.Requests.CountByUserAndStatus(ctx, userID, domain.StatusPending); err != nil {
		return UserDashboard{}, err
	}
	if dash.ApprovedCount, err = c.Requests.CountByUserAndStatus(ctx, userID, domain.StatusApproved); err != nil {
		return UserDashboard{}, err
	}
	if dash.AccessedCount, err = c.Requests.CountByUserAndStatus(ctx, userID, domain.StatusAccessed); err != nil {
		return UserDashboard{}, err
	}
	if dash.AvailableFiles, err = c.Files.CountActive(ctx); err != nil {
		return UserDashboard{}, err
	}
	recent, err := c.Requests.ListByUser(ctx, userID)
	if err != nil {
		return UserDashboard{}, err
	}
	if len(recent) > recentRequestLimit {
		recent = recent[:recentRequestLimit]
	}
	dash.RecentRequests = recent
	return dash, nil
}

func (c *AccessController) GetAdminDashboard(ctx context.Context, actorID int64) (AdminDashboard, error) {
	actor, err := c.Users.GetByID(ctx, actorID)
	if err != nil {
		return AdminDashboard{}, err
	}
	if err := c.allow(ctx, actor.Role, domain.ActionAdminDashboard); err != nil {
		return AdminDashboard{}, err
	}

	var dash AdminDashboard
	if dash.PendingCount, err = c.Requests.CountByStatus(ctx, domain.StatusPending); err != nil {
		return AdminDashboard{}, err
	}
	if dash.ApprovedCount, err = c.Requests.CountByStatus(ctx, domain.StatusApproved); err != nil {
		return AdminDashboard{}, err
	}
	if dash.RejectedCount, err = c.Requests.CountByStatus(ctx, domain.StatusRejected); err != nil {
		return AdminDashboard{}, err
	}
	if dash.AccessedCount, err = c.Requests.CountByStatus(ctx, domain.StatusAccessed); err != nil {
		return AdminDashboard{}, err
	}
	if dash.ActiveFiles, err = c.Files.CountActive(ctx); err != nil {
		return AdminDashboard{}, err
	}
	return dash, nil
}

// ListActiveFiles backs the browse view.
func (c *AccessController) ListActiveFiles(ctx context.Context) ([]domain.DataFile, error) {
	return c.Files.ListActive(ctx)
}

package domain

import "context"

// Policy actions evaluated before the corresponding controller operations.
const (
	ActionRequestCreate  = "request:create"
	ActionRequestProcess = "request:process"
	ActionDataView       = "data:view"
	ActionDataDownload   = "data:download"
	ActionDataUpload     = "data:upload"
	ActionDataModify     = "data:modify"
	ActionDataDelete     = "data:delete"
	ActionAdminDashboard = "admin:dashboard"
)

type PolicyInput struct {
	Role   Role   `json:"role"`
	Action string `json:"action"`
}

// PolicyEngine decides whether a principal may perform an action. Decisions
// are pure functions of the input and the loaded policy bundle.
type PolicyEngine interface {
	Allow(ctx context.Context, input PolicyInput) (bool, error)
}

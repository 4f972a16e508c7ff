package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"vaultd/internal/domain"
)

const userIDHeader = "X-User-ID"

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type requestResponse struct {
	ID              int64   `json:"id"`
	UserID          int64   `json:"user_id"`
	FileID          string  `json:"file_id"`
	Reason          string  `json:"reason"`
	Status          string  `json:"status"`
	RequestedAt     string  `json:"requested_at"`
	ProcessedBy     *int64  `json:"processed_by,omitempty"`
	ProcessedAt     *string `json:"processed_at,omitempty"`
	AdminNotes      string  `json:"admin_notes,omitempty"`
	OTPSent         bool    `json:"otp_sent"`
	AccessGrantedAt *string `json:"access_granted_at,omitempty"`
	RequestTxID     string  `json:"request_tx_id,omitempty"`
	ProcessTxID     string  `json:"process_tx_id,omitempty"`
	AccessTxID      string  `json:"access_tx_id,omitempty"`
}

type fileResponse struct {
	DataID      string `json:"data_id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	FileName    string `json:"file_name"`
	ContentType string `json:"content_type,omitempty"`
	SizeBytes   int64  `json:"size_bytes"`
	UploadedBy  int64  `json:"uploaded_by"`
	UploadedAt  string `json:"uploaded_at"`
	UpdatedAt   string `json:"updated_at"`
	Status      string `json:"status"`
	LedgerTxID  string `json:"ledger_tx_id,omitempty"`
}

type modificationResponse struct {
	ID          int64  `json:"id"`
	FileID      string `json:"file_id"`
	Action      string `json:"action"`
	PerformedBy int64  `json:"performed_by"`
	Details     string `json:"details,omitempty"`
	LedgerTxID  string `json:"ledger_tx_id,omitempty"`
	CreatedAt   string `json:"created_at"`
}

type attemptResponse struct {
	ID          int64  `json:"id"`
	Op          string `json:"op"`
	Status      string `json:"status"`
	ErrorCode   string `json:"error_code,omitempty"`
	TxID        string `json:"tx_id,omitempty"`
	BlockNumber int64  `json:"block_number,omitempty"`
	CreatedAt   string `json:"created_at"`
}

type logResponse struct {
	ID         int64  `json:"id"`
	UserID     int64  `json:"user_id"`
	FileID     string `json:"file_id"`
	RequestID  *int64 `json:"request_id,omitempty"`
	AccessType string `json:"access_type"`
	AccessedAt string `json:"accessed_at"`
	IPAddress  string `json:"ip_address,omitempty"`
	UserAgent  string `json:"user_agent,omitempty"`
	LedgerTxID string `json:"ledger_tx_id,omitempty"`
}

func toRequestResponse(req domain.AccessRequest) requestResponse {
	resp := requestResponse{
		ID:          req.ID,
		UserID:      req.UserID,
		FileID:      req.FileID,
		Reason:      req.Reason,
		Status:      string(req.Status),
		RequestedAt: req.RequestedAt.UTC().Format(time.RFC3339Nano),
		ProcessedBy: req.ProcessedBy,
		AdminNotes:  req.AdminNotes,
		OTPSent:     req.OTPSent,
		RequestTxID: req.RequestTxID,
		ProcessTxID: req.ProcessTxID,
		AccessTxID:  req.AccessTxID,
	}
	if req.ProcessedAt != nil {
		formatted := req.ProcessedAt.UTC().Format(time.RFC3339Nano)
		resp.ProcessedAt = &formatted
	}
	if req.AccessGrantedAt != nil {
		formatted := req.AccessGrantedAt.UTC().Format(time.RFC3339Nano)
		resp.AccessGrantedAt = &formatted
	}
	return resp
}

func toFileResponse(file domain.DataFile) fileResponse {
	return fileResponse{
		DataID:      file.DataID,
		Title:       file.Title,
		Description: file.Description,
		FileName:    file.FileName,
		ContentType: file.ContentType,
		SizeBytes:   file.SizeBytes,
		UploadedBy:  file.UploadedBy,
		UploadedAt:  file.UploadedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:   file.UpdatedAt.UTC().Format(time.RFC3339Nano),
		Status:      string(file.Status),
		LedgerTxID:  file.LedgerTxID,
	}
}

func toModificationResponse(entry domain.FileModification) modificationResponse {
	return modificationResponse{
		ID:          entry.ID,
		FileID:      entry.FileID,
		Action:      string(entry.Action),
		PerformedBy: entry.PerformedBy,
		Details:     entry.Details,
		LedgerTxID:  entry.LedgerTxID,
		CreatedAt:   entry.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func toAttemptResponse(attempt domain.LedgerAttempt) attemptResponse {
	return attemptResponse{
		ID:          attempt.ID,
		Op:          attempt.Op,
		Status:      attempt.Status,
		ErrorCode:   attempt.ErrorCode,
		TxID:        attempt.TxID,
		BlockNumber: attempt.BlockNumber,
		CreatedAt:   attempt.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func toLogResponse(entry domain.AccessLog) logResponse {
	return logResponse{
		ID:         entry.ID,
		UserID:     entry.UserID,
		FileID:     entry.FileID,
		RequestID:  entry.RequestID,
		AccessType: string(entry.AccessType),
		AccessedAt: entry.AccessedAt.UTC().Format(time.RFC3339Nano),
		IPAddress:  entry.IPAddress,
		UserAgent:  entry.UserAgent,
		LedgerTxID: entry.LedgerTxID,
	}
}

// callerID reads the gateway-authenticated user id. The API sits behind a
// proxy that owns authentication, the same trust model the gateway headers
// carry elsewhere in the platform.
func callerID(c *gin.Context) (int64, bool) {
	raw := strings.TrimSpace(c.GetHeader(userIDHeader))
	if raw == "" {
		writeErrorCode(c, http.StatusUnauthorized, "UNAUTHORIZED", userIDHeader+" required")
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeErrorCode(c, http.StatusUnauthorized, "UNAUTHORIZED", userIDHeader+" must be a positive integer")
		return 0, false
	}
	return id, true
}

func requestIDParam(c *gin.Context) (int64, bool) {
	raw := strings.TrimSpace(c.Param("id"))
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_ARGUMENT", "id must be a positive integer")
		return 0, false
	}
	return id, true
}

func dataIDParam(c *gin.Context) (string, bool) {
	raw := strings.TrimSpace(c.Param("data_id"))
	if raw == "" {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_ARGUMENT", "data_id is required")
		return "", false
	}
	return raw, true
}

func clientMeta(c *gin.Context) domain.ClientMeta {
	return domain.ClientMeta{
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		writeErrorCode(c, http.StatusBadRequest, "VALIDATION", "invalid input")
	case errors.Is(err, domain.ErrInvalidFormat):
		writeErrorCode(c, http.StatusBadRequest, "INVALID_CODE_FORMAT", "code must be 6 digits")
	case errors.Is(err, domain.ErrInvalidCode):
		writeErrorCode(c, http.StatusUnauthorized, "INVALID_CODE", "verification code rejected")
	case errors.Is(err, domain.ErrNotConfigured):
		writeErrorCode(c, http.StatusConflict, "MFA_NOT_CONFIGURED", "two-factor authentication is not configured")
	case errors.Is(err, domain.ErrForbidden):
		writeErrorCode(c, http.StatusForbidden, "FORBIDDEN", "forbidden")
	case errors.Is(err, domain.ErrNotFound):
		writeErrorCode(c, http.StatusNotFound, "NOT_FOUND", "not found")
	case errors.Is(err, domain.ErrFileUnavailable):
		writeErrorCode(c, http.StatusNotFound, "FILE_UNAVAILABLE", "file is not available")
	case errors.Is(err, domain.ErrDuplicateRequest):
		writeErrorCode(c, http.StatusConflict, "DUPLICATE_REQUEST", "an active request for this file already exists")
	case errors.Is(err, domain.ErrInvalidStateTransition):
		writeErrorCode(c, http.StatusConflict, "INVALID_STATE", "request is not in the required state")
	case errors.Is(err, domain.ErrRateLimited):
		writeErrorCode(c, http.StatusTooManyRequests, "RATE_LIMITED", "too many attempts")
	case errors.Is(err, domain.ErrLedgerUnavailable):
		writeErrorCode(c, http.StatusServiceUnavailable, "LEDGER_UNAVAILABLE", "ledger unavailable")
	default:
		writeErrorCode(c, http.StatusInternalServerError, "INTERNAL", "internal error")
	}
}

func writeErrorCode(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, errorResponse{Code: code, Message: message})
}

package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"vaultd/internal/domain"
	"vaultd/internal/usecase"
)

func (s *Server) handleCreateRequest(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	var body struct {
		FileID string `json:"file_id" binding:"required"`
		Reason string `json:"reason" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "file_id and reason are required")
		return
	}
	req, err := s.controller.CreateRequest(c.Request.Context(), userID, body.FileID, body.Reason)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"request": toRequestResponse(req)})
}

// handleListRequests returns the caller's own requests, or all requests in a
// status when the admin ?status= filter is present.
func (s *Server) handleListRequests(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		requests, err := s.controller.ListRequestsByStatus(c.Request.Context(), userID, domain.RequestStatus(raw))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"requests": toRequestResponses(requests)})
		return
	}
	requests, err := s.controller.ListRequestsByUser(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"requests": toRequestResponses(requests)})
}

func (s *Server) handleProcessRequest(c *gin.Context) {
	adminID, ok := callerID(c)
	if !ok {
		return
	}
	requestID, ok := requestIDParam(c)
	if !ok {
		return
	}
	var body struct {
		Approve *bool  `json:"approve" binding:"required"`
		Notes   string `json:"notes"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "approve is required")
		return
	}
	req, err := s.controller.ProcessRequest(c.Request.Context(), requestID, adminID, *body.Approve, body.Notes)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"request": toRequestResponse(req)})
}

func (s *Server) handleRelease(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	requestID, ok := requestIDParam(c)
	if !ok {
		return
	}
	var body struct {
		Code string `json:"code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "code is required")
		return
	}
	file, req, err := s.controller.VerifyAndRelease(c.Request.Context(), requestID, userID, body.Code, clientMeta(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"request": toRequestResponse(req),
		"file":    toFileResponse(file),
	})
}

func (s *Server) handleDownload(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	requestID, ok := requestIDParam(c)
	if !ok {
		return
	}
	entry, err := s.controller.RecordDownload(c.Request.Context(), requestID, userID, clientMeta(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"log": toLogResponse(entry)})
}

func (s *Server) handleResendOTP(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	requestID, ok := requestIDParam(c)
	if !ok {
		return
	}
	if err := s.controller.ResendOTP(c.Request.Context(), requestID, userID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sent": true})
}

func (s *Server) handleListLogs(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	requestID, ok := requestIDParam(c)
	if !ok {
		return
	}
	logs, err := s.controller.ListAccessLogs(c.Request.Context(), userID, requestID)
	if err != nil {
		writeError(c, err)
		return
	}
	resp := make([]logResponse, 0, len(logs))
	for _, entry := range logs {
		resp = append(resp, toLogResponse(entry))
	}
	c.JSON(http.StatusOK, gin.H{"logs": resp})
}

func (s *Server) handleListFiles(c *gin.Context) {
	if _, ok := callerID(c); !ok {
		return
	}
	files, err := s.controller.ListActiveFiles(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	resp := make([]fileResponse, 0, len(files))
	for _, file := range files {
		resp = append(resp, toFileResponse(file))
	}
	c.JSON(http.StatusOK, gin.H{"files": resp})
}

func (s *Server) handleRegisterFile(c *gin.Context) {
	adminID, ok := callerID(c)
	if !ok {
		return
	}
	var body struct {
		Title       string `json:"title" binding:"required"`
		Description string `json:"description"`
		FileName    string `json:"file_name" binding:"required"`
		ContentType string `json:"content_type"`
		SizeBytes   int64  `json:"size_bytes"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "title and file_name are required")
		return
	}
	file, err := s.controller.RegisterFile(c.Request.Context(), adminID, usecase.FileInput{
		Title:       body.Title,
		Description: body.Description,
		FileName:    body.FileName,
		ContentType: body.ContentType,
		SizeBytes:   body.SizeBytes,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"file": toFileResponse(file)})
}

func (s *Server) handleModifyFile(c *gin.Context) {
	adminID, ok := callerID(c)
	if !ok {
		return
	}
	dataID, ok := dataIDParam(c)
	if !ok {
		return
	}
	var body struct {
		Title       string `json:"title" binding:"required"`
		Description string `json:"description"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "title is required")
		return
	}
	file, err := s.controller.ModifyFile(c.Request.Context(), adminID, dataID, usecase.FileUpdateInput{
		Title:       body.Title,
		Description: body.Description,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"file": toFileResponse(file)})
}

func (s *Server) handleDeleteFile(c *gin.Context) {
	adminID, ok := callerID(c)
	if !ok {
		return
	}
	dataID, ok := dataIDParam(c)
	if !ok {
		return
	}
	file, err := s.controller.DeleteFile(c.Request.Context(), adminID, dataID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"file": toFileResponse(file)})
}

func (s *Server) handleFileHistory(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	dataID, ok := dataIDParam(c)
	if !ok {
		return
	}
	history, err := s.controller.ListFileHistory(c.Request.Context(), userID, dataID)
	if err != nil {
		writeError(c, err)
		return
	}
	resp := make([]modificationResponse, 0, len(history))
	for _, entry := range history {
		resp = append(resp, toModificationResponse(entry))
	}
	c.JSON(http.StatusOK, gin.H{"history": resp})
}

// handleUserLogs returns the caller's own audit trail, or another user's
// when the admin ?user_id= filter is present.
func (s *Server) handleUserLogs(c *gin.Context) {
	actorID, ok := callerID(c)
	if !ok {
		return
	}
	userID := actorID
	if raw := strings.TrimSpace(c.Query("user_id")); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed <= 0 {
			writeErrorCode(c, http.StatusBadRequest, "INVALID_ARGUMENT", "user_id must be a positive integer")
			return
		}
		userID = parsed
	}
	logs, err := s.controller.ListUserAccessLogs(c.Request.Context(), actorID, userID)
	if err != nil {
		writeError(c, err)
		return
	}
	resp := make([]logResponse, 0, len(logs))
	for _, entry := range logs {
		resp = append(resp, toLogResponse(entry))
	}
	c.JSON(http.StatusOK, gin.H{"logs": resp})
}

func (s *Server) handleLedgerAttempts(c *gin.Context) {
	adminID, ok := callerID(c)
	if !ok {
		return
	}
	op := strings.TrimSpace(c.Query("op"))
	limit := 0
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeErrorCode(c, http.StatusBadRequest, "INVALID_ARGUMENT", "limit must be a positive integer")
			return
		}
		limit = parsed
	}
	attempts, err := s.controller.ListMirrorAttempts(c.Request.Context(), adminID, op, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	resp := make([]attemptResponse, 0, len(attempts))
	for _, attempt := range attempts {
		resp = append(resp, toAttemptResponse(attempt))
	}
	c.JSON(http.StatusOK, gin.H{"attempts": resp})
}

func (s *Server) handleUserDashboard(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	dash, err := s.controller.GetUserDashboard(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"pending_count":   dash.PendingCount,
		"approved_count":  dash.ApprovedCount,
		"accessed_count":  dash.AccessedCount,
		"available_files": dash.AvailableFiles,
		"recent_requests": toRequestResponses(dash.RecentRequests),
	})
}

func (s *Server) handleAdminDashboard(c *gin.Context) {
	adminID, ok := callerID(c)
	if !ok {
		return
	}
	dash, err := s.controller.GetAdminDashboard(c.Request.Context(), adminID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"pending_count":  dash.PendingCount,
		"approved_count": dash.ApprovedCount,
		"rejected_count": dash.RejectedCount,
		"accessed_count": dash.AccessedCount,
		"active_files":   dash.ActiveFiles,
	})
}

func toRequestResponses(requests []domain.AccessRequest) []requestResponse {
	resp := make([]requestResponse, 0, len(requests))
	for _, req := range requests {
		resp = append(resp, toRequestResponse(req))
	}
	return resp
}

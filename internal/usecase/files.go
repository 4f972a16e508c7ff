package usecase

import (
	"context"
	"fmt"
	"strings"

	"vaultd/internal/domain"
)

// FileInput describes a dataset registered into the vault catalog. The
// bytes themselves live in external storage; the catalog row is what access
// requests reference.
type FileInput struct {
	DataID      string
	Title       string
	Description string
	FileName    string
	ContentType string
	SizeBytes   int64
}

// RegisterFile creates a catalog entry for a dataset and mirrors the upload
// to the ledger. Admin only.
func (c *AccessController) RegisterFile(ctx context.Context, adminID int64, input FileInput) (domain.DataFile, error) {
	admin, err := c.Users.GetByID(ctx, adminID)
	if err != nil {
		return domain.DataFile{}, err
	}
	if err := c.allow(ctx, admin.Role, domain.ActionDataUpload); err != nil {
		return domain.DataFile{}, err
	}

	if strings.TrimSpace(input.Title) == "" || strings.TrimSpace(input.FileName) == "" {
		return domain.DataFile{}, domain.ErrValidation
	}

	file, err := c.Files.Create(ctx, domain.DataFile{
		DataID:      input.DataID,
		Title:       input.Title,
		Description: input.Description,
		FileName:    input.FileName,
		ContentType: input.ContentType,
		SizeBytes:   input.SizeBytes,
		UploadedBy:  adminID,
		UploadedAt:  c.now().UTC(),
		Status:      domain.FileActive,
	})
	if err != nil {
		return domain.DataFile{}, err
	}

	if c.Mirror != nil {
		receipt := c.Mirror.Mirror(ctx, domain.LedgerOpRecordUpload, map[string]any{
			"user_address": admin.LedgerIdentity(),
			"username":     admin.Username,
			"data_id":      file.DataID,
			"data_name":    file.Title,
		})
		if receipt.Mirrored() {
			file.LedgerTxID = receipt.TxID
			if err := c.Files.SetLedgerTx(ctx, file.DataID, receipt.TxID); err != nil {
				c.log().WithError(err).WithField("data_id", file.DataID).Warn("upload tx not recorded")
			}
		}
	}

	c.appendHistory(ctx, domain.FileModification{
		FileID:      file.DataID,
		Action:      domain.ModificationUpload,
		PerformedBy: adminID,
		Details:     "Uploaded file: " + file.FileName,
		LedgerTxID:  file.LedgerTxID,
		CreatedAt:   c.now().UTC(),
	})
	return file, nil
}

// FileUpdateInput carries the admin-editable catalog fields.
type FileUpdateInput struct {
	Title       string
	Description string
}

// ModifyFile updates a file's title and description. Admin only, and only
// while the file is active. The change and its history row commit together.
func (c *AccessController) ModifyFile(ctx context.Context, adminID int64, dataID string, input FileUpdateInput) (domain.DataFile, error) {
	admin, err := c.Users.GetByID(ctx, adminID)
	if err != nil {
		return domain.DataFile{}, err
	}
	if err := c.allow(ctx, admin.Role, domain.ActionDataModify); err != nil {
		return domain.DataFile{}, err
	}
	if strings.TrimSpace(input.Title) == "" {
		return domain.DataFile{}, domain.ErrValidation
	}

	file, err := c.Files.GetActive(ctx, dataID)
	if err != nil {
		return domain.DataFile{}, err
	}

	oldTitle := file.Title
	file.Title = input.Title
	file.Description = input.Description
	file.UpdatedAt = c.now().UTC()

	entry := domain.FileModification{
		FileID:      file.DataID,
		Action:      domain.ModificationModify,
		PerformedBy: adminID,
		Details:     fmt.Sprintf("Changed title from %q to %q", oldTitle, input.Title),
		CreatedAt:   c.now().UTC(),
	}
	if _, err := c.Files.ApplyChange(ctx, file, domain.FileActive, entry); err != nil {
		return domain.DataFile{}, err
	}
	return file, nil
}

// DeleteFile soft-deletes an active file: the row stays for referential
// integrity of requests and audit logs, but the catalog no longer serves it.
func (c *AccessController) DeleteFile(ctx context.Context, adminID int64, dataID string) (domain.DataFile, error) {
	admin, err := c.Users.GetByID(ctx, adminID)
	if err != nil {
		return domain.DataFile{}, err
	}
	if err := c.allow(ctx, admin.Role, domain.ActionDataDelete); err != nil {
		return domain.DataFile{}, err
	}

	file, err := c.Files.GetActive(ctx, dataID)
	if err != nil {
		return domain.DataFile{}, err
	}

	file.Status = domain.FileDeleted
	file.UpdatedAt = c.now().UTC()

	entry := domain.FileModification{
		FileID:      file.DataID,
		Action:      domain.ModificationDelete,
		PerformedBy: adminID,
		Details:     "Deleted file: " + file.Title,
		CreatedAt:   c.now().UTC(),
	}
	if _, err := c.Files.ApplyChange(ctx, file, domain.FileActive, entry); err != nil {
		return domain.DataFile{}, err
	}
	return file, nil
}

// ListFileHistory returns a file's catalog change history, newest first.
// Admin only.
func (c *AccessController) ListFileHistory(ctx context.Context, actorID int64, dataID string) ([]domain.FileModification, error) {
	actor, err := c.Users.GetByID(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if err := c.allow(ctx, actor.Role, domain.ActionAdminDashboard); err != nil {
		return nil, err
	}
	if _, err := c.Files.GetByID(ctx, dataID); err != nil {
		return nil, err
	}
	if c.Mods == nil {
		return nil, nil
	}
	return c.Mods.ListByFile(ctx, dataID)
}

// appendHistory records a catalog event after the fact; a failed write is
// logged, not surfaced, because the catalog row is already committed.
func (c *AccessController) appendHistory(ctx context.Context, entry domain.FileModification) {
	if c.Mods == nil {
		return
	}
	if _, err := c.Mods.Append(ctx, entry); err != nil {
		c.log().WithError(err).WithField("data_id", entry.FileID).Warn("modification history not recorded")
	}
}

package db

import (
	"encoding/json"
	"time"
)

type AccessRequestModel struct {
	ID     int64  `gorm:"primaryKey;autoIncrement"`
	UserID int64  `gorm:"index;not null"`
	FileID string `gorm:"index;not null"`

	Reason      string    `gorm:"type:text;not null"`
	Status      string    `gorm:"size:10;index;not null"`
	RequestedAt time.Time `gorm:"not null"`

	ProcessedBy *int64
	ProcessedAt *time.Time
	AdminNotes  string `gorm:"type:text"`

	OTPSent         bool `gorm:"column:otp_sent;not null;default:false"`
	AccessGrantedAt *time.Time

	RequestTxID string `gorm:"size:66"`
	ProcessTxID string `gorm:"size:66"`
	AccessTxID  string `gorm:"size:66"`
}

func (AccessRequestModel) TableName() string {
	return "access_requests"
}

type AccessLogModel struct {
	ID         int64  `gorm:"primaryKey;autoIncrement"`
	UserID     int64  `gorm:"index;not null"`
	FileID     string `gorm:"index;not null"`
	RequestID  *int64 `gorm:"index"`
	AccessType string `gorm:"size:10;not null"`
	AccessedAt time.Time `gorm:"index;not null"`

	IPAddress string `gorm:"size:45"`
	UserAgent string `gorm:"type:text"`

	LedgerTxID string `gorm:"size:66"`
}

func (AccessLogModel) TableName() string {
	return "data_access_logs"
}

type DataFileModel struct {
	DataID      string `gorm:"primaryKey;size:100"`
	Title       string `gorm:"size:255;not null"`
	Description string `gorm:"type:text"`
	FileName    string `gorm:"size:255;not null"`
	ContentType string `gorm:"size:100"`
	SizeBytes   int64  `gorm:"not null"`
	UploadedBy  int64  `gorm:"index;not null"`
	UploadedAt  time.Time `gorm:"not null"`
	UpdatedAt   time.Time `gorm:"not null"`
	Status      string `gorm:"size:10;index;not null"`

	LedgerTxID string `gorm:"size:66"`
}

func (DataFileModel) TableName() string {
	return "data_files"
}

type FileModificationModel struct {
	ID          int64     `gorm:"primaryKey;autoIncrement"`
	FileID      string    `gorm:"index;not null"`
	Action      string    `gorm:"size:10;not null"`
	PerformedBy int64     `gorm:"not null"`
	Details     string    `gorm:"type:text"`
	LedgerTxID  string    `gorm:"size:66"`
	CreatedAt   time.Time `gorm:"index;not null"`
}

func (FileModificationModel) TableName() string {
	return "data_modification_log"
}

type UserModel struct {
	ID            int64  `gorm:"primaryKey;autoIncrement"`
	Username      string `gorm:"uniqueIndex;size:150;not null"`
	Email         string `gorm:"size:254;not null"`
	Role          string `gorm:"size:10;not null"`
	WalletAddress string `gorm:"size:42"`

	TOTPSecret    string `gorm:"column:totp_secret;size:64"`
	MFAConfigured bool   `gorm:"column:mfa_configured;not null;default:false"`
}

func (UserModel) TableName() string {
	return "users"
}

type OTPTokenModel struct {
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	UserID    int64     `gorm:"index;not null"`
	Code      string    `gorm:"size:6;not null"`
	Purpose   string    `gorm:"size:50;index;not null"`
	CreatedAt time.Time `gorm:"not null"`
	ExpiresAt time.Time `gorm:"index;not null"`
	Used      bool      `gorm:"not null;default:false"`
	UsedAt    *time.Time
}

func (OTPTokenModel) TableName() string {
	return "otp_tokens"
}

type LedgerAttemptModel struct {
	ID          int64           `gorm:"primaryKey;autoIncrement"`
	Op          string          `gorm:"size:64;index;not null"`
	Status      string          `gorm:"size:10;not null"`
	ErrorCode   string          `gorm:"size:32"`
	TxID        string          `gorm:"size:66"`
	BlockNumber int64
	ArgsJSON    json.RawMessage `gorm:"type:jsonb"`
	CreatedAt   time.Time       `gorm:"index;not null"`
}

func (LedgerAttemptModel) TableName() string {
	return "ledger_attempts"
}

package documents

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusDraft            Status = "Draft"
	StatusInReview         Status = "In Review"
	StatusApproved         Status = "Approved"
	StatusRejected         Status = "Rejected"
	StatusChangesRequested Status = "Changes Requested"
)

type Document struct {
	ID              uuid.UUID  `json:"id" db:"id"`
	Title           string     `json:"title" db:"title"`
	Description     string     `json:"description" db:"description"`
	Category        string     `json:"category" db:"category"`
	FileName        string     `json:"file_name" db:"file_name"`
	FileSize        int64      `json:"file_size" db:"file_size"`
	ContentType     string     `json:"content_type" db:"content_type"`
	S3Key           string     `json:"s3_key" db:"s3_key"`
	S3Bucket        string     `json:"s3_bucket" db:"s3_bucket"`
	CurrentVersion  int        `json:"current_version" db:"current_version"`
	Status          Status     `json:"status" db:"status"`
	CurrentApprover *uuid.UUID `json:"current_approver,omitempty" db:"current_approver"`
	UploadedBy      uuid.UUID  `json:"uploaded_by" db:"uploaded_by"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at" db:"updated_at"`
}

type DocumentVersion struct {
	ID            uuid.UUID `json:"id" db:"id"`
	DocumentID    uuid.UUID `json:"document_id" db:"document_id"`
	VersionNumber int       `json:"version_number" db:"version_number"`
	S3Key         string    `json:"s3_key" db:"s3_key"`
	ChangeSummary string    `json:"change_summary" db:"change_summary"`
	UploadedBy    uuid.UUID `json:"uploaded_by" db:"uploaded_by"`
	UploadedAt    time.Time `json:"uploaded_at" db:"uploaded_at"`
}

// ListFilter narrows List queries; nil fields match everything.
type ListFilter struct {
	Status     *Status
	Category   *string
	UploadedBy *uuid.UUID
}

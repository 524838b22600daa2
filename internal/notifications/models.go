package notifications

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Event keys a notification to its template pair (in-app + email).
type Event string

const (
	EventApprovalRequested Event = "approval_requested"
	EventDocumentApproved  Event = "document_approved"
	EventDocumentRejected  Event = "document_rejected"
	EventChangesRequested  Event = "changes_requested"
	EventPendingDigest     Event = "pending_digest"
)

// Request is one dispatch: an in-app notification plus a templated email to
// the same user. Vars feed the template placeholders.
type Request struct {
	UserID  uuid.UUID
	Event   Event
	Title   string
	Message string
	Link    string
	Vars    map[string]string
}

// Notification is the in-app record shown on the user's bell menu.
type Notification struct {
	ID        uuid.UUID      `json:"id" gorm:"primaryKey;type:uuid"`
	UserID    uuid.UUID      `json:"user_id" gorm:"type:uuid;not null;index"`
	Event     string         `json:"event" gorm:"not null"`
	Title     string         `json:"title" gorm:"not null"`
	Message   string         `json:"message" gorm:"not null"`
	Link      string         `json:"link"`
	Metadata  datatypes.JSON `json:"metadata" gorm:"type:jsonb"`
	IsRead    bool           `json:"is_read" gorm:"default:false;index"`
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
}

// EmailTemplate holds the subject/body pair rendered for an event. Seeded at
// startup; editable afterwards.
type EmailTemplate struct {
	ID        uuid.UUID `json:"id" gorm:"primaryKey;type:uuid"`
	Event     string    `json:"event" gorm:"uniqueIndex;not null"`
	Subject   string    `json:"subject" gorm:"not null"`
	Body      string    `json:"body" gorm:"not null"`
	IsActive  bool      `json:"is_active" gorm:"default:true"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// DeliveryLog records one email delivery attempt.
type DeliveryLog struct {
	ID          uuid.UUID `json:"id" gorm:"primaryKey;type:uuid"`
	UserID      uuid.UUID `json:"user_id" gorm:"type:uuid;not null;index"`
	Event       string    `json:"event" gorm:"not null"`
	Recipient   string    `json:"recipient" gorm:"not null"`
	Success     bool      `json:"success"`
	Error       string    `json:"error"`
	AttemptedAt time.Time `json:"attempted_at" gorm:"autoCreateTime;index"`
}

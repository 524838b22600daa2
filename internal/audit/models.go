package audit

import (
	"time"

	"github.com/google/uuid"
)

// ActionType buckets entries for filtering on the activity screen.
type ActionType string

const (
	TypeUpload   ActionType = "upload"
	TypeApproval ActionType = "approval"
	TypeDelete   ActionType = "delete"
	TypeAuth     ActionType = "auth"
)

// Entry is one append-only audit record. Entries are never updated.
type Entry struct {
	ID            uuid.UUID  `json:"id" db:"id"`
	UserID        uuid.UUID  `json:"user_id" db:"user_id"`
	UserName      string     `json:"user_name" db:"user_name"`
	Action        string     `json:"action" db:"action"`
	ActionType    ActionType `json:"action_type" db:"action_type"`
	DocumentID    *uuid.UUID `json:"document_id,omitempty" db:"document_id"`
	DocumentTitle string     `json:"document_title,omitempty" db:"document_title"`
	Details       string     `json:"details,omitempty" db:"details"`
	IPAddress     string     `json:"ip_address,omitempty" db:"ip_address"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
}

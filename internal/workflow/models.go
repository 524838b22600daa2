package workflow

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// OverallStatus is the workflow-level state, distinct from per-stage status.
type OverallStatus string

const (
	StatusInProgress       OverallStatus = "In Progress"
	StatusApproved         OverallStatus = "Approved"
	StatusRejected         OverallStatus = "Rejected"
	StatusChangesRequested OverallStatus = "Changes Requested"
)

// StageStatus is the state of a single review stage.
type StageStatus string

const (
	StagePending   StageStatus = "pending"
	StageCurrent   StageStatus = "current"
	StageCompleted StageStatus = "completed"
	StageRejected  StageStatus = "rejected"
)

// Outcome labels recorded on a stage once it leaves pending/current.
const (
	ActionApproved         = "Approved"
	ActionRejected         = "Rejected"
	ActionChangesRequested = "Changes Requested"
	ActionRevisionUploaded = "Revision Uploaded"
)

// Document statuses the workflow drives on its owning document.
const (
	DocStatusInReview         = "In Review"
	DocStatusApproved         = "Approved"
	DocStatusRejected         = "Rejected"
	DocStatusChangesRequested = "Changes Requested"
)

// Stage is one ordered review step. Assignee is always a plain user id in
// stored state; hydration into a display object happens on the response path.
type Stage struct {
	Name       string      `json:"name"`
	Assignee   uuid.UUID   `json:"assignee"`
	Department string      `json:"department,omitempty"`
	Status     StageStatus `json:"status"`
	Action     string      `json:"action,omitempty"`
	Note       string      `json:"note,omitempty"`
	ActionDate *time.Time  `json:"action_date,omitempty"`
	Order      int         `json:"order"`
}

// StageList is stored as a JSONB array on the workflow row.
type StageList []Stage

func (s StageList) Value() (driver.Value, error) {
	return json.Marshal(s)
}

func (s *StageList) Scan(src interface{}) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, s)
	case string:
		return json.Unmarshal([]byte(v), s)
	case nil:
		*s = nil
		return nil
	default:
		return fmt.Errorf("unsupported stages column type %T", src)
	}
}

// Clone returns a deep copy so transition logic never mutates stored state.
func (s StageList) Clone() StageList {
	out := make(StageList, len(s))
	copy(out, s)
	for i := range out {
		if s[i].ActionDate != nil {
			d := *s[i].ActionDate
			out[i].ActionDate = &d
		}
	}
	return out
}

// NextOrder returns the next monotonic order value for an appended stage.
// History stages never renumber earlier stages.
func (s StageList) NextOrder() int {
	max := 0
	for _, st := range s {
		if st.Order > max {
			max = st.Order
		}
	}
	return max + 1
}

// Workflow is the approval state container for one document. One workflow per
// document, created at upload, deleted only with the document.
type Workflow struct {
	ID                uuid.UUID     `json:"id" db:"id"`
	DocumentID        uuid.UUID     `json:"document_id" db:"document_id"`
	Stages            StageList     `json:"stages" db:"stages"`
	CurrentStageIndex int           `json:"current_stage_index" db:"current_stage_index"`
	OverallStatus     OverallStatus `json:"overall_status" db:"overall_status"`
	Version           int64         `json:"version" db:"version"`
	CreatedAt         time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at" db:"updated_at"`
}

// CurrentStage returns the stage at the current pointer, or nil when the
// pointer is out of range.
func (w *Workflow) CurrentStage() *Stage {
	if w.CurrentStageIndex < 0 || w.CurrentStageIndex >= len(w.Stages) {
		return nil
	}
	return &w.Stages[w.CurrentStageIndex]
}

// DocumentSummary is the slice of the document record the orchestrator needs
// for status sync, audit entries, and notifications.
type DocumentSummary struct {
	ID      uuid.UUID
	Title   string
	OwnerID uuid.UUID
	Version int
}

package workflow

import (
	"time"

	"github.com/google/uuid"
)

// Outcome is the result of a pure stage transition: the new stage array and
// pointers plus the document-side effects the orchestrator must apply.
type Outcome struct {
	Stages            StageList
	CurrentStageIndex int
	OverallStatus     OverallStatus
	NextApprover      *uuid.UUID
	DocumentStatus    string
	ClearApprover     bool
}

// Approve marks the current stage completed and either advances the pointer
// to the next stage or, on the last stage, closes the workflow as approved.
// The note defaults to "Approved" when empty.
func Approve(wf *Workflow, note string, now time.Time) (Outcome, error) {
	if wf.OverallStatus != StatusInProgress {
		return Outcome{}, ErrInvalidState
	}
	stage := wf.CurrentStage()
	if stage == nil {
		return Outcome{}, ErrInvalidState
	}
	if note == "" {
		note = ActionApproved
	}

	stages := wf.Stages.Clone()
	cur := &stages[wf.CurrentStageIndex]
	cur.Status = StageCompleted
	cur.Action = ActionApproved
	cur.Note = note
	cur.ActionDate = &now

	out := Outcome{
		Stages:            stages,
		CurrentStageIndex: wf.CurrentStageIndex,
	}

	if wf.CurrentStageIndex == len(stages)-1 {
		out.OverallStatus = StatusApproved
		out.DocumentStatus = DocStatusApproved
		out.ClearApprover = true
		return out, nil
	}

	next := wf.CurrentStageIndex + 1
	stages[next].Status = StageCurrent
	assignee := stages[next].Assignee
	out.CurrentStageIndex = next
	out.OverallStatus = StatusInProgress
	out.NextApprover = &assignee
	out.DocumentStatus = DocStatusInReview
	return out, nil
}

// Reject marks the current stage rejected and closes the workflow. The stage
// pointer does not move; a later revision upload reopens from here. A note is
// mandatory.
func Reject(wf *Workflow, note string, now time.Time) (Outcome, error) {
	if wf.OverallStatus != StatusInProgress {
		return Outcome{}, ErrInvalidState
	}
	if note == "" {
		return Outcome{}, ErrMissingNote
	}

	stages := wf.Stages.Clone()
	if stage := wf.CurrentStage(); stage != nil {
		cur := &stages[wf.CurrentStageIndex]
		cur.Status = StageRejected
		cur.Action = ActionRejected
		cur.Note = note
		cur.ActionDate = &now
	}

	return Outcome{
		Stages:            stages,
		CurrentStageIndex: wf.CurrentStageIndex,
		OverallStatus:     StatusRejected,
		DocumentStatus:    DocStatusRejected,
		ClearApprover:     true,
	}, nil
}

// RequestChanges annotates the current stage without completing it: the stage
// stays current so review resumes there once the owner uploads a revision.
// A note is mandatory.
func RequestChanges(wf *Workflow, note string, now time.Time) (Outcome, error) {
	if wf.OverallStatus != StatusInProgress {
		return Outcome{}, ErrInvalidState
	}
	if note == "" {
		return Outcome{}, ErrMissingNote
	}

	stages := wf.Stages.Clone()
	if stage := wf.CurrentStage(); stage != nil {
		cur := &stages[wf.CurrentStageIndex]
		cur.Action = ActionChangesRequested
		cur.Note = note
		cur.ActionDate = &now
	}

	return Outcome{
		Stages:            stages,
		CurrentStageIndex: wf.CurrentStageIndex,
		OverallStatus:     StatusChangesRequested,
		DocumentStatus:    DocStatusChangesRequested,
	}, nil
}

// ApplyRevision handles a new document version from the owner: halted stages
// (rejected, or annotated with a change request) reset to pending, a history
// stage records the revision, and the first pending stage not assigned to the
// uploader becomes current again.
func ApplyRevision(wf *Workflow, uploader uuid.UUID, note string, now time.Time) (Outcome, error) {
	stages := wf.Stages.Clone()

	for i := range stages {
		st := &stages[i]
		switch {
		case st.Status == StageRejected:
			resetStage(st)
		case st.Action == ActionChangesRequested && st.Status != StageCompleted:
			resetStage(st)
		case st.Status == StageCurrent:
			// Demoted so the promotion scan below picks the single
			// current stage.
			st.Status = StagePending
		}
	}

	if note == "" {
		note = ActionRevisionUploaded
	}
	stages = append(stages, Stage{
		Name:       "Revision",
		Assignee:   uploader,
		Status:     StageCompleted,
		Action:     ActionRevisionUploaded,
		Note:       note,
		ActionDate: &now,
		Order:      stages.NextOrder(),
	})

	out := Outcome{
		Stages:            stages,
		CurrentStageIndex: wf.CurrentStageIndex,
	}

	idx := firstPendingStage(stages, uploader)
	if idx < 0 {
		// Every pending stage belongs to the uploader; fall back to
		// plain creation order rather than stalling the workflow.
		idx = firstPendingStage(stages, uuid.Nil)
	}
	if idx < 0 {
		// Nothing to resume: every stage is settled, as on a fully
		// approved workflow. The upload is recorded but the status and
		// pointer stand.
		out.OverallStatus = wf.OverallStatus
		out.DocumentStatus = docStatusFor(wf.OverallStatus)
		return out, nil
	}

	stages[idx].Status = StageCurrent
	assignee := stages[idx].Assignee
	out.CurrentStageIndex = idx
	out.OverallStatus = StatusInProgress
	out.NextApprover = &assignee
	out.DocumentStatus = DocStatusInReview
	return out, nil
}

// docStatusFor maps a workflow status onto the owning document's status.
func docStatusFor(status OverallStatus) string {
	switch status {
	case StatusApproved:
		return DocStatusApproved
	case StatusRejected:
		return DocStatusRejected
	case StatusChangesRequested:
		return DocStatusChangesRequested
	default:
		return DocStatusInReview
	}
}

func resetStage(st *Stage) {
	st.Status = StagePending
	st.Action = ""
	st.Note = ""
	st.ActionDate = nil
}

// firstPendingStage returns the index of the first pending stage whose
// assignee differs from skip, or -1. Ties break on creation order, never on
// the order field.
func firstPendingStage(stages StageList, skip uuid.UUID) int {
	for i, st := range stages {
		if st.Status != StagePending {
			continue
		}
		if skip != uuid.Nil && st.Assignee == skip {
			continue
		}
		return i
	}
	return -1
}

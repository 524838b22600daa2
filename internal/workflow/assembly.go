package workflow

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Reviewer is one entry of the ordered reviewer list supplied at upload or
// edit time, already resolved against the user directory.
type Reviewer struct {
	ID         uuid.UUID
	Name       string
	Department string
}

// AssemblyInput describes the upload event a new workflow is built from.
type AssemblyInput struct {
	DocumentID         uuid.UUID
	Uploader           Reviewer
	Reviewers          []Reviewer
	// FallbackApprover receives the single default stage when no reviewer
	// list was supplied. Zero value falls back to the uploader.
	FallbackApprover *Reviewer
}

// Assemble builds the initial workflow for a freshly uploaded document.
// Stage 1 records the submission itself and is born completed; it never
// re-enters the decision loop.
func Assemble(in AssemblyInput, now time.Time) *Workflow {
	stages := StageList{{
		Name:       "Submission",
		Assignee:   in.Uploader.ID,
		Department: in.Uploader.Department,
		Status:     StageCompleted,
		Action:     ActionApproved,
		Note:       "submitted version 1.0",
		ActionDate: &now,
		Order:      1,
	}}

	currentIndex := 0
	if len(in.Reviewers) > 0 {
		for i, r := range in.Reviewers {
			status := StagePending
			if i == 0 {
				status = StageCurrent
			}
			stages = append(stages, Stage{
				Name:       stageName(r),
				Assignee:   r.ID,
				Department: r.Department,
				Status:     status,
				Order:      i + 2,
			})
		}
		currentIndex = 1
	} else {
		fallback := in.Uploader
		if in.FallbackApprover != nil {
			fallback = *in.FallbackApprover
		}
		stages = append(stages, Stage{
			Name:       stageName(fallback),
			Assignee:   fallback.ID,
			Department: fallback.Department,
			Status:     StageCurrent,
			Order:      2,
		})
		currentIndex = 1
	}

	return &Workflow{
		ID:                uuid.New(),
		DocumentID:        in.DocumentID,
		Stages:            stages,
		CurrentStageIndex: currentIndex,
		OverallStatus:     StatusInProgress,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

// Reassemble rebuilds the stage list after the reviewer list of a document
// changed. Completed and rejected stages are kept as immutable history; fresh
// stages for the new reviewers are appended with continuing order values and
// the first of them becomes current. A rejected stage in history pins the
// overall status to Rejected until the next revision upload. An empty reviewer
// list keeps the prior status; the service rejects it before it gets here.
func Reassemble(wf *Workflow, reviewers []Reviewer, now time.Time) (StageList, int, OverallStatus) {
	kept := make(StageList, 0, len(wf.Stages)+len(reviewers))
	rejected := false
	for _, st := range wf.Stages {
		if st.Status == StageCompleted || st.Status == StageRejected {
			kept = append(kept, st)
			if st.Status == StageRejected {
				rejected = true
			}
		}
	}

	currentIndex := wf.CurrentStageIndex
	if len(reviewers) > 0 {
		currentIndex = len(kept)
	} else if currentIndex >= len(kept) {
		// Unsettled stages were dropped; keep the pointer in range. The
		// submission stage guarantees kept is never empty.
		currentIndex = len(kept) - 1
	}
	order := kept.NextOrder()
	for i, r := range reviewers {
		status := StagePending
		if i == 0 {
			status = StageCurrent
		}
		kept = append(kept, Stage{
			Name:       stageName(r),
			Assignee:   r.ID,
			Department: r.Department,
			Status:     status,
			Order:      order + i,
		})
	}

	status := StatusInProgress
	if rejected {
		status = StatusRejected
	} else if len(reviewers) == 0 {
		// No fresh stage became current, so nothing reopened.
		status = wf.OverallStatus
	}
	return kept, currentIndex, status
}

func stageName(r Reviewer) string {
	if r.Name == "" {
		return "Review"
	}
	return fmt.Sprintf("%s Review", r.Name)
}

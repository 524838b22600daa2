package workflow

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// threeStageWorkflow builds [submission(completed), R1(current), R2(pending)]
// with the pointer on R1.
func threeStageWorkflow(submitter, r1, r2 uuid.UUID) *Workflow {
	now := time.Now()
	return &Workflow{
		ID:         uuid.New(),
		DocumentID: uuid.New(),
		Stages: StageList{
			{Name: "Submission", Assignee: submitter, Status: StageCompleted, Action: ActionApproved, Note: "submitted version 1.0", ActionDate: &now, Order: 1},
			{Name: "R1 Review", Assignee: r1, Status: StageCurrent, Order: 2},
			{Name: "R2 Review", Assignee: r2, Status: StagePending, Order: 3},
		},
		CurrentStageIndex: 1,
		OverallStatus:     StatusInProgress,
	}
}

func countByStatus(stages StageList, status StageStatus) int {
	n := 0
	for _, st := range stages {
		if st.Status == status {
			n++
		}
	}
	return n
}

func TestApproveAdvancesToNextStage(t *testing.T) {
	r1 := uuid.New()
	r2 := uuid.New()
	wf := threeStageWorkflow(uuid.New(), r1, r2)

	out, err := Approve(wf, "ok", time.Now())
	require.NoError(t, err)

	assert.Equal(t, StageCompleted, out.Stages[1].Status)
	assert.Equal(t, ActionApproved, out.Stages[1].Action)
	assert.Equal(t, "ok", out.Stages[1].Note)
	assert.NotNil(t, out.Stages[1].ActionDate)
	assert.Equal(t, StageCurrent, out.Stages[2].Status)
	assert.Equal(t, 2, out.CurrentStageIndex)
	assert.Equal(t, StatusInProgress, out.OverallStatus)
	assert.Equal(t, DocStatusInReview, out.DocumentStatus)
	require.NotNil(t, out.NextApprover)
	assert.Equal(t, r2, *out.NextApprover)
}

func TestApproveDefaultsNote(t *testing.T) {
	wf := threeStageWorkflow(uuid.New(), uuid.New(), uuid.New())

	out, err := Approve(wf, "", time.Now())
	require.NoError(t, err)
	assert.Equal(t, "Approved", out.Stages[1].Note)
}

func TestApproveFinalStageClosesWorkflow(t *testing.T) {
	wf := threeStageWorkflow(uuid.New(), uuid.New(), uuid.New())
	wf.Stages[1].Status = StageCompleted
	wf.Stages[2].Status = StageCurrent
	wf.CurrentStageIndex = 2

	out, err := Approve(wf, "", time.Now())
	require.NoError(t, err)

	assert.Equal(t, StatusApproved, out.OverallStatus)
	assert.Equal(t, DocStatusApproved, out.DocumentStatus)
	assert.Nil(t, out.NextApprover)
	assert.True(t, out.ClearApprover)
	assert.Zero(t, countByStatus(out.Stages, StageCurrent))
}

func TestApproveDoesNotMutateInput(t *testing.T) {
	wf := threeStageWorkflow(uuid.New(), uuid.New(), uuid.New())

	_, err := Approve(wf, "ok", time.Now())
	require.NoError(t, err)

	assert.Equal(t, StageCurrent, wf.Stages[1].Status)
	assert.Equal(t, 1, wf.CurrentStageIndex)
	assert.Equal(t, StatusInProgress, wf.OverallStatus)
}

func TestApproveRequiresInProgress(t *testing.T) {
	wf := threeStageWorkflow(uuid.New(), uuid.New(), uuid.New())
	wf.OverallStatus = StatusApproved

	_, err := Approve(wf, "", time.Now())
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestRejectRequiresNote(t *testing.T) {
	wf := threeStageWorkflow(uuid.New(), uuid.New(), uuid.New())

	_, err := Reject(wf, "", time.Now())
	assert.ErrorIs(t, err, ErrMissingNote)
	// Input untouched.
	assert.Equal(t, StageCurrent, wf.Stages[1].Status)
}

func TestRejectClosesWorkflow(t *testing.T) {
	wf := threeStageWorkflow(uuid.New(), uuid.New(), uuid.New())

	out, err := Reject(wf, "bad formatting", time.Now())
	require.NoError(t, err)

	assert.Equal(t, StageRejected, out.Stages[1].Status)
	assert.Equal(t, ActionRejected, out.Stages[1].Action)
	assert.Equal(t, "bad formatting", out.Stages[1].Note)
	assert.Equal(t, StatusRejected, out.OverallStatus)
	assert.Equal(t, DocStatusRejected, out.DocumentStatus)
	assert.True(t, out.ClearApprover)
	// The pointer stays on the rejected stage for the next revision.
	assert.Equal(t, 1, out.CurrentStageIndex)
}

func TestRequestChangesKeepsStageCurrent(t *testing.T) {
	wf := threeStageWorkflow(uuid.New(), uuid.New(), uuid.New())

	out, err := RequestChanges(wf, "tighten section 2", time.Now())
	require.NoError(t, err)

	assert.Equal(t, StageCurrent, out.Stages[1].Status)
	assert.Equal(t, ActionChangesRequested, out.Stages[1].Action)
	assert.Equal(t, StatusChangesRequested, out.OverallStatus)
	assert.Equal(t, DocStatusChangesRequested, out.DocumentStatus)
	assert.False(t, out.ClearApprover)
}

func TestRequestChangesRequiresNote(t *testing.T) {
	wf := threeStageWorkflow(uuid.New(), uuid.New(), uuid.New())

	_, err := RequestChanges(wf, "", time.Now())
	assert.ErrorIs(t, err, ErrMissingNote)
}

func TestRevisionResetsRejectedStage(t *testing.T) {
	submitter := uuid.New()
	r1 := uuid.New()
	r2 := uuid.New()
	wf := threeStageWorkflow(submitter, r1, r2)

	rejected, err := Reject(wf, "bad formatting", time.Now())
	require.NoError(t, err)
	wf.Stages = rejected.Stages
	wf.OverallStatus = rejected.OverallStatus

	out, err := ApplyRevision(wf, submitter, "submitted version 2.0", time.Now())
	require.NoError(t, err)

	// One new history stage with the next order value.
	require.Len(t, out.Stages, 4)
	history := out.Stages[3]
	assert.Equal(t, StageCompleted, history.Status)
	assert.Equal(t, ActionRevisionUploaded, history.Action)
	assert.Equal(t, 4, history.Order)
	assert.Equal(t, submitter, history.Assignee)

	// The rejected stage is pending history no more: reset and promoted.
	assert.Equal(t, StageCurrent, out.Stages[1].Status)
	assert.Empty(t, out.Stages[1].Action)
	assert.Empty(t, out.Stages[1].Note)
	assert.Nil(t, out.Stages[1].ActionDate)
	assert.Equal(t, 1, out.CurrentStageIndex)
	assert.Equal(t, StatusInProgress, out.OverallStatus)
	require.NotNil(t, out.NextApprover)
	assert.Equal(t, r1, *out.NextApprover)
	assert.Equal(t, 1, countByStatus(out.Stages, StageCurrent))
}

func TestRevisionResetsChangesRequestedStage(t *testing.T) {
	submitter := uuid.New()
	r1 := uuid.New()
	wf := threeStageWorkflow(submitter, r1, uuid.New())

	annotated, err := RequestChanges(wf, "tighten section 2", time.Now())
	require.NoError(t, err)
	wf.Stages = annotated.Stages
	wf.OverallStatus = annotated.OverallStatus

	out, err := ApplyRevision(wf, submitter, "submitted version 2.0", time.Now())
	require.NoError(t, err)

	assert.Equal(t, StageCurrent, out.Stages[1].Status)
	assert.Empty(t, out.Stages[1].Action)
	assert.Equal(t, StatusInProgress, out.OverallStatus)
	assert.Equal(t, 1, countByStatus(out.Stages, StageCurrent))
}

func TestRevisionSkipsUploaderStages(t *testing.T) {
	submitter := uuid.New()
	r2 := uuid.New()
	// The first reviewer stage belongs to the uploader; the scan must skip
	// it and promote the next one.
	wf := threeStageWorkflow(submitter, submitter, r2)
	rejected, err := Reject(wf, "no", time.Now())
	require.NoError(t, err)
	wf.Stages = rejected.Stages
	wf.OverallStatus = rejected.OverallStatus

	out, err := ApplyRevision(wf, submitter, "", time.Now())
	require.NoError(t, err)

	assert.Equal(t, StageCurrent, out.Stages[2].Status)
	assert.Equal(t, 2, out.CurrentStageIndex)
	require.NotNil(t, out.NextApprover)
	assert.Equal(t, r2, *out.NextApprover)
}

func TestRevisionKeepsHistoryOrderMonotonic(t *testing.T) {
	submitter := uuid.New()
	wf := threeStageWorkflow(submitter, uuid.New(), uuid.New())
	rejected, _ := Reject(wf, "no", time.Now())
	wf.Stages = rejected.Stages
	wf.OverallStatus = rejected.OverallStatus

	first, err := ApplyRevision(wf, submitter, "", time.Now())
	require.NoError(t, err)
	wf.Stages = first.Stages
	wf.CurrentStageIndex = first.CurrentStageIndex
	wf.OverallStatus = first.OverallStatus

	rejected, _ = Reject(wf, "still no", time.Now())
	wf.Stages = rejected.Stages
	wf.OverallStatus = rejected.OverallStatus

	second, err := ApplyRevision(wf, submitter, "", time.Now())
	require.NoError(t, err)

	orders := make([]int, 0, len(second.Stages))
	for _, st := range second.Stages {
		orders = append(orders, st.Order)
	}
	for i := 1; i < len(orders); i++ {
		assert.Greater(t, orders[i], orders[i-1], "orders must stay monotonic: %v", orders)
	}
}

func TestRevisionOnApprovedWorkflowKeepsStatus(t *testing.T) {
	submitter := uuid.New()
	wf := threeStageWorkflow(submitter, uuid.New(), uuid.New())
	wf.Stages[1].Status = StageCompleted
	wf.Stages[2].Status = StageCompleted
	wf.CurrentStageIndex = 2
	wf.OverallStatus = StatusApproved

	out, err := ApplyRevision(wf, submitter, "submitted version 2.0", time.Now())
	require.NoError(t, err)

	// No stage to resume, so the approval stands; only the upload is
	// recorded.
	assert.Equal(t, StatusApproved, out.OverallStatus)
	assert.Equal(t, DocStatusApproved, out.DocumentStatus)
	assert.Nil(t, out.NextApprover)
	assert.Equal(t, 0, countByStatus(out.Stages, StageCurrent))
	assert.Equal(t, 2, out.CurrentStageIndex)
	require.Len(t, out.Stages, 4)
	assert.Equal(t, ActionRevisionUploaded, out.Stages[3].Action)
}

func TestSingleCurrentStageInvariant(t *testing.T) {
	submitter := uuid.New()
	wf := threeStageWorkflow(submitter, uuid.New(), uuid.New())

	out, err := Approve(wf, "", time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, countByStatus(out.Stages, StageCurrent))

	wf.Stages = out.Stages
	wf.CurrentStageIndex = out.CurrentStageIndex

	// A revision in mid-review must not leave two current stages behind.
	rev, err := ApplyRevision(wf, submitter, "", time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, countByStatus(rev.Stages, StageCurrent))
	assert.Equal(t, rev.Stages[rev.CurrentStageIndex].Status, StageCurrent)
}

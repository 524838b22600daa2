package workflow

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/omreki/domasy/internal/audit"
	"github.com/omreki/domasy/internal/notifications"
	"github.com/omreki/domasy/internal/users"
)

// MockRepository is a mock implementation of the Repository interface
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Create(ctx context.Context, wf *Workflow) error {
	args := m.Called(ctx, wf)
	return args.Error(0)
}

func (m *MockRepository) GetByID(ctx context.Context, id uuid.UUID) (*Workflow, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Workflow), args.Error(1)
}

func (m *MockRepository) GetByDocumentID(ctx context.Context, documentID uuid.UUID) (*Workflow, error) {
	args := m.Called(ctx, documentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Workflow), args.Error(1)
}

func (m *MockRepository) Update(ctx context.Context, wf *Workflow) error {
	args := m.Called(ctx, wf)
	return args.Error(0)
}

func (m *MockRepository) DeleteByDocumentID(ctx context.Context, documentID uuid.UUID) error {
	args := m.Called(ctx, documentID)
	return args.Error(0)
}

func (m *MockRepository) ListPendingForUser(ctx context.Context, userID uuid.UUID) ([]Workflow, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]Workflow), args.Error(1)
}

func (m *MockRepository) CountPendingByAssignee(ctx context.Context) (map[uuid.UUID]int, error) {
	args := m.Called(ctx)
	return args.Get(0).(map[uuid.UUID]int), args.Error(1)
}

type MockDocumentStore struct {
	mock.Mock
}

func (m *MockDocumentStore) FindSummary(ctx context.Context, id uuid.UUID) (*DocumentSummary, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*DocumentSummary), args.Error(1)
}

func (m *MockDocumentStore) UpdateReviewState(ctx context.Context, id uuid.UUID, status string, currentApprover *uuid.UUID) error {
	args := m.Called(ctx, id, status, currentApprover)
	return args.Error(0)
}

type MockDirectory struct {
	mock.Mock
}

func (m *MockDirectory) FindByID(ctx context.Context, id uuid.UUID) (*users.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*users.User), args.Error(1)
}

type MockAuditSink struct {
	mock.Mock
}

func (m *MockAuditSink) Append(ctx context.Context, entry audit.Entry) {
	m.Called(ctx, entry)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Dispatch(ctx context.Context, req notifications.Request) {
	m.Called(ctx, req)
}

type serviceFixture struct {
	repo     *MockRepository
	docs     *MockDocumentStore
	dir      *MockDirectory
	auditor  *MockAuditSink
	notifier *MockNotifier
	service  *Service
}

func newServiceFixture() *serviceFixture {
	f := &serviceFixture{
		repo:     new(MockRepository),
		docs:     new(MockDocumentStore),
		dir:      new(MockDirectory),
		auditor:  new(MockAuditSink),
		notifier: new(MockNotifier),
	}
	f.service = NewService(f.repo, f.docs, f.dir, f.auditor, f.notifier, zap.NewNop())
	return f
}

func (f *serviceFixture) allowHydration() {
	f.dir.On("FindByID", mock.Anything, mock.Anything).Return(nil, nil).Maybe()
}

func TestApproveTransition(t *testing.T) {
	f := newServiceFixture()
	ctx := context.Background()

	r1 := uuid.New()
	r2 := uuid.New()
	wf := threeStageWorkflow(uuid.New(), r1, r2)
	doc := &DocumentSummary{ID: wf.DocumentID, Title: "Q3 Budget", OwnerID: uuid.New()}

	f.repo.On("GetByID", ctx, wf.ID).Return(wf, nil)
	f.repo.On("Update", ctx, mock.AnythingOfType("*workflow.Workflow")).Return(nil)
	f.docs.On("FindSummary", ctx, wf.DocumentID).Return(doc, nil)
	f.docs.On("UpdateReviewState", ctx, wf.DocumentID, DocStatusInReview, mock.AnythingOfType("*uuid.UUID")).Return(nil)
	f.auditor.On("Append", ctx, mock.AnythingOfType("audit.Entry")).Return()
	f.notifier.On("Dispatch", ctx, mock.MatchedBy(func(req notifications.Request) bool {
		return req.Event == notifications.EventApprovalRequested && req.UserID == r2
	})).Return()
	f.allowHydration()

	actor := &users.User{ID: r1, Name: "Ben", Role: users.RoleEmployee}
	view, err := f.service.Approve(ctx, ActionRequest{WorkflowID: wf.ID, Actor: actor, Note: "ok"})

	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, view.OverallStatus)
	assert.Equal(t, 2, view.CurrentStageIndex)
	assert.Equal(t, StageCurrent, view.Stages[2].Status)

	f.repo.AssertExpectations(t)
	f.docs.AssertExpectations(t)
	f.auditor.AssertExpectations(t)
	f.notifier.AssertExpectations(t)
}

func TestFinalApproveNotifiesOwner(t *testing.T) {
	f := newServiceFixture()
	ctx := context.Background()

	owner := uuid.New()
	r2 := uuid.New()
	wf := threeStageWorkflow(owner, uuid.New(), r2)
	wf.Stages[1].Status = StageCompleted
	wf.Stages[2].Status = StageCurrent
	wf.CurrentStageIndex = 2
	doc := &DocumentSummary{ID: wf.DocumentID, Title: "Q3 Budget", OwnerID: owner}

	f.repo.On("GetByID", ctx, wf.ID).Return(wf, nil)
	f.repo.On("Update", ctx, mock.Anything).Return(nil)
	f.docs.On("FindSummary", ctx, wf.DocumentID).Return(doc, nil)
	f.docs.On("UpdateReviewState", ctx, wf.DocumentID, DocStatusApproved, (*uuid.UUID)(nil)).Return(nil)
	f.auditor.On("Append", ctx, mock.Anything).Return()
	f.notifier.On("Dispatch", ctx, mock.MatchedBy(func(req notifications.Request) bool {
		return req.Event == notifications.EventDocumentApproved && req.UserID == owner
	})).Return()
	f.allowHydration()

	actor := &users.User{ID: r2, Role: users.RoleEmployee}
	view, err := f.service.Approve(ctx, ActionRequest{WorkflowID: wf.ID, Actor: actor})

	require.NoError(t, err)
	assert.Equal(t, StatusApproved, view.OverallStatus)
	f.docs.AssertExpectations(t)
	f.notifier.AssertExpectations(t)
}

func TestApproveNotFound(t *testing.T) {
	f := newServiceFixture()
	ctx := context.Background()
	id := uuid.New()

	f.repo.On("GetByID", ctx, id).Return(nil, nil)

	_, err := f.service.Approve(ctx, ActionRequest{WorkflowID: id, Actor: &users.User{ID: uuid.New()}})
	assert.ErrorIs(t, err, ErrNotFound)
	f.repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestForbiddenActorProducesNoSideEffects(t *testing.T) {
	f := newServiceFixture()
	ctx := context.Background()

	wf := threeStageWorkflow(uuid.New(), uuid.New(), uuid.New())
	f.repo.On("GetByID", ctx, wf.ID).Return(wf, nil)

	actor := &users.User{ID: uuid.New(), Role: users.RoleEmployee}
	_, err := f.service.Approve(ctx, ActionRequest{WorkflowID: wf.ID, Actor: actor})

	assert.ErrorIs(t, err, ErrForbidden)
	f.repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	f.auditor.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
	f.notifier.AssertNotCalled(t, "Dispatch", mock.Anything, mock.Anything)
}

func TestRejectWithoutNoteLeavesWorkflowUntouched(t *testing.T) {
	f := newServiceFixture()
	ctx := context.Background()

	r1 := uuid.New()
	wf := threeStageWorkflow(uuid.New(), r1, uuid.New())
	f.repo.On("GetByID", ctx, wf.ID).Return(wf, nil)

	actor := &users.User{ID: r1, Role: users.RoleEmployee}
	_, err := f.service.Reject(ctx, ActionRequest{WorkflowID: wf.ID, Actor: actor})

	assert.ErrorIs(t, err, ErrMissingNote)
	f.repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	f.auditor.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
}

func TestReplayedApproveObservesInvalidState(t *testing.T) {
	f := newServiceFixture()
	ctx := context.Background()

	wf := threeStageWorkflow(uuid.New(), uuid.New(), uuid.New())
	wf.OverallStatus = StatusApproved
	f.repo.On("GetByID", ctx, wf.ID).Return(wf, nil)

	// Admins pass the guard, so the terminal-state check is what stops the
	// replay from double-advancing.
	actor := &users.User{ID: uuid.New(), Role: users.RoleAdmin}
	_, err := f.service.Approve(ctx, ActionRequest{WorkflowID: wf.ID, Actor: actor})

	assert.ErrorIs(t, err, ErrInvalidState)
	f.repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestVersionConflictRetries(t *testing.T) {
	f := newServiceFixture()
	ctx := context.Background()

	r1 := uuid.New()
	wf := threeStageWorkflow(uuid.New(), r1, uuid.New())
	doc := &DocumentSummary{ID: wf.DocumentID, Title: "Doc", OwnerID: uuid.New()}

	// Each load must see the pre-transition state, as a real store would.
	reload := *wf
	reload.Stages = wf.Stages.Clone()
	f.repo.On("GetByID", ctx, wf.ID).Return(wf, nil).Once()
	f.repo.On("GetByID", ctx, wf.ID).Return(&reload, nil).Once()
	f.repo.On("Update", ctx, mock.Anything).Return(ErrVersionConflict).Once()
	f.repo.On("Update", ctx, mock.Anything).Return(nil).Once()
	f.docs.On("FindSummary", ctx, wf.DocumentID).Return(doc, nil)
	f.docs.On("UpdateReviewState", ctx, wf.DocumentID, DocStatusInReview, mock.Anything).Return(nil)
	f.auditor.On("Append", ctx, mock.Anything).Return()
	f.notifier.On("Dispatch", ctx, mock.Anything).Return()
	f.allowHydration()

	actor := &users.User{ID: r1, Role: users.RoleEmployee}
	_, err := f.service.Approve(ctx, ActionRequest{WorkflowID: wf.ID, Actor: actor, Note: "ok"})

	require.NoError(t, err)
	f.repo.AssertNumberOfCalls(t, "Update", 2)
}

func TestDeletedDocumentSkipsSync(t *testing.T) {
	f := newServiceFixture()
	ctx := context.Background()

	r1 := uuid.New()
	wf := threeStageWorkflow(uuid.New(), r1, uuid.New())

	f.repo.On("GetByID", ctx, wf.ID).Return(wf, nil)
	f.repo.On("Update", ctx, mock.Anything).Return(nil)
	f.docs.On("FindSummary", ctx, wf.DocumentID).Return(nil, nil)
	f.auditor.On("Append", ctx, mock.Anything).Return()
	f.allowHydration()

	actor := &users.User{ID: r1, Role: users.RoleEmployee}
	view, err := f.service.Approve(ctx, ActionRequest{WorkflowID: wf.ID, Actor: actor, Note: "ok"})

	// The committed transition still succeeds; only the sync is skipped.
	require.NoError(t, err)
	assert.NotNil(t, view)
	f.docs.AssertNotCalled(t, "UpdateReviewState", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.notifier.AssertNotCalled(t, "Dispatch", mock.Anything, mock.Anything)
}

func TestRecordRevisionResetsAndNotifies(t *testing.T) {
	f := newServiceFixture()
	ctx := context.Background()

	submitter := uuid.New()
	r1 := uuid.New()
	wf := threeStageWorkflow(submitter, r1, uuid.New())
	rejected, err := Reject(wf, "bad", time.Now())
	require.NoError(t, err)
	wf.Stages = rejected.Stages
	wf.OverallStatus = rejected.OverallStatus
	doc := &DocumentSummary{ID: wf.DocumentID, Title: "Doc", OwnerID: submitter}

	f.repo.On("GetByDocumentID", ctx, wf.DocumentID).Return(wf, nil)
	f.repo.On("Update", ctx, mock.Anything).Return(nil)
	f.docs.On("FindSummary", ctx, wf.DocumentID).Return(doc, nil)
	f.docs.On("UpdateReviewState", ctx, wf.DocumentID, DocStatusInReview, mock.Anything).Return(nil)
	f.notifier.On("Dispatch", ctx, mock.MatchedBy(func(req notifications.Request) bool {
		return req.Event == notifications.EventApprovalRequested && req.UserID == r1
	})).Return()

	updated, err := f.service.RecordRevision(ctx, wf.DocumentID, submitter, 2)
	require.NoError(t, err)

	assert.Equal(t, StatusInProgress, updated.OverallStatus)
	require.Len(t, updated.Stages, 4)
	assert.Equal(t, "submitted version 2.0", updated.Stages[3].Note)
	f.notifier.AssertExpectations(t)
}

func TestUpdateReviewersRequiresReviewers(t *testing.T) {
	f := newServiceFixture()

	_, err := f.service.UpdateReviewers(context.Background(), uuid.New(), nil)

	assert.ErrorIs(t, err, ErrNoReviewers)
	f.repo.AssertNotCalled(t, "GetByDocumentID", mock.Anything, mock.Anything)
	f.repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestRecordRevisionOnApprovedWorkflowKeepsApproval(t *testing.T) {
	f := newServiceFixture()
	ctx := context.Background()

	submitter := uuid.New()
	wf := threeStageWorkflow(submitter, uuid.New(), uuid.New())
	wf.Stages[1].Status = StageCompleted
	wf.Stages[2].Status = StageCompleted
	wf.CurrentStageIndex = 2
	wf.OverallStatus = StatusApproved
	doc := &DocumentSummary{ID: wf.DocumentID, Title: "Doc", OwnerID: submitter}

	f.repo.On("GetByDocumentID", ctx, wf.DocumentID).Return(wf, nil)
	f.repo.On("Update", ctx, mock.Anything).Return(nil)
	f.docs.On("FindSummary", ctx, wf.DocumentID).Return(doc, nil)
	f.docs.On("UpdateReviewState", ctx, wf.DocumentID, DocStatusApproved, (*uuid.UUID)(nil)).Return(nil)

	updated, err := f.service.RecordRevision(ctx, wf.DocumentID, submitter, 2)
	require.NoError(t, err)

	assert.Equal(t, StatusApproved, updated.OverallStatus)
	f.docs.AssertExpectations(t)
	f.notifier.AssertNotCalled(t, "Dispatch", mock.Anything, mock.Anything)
}

func TestGetHistoryFiltersSettledStages(t *testing.T) {
	f := newServiceFixture()
	ctx := context.Background()

	wf := threeStageWorkflow(uuid.New(), uuid.New(), uuid.New())
	f.repo.On("GetByDocumentID", ctx, wf.DocumentID).Return(wf, nil)
	f.allowHydration()

	history, err := f.service.GetHistory(ctx, wf.DocumentID)
	require.NoError(t, err)

	// Only the completed submission stage counts as history here.
	require.Len(t, history, 1)
	assert.Equal(t, StageCompleted, history[0].Status)
}

func TestGetPendingForUser(t *testing.T) {
	f := newServiceFixture()
	ctx := context.Background()

	r1 := uuid.New()
	wf := threeStageWorkflow(uuid.New(), r1, uuid.New())
	f.repo.On("ListPendingForUser", ctx, r1).Return([]Workflow{*wf}, nil)
	f.allowHydration()

	views, err := f.service.GetPendingForUser(ctx, r1)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, wf.ID, views[0].ID)
}

package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/im7mortal/kmutex"
	"go.uber.org/zap"

	"github.com/omreki/domasy/internal/audit"
	"github.com/omreki/domasy/internal/notifications"
	"github.com/omreki/domasy/internal/users"
)

// Update retries after a lost optimistic-lock race. The keyed mutex already
// serializes transitions within this process; retries cover writers elsewhere.
const maxTransitionRetries = 3

// DocumentStore is the slice of the document module the orchestrator needs:
// a summary read and the status/approver sync after a committed transition.
type DocumentStore interface {
	FindSummary(ctx context.Context, id uuid.UUID) (*DocumentSummary, error)
	UpdateReviewState(ctx context.Context, id uuid.UUID, status string, currentApprover *uuid.UUID) error
}

// Directory resolves user ids for the guard and for response hydration.
type Directory interface {
	FindByID(ctx context.Context, id uuid.UUID) (*users.User, error)
}

// AuditSink is fire-and-forget; implementations swallow their own failures.
type AuditSink interface {
	Append(ctx context.Context, entry audit.Entry)
}

// Notifier is best-effort; implementations swallow their own failures.
type Notifier interface {
	Dispatch(ctx context.Context, req notifications.Request)
}

// StageView is a stage with its assignee hydrated for display. Stored state
// keeps only the id.
type StageView struct {
	Stage
	AssigneeDetail *users.User `json:"assignee_detail,omitempty"`
}

// View is the response shape of a workflow.
type View struct {
	ID                uuid.UUID     `json:"id"`
	DocumentID        uuid.UUID     `json:"document_id"`
	Stages            []StageView   `json:"stages"`
	CurrentStageIndex int           `json:"current_stage_index"`
	OverallStatus     OverallStatus `json:"overall_status"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`
}

// Service is the only entry point that mutates workflows. It composes the
// guard, the stage state machine, the store, and the side-effect fan-out.
// The store update is authoritative; document sync, audit, and notifications
// are best-effort and never fail a committed transition.
type Service struct {
	repo      Repository
	documents DocumentStore
	directory Directory
	auditor   AuditSink
	notifier  Notifier
	locks     *kmutex.Kmutex
	logger    *zap.Logger
}

func NewService(repo Repository, documents DocumentStore, directory Directory, auditor AuditSink, notifier Notifier, logger *zap.Logger) *Service {
	return &Service{
		repo:      repo,
		documents: documents,
		directory: directory,
		auditor:   auditor,
		notifier:  notifier,
		locks:     kmutex.New(),
		logger:    logger,
	}
}

// ActionRequest carries the acting user and request metadata for a decision.
type ActionRequest struct {
	WorkflowID uuid.UUID
	Actor      *users.User
	Note       string
	IPAddress  string
}

// Approve completes the current stage and advances the workflow, or closes it
// as approved on the final stage.
func (s *Service) Approve(ctx context.Context, req ActionRequest) (*View, error) {
	return s.transition(ctx, req, "Approved document", Approve)
}

// Reject closes the workflow as rejected. The note is mandatory.
func (s *Service) Reject(ctx context.Context, req ActionRequest) (*View, error) {
	return s.transition(ctx, req, "Rejected document", Reject)
}

// RequestChanges annotates the current stage and pauses the workflow until
// the owner uploads a revision. The note is mandatory.
func (s *Service) RequestChanges(ctx context.Context, req ActionRequest) (*View, error) {
	return s.transition(ctx, req, "Requested changes on document", RequestChanges)
}

func (s *Service) transition(ctx context.Context, req ActionRequest, auditAction string, fn func(*Workflow, string, time.Time) (Outcome, error)) (*View, error) {
	key := req.WorkflowID.String()
	s.locks.Lock(key)
	defer s.locks.Unlock(key)

	var (
		wf  *Workflow
		out Outcome
	)
	for attempt := 0; ; attempt++ {
		var err error
		wf, err = s.repo.GetByID(ctx, req.WorkflowID)
		if err != nil {
			return nil, fmt.Errorf("failed to load workflow: %w", err)
		}
		if wf == nil {
			return nil, ErrNotFound
		}
		if !CanAct(wf, req.Actor) {
			return nil, ErrForbidden
		}
		out, err = fn(wf, req.Note, time.Now())
		if err != nil {
			return nil, err
		}

		wf.Stages = out.Stages
		wf.CurrentStageIndex = out.CurrentStageIndex
		wf.OverallStatus = out.OverallStatus

		err = s.repo.Update(ctx, wf)
		if err == nil {
			break
		}
		if errors.Is(err, ErrVersionConflict) && attempt < maxTransitionRetries {
			s.logger.Debug("transition lost version race, retrying",
				zap.String("workflow_id", key), zap.Int("attempt", attempt))
			continue
		}
		return nil, fmt.Errorf("failed to persist transition: %w", err)
	}

	doc := s.syncDocument(ctx, wf.DocumentID, out)
	s.appendTransitionAudit(ctx, req, auditAction, doc)
	s.notifyTransition(ctx, req.Actor, out, doc)

	return s.hydrate(ctx, wf), nil
}

// lockByDocumentID resolves the document's workflow, takes its keyed lock,
// and reloads under the lock so callers never work from a pre-lock read. On
// success the lock is held and the caller must release it.
func (s *Service) lockByDocumentID(ctx context.Context, documentID uuid.UUID) (*Workflow, error) {
	wf, err := s.repo.GetByDocumentID(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load workflow: %w", err)
	}
	if wf == nil {
		return nil, ErrNotFound
	}

	key := wf.ID.String()
	s.locks.Lock(key)

	wf, err = s.repo.GetByDocumentID(ctx, documentID)
	if err != nil {
		s.locks.Unlock(key)
		return nil, fmt.Errorf("failed to load workflow: %w", err)
	}
	if wf == nil {
		s.locks.Unlock(key)
		return nil, ErrNotFound
	}
	return wf, nil
}

// RecordRevision applies a revision-upload event from the document owner:
// halted stages reset, a history stage is appended, and review resumes at the
// first eligible pending stage. The guard does not apply here; the documents
// module only calls this for the owner's own upload.
func (s *Service) RecordRevision(ctx context.Context, documentID, uploader uuid.UUID, versionNumber int) (*Workflow, error) {
	wf, err := s.lockByDocumentID(ctx, documentID)
	if err != nil {
		return nil, err
	}
	defer s.locks.Unlock(wf.ID.String())

	note := fmt.Sprintf("submitted version %d.0", versionNumber)
	var out Outcome
	for attempt := 0; ; attempt++ {
		out, err = ApplyRevision(wf, uploader, note, time.Now())
		if err != nil {
			return nil, err
		}
		wf.Stages = out.Stages
		wf.CurrentStageIndex = out.CurrentStageIndex
		wf.OverallStatus = out.OverallStatus

		err = s.repo.Update(ctx, wf)
		if err == nil {
			break
		}
		if errors.Is(err, ErrVersionConflict) && attempt < maxTransitionRetries {
			wf, err = s.repo.GetByDocumentID(ctx, documentID)
			if err != nil {
				return nil, fmt.Errorf("failed to reload workflow: %w", err)
			}
			if wf == nil {
				return nil, ErrNotFound
			}
			continue
		}
		return nil, fmt.Errorf("failed to persist revision: %w", err)
	}

	doc := s.syncDocument(ctx, wf.DocumentID, out)
	if out.NextApprover != nil {
		s.notifyApprovalRequested(ctx, *out.NextApprover, doc)
	}
	return wf, nil
}

// CreateForDocument assembles and persists the workflow for a new upload.
func (s *Service) CreateForDocument(ctx context.Context, in AssemblyInput) (*Workflow, error) {
	wf := Assemble(in, time.Now())
	if err := s.repo.Create(ctx, wf); err != nil {
		return nil, fmt.Errorf("failed to create workflow: %w", err)
	}
	if stage := wf.CurrentStage(); stage != nil && stage.Status == StageCurrent {
		doc, err := s.documents.FindSummary(ctx, in.DocumentID)
		if err == nil && doc != nil {
			s.notifyApprovalRequested(ctx, stage.Assignee, doc)
		}
	}
	return wf, nil
}

// UpdateReviewers rebuilds the reviewer stages after the document's reviewer
// list changed, preserving completed and rejected stages as history.
func (s *Service) UpdateReviewers(ctx context.Context, documentID uuid.UUID, reviewers []Reviewer) (*Workflow, error) {
	if len(reviewers) == 0 {
		return nil, ErrNoReviewers
	}

	wf, err := s.lockByDocumentID(ctx, documentID)
	if err != nil {
		return nil, err
	}
	defer s.locks.Unlock(wf.ID.String())

	stages, currentIndex, status := Reassemble(wf, reviewers, time.Now())
	wf.Stages = stages
	wf.CurrentStageIndex = currentIndex
	wf.OverallStatus = status
	if err := s.repo.Update(ctx, wf); err != nil {
		return nil, fmt.Errorf("failed to persist reviewer update: %w", err)
	}
	return wf, nil
}

// DeleteForDocument removes the workflow as part of a document delete
// cascade. Workflows are never deleted independently of their document.
func (s *Service) DeleteForDocument(ctx context.Context, documentID uuid.UUID) error {
	return s.repo.DeleteByDocumentID(ctx, documentID)
}

// GetByDocumentID returns the hydrated workflow for a document.
func (s *Service) GetByDocumentID(ctx context.Context, documentID uuid.UUID) (*View, error) {
	wf, err := s.repo.GetByDocumentID(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if wf == nil {
		return nil, ErrNotFound
	}
	return s.hydrate(ctx, wf), nil
}

// GetPendingForUser returns all in-progress workflows whose current stage is
// assigned to the user.
func (s *Service) GetPendingForUser(ctx context.Context, userID uuid.UUID) ([]View, error) {
	workflows, err := s.repo.ListPendingForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	views := make([]View, 0, len(workflows))
	for i := range workflows {
		views = append(views, *s.hydrate(ctx, &workflows[i]))
	}
	return views, nil
}

// GetHistory returns the settled stages of a document's workflow: completed
// and rejected ones, in stage order.
func (s *Service) GetHistory(ctx context.Context, documentID uuid.UUID) ([]StageView, error) {
	wf, err := s.repo.GetByDocumentID(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if wf == nil {
		return nil, ErrNotFound
	}
	view := s.hydrate(ctx, wf)
	history := make([]StageView, 0, len(view.Stages))
	for _, st := range view.Stages {
		if st.Status == StageCompleted || st.Status == StageRejected {
			history = append(history, st)
		}
	}
	return history, nil
}

// syncDocument pushes the new review state onto the owning document. A
// concurrently deleted document is skipped silently; other failures are
// logged and swallowed. Returns the summary for audit and notifications.
func (s *Service) syncDocument(ctx context.Context, documentID uuid.UUID, out Outcome) *DocumentSummary {
	doc, err := s.documents.FindSummary(ctx, documentID)
	if err != nil {
		s.logger.Warn("document lookup failed after transition",
			zap.String("document_id", documentID.String()), zap.Error(err))
		return nil
	}
	if doc == nil {
		return nil
	}

	approver := out.NextApprover
	if out.ClearApprover {
		approver = nil
	}
	if err := s.documents.UpdateReviewState(ctx, documentID, out.DocumentStatus, approver); err != nil {
		s.logger.Warn("document status sync failed",
			zap.String("document_id", documentID.String()),
			zap.String("status", out.DocumentStatus),
			zap.Error(err))
	}
	return doc
}

func (s *Service) appendTransitionAudit(ctx context.Context, req ActionRequest, action string, doc *DocumentSummary) {
	entry := audit.Entry{
		UserID:     req.Actor.ID,
		UserName:   req.Actor.Name,
		Action:     action,
		ActionType: audit.TypeApproval,
		Details:    req.Note,
		IPAddress:  req.IPAddress,
	}
	if doc != nil {
		id := doc.ID
		entry.DocumentID = &id
		entry.DocumentTitle = doc.Title
	}
	s.auditor.Append(ctx, entry)
}

func (s *Service) notifyTransition(ctx context.Context, actor *users.User, out Outcome, doc *DocumentSummary) {
	if doc == nil {
		return
	}
	switch out.OverallStatus {
	case StatusInProgress:
		if out.NextApprover != nil {
			s.notifyApprovalRequested(ctx, *out.NextApprover, doc)
		}
	case StatusApproved:
		s.notifier.Dispatch(ctx, notifications.Request{
			UserID:  doc.OwnerID,
			Event:   notifications.EventDocumentApproved,
			Title:   "Document approved",
			Message: fmt.Sprintf("%q completed all review stages", doc.Title),
			Link:    documentLink(doc.ID),
			Vars:    map[string]string{"document": doc.Title, "actor": actor.Name},
		})
	case StatusRejected:
		s.notifier.Dispatch(ctx, notifications.Request{
			UserID:  doc.OwnerID,
			Event:   notifications.EventDocumentRejected,
			Title:   "Document rejected",
			Message: fmt.Sprintf("%q was rejected by %s", doc.Title, actor.Name),
			Link:    documentLink(doc.ID),
			Vars:    map[string]string{"document": doc.Title, "actor": actor.Name, "note": lastNote(out)},
		})
	case StatusChangesRequested:
		s.notifier.Dispatch(ctx, notifications.Request{
			UserID:  doc.OwnerID,
			Event:   notifications.EventChangesRequested,
			Title:   "Changes requested",
			Message: fmt.Sprintf("%s requested changes on %q", actor.Name, doc.Title),
			Link:    documentLink(doc.ID),
			Vars:    map[string]string{"document": doc.Title, "actor": actor.Name, "note": lastNote(out)},
		})
	}
}

func (s *Service) notifyApprovalRequested(ctx context.Context, reviewer uuid.UUID, doc *DocumentSummary) {
	if doc == nil {
		return
	}
	s.notifier.Dispatch(ctx, notifications.Request{
		UserID:  reviewer,
		Event:   notifications.EventApprovalRequested,
		Title:   "Review requested",
		Message: fmt.Sprintf("%q is waiting for your review", doc.Title),
		Link:    documentLink(doc.ID),
		Vars:    map[string]string{"document": doc.Title, "link": documentLink(doc.ID)},
	})
}

func (s *Service) hydrate(ctx context.Context, wf *Workflow) *View {
	cache := make(map[uuid.UUID]*users.User)
	stages := make([]StageView, len(wf.Stages))
	for i, st := range wf.Stages {
		sv := StageView{Stage: st}
		detail, ok := cache[st.Assignee]
		if !ok {
			var err error
			detail, err = s.directory.FindByID(ctx, st.Assignee)
			if err != nil {
				s.logger.Warn("assignee hydration failed",
					zap.String("assignee", st.Assignee.String()), zap.Error(err))
				detail = nil
			}
			cache[st.Assignee] = detail
		}
		sv.AssigneeDetail = detail
		stages[i] = sv
	}
	return &View{
		ID:                wf.ID,
		DocumentID:        wf.DocumentID,
		Stages:            stages,
		CurrentStageIndex: wf.CurrentStageIndex,
		OverallStatus:     wf.OverallStatus,
		CreatedAt:         wf.CreatedAt,
		UpdatedAt:         wf.UpdatedAt,
	}
}

func documentLink(id uuid.UUID) string {
	return "/documents/" + id.String()
}

// lastNote pulls the note recorded on the acted-on stage for email bodies.
func lastNote(out Outcome) string {
	if out.CurrentStageIndex >= 0 && out.CurrentStageIndex < len(out.Stages) {
		return out.Stages[out.CurrentStageIndex].Note
	}
	return ""
}

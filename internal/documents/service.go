package documents

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/omreki/domasy/internal/audit"
	"github.com/omreki/domasy/internal/users"
	"github.com/omreki/domasy/internal/workflow"
	"github.com/omreki/domasy/pkg/storage"
)

var (
	ErrNotFound        = errors.New("document not found")
	ErrForbidden       = errors.New("not allowed to modify this document")
	ErrUnknownReviewer = errors.New("reviewer not found in user directory")
	ErrNoReviewers     = errors.New("at least one reviewer is required")
)

type Service interface {
	Upload(ctx context.Context, req UploadRequest) (*Document, error)
	Get(ctx context.Context, id uuid.UUID) (*Document, error)
	List(ctx context.Context, filter ListFilter) ([]Document, error)
	DownloadURL(ctx context.Context, id uuid.UUID) (string, error)
	Delete(ctx context.Context, id uuid.UUID, actor *users.User) error

	UploadNewVersion(ctx context.Context, id uuid.UUID, req VersionRequest) (*DocumentVersion, error)
	ListVersions(ctx context.Context, id uuid.UUID) ([]DocumentVersion, error)
	UpdateReviewers(ctx context.Context, id uuid.UUID, reviewerIDs []uuid.UUID, actor *users.User) error
}

type UploadRequest struct {
	Title       string
	Description string
	Category    string
	FileName    string
	FileSize    int64
	ContentType string
	Content     io.Reader
	Uploader    *users.User
	ReviewerIDs []uuid.UUID
	IPAddress   string
}

type VersionRequest struct {
	Content       io.Reader
	FileSize      int64
	ChangeSummary string
	Actor         *users.User
	IPAddress     string
}

type documentService struct {
	repo      Repository
	storage   storage.S3Client
	workflows *workflow.Service
	directory users.Repository
	auditor   *audit.Service
	statuses  *StatusMachine
	logger    *zap.Logger

	bucket           string
	fallbackApprover string // email, optional
}

func NewService(repo Repository, s3 storage.S3Client, workflows *workflow.Service, directory users.Repository, auditor *audit.Service, logger *zap.Logger, bucket, fallbackApprover string) Service {
	return &documentService{
		repo:             repo,
		storage:          s3,
		workflows:        workflows,
		directory:        directory,
		auditor:          auditor,
		statuses:         NewStatusMachine(),
		logger:           logger,
		bucket:           bucket,
		fallbackApprover: fallbackApprover,
	}
}

func (s *documentService) Upload(ctx context.Context, req UploadRequest) (*Document, error) {
	docID := uuid.New()
	s3Key := s.s3Key(docID, 1, req.FileName)

	if err := s.storage.Upload(ctx, s.bucket, s3Key, req.Content); err != nil {
		return nil, fmt.Errorf("failed to store file: %w", err)
	}

	reviewers, err := s.resolveReviewers(ctx, req.ReviewerIDs)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	doc := &Document{
		ID:             docID,
		Title:          req.Title,
		Description:    req.Description,
		Category:       req.Category,
		FileName:       req.FileName,
		FileSize:       req.FileSize,
		ContentType:    req.ContentType,
		S3Key:          s3Key,
		S3Bucket:       s.bucket,
		CurrentVersion: 1,
		Status:         StatusInReview,
		UploadedBy:     req.Uploader.ID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repo.CreateDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to create document: %w", err)
	}

	input := workflow.AssemblyInput{
		DocumentID: docID,
		Uploader: workflow.Reviewer{
			ID:         req.Uploader.ID,
			Name:       req.Uploader.Name,
			Department: req.Uploader.Department,
		},
		Reviewers: reviewers,
	}
	if len(reviewers) == 0 {
		if fallback := s.lookupFallback(ctx); fallback != nil {
			input.FallbackApprover = fallback
		}
	}

	wf, err := s.workflows.CreateForDocument(ctx, input)
	if err != nil {
		return nil, err
	}
	if stage := wf.CurrentStage(); stage != nil && stage.Status == workflow.StageCurrent {
		approver := stage.Assignee
		doc.CurrentApprover = &approver
		if err := s.repo.UpdateReviewState(ctx, docID, StatusInReview, &approver); err != nil {
			s.logger.Warn("initial approver sync failed",
				zap.String("document_id", docID.String()), zap.Error(err))
		}
	}

	s.auditor.Append(ctx, audit.Entry{
		UserID:        req.Uploader.ID,
		UserName:      req.Uploader.Name,
		Action:        "Uploaded document",
		ActionType:    audit.TypeUpload,
		DocumentID:    &doc.ID,
		DocumentTitle: doc.Title,
		Details:       fmt.Sprintf("version 1, %d reviewers", len(reviewers)),
		IPAddress:     req.IPAddress,
	})

	return doc, nil
}

func (s *documentService) Get(ctx context.Context, id uuid.UUID) (*Document, error) {
	doc, err := s.repo.GetDocumentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, ErrNotFound
	}
	return doc, nil
}

func (s *documentService) List(ctx context.Context, filter ListFilter) ([]Document, error) {
	return s.repo.ListDocuments(ctx, filter)
}

func (s *documentService) DownloadURL(ctx context.Context, id uuid.UUID) (string, error) {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return s.storage.GetPresignedURL(ctx, doc.S3Bucket, doc.S3Key, 15*time.Minute)
}

// Delete removes the document and cascades into its workflow. Workflows are
// never deleted on their own.
func (s *documentService) Delete(ctx context.Context, id uuid.UUID, actor *users.User) error {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if doc.UploadedBy != actor.ID && actor.Role != users.RoleAdmin {
		return ErrForbidden
	}

	if err := s.workflows.DeleteForDocument(ctx, id); err != nil {
		return fmt.Errorf("failed to delete workflow: %w", err)
	}
	if err := s.repo.DeleteDocument(ctx, id); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}

	// The stored object is kept for audit; tier cleanup happens out of band.
	s.auditor.Append(ctx, audit.Entry{
		UserID:        actor.ID,
		UserName:      actor.Name,
		Action:        "Deleted document",
		ActionType:    audit.TypeDelete,
		DocumentID:    &doc.ID,
		DocumentTitle: doc.Title,
	})
	return nil
}

// UploadNewVersion stores a revision and fires the revision event into the
// workflow engine, which resets halted stages and resumes review.
func (s *documentService) UploadNewVersion(ctx context.Context, id uuid.UUID, req VersionRequest) (*DocumentVersion, error) {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc.UploadedBy != req.Actor.ID && req.Actor.Role != users.RoleAdmin {
		return nil, ErrForbidden
	}

	newVersionNumber := doc.CurrentVersion + 1
	s3Key := s.s3Key(doc.ID, newVersionNumber, doc.FileName)
	if err := s.storage.Upload(ctx, doc.S3Bucket, s3Key, req.Content); err != nil {
		return nil, fmt.Errorf("failed to store file: %w", err)
	}

	version := &DocumentVersion{
		ID:            uuid.New(),
		DocumentID:    id,
		VersionNumber: newVersionNumber,
		S3Key:         s3Key,
		ChangeSummary: req.ChangeSummary,
		UploadedBy:    req.Actor.ID,
		UploadedAt:    time.Now(),
	}
	if err := s.repo.CreateVersion(ctx, version); err != nil {
		return nil, fmt.Errorf("failed to record version: %w", err)
	}

	doc.CurrentVersion = newVersionNumber
	doc.S3Key = s3Key
	if err := s.repo.UpdateDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to update document: %w", err)
	}

	if !s.statuses.CanTransition(doc.Status, StatusInReview) {
		s.logger.Warn("unexpected status move on revision upload",
			zap.String("document_id", id.String()),
			zap.String("from", string(doc.Status)))
	}
	if _, err := s.workflows.RecordRevision(ctx, id, req.Actor.ID, newVersionNumber); err != nil {
		if errors.Is(err, workflow.ErrNotFound) {
			s.logger.Warn("document has no workflow to resume",
				zap.String("document_id", id.String()))
		} else {
			return nil, err
		}
	}

	s.auditor.Append(ctx, audit.Entry{
		UserID:        req.Actor.ID,
		UserName:      req.Actor.Name,
		Action:        "Uploaded revision",
		ActionType:    audit.TypeUpload,
		DocumentID:    &doc.ID,
		DocumentTitle: doc.Title,
		Details:       fmt.Sprintf("version %d: %s", newVersionNumber, req.ChangeSummary),
		IPAddress:     req.IPAddress,
	})

	return version, nil
}

func (s *documentService) ListVersions(ctx context.Context, id uuid.UUID) ([]DocumentVersion, error) {
	return s.repo.ListVersions(ctx, id)
}

// UpdateReviewers rebuilds the workflow's reviewer stages and re-syncs the
// document's approver pointer.
func (s *documentService) UpdateReviewers(ctx context.Context, id uuid.UUID, reviewerIDs []uuid.UUID, actor *users.User) error {
	// An empty list would leave the workflow with no stage to act on.
	if len(reviewerIDs) == 0 {
		return ErrNoReviewers
	}

	doc, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if doc.UploadedBy != actor.ID && actor.Role != users.RoleAdmin {
		return ErrForbidden
	}

	reviewers, err := s.resolveReviewers(ctx, reviewerIDs)
	if err != nil {
		return err
	}

	wf, err := s.workflows.UpdateReviewers(ctx, id, reviewers)
	if err != nil {
		return err
	}

	status := StatusInReview
	var approver *uuid.UUID
	if wf.OverallStatus == workflow.StatusRejected {
		status = StatusRejected
	} else if stage := wf.CurrentStage(); stage != nil && stage.Status == workflow.StageCurrent {
		a := stage.Assignee
		approver = &a
	}
	return s.repo.UpdateReviewState(ctx, id, status, approver)
}

func (s *documentService) resolveReviewers(ctx context.Context, ids []uuid.UUID) ([]workflow.Reviewer, error) {
	reviewers := make([]workflow.Reviewer, 0, len(ids))
	for _, id := range ids {
		user, err := s.directory.FindByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve reviewer %s: %w", id, err)
		}
		if user == nil {
			return nil, ErrUnknownReviewer
		}
		reviewers = append(reviewers, workflow.Reviewer{
			ID:         user.ID,
			Name:       user.Name,
			Department: user.Department,
		})
	}
	return reviewers, nil
}

func (s *documentService) lookupFallback(ctx context.Context) *workflow.Reviewer {
	if s.fallbackApprover == "" {
		return nil
	}
	user, err := s.directory.FindByEmail(ctx, s.fallbackApprover)
	if err != nil || user == nil {
		s.logger.Warn("fallback approver lookup failed",
			zap.String("email", s.fallbackApprover), zap.Error(err))
		return nil
	}
	return &workflow.Reviewer{ID: user.ID, Name: user.Name, Department: user.Department}
}

func (s *documentService) s3Key(id uuid.UUID, version int, fileName string) string {
	return fmt.Sprintf("documents/%s/v%d/%s", id, version, fileName)
}

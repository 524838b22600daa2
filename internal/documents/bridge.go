package documents

import (
	"context"

	"github.com/google/uuid"

	"github.com/omreki/domasy/internal/workflow"
)

// workflowBridge exposes the document repository to the workflow engine as
// its DocumentStore collaborator.
type workflowBridge struct {
	repo Repository
}

func NewWorkflowBridge(repo Repository) workflow.DocumentStore {
	return &workflowBridge{repo: repo}
}

func (b *workflowBridge) FindSummary(ctx context.Context, id uuid.UUID) (*workflow.DocumentSummary, error) {
	doc, err := b.repo.GetDocumentByID(ctx, id)
	if err != nil || doc == nil {
		return nil, err
	}
	return &workflow.DocumentSummary{
		ID:      doc.ID,
		Title:   doc.Title,
		OwnerID: doc.UploadedBy,
		Version: doc.CurrentVersion,
	}, nil
}

func (b *workflowBridge) UpdateReviewState(ctx context.Context, id uuid.UUID, status string, currentApprover *uuid.UUID) error {
	return b.repo.UpdateReviewState(ctx, id, Status(status), currentApprover)
}

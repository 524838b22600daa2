package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Service is a fire-and-forget audit sink. Append never returns an error to
// callers; a failed insert is logged and dropped so the action that produced
// it is unaffected.
type Service struct {
	repo   Repository
	logger *zap.Logger
}

func NewService(repo Repository, logger *zap.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

func (s *Service) Append(ctx context.Context, entry Entry) {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	if err := s.repo.Insert(ctx, &entry); err != nil {
		s.logger.Warn("audit append failed",
			zap.String("action", entry.Action),
			zap.String("user_id", entry.UserID.String()),
			zap.Error(err))
	}
}

func (s *Service) ListForDocument(ctx context.Context, documentID uuid.UUID, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.repo.ListForDocument(ctx, documentID, limit)
}

func (s *Service) ListRecent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.repo.ListRecent(ctx, limit)
}

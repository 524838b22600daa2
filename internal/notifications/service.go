package notifications

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/omreki/domasy/internal/users"
)

// Directory resolves recipients to their email address.
type Directory interface {
	FindByID(ctx context.Context, id uuid.UUID) (*users.User, error)
}

// Service persists in-app notifications and fans out templated emails. Every
// dispatch is best-effort: channel failures are logged, recorded on the
// delivery log, and never surfaced to the caller.
type Service struct {
	db        *gorm.DB
	mailer    Mailer
	directory Directory
	logger    *zap.Logger
}

func NewService(db *gorm.DB, mailer Mailer, directory Directory, logger *zap.Logger) (*Service, error) {
	if err := db.AutoMigrate(&Notification{}, &EmailTemplate{}, &DeliveryLog{}); err != nil {
		return nil, fmt.Errorf("failed to migrate notification tables: %w", err)
	}
	if err := seedTemplates(db); err != nil {
		return nil, fmt.Errorf("failed to seed email templates: %w", err)
	}
	return &Service{
		db:        db,
		mailer:    mailer,
		directory: directory,
		logger:    logger,
	}, nil
}

// Dispatch delivers one request on both channels. It never returns an error.
func (s *Service) Dispatch(ctx context.Context, req Request) {
	if req.UserID == uuid.Nil {
		return
	}

	notification := &Notification{
		ID:      uuid.New(),
		UserID:  req.UserID,
		Event:   string(req.Event),
		Title:   req.Title,
		Message: req.Message,
		Link:    req.Link,
	}
	if err := s.db.WithContext(ctx).Create(notification).Error; err != nil {
		s.logger.Warn("in-app notification insert failed",
			zap.String("user_id", req.UserID.String()),
			zap.String("event", string(req.Event)),
			zap.Error(err))
	}

	s.sendEmail(ctx, req)
}

func (s *Service) sendEmail(ctx context.Context, req Request) {
	recipient, err := s.directory.FindByID(ctx, req.UserID)
	if err != nil || recipient == nil {
		s.logger.Warn("email recipient lookup failed",
			zap.String("user_id", req.UserID.String()), zap.Error(err))
		return
	}

	var template EmailTemplate
	err = s.db.WithContext(ctx).
		Where("event = ? AND is_active = true", string(req.Event)).
		First(&template).Error
	if err != nil {
		s.logger.Warn("no active email template for event",
			zap.String("event", string(req.Event)), zap.Error(err))
		return
	}

	vars := map[string]string{"recipient": recipient.Name}
	for k, v := range req.Vars {
		vars[k] = v
	}
	subject := renderTemplate(template.Subject, vars)
	body := renderTemplate(template.Body, vars)

	logEntry := DeliveryLog{
		ID:        uuid.New(),
		UserID:    req.UserID,
		Event:     string(req.Event),
		Recipient: recipient.Email,
		Success:   true,
	}
	if err := s.mailer.Send(recipient.Email, subject, body); err != nil {
		logEntry.Success = false
		logEntry.Error = err.Error()
		s.logger.Warn("email delivery failed",
			zap.String("recipient", recipient.Email),
			zap.String("event", string(req.Event)),
			zap.Error(err))
	}
	if err := s.db.WithContext(ctx).Create(&logEntry).Error; err != nil {
		s.logger.Warn("delivery log insert failed", zap.Error(err))
	}
}

// ListForUser returns the user's notifications, newest first.
func (s *Service) ListForUser(ctx context.Context, userID uuid.UUID, limit int) ([]Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []Notification
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// MarkRead flags a single notification as read.
func (s *Service) MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error {
	return s.db.WithContext(ctx).
		Model(&Notification{}).
		Where("id = ? AND user_id = ?", notificationID, userID).
		Update("is_read", true).Error
}

func seedTemplates(db *gorm.DB) error {
	defaults := []EmailTemplate{
		{
			Event:   string(EventApprovalRequested),
			Subject: "Review requested: {{document}}",
			Body:    "Hi {{recipient}},\n\n{{document}} is waiting for your review.\n\nOpen it here: {{link}}\n",
		},
		{
			Event:   string(EventDocumentApproved),
			Subject: "Approved: {{document}}",
			Body:    "Hi {{recipient}},\n\n{{document}} completed every review stage and is now approved.\n",
		},
		{
			Event:   string(EventDocumentRejected),
			Subject: "Rejected: {{document}}",
			Body:    "Hi {{recipient}},\n\n{{document}} was rejected by {{actor}}.\n\nReviewer note: {{note}}\n",
		},
		{
			Event:   string(EventChangesRequested),
			Subject: "Changes requested: {{document}}",
			Body:    "Hi {{recipient}},\n\n{{actor}} requested changes on {{document}}.\n\nReviewer note: {{note}}\n\nUpload a revised version to resume the review.\n",
		},
		{
			Event:   string(EventPendingDigest),
			Subject: "You have {{count}} documents waiting for review",
			Body:    "Hi {{recipient}},\n\n{{count}} documents are waiting for your review on Domasy.\n",
		},
	}

	for _, tpl := range defaults {
		tpl.ID = uuid.New()
		tpl.IsActive = true
		var existing EmailTemplate
		err := db.Where("event = ?", tpl.Event).Attrs(tpl).FirstOrCreate(&existing).Error
		if err != nil {
			return err
		}
	}
	return nil
}

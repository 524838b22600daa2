package notifications

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// PendingCounter reports how many workflows currently wait on each assignee.
type PendingCounter interface {
	CountPendingByAssignee(ctx context.Context) (map[uuid.UUID]int, error)
}

// Maintenance runs the recurring notification jobs: pruning old delivery logs
// and the daily pending-reviews digest. The digest only reminds; it never
// transitions anything.
type Maintenance struct {
	service *Service
	pending PendingCounter
	cron    *cron.Cron
	logger  *zap.Logger

	logRetention time.Duration
}

func NewMaintenance(service *Service, pending PendingCounter, logger *zap.Logger) *Maintenance {
	return &Maintenance{
		service:      service,
		pending:      pending,
		cron:         cron.New(),
		logger:       logger,
		logRetention: 90 * 24 * time.Hour,
	}
}

// Start registers the jobs and starts the scheduler.
func (m *Maintenance) Start() error {
	if _, err := m.cron.AddFunc("15 3 * * *", m.pruneDeliveryLogs); err != nil {
		return fmt.Errorf("failed to schedule delivery log pruning: %w", err)
	}
	if _, err := m.cron.AddFunc("0 8 * * 1-5", m.sendPendingDigest); err != nil {
		return fmt.Errorf("failed to schedule pending digest: %w", err)
	}
	m.cron.Start()
	return nil
}

func (m *Maintenance) Stop() {
	ctx := m.cron.Stop()
	<-ctx.Done()
}

func (m *Maintenance) pruneDeliveryLogs() {
	cutoff := time.Now().Add(-m.logRetention)
	res := m.service.db.Where("attempted_at < ?", cutoff).Delete(&DeliveryLog{})
	if res.Error != nil {
		m.logger.Warn("delivery log pruning failed", zap.Error(res.Error))
		return
	}
	m.logger.Info("pruned delivery logs", zap.Int64("deleted", res.RowsAffected))
}

func (m *Maintenance) sendPendingDigest() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	counts, err := m.pending.CountPendingByAssignee(ctx)
	if err != nil {
		m.logger.Warn("pending digest query failed", zap.Error(err))
		return
	}
	for userID, count := range counts {
		m.service.Dispatch(ctx, Request{
			UserID:  userID,
			Event:   EventPendingDigest,
			Title:   "Reviews waiting",
			Message: fmt.Sprintf("%d documents are waiting for your review", count),
			Link:    "/dashboard/pending",
			Vars:    map[string]string{"count": fmt.Sprintf("%d", count)},
		})
	}
}

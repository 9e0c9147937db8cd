package notifications

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/lucasreyna/shopmate-backend/pkg/config"
	"github.com/lucasreyna/shopmate-backend/pkg/db/models"
	"github.com/lucasreyna/shopmate-backend/pkg/enums"
	"github.com/lucasreyna/shopmate-backend/pkg/logger"
)

// Sender is the downstream transport (email, push, chat). Delivery transport
// lives outside this service; the default sender only logs.
type Sender interface {
	Send(ctx context.Context, kind enums.NotificationKind, recipient string, payload map[string]any) error
}

// LogSender records the delivery in the logs and reports success. Stands in
// until a real transport is wired.
type LogSender struct {
	Logg *logger.Logger
}

func (s LogSender) Send(ctx context.Context, kind enums.NotificationKind, recipient string, payload map[string]any) error {
	ctx = s.Logg.WithFields(ctx, map[string]any{
		"kind":      kind,
		"recipient": recipient,
		"payload":   payload,
	})
	s.Logg.Info(ctx, "notification dispatched")
	return nil
}

// Service records and sends notifications. Notify never propagates failures
// to the caller; every attempt lands in a delivery row the retry sweep can
// pick up.
type Service struct {
	repo   *Repository
	sender Sender
	cfg    config.NotificationsConfig
	logg   *logger.Logger
}

func NewService(repo *Repository, sender Sender, cfg config.NotificationsConfig, logg *logger.Logger) (*Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository is required")
	}
	if sender == nil {
		return nil, fmt.Errorf("sender is required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &Service{repo: repo, sender: sender, cfg: cfg, logg: logg}, nil
}

// Notify records the delivery and attempts it once, synchronously but
// swallowing every failure. Callers treat it as fire-and-forget; a failed
// attempt is left for the retry sweep.
func (s *Service) Notify(ctx context.Context, kind enums.NotificationKind, recipient string, payload map[string]any) {
	delivery := &models.NotificationDelivery{
		ID:        uuid.New(),
		Kind:      kind,
		Recipient: recipient,
		Payload:   payload,
		Status:    enums.DeliveryStatusPending,
	}
	if err := s.repo.Create(ctx, delivery); err != nil {
		s.logg.Error(ctx, "recording notification delivery", err)
		return
	}
	s.attempt(ctx, delivery)
}

// RetrySweep re-attempts failed deliveries under the attempt cap. Returns
// how many were retried.
func (s *Service) RetrySweep(ctx context.Context) (int, error) {
	rows, err := s.repo.ListRetryable(ctx, s.cfg.MaxAttempts, s.cfg.RetryBatch)
	if err != nil {
		return 0, err
	}
	for i := range rows {
		s.attempt(ctx, &rows[i])
	}
	return len(rows), nil
}

func (s *Service) attempt(ctx context.Context, delivery *models.NotificationDelivery) {
	err := s.sender.Send(ctx, delivery.Kind, delivery.Recipient, delivery.Payload)
	if err != nil {
		s.logg.Error(s.logg.WithField(ctx, "delivery_id", delivery.ID), "sending notification", err)
		if merr := s.repo.MarkFailed(ctx, delivery.ID, err); merr != nil {
			s.logg.Error(ctx, "marking notification failed", merr)
		}
		return
	}
	if merr := s.repo.MarkSent(ctx, delivery.ID); merr != nil {
		s.logg.Error(ctx, "marking notification sent", merr)
	}
}

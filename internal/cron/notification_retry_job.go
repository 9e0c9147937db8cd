package cron

import (
	"context"
	"fmt"

	"github.com/lucasreyna/shopmate-backend/pkg/logger"
)

type notificationRetrier interface {
	RetrySweep(ctx context.Context) (int, error)
}

// NotificationRetryJobParams configure the failed-delivery retrier.
type NotificationRetryJobParams struct {
	Logger        *logger.Logger
	Notifications notificationRetrier
}

// NewNotificationRetryJob builds the job that re-attempts failed
// notification deliveries still under the attempt cap.
func NewNotificationRetryJob(params NotificationRetryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Notifications == nil {
		return nil, fmt.Errorf("notifications service required")
	}
	return &notificationRetryJob{
		logg:          params.Logger,
		notifications: params.Notifications,
	}, nil
}

type notificationRetryJob struct {
	logg          *logger.Logger
	notifications notificationRetrier
}

func (j *notificationRetryJob) Name() string { return "notification-retry" }

func (j *notificationRetryJob) Run(ctx context.Context) error {
	retried, err := j.notifications.RetrySweep(ctx)
	if err != nil {
		return fmt.Errorf("retry failed notifications: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{"count": retried})
	j.logg.Info(logCtx, "notification retry sweep complete")
	return nil
}

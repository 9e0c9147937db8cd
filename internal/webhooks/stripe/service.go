package stripewebhook

import (
	"context"
	"encoding/json"

	"github.com/stripe/stripe-go/v84"

	pkgerrors "github.com/lucasreyna/shopmate-backend/pkg/errors"
	"github.com/lucasreyna/shopmate-backend/pkg/logger"
)

// settlementHandler consumes verified payment events.
type settlementHandler interface {
	HandleEvent(ctx context.Context, eventType, intentID string) error
}

// deduper claims and releases event ids.
type deduper interface {
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	Delete(ctx context.Context, eventID string) error
}

type ServiceParams struct {
	Settlement settlementHandler
	Guard      deduper
	Logger     *logger.Logger
}

// Service turns verified Stripe events into settlement calls. Signature
// verification happens at the HTTP edge; by the time an event reaches here
// it is authentic.
type Service struct {
	settlement settlementHandler
	guard      deduper
	logg       *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Settlement == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "settlement handler required")
	}
	if params.Guard == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "idempotency guard required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Service{
		settlement: params.Settlement,
		guard:      params.Guard,
		logg:       params.Logger,
	}, nil
}

// HandleEvent deduplicates and dispatches one webhook event. A handler
// failure unmarks the event so Stripe's retry can land it again.
func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}
	ctx = s.logg.WithFields(ctx, map[string]any{
		"event_id":   event.ID,
		"event_type": event.Type,
	})

	duplicate, err := s.guard.CheckAndMark(ctx, event.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim webhook event")
	}
	if duplicate {
		s.logg.Info(ctx, "duplicate webhook delivery, skipping")
		return nil
	}

	if err := s.dispatch(ctx, event); err != nil {
		if delErr := s.guard.Delete(ctx, event.ID); delErr != nil {
			s.logg.Error(ctx, "unmarking failed webhook event", delErr)
		}
		return err
	}
	return nil
}

func (s *Service) dispatch(ctx context.Context, event *stripe.Event) error {
	switch event.Type {
	case stripe.EventTypePaymentIntentSucceeded,
		stripe.EventTypePaymentIntentPaymentFailed,
		stripe.EventTypePaymentIntentCanceled:
		var intent stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode payment intent event")
		}
		if intent.ID == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "payment intent id missing")
		}
		return s.settlement.HandleEvent(ctx, string(event.Type), intent.ID)
	default:
		s.logg.Info(ctx, "unhandled webhook event type")
		return nil
	}
}

package stripewebhook

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v84"

	"github.com/lucasreyna/shopmate-backend/pkg/logger"
)

type stubSettlement struct {
	calls []string
	err   error
}

func (s *stubSettlement) HandleEvent(_ context.Context, eventType, intentID string) error {
	s.calls = append(s.calls, eventType+":"+intentID)
	return s.err
}

type memoryStore struct {
	keys map[string]bool
}

func (m *memoryStore) Get(_ context.Context, key string) (string, error) {
	if m.keys[key] {
		return "1", nil
	}
	return "", fmt.Errorf("key not found")
}

func (m *memoryStore) SetNX(_ context.Context, key string, _ any, _ time.Duration) (bool, error) {
	if m.keys == nil {
		m.keys = map[string]bool{}
	}
	if m.keys[key] {
		return false, nil
	}
	m.keys[key] = true
	return true, nil
}

func (m *memoryStore) IdempotencyKey(scope, id string) string {
	return "sm:idempotency:" + scope + ":" + id
}

func (m *memoryStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(m.keys, key)
	}
	return nil
}

func newWebhookService(t *testing.T, settlement *stubSettlement, store *memoryStore) *Service {
	t.Helper()

	guard, err := NewIdempotencyGuard(store, time.Hour, "stripe-webhook")
	require.NoError(t, err)

	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard, Level: zerolog.Disabled})
	svc, err := NewService(ServiceParams{Settlement: settlement, Guard: guard, Logger: logg})
	require.NoError(t, err)
	return svc
}

func paymentEvent(t *testing.T, id string, kind stripe.EventType, intentID string) *stripe.Event {
	t.Helper()

	raw, err := json.Marshal(&stripe.PaymentIntent{ID: intentID})
	require.NoError(t, err)
	return &stripe.Event{
		ID:   id,
		Type: kind,
		Data: &stripe.EventData{Raw: raw},
	}
}

func TestHandleEventDispatchesPaymentIntent(t *testing.T) {
	t.Parallel()

	settlement := &stubSettlement{}
	svc := newWebhookService(t, settlement, &memoryStore{})

	event := paymentEvent(t, "evt_1", stripe.EventTypePaymentIntentSucceeded, "pi_123")
	require.NoError(t, svc.HandleEvent(context.Background(), event))

	require.Len(t, settlement.calls, 1)
	assert.Equal(t, "payment_intent.succeeded:pi_123", settlement.calls[0])
}

func TestHandleEventDeduplicatesDeliveries(t *testing.T) {
	t.Parallel()

	settlement := &stubSettlement{}
	svc := newWebhookService(t, settlement, &memoryStore{})
	ctx := context.Background()

	event := paymentEvent(t, "evt_dup", stripe.EventTypePaymentIntentSucceeded, "pi_dup")
	require.NoError(t, svc.HandleEvent(ctx, event))
	require.NoError(t, svc.HandleEvent(ctx, event))

	assert.Len(t, settlement.calls, 1, "second delivery must not reach settlement")
}

func TestHandleEventUnmarksOnFailure(t *testing.T) {
	t.Parallel()

	settlement := &stubSettlement{err: fmt.Errorf("db unavailable")}
	store := &memoryStore{}
	svc := newWebhookService(t, settlement, store)
	ctx := context.Background()

	event := paymentEvent(t, "evt_fail", stripe.EventTypePaymentIntentPaymentFailed, "pi_fail")
	require.Error(t, svc.HandleEvent(ctx, event))

	settlement.err = nil
	require.NoError(t, svc.HandleEvent(ctx, event))
	assert.Len(t, settlement.calls, 2, "retry after failure must be processed")
}

func TestHandleEventIgnoresUnknownTypes(t *testing.T) {
	t.Parallel()

	settlement := &stubSettlement{}
	svc := newWebhookService(t, settlement, &memoryStore{})

	event := &stripe.Event{
		ID:   "evt_other",
		Type: stripe.EventTypeChargeRefunded,
		Data: &stripe.EventData{Raw: json.RawMessage(`{}`)},
	}
	require.NoError(t, svc.HandleEvent(context.Background(), event))
	assert.Empty(t, settlement.calls)
}

func TestHandleEventRejectsMissingData(t *testing.T) {
	t.Parallel()

	settlement := &stubSettlement{}
	svc := newWebhookService(t, settlement, &memoryStore{})

	require.Error(t, svc.HandleEvent(context.Background(), nil))
	require.Error(t, svc.HandleEvent(context.Background(), &stripe.Event{ID: "evt_nodata"}))
	assert.Empty(t, settlement.calls)
}

func TestIdempotencyGuardRoundTrip(t *testing.T) {
	t.Parallel()

	store := &memoryStore{}
	guard, err := NewIdempotencyGuard(store, time.Hour, "stripe-webhook")
	require.NoError(t, err)
	ctx := context.Background()

	duplicate, err := guard.CheckAndMark(ctx, "evt_guard")
	require.NoError(t, err)
	assert.False(t, duplicate)

	duplicate, err = guard.CheckAndMark(ctx, "evt_guard")
	require.NoError(t, err)
	assert.True(t, duplicate)

	require.NoError(t, guard.Delete(ctx, "evt_guard"))
	duplicate, err = guard.CheckAndMark(ctx, "evt_guard")
	require.NoError(t, err)
	assert.False(t, duplicate, "deleted events can be claimed again")
}

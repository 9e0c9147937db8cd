package orders

import (
	"github.com/lucasreyna/shopmate-backend/pkg/enums"
	pkgerrors "github.com/lucasreyna/shopmate-backend/pkg/errors"
)

// validTransitions is the closed-world order status machine. Any pair not
// listed here is rejected.
var validTransitions = map[enums.OrderStatus][]enums.OrderStatus{
	enums.OrderStatusPending:    {enums.OrderStatusProcessing, enums.OrderStatusCancelled},
	enums.OrderStatusProcessing: {enums.OrderStatusShipped, enums.OrderStatusCancelled},
	enums.OrderStatusShipped:    {enums.OrderStatusDelivered, enums.OrderStatusCancelled},
	enums.OrderStatusDelivered:  {},
	enums.OrderStatusCancelled:  {},
}

// checkTransition returns nil when current -> next is allowed. Cancelling a
// terminal order reports CannotCancel; everything else reports
// InvalidTransition with both states named.
func checkTransition(current, next enums.OrderStatus) error {
	if !next.Valid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown order status").
			WithDetails(map[string]any{"requested": next})
	}
	for _, allowed := range validTransitions[current] {
		if allowed == next {
			return nil
		}
	}
	if next == enums.OrderStatusCancelled && current.Terminal() {
		return pkgerrors.New(pkgerrors.CodeCannotCancel, "order can no longer be cancelled").
			WithDetails(map[string]any{"current": current})
	}
	return pkgerrors.New(pkgerrors.CodeInvalidTransition, "order status transition disallowed").
		WithDetails(map[string]any{"current": current, "requested": next})
}

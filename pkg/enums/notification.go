package enums

// NotificationKind identifies the downstream event a delivery carries.
type NotificationKind string

const (
	NotificationOrderConfirmation NotificationKind = "order_confirmation"
	NotificationMerchantNewOrder  NotificationKind = "merchant_new_order"
	NotificationShippingUpdate    NotificationKind = "shipping_update"
	NotificationLowStockAlert     NotificationKind = "low_stock_alert"
)

type DeliveryStatus string

const (
	DeliveryStatusPending DeliveryStatus = "pending"
	DeliveryStatusSent    DeliveryStatus = "sent"
	DeliveryStatusFailed  DeliveryStatus = "failed"
)

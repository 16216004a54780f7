package enum

// ── State machines (CHECK constrained in DB) ──

const (
	OrderStatusPending   = "pending"
	OrderStatusConfirmed = "confirmed"
	OrderStatusShipped   = "shipped"
	OrderStatusDelivered = "delivered"
	OrderStatusCancelled = "cancelled"
)

const (
	NotificationStatusPending = "pending"
	NotificationStatusSent    = "sent"
	NotificationStatusDead    = "dead"
)

// ── Classifications (CHECK constrained in DB) ──

const (
	ProductCategoryOyster = "oyster"
	ProductCategoryMerch  = "merch"
)

const (
	LocationClassNursery = "nursery"
	LocationClassFarm    = "farm"
)

const (
	HealthExcellent = "excellent"
	HealthGood      = "good"
	HealthFair      = "fair"
)

// ── Notification task kinds ──

const (
	NotificationKindOrderEmail = "order_email"
	NotificationKindDropship   = "dropship_order"
)

package domain

import "time"

type OrderStatus string

const (
	OrderCreated   OrderStatus = "created"
	OrderPaid      OrderStatus = "paid"
	OrderExpired   OrderStatus = "expired"
	OrderCancelled OrderStatus = "cancelled"
)

// PaymentOrder is one checkout attempt over a set of claimed numbers. It
// is only created after every number has a live claim held by the buyer,
// and it carries the attempt's durable state from then on.
type PaymentOrder struct {
	ID          string
	RaffleID    string
	UserID      string
	Numbers     []int
	AmountCents int64
	Status      OrderStatus
	PaymentURL  string
	ExpiresAt   time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// AttemptState tracks a purchase attempt through the orchestrated flow.
type AttemptState string

const (
	AttemptChecking     AttemptState = "checking"
	AttemptReserved     AttemptState = "reserved"
	AttemptOrderCreated AttemptState = "order_created"
	AttemptCommitted    AttemptState = "committed"
	AttemptRejected     AttemptState = "rejected"
	AttemptExpired      AttemptState = "expired"
	AttemptCancelled    AttemptState = "cancelled"
)

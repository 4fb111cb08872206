package domain

// TicketsSold is published through the outbox when a payment commits.
type TicketsSold struct {
	PaymentID   string `json:"payment_id"`
	RaffleID    string `json:"raffle_id"`
	UserID      string `json:"user_id"`
	Numbers     []int  `json:"numbers"`
	AmountCents int64  `json:"amount_cents"`
}

// PaymentConfirmed is consumed from the payment provider's confirmation
// topic and drives the commit step.
type PaymentConfirmed struct {
	PaymentID string `json:"payment_id"`
}

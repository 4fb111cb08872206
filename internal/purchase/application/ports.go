package application

import (
	"context"

	"github.com/dmehra2102/Raffle-Reservation-System/internal/purchase/domain"
	reservation "github.com/dmehra2102/Raffle-Reservation-System/internal/reservation/domain"
)

// TicketRepository is the durable record collaborator: raffles, per-number
// sale state and payment orders.
type TicketRepository interface {
	CreateRaffle(ctx context.Context, raffle domain.Raffle) error
	Raffle(ctx context.Context, raffleID string) (domain.Raffle, error)

	// TicketStatuses reports the durable state of each requested number,
	// in input order; numbers without a row come back as TicketMissing.
	TicketStatuses(ctx context.Context, raffleID string, numbers []int) ([]domain.TicketState, error)

	CreatePaymentOrder(ctx context.Context, order domain.PaymentOrder) error
	PaymentOrder(ctx context.Context, paymentID string) (domain.PaymentOrder, error)

	// MarkPaid commits the sale in one transaction: flips the order to
	// paid, marks every ticket paid where it is not already, and writes
	// the outbox event. The ticket update is conditional so a competing
	// payment can never double-sell a number.
	MarkPaid(ctx context.Context, order domain.PaymentOrder, eventType string, payload []byte) error

	// MarkOrderStatus moves an open order to expired or cancelled; paid
	// orders are never downgraded.
	MarkOrderStatus(ctx context.Context, paymentID string, status domain.OrderStatus) error
}

// Reservations is the claim protocol the orchestrator drives.
type Reservations interface {
	Reserve(ctx context.Context, raffleID string, numbers []int, userID string) error
	CheckOwnership(ctx context.Context, raffleID string, numbers []int, userID string) ([]reservation.Ownership, error)
	Release(ctx context.Context, raffleID string, numbers []int) error
}

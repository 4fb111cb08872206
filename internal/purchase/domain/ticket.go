package domain

import "time"

type TicketStatus string

const (
	TicketAvailable TicketStatus = "available"
	TicketPending   TicketStatus = "pending"
	TicketPaid      TicketStatus = "paid"
	// TicketMissing marks a requested number with no row at all; it is
	// never stored, only reported, and counts as unavailable.
	TicketMissing TicketStatus = "missing"
)

// TicketState is the durable sale state of one (raffle, number).
type TicketState struct {
	Number int
	Status TicketStatus
}

type Raffle struct {
	ID             string
	Name           string
	UnitPriceCents int64
	TotalNumbers   int
	CreatedAt      time.Time
}

// NewRaffle builds a raffle whose tickets 1..totalNumbers all start out
// available.
func NewRaffle(id, name string, unitPriceCents int64, totalNumbers int, now time.Time) Raffle {
	return Raffle{
		ID:             id,
		Name:           name,
		UnitPriceCents: unitPriceCents,
		TotalNumbers:   totalNumbers,
		CreatedAt:      now,
	}
}

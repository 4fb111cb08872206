package application

import (
	"context"
	"time"

	"github.com/dmehra2102/Raffle-Reservation-System/internal/reservation/domain"
)

// ClaimStore is the key/value store holding live claims, one group per
// raffle. Individual operations are atomic; nothing is transactional
// across operations, conflict checking is the manager's job.
type ClaimStore interface {
	// GetAll returns every live claim for a raffle keyed by ticket number.
	GetAll(ctx context.Context, raffleID string) (map[int]domain.Claim, error)

	// SetMany stores the given claims and applies one TTL to the whole
	// raffle group. Pre-existing entries for the same numbers are
	// overwritten.
	SetMany(ctx context.Context, raffleID string, claims map[int]domain.Claim, ttl time.Duration) error

	// GetMany returns one entry per requested number in input order; nil
	// means no live claim.
	GetMany(ctx context.Context, raffleID string, numbers []int) ([]*domain.Claim, error)

	// DeleteMany removes specific number entries; absent numbers are not
	// an error.
	DeleteMany(ctx context.Context, raffleID string, numbers []int) error
}

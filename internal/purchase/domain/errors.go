package domain

import (
	"errors"
	"strconv"
	"strings"
)

var (
	ErrRaffleNotFound = errors.New("raffle not found")
	ErrOrderNotFound  = errors.New("payment order not found")

	// ErrAlreadyCommitted is the idempotency outcome: the payment was
	// already confirmed and the tickets are paid. Callers treat it as a
	// no-op success, never as a fault.
	ErrAlreadyCommitted = errors.New("payment already committed")

	// ErrTicketsAlreadySold means the conditional durable update lost to
	// another payment that reached paid first for one of the numbers.
	ErrTicketsAlreadySold = errors.New("tickets already sold")

	ErrOrderNotOpen = errors.New("payment order is not open")

	ErrInvalidRaffle = errors.New("raffle needs a name, a positive price and at least one number")
)

// NumbersUnavailableError reports numbers whose durable state already
// moved past available (sold or mid-sale).
type NumbersUnavailableError struct {
	Numbers []int
}

func (e *NumbersUnavailableError) Error() string {
	parts := make([]string, len(e.Numbers))
	for i, n := range e.Numbers {
		parts[i] = strconv.Itoa(n)
	}
	return "numbers unavailable: " + strings.Join(parts, ", ")
}

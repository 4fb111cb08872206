package domain

import (
	"errors"
	"strconv"
	"strings"
)

var (
	// ErrStoreUnavailable wraps any transport failure talking to the
	// reservation store. Callers must not assume the write happened.
	ErrStoreUnavailable = errors.New("reservation store unavailable")

	// ErrReservationInvalidOrExpired means a claim was missing, expired or
	// held by someone else at a step requiring proof of ownership.
	ErrReservationInvalidOrExpired = errors.New("reservation invalid or expired")

	ErrNoNumbers      = errors.New("no numbers requested")
	ErrInvalidNumbers = errors.New("ticket numbers must be positive")
)

// NumbersAlreadyReservedError is the expected contention outcome: someone
// else holds a live claim on part of the request. It carries the exact
// conflicting numbers so the buyer can deselect them.
type NumbersAlreadyReservedError struct {
	Conflicting []int
}

func (e *NumbersAlreadyReservedError) Error() string {
	return "numbers already reserved: " + joinNumbers(e.Conflicting)
}

func joinNumbers(numbers []int) string {
	parts := make([]string, len(numbers))
	for i, n := range numbers {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ", ")
}

package domain

import "time"

// ReservationTTL bounds the lifetime of every claim. The redis key expiry
// and the purchase deadline surfaced to buyers both derive from this
// constant; they must never diverge.
const ReservationTTL = 900 * time.Second

// Claim is one buyer's temporary exclusive hold on one ticket number
// within one raffle. Claims live in the reservation store under the
// raffle's hash key and vanish when the key's TTL fires.
type Claim struct {
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Ownership reports how one requested number relates to the caller at the
// moment of the check. A number proves reserved for the caller only when
// both flags are true.
type Ownership struct {
	Number        int
	IsReserved    bool
	OwnedByCaller bool
}

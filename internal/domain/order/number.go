package order

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// NewNumberGenerator returns an order number generator producing ULIDs:
// a millisecond timestamp prefix, so numbers sort by creation time, followed
// by random entropy. Uniqueness is still enforced by the store.
func NewNumberGenerator(now func() time.Time) func() string {
	if now == nil {
		now = time.Now
	}
	entropy := ulid.DefaultEntropy()
	return func() string {
		id, err := ulid.New(ulid.Timestamp(now()), entropy)
		if err != nil {
			// Monotonic entropy overflowed within one millisecond.
			return ulid.Make().String()
		}
		return id.String()
	}
}

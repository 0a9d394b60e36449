package store

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// newID returns a ULID for now. The default entropy source is monotonic, so ids
// minted within one millisecond still sort in creation order.
func newID(now time.Time) string {
	return ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String()
}

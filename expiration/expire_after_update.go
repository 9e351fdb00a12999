package expiration

import (
	"fmt"
	"time"

	"github.com/krisalay/cache-facade/types"
)

// AfterUpdate expires an entry a TTL after its value was last written.
// Reads do not keep it alive.
type AfterUpdate struct {
	TTL time.Duration
}

func (e AfterUpdate) IsExpired(ts types.Timestamps, now time.Time) bool {
	return expiredAfter(ts.LastUpdatedAt, e.TTL, now)
}

func (e AfterUpdate) Validate() error { return validTTL(e.TTL) }

func (e AfterUpdate) String() string { return fmt.Sprintf("modified(%s)", e.TTL) }

// AfterTouch expires an entry a TTL after it was last read or written, whichever came later.
type AfterTouch struct {
	TTL time.Duration
}

func (e AfterTouch) IsExpired(ts types.Timestamps, now time.Time) bool {
	last := ts.LastAccessedAt
	if ts.LastUpdatedAt.After(last) {
		last = ts.LastUpdatedAt
	}
	return expiredAfter(last, e.TTL, now)
}

func (e AfterTouch) Validate() error { return validTTL(e.TTL) }

func (e AfterTouch) String() string { return fmt.Sprintf("touched(%s)", e.TTL) }

package expiration

import (
	"fmt"
	"time"

	"github.com/krisalay/cache-facade/types"
)

/*
AfterAccess implements a very common cache behavior called "expire after access" or "sliding TTL".
Every time someone reads the data, the expiration timer is pushed forward. As long as the data keeps
getting used, it stays alive. If nobody touches it for a while, it expires.

The store moves LastAccessedAt on every successful read; this policy only compares against it.
*/
type AfterAccess struct {

	// TTL defines how long the entry should remain valid AFTER it is accessed.
	TTL time.Duration
}

// IsExpired checks whether the entry is expired at this momts.
func (e AfterAccess) IsExpired(ts types.Timestamps, now time.Time) bool {
	return expiredAfter(ts.LastAccessedAt, e.TTL, now)
}

func (e AfterAccess) Validate() error { return validTTL(e.TTL) }

func (e AfterAccess) String() string { return fmt.Sprintf("accessed(%s)", e.TTL) }

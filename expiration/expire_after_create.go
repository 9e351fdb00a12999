package expiration

import (
	"fmt"
	"time"

	"github.com/krisalay/cache-facade/types"
)

/*
AfterCreate expires an entry a fixed TTL after it was created.
Updating the value does not extend its life; only removing it and putting it again does.
*/
type AfterCreate struct {
	TTL time.Duration
}

func (e AfterCreate) IsExpired(ts types.Timestamps, now time.Time) bool {
	return expiredAfter(ts.CreatedAt, e.TTL, now)
}

func (e AfterCreate) Validate() error { return validTTL(e.TTL) }

func (e AfterCreate) String() string { return fmt.Sprintf("created(%s)", e.TTL) }

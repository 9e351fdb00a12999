// This file defines how cache entries expire over time.

package expiration

import (
	"errors"
	"time"

	"github.com/krisalay/cache-facade/types"
)

// ErrInvalidTTL is returned by Validate when a policy has a non-positive TTL.
var ErrInvalidTTL = errors.New("expiry ttl must be positive")

/*
Policy is the interface that all expiration rules must follow. Instead of hard-coding
expiration logic into the cache, we define a policy so expiration behavior can be swapped easily.

IsExpired must be pure: it looks at the entry timestamps and the time it is given,
and nothing else. The cache evaluates it lazily, on access. There is no background sweeper.
*/
type Policy interface {
	IsExpired(ts types.Timestamps, now time.Time) bool
}

// Validator is implemented by policies that carry settings that can be wrong.
type Validator interface {
	Validate() error
}

// IsExpired evaluates p, treating a nil policy as eternal.
func IsExpired(p Policy, ts types.Timestamps, now time.Time) bool {
	return p != nil && p.IsExpired(ts, now)
}

// Validate runs p's own validation when it has any.
func Validate(p Policy) error {
	if v, ok := p.(Validator); ok {
		return v.Validate()
	}
	return nil
}

func validTTL(ttl time.Duration) error {
	if ttl <= 0 {
		return ErrInvalidTTL
	}
	return nil
}

// expiredAfter reports whether now is past since+ttl.
func expiredAfter(since time.Time, ttl time.Duration, now time.Time) bool {
	return now.After(since.Add(ttl))
}

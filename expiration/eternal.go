package expiration

import (
	"time"

	"github.com/krisalay/cache-facade/types"
)

// Eternal never expires anything. It is the default when no policy is configured.
type Eternal struct{}

func (Eternal) IsExpired(types.Timestamps, time.Time) bool { return false }

func (Eternal) String() string { return "eternal" }

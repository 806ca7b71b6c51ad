// Package ratelimit throttles login attempts per key (username and client
// address). Memory keeps counters in process; Redis shares them between
// replicas.
package ratelimit

import "context"

type Limiter interface {
	// Allow records one attempt for key and reports whether it is within
	// the limit.
	Allow(ctx context.Context, key string) (bool, error)
}

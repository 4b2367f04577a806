// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package httpserver

import (
	"golang.org/x/time/rate"

	"github.com/zhengpenghou/lanpaste/pkg/serve"
)

// limiter holds one token bucket per configured API key, refilled
// continuously at max_requests_per_minute/60 per second and capped at the
// per-minute budget. The map is immutable after construction; the buckets
// themselves are safe for concurrent use.
type limiter struct {
	buckets map[string]*rate.Limiter
}

func newLimiter(kc *serve.Keychain) *limiter {
	l := &limiter{buckets: make(map[string]*rate.Limiter)}
	for _, k := range kc.Keys() {
		l.buckets[k.Name] = rate.NewLimiter(rate.Limit(float64(k.MaxRequestsPerMinute)/60.0), k.MaxRequestsPerMinute)
	}
	return l
}

// Allow deducts one token from the named bucket. Unknown names have no
// bucket and are rejected; admission has already filtered them out.
func (l *limiter) Allow(name string) bool {
	b, ok := l.buckets[name]
	if !ok {
		return false
	}
	return b.Allow()
}

// Package ratelimiter implements token bucket rate limiting over pluggable
// stores.
//
// A bucket holds up to Capacity tokens and gains RefillRate tokens every
// RefillInterval. Each Allow call takes one token; a denied call takes
// nothing, so a client that keeps retrying is let through again as soon as
// the bucket refills.
//
//	limiter, err := ratelimiter.NewBucket(ratelimiter.NewMemoryStore(), ratelimiter.Config{
//		Capacity:       5,
//		RefillRate:     1,
//		RefillInterval: time.Minute,
//	})
//
//	res, err := limiter.Allow(ctx, "login:"+ip)
//	if err == nil && !res.Allowed() {
//		// retry after res.RetryAfter()
//	}
//
// MemoryStore keeps buckets in process memory and drops idle ones.
// RedisStore shares buckets between instances using a Lua script, so each
// check is a single atomic round trip.
//
// Key functions build bucket keys from requests; Composite joins several and
// hashes long results.
package ratelimiter

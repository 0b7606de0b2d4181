// Package ratelimit keeps a sliding window of hits per key and answers
// whether a caller-supplied limit has been reached.
//
// The limit is passed on each call because callers scale a per-channel base
// by notification priority. Allow checks and consumes in one store
// operation; a slot taken for work that later fails is given back with
// Cancel:
//
//	limiter, _ := ratelimit.New(ratelimit.NewMemoryStore(), time.Minute)
//	res, err := limiter.Allow(ctx, "push:user-1", notifications.PriorityHigh.ScaleLimit(20))
//	if err != nil {
//		// store fault: wrapped in ErrStoreUnavailable, not a denial
//	}
//	if res.Allowed {
//		if err := deliver(); err != nil {
//			_ = limiter.Cancel(ctx, res)
//		}
//	}
//
// MemoryStore serves a single process. RedisStore shares hit logs between
// instances as sorted sets trimmed and appended by a single Lua script.
package ratelimit

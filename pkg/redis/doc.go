// Package redis connects to Redis with go-redis/v9. The client backs the
// shared rate-limit counters and the delivery-record cache; KeyPrefix
// namespaces both.
//
//	client, err := redis.Connect(ctx, cfg)
//	store := ratelimit.NewRedisStore(client, cfg.KeyPrefix+"rl:")
package redis

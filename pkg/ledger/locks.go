package ledger

import (
	"hash/fnv"
	"sync"
)

const lockShards = 64

// recordLocks serializes status changes per (notification, connection) pair.
// Distinct pairs may share a shard.
type recordLocks struct {
	shards [lockShards]sync.Mutex
}

func (l *recordLocks) get(key string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return &l.shards[h.Sum32()%lockShards]
}

package utils

import (
	"sync"

	"github.com/zeebo/xxh3"
)

const mutexShards = 128

// KeyedMutex serializes work per key without a global lock. Keys hash onto a
// fixed set of shards; unrelated keys on the same shard serialize too, which
// is harmless for correctness.
type KeyedMutex struct {
	shards [mutexShards]sync.Mutex
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{}
}

// Lock acquires the shard for key and returns the matching unlock.
func (m *KeyedMutex) Lock(key string) func() {
	shard := &m.shards[xxh3.HashString(key)%mutexShards]
	shard.Lock()
	return shard.Unlock
}

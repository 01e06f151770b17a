package util

import (
	"hash/fnv"
	"sync"
)

const lockStripes = 64

// KeyLock serializes work on the same key with a fixed number of mutexes.
// Unrelated keys may share a stripe.
type KeyLock struct {
	stripes [lockStripes]sync.Mutex
}

// Lock blocks until the stripe of key is held and returns its unlock func.
func (l *KeyLock) Lock(key string) func() {
	m := &l.stripes[l.stripeOf(key)]
	m.Lock()
	return m.Unlock
}

func (l *KeyLock) stripeOf(key string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return h.Sum32() % lockStripes
}

// Package syncutil contains synchronization primitives missing from
// the sync package
package syncutil

import (
	"sync"

	"github.com/gogf/gf/encoding/ghash"
)

// NamedMutex is a striped lock allowing to lock/unlock using a key.
// Two different keys may collide on the same underlying mutex
type NamedMutex struct {
	locks []sync.RWMutex
	size  uint32
}

// NewNamedMutex creates a new NamedMutex with the given number of
// stripes. If the number is below 2, 2 will be used.
// Using a prime number offers a better key distribution
func NewNamedMutex(maxMutexes uint32) *NamedMutex {
	if maxMutexes < 2 {
		maxMutexes = 2
	}

	return &NamedMutex{
		size:  maxMutexes,
		locks: make([]sync.RWMutex, maxMutexes),
	}
}

// Lock locks the provided key. If the lock is already in use, the
// calling goroutine blocks until the mutex is available
func (mu *NamedMutex) Lock(key []byte) {
	mu.locks[ghash.SDBMHash(key)%mu.size].Lock()
}

// Unlock unlocks the provided key. It is a run-time error if the key
// is not locked on entry to Unlock
func (mu *NamedMutex) Unlock(key []byte) {
	mu.locks[ghash.SDBMHash(key)%mu.size].Unlock()
}

// RLock locks the provided key for reading
func (mu *NamedMutex) RLock(key []byte) {
	mu.locks[ghash.SDBMHash(key)%mu.size].RLock()
}

// RUnlock undoes a single RLock call; it does not affect other
// simultaneous readers
func (mu *NamedMutex) RUnlock(key []byte) {
	mu.locks[ghash.SDBMHash(key)%mu.size].RUnlock()
}

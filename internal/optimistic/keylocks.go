package optimistic

import "sync"

// lockEntry is a per-key mutex with a reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// keyLocks serializes work per entity id. Entries live only while someone
// holds or waits for them.
type keyLocks struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

func newKeyLocks() *keyLocks {
	return &keyLocks{locks: make(map[string]*lockEntry)}
}

// lock blocks until key is free and returns its unlock func.
func (k *keyLocks) lock(key string) (unlock func()) {
	entry := k.acquire(key)
	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		k.release(key)
	}
}

func (k *keyLocks) acquire(key string) *lockEntry {
	k.mu.Lock()
	defer k.mu.Unlock()

	entry, ok := k.locks[key]
	if !ok {
		entry = &lockEntry{}
		k.locks[key] = entry
	}
	entry.refs++
	return entry
}

func (k *keyLocks) release(key string) {
	k.mu.Lock()
	defer k.mu.Unlock()

	entry, ok := k.locks[key]
	if !ok {
		return
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(k.locks, key)
	}
}

// active reports how many keys currently have an entry.
func (k *keyLocks) active() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}

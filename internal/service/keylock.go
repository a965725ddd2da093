package service

import "sync"

// KeyLock serializes work per chat. Entries are dropped once nobody holds or
// waits on them.
type KeyLock struct {
	mu    sync.Mutex
	locks map[int64]*keyEntry
}

type keyEntry struct {
	mu   sync.Mutex
	refs int
}

func NewKeyLock() *KeyLock {
	return &KeyLock{locks: make(map[int64]*keyEntry)}
}

// Lock blocks until the chat is free and returns the matching unlock func.
func (k *KeyLock) Lock(chatID int64) func() {
	k.mu.Lock()
	e, ok := k.locks[chatID]
	if !ok {
		e = &keyEntry{}
		k.locks[chatID] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Unlock()
			k.mu.Lock()
			e.refs--
			if e.refs == 0 {
				delete(k.locks, chatID)
			}
			k.mu.Unlock()
		})
	}
}

func (k *KeyLock) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}

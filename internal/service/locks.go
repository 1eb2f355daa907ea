package service

import "sync"

// UserLocks serializes actions per user id so that two interleaved
// actions on the same user cannot lose a read-modify-write against the
// remote ledger. Locks are never removed; the map grows with the number
// of distinct active users in one process lifetime.
type UserLocks struct {
	mu sync.Mutex
	m  map[string]*sync.Mutex
}

func NewUserLocks() *UserLocks {
	return &UserLocks{m: make(map[string]*sync.Mutex)}
}

// Lock acquires the lock for a user id and returns its unlock func.
func (l *UserLocks) Lock(id string) func() {
	l.mu.Lock()
	um, ok := l.m[id]
	if !ok {
		um = &sync.Mutex{}
		l.m[id] = um
	}
	l.mu.Unlock()

	um.Lock()
	return um.Unlock
}

package storage

import "sync"

// UserLocks serializes read-modify-write sequences per user. Entries are
// reference counted so idle users do not accumulate.
type UserLocks struct {
	mu    sync.Mutex
	locks map[string]*userLock
}

type userLock struct {
	mu   sync.Mutex
	refs int
}

// NewUserLocks creates an empty lock set.
func NewUserLocks() *UserLocks {
	return &UserLocks{locks: make(map[string]*userLock)}
}

// Lock acquires the mutex of userID and returns its release function.
func (l *UserLocks) Lock(userID string) (unlock func()) {
	l.mu.Lock()
	ul, ok := l.locks[userID]
	if !ok {
		ul = &userLock{}
		l.locks[userID] = ul
	}
	ul.refs++
	l.mu.Unlock()

	ul.mu.Lock()
	return func() {
		ul.mu.Unlock()
		l.mu.Lock()
		ul.refs--
		if ul.refs == 0 {
			delete(l.locks, userID)
		}
		l.mu.Unlock()
	}
}

// Len returns the number of users currently holding or waiting for a lock.
func (l *UserLocks) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

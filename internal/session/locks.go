package session

import (
	"sync"

	"github.com/parsascontentcorner/telegramdrive/internal/models"
)

type userLock struct {
	mu   sync.Mutex
	refs int
}

// LockArena hands out one mutex per user. Entries are reference counted and
// removed once nobody holds or waits for them, so idle users cost nothing.
type LockArena struct {
	mu    sync.Mutex
	locks map[models.UserID]*userLock
}

// NewLockArena creates an empty arena
func NewLockArena() *LockArena {
	return &LockArena{locks: make(map[models.UserID]*userLock)}
}

// Lock blocks until userID's lock is held and returns the function that releases it
func (a *LockArena) Lock(userID models.UserID) (unlock func()) {
	a.mu.Lock()
	l, ok := a.locks[userID]
	if !ok {
		l = &userLock{}
		a.locks[userID] = l
	}
	l.refs++
	a.mu.Unlock()

	l.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Unlock()

			a.mu.Lock()
			l.refs--
			if l.refs == 0 {
				delete(a.locks, userID)
			}
			a.mu.Unlock()
		})
	}
}

// Len returns the number of users with a held or awaited lock
func (a *LockArena) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.locks)
}

package notesvc

import "sync"

// dateLocks serializes read-check-write sequences on one day's note.
// Entries are dropped once nobody holds or waits for them.
type dateLocks struct {
	mu    sync.Mutex
	locks map[string]*dateLock
}

type dateLock struct {
	sync.Mutex
	refs int
}

// lock blocks until date is free and returns the matching unlock.
func (l *dateLocks) lock(date string) func() {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[string]*dateLock)
	}
	dl, ok := l.locks[date]
	if !ok {
		dl = &dateLock{}
		l.locks[date] = dl
	}
	dl.refs++
	l.mu.Unlock()

	dl.Lock()
	return func() {
		dl.Unlock()
		l.mu.Lock()
		dl.refs--
		if dl.refs == 0 {
			delete(l.locks, date)
		}
		l.mu.Unlock()
	}
}

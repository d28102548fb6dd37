package hilink

import (
	"context"
	"sync"
)

// Session is the authenticated state held for one user. Cookie and Token always
// come from the same login response.
type Session struct {
	Cookie string
	Token  string
}

// Valid reports whether both halves of the session are present
func (s Session) Valid() bool {
	return s.Cookie != "" && s.Token != ""
}

type entry struct {
	// flow is a one-slot semaphore serializing session-touching flows for the user
	flow chan struct{}

	mu      sync.RWMutex
	session Session
}

// Registry maps user ids to sessions. Flows for different users never share an entry.
type Registry struct {
	mu      sync.Mutex
	entries map[int64]*entry
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[int64]*entry)}
}

func (r *Registry) entry(userID int64) *entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[userID]
	if !ok {
		e = &entry{flow: make(chan struct{}, 1)}
		r.entries[userID] = e
	}
	return e
}

// Get returns the stored session for userID, empty if none
func (r *Registry) Get(userID int64) Session {
	e := r.entry(userID)
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.session
}

func (r *Registry) set(userID int64, s Session) {
	e := r.entry(userID)
	e.mu.Lock()
	e.session = s
	e.mu.Unlock()
}

// Invalidate clears the stored session for userID
func (r *Registry) Invalidate(userID int64) {
	r.set(userID, Session{})
}

// Remove waits for the user's flow, then drops the entry. Flows queued on the
// dropped entry move on to the user's next entry, so the user stays serialized.
func (r *Registry) Remove(ctx context.Context, userID int64) error {
	e, err := r.lock(ctx, userID)
	if err != nil {
		return err
	}
	r.mu.Lock()
	delete(r.entries, userID)
	<-e.flow
	r.mu.Unlock()
	return nil
}

// Len returns the number of users with an entry
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// acquire blocks until the caller owns userID's flow or ctx is done
func (r *Registry) acquire(ctx context.Context, userID int64) (func(), error) {
	e, err := r.lock(ctx, userID)
	if err != nil {
		return nil, err
	}
	return func() { <-e.flow }, nil
}

// lock takes the flow of the user's current entry. An entry removed while the
// caller waited on it is let go and the wait starts over on its successor.
func (r *Registry) lock(ctx context.Context, userID int64) (*entry, error) {
	for {
		e := r.entry(userID)
		select {
		case e.flow <- struct{}{}:
		case <-ctx.Done():
			return nil, ctx.Err()
		}

		r.mu.Lock()
		current := r.entries[userID] == e
		r.mu.Unlock()
		if current {
			return e, nil
		}
		<-e.flow
	}
}

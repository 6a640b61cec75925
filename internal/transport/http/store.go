package httptransport

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iliamunaev/Payment-Flow-Orchestration/internal/apperr"
	"github.com/iliamunaev/Payment-Flow-Orchestration/internal/flow"
	"github.com/iliamunaev/Payment-Flow-Orchestration/internal/metrics"
	"github.com/iliamunaev/Payment-Flow-Orchestration/internal/model"
	"github.com/iliamunaev/Payment-Flow-Orchestration/internal/session"
)

// tokenBox is the token source of one API session. Every request that
// carries a bearer token refreshes it.
type tokenBox struct {
	mu  sync.Mutex
	tok string
}

func (b *tokenBox) Token(ctx context.Context) (string, error) {
	b.mu.Lock()
	tok := b.tok
	b.mu.Unlock()
	return session.Static(tok).Token(ctx)
}

func (b *tokenBox) set(tok string) {
	if tok == "" {
		return
	}
	b.mu.Lock()
	b.tok = tok
	b.mu.Unlock()
}

// Session is one payment flow held by the API.
type Session struct {
	ID   string
	Flow *flow.Flow

	token    *tokenBox
	lastSeen time.Time
}

// Store keeps sessions in memory and drops them after ttl without use.
type Store struct {
	ttl time.Duration
	now func() time.Time

	mu    sync.Mutex
	items map[string]*Session
}

// NewStore returns an empty Store. A non-positive ttl defaults to 15 minutes.
func NewStore(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Store{ttl: ttl, now: time.Now, items: make(map[string]*Session)}
}

func (s *Store) put(f *flow.Flow, box *tokenBox) *Session {
	sess := &Session{ID: uuid.NewString(), Flow: f, token: box}

	s.mu.Lock()
	defer s.mu.Unlock()
	sess.lastSeen = s.now()
	s.items[sess.ID] = sess
	metrics.SetActiveSessions(len(s.items))
	return sess
}

// Get returns the session and marks it used.
func (s *Store) Get(id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.items[id]
	if !ok {
		return nil, apperr.New(apperr.ErrSessionNotFound, "Payment session not found")
	}
	sess.lastSeen = s.now()
	return sess, nil
}

// Delete closes and forgets the session.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	sess, ok := s.items[id]
	delete(s.items, id)
	metrics.SetActiveSessions(len(s.items))
	s.mu.Unlock()

	if !ok {
		return apperr.New(apperr.ErrSessionNotFound, "Payment session not found")
	}
	sess.Flow.Close()
	return nil
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Sweep closes sessions idle for longer than ttl and returns how many went.
// A session with a submission in flight is kept until it settles.
func (s *Store) Sweep() int {
	s.mu.Lock()
	cutoff := s.now().Add(-s.ttl)
	var expired []*Session
	for id, sess := range s.items {
		if sess.lastSeen.After(cutoff) || sess.Flow.Step() == model.StepProcessing {
			continue
		}
		expired = append(expired, sess)
		delete(s.items, id)
	}
	metrics.SetActiveSessions(len(s.items))
	s.mu.Unlock()

	for _, sess := range expired {
		sess.Flow.Close()
	}
	return len(expired)
}

// Run sweeps every interval until ctx is done.
func (s *Store) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.Sweep()
		}
	}
}

// CloseAll closes every session. Used at shutdown.
func (s *Store) CloseAll() {
	s.mu.Lock()
	items := s.items
	s.items = make(map[string]*Session)
	metrics.SetActiveSessions(0)
	s.mu.Unlock()

	for _, sess := range items {
		sess.Flow.Close()
	}
}

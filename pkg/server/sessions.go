package server

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"migra/pkg/wizard"
)

const (
	defaultMaxSessions = 256
	defaultSessionTTL  = 2 * time.Hour
)

// Session is one wizard run. Every use of the controller holds mu.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu   sync.Mutex
	ctrl *wizard.Controller
}

// Do runs fn with exclusive access to the controller.
func (s *Session) Do(fn func(*wizard.Controller) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.ctrl)
}

// SessionStore keeps live sessions; idle ones expire after the TTL.
type SessionStore struct {
	sessions *expirable.LRU[string, *Session]
}

func NewSessionStore(size int, ttl time.Duration) *SessionStore {
	if size <= 0 {
		size = defaultMaxSessions
	}
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &SessionStore{sessions: expirable.NewLRU[string, *Session](size, nil, ttl)}
}

// Create registers a new session whose controller is built by newCtrl
// from the session id.
func (s *SessionStore) Create(newCtrl func(id string) *wizard.Controller) *Session {
	id := uuid.NewString()
	session := &Session{
		ID:        id,
		CreatedAt: time.Now().UTC(),
		ctrl:      newCtrl(id),
	}
	s.sessions.Add(id, session)
	return session
}

// Get returns the session and refreshes its position in the LRU.
func (s *SessionStore) Get(id string) (*Session, bool) {
	return s.sessions.Get(id)
}

func (s *SessionStore) Remove(id string) bool {
	return s.sessions.Remove(id)
}

func (s *SessionStore) Len() int {
	return s.sessions.Len()
}

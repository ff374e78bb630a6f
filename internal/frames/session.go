package frames

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"banana-studio-backend/internal/metrics"
)

var ErrSessionNotFound = errors.New("frame session not found")

// Session is one user's in-memory editing session over an extraction run.
type Session struct {
	ID         uuid.UUID
	UserID     uuid.UUID
	SourceName string
	Frames     []Frame
	Overlay    *EditOverlay
	CreatedAt  time.Time

	lastAccess time.Time
}

// Frame returns the current version of the frame at index, edited if an edit
// exists.
func (s *Session) Frame(index int) (Frame, error) {
	if err := s.Overlay.checkIndex(index); err != nil {
		return Frame{}, err
	}
	if edited, ok := s.Overlay.Get(index); ok {
		return edited, nil
	}
	return s.Frames[index], nil
}

func (s *Session) Current() []Frame {
	return s.Overlay.Apply(s.Frames)
}

type SessionStore struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*Session
	now      func() time.Time
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[uuid.UUID]*Session),
		now:      time.Now,
	}
}

// NewSessionStoreWithClock is NewSessionStore with an injectable clock.
func NewSessionStoreWithClock(now func() time.Time) *SessionStore {
	s := NewSessionStore()
	s.now = now
	return s
}

func (s *SessionStore) Create(userID uuid.UUID, sourceName string, frames []Frame) *Session {
	now := s.now()
	session := &Session{
		ID:         uuid.New(),
		UserID:     userID,
		SourceName: sourceName,
		Frames:     frames,
		Overlay:    NewEditOverlay(len(frames)),
		CreatedAt:  now,
		lastAccess: now,
	}

	s.mu.Lock()
	s.sessions[session.ID] = session
	count := len(s.sessions)
	s.mu.Unlock()

	metrics.FrameSessionsActive.Set(float64(count))
	return session
}

// Get returns the session only to its owner.
func (s *SessionStore) Get(id, userID uuid.UUID) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok || session.UserID != userID {
		return nil, ErrSessionNotFound
	}
	session.lastAccess = s.now()
	return session, nil
}

func (s *SessionStore) Delete(id, userID uuid.UUID) error {
	s.mu.Lock()
	session, ok := s.sessions[id]
	if !ok || session.UserID != userID {
		s.mu.Unlock()
		return ErrSessionNotFound
	}
	delete(s.sessions, id)
	count := len(s.sessions)
	s.mu.Unlock()

	metrics.FrameSessionsActive.Set(float64(count))
	return nil
}

// Sweep drops sessions idle for longer than maxAge and reports how many went.
func (s *SessionStore) Sweep(maxAge time.Duration) int {
	cutoff := s.now().Add(-maxAge)

	s.mu.Lock()
	removed := 0
	for id, session := range s.sessions {
		if session.lastAccess.Before(cutoff) {
			delete(s.sessions, id)
			removed++
		}
	}
	count := len(s.sessions)
	s.mu.Unlock()

	metrics.FrameSessionsActive.Set(float64(count))
	return removed
}

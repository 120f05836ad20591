package pipeline

import (
	"sync"

	"github.com/google/uuid"

	"card-scanner/internal/card"
	"card-scanner/pkg/geometry"
)

// Session is the mutable state shared by the frames of one scanning session and
// the lookups they start.
type Session struct {
	id uuid.UUID

	mu          sync.RWMutex
	url         string
	resolvedID  card.Identifier
	lastBox     geometry.RectInt
	lastDisplay geometry.Rect
	hasBox      bool
}

// NewSession starts a session with a fresh id.
func NewSession() *Session {
	return &Session{id: uuid.New()}
}

// ID returns the session id.
func (s *Session) ID() uuid.UUID { return s.id }

// SetResolved records the most recently resolved card page. It has the
// signature of the lookup client's resolve callback.
func (s *Session) SetResolved(id card.Identifier, url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.url = url
	s.resolvedID = id
}

// URL returns the last resolved URL.
func (s *Session) URL() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.url, s.url != ""
}

// Resolved returns the identifier the current URL belongs to.
func (s *Session) Resolved() card.Identifier {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.resolvedID
}

// ClearURL forgets the resolved URL.
func (s *Session) ClearURL() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.url = ""
	s.resolvedID = card.Identifier{}
}

// setLastBox records the last detection. It is kept for diagnostics; frames
// without a detection never reuse it.
func (s *Session) setLastBox(box geometry.RectInt, display geometry.Rect) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastBox = box
	s.lastDisplay = display
	s.hasBox = true
}

// LastBox returns the most recent detection box in sensor and display space.
func (s *Session) LastBox() (geometry.RectInt, geometry.Rect, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastBox, s.lastDisplay, s.hasBox
}

// Package overlay holds the highlight rectangles drawn over the camera preview and
// routes touches on them.
package overlay

import (
	"sync"

	"card-scanner/pkg/geometry"
)

// Action is the kind of a touch event.
type Action int

const (
	ActionDown Action = iota
	ActionMove
	ActionUp
	ActionCancel
)

func (a Action) String() string {
	switch a {
	case ActionDown:
		return "down"
	case ActionMove:
		return "move"
	case ActionUp:
		return "up"
	case ActionCancel:
		return "cancel"
	}
	return "unknown"
}

// TouchEvent is a pointer event in view (display) coordinates.
type TouchEvent struct {
	Action Action
	X, Y   float64
}

// Point returns the event position.
func (e TouchEvent) Point() geometry.Point2D {
	return geometry.Point2D{X: e.X, Y: e.Y}
}

// Highlight is one labelled rectangle in display coordinates.
type Highlight struct {
	Rect  geometry.Rect
	Label string
}

// State is the set of highlights currently shown. It is safe for concurrent use.
type State struct {
	mu         sync.Mutex
	highlights []Highlight
	onTouch    func(TouchEvent) bool
	invalidate func()
}

// New creates an empty overlay. invalidate is called after every change so the
// view can schedule a redraw; it may be nil.
func New(invalidate func()) *State {
	return &State{invalidate: invalidate}
}

// Add appends a highlight.
func (s *State) Add(rect geometry.Rect, label string) {
	s.mu.Lock()
	s.highlights = append(s.highlights, Highlight{Rect: rect, Label: label})
	s.mu.Unlock()
	s.redraw()
}

// Clear removes every highlight. Clearing an empty overlay is a no-op apart from
// the redraw request.
func (s *State) Clear() {
	s.mu.Lock()
	s.highlights = nil
	s.mu.Unlock()
	s.redraw()
}

// Replace clears the overlay and adds one highlight under a single lock, so a
// concurrent reader never sees the empty intermediate state.
func (s *State) Replace(rect geometry.Rect, label string) {
	s.mu.Lock()
	s.highlights = []Highlight{{Rect: rect, Label: label}}
	s.mu.Unlock()
	s.redraw()
}

// Highlights returns a copy of the current highlights.
func (s *State) Highlights() []Highlight {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Highlight, len(s.highlights))
	copy(out, s.highlights)
	return out
}

// Len returns the number of highlights.
func (s *State) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.highlights)
}

// HitTest reports whether p lies strictly inside any highlight.
func (s *State) HitTest(p geometry.Point2D) bool {
	_, ok := s.hit(p)
	return ok
}

// HighlightAt returns the highlight strictly containing p, if any.
func (s *State) HighlightAt(p geometry.Point2D) (Highlight, bool) {
	return s.hit(p)
}

func (s *State) hit(p geometry.Point2D) (Highlight, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.highlights) - 1; i >= 0; i-- {
		if s.highlights[i].Rect.ContainsStrict(p) {
			return s.highlights[i], true
		}
	}
	return Highlight{}, false
}

// SetTouchHandler installs the handler that receives every touch. Passing nil
// removes it.
func (s *State) SetTouchHandler(fn func(TouchEvent) bool) {
	s.mu.Lock()
	s.onTouch = fn
	s.mu.Unlock()
}

// Touch delivers an event to the installed handler and reports whether it was
// consumed.
func (s *State) Touch(ev TouchEvent) bool {
	s.mu.Lock()
	fn := s.onTouch
	s.mu.Unlock()
	if fn == nil {
		return false
	}
	return fn(ev)
}

func (s *State) redraw() {
	if s.invalidate != nil {
		s.invalidate()
	}
}

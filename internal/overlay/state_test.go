package overlay

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"card-scanner/pkg/geometry"
)

func TestClearThenAdd(t *testing.T) {
	redraws := 0
	s := New(func() { redraws++ })

	s.Add(geometry.NewRect(0, 0, 10, 10), "old")
	s.Add(geometry.NewRect(20, 20, 10, 10), "older")
	s.Clear()
	s.Add(geometry.NewRect(100, 100, 50, 70), "https://cards.example/1")

	hs := s.Highlights()
	require.Len(t, hs, 1)
	assert.Equal(t, "https://cards.example/1", hs[0].Label)
	assert.Equal(t, 4, redraws)
}

func TestClearIsIdempotent(t *testing.T) {
	s := New(nil)
	s.Clear()
	s.Clear()
	assert.Zero(t, s.Len())
}

func TestHighlightsReturnsCopy(t *testing.T) {
	s := New(nil)
	s.Add(geometry.NewRect(0, 0, 1, 1), "a")
	hs := s.Highlights()
	hs[0].Label = "mutated"
	assert.Equal(t, "a", s.Highlights()[0].Label)
}

func TestHitTestIsStrict(t *testing.T) {
	s := New(nil)
	s.Replace(geometry.NewRect(10, 10, 100, 50), "x")

	assert.True(t, s.HitTest(geometry.NewPoint2D(50, 30)))
	assert.False(t, s.HitTest(geometry.NewPoint2D(10, 30)), "edge is not inside")
	assert.False(t, s.HitTest(geometry.NewPoint2D(200, 30)))
}

func TestTouchOpensOnce(t *testing.T) {
	s := New(nil)
	s.Replace(geometry.NewRect(0, 0, 100, 100), "https://cards.example/1")

	var opened []string
	s.SetTouchHandler(func(ev TouchEvent) bool {
		if ev.Action != ActionDown {
			return false
		}
		h, ok := s.HighlightAt(ev.Point())
		if !ok {
			return false
		}
		opened = append(opened, h.Label)
		s.Clear()
		return true
	})

	assert.False(t, s.Touch(TouchEvent{Action: ActionDown, X: 150, Y: 50}))
	assert.False(t, s.Touch(TouchEvent{Action: ActionUp, X: 50, Y: 50}))
	assert.True(t, s.Touch(TouchEvent{Action: ActionDown, X: 50, Y: 50}))
	assert.False(t, s.Touch(TouchEvent{Action: ActionDown, X: 50, Y: 50}))

	assert.Equal(t, []string{"https://cards.example/1"}, opened)
}

func TestTouchWithoutHandler(t *testing.T) {
	s := New(nil)
	assert.False(t, s.Touch(TouchEvent{Action: ActionDown}))
}

package pipeline

import (
	"card-scanner/internal/card"
	"card-scanner/pkg/geometry"
)

// Stage is the point at which analysis of a frame stopped.
type Stage int

const (
	OutcomeEmpty Stage = iota
	OutcomeDetectFailed
	OutcomeNoDetection
	OutcomeRecognizeFailed
	OutcomeParseMiss
	OutcomeIdentified
	OutcomeFailed
)

func (s Stage) String() string {
	switch s {
	case OutcomeEmpty:
		return "empty"
	case OutcomeDetectFailed:
		return "detect_failed"
	case OutcomeNoDetection:
		return "no_detection"
	case OutcomeRecognizeFailed:
		return "recognize_failed"
	case OutcomeParseMiss:
		return "parse_miss"
	case OutcomeIdentified:
		return "identified"
	case OutcomeFailed:
		return "failed"
	}
	return "unknown"
}

// Outcome describes what happened to one frame.
type Outcome struct {
	Seq   uint64
	Stage Stage
	Err   error

	Detection   Detection
	DisplayRect geometry.Rect
	Crop        geometry.RectInt
	Text        string

	ID          card.Identifier
	FirstTriple string

	// Resolving is set when a lookup request was started for ID.
	Resolving bool
	// Overlaid is set when the overlay was refreshed with the session URL.
	Overlaid bool
}

// Detected reports whether the frame got past detection.
func (o Outcome) Detected() bool {
	return o.Stage >= OutcomeRecognizeFailed && o.Stage != OutcomeFailed
}

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"card-scanner/internal/camera"
	"card-scanner/internal/card"
	"card-scanner/internal/ocr"
	"card-scanner/internal/overlay"
	"card-scanner/internal/region"
)

// Config wires an Analyzer to its collaborators. Detector and Recognizer are
// required; the rest may be nil.
type Config struct {
	Detector   Detector
	Recognizer Recognizer
	Resolver   Resolver
	Overlay    *overlay.State
	Session    *Session
	Notifier   Notifier
	Opener     Opener
	Logger     *slog.Logger

	// OnOutcome, if set, is called after each analyzed frame.
	OnOutcome func(Outcome)
}

// Analyzer processes one frame at a time.
type Analyzer struct {
	detector   Detector
	recognizer Recognizer
	resolver   Resolver
	overlay    *overlay.State
	session    *Session
	notifier   Notifier
	opener     Opener
	logger     *slog.Logger
	onOutcome  func(Outcome)
}

// NewAnalyzer creates an analyzer from cfg.
func NewAnalyzer(cfg Config) (*Analyzer, error) {
	if cfg.Detector == nil {
		return nil, errors.New("pipeline: detector is required")
	}
	if cfg.Recognizer == nil {
		return nil, errors.New("pipeline: recognizer is required")
	}
	a := &Analyzer{
		detector:   cfg.Detector,
		recognizer: cfg.Recognizer,
		resolver:   cfg.Resolver,
		overlay:    cfg.Overlay,
		session:    cfg.Session,
		notifier:   cfg.Notifier,
		opener:     cfg.Opener,
		logger:     cfg.Logger,
		onOutcome:  cfg.OnOutcome,
	}
	if a.session == nil {
		a.session = NewSession()
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	a.logger = a.logger.With("component", "pipeline", "session", a.session.ID().String())
	return a, nil
}

// Session returns the analyzer's session.
func (a *Analyzer) Session() *Session { return a.session }

// Analyze runs the full chain on frame and releases it.
func (a *Analyzer) Analyze(ctx context.Context, frame *camera.Frame) (out Outcome) {
	defer frame.Release()
	defer a.recoverPanic(frame, &out)

	out = a.identify(ctx, frame)
	switch out.Stage {
	case OutcomeParseMiss, OutcomeIdentified:
	default:
		a.report(out)
		return out
	}

	if out.Stage == OutcomeIdentified && a.resolver != nil && !a.alreadyResolved(out.ID) {
		out.Resolving = a.resolver.Resolve(ctx, out.ID)
	}

	out.Overlaid = a.updateOverlay(out)
	a.report(out)
	return out
}

// Identify runs detection, recognition and parsing only, then releases the frame.
// It never starts a lookup or touches the overlay.
func (a *Analyzer) Identify(ctx context.Context, frame *camera.Frame) (out Outcome) {
	defer frame.Release()
	defer a.recoverPanic(frame, &out)

	out = a.identify(ctx, frame)
	a.report(out)
	return out
}

func (a *Analyzer) identify(ctx context.Context, frame *camera.Frame) Outcome {
	var out Outcome
	if frame != nil {
		out.Seq = frame.Seq
	}
	if frame.Empty() {
		out.Stage = OutcomeEmpty
		out.Err = ErrNoImage
		return out
	}

	detections, err := a.detector.Detect(ctx, frame.Image)
	if err != nil {
		a.logger.Warn("detection failed", "seq", frame.Seq, "error", err)
		a.notify(err)
		out.Stage = OutcomeDetectFailed
		out.Err = fmt.Errorf("failed to detect card: %w", err)
		return out
	}
	if len(detections) == 0 {
		out.Stage = OutcomeNoDetection
		return out
	}

	det := detections[0]
	w, h := frame.Size()
	out.Detection = det
	out.DisplayRect = region.ToDisplay(det.Box, frame.Transform)
	out.Crop = region.TextCrop(det.Box, w, h)
	a.session.setLastBox(det.Box, out.DisplayRect)

	a.logger.Debug("card detected", "seq", frame.Seq, "box", det.Box, "score", det.Score, "crop", out.Crop)

	if out.Crop.Empty() {
		// Nothing to read; the overlay can still follow the card.
		out.Stage = OutcomeParseMiss
		return out
	}

	img, err := camera.RotateAndCrop(frame.Image, frame.Rotation, out.Crop)
	if err != nil {
		a.logger.Warn("crop failed", "seq", frame.Seq, "error", err)
		out.Stage = OutcomeRecognizeFailed
		out.Err = fmt.Errorf("failed to crop frame: %w", err)
		return out
	}

	text, err := a.recognizer.Recognize(ctx, img)
	if err != nil {
		a.logger.Warn("text recognition failed", "seq", frame.Seq, "error", err)
		a.notify(err)
		out.Stage = OutcomeRecognizeFailed
		out.Err = fmt.Errorf("failed to recognize text: %w", err)
		return out
	}
	out.Text = text.String()

	res := card.ParseLogged(text, a.logger)
	out.FirstTriple = res.FirstTriple
	if !res.Found {
		out.Stage = OutcomeParseMiss
		return out
	}
	out.ID = res.ID
	out.Stage = OutcomeIdentified
	return out
}

// updateOverlay anchors the session's resolved URL to this frame's card.
func (a *Analyzer) updateOverlay(out Outcome) bool {
	if a.overlay == nil {
		return false
	}
	url, ok := a.session.URL()
	if !ok {
		return false
	}

	a.overlay.Replace(out.DisplayRect, url)
	a.overlay.SetTouchHandler(a.handleTouch)
	return true
}

// alreadyResolved reports whether the session's current URL belongs to id, in
// which case looking it up again would only repeat the answer.
func (a *Analyzer) alreadyResolved(id card.Identifier) bool {
	if _, ok := a.session.URL(); !ok {
		return false
	}
	return a.session.Resolved() == id
}

// handleTouch opens the highlighted URL on a down event inside it.
func (a *Analyzer) handleTouch(ev overlay.TouchEvent) bool {
	if ev.Action != overlay.ActionDown {
		return false
	}
	h, ok := a.overlay.HighlightAt(ev.Point())
	if !ok {
		return false
	}

	a.overlay.Clear()
	a.overlay.SetTouchHandler(nil)
	a.session.ClearURL()

	if a.opener != nil {
		if err := a.opener.Open(h.Label); err != nil {
			a.logger.Warn("failed to open card page", "url", h.Label, "error", err)
		}
	}
	a.logger.Info("card page opened", "url", h.Label)
	return true
}

func (a *Analyzer) notify(err error) {
	if a.notifier == nil {
		return
	}
	if errors.Is(err, ocr.ErrModelUnavailable) {
		a.notifier.Notify(ModelUnavailableMessage)
		return
	}
	a.notifier.Notify(err.Error())
}

func (a *Analyzer) recoverPanic(frame *camera.Frame, out *Outcome) {
	r := recover()
	if r == nil {
		return
	}
	var seq uint64
	if frame != nil {
		seq = frame.Seq
	}
	a.logger.Error("recovered panic during frame analysis", "seq", seq, "panic", r)
	*out = Outcome{Seq: seq, Stage: OutcomeFailed, Err: fmt.Errorf("panic: %v", r)}
	a.report(*out)
}

func (a *Analyzer) report(out Outcome) {
	if out.Stage != OutcomeEmpty && out.Stage != OutcomeNoDetection {
		a.logger.Debug("frame analyzed", "seq", out.Seq, "stage", out.Stage.String(), "id", out.ID.String())
	}
	if a.onOutcome != nil {
		a.onOutcome(out)
	}
}

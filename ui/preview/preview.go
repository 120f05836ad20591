// Package preview provides the live camera view with the card overlay drawn on
// top and taps routed to it.
package preview

import (
	"image"
	"image/color"
	"sync"

	"fyne.io/fyne/v2"
	fynecanvas "fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/widget"

	"card-scanner/internal/overlay"
	"card-scanner/pkg/geometry"
)

const (
	labelPadding  = 25
	labelTextSize = 36
	strokeWidth   = 4
)

var (
	highlightColor = color.NRGBA{R: 0xFF, G: 0xEB, B: 0x3B, A: 0xFF}
	labelTextColor = color.NRGBA{R: 0x21, G: 0x21, B: 0x21, A: 0xFF}
)

// Preview shows frames scaled to fit and centered, which is the display space
// camera.DisplayTransform maps into.
type Preview struct {
	widget.BaseWidget

	overlay *overlay.State
	image   *fynecanvas.Image

	mu   sync.Mutex
	size fyne.Size
}

// New creates a preview bound to ov.
func New(ov *overlay.State) *Preview {
	p := &Preview{overlay: ov}
	p.image = fynecanvas.NewImageFromImage(nil)
	p.image.FillMode = fynecanvas.ImageFillContain
	p.image.ScaleMode = fynecanvas.ImageScaleFastest
	p.ExtendBaseWidget(p)
	return p
}

// SetFrame replaces the displayed image.
func (p *Preview) SetFrame(img image.Image) {
	p.mu.Lock()
	p.image.Image = img
	p.mu.Unlock()
	p.Refresh()
}

// ViewSize returns the current widget size in display units.
func (p *Preview) ViewSize() (float64, float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return float64(p.size.Width), float64(p.size.Height)
}

// Resize records the size used for display transforms.
func (p *Preview) Resize(size fyne.Size) {
	p.mu.Lock()
	p.size = size
	p.mu.Unlock()
	p.BaseWidget.Resize(size)
}

// MinSize keeps the preview usable in small windows.
func (p *Preview) MinSize() fyne.Size {
	return fyne.NewSize(320, 240)
}

// Tapped delivers a down event at the tap position to the overlay.
func (p *Preview) Tapped(ev *fyne.PointEvent) {
	if p.overlay == nil {
		return
	}
	p.overlay.Touch(overlay.TouchEvent{
		Action: overlay.ActionDown,
		X:      float64(ev.Position.X),
		Y:      float64(ev.Position.Y),
	})
}

// CreateRenderer implements fyne.Widget.
func (p *Preview) CreateRenderer() fyne.WidgetRenderer {
	r := &renderer{preview: p}
	r.Refresh()
	return r
}

type renderer struct {
	preview *Preview
	objects []fyne.CanvasObject
}

func (r *renderer) Layout(size fyne.Size) {
	r.preview.image.Resize(size)
	r.preview.image.Move(fyne.NewPos(0, 0))
}

func (r *renderer) MinSize() fyne.Size {
	return r.preview.MinSize()
}

// Refresh rebuilds the highlight objects from the overlay state.
func (r *renderer) Refresh() {
	objs := []fyne.CanvasObject{r.preview.image}
	if r.preview.overlay != nil {
		for _, h := range r.preview.overlay.Highlights() {
			objs = append(objs, highlightObjects(h)...)
		}
	}
	r.objects = objs
	r.Layout(r.preview.Size())
	r.preview.image.Refresh()
}

func (r *renderer) Objects() []fyne.CanvasObject {
	return r.objects
}

func (r *renderer) Destroy() {}

// highlightObjects draws the card outline with its label in a filled box just
// below it.
func highlightObjects(h overlay.Highlight) []fyne.CanvasObject {
	outline := fynecanvas.NewRectangle(color.Transparent)
	outline.StrokeColor = highlightColor
	outline.StrokeWidth = strokeWidth
	outline.Move(fyne.NewPos(float32(h.Rect.X), float32(h.Rect.Y)))
	outline.Resize(fyne.NewSize(float32(h.Rect.Width), float32(h.Rect.Height)))

	text := fynecanvas.NewText(h.Label, labelTextColor)
	text.TextSize = labelTextSize
	ts := fyne.MeasureText(h.Label, labelTextSize, text.TextStyle)

	box := LabelBox(h.Rect, float64(ts.Width), float64(ts.Height))
	bg := fynecanvas.NewRectangle(highlightColor)
	bg.Move(fyne.NewPos(float32(box.X), float32(box.Y)))
	bg.Resize(fyne.NewSize(float32(box.Width), float32(box.Height)))

	text.Move(fyne.NewPos(float32(box.X+labelPadding), float32(box.Y+labelPadding)))
	text.Resize(ts)

	return []fyne.CanvasObject{outline, bg, text}
}

// LabelBox returns the label background rectangle for a highlight: left-aligned
// with the outline and directly below it, padded on every side.
func LabelBox(rect geometry.Rect, textWidth, textHeight float64) geometry.Rect {
	return geometry.Rect{
		X:      rect.X,
		Y:      rect.Y + rect.Height,
		Width:  textWidth + 2*labelPadding,
		Height: textHeight + 2*labelPadding,
	}
}

// Package ocr defines the structured text a recognizer returns: blocks of lines of
// elements, in reading order. Recognizer implementations live in subpackages.
package ocr

import (
	"errors"
	"image"
	"sort"
	"strings"
)

// ErrModelUnavailable is returned by recognizers whose model data has not been
// installed or downloaded yet.
var ErrModelUnavailable = errors.New("text recognition model unavailable")

// Element is the smallest recognized unit, usually one word.
type Element struct {
	Text       string          `json:"text"`
	Bounds     image.Rectangle `json:"-"`
	Confidence float64         `json:"confidence,omitempty"`
}

// Line is an ordered run of elements.
type Line struct {
	Elements []Element       `json:"elements"`
	Bounds   image.Rectangle `json:"-"`
}

// Text returns the elements joined by single spaces.
func (l Line) Text() string {
	parts := make([]string, 0, len(l.Elements))
	for _, e := range l.Elements {
		parts = append(parts, e.Text)
	}
	return strings.Join(parts, " ")
}

// Block is an ordered group of lines.
type Block struct {
	Lines  []Line          `json:"lines"`
	Bounds image.Rectangle `json:"-"`
}

// Text is a full recognition result.
type Text struct {
	Blocks []Block `json:"blocks"`
}

// String renders blocks separated by blank lines and lines by newlines.
func (t *Text) String() string {
	if t == nil {
		return ""
	}
	var sb strings.Builder
	for i, b := range t.Blocks {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		for j, l := range b.Lines {
			if j > 0 {
				sb.WriteByte('\n')
			}
			sb.WriteString(l.Text())
		}
	}
	return sb.String()
}

// ElementCount returns the total number of elements.
func (t *Text) ElementCount() int {
	if t == nil {
		return 0
	}
	n := 0
	for _, b := range t.Blocks {
		for _, l := range b.Lines {
			n += len(l.Elements)
		}
	}
	return n
}

// FromLines builds a single-block Text from lines of whitespace-separated words.
func FromLines(lines ...string) *Text {
	block := Block{}
	for _, s := range lines {
		fields := strings.Fields(s)
		if len(fields) == 0 {
			continue
		}
		line := Line{Elements: make([]Element, 0, len(fields))}
		for _, f := range fields {
			line.Elements = append(line.Elements, Element{Text: f})
		}
		block.Lines = append(block.Lines, line)
	}
	if len(block.Lines) == 0 {
		return &Text{}
	}
	return &Text{Blocks: []Block{block}}
}

// Box is a flat recognizer output: a rectangle with optional text.
type Box struct {
	Bounds     image.Rectangle
	Text       string
	Confidence float64
}

// Assemble nests flat word boxes into the lines and blocks whose rectangles contain
// their centers, ordered top-to-bottom then left-to-right. Words that fall outside
// every line get a line of their own; lines outside every block get a block of their
// own. Empty words are dropped.
func Assemble(blocks, lines, words []Box) *Text {
	blockSlots := make([]Block, len(blocks))
	for i, b := range blocks {
		blockSlots[i].Bounds = b.Bounds
	}
	lineSlots := make([]Line, len(lines))
	for i, l := range lines {
		lineSlots[i].Bounds = l.Bounds
	}

	for _, w := range words {
		text := strings.TrimSpace(w.Text)
		if text == "" {
			continue
		}
		el := Element{Text: text, Bounds: w.Bounds, Confidence: w.Confidence}
		if idx := containing(lineSlots, func(l Line) image.Rectangle { return l.Bounds }, w.Bounds); idx >= 0 {
			lineSlots[idx].Elements = append(lineSlots[idx].Elements, el)
			continue
		}
		lineSlots = append(lineSlots, Line{Bounds: w.Bounds, Elements: []Element{el}})
	}

	for _, l := range lineSlots {
		if len(l.Elements) == 0 {
			continue
		}
		sort.SliceStable(l.Elements, func(i, j int) bool {
			return l.Elements[i].Bounds.Min.X < l.Elements[j].Bounds.Min.X
		})
		if idx := containing(blockSlots, func(b Block) image.Rectangle { return b.Bounds }, l.Bounds); idx >= 0 {
			blockSlots[idx].Lines = append(blockSlots[idx].Lines, l)
			continue
		}
		blockSlots = append(blockSlots, Block{Bounds: l.Bounds, Lines: []Line{l}})
	}

	out := &Text{}
	for _, b := range blockSlots {
		if len(b.Lines) == 0 {
			continue
		}
		sort.SliceStable(b.Lines, func(i, j int) bool {
			return readingBefore(b.Lines[i].Bounds, b.Lines[j].Bounds)
		})
		out.Blocks = append(out.Blocks, b)
	}
	sort.SliceStable(out.Blocks, func(i, j int) bool {
		return readingBefore(out.Blocks[i].Bounds, out.Blocks[j].Bounds)
	})
	return out
}

func containing[T any](slots []T, bounds func(T) image.Rectangle, r image.Rectangle) int {
	center := image.Pt((r.Min.X+r.Max.X)/2, (r.Min.Y+r.Max.Y)/2)
	for i, s := range slots {
		if center.In(bounds(s)) {
			return i
		}
	}
	return -1
}

func readingBefore(a, b image.Rectangle) bool {
	if a.Min.Y != b.Min.Y {
		return a.Min.Y < b.Min.Y
	}
	return a.Min.X < b.Min.X
}

// Package gemini recognizes text with a Gemini vision model. The model is asked for
// the text as JSON blocks of lines of words so the result keeps the same hierarchy
// a local OCR engine produces.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"strings"
	"sync"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"card-scanner/internal/ocr"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-1.5-flash"

const instruction = `You read the small printed text in the corner of a trading card.
Transcribe every word exactly as printed, keeping case, digits and slashes.
Group words into lines and lines into blocks in reading order.
Return only JSON of the form {"blocks":[{"lines":[["word","word"],["word"]]}]}.`

// Engine implements pipeline.Recognizer. The API client is created on first use
// and shared by later calls.
type Engine struct {
	apiKey   string
	model    string
	attempts int

	mu     sync.Mutex
	client *genai.Client
}

// New creates an engine for model using apiKey.
func New(apiKey, model string) *Engine {
	model = strings.TrimSpace(model)
	if model == "" {
		model = DefaultModel
	}
	return &Engine{apiKey: strings.TrimSpace(apiKey), model: model, attempts: 3}
}

// Model returns the configured model name.
func (e *Engine) Model() string { return e.model }

// Close releases the API client.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.client == nil {
		return nil
	}
	err := e.client.Close()
	e.client = nil
	return err
}

func (e *Engine) genaiClient(ctx context.Context) (*genai.Client, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.client != nil {
		return e.client, nil
	}
	cl, err := genai.NewClient(ctx, option.WithAPIKey(e.apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	e.client = cl
	return cl, nil
}

// Recognize sends img to the model and decodes the reply.
func (e *Engine) Recognize(ctx context.Context, img image.Image) (*ocr.Text, error) {
	if e.apiKey == "" {
		return nil, fmt.Errorf("%w: gemini api key is empty", ocr.ErrModelUnavailable)
	}
	if img == nil || img.Bounds().Empty() {
		return nil, errors.New("empty image")
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}

	cl, err := e.genaiClient(ctx)
	if err != nil {
		return nil, err
	}

	m := cl.GenerativeModel(e.model)
	m.GenerationConfig = genai.GenerationConfig{
		Temperature:      ptrFloat32(0),
		ResponseMIMEType: "application/json",
	}
	m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(instruction)}}

	parts := []genai.Part{
		genai.Text("Transcribe the image."),
		&genai.Blob{MIMEType: "image/png", Data: buf.Bytes()},
	}

	// Retry transient failures.
	var lastErr error
	for attempt := 1; attempt <= e.attempts; attempt++ {
		resp, err := m.GenerateContent(ctx, parts...)
		if err != nil {
			lastErr = err
			if attempt == e.attempts {
				break
			}
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * 300 * time.Millisecond):
			}
			continue
		}
		txt := firstText(resp)
		if txt == "" {
			return nil, errors.New("gemini: empty response")
		}
		return decode(txt)
	}
	return nil, fmt.Errorf("gemini: %w", lastErr)
}

type reply struct {
	Blocks []struct {
		Lines [][]string `json:"lines"`
	} `json:"blocks"`
}

// decode converts the model's JSON reply into ocr.Text.
func decode(raw string) (*ocr.Text, error) {
	raw = stripCodeFences(strings.TrimSpace(raw))

	var r reply
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return nil, fmt.Errorf("gemini: bad JSON: %w", err)
	}

	out := &ocr.Text{}
	for _, b := range r.Blocks {
		var block ocr.Block
		for _, words := range b.Lines {
			var line ocr.Line
			for _, w := range words {
				for _, f := range strings.Fields(w) {
					line.Elements = append(line.Elements, ocr.Element{Text: f})
				}
			}
			if len(line.Elements) > 0 {
				block.Lines = append(block.Lines, line)
			}
		}
		if len(block.Lines) > 0 {
			out.Blocks = append(out.Blocks, block)
		}
	}
	return out, nil
}

// stripCodeFences removes a surrounding ```json fence some models add anyway.
func stripCodeFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	for _, c := range resp.Candidates {
		if c.Content == nil {
			continue
		}
		for _, p := range c.Content.Parts {
			if t, ok := p.(genai.Text); ok {
				return string(t)
			}
		}
	}
	return ""
}

func ptrFloat32(v float32) *float32 { return &v }

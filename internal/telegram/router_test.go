package telegram

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"card-scanner/internal/camera"
	"card-scanner/internal/card"
	"card-scanner/internal/lookup"
	"card-scanner/internal/ocr"
	"card-scanner/internal/pipeline"
)

type fakeBot struct {
	mu   sync.Mutex
	sent []string
}

func (b *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if m, ok := c.(tgbotapi.MessageConfig); ok {
		b.sent = append(b.sent, m.Text)
	}
	return tgbotapi.Message{}, nil
}

func (b *fakeBot) GetFile(cfg tgbotapi.FileConfig) (tgbotapi.File, error) {
	return tgbotapi.File{FileID: cfg.FileID, FilePath: "photos/" + cfg.FileID + ".png"}, nil
}

func (b *fakeBot) last() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.sent) == 0 {
		return ""
	}
	return b.sent[len(b.sent)-1]
}

type fakeIdentifier struct {
	out   pipeline.Outcome
	calls int
	size  image.Point
}

func (f *fakeIdentifier) Identify(ctx context.Context, frame *camera.Frame) pipeline.Outcome {
	defer frame.Release()
	f.calls++
	w, h := frame.Size()
	f.size = image.Pt(w, h)
	return f.out
}

type fakeLookup struct {
	url string
	err error
}

func (f fakeLookup) Fetch(ctx context.Context, id card.Identifier) (string, error) {
	return f.url, f.err
}

func pngServer(t *testing.T) *httptest.Server {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 40, 30))
	img.Set(1, 1, color.White)
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/file/botTOKEN/photos/abc.png" {
			http.NotFound(w, r)
			return
		}
		w.Write(buf.Bytes())
	}))
	t.Cleanup(srv.Close)
	return srv
}

func photoUpdate(fileID string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		Chat: &tgbotapi.Chat{ID: 42},
		Photo: []tgbotapi.PhotoSize{
			{FileID: "small", Width: 90},
			{FileID: fileID, Width: 1280},
		},
	}}
}

func newRouter(t *testing.T, id *fakeIdentifier, lk fakeLookup) (*Router, *fakeBot) {
	srv := pngServer(t)
	bot := &fakeBot{}
	return &Router{
		Bot:          bot,
		Token:        "TOKEN",
		Identifier:   id,
		Lookup:       lk,
		FileEndpoint: srv.URL + "/file/bot%s/%s",
		HTTPClient:   srv.Client(),
	}, bot
}

func TestHandlePhotoIdentified(t *testing.T) {
	id := &fakeIdentifier{out: pipeline.Outcome{
		Stage: pipeline.OutcomeIdentified,
		ID:    card.Identifier{SetCode: "SSP", CardNumber: "002"},
	}}
	r, bot := newRouter(t, id, fakeLookup{url: "https://cards.example/ssp/002"})

	r.HandleUpdate(context.Background(), photoUpdate("abc"))

	assert.Equal(t, 1, id.calls)
	assert.Equal(t, image.Pt(40, 30), id.size)
	assert.Equal(t, "SSP 002\nhttps://cards.example/ssp/002", bot.last())
}

func TestHandlePhotoReplies(t *testing.T) {
	ssp := card.Identifier{SetCode: "SSP", CardNumber: "002"}
	tests := []struct {
		name string
		out  pipeline.Outcome
		lk   fakeLookup
		want string
	}{
		{"no card", pipeline.Outcome{Stage: pipeline.OutcomeNoDetection}, fakeLookup{}, noCardText},
		{"unreadable", pipeline.Outcome{Stage: pipeline.OutcomeParseMiss}, fakeLookup{}, noIDText},
		{
			"model missing",
			pipeline.Outcome{Stage: pipeline.OutcomeRecognizeFailed, Err: ocr.ErrModelUnavailable},
			fakeLookup{},
			pipeline.ModelUnavailableMessage,
		},
		{
			"not in catalog",
			pipeline.Outcome{Stage: pipeline.OutcomeIdentified, ID: ssp},
			fakeLookup{err: lookup.ErrNotFound},
			"SSP 002 is not in the catalog.",
		},
		{
			"service down",
			pipeline.Outcome{Stage: pipeline.OutcomeIdentified, ID: ssp},
			fakeLookup{err: fmt.Errorf("%w: %w: dial tcp: connection refused", lookup.ErrNotFound, lookup.ErrUnavailable)},
			"Found SSP 002 but the lookup service is unavailable.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, bot := newRouter(t, &fakeIdentifier{out: tt.out}, tt.lk)
			r.HandleUpdate(context.Background(), photoUpdate("abc"))
			assert.Equal(t, tt.want, bot.last())
		})
	}
}

func TestHandlePhotoDownloadFailure(t *testing.T) {
	id := &fakeIdentifier{}
	r, bot := newRouter(t, id, fakeLookup{})

	r.HandleUpdate(context.Background(), photoUpdate("missing"))

	assert.Zero(t, id.calls)
	assert.Contains(t, bot.last(), "Could not fetch the photo")
}

func TestHandleCommandAndText(t *testing.T) {
	r, bot := newRouter(t, &fakeIdentifier{}, fakeLookup{})

	start := tgbotapi.Update{Message: &tgbotapi.Message{
		Chat:     &tgbotapi.Chat{ID: 1},
		Text:     "/start",
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: 6}},
	}}
	r.HandleUpdate(context.Background(), start)
	assert.Equal(t, startText, bot.last())

	r.HandleUpdate(context.Background(), tgbotapi.Update{Message: &tgbotapi.Message{
		Chat: &tgbotapi.Chat{ID: 1},
		Text: "hello",
	}})
	assert.Equal(t, startText, bot.last())

	r.HandleUpdate(context.Background(), tgbotapi.Update{})
	assert.Len(t, bot.sent, 2)
}

func TestHandlePhotoRecoversAfterOutage(t *testing.T) {
	var hits atomic.Int32
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"url":"https://cards.example/ssp/002"}`))
	}))
	defer api.Close()

	id := &fakeIdentifier{out: pipeline.Outcome{
		Stage: pipeline.OutcomeIdentified,
		ID:    card.Identifier{SetCode: "SSP", CardNumber: "002"},
	}}
	r, bot := newRouter(t, id, fakeLookup{})
	r.Lookup = lookup.New(api.URL, lookup.WithHTTPClient(api.Client()))

	r.HandleUpdate(context.Background(), photoUpdate("abc"))
	assert.Equal(t, "Found SSP 002 but the lookup service is unavailable.", bot.last())

	r.HandleUpdate(context.Background(), photoUpdate("abc"))
	assert.Equal(t, "SSP 002\nhttps://cards.example/ssp/002", bot.last())
	assert.Equal(t, int32(2), hits.Load())
}

// Package telegram lets users identify a card by sending its photo to a bot.
package telegram

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/disintegration/imaging"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"card-scanner/internal/camera"
	"card-scanner/internal/card"
	"card-scanner/internal/lookup"
	"card-scanner/internal/ocr"
	"card-scanner/internal/pipeline"
)

const (
	fileEndpoint = "https://api.telegram.org/file/bot%s/%s"
	maxPhotoSize = 20 << 20

	startText    = "Send a photo of a card and I will find its page.\nKeep the bottom corner with the set code in view."
	noCardText   = "I could not find a card in that photo."
	noIDText     = "I found a card but could not read its set code and number."
	notFoundText = "%s is not in the catalog."
)

// Bot is the part of tgbotapi.BotAPI the router uses.
type Bot interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetFile(config tgbotapi.FileConfig) (tgbotapi.File, error)
}

// Identifier reads the card identifier from a frame.
type Identifier interface {
	Identify(ctx context.Context, frame *camera.Frame) pipeline.Outcome
}

// Lookup resolves an identifier to a card page. The bot serves every chat for
// the life of the process, so misses must not be remembered between requests;
// lookup.Client.Fetch satisfies this.
type Lookup interface {
	Fetch(ctx context.Context, id card.Identifier) (string, error)
}

// Router answers bot updates.
type Router struct {
	Bot        Bot
	Token      string
	Identifier Identifier
	Lookup     Lookup
	Logger     *slog.Logger

	// FileEndpoint is a fmt pattern taking the token and file path. Empty means
	// the public Telegram file endpoint.
	FileEndpoint string
	HTTPClient   *http.Client
}

// HandleUpdate processes one update.
func (r *Router) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	if upd.Message == nil {
		return
	}
	msg := upd.Message
	cid := msg.Chat.ID

	switch {
	case msg.IsCommand():
		r.handleCommand(cid, msg.Command())
	case len(msg.Photo) > 0:
		r.send(cid, r.identifyPhoto(ctx, msg.Photo[len(msg.Photo)-1].FileID))
	case msg.Document != nil && isImageMIME(msg.Document.MimeType):
		r.send(cid, r.identifyPhoto(ctx, msg.Document.FileID))
	default:
		r.send(cid, startText)
	}
}

func (r *Router) handleCommand(cid int64, cmd string) {
	switch cmd {
	case "start", "help":
		r.send(cid, startText)
	case "health":
		r.send(cid, "OK")
	default:
		r.send(cid, "Unknown command")
	}
}

// identifyPhoto downloads a photo, reads its identifier and returns the reply text.
func (r *Router) identifyPhoto(ctx context.Context, fileID string) string {
	logger := r.logger().With("file_id", fileID)

	file, err := r.Bot.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		logger.Warn("get file failed", "error", err)
		return "Could not fetch the photo, please try again."
	}
	data, err := r.download(ctx, file.FilePath)
	if err != nil {
		logger.Warn("download failed", "error", err)
		return "Could not fetch the photo, please try again."
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		logger.Warn("decode failed", "error", err)
		return "That file is not an image I can read."
	}

	out := r.Identifier.Identify(ctx, camera.NewFrame(img, 0, nil))
	switch out.Stage {
	case pipeline.OutcomeIdentified:
	case pipeline.OutcomeNoDetection:
		return noCardText
	case pipeline.OutcomeParseMiss:
		return noIDText
	default:
		if errors.Is(out.Err, ocr.ErrModelUnavailable) {
			return pipeline.ModelUnavailableMessage
		}
		logger.Warn("identify failed", "stage", out.Stage.String(), "error", out.Err)
		return "Something went wrong reading that photo."
	}

	url, err := r.Lookup.Fetch(ctx, out.ID)
	switch {
	case err == nil:
	case errors.Is(err, lookup.ErrUnavailable):
		logger.Warn("lookup failed", "id", out.ID.String(), "error", err)
		return fmt.Sprintf("Found %s but the lookup service is unavailable.", out.ID)
	case errors.Is(err, lookup.ErrNotFound):
		return fmt.Sprintf(notFoundText, out.ID)
	default:
		logger.Warn("lookup failed", "id", out.ID.String(), "error", err)
		return fmt.Sprintf("Found %s but the lookup service is unavailable.", out.ID)
	}
	logger.Info("card identified", "id", out.ID.String(), "url", url)
	return fmt.Sprintf("%s\n%s", out.ID, url)
}

func (r *Router) download(ctx context.Context, filePath string) ([]byte, error) {
	endpoint := r.FileEndpoint
	if endpoint == "" {
		endpoint = fileEndpoint
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf(endpoint, r.Token, filePath), nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.httpClient().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxPhotoSize))
}

func (r *Router) send(cid int64, text string) {
	if _, err := r.Bot.Send(tgbotapi.NewMessage(cid, text)); err != nil {
		r.logger().Warn("send failed", "chat_id", cid, "error", err)
	}
}

func (r *Router) httpClient() *http.Client {
	if r.HTTPClient != nil {
		return r.HTTPClient
	}
	return &http.Client{Timeout: 60 * time.Second}
}

func (r *Router) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

func isImageMIME(mime string) bool {
	switch mime {
	case "image/jpeg", "image/png", "image/tiff":
		return true
	}
	return false
}

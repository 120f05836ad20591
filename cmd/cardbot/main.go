// cardbot is a Telegram bot that replies to card photos with the card's page.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"regexp"
	"strconv"
	"strings"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"card-scanner/internal/config"
	"card-scanner/internal/pipeline"
	"card-scanner/internal/scanner"
	"card-scanner/internal/telegram"
)

func main() {
	configPath := flag.String("config", config.DefaultPath(), "path to config.toml")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Bot.Token == "" {
		log.Fatal("bot token is empty: set CARDSCAN_BOT_TOKEN or [bot] token")
	}
	logger := cfg.Log.Logger()
	slog.SetDefault(logger)

	bot, err := tgbotapi.NewBotAPI(cfg.Bot.Token)
	if err != nil {
		log.Fatal(err)
	}
	bot.Debug = cfg.Bot.Debug
	logger.Info("authorized", "bot", bot.Self.UserName)

	recognizer, closer, err := scanner.NewRecognizer(cfg.OCR)
	if err != nil {
		log.Fatalf("Failed to create recognizer: %v", err)
	}
	defer closer.Close()

	analyzer, err := pipeline.NewAnalyzer(pipeline.Config{
		Detector:   scanner.NewDetector(cfg.Detector),
		Recognizer: recognizer,
		Logger:     logger,
	})
	if err != nil {
		log.Fatalf("Failed to create analyzer: %v", err)
	}
	client := scanner.NewLookup(cfg.Lookup, logger)
	defer client.Close()

	r := &telegram.Router{
		Bot:        bot,
		Token:      cfg.Bot.Token,
		Identifier: analyzer,
		Lookup:     client,
		Logger:     logger.With("component", "telegram"),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runPolling(ctx, bot, logger, func(upd tgbotapi.Update) {
		r.HandleUpdate(ctx, upd)
	})
}

var reRetryAfter = regexp.MustCompile(`(?i)retry after\s+(\d+)`)

func retryDelayFromError(err error) time.Duration {
	if err == nil {
		return 0
	}
	s := strings.ToLower(err.Error())
	if strings.Contains(s, "too many requests") {
		if m := reRetryAfter.FindStringSubmatch(s); len(m) == 2 {
			if n, _ := strconv.Atoi(m[1]); n > 0 {
				return time.Duration(n) * time.Second
			}
		}
		return 3 * time.Second
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return 2 * time.Second
	}
	return 1 * time.Second
}

// runPolling long-polls for updates until ctx is done, backing off on errors.
func runPolling(ctx context.Context, bot *tgbotapi.BotAPI, logger *slog.Logger, handle func(tgbotapi.Update)) {
	offset := 0
	const maxDelay = 15 * time.Second

	for ctx.Err() == nil {
		u := tgbotapi.NewUpdate(offset)
		u.Timeout = 30

		updates, err := bot.GetUpdates(u)
		if err != nil {
			d := min(max(retryDelayFromError(err), time.Second), maxDelay)
			logger.Warn("polling error", "error", err, "retry_in", d)
			select {
			case <-time.After(d):
			case <-ctx.Done():
			}
			continue
		}

		for _, upd := range updates {
			if upd.UpdateID >= offset {
				offset = upd.UpdateID + 1
			}
			handle(upd)
		}
	}
	logger.Info("polling stopped")
}

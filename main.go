// Package main provides the entry point for the Card Scanner desktop application.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"

	fyneapp "fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/dialog"

	"card-scanner/internal/app"
	"card-scanner/internal/camera"
	"card-scanner/internal/camera/webcam"
	"card-scanner/internal/config"
	"card-scanner/internal/lookup"
	"card-scanner/internal/overlay"
	"card-scanner/internal/pipeline"
	"card-scanner/internal/scanner"
	"card-scanner/internal/version"
	"card-scanner/ui/mainwindow"
	"card-scanner/ui/preview"
)

const (
	appTitle = "Card Scanner"
	appID    = "io.github.cardscanner"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Printf("Starting %s %s", appTitle, version.String())

	configPath := flag.String("config", config.DefaultPath(), "path to config.toml")
	device := flag.Int("device", -1, "camera device index (overrides config)")
	engine := flag.String("engine", "", "OCR engine: tesseract or gemini (overrides config)")
	lookupURL := flag.String("lookup", "", "lookup service base URL (overrides config)")
	hotReload := flag.Bool("hot-reload", false, "offer a restart when the binary is rebuilt")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *device >= 0 {
		cfg.Camera.Device = *device
	}
	if *engine != "" {
		cfg.OCR.Engine = *engine
	}
	if *lookupURL != "" {
		cfg.Lookup.BaseURL = *lookupURL
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	logger := cfg.Log.Logger()
	slog.SetDefault(logger)

	fyneApp := fyneapp.NewWithID(appID)
	fyneApp.Settings().SetTheme(&app.ScannerTheme{})

	var win *mainwindow.MainWindow
	ov := overlay.New(func() {
		if win != nil {
			win.Preview().Refresh()
		}
	})
	win = mainwindow.New(fyneApp, ov)

	session := pipeline.NewSession()
	client := scanner.NewLookup(cfg.Lookup, logger, lookup.OnResolved(session.SetResolved))
	defer client.Close()

	recognizer, closer, err := scanner.NewRecognizer(cfg.OCR)
	if err != nil {
		log.Fatalf("Failed to create recognizer: %v", err)
	}
	defer closer.Close()

	analyzer, err := pipeline.NewAnalyzer(pipeline.Config{
		Detector:   scanner.NewDetector(cfg.Detector),
		Recognizer: recognizer,
		Resolver:   client,
		Overlay:    ov,
		Session:    session,
		Notifier:   win,
		Opener:     win,
		Logger:     logger,
		OnOutcome:  win.ShowOutcome,
	})
	if err != nil {
		log.Fatalf("Failed to create analyzer: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Still images can be scanned without a camera.
	var src camera.Source
	cam, err := webcam.Open(webcam.Options{
		Device:   cfg.Camera.Device,
		Width:    cfg.Camera.Width,
		Height:   cfg.Camera.Height,
		FPS:      cfg.Camera.FPS,
		Rotation: cfg.Camera.Rotation,
	}, logger)
	if err != nil {
		logger.Error("camera unavailable", "device", cfg.Camera.Device, "error", err)
		win.Notify("No camera: use File > Scan Image")
	} else {
		src = cam
	}

	feed := preview.NewFeed(src, win.Preview(), logger)
	defer feed.Close()
	go func() {
		if err := analyzer.Run(ctx, feed); err != nil && ctx.Err() == nil {
			logger.Error("frame loop stopped", "error", err)
		}
	}()

	win.OnScanImage(func(path string) {
		go scanStill(feed, win, path, logger)
	})

	if *hotReload {
		setupHotReload(win)
	}

	win.ShowAndRun()
}

// scanStill loads one image file and queues it on the feed, so it is analyzed
// between live frames rather than alongside them.
func scanStill(feed *preview.Feed, win *mainwindow.MainWindow, path string, logger *slog.Logger) {
	frame, err := camera.LoadStill(path)
	if err != nil {
		logger.Warn("cannot load image", "path", path, "error", err)
		win.Notify("Cannot open " + path)
		return
	}
	if !feed.Push(frame) {
		win.Notify("Still busy with the previous image")
		return
	}
	win.Notify("Scanning " + path)
}

// setupHotReload configures automatic restart detection when the binary is recompiled.
func setupHotReload(win *mainwindow.MainWindow) {
	reloader := app.NewHotReloader()
	if reloader == nil {
		log.Println("Hot reload: unable to watch executable")
		return
	}

	log.Printf("Hot reload: watching %s", reloader.ExecPath())

	reloader.OnNewBinary(func() {
		log.Println("Hot reload: newer binary detected")
		dialog.ShowConfirm("New Version Available",
			"The application binary has been updated.\nRestart now?",
			func(ok bool) {
				if !ok {
					return
				}
				log.Println("Hot reload: restarting...")
				if err := reloader.Restart(); err != nil {
					log.Printf("Hot reload: restart failed: %v", err)
				}
			}, win.Window)
	})

	reloader.Start()
}

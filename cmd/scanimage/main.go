// scanimage identifies the cards in image files and prints their pages.
//
// Usage:
//
//	scanimage [-json] [-no-lookup] image-or-dir...
//	scanimage -init-config
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"

	"card-scanner/internal/camera"
	"card-scanner/internal/config"
	"card-scanner/internal/lookup"
	"card-scanner/internal/pipeline"
	"card-scanner/internal/scanner"
)

// result is one line of output.
type result struct {
	Path       string `json:"path"`
	Stage      string `json:"stage"`
	SetCode    string `json:"setCode,omitempty"`
	CardNumber string `json:"cardNumber,omitempty"`
	URL        string `json:"url,omitempty"`
	Text       string `json:"text,omitempty"`
	Error      string `json:"error,omitempty"`
}

func main() {
	configPath := flag.String("config", config.DefaultPath(), "path to config.toml")
	engine := flag.String("engine", "", "OCR engine: tesseract or gemini (overrides config)")
	lookupURL := flag.String("lookup", "", "lookup service base URL (overrides config)")
	jsonOut := flag.Bool("json", false, "print one JSON object per image")
	noLookup := flag.Bool("no-lookup", false, "only read identifiers")
	verbose := flag.Bool("v", false, "include recognized text")
	initConfig := flag.Bool("init-config", false, "write the default config to -config and exit")
	flag.Parse()

	if *initConfig {
		if err := config.Save(config.Default(), *configPath); err != nil {
			log.Fatalf("Failed to write config: %v", err)
		}
		fmt.Println("Wrote", *configPath)
		return
	}

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: scanimage [flags] image-or-dir...")
		flag.PrintDefaults()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *engine != "" {
		cfg.OCR.Engine = *engine
	}
	if *lookupURL != "" {
		cfg.Lookup.BaseURL = *lookupURL
	}
	logger := cfg.Log.Logger()
	slog.SetDefault(logger)

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

	paths := expandPaths(flag.Args())
	ctx := context.Background()
	enc := json.NewEncoder(os.Stdout)

	// Frame sequence numbers index paths; failed loads are reported as they happen.
	src := camera.NewStillSource(paths, func(path string, err error) {
		emit(enc, *jsonOut, result{Path: path, Stage: "load_failed", Error: err.Error()})
	})
	for frame := range src.Frames(ctx) {
		path := paths[frame.Seq-1]
		out := analyzer.Identify(ctx, frame)

		res := result{Path: path, Stage: out.Stage.String()}
		if *verbose {
			res.Text = out.Text
		}
		if out.Err != nil {
			res.Error = out.Err.Error()
		}
		if out.Stage == pipeline.OutcomeIdentified {
			res.SetCode = out.ID.SetCode
			res.CardNumber = out.ID.CardNumber
			if !*noLookup {
				url, err := client.Lookup(ctx, out.ID)
				switch {
				case err == nil:
					res.URL = url
				case errors.Is(err, lookup.ErrUnavailable):
					res.Error = "lookup service unavailable"
				case errors.Is(err, lookup.ErrNotFound):
					res.Error = "not in catalog"
				default:
					res.Error = err.Error()
				}
			}
		}
		emit(enc, *jsonOut, res)
	}
}

func emit(enc *json.Encoder, asJSON bool, r result) {
	if asJSON {
		enc.Encode(r)
		return
	}
	line := r.Path + "\t" + r.Stage
	if r.SetCode != "" {
		line += "\t" + r.SetCode + " " + r.CardNumber
	}
	if r.URL != "" {
		line += "\t" + r.URL
	}
	if r.Error != "" {
		line += "\t(" + r.Error + ")"
	}
	fmt.Println(line)
	if r.Text != "" {
		fmt.Println(r.Text)
	}
}

// expandPaths replaces directories with the supported images directly inside them.
func expandPaths(args []string) []string {
	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil || !info.IsDir() {
			paths = append(paths, arg)
			continue
		}
		entries, err := os.ReadDir(arg)
		if err != nil {
			paths = append(paths, arg)
			continue
		}
		for _, e := range entries {
			if !e.IsDir() && camera.IsSupportedFormat(e.Name()) {
				paths = append(paths, filepath.Join(arg, e.Name()))
			}
		}
	}
	return paths
}

// Command docread is the document acquisition and extraction service.
//
// Usage:
//
//	docread -config docread.yaml
//	docread                         # defaults, PORT/LOG_LEVEL from env
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hazyhaar/docread/fetch"
	"github.com/hazyhaar/docread/pipeline"
	"github.com/hazyhaar/docread/transcript"
)

func main() {
	configPath := flag.String("config", env("DOCREAD_CONFIG", ""), "path to docread.yaml config file")
	flag.Parse()

	cfg := &Config{}
	if *configPath != "" {
		loaded, err := LoadConfigFile(*configPath)
		if err != nil {
			slog.Error("config", "error", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if cfg.Addr == "" {
		cfg.Addr = ":" + env("PORT", "8080")
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = env("LOG_LEVEL", "info")
	}
	if cfg.OCR.APIKey == "" {
		cfg.OCR.APIKey = os.Getenv("OCR_API_KEY")
	}
	if cfg.Whisper.APIKey == "" {
		cfg.Whisper.APIKey = os.Getenv("WHISPER_API_KEY")
	}

	var lvl slog.Level
	switch cfg.LogLevel {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Renderer: remote rendering service when configured, local headless
	// browser when enabled.
	var renderer fetch.Renderer
	if cfg.Render.ServiceURL != "" {
		renderer = fetch.NewRenderClient(cfg.Render.ServiceURL, cfg.Render.APIKey, cfg.Render.Country, logger)
	} else if cfg.Render.Enabled {
		renderer = fetch.NewBrowserRenderer(logger)
	}

	fetcher := newFetcher(cfg, renderer, logger)

	var engine *transcript.Engine
	if cfg.Whisper.APIKey != "" {
		engineCfg := transcript.Config{
			Transcriber: transcript.NewWhisperTranscriber(cfg.Whisper.APIKey, cfg.Whisper.BaseURL, cfg.Whisper.Model),
			Logger:      logger,
		}
		if cfg.Whisper.HallucinationsFile != "" {
			h, err := LoadHallucinationsFile(cfg.Whisper.HallucinationsFile)
			if err != nil {
				slog.Error("hallucinations", "error", err)
				os.Exit(1)
			}
			engineCfg.Hallucinations = h
		}
		engine = transcript.New(engineCfg)
	}

	var ocr *pipeline.OCRClient
	if cfg.OCR.APIKey != "" {
		c := cfg.OCR
		ocr = &c
	}

	pipe := pipeline.New(pipeline.Config{
		Fetcher:          fetcher,
		WikiDomains:      cfg.WikiDomains,
		DashboardDomains: cfg.DashboardDomains,
		OCR:              ocr,
		Engine:           engine,
		RootSelectors:    cfg.RootSelectors,
		Logger:           logger,
	})

	srv := &server{pipe: pipe, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	// /read is the short form of /v1/download.
	r.Post("/read", srv.handleDownload)
	r.Post("/v1/download", srv.handleDownload)
	r.Post("/v1/blob", srv.handleBlob)
	r.Post("/v1/upload", srv.handleUpload)
	r.Post("/debug/download", srv.handleDebugDownload)
	r.Post("/debug/upload", srv.handleDebugUpload)

	httpSrv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		// Transcriptions of hour-long media can run for minutes.
		WriteTimeout: 15 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", cfg.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown", "error", err)
	}
	slog.Info("server stopped")
}

// newFetcher assembles the fetcher. The disabled render lists opt domains
// out of the fallback; they never enable anything.
func newFetcher(cfg *Config, renderer fetch.Renderer, logger *slog.Logger) *fetch.Fetcher {
	opts := []fetch.Option{
		fetch.WithTLSPolicy(cfg.TLS),
		fetch.WithLogger(logger),
	}
	if renderer != nil {
		opts = append(opts,
			fetch.WithRenderer(renderer),
			fetch.WithRenderRules(cfg.Render.DisabledDomains, cfg.Render.DisabledSuffixes))
	}
	if cfg.MaxFileSize > 0 {
		opts = append(opts, fetch.WithMaxFileSize(cfg.MaxFileSize))
	}
	return fetch.New(opts...)
}

// Command api serves the generation pipeline over HTTP: run orchestration
// with live event streams, synchronous image generation, and strategy
// planning.
package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"reelforge/internal/http/handlers"
	"reelforge/internal/http/httpapi"
	"reelforge/internal/infra"
	"reelforge/internal/infra/geoip"
	"reelforge/internal/media"
	"reelforge/internal/pipeline"
	"reelforge/internal/providers/anthropic"
	"reelforge/internal/providers/elevenlabs"
	"reelforge/internal/providers/runway"
	"reelforge/internal/providers/stability"
	"reelforge/internal/storage"
	"reelforge/internal/strategy"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	files, err := storage.NewFileStore(cfg.StoragePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("storage init failed")
	}

	geo, err := geoip.Open(cfg.GeoIPDBPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("geoip init failed")
	}
	defer geo.Close()

	// Vendor clients tolerate missing keys at construction; calls against an
	// unconfigured vendor fail with the credentials sentinel instead.
	studio, err := runway.NewClient(runway.Options{
		APIKey:  cfg.RunwayAPIKey,
		BaseURL: cfg.RunwayBaseURL,
		Version: cfg.RunwayVersion,
		Logger:  logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("runway client init failed")
	}
	voice, err := elevenlabs.NewClient(elevenlabs.Options{
		APIKey:  cfg.ElevenLabsAPIKey,
		BaseURL: cfg.ElevenLabsBaseURL,
		VoiceID: cfg.ElevenLabsVoiceID,
		ModelID: cfg.ElevenLabsModelID,
		Logger:  logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("elevenlabs client init failed")
	}
	images, err := stability.NewClient(stability.Options{
		APIKey:  cfg.StabilityAPIKey,
		BaseURL: cfg.StabilityBaseURL,
		Logger:  logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("stability client init failed")
	}
	planModel, err := anthropic.NewClient(anthropic.Options{
		APIKey:      cfg.AnthropicAPIKey,
		BaseURL:     cfg.AnthropicBaseURL,
		Model:       cfg.AnthropicModel,
		Temperature: cfg.AnthropicTemperature,
		Logger:      logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("anthropic client init failed")
	}

	runner, err := pipeline.NewRunner(pipeline.RunnerOptions{
		Store:         pipeline.NewStore(),
		Hub:           pipeline.NewHub(),
		Files:         files,
		Narrator:      voice,
		Studio:        studio,
		Downloader:    media.NewDownloader(files, nil, logger),
		Media:         media.NewFFmpeg(logger),
		WaitBudget:    cfg.WaitBudget,
		ImageInterval: cfg.ImagePollInterval,
		VideoInterval: cfg.VideoPollInterval,
		Logger:        logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("pipeline init failed")
	}

	prompts, err := strategy.LoadLibrary(cfg.PromptsDir)
	if err != nil {
		logger.Fatal().Err(err).Msg("prompt library init failed")
	}
	profiler, err := strategy.NewProfiler(planModel, nil, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("profiler init failed")
	}
	planner, err := strategy.NewPlanner(planModel, prompts, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("planner init failed")
	}

	app := &handlers.App{
		Config:   cfg,
		Logger:   logger,
		Runner:   runner,
		Images:   images,
		Profiler: profiler,
		Planner:  planner,
		Files:    files,
	}
	router := httpapi.NewRouter(app, cfg, logger, geo.Lookup())
	server := infra.NewHTTPServer(cfg, router)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info().Str("port", cfg.Port).Msg("api listening")
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown incomplete")
	}
	logger.Info().Msg("server stopped")
}

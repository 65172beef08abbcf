package commands

import (
	"reelforge/internal/media"
	"reelforge/internal/pipeline"
	"reelforge/internal/providers/anthropic"
	"reelforge/internal/providers/elevenlabs"
	"reelforge/internal/providers/runway"
	"reelforge/internal/providers/stability"
	"reelforge/internal/social/reddit"
	"reelforge/internal/social/twitter"
	"reelforge/internal/storage"
)

// Vendor client constructors over the loaded configuration. Clients that
// tolerate missing keys (runway, elevenlabs, stability, anthropic) construct
// unconditionally and fail per call; reddit and twitter validate credentials
// up front.

func newFileStore() (*storage.FileStore, error) {
	return storage.NewFileStore(cfg.StoragePath)
}

func newStudio() (*runway.Client, error) {
	return runway.NewClient(runway.Options{
		APIKey:  cfg.RunwayAPIKey,
		BaseURL: cfg.RunwayBaseURL,
		Version: cfg.RunwayVersion,
		Logger:  logger,
	})
}

func newVoice() (*elevenlabs.Client, error) {
	return elevenlabs.NewClient(elevenlabs.Options{
		APIKey:  cfg.ElevenLabsAPIKey,
		BaseURL: cfg.ElevenLabsBaseURL,
		VoiceID: cfg.ElevenLabsVoiceID,
		ModelID: cfg.ElevenLabsModelID,
		Logger:  logger,
	})
}

func newImageClient() (*stability.Client, error) {
	return stability.NewClient(stability.Options{
		APIKey:  cfg.StabilityAPIKey,
		BaseURL: cfg.StabilityBaseURL,
		Logger:  logger,
	})
}

func newPlanModel() (*anthropic.Client, error) {
	return anthropic.NewClient(anthropic.Options{
		APIKey:      cfg.AnthropicAPIKey,
		BaseURL:     cfg.AnthropicBaseURL,
		Model:       cfg.AnthropicModel,
		Temperature: cfg.AnthropicTemperature,
		Logger:      logger,
	})
}

func newRedditClient() (*reddit.Client, error) {
	return reddit.NewClient(reddit.Options{
		ClientID:     cfg.RedditClientID,
		ClientSecret: cfg.RedditClientSecret,
		Username:     cfg.RedditUsername,
		Password:     cfg.RedditPassword,
		UserAgent:    cfg.RedditUserAgent,
		Logger:       logger,
	})
}

func newTwitterClient() (*twitter.Client, error) {
	return twitter.NewClient(twitter.Options{
		BearerToken: cfg.TwitterBearerToken,
		Logger:      logger,
	})
}

// newRunner assembles a pipeline runner over local storage. The runner logs
// stage progress through the shared console logger, which doubles as the
// CLI's progress display.
func newRunner() (*pipeline.Runner, error) {
	files, err := newFileStore()
	if err != nil {
		return nil, err
	}
	studio, err := newStudio()
	if err != nil {
		return nil, err
	}
	voice, err := newVoice()
	if err != nil {
		return nil, err
	}
	return pipeline.NewRunner(pipeline.RunnerOptions{
		Store:         pipeline.NewStore(),
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
}

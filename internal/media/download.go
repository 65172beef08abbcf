// Package media fetches finished generation artifacts and assembles the
// final narrated cut.
package media

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"

	"reelforge/internal/domain"
	"reelforge/internal/storage"
)

const copyBufferSize = 32 * 1024

// Conventional artifact keys under the storage root.
func VideoKey(taskID string) string {
	return "generated_videos/runway_video_" + taskID + ".mp4"
}

func FinalKey(taskID string) string {
	return "final_output/final_video_" + taskID + ".mp4"
}

func AudioKey(name string) string {
	if name == "" {
		name = "generated_audio"
	}
	return "generated_audio/" + name + ".mp3"
}

// Downloader streams result locators to local files.
type Downloader struct {
	httpClient *http.Client
	store      *storage.FileStore
	logger     zerolog.Logger
}

// DownloadResult describes a completed download.
type DownloadResult struct {
	Path  string
	Bytes int64
}

// NewDownloader builds a Downloader writing through store.
func NewDownloader(store *storage.FileStore, httpClient *http.Client, logger zerolog.Logger) *Downloader {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Minute}
	}
	return &Downloader{httpClient: httpClient, store: store, logger: logger}
}

// Download streams the artifact at url into the store at key. The body is
// copied through a fixed-size buffer, never held in memory whole. A non-2xx
// response fails hard before any file is created, and no retry is
// attempted; result locators are fresh and a failed fetch means the caller
// should surface the error, not hammer the CDN.
func (d *Downloader) Download(ctx context.Context, url, key string) (DownloadResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return DownloadResult{}, fmt.Errorf("media: build download request: %w", err)
	}
	resp, err := d.httpClient.Do(req)
	if err != nil {
		return DownloadResult{}, fmt.Errorf("media: download %s: %w: %w", url, domain.ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return DownloadResult{}, fmt.Errorf("media: download %s: status %d: %w", url, resp.StatusCode, domain.ErrTransport)
	}

	w, path, err := d.store.Create(key)
	if err != nil {
		return DownloadResult{}, err
	}
	written, err := io.CopyBuffer(w, resp.Body, make([]byte, copyBufferSize))
	if err != nil {
		w.Close()
		os.Remove(path)
		return DownloadResult{}, fmt.Errorf("media: stream %s: %w: %w", url, domain.ErrTransport, err)
	}
	if err := w.Close(); err != nil {
		return DownloadResult{}, fmt.Errorf("media: finalize %s: %w", path, err)
	}

	d.logger.Info().
		Str("url", url).
		Str("path", path).
		Int64("bytes", written).
		Msg("media: artifact downloaded")
	return DownloadResult{Path: path, Bytes: written}, nil
}

package media

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

// FFmpeg shells out to the system ffmpeg and ffprobe binaries for duration
// probing and audio/video muxing.
type FFmpeg struct {
	ffmpegPath  string
	ffprobePath string
	logger      zerolog.Logger
}

// NewFFmpeg builds an FFmpeg helper resolving binaries from PATH.
func NewFFmpeg(logger zerolog.Logger) *FFmpeg {
	return &FFmpeg{ffmpegPath: "ffmpeg", ffprobePath: "ffprobe", logger: logger}
}

// ClipSeconds snaps a narration length to the clip durations the video
// vendor renders. Narration longer than 7s gets the 10s clip, everything
// else the 5s one.
func ClipSeconds(audioSeconds float64) int {
	if math.Ceil(audioSeconds) > 7 {
		return 10
	}
	return 5
}

// ProbeDuration returns the container duration of the file in seconds.
func (f *FFmpeg) ProbeDuration(ctx context.Context, path string) (float64, error) {
	if _, err := exec.LookPath(f.ffprobePath); err != nil {
		return 0, fmt.Errorf("media: ffprobe not found in PATH: %w", err)
	}
	cmd := exec.CommandContext(ctx, f.ffprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "csv=p=0",
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return 0, fmt.Errorf("media: ffprobe %s: %w: %s", path, err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return 0, fmt.Errorf("media: ffprobe %s: %w", path, err)
	}
	return parseProbeDuration(string(out))
}

func parseProbeDuration(out string) (float64, error) {
	trimmed := strings.TrimSpace(out)
	if trimmed == "" {
		return 0, fmt.Errorf("media: ffprobe reported no duration")
	}
	seconds, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return 0, fmt.Errorf("media: parse duration %q: %w", trimmed, err)
	}
	return seconds, nil
}

// Mux merges the video and audio tracks into outPath, re-encoding to
// H.264/AAC and stopping at the shorter stream so narration and clip stay
// aligned.
func (f *FFmpeg) Mux(ctx context.Context, videoPath, audioPath, outPath string) error {
	if _, err := exec.LookPath(f.ffmpegPath); err != nil {
		return fmt.Errorf("media: ffmpeg not found in PATH: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("media: ensure output directory: %w", err)
	}
	cmd := exec.CommandContext(ctx, f.ffmpegPath, muxArgs(videoPath, audioPath, outPath)...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("media: ffmpeg mux: %w: %s", err, strings.TrimSpace(string(out)))
	}
	f.logger.Info().
		Str("video", videoPath).
		Str("audio", audioPath).
		Str("output", outPath).
		Msg("media: final video muxed")
	return nil
}

func muxArgs(videoPath, audioPath, outPath string) []string {
	return []string{
		"-y",
		"-i", videoPath,
		"-i", audioPath,
		"-map", "0:v:0",
		"-map", "1:a:0",
		"-c:v", "libx264",
		"-c:a", "aac",
		"-shortest",
		outPath,
	}
}

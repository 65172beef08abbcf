package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"reelforge/internal/providers/stability"
)

type imageGenerateRequest struct {
	Prompt         string `json:"prompt"`
	NegativePrompt string `json:"negative_prompt"`
	AspectRatio    string `json:"aspect_ratio"`
	Seed           int    `json:"seed"`
	OutputFormat   string `json:"output_format"`
	StylePreset    string `json:"style_preset"`
}

// ImagesGenerate runs one synchronous generation and responds with the image
// bytes. The image is also written to storage; the key comes back in the
// X-Storage-Key header.
func (a *App) ImagesGenerate(w http.ResponseWriter, r *http.Request) {
	var req imageGenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "prompt is required")
		return
	}

	result, err := a.Images.Generate(r.Context(), stability.GenerateRequest{
		Prompt:         req.Prompt,
		NegativePrompt: req.NegativePrompt,
		AspectRatio:    req.AspectRatio,
		Seed:           req.Seed,
		OutputFormat:   req.OutputFormat,
		StylePreset:    req.StylePreset,
	})
	if err != nil {
		a.failure(w, err)
		return
	}

	key := "generated_images/" + result.FileName()
	if _, err := a.Files.Write(r.Context(), key, result.Data); err != nil {
		a.Logger.Warn().Err(err).Str("key", key).Msg("http: image not persisted")
	} else {
		w.Header().Set("X-Storage-Key", key)
	}

	w.Header().Set("Content-Type", "image/"+result.Format)
	w.Header().Set("X-Seed", result.Seed)
	if result.FinishReason != "" {
		w.Header().Set("X-Finish-Reason", result.FinishReason)
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result.Data)
}

package tasks

import (
	"context"
	"fmt"
	"math/rand"
	"taskstream/internal/domain"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ImageModel turns a text prompt into a URL of a generated image.
type ImageModel interface {
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)
}

type GenerateOptions struct {
	Guidance    float64
	Steps       int
	AspectRatio string
	Seed        int64
}

// BlobStore persists a finished asset and returns its public URL.
type BlobStore interface {
	Put(ctx context.Context, name, contentType string, data []byte) (string, error)
}

// ImageTask generates an image from a prompt, optionally composites a logo
// onto it, and stores the result as a public asset. The model, store, fetch
// and compositing steps are injected; compositing defaults to a no-op since
// it is pure deployment-specific pixel work.
type ImageTask struct {
	Model   ImageModel
	Store   BlobStore
	LogoURL string
	Fetch   func(ctx context.Context, url string) ([]byte, error)
	Overlay func(base, logo []byte) ([]byte, error)
}

// Run is the task body for generate_image_with_logo.
//
// Params: prompt (required), user_id (owner reference), guidance (default 4.0),
// num_inference_steps (default 50).
//
// Failures are caught here and surfaced as a task_error event plus a
// {status: failed, error} result value, so the status endpoint stays
// normalized; the invocation itself still completes.
func (t *ImageTask) Run(ctx context.Context, stream *Streamer, params map[string]any) (any, error) {
	result, err := t.run(ctx, stream, params)
	if err != nil {
		msg := fmt.Sprintf("Task failed with error: %s", err)
		log.Ctx(ctx).Error().Err(err).Str("task_id", stream.TaskID()).Msg("image generation failed")
		stream.Emit(ctx, msg, domain.EventTaskError, nil)
		return map[string]any{"status": "failed", "error": err.Error()}, nil
	}
	return result, nil
}

func (t *ImageTask) run(ctx context.Context, stream *Streamer, params map[string]any) (map[string]any, error) {
	prompt, _ := params["prompt"].(string)
	if prompt == "" {
		return nil, fmt.Errorf("missing required parameter: prompt")
	}

	stream.Emit(ctx, "Starting image generation task", domain.EventTaskStart, nil)

	opts := GenerateOptions{
		Guidance:    floatParam(params, "guidance", 4.0),
		Steps:       intParam(params, "num_inference_steps", 50),
		AspectRatio: "1:1",
		Seed:        rand.Int63n(1_000_000),
	}

	totalStages := 4

	done := stream.Stage(ctx, "Generating image", 1, totalStages)
	imageURL, err := t.Model.Generate(ctx, prompt, opts)
	done()
	if err != nil {
		return nil, fmt.Errorf("generate image: %w", err)
	}

	done = stream.Stage(ctx, "Downloading generated image", 2, totalStages)
	image, err := t.Fetch(ctx, imageURL)
	done()
	if err != nil {
		return nil, fmt.Errorf("download generated image: %w", err)
	}

	done = stream.Stage(ctx, "Overlaying logo", 3, totalStages)
	image, err = t.overlayLogo(ctx, image)
	done()
	if err != nil {
		return nil, fmt.Errorf("overlay logo: %w", err)
	}

	done = stream.Stage(ctx, "Uploading asset", 4, totalStages)
	filename := fmt.Sprintf("generated_%s.png", uuid.NewString())
	publicURL, err := t.Store.Put(ctx, filename, "image/png", image)
	done()
	if err != nil {
		return nil, fmt.Errorf("upload asset: %w", err)
	}

	result := map[string]any{
		"status":     "completed",
		"public_url": publicURL,
		"filename":   filename,
		"message":    "Image generated and saved successfully",
		"meta": map[string]any{
			"prompt":              prompt,
			"guidance":            opts.Guidance,
			"num_inference_steps": opts.Steps,
			"aspect_ratio":        opts.AspectRatio,
			"logo_overlay":        t.LogoURL != "",
			"generated_at":        time.Now().UTC().Format(time.RFC3339),
		},
	}
	if owner, ok := params["user_id"]; ok {
		result["user_id"] = owner
	}

	// Final result rides on the terminal event so live subscribers get it
	// without a follow-up status poll.
	stream.Emit(ctx, "Image generation completed successfully!", domain.EventTaskEnd, map[string]any{"data": result})

	return result, nil
}

func (t *ImageTask) overlayLogo(ctx context.Context, base []byte) ([]byte, error) {
	if t.LogoURL == "" || t.Overlay == nil {
		return base, nil
	}
	logo, err := t.Fetch(ctx, t.LogoURL)
	if err != nil {
		return nil, fmt.Errorf("download logo: %w", err)
	}
	return t.Overlay(base, logo)
}

func floatParam(params map[string]any, key string, def float64) float64 {
	switch v := params[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return def
}

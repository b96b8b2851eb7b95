package tasks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const replicateBaseURL = "https://api.replicate.com/v1"

var _ ImageModel = (*ReplicateModel)(nil)

// ReplicateModel runs a hosted text-to-image model through Replicate's
// blocking prediction API.
type ReplicateModel struct {
	Token string
	Model string
	HTTP  *http.Client
}

func NewReplicateModel(token, model string) *ReplicateModel {
	return &ReplicateModel{
		Token: token,
		Model: model,
		HTTP:  &http.Client{Timeout: 5 * time.Minute},
	}
}

func (m *ReplicateModel) Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error) {
	if m.Token == "" {
		return "", fmt.Errorf("replicate: no API token configured")
	}

	body, err := json.Marshal(map[string]any{
		"input": map[string]any{
			"prompt":              prompt,
			"guidance":            opts.Guidance,
			"num_inference_steps": opts.Steps,
			"aspect_ratio":        opts.AspectRatio,
			"seed":                opts.Seed,
		},
	})
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/models/%s/predictions", replicateBaseURL, m.Model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+m.Token)
	req.Header.Set("Content-Type", "application/json")
	// Hold the request open until the prediction finishes instead of polling.
	req.Header.Set("Prefer", "wait")

	resp, err := m.HTTP.Do(req)
	if err != nil {
		return "", fmt.Errorf("replicate request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("replicate: %s: %s", resp.Status, raw)
	}

	var pred struct {
		Output json.RawMessage `json:"output"`
		Error  string          `json:"error"`
	}
	if err := json.Unmarshal(raw, &pred); err != nil {
		return "", fmt.Errorf("replicate: decode response: %w", err)
	}
	if pred.Error != "" {
		return "", fmt.Errorf("replicate: prediction failed: %s", pred.Error)
	}

	// Output is a URL string or a list of URL strings depending on the model.
	var single string
	if err := json.Unmarshal(pred.Output, &single); err == nil && single != "" {
		return single, nil
	}
	var many []string
	if err := json.Unmarshal(pred.Output, &many); err == nil && len(many) > 0 {
		return many[0], nil
	}
	return "", fmt.Errorf("replicate: unexpected output format: %s", pred.Output)
}

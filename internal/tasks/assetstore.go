package tasks

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

var _ BlobStore = (*FSStore)(nil)

// FSStore writes assets to a local directory served at BaseURL. Object-store
// backends (GCS, S3) slot in behind the same BlobStore interface per
// deployment.
type FSStore struct {
	Dir     string
	BaseURL string
}

func (s *FSStore) Put(_ context.Context, name, _ string, data []byte) (string, error) {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(filepath.Join(s.Dir, name), data, 0o644); err != nil {
		return "", err
	}
	return strings.TrimRight(s.BaseURL, "/") + "/" + name, nil
}

var fetchClient = &http.Client{Timeout: 2 * time.Minute}

// FetchURL downloads a URL's body, bounded by the request context.
func FetchURL(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := fetchClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch %s: %s", url, resp.Status)
	}
	return io.ReadAll(resp.Body)
}

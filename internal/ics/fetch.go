package ics

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	appLog "bellsched/internal/log"
)

const defaultFetchTimeout = 15 * time.Second

// cacheEntry holds HTTP cache metadata for a single ICS URL.
type cacheEntry struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Fetcher retrieves the school calendar feed. When cacheDir is set it
// sends conditional requests (ETag / Last-Modified) and serves the cached
// body on 304. Any other non-2xx status is a FetchError; there is no
// fallback to stale data.
type Fetcher struct {
	client   *http.Client
	cacheDir string
}

// NewFetcher creates a Fetcher. A zero timeout uses 15s; an empty
// cacheDir disables conditional requests.
func NewFetcher(timeout time.Duration, cacheDir string) *Fetcher {
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	return &Fetcher{
		client:   &http.Client{Timeout: timeout},
		cacheDir: cacheDir,
	}
}

// Fetch returns the raw ICS body of url.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	redacted := redactURL(url)
	if url == "" {
		return nil, &FetchError{URL: redacted, Err: errors.New("calendar URL is empty")}
	}

	var (
		cachePath  string
		meta       cacheEntry
		cachedBody []byte
	)
	if f.cacheDir != "" {
		cachePath = f.cachePathForURL(url)
		if err := os.MkdirAll(cachePath, 0o700); err != nil {
			appLog.Error("ics cache dir unavailable", err, "path", cachePath)
			cachePath = ""
		} else {
			meta, _ = f.loadCacheMeta(cachePath)
			cachedBody, _ = f.loadCacheBody(cachePath)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{URL: redacted, Err: err}
	}
	if len(cachedBody) > 0 {
		if meta.ETag != "" {
			req.Header.Set("If-None-Match", meta.ETag)
		}
		if meta.LastModified != "" {
			req.Header.Set("If-Modified-Since", meta.LastModified)
		}
	}

	appLog.Info("ics fetch start", "url", redacted)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: redacted, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotModified && len(cachedBody) > 0:
		appLog.Info("ics fetch not modified; using cache", "url", redacted)
		return cachedBody, nil

	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, &FetchError{URL: redacted, Err: err}
		}
		if cachePath != "" {
			newMeta := cacheEntry{
				URL:          url,
				ETag:         resp.Header.Get("ETag"),
				LastModified: resp.Header.Get("Last-Modified"),
			}
			if err := f.saveCache(cachePath, newMeta, body); err != nil {
				// Log but still return the freshly fetched body.
				appLog.Error("ics cache save failed", err, "url", redacted)
			}
		}
		appLog.Info("ics fetch success", "url", redacted, "status", resp.StatusCode, "bytes", len(body))
		return body, nil

	default:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &FetchError{URL: redacted, StatusCode: resp.StatusCode, Err: errors.New(resp.Status)}
	}
}

func (f *Fetcher) cachePathForURL(url string) string {
	sum := sha256.Sum256([]byte(url))
	// Use first 16 hex chars as directory name.
	return filepath.Join(f.cacheDir, hex.EncodeToString(sum[:8]))
}

func (f *Fetcher) loadCacheMeta(cachePath string) (cacheEntry, error) {
	var meta cacheEntry
	data, err := os.ReadFile(filepath.Join(cachePath, "meta.json"))
	if err != nil {
		return meta, err
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return cacheEntry{}, err
	}
	return meta, nil
}

func (f *Fetcher) loadCacheBody(cachePath string) ([]byte, error) {
	return os.ReadFile(filepath.Join(cachePath, "body.ics"))
}

func (f *Fetcher) saveCache(cachePath string, meta cacheEntry, body []byte) error {
	// Write body first so meta never points at missing body.
	if err := os.WriteFile(filepath.Join(cachePath, "body.ics"), body, 0o600); err != nil {
		return err
	}

	meta.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(&meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(cachePath, "meta.json"), data, 0o600)
}

// redactURL hides the path and query of a calendar URL for logging; the
// feed URL usually embeds a private token.
//
//	https://calendar.google.com/calendar/ical/x/private-abc/basic.ics
//	-> https://calendar.google.com/...(redacted)
func redactURL(u string) string {
	const redactedSuffix = "/...(redacted)"

	i := -1
	for idx := 0; idx+2 < len(u); idx++ {
		if u[idx:idx+3] == "://" {
			i = idx + 3
			break
		}
	}
	if i == -1 {
		return "ics://...(redacted)"
	}

	j := i
	for j < len(u) && u[j] != '/' {
		j++
	}
	return u[:j] + redactedSuffix
}

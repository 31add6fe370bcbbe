package holiday

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	appLog "visitcal/internal/log"
	"visitcal/internal/metric"
	"visitcal/internal/model"
)

// FetchResult contains the outcome of one holiday feed fetch.
type FetchResult struct {
	Holidays  model.Holidays
	FromCache bool // true if the cached body was reused (304 or fallback)
}

// cacheEntry holds HTTP cache metadata for the feed URL.
type cacheEntry struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Fetcher downloads the holiday feed with HTTP caching (ETag /
// Last-Modified) and a disk-backed copy of the last good body.
type Fetcher struct {
	client   *http.Client
	url      string
	cacheDir string
}

// NewFetcher creates a Fetcher for url. cacheDir is the base directory for the
// per-URL cache; if empty a relative ./var/holiday-cache is used.
func NewFetcher(url, cacheDir string) *Fetcher {
	if cacheDir == "" {
		cacheDir = "./var/holiday-cache"
	}
	return &Fetcher{
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
		url:      url,
		cacheDir: cacheDir,
	}
}

// Fetch downloads and decodes the feed. On a network error, a non-OK status
// or an undecodable body it falls back to the cached body when one exists.
func (f *Fetcher) Fetch(ctx context.Context) (FetchResult, error) {
	if f.url == "" {
		return FetchResult{}, errors.New("holiday feed URL is empty")
	}

	cachePath := f.cachePath()
	if err := os.MkdirAll(cachePath, 0o700); err != nil {
		return FetchResult{}, err
	}

	meta, _ := f.loadCacheMeta(cachePath)
	cachedBody, _ := f.loadCacheBody(cachePath)

	fallback := func(reason error) (FetchResult, error) {
		if len(cachedBody) == 0 {
			metric.HolidayFetches.WithLabelValues(metric.FetchError).Inc()
			return FetchResult{}, reason
		}
		h, err := decode(cachedBody)
		if err != nil {
			metric.HolidayFetches.WithLabelValues(metric.FetchError).Inc()
			return FetchResult{}, fmt.Errorf("%w (cached body unusable: %v)", reason, err)
		}
		appLog.Error("holiday fetch failed, using cached body", reason, "url", f.url)
		metric.HolidayFetches.WithLabelValues(metric.FetchCacheFallback).Inc()
		return FetchResult{Holidays: h, FromCache: true}, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return FetchResult{}, err
	}
	req.Header.Set("Accept", "application/json")

	// Conditional headers only make sense if there is a body to reuse.
	if len(cachedBody) > 0 {
		if meta.ETag != "" {
			req.Header.Set("If-None-Match", meta.ETag)
		}
		if meta.LastModified != "" {
			req.Header.Set("If-Modified-Since", meta.LastModified)
		}
	}

	appLog.Debug("holiday fetch start", "url", f.url)

	resp, err := f.client.Do(req)
	if err != nil {
		return fallback(err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fallback(err)
		}
		h, err := decode(body)
		if err != nil {
			return fallback(err)
		}

		newMeta := cacheEntry{
			URL:          f.url,
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
		}
		if err := f.saveCache(cachePath, newMeta, body); err != nil {
			// Log but still return the freshly fetched holidays.
			appLog.Error("holiday cache save failed", err, "url", f.url)
		}

		appLog.Info("holiday fetch success", "url", f.url, "count", len(h))
		metric.HolidayFetches.WithLabelValues(metric.FetchFresh).Inc()
		return FetchResult{Holidays: h}, nil

	case http.StatusNotModified:
		if len(cachedBody) == 0 {
			metric.HolidayFetches.WithLabelValues(metric.FetchError).Inc()
			return FetchResult{}, errors.New("received 304 Not Modified but no cached body available")
		}
		h, err := decode(cachedBody)
		if err != nil {
			metric.HolidayFetches.WithLabelValues(metric.FetchError).Inc()
			return FetchResult{}, err
		}
		appLog.Debug("holiday feed not modified; using cache", "url", f.url)
		metric.HolidayFetches.WithLabelValues(metric.FetchNotModified).Inc()
		return FetchResult{Holidays: h, FromCache: true}, nil

	default:
		return fallback(fmt.Errorf("holiday feed: %s", resp.Status))
	}
}

// decode parses the feed body. Keys that are not "YYYY-MM-DD" dates are
// dropped so that lookups by model.Date.String() stay exact.
func decode(body []byte) (model.Holidays, error) {
	var raw map[string]string
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode holiday feed: %w", err)
	}
	out := make(model.Holidays, len(raw))
	for k, name := range raw {
		d, err := model.ParseDate(k)
		if err != nil {
			appLog.Debug("holiday feed: skipping key", "key", k)
			continue
		}
		out[d.String()] = name
	}
	return out, nil
}

func (f *Fetcher) cachePath() string {
	sum := sha256.Sum256([]byte(f.url))
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
	return os.ReadFile(filepath.Join(cachePath, "body.json"))
}

func (f *Fetcher) saveCache(cachePath string, meta cacheEntry, body []byte) error {
	// Write body first so meta never points at a missing body.
	if err := os.WriteFile(filepath.Join(cachePath, "body.json"), body, 0o600); err != nil {
		return err
	}

	meta.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(&meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(cachePath, "meta.json"), data, 0o600)
}

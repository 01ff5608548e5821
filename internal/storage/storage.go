package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/bobarin/sceneforge/internal/apperr"
)

const (
	// StaticPrefix is the URL path under which generated assets are served.
	StaticPrefix = "/static"

	downloadTimeout = 120 * time.Second

	// Retry configuration
	maxRetries     = 4
	baseRetryDelay = 1 * time.Second
	maxRetryDelay  = 30 * time.Second

	maxDownloadBytes = 64 << 20
)

// Kind is an asset category; each has its own directory under the root.
type Kind string

const (
	KindImage Kind = "images"
	KindAudio Kind = "audio"
	KindVideo Kind = "videos"
	KindFont  Kind = "fonts"
)

// Asset describes a stored file in every form callers need.
type Asset struct {
	FileName   string // image_<uuid>.webp
	LocalPath  string // static/images/image_<uuid>.webp
	StaticPath string // /static/images/image_<uuid>.webp
	URL        string // PUBLIC_BASE_URL + StaticPath
}

// Storage keeps generated media on the local filesystem under root.
type Storage struct {
	root          string
	publicBaseURL string
	retryBase     time.Duration
	client        *http.Client
}

// New creates the asset directories under root.
func New(root, publicBaseURL string) (*Storage, error) {
	for _, kind := range []Kind{KindImage, KindAudio, KindVideo, KindFont} {
		if err := os.MkdirAll(filepath.Join(root, string(kind)), 0755); err != nil {
			return nil, fmt.Errorf("failed to create %s dir: %w", kind, err)
		}
	}

	return &Storage{
		root:          root,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		retryBase:     baseRetryDelay,
		client: &http.Client{
			Timeout: downloadTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}, nil
}

// Root returns the static directory.
func (s *Storage) Root() string {
	return s.root
}

// Dir returns the directory holding assets of kind.
func (s *Storage) Dir(kind Kind) string {
	return filepath.Join(s.root, string(kind))
}

// AssetFor describes fileName stored under kind.
func (s *Storage) AssetFor(kind Kind, fileName string) Asset {
	staticPath := path.Join(StaticPrefix, string(kind), fileName)
	return Asset{
		FileName:   fileName,
		LocalPath:  filepath.Join(s.Dir(kind), fileName),
		StaticPath: staticPath,
		URL:        s.publicBaseURL + staticPath,
	}
}

// SaveImage writes image bytes under a unique name.
func (s *Storage) SaveImage(data []byte, ext string) (Asset, error) {
	if ext == "" {
		ext = "png"
	}
	name := fmt.Sprintf("image_%s.%s", uuid.New().String(), strings.TrimPrefix(ext, "."))
	return s.save(KindImage, name, data)
}

// SaveImageFromURL downloads an image and stores it under a unique name.
func (s *Storage) SaveImageFromURL(ctx context.Context, imageURL, ext string) (Asset, error) {
	data, err := s.Download(ctx, imageURL)
	if err != nil {
		return Asset{}, err
	}
	return s.SaveImage(data, ext)
}

// SaveAudio writes narration audio for sceneNumber under a unique name.
func (s *Storage) SaveAudio(sceneNumber string, data []byte) (Asset, error) {
	name := fmt.Sprintf("audio_scene%s_%s.mp3", sceneNumber, uuid.New().String())
	return s.save(KindAudio, name, data)
}

func (s *Storage) save(kind Kind, name string, data []byte) (Asset, error) {
	asset := s.AssetFor(kind, name)
	if err := os.WriteFile(asset.LocalPath, data, 0644); err != nil {
		return Asset{}, fmt.Errorf("failed to write %s: %w", asset.LocalPath, err)
	}

	log.Info().
		Str("component", "storage").
		Str("path", asset.LocalPath).
		Int("bytes", len(data)).
		Msg("asset saved")

	return asset, nil
}

// ResolveLocal maps a client reference to a file under the static root.
// References may be absolute URLs on this server, /static/... paths,
// static/... paths or foreign http(s) URLs; foreign files are downloaded
// into the directory for kind first.
func (s *Storage) ResolveLocal(ctx context.Context, ref string, kind Kind) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", apperr.Validation("empty %s reference", kind)
	}

	if s.publicBaseURL != "" && strings.HasPrefix(ref, s.publicBaseURL+"/") {
		ref = strings.TrimPrefix(ref, s.publicBaseURL)
	} else if u, err := url.Parse(ref); err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		return s.fetchRemote(ctx, ref, u, kind)
	}

	if i := strings.IndexAny(ref, "?#"); i >= 0 {
		ref = ref[:i]
	}

	rel := strings.TrimPrefix(ref, "/")
	rel = strings.TrimPrefix(rel, strings.TrimPrefix(StaticPrefix, "/")+"/")
	rel = filepath.Clean(filepath.FromSlash(rel))

	local := filepath.Join(s.root, rel)
	within, err := filepath.Rel(s.root, local)
	if err != nil || within == "." || within == ".." || strings.HasPrefix(within, ".."+string(filepath.Separator)) {
		return "", apperr.Validation("reference %q escapes the static directory", ref)
	}

	return local, nil
}

func (s *Storage) fetchRemote(ctx context.Context, ref string, u *url.URL, kind Kind) (string, error) {
	data, err := s.Download(ctx, ref)
	if err != nil {
		return "", err
	}

	ext := path.Ext(u.Path)
	if ext == "" || len(ext) > 6 {
		ext = defaultExt(kind)
	}
	name := fmt.Sprintf("remote_%s%s", uuid.New().String(), ext)

	asset, err := s.save(kind, name, data)
	if err != nil {
		return "", err
	}
	return asset.LocalPath, nil
}

// Download fetches a URL with retries and exponential backoff.
func (s *Storage) Download(ctx context.Context, rawURL string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			delay := retryDelay(s.retryBase, attempt)
			log.Warn().
				Str("component", "storage").
				Int("attempt", attempt).
				Dur("delay", delay).
				Str("url", truncate(rawURL, 120)).
				Msg("download retry")

			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("download cancelled: %w", ctx.Err())
			case <-time.After(delay):
			}
		}

		data, status, err := s.get(ctx, rawURL)
		if err == nil {
			return data, nil
		}
		lastErr = err

		if status == 0 && !isRetryableError(err) {
			break
		}
		if status != 0 && !isRetryableStatus(status) {
			break
		}
	}

	var svcErr *apperr.ExternalServiceError
	if errors.As(lastErr, &svcErr) {
		return nil, lastErr
	}
	return nil, &apperr.ExternalServiceError{Service: "download", Err: lastErr}
}

// get performs one attempt. status is 0 when no response was received.
func (s *Storage) get(ctx context.Context, rawURL string) ([]byte, int, error) {
	dlCtx, cancel := context.WithTimeout(ctx, downloadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(dlCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, resp.StatusCode, &apperr.ExternalServiceError{
			Service:    "download",
			StatusCode: resp.StatusCode,
			Body:       truncate(string(body), 200),
		}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDownloadBytes))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read download body: %w", err)
	}
	return data, resp.StatusCode, nil
}

func defaultExt(kind Kind) string {
	switch kind {
	case KindAudio:
		return ".mp3"
	case KindVideo:
		return ".mp4"
	default:
		return ".png"
	}
}

// retryDelay calculates exponential backoff with jitter: base * 2^(attempt-1) + random jitter
func retryDelay(base time.Duration, attempt int) time.Duration {
	delay := float64(base) * math.Pow(2, float64(attempt-1))
	if delay > float64(maxRetryDelay) {
		delay = float64(maxRetryDelay)
	}
	// Up to 25% jitter.
	jitter := delay * 0.25 * rand.Float64()
	return time.Duration(delay + jitter)
}

// isRetryableError checks if a network-level error is worth retrying
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "deadline exceeded") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "EOF") ||
		strings.Contains(errStr, "broken pipe")
}

// isRetryableStatus checks if an HTTP status code is worth retrying
func isRetryableStatus(status int) bool {
	return status == http.StatusTooManyRequests || // 429
		status == http.StatusRequestTimeout || // 408
		status == http.StatusBadGateway || // 502
		status == http.StatusServiceUnavailable || // 503
		status == http.StatusGatewayTimeout // 504
}

// truncate limits a string to maxLen characters for log output
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

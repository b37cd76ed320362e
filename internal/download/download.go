// Package download fetches resolved media URLs to local files, guarding
// against duplicate concurrent downloads of the same URL.
package download

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.klb.dev/cliphook/internal/record"
	"go.klb.dev/cliphook/internal/settings"
	"go.klb.dev/cliphook/internal/webhook"
)

// Status reports how a download call ended.
type Status string

const (
	// StatusDownloaded means the file was fetched and written.
	StatusDownloaded Status = "downloaded"
	// StatusSkipped means nothing was fetched: auto-download off, no
	// download directory, or the URL is already being downloaded.
	StatusSkipped Status = "skipped"
)

// Result describes a finished download call.
type Result struct {
	Status   Status
	Path     string
	Size     int64
	Duration time.Duration
}

// Notifier fires webhook triggers after a completed download.
type Notifier interface {
	ExecuteTrigger(ctx context.Context, trigger webhook.Trigger, vars map[string]any)
}

// Manager downloads media files. At most one download per URL is in flight
// at any time; a second request for the same URL is skipped, not queued.
type Manager struct {
	mu        sync.Mutex
	inFlight  map[string]struct{}
	completed int
	seq       int

	client   *http.Client
	settings func() settings.Settings
	logs     record.Sink
	hooks    Notifier
}

// NewManager returns a manager. current supplies the settings snapshot per
// call; hooks may be nil to disable completion webhooks.
func NewManager(current func() settings.Settings, logs record.Sink, hooks Notifier) *Manager {
	return &Manager{
		inFlight: make(map[string]struct{}),
		client:   &http.Client{},
		settings: current,
		logs:     logs,
		hooks:    hooks,
	}
}

// Completed returns the number of successful downloads this session.
func (m *Manager) Completed() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.completed
}

// Download fetches mediaURL into the configured download directory.
// Skips are not errors; any real failure is logged and returned, and the
// in-flight guard is released on every path.
func (m *Manager) Download(ctx context.Context, mediaURL, originalText, sourceLink string) (Result, error) {
	cfg := m.settings()
	if !cfg.AutoDownload {
		slog.Debug("auto-download disabled, skipping", "url", mediaURL)
		return Result{Status: StatusSkipped}, nil
	}
	if cfg.DownloadPath == "" {
		slog.Debug("no download directory configured, skipping", "url", mediaURL)
		return Result{Status: StatusSkipped}, nil
	}

	m.mu.Lock()
	if _, busy := m.inFlight[mediaURL]; busy {
		m.mu.Unlock()
		slog.Debug("download already in flight, skipping", "url", mediaURL)
		return Result{Status: StatusSkipped}, nil
	}
	m.inFlight[mediaURL] = struct{}{}
	if cfg.NamingRule == RuleSequential {
		m.seq++
	}
	seq := m.seq
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		delete(m.inFlight, mediaURL)
		m.mu.Unlock()
	}()

	start := time.Now()
	name := FileName(cfg.NamingRule, originalText, sourceLink, seq)
	path := filepath.Join(cfg.DownloadPath, name)

	size, err := m.fetch(ctx, mediaURL, path)
	if err != nil {
		slog.Error("download failed", "url", mediaURL, "err", err)
		if m.logs != nil {
			m.logs.Append(record.LogEntry{
				Kind:         record.KindFailed,
				OriginalText: originalText,
				SourceLink:   sourceLink,
				MediaURL:     mediaURL,
				Error:        fmt.Sprintf("download failed: %v", err),
			})
		}
		return Result{}, err
	}

	duration := time.Since(start)
	m.mu.Lock()
	m.completed++
	m.mu.Unlock()

	slog.Info("download complete", "path", path, "bytes", size, "duration", duration)
	if m.logs != nil {
		m.logs.Append(record.LogEntry{
			Kind:         record.KindDownloaded,
			OriginalText: originalText,
			SourceLink:   sourceLink,
			MediaURL:     mediaURL,
			DownloadPath: path,
		})
	}

	if m.hooks != nil {
		now := time.Now()
		m.hooks.ExecuteTrigger(ctx, webhook.TriggerDownloadComplete, map[string]any{
			"filePath":         path,
			"fileName":         filepath.Base(path),
			"fileSize":         size,
			"originalText":     originalText,
			"shareLink":        sourceLink,
			"videoUrl":         mediaURL,
			"timestamp":        now.UnixMilli(),
			"dateTime":         now.Format(time.RFC3339),
			"downloadDuration": duration.Milliseconds(),
		})
	}

	return Result{Status: StatusDownloaded, Path: path, Size: size, Duration: duration}, nil
}

// fetch downloads url into path. The write is atomic: bytes land in a
// temporary file in the same directory which is renamed over path only
// when complete.
func (m *Manager) fetch(ctx context.Context, url, path string) (int64, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("create directory: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	tmp, err := os.CreateTemp(dir, ".cliphook-*")
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	size, err := io.Copy(tmp, resp.Body)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp.Name())
		return 0, fmt.Errorf("write: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return 0, fmt.Errorf("rename: %w", err)
	}
	return size, nil
}

// Package app wires the clipboard pipeline together: history stores, link
// extraction, resolution, auto-download scheduling, and webhook triggers.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.klb.dev/cliphook/internal/download"
	"go.klb.dev/cliphook/internal/extract"
	"go.klb.dev/cliphook/internal/history"
	"go.klb.dev/cliphook/internal/record"
	"go.klb.dev/cliphook/internal/resolve"
	"go.klb.dev/cliphook/internal/settings"
	"go.klb.dev/cliphook/internal/webhook"
)

const (
	clipHistorySize = 50
	linkHistorySize = 100

	// settleDelay spaces resolution completion from the download start so a
	// burst of pasted links does not open all fetches at once.
	settleDelay = time.Second
)

// Resolver turns a short link into a direct media URL.
type Resolver interface {
	Resolve(ctx context.Context, link string) (resolve.Result, error)
}

// Downloader fetches a resolved media URL to disk.
type Downloader interface {
	Download(ctx context.Context, mediaURL, originalText, sourceLink string) (download.Result, error)
	Completed() int
}

// Dispatcher fires webhook triggers.
type Dispatcher interface {
	ExecuteTrigger(ctx context.Context, trigger webhook.Trigger, vars map[string]any)
}

// Stats are the session counters shown on the status surface.
type Stats struct {
	Total      int `json:"total"`
	Resolved   int `json:"resolved"`
	Failed     int `json:"failed"`
	Downloaded int `json:"downloaded"`
	Webhook    int `json:"webhook"`
}

// App is the orchestrator. It owns the three bounded histories and the
// settings snapshot, and implements record.Sink for the pipeline stages.
type App struct {
	mu    sync.Mutex
	clips *history.Store[record.Clip]
	links *history.Store[*record.Link]
	logs  *history.Store[record.LogEntry]
	cfg   settings.Settings

	store     *settings.Store
	resolver  Resolver
	downloads Downloader
	hooks     Dispatcher

	startedAt time.Time
	settle    time.Duration
	wg        sync.WaitGroup
}

// New builds an orchestrator around its collaborators. downloads and hooks
// may be nil; the matching pipeline stages are then skipped.
func New(cfg settings.Settings, store *settings.Store, resolver Resolver) *App {
	return &App{
		clips:     history.New(clipHistorySize, func(c record.Clip) string { return c.Content }),
		links:     history.New(linkHistorySize, func(l *record.Link) string { return l.Link }),
		logs:      history.New[record.LogEntry](cfg.MaxLogs, nil),
		cfg:       cfg,
		store:     store,
		resolver:  resolver,
		startedAt: time.Now(),
		settle:    settleDelay,
	}
}

// SetDownloader installs the download stage.
func (a *App) SetDownloader(d Downloader) { a.downloads = d }

// SetDispatcher installs the webhook stage.
func (a *App) SetDispatcher(d Dispatcher) { a.hooks = d }

// Append implements record.Sink. Missing ids and timestamps are filled in.
func (a *App) Append(e record.LogEntry) {
	if e.ID == "" {
		e.ID = record.NewID()
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now()
	}
	a.logs.InsertFront(e)
}

// HandleClipboard processes one observed clipboard text: records it, extracts
// short links, and kicks off a concurrent resolution per new link.
func (a *App) HandleClipboard(ctx context.Context, text string) {
	a.clips.InsertFront(record.Clip{
		ID:         record.NewID(),
		Content:    text,
		ObservedAt: time.Now(),
	})

	for _, link := range extract.Links(text) {
		rec := &record.Link{
			ID:              record.NewID(),
			Link:            link,
			OriginalContent: text,
			ObservedAt:      time.Now(),
			Status:          record.StatusPending,
		}
		if !a.links.InsertFront(rec) {
			slog.Debug("link already tracked", "link", link)
			continue
		}
		slog.Info("short link detected", "link", link)
		a.wg.Add(1)
		go a.resolveLink(ctx, rec)
	}
}

// resolveLink performs the single resolution attempt for one pending record
// and routes the outcome to logs, webhooks, and the download scheduler.
func (a *App) resolveLink(ctx context.Context, rec *record.Link) {
	defer a.wg.Done()

	res, err := a.resolver.Resolve(ctx, rec.Link)
	now := time.Now()
	if err != nil {
		a.mu.Lock()
		rec.Status = record.StatusFailed
		rec.Error = err.Error()
		a.mu.Unlock()

		slog.Warn("link resolution failed", "link", rec.Link, "err", err)
		a.Append(record.LogEntry{
			Kind:         record.KindFailed,
			OriginalText: rec.OriginalContent,
			SourceLink:   rec.Link,
			Error:        err.Error(),
		})
		a.fire(ctx, webhook.TriggerResolveFailed, map[string]any{
			"originalText": rec.OriginalContent,
			"shareLink":    rec.Link,
			"error":        err.Error(),
			"timestamp":    now.UnixMilli(),
			"dateTime":     now.Format(time.RFC3339),
		})
		return
	}

	a.mu.Lock()
	rec.Status = record.StatusResolved
	rec.MediaURL = res.MediaURL
	rec.Title = res.Title
	rec.Author = res.Author
	a.mu.Unlock()

	slog.Info("link resolved", "link", rec.Link, "media_url", res.MediaURL)
	a.Append(record.LogEntry{
		Kind:         record.KindResolved,
		OriginalText: rec.OriginalContent,
		SourceLink:   rec.Link,
		MediaURL:     res.MediaURL,
	})
	a.fire(ctx, webhook.TriggerResolveSuccess, map[string]any{
		"originalText": rec.OriginalContent,
		"shareLink":    rec.Link,
		"videoUrl":     res.MediaURL,
		"title":        res.Title,
		"author":       res.Author,
		"timestamp":    now.UnixMilli(),
		"dateTime":     now.Format(time.RFC3339),
	})

	if a.downloads == nil || !a.Settings().AutoDownload {
		return
	}
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		select {
		case <-ctx.Done():
			return
		case <-time.After(a.settle):
		}
		if _, err := a.downloads.Download(ctx, res.MediaURL, rec.OriginalContent, rec.Link); err != nil {
			slog.Warn("auto-download failed", "url", res.MediaURL, "err", err)
		}
	}()
}

func (a *App) fire(ctx context.Context, trigger webhook.Trigger, vars map[string]any) {
	if a.hooks == nil {
		return
	}
	a.hooks.ExecuteTrigger(ctx, trigger, vars)
}

// Wait blocks until all in-flight resolutions and scheduled downloads have
// settled.
func (a *App) Wait() { a.wg.Wait() }

// Settings returns the current settings snapshot.
func (a *App) Settings() settings.Settings {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cfg
}

// UpdateSettings replaces the settings snapshot, persists it, and resizes
// the log history to the new cap. The snapshot is normalized first so the
// in-memory copy matches what the store writes.
func (a *App) UpdateSettings(cfg settings.Settings) error {
	cfg = settings.Normalize(cfg)
	if a.store != nil {
		if err := a.store.Save(cfg); err != nil {
			return fmt.Errorf("save settings: %w", err)
		}
	}
	a.mu.Lock()
	a.cfg = cfg
	a.mu.Unlock()
	a.logs.SetCapacity(cfg.MaxLogs)
	slog.Info("settings updated", "auto_download", cfg.AutoDownload, "naming_rule", cfg.NamingRule)
	return nil
}

// Clips returns the clipboard history, most recent first.
func (a *App) Clips() []record.Clip { return a.clips.Items() }

// Links returns value copies of the link records, most recent first.
func (a *App) Links() []record.Link {
	a.mu.Lock()
	defer a.mu.Unlock()
	items := a.links.Items()
	out := make([]record.Link, len(items))
	for i, l := range items {
		out[i] = *l
	}
	return out
}

// Logs returns the activity log, most recent first.
func (a *App) Logs() []record.LogEntry { return a.logs.Items() }

// LogStats tallies log entries by kind.
func (a *App) LogStats() Stats {
	var s Stats
	for _, e := range a.logs.Items() {
		s.Total++
		switch e.Kind {
		case record.KindResolved:
			s.Resolved++
		case record.KindFailed:
			s.Failed++
		case record.KindDownloaded:
			s.Downloaded++
		case record.KindWebhook:
			s.Webhook++
		}
	}
	return s
}

// Downloaded reports the number of completed downloads this session.
func (a *App) Downloaded() int {
	if a.downloads == nil {
		return 0
	}
	return a.downloads.Completed()
}

// StartedAt reports when the orchestrator was constructed.
func (a *App) StartedAt() time.Time { return a.startedAt }

// ClearClips empties the clipboard history.
func (a *App) ClearClips() { a.clips.Clear() }

// ClearLinks empties the link history.
func (a *App) ClearLinks() { a.links.Clear() }

// ClearLogs empties the activity log.
func (a *App) ClearLogs() { a.logs.Clear() }

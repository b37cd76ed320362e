package webhook

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"go.klb.dev/cliphook/internal/record"
)

// DefaultHTTPTimeout bounds one HTTP webhook attempt unless overridden.
const DefaultHTTPTimeout = 30 * time.Second

// Engine owns the webhook definition list and executes matching definitions
// when a trigger fires. A definition has at most one live execution at a
// time; a trigger arriving while one is running is skipped, not queued.
// The test lane (Test) is exempt from that guard.
type Engine struct {
	mu        sync.Mutex
	defs      []*Definition
	executing map[string]struct{}

	store  Persister
	logs   record.Sink
	client *http.Client

	// sleep is swapped out in tests to avoid real retry delays.
	sleep func(context.Context, time.Duration)
}

// NewEngine returns an engine over defs. store may be nil when persistence
// is handled elsewhere (tests); logs receives one entry per terminal
// execution outcome.
func NewEngine(defs []*Definition, store Persister, logs record.Sink, httpTimeout time.Duration) *Engine {
	if httpTimeout <= 0 {
		httpTimeout = DefaultHTTPTimeout
	}
	return &Engine{
		defs:      defs,
		executing: make(map[string]struct{}),
		store:     store,
		logs:      logs,
		client:    &http.Client{Timeout: httpTimeout},
		sleep:     sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// Definitions returns a snapshot of all definitions.
func (e *Engine) Definitions() []*Definition {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*Definition, len(e.defs))
	for i, d := range e.defs {
		out[i] = d.clone()
	}
	return out
}

// Add registers a new definition, filling defaults, and persists the list.
// A definition added without an explicit Enabled value starts enabled.
func (e *Engine) Add(d *Definition) (*Definition, error) {
	if d.ID == "" {
		d.ID = record.NewID()
	}
	if d.Enabled == nil {
		enabled := true
		d.Enabled = &enabled
	}
	if d.Name == "" {
		d.Name = "unnamed"
	}
	if d.Kind == "" {
		d.Kind = KindHTTP
	}
	if d.Trigger == "" {
		d.Trigger = TriggerDownloadComplete
	}
	if d.Retry.MaxAttempts == 0 {
		d.Retry.MaxAttempts = 3
	}
	if d.Retry.DelayMS == 0 {
		d.Retry.DelayMS = 1000
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now()
	}

	e.mu.Lock()
	e.defs = append(e.defs, d)
	snapshot := append([]*Definition(nil), e.defs...)
	e.mu.Unlock()

	return d.clone(), e.persist(snapshot)
}

// Put replaces the definition with the same ID and persists the list.
func (e *Engine) Put(d *Definition) error {
	e.mu.Lock()
	found := false
	for i, existing := range e.defs {
		if existing.ID == d.ID {
			e.defs[i] = d
			found = true
			break
		}
	}
	snapshot := append([]*Definition(nil), e.defs...)
	e.mu.Unlock()

	if !found {
		return fmt.Errorf("webhook %s not found", d.ID)
	}
	return e.persist(snapshot)
}

// Remove deletes the definition with the given ID and persists the list.
func (e *Engine) Remove(id string) error {
	e.mu.Lock()
	found := false
	for i, d := range e.defs {
		if d.ID == id {
			e.defs = append(e.defs[:i], e.defs[i+1:]...)
			found = true
			break
		}
	}
	snapshot := append([]*Definition(nil), e.defs...)
	e.mu.Unlock()

	if !found {
		return fmt.Errorf("webhook %s not found", id)
	}
	return e.persist(snapshot)
}

// SetEnabled flips a definition on or off and persists the list.
func (e *Engine) SetEnabled(id string, enabled bool) error {
	e.mu.Lock()
	found := false
	for _, d := range e.defs {
		if d.ID == id {
			d.Enabled = &enabled
			found = true
			break
		}
	}
	snapshot := append([]*Definition(nil), e.defs...)
	e.mu.Unlock()

	if !found {
		return fmt.Errorf("webhook %s not found", id)
	}
	return e.persist(snapshot)
}

func (e *Engine) persist(snapshot []*Definition) error {
	if e.store == nil {
		return nil
	}
	return e.store.Save(snapshot)
}

// ExecuteTrigger runs every enabled definition matching trigger, each
// independently and concurrently. It returns after all executions settle;
// individual failures are logged, never propagated.
func (e *Engine) ExecuteTrigger(ctx context.Context, trigger Trigger, vars map[string]any) {
	e.mu.Lock()
	var matched []*Definition
	for _, d := range e.defs {
		if d.IsEnabled() && d.Trigger == trigger {
			matched = append(matched, d)
		}
	}
	e.mu.Unlock()

	if len(matched) == 0 {
		return
	}
	slog.Debug("dispatching webhooks", "trigger", trigger, "count", len(matched))

	var wg sync.WaitGroup
	for _, d := range matched {
		wg.Add(1)
		go func(d *Definition) {
			defer wg.Done()
			e.execute(ctx, d, vars)
		}(d)
	}
	wg.Wait()
}

// execute runs one definition with retry, emitting exactly one terminal
// log entry. A definition already executing is skipped.
func (e *Engine) execute(ctx context.Context, d *Definition, vars map[string]any) {
	e.mu.Lock()
	if _, busy := e.executing[d.ID]; busy {
		e.mu.Unlock()
		slog.Info("webhook already executing, skipping", "webhook", d.Name, "id", d.ID)
		return
	}
	e.executing[d.ID] = struct{}{}
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		delete(e.executing, d.ID)
		e.mu.Unlock()
	}()

	start := time.Now()
	attempts := d.attempts()

	var lastErr error
	attempt := 0
	for attempt = 1; attempt <= attempts; attempt++ {
		err := e.dispatch(ctx, d, vars)
		if err == nil {
			lastErr = nil
			break
		}
		lastErr = err
		slog.Warn("webhook attempt failed",
			"webhook", d.Name,
			"attempt", attempt,
			"of", attempts,
			"err", err,
		)
		if attempt < attempts {
			e.sleep(ctx, time.Duration(d.Retry.DelayMS)*time.Millisecond)
		}
	}
	if attempt > attempts {
		attempt = attempts
	}

	outcome := &record.WebhookOutcome{
		WebhookID:   d.ID,
		WebhookName: d.Name,
		Trigger:     string(d.Trigger),
		Status:      "success",
		DurationMS:  time.Since(start).Milliseconds(),
		Attempt:     attempt,
	}
	if lastErr != nil {
		outcome.Status = "failure"
		outcome.Error = lastErr.Error()
	}

	if e.logs != nil {
		e.logs.Append(record.LogEntry{
			Kind:         record.KindWebhook,
			OriginalText: stringVar(vars, "originalText"),
			SourceLink:   stringVar(vars, "shareLink"),
			Error:        outcome.Error,
			Webhook:      outcome,
		})
	}

	if lastErr == nil {
		slog.Info("webhook succeeded", "webhook", d.Name, "duration_ms", outcome.DurationMS, "attempt", attempt)
	} else {
		slog.Error("webhook failed", "webhook", d.Name, "attempts", attempt, "err", lastErr)
	}
}

// dispatch performs a single attempt of d.
func (e *Engine) dispatch(ctx context.Context, d *Definition, vars map[string]any) error {
	switch d.Kind {
	case KindHTTP:
		return runHTTP(ctx, e.client, d.HTTP, vars)
	case KindCommand:
		stdout, stderr, err := runCommand(ctx, d.Command, vars)
		if stdout != "" || stderr != "" {
			slog.Debug("webhook command output", "webhook", d.Name, "stdout", stdout, "stderr", stderr)
		}
		return err
	default:
		return fmt.Errorf("unsupported webhook kind %q", d.Kind)
	}
}

// Test runs d once against a fixed synthetic context and returns the attempt
// error. It bypasses both retry and the live execution guard, so a test can
// run while a live execution of the same definition is in flight.
func (e *Engine) Test(ctx context.Context, d *Definition) error {
	return e.dispatch(ctx, d, TestContext())
}

// TestContext is the synthetic variable set used by webhook tests.
func TestContext() map[string]any {
	now := time.Now()
	return map[string]any{
		"filePath":         "/test/path/video.mp4",
		"fileName":         "video.mp4",
		"fileSize":         1024,
		"originalText":     "test clipboard content",
		"shareLink":        "https://v.douyin.com/test/",
		"videoUrl":         "https://example.com/video.mp4",
		"timestamp":        now.UnixMilli(),
		"dateTime":         now.Format(time.RFC3339),
		"downloadDuration": 0,
	}
}

func stringVar(vars map[string]any, key string) string {
	if v, ok := vars[key]; ok {
		return fmt.Sprintf("%v", v)
	}
	return ""
}

package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.klb.dev/cliphook/internal/record"
)

type sinkCapture struct {
	mu      sync.Mutex
	entries []record.LogEntry
}

func (s *sinkCapture) Append(e record.LogEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
}

func (s *sinkCapture) all() []record.LogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]record.LogEntry(nil), s.entries...)
}

func newTestEngine(defs []*Definition, logs record.Sink) *Engine {
	e := NewEngine(defs, nil, logs, time.Second)
	e.sleep = func(context.Context, time.Duration) {}
	return e
}

func boolPtr(b bool) *bool { return &b }

func httpDef(id, url string, retry Retry, trigger Trigger) *Definition {
	return &Definition{
		ID:      id,
		Name:    "hook-" + id,
		Enabled: boolPtr(true),
		Kind:    KindHTTP,
		Trigger: trigger,
		HTTP:    &HTTPAction{URL: url, Method: http.MethodPost},
		Retry:   retry,
	}
}

func TestExecuteTrigger_RetryExhausted(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "always broken", http.StatusInternalServerError)
	}))
	defer srv.Close()

	sink := &sinkCapture{}
	def := httpDef("w1", srv.URL, Retry{Enabled: true, MaxAttempts: 3, DelayMS: 1}, TriggerDownloadComplete)
	e := newTestEngine([]*Definition{def}, sink)

	e.ExecuteTrigger(context.Background(), TriggerDownloadComplete, map[string]any{})

	assert.EqualValues(t, 3, calls.Load(), "failing action should be attempted exactly maxAttempts times")

	entries := sink.all()
	require.Len(t, entries, 1, "exactly one terminal log entry")
	require.NotNil(t, entries[0].Webhook)
	assert.Equal(t, record.KindWebhook, entries[0].Kind)
	assert.Equal(t, "failure", entries[0].Webhook.Status)
	assert.Equal(t, 3, entries[0].Webhook.Attempt)
	assert.Contains(t, entries[0].Webhook.Error, "500")
}

func TestExecuteTrigger_SucceedsOnSecondAttempt(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "flaky", http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sink := &sinkCapture{}
	def := httpDef("w1", srv.URL, Retry{Enabled: true, MaxAttempts: 3, DelayMS: 1}, TriggerResolveSuccess)
	e := newTestEngine([]*Definition{def}, sink)

	e.ExecuteTrigger(context.Background(), TriggerResolveSuccess, map[string]any{})

	assert.EqualValues(t, 2, calls.Load())

	entries := sink.all()
	require.Len(t, entries, 1)
	assert.Equal(t, "success", entries[0].Webhook.Status)
	assert.Equal(t, 2, entries[0].Webhook.Attempt)
	assert.Empty(t, entries[0].Webhook.Error)
}

func TestExecuteTrigger_RetryDisabledSingleAttempt(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "broken", http.StatusInternalServerError)
	}))
	defer srv.Close()

	sink := &sinkCapture{}
	def := httpDef("w1", srv.URL, Retry{Enabled: false, MaxAttempts: 5, DelayMS: 1}, TriggerDownloadComplete)
	e := newTestEngine([]*Definition{def}, sink)

	e.ExecuteTrigger(context.Background(), TriggerDownloadComplete, map[string]any{})

	assert.EqualValues(t, 1, calls.Load(), "retry disabled means exactly one attempt")
}

func TestExecuteTrigger_OnlyMatchingEnabledDefinitions(t *testing.T) {
	var hit atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hit.Add(1)
	}))
	defer srv.Close()

	match := httpDef("match", srv.URL, Retry{}, TriggerResolveFailed)
	wrongTrigger := httpDef("wrong", srv.URL, Retry{}, TriggerDownloadComplete)
	disabled := httpDef("off", srv.URL, Retry{}, TriggerResolveFailed)
	disabled.Enabled = boolPtr(false)

	e := newTestEngine([]*Definition{match, wrongTrigger, disabled}, &sinkCapture{})
	e.ExecuteTrigger(context.Background(), TriggerResolveFailed, map[string]any{})

	assert.EqualValues(t, 1, hit.Load(), "only the enabled, matching definition fires")
}

func TestExecuteTrigger_FailureIsolatedFromSiblings(t *testing.T) {
	var okHits atomic.Int32
	okSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		okHits.Add(1)
	}))
	defer okSrv.Close()
	badSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer badSrv.Close()

	sink := &sinkCapture{}
	e := newTestEngine([]*Definition{
		httpDef("bad", badSrv.URL, Retry{}, TriggerDownloadComplete),
		httpDef("good", okSrv.URL, Retry{}, TriggerDownloadComplete),
	}, sink)

	e.ExecuteTrigger(context.Background(), TriggerDownloadComplete, map[string]any{})

	assert.EqualValues(t, 1, okHits.Load(), "sibling failure must not affect other webhooks")
	assert.Len(t, sink.all(), 2, "each execution logs its own terminal outcome")
}

func TestExecute_ConcurrentSameDefinitionSkipped(t *testing.T) {
	release := make(chan struct{})
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		<-release
	}))
	defer srv.Close()

	sink := &sinkCapture{}
	def := httpDef("w1", srv.URL, Retry{}, TriggerDownloadComplete)
	e := newTestEngine([]*Definition{def}, sink)

	done := make(chan struct{})
	go func() {
		e.ExecuteTrigger(context.Background(), TriggerDownloadComplete, map[string]any{})
		close(done)
	}()

	// Wait for the first execution to be in flight, then fire again.
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	e.ExecuteTrigger(context.Background(), TriggerDownloadComplete, map[string]any{})

	assert.EqualValues(t, 1, calls.Load(), "second trigger is skipped while first is in flight")

	close(release)
	<-done
	assert.Len(t, sink.all(), 1, "skipped execution produces no log entry")
}

func TestTest_BypassesLiveExecutionGuard(t *testing.T) {
	release := make(chan struct{})
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			<-release // first (live) call blocks
		}
	}))
	defer srv.Close()

	def := httpDef("w1", srv.URL, Retry{}, TriggerDownloadComplete)
	e := newTestEngine([]*Definition{def}, &sinkCapture{})

	done := make(chan struct{})
	go func() {
		e.ExecuteTrigger(context.Background(), TriggerDownloadComplete, map[string]any{})
		close(done)
	}()
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	err := e.Test(context.Background(), def)
	assert.NoError(t, err, "test lane must run while a live execution is in flight")
	assert.EqualValues(t, 2, calls.Load())

	close(release)
	<-done
}

func TestHTTPBodies(t *testing.T) {
	type captured struct {
		contentType string
		body        string
	}
	var got captured
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		got = captured{contentType: r.Header.Get("Content-Type"), body: string(b)}
	}))
	defer srv.Close()

	vars := map[string]any{"originalText": "hello world", "filePath": "/tmp/v.mp4"}

	t.Run("json", func(t *testing.T) {
		def := httpDef("j", srv.URL, Retry{}, TriggerDownloadComplete)
		def.HTTP.Body = &Body{Type: BodyJSON, Data: json.RawMessage(`{"message":"{{originalText}}","path":"{{filePath}}"}`)}
		e := newTestEngine([]*Definition{def}, &sinkCapture{})
		e.ExecuteTrigger(context.Background(), TriggerDownloadComplete, vars)

		assert.Equal(t, "application/json", got.contentType)
		var decoded map[string]string
		require.NoError(t, json.Unmarshal([]byte(got.body), &decoded))
		assert.Equal(t, "hello world", decoded["message"])
		assert.Equal(t, "/tmp/v.mp4", decoded["path"])
	})

	t.Run("form", func(t *testing.T) {
		def := httpDef("f", srv.URL, Retry{}, TriggerDownloadComplete)
		def.HTTP.Body = &Body{Type: BodyForm, Fields: []Field{{Name: "message", Value: "{{originalText}}"}}}
		e := newTestEngine([]*Definition{def}, &sinkCapture{})
		e.ExecuteTrigger(context.Background(), TriggerDownloadComplete, vars)

		assert.Equal(t, "application/x-www-form-urlencoded", got.contentType)
		assert.Equal(t, "message=hello+world", got.body)
	})

	t.Run("raw", func(t *testing.T) {
		def := httpDef("r", srv.URL, Retry{}, TriggerDownloadComplete)
		def.HTTP.Body = &Body{Type: BodyRaw, Raw: "text: {{originalText}}"}
		e := newTestEngine([]*Definition{def}, &sinkCapture{})
		e.ExecuteTrigger(context.Background(), TriggerDownloadComplete, vars)

		assert.Equal(t, "text: hello world", got.body)
	})

	t.Run("multipart with file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "video.mp4")
		require.NoError(t, os.WriteFile(path, []byte("fake video bytes"), 0o644))

		def := httpDef("m", srv.URL, Retry{}, TriggerDownloadComplete)
		def.HTTP.Body = &Body{Type: BodyMultipart, Fields: []Field{
			{Name: "files", Kind: FieldFile, Value: "{{filePath}}"},
			{Name: "path", Kind: FieldText, Value: "/uploads"},
		}}
		e := newTestEngine([]*Definition{def}, &sinkCapture{})
		e.ExecuteTrigger(context.Background(), TriggerDownloadComplete, map[string]any{"filePath": path})

		assert.True(t, strings.HasPrefix(got.contentType, "multipart/form-data"))
		assert.Contains(t, got.body, "fake video bytes")
		assert.Contains(t, got.body, `filename="video.mp4"`)
		assert.Contains(t, got.body, "/uploads")
	})
}

func TestMultipart_MissingFileFailsAttempt(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	sink := &sinkCapture{}
	def := httpDef("m", srv.URL, Retry{}, TriggerDownloadComplete)
	def.HTTP.Body = &Body{Type: BodyMultipart, Fields: []Field{
		{Name: "files", Kind: FieldFile, Value: "/nonexistent/file.mp4"},
	}}
	e := newTestEngine([]*Definition{def}, sink)
	e.ExecuteTrigger(context.Background(), TriggerDownloadComplete, map[string]any{})

	assert.EqualValues(t, 0, calls.Load(), "request must not be sent when the file is unreadable")
	entries := sink.all()
	require.Len(t, entries, 1)
	assert.Equal(t, "failure", entries[0].Webhook.Status)
}

func TestCommandWebhook(t *testing.T) {
	t.Run("exit zero succeeds", func(t *testing.T) {
		sink := &sinkCapture{}
		def := &Definition{
			ID: "c1", Name: "cmd", Enabled: boolPtr(true), Kind: KindCommand,
			Trigger: TriggerDownloadComplete,
			Command: &CommandAction{Command: "sh", Args: []string{"-c", "echo {{originalText}}"}},
		}
		e := newTestEngine([]*Definition{def}, sink)
		e.ExecuteTrigger(context.Background(), TriggerDownloadComplete, map[string]any{"originalText": "hi"})

		entries := sink.all()
		require.Len(t, entries, 1)
		assert.Equal(t, "success", entries[0].Webhook.Status)
	})

	t.Run("non-zero exit fails", func(t *testing.T) {
		sink := &sinkCapture{}
		def := &Definition{
			ID: "c2", Name: "cmd", Enabled: boolPtr(true), Kind: KindCommand,
			Trigger: TriggerDownloadComplete,
			Command: &CommandAction{Command: "sh", Args: []string{"-c", "echo oops >&2; exit 3"}},
		}
		e := newTestEngine([]*Definition{def}, sink)
		e.ExecuteTrigger(context.Background(), TriggerDownloadComplete, map[string]any{})

		entries := sink.all()
		require.Len(t, entries, 1)
		assert.Equal(t, "failure", entries[0].Webhook.Status)
		assert.Contains(t, entries[0].Webhook.Error, "exit code 3")
		assert.Contains(t, entries[0].Webhook.Error, "oops")
	})

	t.Run("timeout fails", func(t *testing.T) {
		sink := &sinkCapture{}
		def := &Definition{
			ID: "c3", Name: "cmd", Enabled: boolPtr(true), Kind: KindCommand,
			Trigger: TriggerDownloadComplete,
			Command: &CommandAction{Command: "sh", Args: []string{"-c", "sleep 10"}, TimeoutMS: 50},
		}
		e := newTestEngine([]*Definition{def}, sink)
		e.ExecuteTrigger(context.Background(), TriggerDownloadComplete, map[string]any{})

		entries := sink.all()
		require.Len(t, entries, 1)
		assert.Equal(t, "failure", entries[0].Webhook.Status)
		assert.Contains(t, entries[0].Webhook.Error, "timed out")
	})
}

func TestAdd_FillsDefaultsAndPersists(t *testing.T) {
	store, err := NewFileStore(filepath.Join(t.TempDir(), "webhooks.json"))
	require.NoError(t, err)

	e := NewEngine(nil, store, &sinkCapture{}, time.Second)
	added, err := e.Add(&Definition{Name: "mine", Kind: KindHTTP, HTTP: &HTTPAction{URL: "http://x"}})
	require.NoError(t, err)

	assert.NotEmpty(t, added.ID)
	assert.True(t, added.IsEnabled(), "unset enabled defaults to true")
	require.NotNil(t, added.Enabled)
	assert.True(t, *added.Enabled)
	assert.Equal(t, TriggerDownloadComplete, added.Trigger)
	assert.Equal(t, 3, added.Retry.MaxAttempts)
	assert.Equal(t, 1000, added.Retry.DelayMS)
	assert.False(t, added.CreatedAt.IsZero())

	loaded, err := store.Load()
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, added.ID, loaded[0].ID)
}

func TestDefinition_EnabledDefaultsTrue(t *testing.T) {
	var d Definition
	require.NoError(t, json.Unmarshal([]byte(`{"id":"a","name":"n","kind":"http"}`), &d))
	assert.True(t, d.IsEnabled(), "a stored definition without the enabled field fires")

	var off Definition
	require.NoError(t, json.Unmarshal([]byte(`{"id":"b","enabled":false}`), &off))
	assert.False(t, off.IsEnabled(), "only an explicit false disables")
}

func TestFileStore_MissingFileLoadsEmpty(t *testing.T) {
	store, err := NewFileStore(filepath.Join(t.TempDir(), "webhooks.json"))
	require.NoError(t, err)
	defs, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, defs)
}

// Package monitor polls the system clipboard and reports content changes.
package monitor

import (
	"log/slog"
	"sync"
	"time"

	"go.klb.dev/cliphook/internal/clip"
)

// DefaultInterval is the poll interval when none is configured.
const DefaultInterval = 500 * time.Millisecond

// Monitor samples the clipboard at a fixed interval and invokes the change
// handler whenever non-empty content differs from the last observed value.
// Read failures are logged and skipped; they never stop the loop.
type Monitor struct {
	reader   clip.Reader
	onChange func(text string)

	mu       sync.Mutex
	interval time.Duration
	lastSeen string
	running  bool
	stop     chan struct{}
}

// New returns a stopped monitor. onChange is called from the poll goroutine
// (and once synchronously from Start for the initial read).
func New(reader clip.Reader, interval time.Duration, onChange func(text string)) *Monitor {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Monitor{
		reader:   reader,
		interval: interval,
		onChange: onChange,
	}
}

// Start begins polling. The current clipboard content is read and processed
// synchronously before the ticker starts. Calling Start on a running
// monitor is a no-op.
func (m *Monitor) Start() {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.running = true
	m.stop = make(chan struct{})
	stop := m.stop
	interval := m.interval
	m.mu.Unlock()

	slog.Info("clipboard monitor started", "interval", interval)
	m.tick()

	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-stop:
				return
			case <-t.C:
				m.tick()
			}
		}
	}()
}

// Stop cancels polling. Safe to call on a stopped monitor.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return
	}
	m.running = false
	close(m.stop)
	slog.Info("clipboard monitor stopped")
}

// Running reports whether the monitor is polling.
func (m *Monitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Interval returns the current poll interval.
func (m *Monitor) Interval() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.interval
}

// SetInterval changes the poll interval. A running monitor is restarted so
// the new interval takes effect.
func (m *Monitor) SetInterval(interval time.Duration) {
	if interval <= 0 {
		interval = DefaultInterval
	}
	m.mu.Lock()
	if m.interval == interval {
		m.mu.Unlock()
		return
	}
	m.interval = interval
	wasRunning := m.running
	m.mu.Unlock()

	if wasRunning {
		m.Stop()
		m.Start()
	}
}

// tick reads the clipboard once and fires the handler on a change.
func (m *Monitor) tick() {
	text, err := m.reader.ReadText()
	if err != nil {
		slog.Error("clipboard read failed", "err", err)
		return
	}
	if text == "" {
		return
	}

	m.mu.Lock()
	if text == m.lastSeen {
		m.mu.Unlock()
		return
	}
	m.lastSeen = text
	m.mu.Unlock()

	m.onChange(text)
}

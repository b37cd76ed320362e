// Package clip provides read access to the system clipboard via
// golang.design/x/clipboard, with a headless no-op fallback for
// environments without a display server.
package clip

import (
	"log/slog"

	"golang.design/x/clipboard"
)

// Reader reads the current text content of a clipboard.
type Reader interface {
	// ReadText returns the current clipboard text. An empty string means
	// the clipboard is empty or holds no text representation.
	ReadText() (string, error)
}

// New returns the system clipboard reader, or a headless no-op reader if
// the display environment is unavailable (e.g. a server without X11 or
// Wayland). clipboard.Init is called here rather than in init() so that
// CLI sub-commands (status, webhook) never touch the display.
func New() Reader {
	if err := clipboard.Init(); err != nil {
		slog.Warn("clipboard unavailable, running headless", "err", err)
		return headlessReader{}
	}
	return systemReader{}
}

type systemReader struct{}

func (systemReader) ReadText() (string, error) {
	return string(clipboard.Read(clipboard.FmtText)), nil
}

// headlessReader never observes clipboard content.
type headlessReader struct{}

func (headlessReader) ReadText() (string, error) { return "", nil }

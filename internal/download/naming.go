package download

import (
	"fmt"
	"strings"
	"time"

	"go.klb.dev/cliphook/internal/extract"
)

// Naming rules for downloaded files. An unknown or empty rule falls back
// to RuleTimestamp.
const (
	RuleTimestamp  = "timestamp"
	RuleTitle      = "title"
	RuleHash       = "hash"
	RuleSequential = "sequential"
	RuleIdentifier = "identifier"
)

const fileExt = ".mp4"

// FileName generates the target file name for one download. seq is the
// running counter used by RuleSequential.
func FileName(rule, originalText, sourceLink string, seq int) string {
	now := time.Now().UnixMilli()
	switch rule {
	case RuleTitle:
		return fmt.Sprintf("%s_%d%s", titleOf(originalText), now, fileExt)
	case RuleHash:
		return stringHash(sourceLink) + fileExt
	case RuleSequential:
		return fmt.Sprintf("video_%04d_%d%s", seq, now, fileExt)
	case RuleIdentifier:
		if id, ok := extract.VideoID(sourceLink); ok {
			return id + fileExt
		}
		return fmt.Sprintf("video_%d%s", now, fileExt)
	default:
		return fmt.Sprintf("%d_douyin_video%s", now, fileExt)
	}
}

// titleOf derives a file-name-safe title from the first non-blank line of
// the clipboard text: path-hostile characters replaced, at most 50 chars,
// "untitled" when nothing usable remains.
func titleOf(text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var b strings.Builder
		for _, r := range line {
			switch r {
			case '\\', '/', ':', '*', '?', '"', '<', '>', '|':
				b.WriteRune('_')
			default:
				b.WriteRune(r)
			}
		}
		title := b.String()
		if len([]rune(title)) > 50 {
			title = string([]rune(title)[:50])
		}
		if title != "" {
			return title
		}
	}
	return "untitled"
}

// stringHash is a deterministic 32-bit string hash, hex-encoded.
func stringHash(s string) string {
	var h int32
	for _, r := range s {
		h = h<<5 - h + int32(r)
	}
	if h < 0 {
		h = -h
	}
	return fmt.Sprintf("%x", uint32(h))
}

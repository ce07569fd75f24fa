package moderation

import (
	"strings"
	"sync"
)

type bufferedText struct {
	at   float64
	text string
}

// TranscriptBuffer keeps recent transcript fragments for context across
// chunk boundaries.
type TranscriptBuffer struct {
	mu     sync.Mutex
	window float64
	items  []bufferedText
}

// NewTranscriptBuffer creates a buffer retaining window seconds of text.
func NewTranscriptBuffer(window float64) *TranscriptBuffer {
	if window <= 0 {
		window = 30
	}
	return &TranscriptBuffer{window: window}
}

// Add records text observed at stream time at and evicts expired entries.
func (b *TranscriptBuffer) Add(at float64, text string) {
	text = strings.TrimSpace(text)
	b.mu.Lock()
	defer b.mu.Unlock()
	if text != "" {
		b.items = append(b.items, bufferedText{at: at, text: text})
	}
	b.evictLocked(at)
}

// Text joins the retained fragments relative to now.
func (b *TranscriptBuffer) Text(now float64) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.evictLocked(now)
	parts := make([]string, 0, len(b.items))
	for _, it := range b.items {
		parts = append(parts, it.text)
	}
	return strings.Join(parts, " ")
}

func (b *TranscriptBuffer) evictLocked(now float64) {
	keep := b.items[:0]
	for _, it := range b.items {
		if now-it.at <= b.window {
			keep = append(keep, it)
		}
	}
	b.items = keep
}

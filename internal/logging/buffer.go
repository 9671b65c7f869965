package logging

import (
	"bytes"
	"sync"
)

// RingBuffer keeps the most recent log lines in memory.
type RingBuffer struct {
	mu    sync.Mutex
	lines []string
	next  int
	full  bool
}

// NewRingBuffer creates a buffer holding up to size lines.
func NewRingBuffer(size int) *RingBuffer {
	if size < 1 {
		size = DefaultBufferLines
	}
	return &RingBuffer{lines: make([]string, size)}
}

// Write stores each complete line of p.
func (b *RingBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, line := range bytes.Split(bytes.TrimRight(p, "\n"), []byte{'\n'}) {
		if len(line) == 0 {
			continue
		}
		b.lines[b.next] = string(line)
		b.next = (b.next + 1) % len(b.lines)
		if b.next == 0 {
			b.full = true
		}
	}
	return len(p), nil
}

// Tail returns up to n of the newest lines, oldest first. n <= 0 returns all.
func (b *RingBuffer) Tail(n int) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var ordered []string
	if b.full {
		ordered = append(ordered, b.lines[b.next:]...)
	}
	ordered = append(ordered, b.lines[:b.next]...)
	if n > 0 && n < len(ordered) {
		ordered = ordered[len(ordered)-n:]
	}
	return ordered
}

// Package utils holds small helpers shared by the binary and its commands.
package utils

import (
	"io"
	"sync"
)

// DeferredWriter buffers writes until Flush. It holds log output while a
// full-screen program owns the terminal.
type DeferredWriter struct {
	mu      sync.Mutex
	entries [][]byte
}

// Write records a copy of p. zerolog issues one Write per event, so each
// entry is one log line.
func (d *DeferredWriter) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.entries = append(d.entries, append([]byte(nil), p...))
	return len(p), nil
}

// Len returns the number of buffered entries.
func (d *DeferredWriter) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.entries)
}

// Flush replays buffered entries to w in order and empties the buffer.
func (d *DeferredWriter) Flush(w io.Writer) error {
	d.mu.Lock()
	entries := d.entries
	d.entries = nil
	d.mu.Unlock()

	for _, e := range entries {
		if _, err := w.Write(e); err != nil {
			return err
		}
	}
	return nil
}

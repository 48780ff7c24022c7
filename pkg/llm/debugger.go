package llm

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// debugContextKey is an unexported context-key type so DebugDirContextKey
// can't collide with keys set by unrelated packages.
type debugContextKey struct{}

// DebugDirContextKey nests a stream debug log under a session-specific
// subdirectory when present in ctx.
var DebugDirContextKey = debugContextKey{}

// StreamDebugger writes raw provider stream chunks to disk for offline
// inspection. Lazily opens its file on first write so a disabled debugger
// costs nothing.
type StreamDebugger struct {
	file     *os.File
	debugDir string
	filename string
	enabled  bool
}

// NewStreamDebugger builds a debugger for provider's stream; enabled gates
// whether anything is ever written.
func NewStreamDebugger(ctx context.Context, provider string, enabled bool) *StreamDebugger {
	if !enabled {
		return &StreamDebugger{enabled: false}
	}

	debugDir := filepath.Join("debug", "chunks", provider)
	if val := ctx.Value(DebugDirContextKey); val != nil {
		if dirStr, ok := val.(string); ok && dirStr != "" {
			debugDir = filepath.Join("debug", "chunks", dirStr, provider)
		}
	}

	d := &StreamDebugger{
		debugDir: debugDir,
		filename: filepath.Join(debugDir, "chat.log"),
		enabled:  true,
	}
	d.WriteString(fmt.Sprintf("\n--- ROUND START: %s ---\n", time.Now().Format("2006-01-02 15:04:05")))
	return d
}

func (d *StreamDebugger) ensureFileOpened() error {
	if !d.enabled || d.file != nil {
		return nil
	}
	if err := os.MkdirAll(d.debugDir, 0755); err != nil {
		slog.Error("failed to create debug directory", "dir", d.debugDir, "error", err)
		d.enabled = false
		return err
	}
	f, err := os.OpenFile(d.filename, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		slog.Error("failed to open debug file", "file", d.filename, "error", err)
		d.enabled = false
		return err
	}
	d.file = f
	return nil
}

// Write appends raw data followed by a newline, if enabled.
func (d *StreamDebugger) Write(data []byte) {
	if !d.enabled {
		return
	}
	if err := d.ensureFileOpened(); err != nil || d.file == nil {
		return
	}
	if _, err := d.file.Write(data); err != nil {
		slog.Warn("failed to write debug file", "error", err)
	}
	d.file.WriteString("\n")
}

// WriteString appends a string followed by a newline, if enabled.
func (d *StreamDebugger) WriteString(s string) {
	if !d.enabled {
		return
	}
	if err := d.ensureFileOpened(); err != nil || d.file == nil {
		return
	}
	if _, err := d.file.WriteString(s); err != nil {
		slog.Warn("failed to write debug file", "error", err)
	}
	d.file.WriteString("\n")
}

func (d *StreamDebugger) Close() {
	if d.file != nil {
		d.file.Close()
		d.file = nil
	}
}

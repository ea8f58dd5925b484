// Package logging is the diagnostic sink used by memkit components when an
// operation fails or hits a warning-level condition. Components take a Logger
// at construction time; nothing in memkit reaches for a process-wide logger.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
)

// Level is the severity of a recorded message.
type Level int

const (
	LevelError Level = iota
	LevelWarning
	LevelInfo
)

func (l Level) String() string {
	switch l {
	case LevelError:
		return "Error"
	case LevelWarning:
		return "Warning"
	case LevelInfo:
		return "Info"
	default:
		return "Unknown"
	}
}

// Logger records a human-readable message at a severity.
type Logger interface {
	Record(msg string, level Level)
}

// Recordf formats and records a message. A nil logger discards it.
func Recordf(l Logger, level Level, format string, args ...any) {
	if l == nil {
		return
	}
	l.Record(fmt.Sprintf(format, args...), level)
}

// Console writes one prefixed line per message, e.g. "[Warning]: ...".
type Console struct {
	mu sync.Mutex
	w  io.Writer
}

// NewConsole returns a console sink writing to w.
func NewConsole(w io.Writer) *Console {
	return &Console{w: w}
}

// Default returns a console sink on stdout.
func Default() Logger {
	return NewConsole(os.Stdout)
}

// Record implements Logger.
func (c *Console) Record(msg string, level Level) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.w, "[%s]: %s\n", level, msg)
}

type discard struct{}

func (discard) Record(string, Level) {}

// Discard drops every message.
var Discard Logger = discard{}

// Slog forwards messages to a *slog.Logger.
type Slog struct {
	L *slog.Logger
}

// NewSlog wraps l. A nil l uses slog.Default().
func NewSlog(l *slog.Logger) *Slog {
	if l == nil {
		l = slog.Default()
	}
	return &Slog{L: l}
}

// Record implements Logger.
func (s *Slog) Record(msg string, level Level) {
	s.L.Log(context.Background(), slogLevel(level), msg)
}

func slogLevel(l Level) slog.Level {
	switch l {
	case LevelError:
		return slog.LevelError
	case LevelWarning:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

// Options configures New.
type Options struct {
	Enabled bool       // If false, all logging is discarded
	JSON    bool       // JSON handler instead of text
	Writer  io.Writer  // Destination. Default: os.Stderr
	Level   slog.Level // Minimum level. Default: LevelInfo
}

// New builds a slog-backed Logger from opts.
func New(opts Options) Logger {
	if !opts.Enabled {
		return Discard
	}
	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}
	ho := &slog.HandlerOptions{Level: opts.Level}
	var h slog.Handler
	if opts.JSON {
		h = slog.NewJSONHandler(w, ho)
	} else {
		h = slog.NewTextHandler(w, ho)
	}
	return NewSlog(slog.New(h))
}

// Entry is one recorded message.
type Entry struct {
	Msg   string
	Level Level
}

// Recorder keeps every message in memory. Useful in tests and for callers
// that want to inspect diagnostics after a batch of operations.
type Recorder struct {
	mu      sync.Mutex
	entries []Entry
}

// Record implements Logger.
func (r *Recorder) Record(msg string, level Level) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, Entry{Msg: msg, Level: level})
}

// Entries returns a copy of the recorded messages.
func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Count returns how many messages were recorded at level.
func (r *Recorder) Count(level Level) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.entries {
		if e.Level == level {
			n++
		}
	}
	return n
}

// Len returns the number of recorded messages.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

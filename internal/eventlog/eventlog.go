// Package eventlog is the single owner of event ids. It numbers findings,
// appends them to a JSONL file and serves the most recent entries.
package eventlog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/potooio/sentinel/internal/types"
)

// DefaultMaxInMemory bounds the entries kept for Recent and All.
const DefaultMaxInMemory = 10000

// Entry is one numbered finding as written to the log.
type Entry struct {
	Timestamp time.Time     `json:"timestamp"`
	EventID   string        `json:"event_id"`
	EventData types.Finding `json:"event_data"`
}

// Options configures a Log.
type Options struct {
	// Path of the JSONL file. Empty keeps the log in memory only.
	Path string

	// MaxInMemory bounds retained entries; counts are kept for every entry.
	MaxInMemory int

	Logger *zap.Logger

	// Clock stamps findings that carry no timestamp. Defaults to time.Now.
	Clock func() time.Time
}

// Log assigns sequential ids E000, E001, ... and persists each entry.
type Log struct {
	opts   Options
	logger *zap.Logger

	mu      sync.Mutex
	file    *os.File
	next    int
	entries []Entry
	counts  map[types.EventName]int
	summary Summary
}

// New creates a Log. When a path is set the file is created (truncating any
// previous run) along with its parent directory.
func New(opts Options) (*Log, error) {
	if opts.MaxInMemory <= 0 {
		opts.MaxInMemory = DefaultMaxInMemory
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	l := &Log{
		opts:    opts,
		logger:  opts.Logger.Named("eventlog"),
		counts:  make(map[types.EventName]int),
		summary: newSummary(),
	}
	if opts.Path != "" {
		if dir := filepath.Dir(opts.Path); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("creating event log directory: %w", err)
			}
		}
		f, err := os.OpenFile(opts.Path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
		if err != nil {
			return nil, fmt.Errorf("opening event log: %w", err)
		}
		l.file = f
	}
	return l, nil
}

// Append numbers and records a finding. The entry is retained even when the
// file write fails; the write error is returned.
func (l *Log) Append(f types.Finding) (Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	ts := f.Timestamp
	if ts.IsZero() {
		ts = l.opts.Clock()
	}
	entry := Entry{
		Timestamp: ts,
		EventID:   fmt.Sprintf("E%03d", l.next),
		EventData: f,
	}
	l.next++
	l.counts[f.EventName]++
	l.summary.add(entry, l.opts.MaxInMemory)
	l.entries = append(l.entries, entry)
	if over := len(l.entries) - l.opts.MaxInMemory; over > 0 {
		l.entries = append(l.entries[:0:0], l.entries[over:]...)
	}

	if l.file == nil {
		return entry, nil
	}
	line, err := json.Marshal(entry)
	if err != nil {
		return entry, fmt.Errorf("encoding %s: %w", entry.EventID, err)
	}
	if _, err := l.file.Write(append(line, '\n')); err != nil {
		return entry, fmt.Errorf("writing %s: %w", entry.EventID, err)
	}
	return entry, nil
}

// AppendAll records findings in order, logging write failures.
func (l *Log) AppendAll(findings []types.Finding) []Entry {
	out := make([]Entry, 0, len(findings))
	for _, f := range findings {
		entry, err := l.Append(f)
		if err != nil {
			l.logger.Warn("Failed to persist event",
				zap.String("event_id", entry.EventID),
				zap.Error(err))
		}
		out = append(out, entry)
	}
	return out
}

// Recent returns the last k retained entries, oldest first.
// A k <= 0 returns nil.
func (l *Log) Recent(k int) []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	if k <= 0 || len(l.entries) == 0 {
		return nil
	}
	if k > len(l.entries) {
		k = len(l.entries)
	}
	out := make([]Entry, k)
	copy(out, l.entries[len(l.entries)-k:])
	return out
}

// All returns every retained entry, oldest first.
func (l *Log) All() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Counts returns the number of entries ever appended, by event name.
func (l *Log) Counts() map[types.EventName]int {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make(map[types.EventName]int, len(l.counts))
	for k, v := range l.counts {
		out[k] = v
	}
	return out
}

// Summary aggregates every entry ever appended. CriticalEvents keeps the
// most recent MaxInMemory of them.
func (l *Log) Summary() Summary {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.summary.clone()
}

// Len returns the number of entries ever appended.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.next
}

// Path returns the backing file path, or "".
func (l *Log) Path() string { return l.opts.Path }

// Close syncs and closes the backing file.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}
	f := l.file
	l.file = nil
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("syncing event log: %w", err)
	}
	return f.Close()
}

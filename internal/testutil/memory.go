package testutil

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/stackvity/bsm-analyze/pkg/scheduler"
)

// --- MemoryFS ---

// MemoryFS is an in-memory table of event files. Events are the ints 1..n.
// It is safe for concurrent use by many readers.
type MemoryFS struct {
	mu      sync.Mutex
	files   map[string]*memFile
	delay   time.Duration
	opened  []string
	readers int
}

type memFile struct {
	events    int
	openErr   error
	readErr   error
	failAfter int
	gate      chan struct{}
}

// NewMemoryFS returns an empty MemoryFS.
func NewMemoryFS() *MemoryFS {
	return &MemoryFS{files: make(map[string]*memFile)}
}

// AddFile registers path with n events.
func (fs *MemoryFS) AddFile(path string, n int) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.files[path] = &memFile{events: n}
}

// FailOpen makes Open on path return err.
func (fs *MemoryFS) FailOpen(path string, err error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.file(path).openErr = err
}

// FailRead makes reading path stop with err after `after` events.
func (fs *MemoryFS) FailRead(path string, after int, err error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	f := fs.file(path)
	f.failAfter = after
	f.readErr = err
}

// Gate blocks readers of path before their first event until the returned
// channel is closed.
func (fs *MemoryFS) Gate(path string) chan struct{} {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	f := fs.file(path)
	f.gate = make(chan struct{})
	return f.gate
}

// SetDelay makes every Next call sleep for d.
func (fs *MemoryFS) SetDelay(d time.Duration) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.delay = d
}

// Opened returns the paths opened so far, in order.
func (fs *MemoryFS) Opened() []string {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return append([]string(nil), fs.opened...)
}

// ReadersCreated returns how many readers NewReader has handed out.
func (fs *MemoryFS) ReadersCreated() int {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.readers
}

// TotalEvents returns the number of events a single-threaded reader obtains
// from paths.
func (fs *MemoryFS) TotalEvents(paths ...string) int64 {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	var total int64
	for _, p := range paths {
		f, ok := fs.files[p]
		switch {
		case !ok, f.openErr != nil:
		case f.readErr != nil:
			total += int64(min(f.failAfter, f.events))
		default:
			total += int64(f.events)
		}
	}
	return total
}

// NewReader is a scheduler.ReaderFactory.
func (fs *MemoryFS) NewReader() scheduler.Reader {
	fs.mu.Lock()
	fs.readers++
	fs.mu.Unlock()
	return &memoryReader{fs: fs}
}

func (fs *MemoryFS) file(path string) *memFile {
	f, ok := fs.files[path]
	if !ok {
		f = &memFile{}
		fs.files[path] = f
	}
	return f
}

// --- memoryReader ---

type memoryReader struct {
	fs    *MemoryFS
	file  memFile
	delay time.Duration
	pos   int
	err   error
}

func (r *memoryReader) Open(path string) error {
	r.fs.mu.Lock()
	defer r.fs.mu.Unlock()
	r.fs.opened = append(r.fs.opened, path)
	f, ok := r.fs.files[path]
	if !ok {
		return fmt.Errorf("open %s: %w", path, os.ErrNotExist)
	}
	if f.openErr != nil {
		return f.openErr
	}
	r.file = *f
	r.delay = r.fs.delay
	return nil
}

func (r *memoryReader) Next() bool {
	if r.file.gate != nil {
		<-r.file.gate
		r.file.gate = nil
	}
	if r.delay > 0 {
		time.Sleep(r.delay)
	}
	if r.file.readErr != nil && r.pos >= r.file.failAfter {
		r.err = r.file.readErr
		return false
	}
	if r.pos >= r.file.events {
		r.err = io.EOF
		return false
	}
	r.pos++
	return true
}

func (r *memoryReader) Event() scheduler.Event { return r.pos }

func (r *memoryReader) Err() error { return r.err }

func (r *memoryReader) Close() error { return nil }

// --- CountingAnalyzer ---

// CountingAnalyzer counts events and sums int payloads. PanicOn, when set, is
// consulted for every event and makes Process panic when it reports true.
type CountingAnalyzer struct {
	Events  int64
	Sum     int64
	PanicOn func(evt scheduler.Event) bool
}

// Process implements scheduler.Analyzer.
func (a *CountingAnalyzer) Process(evt scheduler.Event) {
	if a.PanicOn != nil && a.PanicOn(evt) {
		panic(fmt.Sprintf("bad event %v", evt))
	}
	a.Events++
	if v, ok := evt.(int); ok {
		a.Sum += int64(v)
	}
}

// Clone implements scheduler.Analyzer.
func (a *CountingAnalyzer) Clone() scheduler.Analyzer {
	return &CountingAnalyzer{PanicOn: a.PanicOn}
}

// Merge implements scheduler.Analyzer.
func (a *CountingAnalyzer) Merge(other scheduler.Analyzer) error {
	o, ok := other.(*CountingAnalyzer)
	if !ok {
		return fmt.Errorf("%w: %T", scheduler.ErrMergeMismatch, other)
	}
	a.Events += o.Events
	a.Sum += o.Sum
	return nil
}

// Print implements scheduler.Analyzer.
func (a *CountingAnalyzer) Print(w io.Writer) error {
	_, err := fmt.Fprintf(w, "events: %d sum: %d\n", a.Events, a.Sum)
	return err
}

// --- ScriptedKeys ---

// ScriptedKeys is a scheduler.KeySource that yields queued keys once each.
type ScriptedKeys struct {
	mu    sync.Mutex
	keys  []rune
	polls int
}

// NewScriptedKeys returns a source preloaded with keys.
func NewScriptedKeys(keys ...rune) *ScriptedKeys {
	return &ScriptedKeys{keys: keys}
}

// Press queues more keys.
func (s *ScriptedKeys) Press(keys ...rune) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys = append(s.keys, keys...)
}

// Poll implements scheduler.KeySource.
func (s *ScriptedKeys) Poll() (rune, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.polls++
	if len(s.keys) == 0 {
		return 0, false
	}
	k := s.keys[0]
	s.keys = s.keys[1:]
	return k, true
}

// Polls returns how often Poll has been called.
func (s *ScriptedKeys) Polls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.polls
}

// --- SyncBuffer ---

// SyncBuffer is an io.Writer safe for concurrent writes and reads.
type SyncBuffer struct {
	mu  sync.Mutex
	buf []byte
}

// Write implements io.Writer.
func (b *SyncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	return len(p), nil
}

// String returns everything written so far.
func (b *SyncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}

// Package keyboard provides the terminal-backed key source used by the CLI
// for operator commands during a run.
package keyboard

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"

	"github.com/stackvity/bsm-analyze/pkg/scheduler"
)

// ErrNotTerminal indicates that the input is not an interactive terminal.
var ErrNotTerminal = errors.New("input is not a terminal")

const bufferedKeys = 32

// Source is a non-blocking scheduler.KeySource fed by a background reader.
// The reader goroutine stays blocked in Read until the input closes; at
// process exit that is harmless.
type Source struct {
	keys chan rune
	done chan struct{}
	err  error
}

var _ scheduler.KeySource = (*Source)(nil)

// NewSource starts reading runes from r.
func NewSource(r io.Reader) *Source {
	s := &Source{
		keys: make(chan rune, bufferedKeys),
		done: make(chan struct{}),
	}
	go s.read(bufio.NewReader(r))
	return s
}

func (s *Source) read(r *bufio.Reader) {
	defer close(s.done)
	for {
		key, _, err := r.ReadRune()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.err = err
			}
			return
		}
		select {
		case s.keys <- key:
		default: // drop keys nobody polls for
		}
	}
}

// Poll implements scheduler.KeySource. It never blocks.
func (s *Source) Poll() (rune, bool) {
	select {
	case key := <-s.keys:
		return key, true
	default:
		return 0, false
	}
}

// Done is closed once the input is exhausted.
func (s *Source) Done() <-chan struct{} { return s.done }

// Err returns the read error that ended the input, if any. Valid after Done.
func (s *Source) Err() error {
	<-s.done
	return s.err
}

// Terminal puts a terminal into raw mode so single key presses are delivered
// without waiting for Enter.
type Terminal struct {
	*Source
	fd      int
	state   *term.State
	restore sync.Once
}

// OpenTerminal switches f to raw mode and starts reading keys from it.
// Restore must be called to give the terminal back.
func OpenTerminal(f *os.File) (*Terminal, error) {
	fd := int(f.Fd())
	if !term.IsTerminal(fd) {
		return nil, fmt.Errorf("%w: %s", ErrNotTerminal, f.Name())
	}
	state, err := term.MakeRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("could not switch %s to raw mode: %w", f.Name(), err)
	}
	return &Terminal{Source: NewSource(f), fd: fd, state: state}, nil
}

// Restore returns the terminal to the state it had before OpenTerminal.
// It is safe to call more than once.
func (t *Terminal) Restore() error {
	var err error
	t.restore.Do(func() {
		err = term.Restore(t.fd, t.state)
	})
	return err
}

// CRLF returns a writer that turns "\n" into "\r\n". Raw mode disables the
// terminal's own output translation, so anything printed while it is active
// goes through this.
func CRLF(w io.Writer) io.Writer {
	return &crlfWriter{w: w}
}

type crlfWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (c *crlfWriter) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := strings.ReplaceAll(string(p), "\r\n", "\n")
	if _, err := io.WriteString(c.w, strings.ReplaceAll(s, "\n", "\r\n")); err != nil {
		return 0, err
	}
	return len(p), nil
}

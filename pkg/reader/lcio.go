// Package reader provides scheduler.Reader implementations for event files.
package reader

import (
	"errors"
	"fmt"
	"io"

	"github.com/stackvity/bsm-analyze/pkg/scheduler"
	"go-hep.org/x/hep/lcio"
)

// LCIOReader streams lcio.Event records out of an LCIO (.slcio) file.
// Event returns a *lcio.Event for the record Next advanced to.
type LCIOReader struct {
	r    *lcio.Reader
	path string
	evt  *lcio.Event
	err  error
}

// NewLCIOReader returns an unopened reader. It is a scheduler.ReaderFactory.
func NewLCIOReader() scheduler.Reader {
	return &LCIOReader{}
}

// Open implements scheduler.Reader.
func (lr *LCIOReader) Open(path string) error {
	if lr.r != nil {
		return fmt.Errorf("lcio reader already open on %s", lr.path)
	}
	r, err := lcio.Open(path)
	if err != nil {
		return fmt.Errorf("could not open LCIO file %s: %w", path, err)
	}
	lr.r = r
	lr.path = path
	return nil
}

// Next implements scheduler.Reader.
func (lr *LCIOReader) Next() bool {
	if lr.r == nil || lr.err != nil {
		return false
	}
	if !lr.r.Next() {
		if err := lr.r.Err(); err != nil && !errors.Is(err, io.EOF) {
			lr.err = fmt.Errorf("could not read LCIO file %s: %w", lr.path, err)
		}
		return false
	}
	evt := lr.r.Event()
	lr.evt = &evt
	return true
}

// Event implements scheduler.Reader.
func (lr *LCIOReader) Event() scheduler.Event {
	return lr.evt
}

// Err implements scheduler.Reader.
func (lr *LCIOReader) Err() error {
	return lr.err
}

// Close implements scheduler.Reader.
func (lr *LCIOReader) Close() error {
	if lr.r == nil {
		return nil
	}
	err := lr.r.Close()
	lr.r = nil
	return err
}

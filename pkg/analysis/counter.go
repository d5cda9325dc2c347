// Package analysis contains the scheduler.Analyzer implementations shipped
// with bsm-analyze.
package analysis

import (
	"fmt"
	"io"

	"github.com/stackvity/bsm-analyze/pkg/scheduler"
)

// Counter counts events. It accepts any event type.
type Counter struct {
	Events int64
}

// NewCounter returns an empty Counter.
func NewCounter() *Counter { return &Counter{} }

// Process implements scheduler.Analyzer.
func (c *Counter) Process(scheduler.Event) { c.Events++ }

// Clone implements scheduler.Analyzer.
func (c *Counter) Clone() scheduler.Analyzer { return &Counter{} }

// Merge implements scheduler.Analyzer.
func (c *Counter) Merge(other scheduler.Analyzer) error {
	o, ok := other.(*Counter)
	if !ok {
		return fmt.Errorf("%w: counter cannot merge %T", scheduler.ErrMergeMismatch, other)
	}
	c.Events += o.Events
	return nil
}

// Print implements scheduler.Analyzer.
func (c *Counter) Print(w io.Writer) error {
	_, err := fmt.Fprintf(w, "events: %d\n", c.Events)
	return err
}

// Package testutil provides test doubles for the interfaces defined in
// pkg/scheduler. The testify mocks record calls and return configured values;
// the in-memory fakes (see memory.go) implement real behavior for
// scheduling tests that run many goroutines.
package testutil

import (
	"io"
	"time"

	"github.com/stackvity/bsm-analyze/pkg/scheduler"
	"github.com/stretchr/testify/mock"
)

// MockAnalyzer provides a mock implementation of the scheduler.Analyzer interface.
// Configure expectations using testify/mock methods (e.g., .On("Print", ...).Return(...)).
// Process is called from worker goroutines; tests that inspect calls while a
// run is active MUST synchronize themselves.
type MockAnalyzer struct {
	mock.Mock
}

// Process mocks the Process method.
func (m *MockAnalyzer) Process(evt scheduler.Event) {
	m.Called(evt)
}

// Clone mocks the Clone method.
func (m *MockAnalyzer) Clone() scheduler.Analyzer {
	args := m.Called()
	clone, _ := args.Get(0).(scheduler.Analyzer) // nil if the test configured no clone
	return clone
}

// Merge mocks the Merge method.
func (m *MockAnalyzer) Merge(other scheduler.Analyzer) error {
	args := m.Called(other)
	return args.Error(0)
}

// Print mocks the Print method.
func (m *MockAnalyzer) Print(w io.Writer) error {
	args := m.Called(w)
	return args.Error(0)
}

// MockReader provides a mock implementation of the scheduler.Reader interface.
type MockReader struct {
	mock.Mock
}

// Open mocks the Open method.
func (m *MockReader) Open(path string) error {
	args := m.Called(path)
	return args.Error(0)
}

// Next mocks the Next method.
func (m *MockReader) Next() bool {
	args := m.Called()
	return args.Bool(0)
}

// Event mocks the Event method.
func (m *MockReader) Event() scheduler.Event {
	args := m.Called()
	return args.Get(0)
}

// Err mocks the Err method.
func (m *MockReader) Err() error {
	args := m.Called()
	return args.Error(0)
}

// Close mocks the Close method.
func (m *MockReader) Close() error {
	args := m.Called()
	return args.Error(0)
}

// MockHooks provides a mock implementation of the scheduler.Hooks interface.
// IMPORTANT: hooks are invoked concurrently from worker goroutines. testify's
// mock.Mock is safe for that, but any extra state a test records is not.
type MockHooks struct {
	mock.Mock
}

// OnFileAssigned mocks the OnFileAssigned method.
func (m *MockHooks) OnFileAssigned(path string, workerID uint64) error {
	args := m.Called(path, workerID)
	return args.Error(0)
}

// OnFileStatusUpdate mocks the OnFileStatusUpdate method.
func (m *MockHooks) OnFileStatusUpdate(path string, status scheduler.FileStatus, message string, duration time.Duration) error {
	args := m.Called(path, status, message, duration)
	return args.Error(0)
}

// OnRunComplete mocks the OnRunComplete method.
func (m *MockHooks) OnRunComplete(report scheduler.Report) error {
	args := m.Called(report)
	return args.Error(0)
}

// MockNotifier provides a mock implementation of the scheduler.Notifier interface.
// Notify is called from the keyboard goroutine; use Forward to observe calls
// without reading mock state while the keyboard runs.
type MockNotifier struct {
	mock.Mock
}

// Notify mocks the Notify method.
func (m *MockNotifier) Notify(cmd scheduler.Command) {
	m.Called(cmd)
}

// Forward accepts any command and sends it on the returned channel, which is
// buffered for size commands.
func (m *MockNotifier) Forward(size int) <-chan scheduler.Command {
	cmds := make(chan scheduler.Command, size)
	m.On("Notify", mock.Anything).Run(func(args mock.Arguments) {
		cmds <- args.Get(0).(scheduler.Command)
	}).Return()
	return cmds
}

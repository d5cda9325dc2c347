package scheduler

// WorkerState describes where a Worker is in its lifecycle.
type WorkerState int

// Worker lifecycle states.
const (
	WorkerIdle WorkerState = iota
	WorkerRunning
	WorkerWaiting
	WorkerStopped
)

// String returns the lowercase name of the state.
func (s WorkerState) String() string {
	switch s {
	case WorkerIdle:
		return "idle"
	case WorkerRunning:
		return "running"
	case WorkerWaiting:
		return "waiting"
	case WorkerStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Command is an operator request delivered to the Controller through Notify.
type Command string

// Commands understood by Controller.Notify.
const (
	CommandQuit   Command = "quit"
	CommandStatus Command = "status"
	CommandHelp   Command = "help"
)

// FileStatus is the final outcome of one input file.
type FileStatus string

const (
	FileCompleted FileStatus = "completed"
	FileFailed    FileStatus = "failed"

	// FileInterrupted marks a file whose reading was cut short by a quit request.
	FileInterrupted FileStatus = "interrupted"

	// FileSkipped marks a file that was handed to a worker after a quit was
	// requested and therefore never read.
	FileSkipped FileStatus = "skipped"
)

// OutputFormat selects how the CLI prints the final result.
type OutputFormat string

const (
	OutputFormatText OutputFormat = "text"
	OutputFormatJSON OutputFormat = "json"
)

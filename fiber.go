package engine

// FiberExecutor runs an engine Task on an opaque coroutine root, allowing
// the task to unwind control back to the scheduler loop mid-execution
// (e.g. a handler written in blocking style that yields while awaiting
// more data) without blocking the engine goroutine itself.
//
// Run must not return until the task has either completed or yielded back
// to the caller in a state from which the engine can resume it on a later
// tick; a trivial implementation that simply calls t() is a valid
// FiberExecutor for handlers that never need to yield.
type FiberExecutor interface {
	Run(t Task)
}

// directExecutor is the default FiberExecutor: it calls the task inline,
// with no coroutine support. Used whenever WithFibers is not supplied.
type directExecutor struct{}

func (directExecutor) Run(t Task) { t() }

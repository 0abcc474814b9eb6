package job

// Result is the outcome of a single job invocation.
type Result struct {
	Status  Status
	Message string
	// Err is the error that caused a failure or cancellation, if any.
	Err error
	// Data is an optional value the job exposes to its dependents.
	Data any
}

// Success returns a successful result.
func Success(msg string) Result {
	return Result{Status: StatusSuccess, Message: msg}
}

// Failure returns a failed result carrying err.
func Failure(err error) Result {
	r := Result{Status: StatusFailure, Err: err}
	if err != nil {
		r.Message = err.Error()
	}
	return r
}

// Cancelled returns a cancelled result.
func Cancelled(msg string, err error) Result {
	return Result{Status: StatusCancelled, Message: msg, Err: err}
}

// CouldNotRun returns a result for a job that did not run.
func CouldNotRun(msg string) Result {
	return Result{Status: StatusCouldNotRun, Message: msg}
}

// WithData returns a copy of r carrying v as its Data.
func (r Result) WithData(v any) Result {
	r.Data = v
	return r
}

// OK reports whether the result is a success.
func (r Result) OK() bool { return r.Status == StatusSuccess }

// DependencyResult pairs a finished job's result with its descriptor. It is
// the unit delivered to a dependent job.
type DependencyResult struct {
	Result     Result
	Descriptor Descriptor
}

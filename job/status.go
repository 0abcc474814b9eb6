package job

import "fmt"

// Status is the outcome of a job or of a whole tick. Values are ordered by
// severity so that aggregation is a maximum.
type Status int

const (
	// StatusSuccess means the job ran and completed.
	StatusSuccess Status = iota
	// StatusCouldNotRun means the job declined to run or its prerequisites
	// were not met.
	StatusCouldNotRun
	// StatusCancelled means the job was cancelled before or while running.
	StatusCancelled
	// StatusFailure means the job failed.
	StatusFailure
)

var statusNames = [...]string{
	StatusSuccess:     "success",
	StatusCouldNotRun: "could_not_run",
	StatusCancelled:   "cancelled",
	StatusFailure:     "failure",
}

// String returns the snake_case name of the status.
func (s Status) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return fmt.Sprintf("status(%d)", int(s))
	}
	return statusNames[s]
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	if s < 0 || int(s) >= len(statusNames) {
		return nil, fmt.Errorf("job: invalid status %d", int(s))
	}
	return []byte(statusNames[s]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Status) UnmarshalText(text []byte) error {
	for i, name := range statusNames {
		if name == string(text) {
			*s = Status(i)
			return nil
		}
	}
	return fmt.Errorf("job: unknown status %q", text)
}

// Max returns the most severe of the given statuses. With no arguments it
// returns StatusSuccess.
func Max(statuses ...Status) Status {
	out := StatusSuccess
	for _, s := range statuses {
		if s > out {
			out = s
		}
	}
	return out
}

// Aggregate returns the most severe status among results.
func Aggregate(results []Result) Status {
	out := StatusSuccess
	for _, r := range results {
		if r.Status > out {
			out = r.Status
		}
	}
	return out
}

package jobhost

import "errors"

var (
	// Graph errors.
	ErrNoJobs              = errors.New("jobhost: domain has no jobs")
	ErrDuplicateJob        = errors.New("jobhost: duplicate job name")
	ErrDuplicateDependency = errors.New("jobhost: duplicate dependency")
	ErrUnknownDependency   = errors.New("jobhost: unknown dependency")
	ErrCyclicDependency    = errors.New("jobhost: cyclic dependency")

	// Registration errors.
	ErrUnknownJobType  = errors.New("jobhost: unknown job type")
	ErrDuplicateDomain = errors.New("jobhost: duplicate domain")
	ErrInvalidDomain   = errors.New("jobhost: invalid domain options")
	ErrNoSchedule      = errors.New("jobhost: no interval or schedule")

	// Runtime errors.
	ErrDomainNotFound  = errors.New("jobhost: domain not found")
	ErrTickInProgress  = errors.New("jobhost: tick already in progress")
	ErrAlreadyStarted  = errors.New("jobhost: dispatcher already started")
	ErrNotStarted      = errors.New("jobhost: dispatcher not started")
	ErrServiceNotFound = errors.New("jobhost: service not registered")
)

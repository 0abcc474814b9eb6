package job

import "context"

// Job is a unit of work dispatched as part of a domain tick.
type Job interface {
	// CanRun reports whether the job should run in this tick. An error is
	// treated as false.
	CanRun(ctx context.Context, jc *Context) (bool, error)

	// Run executes the job body.
	Run(ctx context.Context, jc *Context) (Result, error)
}

// Base can be embedded to get a CanRun that always answers true.
type Base struct{}

// CanRun implements Job.
func (Base) CanRun(context.Context, *Context) (bool, error) { return true, nil }

// Func adapts a plain function to the Job interface. CanRun always
// answers true.
type Func func(ctx context.Context, jc *Context) (Result, error)

// CanRun implements Job.
func (Func) CanRun(context.Context, *Context) (bool, error) { return true, nil }

// Run implements Job.
func (f Func) Run(ctx context.Context, jc *Context) (Result, error) { return f(ctx, jc) }

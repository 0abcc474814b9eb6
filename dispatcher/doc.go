// Package dispatcher runs each registered domain's job graph on a recurring
// schedule.
//
// A Dispatcher owns one loop per domain. Every tick passes two gates before
// the graph runs: the domain's feature flag, when set, must be enabled, and
// the domain's lease, when set, must be acquired without blocking. A held
// lease is renewed in the background for the duration of the tick, and
// losing it cancels every job still running in that tick.
//
// Within a tick each job runs in its own goroutine and waits for its
// dependencies' results. A job whose dependencies did not all succeed is
// short-circuited with their aggregated status unless it is marked
// RunAlways. The tick's status is the most severe status of its jobs.
//
// Ticks of one domain never overlap. A panic or error anywhere in a tick is
// recorded as a Failure and the loop carries on with the next tick.
package dispatcher

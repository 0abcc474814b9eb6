// Package ext defines the extension system for jobhost.
//
// Extensions are notified of dispatcher lifecycle events and can react to
// them by recording metrics, writing audit logs or alerting. Each lifecycle
// hook is a separate interface so extensions opt in only to the events they
// care about.
//
// # Implementing an Extension
//
//	type MyExtension struct{}
//
//	func (e *MyExtension) Name() string { return "my-extension" }
//
//	func (e *MyExtension) OnTickCompleted(ctx context.Context, domain string, status job.Status, elapsed time.Duration) error {
//	    log.Printf("%s finished with %s in %s", domain, status, elapsed)
//	    return nil
//	}
//
// # Hooks
//
//   - [TickCompleted]: a domain tick ran its job graph
//   - [TickSkipped]: a tick was skipped by the flag or lease gate
//   - [JobCompleted]: a job in the graph produced a result
//   - [LeaseAcquired]: a tick took its domain lease
//   - [LeaseLost]: a domain lease was lost while a tick was running
//   - [Shutdown]: the dispatcher is stopping
//
// Hook errors are logged and never affect scheduling.
package ext

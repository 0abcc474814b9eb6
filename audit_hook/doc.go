// Package audithook is a jobhost extension that writes tick, job and lease
// lifecycle events to an audit trail.
//
// Every hook emits a structured [AuditEvent] through the [Recorder]
// interface. Severity follows the outcome: info for normal operation,
// warning for skipped ticks and jobs that could not run, critical for
// failures and lost leases.
//
// # Logging recorder
//
//	dispatcher.WithExtension(audithook.New(audithook.LogRecorder(logger)))
//
// # Selective filtering
//
//	audithook.New(recorder,
//	    audithook.WithActions(
//	        audithook.ActionTickFailed,
//	        audithook.ActionLeaseLost,
//	    ),
//	)
package audithook

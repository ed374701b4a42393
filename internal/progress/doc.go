// Package progress provides the event primitives, non-blocking hub, and emitter
// interfaces the scheduler uses to report run progress. Events are batched on a
// background goroutine and fanned out to pluggable sinks such as Prometheus
// metrics, the live run summary, or the run repository.
package progress

// Package metrics records stage, build and dev-loop metrics.
//
// Components receive a Recorder through dependency injection and default to
// NoopRecorder, so no call site needs a nil check:
//
//	set := stages.New(table, mode, stages.Deps{Recorder: metrics.NoopRecorder{}})
//
// The dev server swaps in a PrometheusRecorder and exposes it on /metrics via
// HTTPHandler.
package metrics

// Package metrics provides publish run metrics.
//
// Components receive a Recorder through dependency injection and default to
// NoopRecorder, so metrics collection needs no nil checks at call sites:
//
//	p := pipeline.New(codec, procs, sink, pipeline.WithRecorder(metrics.NoopRecorder{}))
//
// When the CLI is given --metrics-file, a PrometheusRecorder backed by its
// own registry is injected and its state is written in the Prometheus text
// format once the run finishes (suitable for the node_exporter textfile
// collector).
package metrics

package metrics

import "time"

// ResultLabel enumerates per-post outcomes for counters.
type ResultLabel string

const (
	ResultPublished ResultLabel = "published"
	ResultSkipped   ResultLabel = "skipped"
	ResultFailed    ResultLabel = "failed"
)

// Stage names used for stage duration observations.
const (
	StageDecode       = "decode"
	StageCanonicalURL = "canonical_url"
	StageContent      = "content"
	StageSink         = "sink"
	StageAppData      = "app_data"
	StageLedger       = "ledger"
)

// Recorder defines observability hooks for publish runs. All methods must be
// safe to call concurrently.
type Recorder interface {
	ObserveStageDuration(stage string, d time.Duration)
	ObserveRunDuration(d time.Duration)
	IncPostResult(result ResultLabel)
	SetWorkers(n int)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveStageDuration(string, time.Duration) {}
func (NoopRecorder) ObserveRunDuration(time.Duration)           {}
func (NoopRecorder) IncPostResult(ResultLabel)                  {}
func (NoopRecorder) SetWorkers(int)                             {}

package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyPath        = "path"
	KeyTitle       = "title"
	KeyPublisherID = "publisher_id"
	KeyCanonical   = "canonical_url"
	KeyStage       = "stage"
	KeyDurationMS  = "duration_ms"
	KeyCount       = "count"
	KeyWorkers     = "workers"
	KeyError       = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func Path(p string) slog.Attr          { return slog.String(KeyPath, p) }
func Title(t string) slog.Attr         { return slog.String(KeyTitle, t) }
func PublisherID(id string) slog.Attr  { return slog.String(KeyPublisherID, id) }
func CanonicalURL(u string) slog.Attr  { return slog.String(KeyCanonical, u) }
func Stage(name string) slog.Attr      { return slog.String(KeyStage, name) }
func DurationMS(ms float64) slog.Attr  { return slog.Float64(KeyDurationMS, ms) }
func Count(n int) slog.Attr            { return slog.Int(KeyCount, n) }
func Workers(n int) slog.Attr          { return slog.Int(KeyWorkers, n) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}

package domain

import "time"

// SourceHistory aggregates per-source results across runs. It is written
// once at the end of a bulk run, never during it.
type SourceHistory struct {
	TotalDownloaded int       `json:"total_downloaded"`
	TotalFailed     int       `json:"total_failed"`
	LastDownload    time.Time `json:"last_download"`
	LastStatus      string    `json:"last_status"`
}

// SourceTally counts one run's results for a single source.
type SourceTally struct {
	Downloaded int
	Failed     int
}

// Status derives the per-run status string recorded into history.
func (t SourceTally) Status() string {
	switch {
	case t.Failed == 0:
		return "ok"
	case t.Downloaded > 0:
		return "partial"
	default:
		return "failed"
	}
}

// DownloadTracker is the crash-safe dedup and history store. Bulk runs use
// the file-backed implementation; single runs substitute a no-op so they
// leave no files behind.
type DownloadTracker interface {
	// IsDownloaded reports whether a dedup key completed in any prior run.
	IsDownloaded(key string) bool
	// MarkDownloaded durably records a key before the run advances.
	MarkDownloaded(key string) error
	// History returns the stored aggregate for a source.
	History(source string) (SourceHistory, bool)
	// Histories returns a copy of every stored source aggregate.
	Histories() map[string]SourceHistory
	// UpdateHistory merges one run's tallies and persists the result.
	UpdateHistory(tallies map[string]SourceTally, at time.Time) error
	Close() error
}

// RunArchiver persists finished run summaries for later inspection.
type RunArchiver interface {
	SaveRun(s *RunSummary) error
}

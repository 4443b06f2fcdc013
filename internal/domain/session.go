package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNoInput means extraction found nothing downloadable.
	ErrNoInput = errors.New("no downloadable URLs in input")
	// ErrRunActive means a run is already in flight; the engine executes
	// one run at a time.
	ErrRunActive = errors.New("a run is already active")
	// ErrNoRun means there is no active run to inspect or cancel.
	ErrNoRun = errors.New("no active run")
)

// RunMode selects the side-effect contract of a run.
type RunMode string

const (
	// ModeSingle downloads ad-hoc URLs and leaves no tracking or history
	// files behind, only the media itself.
	ModeSingle RunMode = "single"
	// ModeBulk processes collected source lists with dedup tracking,
	// history and post-run list pruning.
	ModeBulk RunMode = "bulk"
)

// RunOptions tunes one run. Zero values fall back to the loaded config.
type RunOptions struct {
	Mode       RunMode
	OutputDir  string
	Thorough   bool
	SkipRecent bool
}

// RunInput is everything a run starts from: free-form text to extract
// from, pre-parsed records, or both.
type RunInput struct {
	Text    string
	Records []LinkRecord
	Options RunOptions
}

// FailedURL records one URL that exhausted every backend.
type FailedURL struct {
	URL        string `json:"url"`
	Source     string `json:"source,omitempty"`
	Diagnostic string `json:"diagnostic"`
}

// RunSummary is the final report of a run. Success means no URL failed
// outright; a fully skipped run still counts as success.
type RunSummary struct {
	RunID      string      `json:"run_id"`
	Mode       RunMode     `json:"mode"`
	StartedAt  time.Time   `json:"started_at"`
	FinishedAt time.Time   `json:"finished_at"`
	Total      int         `json:"total"`
	Downloaded int         `json:"downloaded"`
	Skipped    int         `json:"skipped"`
	Failed     []FailedURL `json:"failed,omitempty"`
	Cancelled  bool        `json:"cancelled"`
	Success    bool        `json:"success"`
	Message    string      `json:"message"`
}

// Finalize stamps the end time and derives Success and Message.
func (s *RunSummary) Finalize(at time.Time) {
	s.FinishedAt = at
	s.Success = len(s.Failed) == 0 && !s.Cancelled
	switch {
	case s.Cancelled:
		s.Message = fmt.Sprintf("cancelled after %d of %d URLs (%d downloaded, %d skipped, %d failed)",
			s.Downloaded+s.Skipped+len(s.Failed), s.Total, s.Downloaded, s.Skipped, len(s.Failed))
	case len(s.Failed) > 0:
		s.Message = fmt.Sprintf("%d downloaded, %d skipped, %d failed of %d URLs",
			s.Downloaded, s.Skipped, len(s.Failed), s.Total)
	default:
		s.Message = fmt.Sprintf("%d downloaded, %d skipped of %d URLs",
			s.Downloaded, s.Skipped, s.Total)
	}
}

// Elapsed is the wall-clock duration of the run.
func (s *RunSummary) Elapsed() time.Duration {
	return s.FinishedAt.Sub(s.StartedAt)
}

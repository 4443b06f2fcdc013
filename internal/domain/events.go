package domain

import "time"

// ProgressEvent is one throttled progress sample for the URL currently
// downloading. Percent is -1 while the total size is unknown; consumers
// must not render a bar from it then. Speed and ETA are empty until two
// byte samples exist.
type ProgressEvent struct {
	RunID   string  `json:"run_id"`
	URL     string  `json:"url"`
	Line    string  `json:"line,omitempty"`
	Percent float64 `json:"percent"`
	Speed   string  `json:"speed,omitempty"`
	ETA     string  `json:"eta,omitempty"`
}

// URLStatus is the terminal state of one URL within a run.
type URLStatus string

const (
	StatusDownloaded URLStatus = "downloaded"
	StatusSkipped    URLStatus = "skipped"
	StatusFailed     URLStatus = "failed"
)

// CompletionNotice reports one URL reaching a terminal state.
type CompletionNotice struct {
	RunID      string        `json:"run_id"`
	URL        string        `json:"url"`
	Source     string        `json:"source,omitempty"`
	Index      int           `json:"index"`
	Total      int           `json:"total"`
	Status     URLStatus     `json:"status"`
	Downloader string        `json:"downloader,omitempty"`
	Diagnostic string        `json:"diagnostic,omitempty"`
	Elapsed    time.Duration `json:"elapsed,omitempty"`
}

// EventSink receives run lifecycle events. Implementations must be safe
// for calls from the run worker goroutine and must never panic into the
// engine; the engine guards them anyway.
type EventSink interface {
	Progress(e ProgressEvent)
	Completed(n CompletionNotice)
	RunFinished(s RunSummary)
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) Progress(ProgressEvent)     {}
func (NopSink) Completed(CompletionNotice) {}
func (NopSink) RunFinished(RunSummary)     {}

type multiSink []EventSink

func (m multiSink) Progress(e ProgressEvent) {
	for _, s := range m {
		s.Progress(e)
	}
}

func (m multiSink) Completed(n CompletionNotice) {
	for _, s := range m {
		s.Completed(n)
	}
}

func (m multiSink) RunFinished(sum RunSummary) {
	for _, s := range m {
		s.RunFinished(sum)
	}
}

// CombineSinks fans events out to several sinks. Nil entries are dropped.
func CombineSinks(sinks ...EventSink) EventSink {
	var out multiSink
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	if len(out) == 1 {
		return out[0]
	}
	return out
}

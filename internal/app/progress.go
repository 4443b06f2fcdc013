package app

import (
	"fmt"
	"sync"
	"time"

	"github.com/toseeq44/automation-fb-sub003/internal/domain"
)

// progressMinInterval throttles how often a reporter forwards samples;
// yt-dlp can tick many times per second.
const progressMinInterval = 250 * time.Millisecond

// progressReporter turns raw byte counters from a downloader into
// ProgressEvents: percent only when a real total is known, speed and ETA
// derived from consecutive samples. A panicking sink is swallowed so a
// misbehaving consumer can never kill a download.
type progressReporter struct {
	sink  domain.EventSink
	runID string
	url   string

	mu         sync.Mutex
	lastEmit   time.Time
	lastSample time.Time
	lastBytes  int64
	speed      float64 // bytes/sec, exponentially smoothed
}

func newProgressReporter(sink domain.EventSink, runID, url string) *progressReporter {
	return &progressReporter{sink: sink, runID: runID, url: url}
}

// Update is the domain.ProgressFunc handed to downloaders. It may be
// called from multiple pipe-scanning goroutines.
func (r *progressReporter) Update(line string, downloaded, total int64) {
	r.mu.Lock()

	now := time.Now()
	event := domain.ProgressEvent{
		RunID:   r.runID,
		URL:     r.url,
		Line:    line,
		Percent: -1,
	}

	if downloaded >= 0 {
		if !r.lastSample.IsZero() && downloaded > r.lastBytes {
			dt := now.Sub(r.lastSample).Seconds()
			if dt > 0 {
				instant := float64(downloaded-r.lastBytes) / dt
				if r.speed == 0 {
					r.speed = instant
				} else {
					r.speed = 0.7*r.speed + 0.3*instant
				}
			}
		}
		if downloaded != r.lastBytes || r.lastSample.IsZero() {
			r.lastBytes = downloaded
			r.lastSample = now
		}

		if total > 0 && downloaded <= total {
			event.Percent = float64(downloaded) / float64(total) * 100
		}
		if r.speed > 0 {
			event.Speed = formatByteRate(r.speed)
			if total > 0 && downloaded < total {
				event.ETA = formatETA(float64(total-downloaded) / r.speed)
			}
		}
	}

	// Byte samples are throttled; textual lines pass through as-is.
	if downloaded >= 0 && now.Sub(r.lastEmit) < progressMinInterval {
		r.mu.Unlock()
		return
	}
	r.lastEmit = now
	r.mu.Unlock()

	r.emit(event)
}

func (r *progressReporter) emit(event domain.ProgressEvent) {
	defer func() {
		// A progress consumer must never take down the run.
		_ = recover()
	}()
	r.sink.Progress(event)
}

func formatByteRate(bytesPerSec float64) string {
	switch {
	case bytesPerSec >= 1<<20:
		return fmt.Sprintf("%.1f MB/s", bytesPerSec/(1<<20))
	case bytesPerSec >= 1<<10:
		return fmt.Sprintf("%.1f KB/s", bytesPerSec/(1<<10))
	default:
		return fmt.Sprintf("%.0f B/s", bytesPerSec)
	}
}

func formatETA(seconds float64) string {
	if seconds < 0 {
		return ""
	}
	d := time.Duration(seconds) * time.Second
	if d >= time.Hour {
		return fmt.Sprintf("%dh%02dm", int(d.Hours()), int(d.Minutes())%60)
	}
	return fmt.Sprintf("%02d:%02d", int(d.Minutes()), int(d.Seconds())%60)
}

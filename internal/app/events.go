package app

import (
	"go.uber.org/zap"

	"github.com/toseeq44/automation-fb-sub003/internal/domain"
	"github.com/toseeq44/automation-fb-sub003/pkg/logger"
)

// LogSink mirrors run lifecycle events into the dated run log. Progress
// samples are not mirrored; the per-tool output logs already carry every
// line, and progress is for live consumers.
type LogSink struct {
	ml *logger.MultiLogger
}

// NewLogSink creates a sink backed by the multi-logger.
func NewLogSink(ml *logger.MultiLogger) *LogSink {
	return &LogSink{ml: ml}
}

func (s *LogSink) Progress(domain.ProgressEvent) {}

func (s *LogSink) Completed(n domain.CompletionNotice) {
	fields := []zap.Field{
		zap.String("run_id", n.RunID),
		zap.String("url", n.URL),
		zap.String("status", string(n.Status)),
		zap.Int("index", n.Index),
		zap.Int("total", n.Total),
	}
	if n.Source != "" {
		fields = append(fields, zap.String("source", n.Source))
	}
	if n.Downloader != "" {
		fields = append(fields, zap.String("downloader", n.Downloader))
	}
	if n.Elapsed > 0 {
		fields = append(fields, zap.Duration("elapsed", n.Elapsed))
	}
	if n.Status == domain.StatusFailed {
		fields = append(fields, zap.String("diagnostic", n.Diagnostic))
		s.ml.LogAppError("url failed", fields...)
	}
	s.ml.LogRunEvent("url "+string(n.Status), fields...)
}

func (s *LogSink) RunFinished(sum domain.RunSummary) {
	s.ml.LogRunEvent("run finished",
		zap.String("run_id", sum.RunID),
		zap.String("mode", string(sum.Mode)),
		zap.Int("total", sum.Total),
		zap.Int("downloaded", sum.Downloaded),
		zap.Int("skipped", sum.Skipped),
		zap.Int("failed", len(sum.Failed)),
		zap.Bool("cancelled", sum.Cancelled),
		zap.Bool("success", sum.Success),
		zap.Duration("elapsed", sum.Elapsed()),
	)
}

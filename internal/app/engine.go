package app

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/toseeq44/automation-fb-sub003/internal/domain"
	"github.com/toseeq44/automation-fb-sub003/internal/infrastructure"
)

// DownloaderFactory builds the tool registry for one run. logsDir is
// empty for single-mode runs, which disables the per-tool log files.
type DownloaderFactory func(logsDir string) map[string]domain.Downloader

// EngineDeps bundles the collaborators an Engine needs.
type EngineDeps struct {
	Downloaders DownloaderFactory
	Table       domain.StrategyTable
	Cookies     domain.CookieSource
	Classifier  domain.Classifier
	Tracker     domain.DownloadTracker
	Archiver    domain.RunArchiver
	Notifier    *infrastructure.NotificationService
	Sink        domain.EventSink
	Logger      *zap.Logger
}

// Engine orchestrates download runs. It executes one run at a time on a
// dedicated worker goroutine; everything scoped to a run (proxy rotation
// state, rate limiter stamps, progress reporters) lives on the session
// and dies with it.
type Engine struct {
	config      *domain.Config
	newRegistry DownloaderFactory
	table       domain.StrategyTable
	cookies     domain.CookieSource
	classifier  domain.Classifier
	tracker     domain.DownloadTracker
	archiver    domain.RunArchiver
	notifier    *infrastructure.NotificationService
	sink        domain.EventSink
	logger      *zap.Logger
	policy      retryPolicy

	mu      sync.Mutex
	current *session
}

// NewEngine creates an engine. Sink, Archiver and Notifier may be nil;
// Tracker may be nil when only single-mode runs are expected.
func NewEngine(config *domain.Config, deps EngineDeps) *Engine {
	sink := deps.Sink
	if sink == nil {
		sink = domain.NopSink{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	table := deps.Table
	if table == nil {
		table = domain.DefaultStrategyTable()
	}
	return &Engine{
		config:      config,
		newRegistry: deps.Downloaders,
		table:       table,
		cookies:     deps.Cookies,
		classifier:  deps.Classifier,
		tracker:     deps.Tracker,
		archiver:    deps.Archiver,
		notifier:    deps.Notifier,
		sink:        sink,
		logger:      logger,
		policy:      defaultRetryPolicy(&config.Download),
	}
}

// session carries the per-run state. A new session is built for every
// run so nothing leaks from one run into the next.
type session struct {
	summary     domain.RunSummary
	requests    []domain.DownloadRequest
	options     domain.RunOptions
	outputDir   string
	downloaders map[string]domain.Downloader
	pool        *infrastructure.ProxyPool
	limiter     *infrastructure.RateLimiter
	tracker     domain.DownloadTracker
	cancelled   atomic.Bool
	done        chan struct{}

	mu       sync.Mutex
	position int
	current  string
}

func (s *session) isDone() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

func (s *session) setCurrent(position int, url string) {
	s.mu.Lock()
	s.position = position
	s.current = url
	s.mu.Unlock()
}

func (s *session) noteSkipped() {
	s.mu.Lock()
	s.summary.Skipped++
	s.mu.Unlock()
}

func (s *session) noteDownloaded() {
	s.mu.Lock()
	s.summary.Downloaded++
	s.mu.Unlock()
}

func (s *session) noteFailed(f domain.FailedURL) {
	s.mu.Lock()
	s.summary.Failed = append(s.summary.Failed, f)
	s.mu.Unlock()
}

// RunStatus is a point-in-time view of the active run.
type RunStatus struct {
	RunID      string         `json:"run_id"`
	Mode       domain.RunMode `json:"mode"`
	StartedAt  time.Time      `json:"started_at"`
	Total      int            `json:"total"`
	Position   int            `json:"position"`
	CurrentURL string         `json:"current_url,omitempty"`
	Downloaded int            `json:"downloaded"`
	Skipped    int            `json:"skipped"`
	Failed     int            `json:"failed"`
	Cancelling bool           `json:"cancelling"`
}

// Start validates the input, claims the single run slot and launches the
// worker goroutine. It returns the run id immediately; completion is
// reported through the event sink, the archive and Wait.
func (e *Engine) Start(ctx context.Context, input domain.RunInput) (string, error) {
	s, err := e.prepare(input)
	if err != nil {
		return "", err
	}

	e.mu.Lock()
	if e.current != nil && !e.current.isDone() {
		e.mu.Unlock()
		return "", domain.ErrRunActive
	}
	e.current = s
	e.mu.Unlock()

	e.logger.Info("Run started",
		zap.String("run_id", s.summary.RunID),
		zap.String("mode", string(s.options.Mode)),
		zap.Int("urls", len(s.requests)),
		zap.String("output_dir", s.outputDir))

	go e.runSession(ctx, s)
	return s.summary.RunID, nil
}

// Run executes a run synchronously and returns its summary.
func (e *Engine) Run(ctx context.Context, input domain.RunInput) (*domain.RunSummary, error) {
	runID, err := e.Start(ctx, input)
	if err != nil {
		return nil, err
	}
	return e.Wait(runID)
}

// Wait blocks until the identified run finishes and returns its summary.
func (e *Engine) Wait(runID string) (*domain.RunSummary, error) {
	e.mu.Lock()
	s := e.current
	e.mu.Unlock()
	if s == nil || s.summary.RunID != runID {
		return nil, domain.ErrNoRun
	}
	<-s.done
	summary := s.summary
	return &summary, nil
}

// Cancel flags the active run to stop. The URL in flight is left to
// finish; the flag is honored between URLs and between retry attempts.
func (e *Engine) Cancel() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current == nil || e.current.isDone() {
		return domain.ErrNoRun
	}
	e.current.cancelled.Store(true)
	e.logger.Info("Run cancellation requested", zap.String("run_id", e.current.summary.RunID))
	return nil
}

// Snapshot reports the active run, if any.
func (e *Engine) Snapshot() (*RunStatus, bool) {
	e.mu.Lock()
	s := e.current
	e.mu.Unlock()
	if s == nil || s.isDone() {
		return nil, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return &RunStatus{
		RunID:      s.summary.RunID,
		Mode:       s.options.Mode,
		StartedAt:  s.summary.StartedAt,
		Total:      s.summary.Total,
		Position:   s.position,
		CurrentURL: s.current,
		Downloaded: s.summary.Downloaded,
		Skipped:    s.summary.Skipped,
		Failed:     len(s.summary.Failed),
		Cancelling: s.cancelled.Load(),
	}, true
}

// prepare runs every precondition and assembles the session. Nothing here
// has side effects beyond creating the output directory.
func (e *Engine) prepare(input domain.RunInput) (*session, error) {
	options := input.Options
	switch options.Mode {
	case domain.ModeSingle, domain.ModeBulk:
	case "":
		options.Mode = domain.ModeBulk
	default:
		return nil, fmt.Errorf("unknown run mode %q", options.Mode)
	}
	if options.OutputDir == "" {
		options.OutputDir = e.config.Download.OutputDir
	}
	options.Thorough = options.Thorough || e.config.Download.ForceAllBackends
	options.SkipRecent = options.SkipRecent || e.config.Download.SkipRecentWindow

	records := append([]domain.LinkRecord(nil), input.Records...)
	for _, u := range domain.ExtractURLs(input.Text) {
		records = append(records, domain.LinkRecord{URL: u})
	}
	requests := domain.BuildRequests(records)
	if len(requests) == 0 {
		return nil, domain.ErrNoInput
	}

	if err := infrastructure.EnsureOutputDir(options.OutputDir, e.config.Download.MinFreeSpaceMB); err != nil {
		return nil, err
	}

	tracker := e.tracker
	logsDir := e.config.Download.LogsDir
	if options.Mode == domain.ModeSingle {
		// Single mode leaves nothing behind but the media files.
		tracker = infrastructure.NopTracker{}
		logsDir = ""
	} else if tracker == nil {
		return nil, fmt.Errorf("bulk run requires a tracking store")
	}

	proxyLines := append([]string(nil), e.config.Proxy.Entries...)
	if e.config.Proxy.File != "" {
		fromFile, err := infrastructure.LoadProxyLines(e.config.Proxy.File)
		if err != nil {
			return nil, err
		}
		proxyLines = append(fromFile, proxyLines...)
	}
	pool, err := infrastructure.NewProxyPool(proxyLines)
	if err != nil {
		return nil, err
	}

	return &session{
		summary: domain.RunSummary{
			RunID:     uuid.NewString(),
			Mode:      options.Mode,
			StartedAt: time.Now(),
			Total:     len(requests),
		},
		requests:    requests,
		options:     options,
		outputDir:   options.OutputDir,
		downloaders: e.newRegistry(logsDir),
		pool:        pool,
		limiter:     infrastructure.NewRateLimiter(e.config.RateLimit.PerDomainInterval),
		tracker:     tracker,
		done:        make(chan struct{}),
	}, nil
}

// runSession is the run worker. It owns the session until done closes.
func (e *Engine) runSession(ctx context.Context, s *session) {
	defer close(s.done)

	tallies := map[string]domain.SourceTally{}
	doneKeys := map[string]map[string]struct{}{}
	recent := e.recentSources(s)

	for i, req := range s.requests {
		if s.cancelled.Load() || ctx.Err() != nil {
			break
		}
		s.setCurrent(i, req.CanonicalURL)

		if req.Source != "" {
			if _, ok := recent[req.Source]; ok {
				s.noteSkipped()
				e.emitCompleted(s, req, i, domain.StatusSkipped, "", "source downloaded recently", 0)
				continue
			}
		}

		if s.tracker.IsDownloaded(req.DedupKey) {
			s.noteSkipped()
			markDone(doneKeys, req)
			e.logger.Debug("Skipping already downloaded URL",
				zap.String("url", req.CanonicalURL),
				zap.String("key", req.DedupKey))
			e.emitCompleted(s, req, i, domain.StatusSkipped, "", "already downloaded", 0)
			continue
		}

		outcome, toolName := e.downloadURL(ctx, s, req)
		if outcome.Succeeded {
			if err := s.tracker.MarkDownloaded(req.DedupKey); err != nil {
				e.logger.Error("Failed to record download", zap.String("key", req.DedupKey), zap.Error(err))
			}
			s.noteDownloaded()
			if req.Source != "" {
				t := tallies[req.Source]
				t.Downloaded++
				tallies[req.Source] = t
			}
			markDone(doneKeys, req)
			e.logger.Info("Downloaded",
				zap.String("url", req.CanonicalURL),
				zap.String("downloader", toolName),
				zap.Duration("elapsed", outcome.Elapsed))
			e.emitCompleted(s, req, i, domain.StatusDownloaded, toolName, "", outcome.Elapsed)
			continue
		}

		s.noteFailed(domain.FailedURL{
			URL:        req.CanonicalURL,
			Source:     req.Source,
			Diagnostic: outcome.Diagnostic,
		})
		if req.Source != "" {
			t := tallies[req.Source]
			t.Failed++
			tallies[req.Source] = t
		}
		e.logger.Warn("All backends failed",
			zap.String("url", req.CanonicalURL),
			zap.String("diagnostic", lastLine(outcome.Diagnostic)))
		e.emitCompleted(s, req, i, domain.StatusFailed, toolName, outcome.Diagnostic, outcome.Elapsed)
	}

	s.mu.Lock()
	s.summary.Cancelled = s.cancelled.Load() || ctx.Err() != nil
	s.summary.Finalize(time.Now())
	summary := s.summary
	s.mu.Unlock()

	if s.options.Mode == domain.ModeBulk {
		e.finishBulk(s, &summary, tallies, doneKeys)
	}

	if e.notifier != nil {
		e.notifier.NotifyRunFinished(&summary)
	}
	e.emitRunFinished(summary)
	e.logger.Info("Run finished",
		zap.String("run_id", summary.RunID),
		zap.Bool("success", summary.Success),
		zap.Int("downloaded", summary.Downloaded),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", len(summary.Failed)),
		zap.Bool("cancelled", summary.Cancelled),
		zap.Duration("elapsed", summary.Elapsed()))
}

// finishBulk applies the end-of-run bookkeeping that only bulk runs get:
// history, source list pruning and the archive row.
func (e *Engine) finishBulk(s *session, summary *domain.RunSummary, tallies map[string]domain.SourceTally, doneKeys map[string]map[string]struct{}) {
	if len(tallies) > 0 {
		if err := s.tracker.UpdateHistory(tallies, summary.FinishedAt); err != nil {
			e.logger.Error("Failed to update history", zap.Error(err))
		}
	}
	for path, keys := range doneKeys {
		removed, err := infrastructure.PruneSourceList(path, keys)
		if err != nil {
			e.logger.Error("Failed to prune source list", zap.String("path", path), zap.Error(err))
			continue
		}
		if removed > 0 {
			e.logger.Info("Pruned source list", zap.String("path", path), zap.Int("removed", removed))
		}
	}
	if e.archiver != nil {
		if err := e.archiver.SaveRun(summary); err != nil {
			e.logger.Error("Failed to archive run", zap.Error(err))
		}
	}
}

// recentSources returns the sources to skip because they completed a
// download inside the recency window.
func (e *Engine) recentSources(s *session) map[string]struct{} {
	if !s.options.SkipRecent || s.options.Mode != domain.ModeBulk {
		return nil
	}
	window := e.config.Download.RecentWindow
	if window <= 0 {
		return nil
	}
	out := map[string]struct{}{}
	for _, req := range s.requests {
		if req.Source == "" {
			continue
		}
		if _, dup := out[req.Source]; dup {
			continue
		}
		h, ok := s.tracker.History(req.Source)
		if ok && !h.LastDownload.IsZero() && time.Since(h.LastDownload) < window {
			out[req.Source] = struct{}{}
		}
	}
	if len(out) > 0 {
		e.logger.Info("Skipping recently downloaded sources", zap.Int("sources", len(out)))
	}
	return out
}

// downloadURL walks the strategy chain for one URL until a backend
// succeeds. Unavailable tools are skipped without consuming any retry
// budget; the outcome of the last backend that actually ran is returned.
func (e *Engine) downloadURL(ctx context.Context, s *session, req domain.DownloadRequest) (*domain.FetchOutcome, string) {
	names := e.table.DownloadersFor(req.Platform, s.options.Thorough)

	var (
		last     *domain.FetchOutcome
		lastName string
	)
	for _, name := range names {
		if s.cancelled.Load() || ctx.Err() != nil {
			break
		}
		d, ok := s.downloaders[name]
		if !ok {
			e.logger.Warn("Strategy references unregistered downloader", zap.String("downloader", name))
			continue
		}
		if err := d.Available(); err != nil {
			e.logger.Warn("Downloader unavailable, skipping",
				zap.String("downloader", name),
				zap.Error(err))
			continue
		}

		out := e.runDownloader(ctx, s, d, req)
		last, lastName = out, name
		if out.Succeeded {
			return out, name
		}
		e.logger.Info("Backend exhausted, moving on",
			zap.String("url", req.CanonicalURL),
			zap.String("downloader", name))
	}

	if last == nil {
		last = &domain.FetchOutcome{
			Diagnostic: "no usable downloader backend for " + req.CanonicalURL,
		}
	}
	return last, lastName
}

func markDone(doneKeys map[string]map[string]struct{}, req domain.DownloadRequest) {
	if req.SourcePath == "" {
		return
	}
	keys, ok := doneKeys[req.SourcePath]
	if !ok {
		keys = map[string]struct{}{}
		doneKeys[req.SourcePath] = keys
	}
	keys[req.DedupKey] = struct{}{}
}

func (e *Engine) emitCompleted(s *session, req domain.DownloadRequest, index int, status domain.URLStatus, tool, diagnostic string, elapsed time.Duration) {
	defer func() { _ = recover() }()
	e.sink.Completed(domain.CompletionNotice{
		RunID:      s.summary.RunID,
		URL:        req.CanonicalURL,
		Source:     req.Source,
		Index:      index,
		Total:      s.summary.Total,
		Status:     status,
		Downloader: tool,
		Diagnostic: diagnostic,
		Elapsed:    elapsed,
	})
}

func (e *Engine) emitRunFinished(summary domain.RunSummary) {
	defer func() { _ = recover() }()
	e.sink.RunFinished(summary)
}

// lastLine keeps log lines readable; the full diagnostic still travels
// in the completion notice and the failure record.
func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return lines[len(lines)-1]
}

package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toseeq44/automation-fb-sub003/internal/domain"
	"github.com/toseeq44/automation-fb-sub003/internal/infrastructure"
)

func (c *captureSink) completedNotices() []domain.CompletionNotice {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.CompletionNotice(nil), c.completed...)
}

func (c *captureSink) finishedRuns() []domain.RunSummary {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.RunSummary(nil), c.finished...)
}

// scriptedDownloader returns canned outcomes in call order, repeating the
// last one once the script runs out, and records every job it was given.
type scriptedDownloader struct {
	name     string
	availErr error
	started  chan struct{} // optional, signalled on every Fetch

	mu       sync.Mutex
	jobs     []domain.FetchJob
	outcomes []domain.FetchOutcome
}

func (d *scriptedDownloader) Name() string     { return d.name }
func (d *scriptedDownloader) Available() error { return d.availErr }

func (d *scriptedDownloader) Fetch(_ context.Context, job domain.FetchJob) *domain.FetchOutcome {
	if d.started != nil {
		select {
		case d.started <- struct{}{}:
		default:
		}
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.jobs = append(d.jobs, job)
	if len(d.outcomes) == 0 {
		return &domain.FetchOutcome{Succeeded: true}
	}
	i := len(d.jobs) - 1
	if i >= len(d.outcomes) {
		i = len(d.outcomes) - 1
	}
	out := d.outcomes[i]
	return &out
}

func (d *scriptedDownloader) calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.jobs)
}

func (d *scriptedDownloader) recordedJobs() []domain.FetchJob {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]domain.FetchJob(nil), d.jobs...)
}

func succeed() domain.FetchOutcome { return domain.FetchOutcome{Succeeded: true} }
func fail(diagnostic string) domain.FetchOutcome {
	return domain.FetchOutcome{Succeeded: false, Diagnostic: diagnostic}
}

// gatedDownloader blocks inside Fetch until the test releases it, so tests
// can act while a URL is provably in flight.
type gatedDownloader struct {
	name    string
	started chan struct{}
	proceed chan struct{}

	mu    sync.Mutex
	calls int
}

func newGatedDownloader(name string) *gatedDownloader {
	return &gatedDownloader{
		name:    name,
		started: make(chan struct{}, 16),
		proceed: make(chan struct{}),
	}
}

func (d *gatedDownloader) Name() string     { return d.name }
func (d *gatedDownloader) Available() error { return nil }

func (d *gatedDownloader) Fetch(context.Context, domain.FetchJob) *domain.FetchOutcome {
	d.mu.Lock()
	d.calls++
	d.mu.Unlock()
	d.started <- struct{}{}
	<-d.proceed
	return &domain.FetchOutcome{Succeeded: true}
}

func (d *gatedDownloader) callCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

type captureArchiver struct {
	mu   sync.Mutex
	runs []domain.RunSummary
}

func (a *captureArchiver) SaveRun(s *domain.RunSummary) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.runs = append(a.runs, *s)
	return nil
}

func (a *captureArchiver) savedRuns() []domain.RunSummary {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]domain.RunSummary(nil), a.runs...)
}

func testConfig(t *testing.T) *domain.Config {
	t.Helper()
	cfg := domain.DefaultConfig()
	cfg.Download.OutputDir = t.TempDir()
	cfg.Download.DataDir = t.TempDir()
	cfg.Download.CookiesDir = t.TempDir()
	cfg.Download.LogsDir = t.TempDir()
	cfg.Download.MinFreeSpaceMB = 0
	cfg.Download.MaxRetries = 0
	cfg.Download.RetryDelay = time.Millisecond
	cfg.RateLimit.PerDomainInterval = 0
	cfg.Notification.Enabled = false
	return cfg
}

func newTestTracker(t *testing.T, cfg *domain.Config) *infrastructure.Tracker {
	t.Helper()
	tracker, err := infrastructure.NewTracker(cfg.Download.DataDir)
	require.NoError(t, err)
	t.Cleanup(func() { tracker.Close() })
	return tracker
}

func registryOf(tools ...domain.Downloader) DownloaderFactory {
	return func(string) map[string]domain.Downloader {
		out := map[string]domain.Downloader{}
		for _, d := range tools {
			out[d.Name()] = d
		}
		return out
	}
}

func TestEngineRunBulkHappyPath(t *testing.T) {
	cfg := testConfig(t)
	tracker := newTestTracker(t, cfg)
	ytdlp := &scriptedDownloader{name: domain.ToolYTDLP}
	sink := &captureSink{}

	e := NewEngine(cfg, EngineDeps{
		Downloaders: registryOf(ytdlp),
		Classifier:  infrastructure.NewFailureClassifier(nil, nil),
		Tracker:     tracker,
		Sink:        sink,
	})

	input := domain.RunInput{
		Text: "https://x.com/user/status/111\nhttps://x.com/user/status/222\nhttps://x.com/user/status/111?utm_source=mail",
	}
	summary, err := e.Run(context.Background(), input)
	require.NoError(t, err)

	assert.True(t, summary.Success)
	assert.Equal(t, 2, summary.Total, "duplicate keys must collapse before the run starts")
	assert.Equal(t, 2, summary.Downloaded)
	assert.Equal(t, domain.ModeBulk, summary.Mode, "mode defaults to bulk")
	assert.Empty(t, summary.Failed)
	assert.Equal(t, 2, ytdlp.calls())

	notices := sink.completedNotices()
	require.Len(t, notices, 2)
	for _, n := range notices {
		assert.Equal(t, domain.StatusDownloaded, n.Status)
		assert.Equal(t, domain.ToolYTDLP, n.Downloader)
	}
	require.Len(t, sink.finishedRuns(), 1)

	data, err := os.ReadFile(filepath.Join(cfg.Download.DataDir, "downloaded.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "x:111")
	assert.Contains(t, string(data), "x:222")

	// The same input again is fully deduplicated by the tracker.
	again, err := e.Run(context.Background(), input)
	require.NoError(t, err)
	assert.True(t, again.Success)
	assert.Equal(t, 2, again.Skipped)
	assert.Equal(t, 0, again.Downloaded)
	assert.Equal(t, 2, ytdlp.calls(), "no new tool invocations for known keys")
}

func TestEngineRecordsDiagnosticOfLastBackend(t *testing.T) {
	cfg := testConfig(t)
	ytdlp := &scriptedDownloader{name: domain.ToolYTDLP, outcomes: []domain.FetchOutcome{fail("connection reset")}}
	gallerydl := &scriptedDownloader{name: domain.ToolGalleryDL, outcomes: []domain.FetchOutcome{fail("no extractor matched")}}
	sink := &captureSink{}

	e := NewEngine(cfg, EngineDeps{
		Downloaders: registryOf(ytdlp, gallerydl),
		Classifier:  infrastructure.NewFailureClassifier(nil, nil),
		Tracker:     newTestTracker(t, cfg),
		Sink:        sink,
	})

	summary, err := e.Run(context.Background(), domain.RunInput{Text: "https://x.com/u/status/9"})
	require.NoError(t, err)

	assert.False(t, summary.Success)
	require.Len(t, summary.Failed, 1)
	assert.Equal(t, "no extractor matched", summary.Failed[0].Diagnostic)
	assert.Equal(t, 1, ytdlp.calls())
	assert.Equal(t, 1, gallerydl.calls())

	notices := sink.completedNotices()
	require.Len(t, notices, 1)
	assert.Equal(t, domain.StatusFailed, notices[0].Status)
	assert.Equal(t, domain.ToolGalleryDL, notices[0].Downloader)
	assert.NotEmpty(t, notices[0].Diagnostic)

	key := domain.DedupKey("https://x.com/u/status/9")
	assert.False(t, e.tracker.IsDownloaded(key), "failed URLs must stay eligible for the next run")
}

func TestEngineSingleModeLeavesNoTrackingFiles(t *testing.T) {
	cfg := testConfig(t)
	ytdlp := &scriptedDownloader{name: domain.ToolYTDLP}
	archiver := &captureArchiver{}

	var gotLogsDir string
	factory := func(logsDir string) map[string]domain.Downloader {
		gotLogsDir = logsDir
		return map[string]domain.Downloader{ytdlp.Name(): ytdlp}
	}

	e := NewEngine(cfg, EngineDeps{
		Downloaders: factory,
		Classifier:  infrastructure.NewFailureClassifier(nil, nil),
		Archiver:    archiver,
	})

	input := domain.RunInput{
		Text:    "https://youtu.be/abc123",
		Options: domain.RunOptions{Mode: domain.ModeSingle},
	}
	summary, err := e.Run(context.Background(), input)
	require.NoError(t, err)
	require.True(t, summary.Success)
	assert.Equal(t, "", gotLogsDir, "single mode must not write tool logs")

	entries, err := os.ReadDir(cfg.Download.DataDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "single mode must not create tracking files")
	assert.Empty(t, archiver.savedRuns(), "single runs are not archived")

	// Without tracking there is no dedup either.
	_, err = e.Run(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, 2, ytdlp.calls())
}

func TestEngineBulkWritesHistoryPrunesAndArchives(t *testing.T) {
	cfg := testConfig(t)
	tracker := newTestTracker(t, cfg)
	archiver := &captureArchiver{}

	listDir := t.TempDir()
	listPath := filepath.Join(listDir, "queue.txt")
	require.NoError(t, os.WriteFile(listPath,
		[]byte("https://x.com/a/status/111\nhttps://x.com/a/status/222\n"), 0o644))
	records, err := infrastructure.LoadLinkRecords(listPath)
	require.NoError(t, err)
	require.Len(t, records, 2)

	ytdlp := &scriptedDownloader{name: domain.ToolYTDLP, outcomes: []domain.FetchOutcome{
		succeed(),
		fail("no video could be found"),
	}}

	e := NewEngine(cfg, EngineDeps{
		Downloaders: registryOf(ytdlp),
		Classifier:  infrastructure.NewFailureClassifier(nil, nil),
		Tracker:     tracker,
		Archiver:    archiver,
	})

	summary, err := e.Run(context.Background(), domain.RunInput{Records: records})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Downloaded)
	require.Len(t, summary.Failed, 1)
	assert.Equal(t, "queue", summary.Failed[0].Source)

	h, ok := tracker.History("queue")
	require.True(t, ok)
	assert.Equal(t, 1, h.TotalDownloaded)
	assert.Equal(t, 1, h.TotalFailed)
	assert.Equal(t, "partial", h.LastStatus)
	assert.WithinDuration(t, time.Now(), h.LastDownload, time.Minute)

	data, err := os.ReadFile(listPath)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "111", "downloaded lines are pruned from the list")
	assert.Contains(t, string(data), "222", "failed lines stay for the next run")

	saved := archiver.savedRuns()
	require.Len(t, saved, 1)
	assert.Equal(t, summary.RunID, saved[0].RunID)
	assert.Equal(t, 1, saved[0].Downloaded)
}

func TestEngineSkipsRecentSources(t *testing.T) {
	cfg := testConfig(t)
	cfg.Download.RecentWindow = time.Hour
	tracker := newTestTracker(t, cfg)
	require.NoError(t, tracker.UpdateHistory(
		map[string]domain.SourceTally{"queue": {Downloaded: 3}}, time.Now()))

	listDir := t.TempDir()
	listPath := filepath.Join(listDir, "queue.txt")
	require.NoError(t, os.WriteFile(listPath, []byte("https://x.com/a/status/111\n"), 0o644))
	records, err := infrastructure.LoadLinkRecords(listPath)
	require.NoError(t, err)

	ytdlp := &scriptedDownloader{name: domain.ToolYTDLP}
	sink := &captureSink{}

	e := NewEngine(cfg, EngineDeps{
		Downloaders: registryOf(ytdlp),
		Classifier:  infrastructure.NewFailureClassifier(nil, nil),
		Tracker:     tracker,
		Sink:        sink,
	})

	summary, err := e.Run(context.Background(), domain.RunInput{
		Records: records,
		Options: domain.RunOptions{SkipRecent: true},
	})
	require.NoError(t, err)

	assert.True(t, summary.Success)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 0, ytdlp.calls(), "recent sources are not attempted")

	notices := sink.completedNotices()
	require.Len(t, notices, 1)
	assert.Equal(t, domain.StatusSkipped, notices[0].Status)
	assert.Contains(t, notices[0].Diagnostic, "recently")

	data, err := os.ReadFile(listPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "111", "recency skips must not prune the list")
}

func TestEngineCancelStopsBetweenURLs(t *testing.T) {
	cfg := testConfig(t)
	gated := newGatedDownloader(domain.ToolYTDLP)
	sink := &captureSink{}

	e := NewEngine(cfg, EngineDeps{
		Downloaders: registryOf(gated),
		Classifier:  infrastructure.NewFailureClassifier(nil, nil),
		Tracker:     newTestTracker(t, cfg),
		Sink:        sink,
	})

	runID, err := e.Start(context.Background(), domain.RunInput{
		Text: "https://x.com/u/status/1\nhttps://x.com/u/status/2\nhttps://x.com/u/status/3",
	})
	require.NoError(t, err)

	<-gated.started // first URL is now in flight

	status, ok := e.Snapshot()
	require.True(t, ok)
	assert.Equal(t, runID, status.RunID)
	assert.Equal(t, 3, status.Total)
	assert.Equal(t, "https://x.com/u/status/1", status.CurrentURL)

	require.NoError(t, e.Cancel())
	status, ok = e.Snapshot()
	require.True(t, ok)
	assert.True(t, status.Cancelling)

	close(gated.proceed) // let the in-flight URL finish

	summary, err := e.Wait(runID)
	require.NoError(t, err)
	assert.True(t, summary.Cancelled)
	assert.False(t, summary.Success)
	assert.Equal(t, 1, summary.Downloaded, "the in-flight URL runs to completion")
	assert.Equal(t, 1, gated.callCount(), "no further URL may start after cancel")
	assert.Contains(t, summary.Message, "cancelled")

	_, ok = e.Snapshot()
	assert.False(t, ok, "no active run after completion")
}

func TestEngineRejectsConcurrentRuns(t *testing.T) {
	cfg := testConfig(t)
	gated := newGatedDownloader(domain.ToolYTDLP)

	e := NewEngine(cfg, EngineDeps{
		Downloaders: registryOf(gated),
		Classifier:  infrastructure.NewFailureClassifier(nil, nil),
		Tracker:     newTestTracker(t, cfg),
	})

	runID, err := e.Start(context.Background(), domain.RunInput{Text: "https://x.com/u/status/1"})
	require.NoError(t, err)
	<-gated.started

	_, err = e.Start(context.Background(), domain.RunInput{Text: "https://x.com/u/status/2"})
	assert.ErrorIs(t, err, domain.ErrRunActive)

	close(gated.proceed)
	_, err = e.Wait(runID)
	require.NoError(t, err)

	// The slot frees up once the run finishes.
	summary, err := e.Run(context.Background(), domain.RunInput{Text: "https://x.com/u/status/2"})
	require.NoError(t, err)
	assert.True(t, summary.Success)
}

func TestEngineInputValidation(t *testing.T) {
	cfg := testConfig(t)
	e := NewEngine(cfg, EngineDeps{
		Downloaders: registryOf(&scriptedDownloader{name: domain.ToolYTDLP}),
		Classifier:  infrastructure.NewFailureClassifier(nil, nil),
		Tracker:     newTestTracker(t, cfg),
	})

	_, err := e.Run(context.Background(), domain.RunInput{Text: "no links here, just words"})
	assert.ErrorIs(t, err, domain.ErrNoInput)

	_, err = e.Run(context.Background(), domain.RunInput{
		Text:    "https://x.com/u/status/1",
		Options: domain.RunOptions{Mode: "turbo"},
	})
	assert.Error(t, err)

	assert.ErrorIs(t, e.Cancel(), domain.ErrNoRun)
	_, err = e.Wait("no-such-run")
	assert.ErrorIs(t, err, domain.ErrNoRun)
	_, ok := e.Snapshot()
	assert.False(t, ok)
}

func TestEngineSkipsUnavailableBackend(t *testing.T) {
	cfg := testConfig(t)
	ytdlp := &scriptedDownloader{name: domain.ToolYTDLP, availErr: errors.New("yt-dlp: executable not found")}
	gallerydl := &scriptedDownloader{name: domain.ToolGalleryDL}
	sink := &captureSink{}

	e := NewEngine(cfg, EngineDeps{
		Downloaders: registryOf(ytdlp, gallerydl),
		Classifier:  infrastructure.NewFailureClassifier(nil, nil),
		Tracker:     newTestTracker(t, cfg),
		Sink:        sink,
	})

	summary, err := e.Run(context.Background(), domain.RunInput{Text: "https://x.com/u/status/5"})
	require.NoError(t, err)

	assert.True(t, summary.Success)
	assert.Equal(t, 0, ytdlp.calls(), "unavailable tools must not be invoked")
	assert.Equal(t, 1, gallerydl.calls())

	notices := sink.completedNotices()
	require.Len(t, notices, 1)
	assert.Equal(t, domain.ToolGalleryDL, notices[0].Downloader)
}

func TestEngineThoroughWalksFullChain(t *testing.T) {
	cfg := testConfig(t)
	ytdlp := &scriptedDownloader{name: domain.ToolYTDLP, outcomes: []domain.FetchOutcome{fail("boom")}}
	gallerydl := &scriptedDownloader{name: domain.ToolGalleryDL, outcomes: []domain.FetchOutcome{fail("boom")}}
	youget := &scriptedDownloader{name: domain.ToolYouGet, outcomes: []domain.FetchOutcome{fail("boom")}}

	deps := EngineDeps{
		Downloaders: registryOf(ytdlp, gallerydl, youget),
		Classifier:  infrastructure.NewFailureClassifier(nil, nil),
		Tracker:     newTestTracker(t, cfg),
	}
	input := "https://www.facebook.com/watch?v=123456"

	e := NewEngine(cfg, deps)
	_, err := e.Run(context.Background(), domain.RunInput{Text: input})
	require.NoError(t, err)
	assert.Equal(t, 1, ytdlp.calls())
	assert.Equal(t, 1, gallerydl.calls())
	assert.Equal(t, 0, youget.calls(), "normal runs stop after two backends")

	_, err = e.Run(context.Background(), domain.RunInput{
		Text:    input,
		Options: domain.RunOptions{Thorough: true},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, youget.calls(), "thorough runs walk the whole chain")
}

func TestEngineForceAllBackendsConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Download.ForceAllBackends = true
	ytdlp := &scriptedDownloader{name: domain.ToolYTDLP, outcomes: []domain.FetchOutcome{fail("boom")}}
	gallerydl := &scriptedDownloader{name: domain.ToolGalleryDL, outcomes: []domain.FetchOutcome{fail("boom")}}
	youget := &scriptedDownloader{name: domain.ToolYouGet, outcomes: []domain.FetchOutcome{fail("boom")}}

	e := NewEngine(cfg, EngineDeps{
		Downloaders: registryOf(ytdlp, gallerydl, youget),
		Classifier:  infrastructure.NewFailureClassifier(nil, nil),
		Tracker:     newTestTracker(t, cfg),
	})

	_, err := e.Run(context.Background(), domain.RunInput{Text: "https://www.facebook.com/watch?v=99"})
	require.NoError(t, err)
	assert.Equal(t, 1, youget.calls(), "config flag forces the full chain")
}

type explodingSink struct{}

func (explodingSink) Progress(domain.ProgressEvent)     { panic("consumer bug") }
func (explodingSink) Completed(domain.CompletionNotice) { panic("consumer bug") }
func (explodingSink) RunFinished(domain.RunSummary)     { panic("consumer bug") }

func TestEnginePanickySinkDoesNotKillRun(t *testing.T) {
	cfg := testConfig(t)
	e := NewEngine(cfg, EngineDeps{
		Downloaders: registryOf(&scriptedDownloader{name: domain.ToolYTDLP}),
		Classifier:  infrastructure.NewFailureClassifier(nil, nil),
		Tracker:     newTestTracker(t, cfg),
		Sink:        explodingSink{},
	})

	summary, err := e.Run(context.Background(), domain.RunInput{Text: "https://x.com/u/status/7"})
	require.NoError(t, err)
	assert.True(t, summary.Success)
}

func TestEngineOutputDirOverride(t *testing.T) {
	cfg := testConfig(t)
	override := filepath.Join(t.TempDir(), "elsewhere")
	ytdlp := &scriptedDownloader{name: domain.ToolYTDLP}

	e := NewEngine(cfg, EngineDeps{
		Downloaders: registryOf(ytdlp),
		Classifier:  infrastructure.NewFailureClassifier(nil, nil),
		Tracker:     newTestTracker(t, cfg),
	})

	_, err := e.Run(context.Background(), domain.RunInput{
		Text:    "https://x.com/u/status/8",
		Options: domain.RunOptions{OutputDir: override},
	})
	require.NoError(t, err)

	jobs := ytdlp.recordedJobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, override, jobs[0].OutputDir)
	_, statErr := os.Stat(override)
	assert.NoError(t, statErr, "the override directory is created up front")
}

func TestLastLine(t *testing.T) {
	assert.Equal(t, "final", lastLine("first\nsecond\nfinal\n"))
	assert.Equal(t, "only", lastLine("only"))
	assert.Equal(t, "", lastLine(""))
}

func TestEngineRunReportsMessage(t *testing.T) {
	cfg := testConfig(t)
	e := NewEngine(cfg, EngineDeps{
		Downloaders: registryOf(&scriptedDownloader{name: domain.ToolYTDLP}),
		Classifier:  infrastructure.NewFailureClassifier(nil, nil),
		Tracker:     newTestTracker(t, cfg),
	})

	summary, err := e.Run(context.Background(), domain.RunInput{Text: "https://x.com/u/status/77"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(summary.Message, "1 downloaded"))
	assert.False(t, summary.FinishedAt.IsZero())
	assert.GreaterOrEqual(t, summary.Elapsed(), time.Duration(0))
}

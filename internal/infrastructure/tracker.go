package infrastructure

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/toseeq44/automation-fb-sub003/internal/domain"
)

const (
	trackerLogName  = "downloaded.txt"
	historyFileName = "history.json"
)

// Tracker is the file-backed dedup and history store for bulk runs.
// Completed dedup keys go to an append-only text log, one key per line,
// flushed to disk before the run moves on, so an interrupted run never
// re-downloads what already finished. Per-source history lives in a JSON
// file rewritten atomically once per run.
type Tracker struct {
	mu          sync.Mutex
	dataDir     string
	seen        map[string]struct{}
	logFile     *os.File
	historyPath string
	history     map[string]domain.SourceHistory
}

// NewTracker loads (or creates) the tracking state under dataDir.
func NewTracker(dataDir string) (*Tracker, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}

	t := &Tracker{
		dataDir:     dataDir,
		seen:        make(map[string]struct{}),
		historyPath: filepath.Join(dataDir, historyFileName),
		history:     make(map[string]domain.SourceHistory),
	}

	logPath := filepath.Join(dataDir, trackerLogName)
	if err := t.loadLog(logPath); err != nil {
		return nil, err
	}

	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open tracking log: %w", err)
	}
	t.logFile = f

	if err := t.loadHistory(); err != nil {
		f.Close()
		return nil, err
	}
	return t, nil
}

func (t *Tracker) loadLog(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to open tracking log: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		key := strings.TrimSpace(sc.Text())
		if key != "" {
			t.seen[key] = struct{}{}
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("failed to read tracking log: %w", err)
	}
	return nil
}

func (t *Tracker) loadHistory() error {
	data, err := os.ReadFile(t.historyPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read history: %w", err)
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, &t.history); err != nil {
		return fmt.Errorf("failed to parse history: %w", err)
	}
	return nil
}

// IsDownloaded reports whether the key finished in this or any prior run.
func (t *Tracker) IsDownloaded(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.seen[key]
	return ok
}

// MarkDownloaded records the key in memory and on disk, syncing before
// returning so a crash cannot lose it.
func (t *Tracker) MarkDownloaded(key string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, dup := t.seen[key]; dup {
		return nil
	}
	if _, err := t.logFile.WriteString(key + "\n"); err != nil {
		return fmt.Errorf("failed to append tracking log: %w", err)
	}
	if err := t.logFile.Sync(); err != nil {
		return fmt.Errorf("failed to sync tracking log: %w", err)
	}
	t.seen[key] = struct{}{}
	return nil
}

// History returns the stored aggregate for one source.
func (t *Tracker) History(source string) (domain.SourceHistory, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	h, ok := t.history[source]
	return h, ok
}

// Histories returns a copy of all stored aggregates.
func (t *Tracker) Histories() map[string]domain.SourceHistory {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]domain.SourceHistory, len(t.history))
	for k, v := range t.history {
		out[k] = v
	}
	return out
}

// UpdateHistory merges one run's tallies into the aggregates and rewrites
// the history file via a temp file and rename, readers never observe a
// half-written JSON document.
func (t *Tracker) UpdateHistory(tallies map[string]domain.SourceTally, at time.Time) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	for source, tally := range tallies {
		h := t.history[source]
		h.TotalDownloaded += tally.Downloaded
		h.TotalFailed += tally.Failed
		if tally.Downloaded > 0 {
			h.LastDownload = at
		}
		h.LastStatus = tally.Status()
		t.history[source] = h
	}

	data, err := json.MarshalIndent(t.history, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode history: %w", err)
	}

	tmp, err := os.CreateTemp(t.dataDir, historyFileName+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create history temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write history: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to sync history: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close history temp file: %w", err)
	}
	if err := os.Rename(tmpPath, t.historyPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace history: %w", err)
	}
	return nil
}

// Close releases the tracking log handle.
func (t *Tracker) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.logFile == nil {
		return nil
	}
	err := t.logFile.Close()
	t.logFile = nil
	return err
}

// NopTracker satisfies domain.DownloadTracker without touching the
// filesystem. Single-mode runs use it so they leave no files behind.
type NopTracker struct{}

func (NopTracker) IsDownloaded(string) bool { return false }

func (NopTracker) MarkDownloaded(string) error { return nil }

func (NopTracker) History(string) (domain.SourceHistory, bool) {
	return domain.SourceHistory{}, false
}

func (NopTracker) Histories() map[string]domain.SourceHistory { return nil }

func (NopTracker) UpdateHistory(map[string]domain.SourceTally, time.Time) error { return nil }

func (NopTracker) Close() error { return nil }

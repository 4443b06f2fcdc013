package infrastructure

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toseeq44/automation-fb-sub003/internal/domain"
)

func newTestArchive(t *testing.T) *RunArchive {
	t.Helper()
	a, err := NewRunArchive(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a
}

func sampleSummary(id string, failed int) *domain.RunSummary {
	s := &domain.RunSummary{
		RunID:      id,
		Mode:       domain.ModeBulk,
		StartedAt:  time.Now().Add(-time.Minute),
		Total:      10,
		Downloaded: 10 - failed,
	}
	for i := 0; i < failed; i++ {
		s.Failed = append(s.Failed, domain.FailedURL{
			URL:        "https://x.com/u/status/1",
			Source:     "alice",
			Diagnostic: "HTTP Error 403",
		})
	}
	s.Finalize(time.Now())
	return s
}

func TestRunArchiveSaveAndFind(t *testing.T) {
	a := newTestArchive(t)

	require.NoError(t, a.SaveRun(sampleSummary("run-1", 2)))

	run, err := a.FindRun("run-1")
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, 8, run.Downloaded)
	assert.Equal(t, 2, run.Failed)
	assert.False(t, run.Success)

	links, err := a.FailedLinks("run-1")
	require.NoError(t, err)
	require.Len(t, links, 2)
	assert.Equal(t, "alice", links[0].Source)

	missing, err := a.FindRun("nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestRunArchiveRecentRuns(t *testing.T) {
	a := newTestArchive(t)

	first := sampleSummary("run-1", 0)
	first.StartedAt = time.Now().Add(-2 * time.Hour)
	second := sampleSummary("run-2", 0)
	second.StartedAt = time.Now().Add(-time.Hour)

	require.NoError(t, a.SaveRun(first))
	require.NoError(t, a.SaveRun(second))

	runs, err := a.RecentRuns(10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-2", runs[0].ID, "newest first")

	count, err := a.Count()
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)
}

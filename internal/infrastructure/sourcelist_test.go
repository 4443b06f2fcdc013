package infrastructure

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toseeq44/automation-fb-sub003/internal/domain"
)

func TestLoadLinkRecordsFromDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "alice.txt"),
		[]byte("# alice's saved posts\nhttps://x.com/a/status/1\n\nhttps://x.com/a/status/2\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bob.txt"),
		[]byte("https://youtu.be/abc\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "instagram_cookies.txt"),
		[]byte("# Netscape HTTP Cookie File\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.md"),
		[]byte("not a list\n"), 0o644))

	records, err := LoadLinkRecords(dir)
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, "alice", records[0].Source)
	assert.Equal(t, "https://x.com/a/status/1", records[0].URL)
	assert.Equal(t, filepath.Join(dir, "alice.txt"), records[0].SourcePath)
	assert.Equal(t, "bob", records[2].Source)
}

func TestLoadLinkRecordsSingleFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mine.txt")
	require.NoError(t, os.WriteFile(path, []byte("https://x.com/a/status/9\n"), 0o644))

	records, err := LoadLinkRecords(path)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "mine", records[0].Source)
}

func TestLoadLinkRecordsMissingPath(t *testing.T) {
	_, err := LoadLinkRecords(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}

func TestPruneSourceList(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "alice.txt")
	content := "# alice's saved posts\n" +
		"https://x.com/a/status/1\n" +
		"https://x.com/a/status/2?utm_source=share\n" +
		"some stray note\n" +
		"https://x.com/a/status/3\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	done := map[string]struct{}{
		domain.DedupKey("https://x.com/a/status/2"): {},
		domain.DedupKey("https://x.com/a/status/3"): {},
	}

	removed, err := PruneSourceList(path, done)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, "# alice's saved posts")
	assert.Contains(t, text, "status/1")
	assert.Contains(t, text, "stray note")
	assert.NotContains(t, text, "status/2")
	assert.NotContains(t, text, "status/3")
}

func TestPruneSourceListNoMatches(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "alice.txt")
	require.NoError(t, os.WriteFile(path, []byte("https://x.com/a/status/1\n"), 0o644))

	info, err := os.Stat(path)
	require.NoError(t, err)
	before := info.ModTime()

	removed, err := PruneSourceList(path, map[string]struct{}{"x:999": {}})
	require.NoError(t, err)
	assert.Zero(t, removed)

	info, err = os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, before, info.ModTime(), "file must not be rewritten when nothing matched")
}

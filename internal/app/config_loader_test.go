package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toseeq44/automation-fb-sub003/internal/domain"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeTempConfig(t, "")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "best", cfg.Download.Quality)
	assert.Equal(t, 1, cfg.Download.MaxRetries)
	assert.Equal(t, 20*time.Minute, cfg.Download.DownloadTimeout)
	assert.Equal(t, 2*time.Second, cfg.RateLimit.PerDomainInterval)
	assert.True(t, cfg.Archive.Enabled)
	assert.Equal(t, "yt-dlp", cfg.Tools.YTDLP)
	assert.NotContains(t, cfg.Download.OutputDir, "$HOME", "paths must be expanded")
	assert.NotContains(t, cfg.Archive.DatabasePath, "$HOME")
}

func TestLoadConfigFromFile(t *testing.T) {
	path := writeTempConfig(t, `
server:
  port: 9999
download:
  quality: 720p
  max_retries: 3
  retry_delay: 1s
  download_timeout: 5m
rate_limit:
  per_domain_interval: 5s
proxy:
  entries:
    - p1.example:8080
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "720p", cfg.Download.Quality)
	assert.Equal(t, 3, cfg.Download.MaxRetries)
	assert.Equal(t, time.Second, cfg.Download.RetryDelay)
	assert.Equal(t, 5*time.Minute, cfg.Download.DownloadTimeout)
	assert.Equal(t, 5*time.Second, cfg.RateLimit.PerDomainInterval)
	assert.Equal(t, []string{"p1.example:8080"}, cfg.Proxy.Entries)
	assert.Equal(t, "localhost", cfg.Server.Host, "unset keys keep their defaults")
}

func TestLoadConfigEnvOverride(t *testing.T) {
	path := writeTempConfig(t, "download:\n  quality: 720p\n")
	t.Setenv("GRAB_DOWNLOAD_QUALITY", "480p")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "480p", cfg.Download.Quality)
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"unknown quality", "download:\n  quality: potato\n"},
		{"bad port", "server:\n  port: 0\n"},
		{"negative retries", "download:\n  max_retries: -1\n"},
		{"zero timeout", "download:\n  download_timeout: 0s\n"},
		{"negative interval", "rate_limit:\n  per_domain_interval: -1s\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeTempConfig(t, tc.content)
			_, err := LoadConfig(path)
			assert.Error(t, err)
		})
	}
}

func TestLoadConfigMissingExplicitFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err, "an explicitly named config file must exist")
}

func TestLoadStrategyTableDefault(t *testing.T) {
	cfg := domain.DefaultConfig()
	cfg.Strategy.File = ""

	table, err := LoadStrategyTable(cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{domain.ToolYTDLP, domain.ToolGalleryDL}, table.DownloadersFor(domain.PlatformX, false))
	assert.Equal(t, []string{domain.ToolGalleryDL, domain.ToolYTDLP}, table.DownloadersFor(domain.PlatformInstagram, false))
}

func TestLoadStrategyTableOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "strategy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"instagram: [yt-dlp]\nx: [gallery-dl, yt-dlp]\n"), 0o644))

	cfg := domain.DefaultConfig()
	cfg.Strategy.File = path

	table, err := LoadStrategyTable(cfg)
	require.NoError(t, err)

	assert.Equal(t, []string{domain.ToolYTDLP}, table.DownloadersFor(domain.PlatformInstagram, false))
	assert.Equal(t, []string{domain.ToolGalleryDL, domain.ToolYTDLP}, table.DownloadersFor(domain.PlatformX, false))
	assert.Equal(t, []string{domain.ToolYTDLP, domain.ToolYouGet},
		table.DownloadersFor(domain.PlatformYouTube, false), "platforms the override omits keep the default chain")
}

func TestLoadStrategyTableRejectsUnknownPlatform(t *testing.T) {
	path := filepath.Join(t.TempDir(), "strategy.yaml")
	require.NoError(t, os.WriteFile(path, []byte("myspace: [yt-dlp]\n"), 0o644))

	cfg := domain.DefaultConfig()
	cfg.Strategy.File = path

	_, err := LoadStrategyTable(cfg)
	assert.Error(t, err)
}

func TestLoadStrategyTableRejectsUnknownTool(t *testing.T) {
	path := filepath.Join(t.TempDir(), "strategy.yaml")
	require.NoError(t, os.WriteFile(path, []byte("x: [wget]\n"), 0o644))

	cfg := domain.DefaultConfig()
	cfg.Strategy.File = path

	_, err := LoadStrategyTable(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wget")
}

func TestSaveConfigRoundTrip(t *testing.T) {
	cfg := domain.DefaultConfig()
	cfg.Server.Port = 9123
	cfg.Download.Quality = "480p"
	cfg.Download.MaxRetries = 4
	cfg.Download.OutputDir = "/tmp/grab-test-media"
	cfg.Download.DataDir = "/tmp/grab-test-data"

	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, SaveConfig(cfg, path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 9123, loaded.Server.Port)
	assert.Equal(t, "480p", loaded.Download.Quality)
	assert.Equal(t, 4, loaded.Download.MaxRetries)
	assert.Equal(t, "/tmp/grab-test-media", loaded.Download.OutputDir)
	assert.Equal(t, cfg.Download.DownloadTimeout, loaded.Download.DownloadTimeout)
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, "x"), expandPath("~/x"))
	assert.Equal(t, home+"/y", expandPath("$HOME/y"))
	assert.Equal(t, "/abs/path", expandPath("/abs/path"))
}

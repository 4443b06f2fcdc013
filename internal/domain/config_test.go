package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "best", cfg.Download.Quality)
	assert.Equal(t, 1, cfg.Download.MaxRetries)
	assert.False(t, cfg.Download.ForceAllBackends)
	assert.Equal(t, "yt-dlp", cfg.Tools.YTDLP)
	assert.NotZero(t, cfg.RateLimit.PerDomainInterval)
	assert.NotZero(t, cfg.Download.DownloadTimeout)
}

func TestFormatSpec(t *testing.T) {
	tests := []struct {
		name     string
		quality  string
		bitrate  int
		expected string
	}{
		{"best", "best", 0, "bv*+ba/b"},
		{"named quality", "720p", 0, "bv*[height<=720]+ba/b[height<=720]"},
		{"case and spacing tolerated", " 1080P ", 0, "bv*[height<=1080]+ba/b[height<=1080]"},
		{"audio only", "audio", 0, "ba/b"},
		{"unknown falls back to best", "potato", 0, "bv*+ba/b"},
		{"bitrate cap wins over quality", "720p", 2500, "b[tbr<=2500]/bv*+ba/b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dc := DownloadConfig{Quality: tt.quality, CustomBitrate: tt.bitrate}
			assert.Equal(t, tt.expected, dc.FormatSpec())
		})
	}
}

func TestKnownQuality(t *testing.T) {
	assert.True(t, KnownQuality("Best"))
	assert.True(t, KnownQuality("480p"))
	assert.False(t, KnownQuality("potato"))
}

func TestSourceTallyStatus(t *testing.T) {
	assert.Equal(t, "ok", SourceTally{Downloaded: 3}.Status())
	assert.Equal(t, "ok", SourceTally{}.Status())
	assert.Equal(t, "partial", SourceTally{Downloaded: 1, Failed: 2}.Status())
	assert.Equal(t, "failed", SourceTally{Failed: 2}.Status())
}

func TestRunSummaryFinalize(t *testing.T) {
	s := &RunSummary{Total: 5, Downloaded: 3, Skipped: 2}
	s.Finalize(s.StartedAt.Add(0))
	assert.True(t, s.Success)
	assert.Contains(t, s.Message, "3 downloaded")

	s = &RunSummary{Total: 5, Downloaded: 4, Failed: []FailedURL{{URL: "u"}}}
	s.Finalize(s.StartedAt)
	assert.False(t, s.Success)
	assert.Contains(t, s.Message, "1 failed")

	s = &RunSummary{Total: 5, Downloaded: 1, Cancelled: true}
	s.Finalize(s.StartedAt)
	assert.False(t, s.Success)
	assert.Contains(t, s.Message, "cancelled")
}

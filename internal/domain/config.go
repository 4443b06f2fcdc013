package domain

import (
	"fmt"
	"strings"
	"time"
)

// Config represents the application configuration
type Config struct {
	Server       ServerConfig       `mapstructure:"server" yaml:"server"`
	Download     DownloadConfig     `mapstructure:"download" yaml:"download"`
	Tools        ToolsConfig        `mapstructure:"tools" yaml:"tools"`
	Proxy        ProxyConfig        `mapstructure:"proxy" yaml:"proxy"`
	RateLimit    RateLimitConfig    `mapstructure:"rate_limit" yaml:"rate_limit"`
	Signatures   SignatureConfig    `mapstructure:"signatures" yaml:"signatures"`
	Strategy     StrategyConfig     `mapstructure:"strategy" yaml:"strategy"`
	Archive      ArchiveConfig      `mapstructure:"archive" yaml:"archive"`
	Notification NotificationConfig `mapstructure:"notification" yaml:"notification"`
	Logging      LoggingConfig      `mapstructure:"logging" yaml:"logging"`
}

// ServerConfig contains the local API server configuration
type ServerConfig struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port int    `mapstructure:"port" yaml:"port"`
}

// DownloadConfig contains download-related configuration
type DownloadConfig struct {
	OutputDir        string        `mapstructure:"output_dir" yaml:"output_dir"`
	DataDir          string        `mapstructure:"data_dir" yaml:"data_dir"`
	CookiesDir       string        `mapstructure:"cookies_dir" yaml:"cookies_dir"`
	LogsDir          string        `mapstructure:"logs_dir" yaml:"logs_dir"`
	Quality          string        `mapstructure:"quality" yaml:"quality"`
	CustomBitrate    int           `mapstructure:"custom_bitrate" yaml:"custom_bitrate"`
	MaxRetries       int           `mapstructure:"max_retries" yaml:"max_retries"`
	RetryDelay       time.Duration `mapstructure:"retry_delay" yaml:"retry_delay"`
	DownloadTimeout  time.Duration `mapstructure:"download_timeout" yaml:"download_timeout"`
	ForceAllBackends bool          `mapstructure:"force_all_backends" yaml:"force_all_backends"`
	SkipRecentWindow bool          `mapstructure:"skip_recent_window" yaml:"skip_recent_window"`
	RecentWindow     time.Duration `mapstructure:"recent_window" yaml:"recent_window"`
	MinFreeSpaceMB   uint64        `mapstructure:"min_free_space_mb" yaml:"min_free_space_mb"`
}

// ToolsConfig names the external downloader binaries
type ToolsConfig struct {
	YTDLP     string `mapstructure:"ytdlp" yaml:"ytdlp"`
	GalleryDL string `mapstructure:"gallerydl" yaml:"gallerydl"`
	YouGet    string `mapstructure:"youget" yaml:"youget"`
}

// ProxyConfig configures the rotating proxy pool. Entries listed inline
// are appended after the ones loaded from File.
type ProxyConfig struct {
	File    string   `mapstructure:"file" yaml:"file"`
	Entries []string `mapstructure:"entries" yaml:"entries"`
}

// RateLimitConfig spaces launches against the same host
type RateLimitConfig struct {
	PerDomainInterval time.Duration `mapstructure:"per_domain_interval" yaml:"per_domain_interval"`
}

// SignatureConfig overrides the built-in failure classification phrases
type SignatureConfig struct {
	Block []string `mapstructure:"block" yaml:"block"`
	Auth  []string `mapstructure:"auth" yaml:"auth"`
}

// StrategyConfig points at an optional YAML file overriding the
// per-platform downloader chains
type StrategyConfig struct {
	File string `mapstructure:"file" yaml:"file"`
}

// ArchiveConfig configures the sqlite run archive used by bulk runs
type ArchiveConfig struct {
	Enabled      bool   `mapstructure:"enabled" yaml:"enabled"`
	DatabasePath string `mapstructure:"database_path" yaml:"database_path"`
}

// NotificationConfig contains desktop notification configuration
type NotificationConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Sound   bool   `mapstructure:"sound" yaml:"sound"`
	Method  string `mapstructure:"method" yaml:"method"` // osascript, notify-send, etc.
}

// LoggingConfig contains logging-related configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level" yaml:"level"`             // debug, info, warn, error
	Format     string `mapstructure:"format" yaml:"format"`           // json, console
	OutputPath string `mapstructure:"output_path" yaml:"output_path"` // stdout, stderr, or file path
}

// qualityFormats maps the quality config key to a yt-dlp format selector.
var qualityFormats = map[string]string{
	"best":  "bv*+ba/b",
	"1080p": "bv*[height<=1080]+ba/b[height<=1080]",
	"720p":  "bv*[height<=720]+ba/b[height<=720]",
	"480p":  "bv*[height<=480]+ba/b[height<=480]",
	"audio": "ba/b",
}

// FormatSpec translates the quality settings into a yt-dlp format string.
// A custom bitrate cap wins over the named quality.
func (c DownloadConfig) FormatSpec() string {
	if c.CustomBitrate > 0 {
		return fmt.Sprintf("b[tbr<=%d]/bv*+ba/b", c.CustomBitrate)
	}
	if f, ok := qualityFormats[strings.ToLower(strings.TrimSpace(c.Quality))]; ok {
		return f
	}
	return qualityFormats["best"]
}

// KnownQuality reports whether the quality name is one the format table
// understands.
func KnownQuality(q string) bool {
	_, ok := qualityFormats[strings.ToLower(strings.TrimSpace(q))]
	return ok
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "localhost",
			Port: 8080,
		},
		Download: DownloadConfig{
			OutputDir:        "$HOME/Downloads/grab/media",
			DataDir:          "$HOME/Downloads/grab/data",
			CookiesDir:       "$HOME/Downloads/grab/cookies",
			LogsDir:          "$HOME/Downloads/grab/logs",
			Quality:          "best",
			CustomBitrate:    0,
			MaxRetries:       1,
			RetryDelay:       5 * time.Second,
			DownloadTimeout:  20 * time.Minute,
			ForceAllBackends: false,
			SkipRecentWindow: false,
			RecentWindow:     12 * time.Hour,
			MinFreeSpaceMB:   500,
		},
		Tools: ToolsConfig{
			YTDLP:     "yt-dlp",
			GalleryDL: "gallery-dl",
			YouGet:    "you-get",
		},
		Proxy: ProxyConfig{
			File:    "",
			Entries: nil,
		},
		RateLimit: RateLimitConfig{
			PerDomainInterval: 2 * time.Second,
		},
		Strategy: StrategyConfig{
			File: "",
		},
		Archive: ArchiveConfig{
			Enabled:      true,
			DatabasePath: "$HOME/Downloads/grab/data/runs.db",
		},
		Notification: NotificationConfig{
			Enabled: true,
			Sound:   true,
			Method:  "osascript",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "console",
			OutputPath: "stdout",
		},
	}
}

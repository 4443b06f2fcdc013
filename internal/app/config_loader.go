package app

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/toseeq44/automation-fb-sub003/internal/domain"
)

// LoadConfig loads configuration from file and environment
func LoadConfig(configPath string) (*domain.Config, error) {
	// Start with default config
	config := domain.DefaultConfig()

	// Set up viper
	v := viper.New()
	v.SetConfigType("yaml")

	// If config path is provided, use it
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Look for config in standard locations
		v.SetConfigName("config")
		v.AddConfigPath("./configs")
		v.AddConfigPath("$HOME/.grab")
		v.AddConfigPath("/etc/grab")
	}

	// Read environment variables
	v.SetEnvPrefix("GRAB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Try to read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, use defaults
	}

	// Unmarshal into config struct
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Expand environment variables in paths
	config = expandPaths(config)

	// Validate config
	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// expandPaths expands environment variables in path configurations
func expandPaths(config *domain.Config) *domain.Config {
	config.Download.OutputDir = expandPath(config.Download.OutputDir)
	config.Download.DataDir = expandPath(config.Download.DataDir)
	config.Download.CookiesDir = expandPath(config.Download.CookiesDir)
	config.Download.LogsDir = expandPath(config.Download.LogsDir)
	config.Proxy.File = expandPath(config.Proxy.File)
	config.Strategy.File = expandPath(config.Strategy.File)
	config.Archive.DatabasePath = expandPath(config.Archive.DatabasePath)

	if config.Logging.OutputPath != "stdout" && config.Logging.OutputPath != "stderr" {
		config.Logging.OutputPath = expandPath(config.Logging.OutputPath)
	}

	return config
}

// expandPath expands environment variables and ~ in paths
func expandPath(path string) string {
	// Expand environment variables
	path = os.ExpandEnv(path)

	// Expand home directory
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, path[2:])
		}
	}

	// Replace $HOME
	if strings.Contains(path, "$HOME") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = strings.ReplaceAll(path, "$HOME", home)
		}
	}

	return path
}

// validateConfig validates the configuration
func validateConfig(config *domain.Config) error {
	if config.Server.Port < 1 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	if config.Download.OutputDir == "" {
		return fmt.Errorf("download output directory not configured")
	}

	if config.Download.DataDir == "" {
		return fmt.Errorf("tracking data directory not configured")
	}

	if config.Download.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}

	if config.Download.Quality != "" && !domain.KnownQuality(config.Download.Quality) {
		return fmt.Errorf("unknown quality %q", config.Download.Quality)
	}

	if config.Download.CustomBitrate < 0 {
		return fmt.Errorf("custom bitrate cannot be negative")
	}

	if config.Download.DownloadTimeout <= 0 {
		return fmt.Errorf("download timeout must be positive")
	}

	if config.RateLimit.PerDomainInterval < 0 {
		return fmt.Errorf("per-domain interval cannot be negative")
	}

	if config.Archive.Enabled && config.Archive.DatabasePath == "" {
		return fmt.Errorf("archive database path not configured")
	}

	if config.Logging.Level == "" {
		config.Logging.Level = "info"
	}

	return nil
}

// LoadStrategyTable builds the per-platform downloader chains: the
// built-in table overlaid with the optional YAML override file.
func LoadStrategyTable(config *domain.Config) (domain.StrategyTable, error) {
	table := domain.DefaultStrategyTable()
	if config.Strategy.File == "" {
		return table, nil
	}

	data, err := os.ReadFile(config.Strategy.File)
	if err != nil {
		return nil, fmt.Errorf("failed to read strategy file: %w", err)
	}

	var raw map[string][]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse strategy file: %w", err)
	}

	override := domain.StrategyTable{}
	for name, chain := range raw {
		platform, ok := domain.ParsePlatform(name)
		if !ok {
			return nil, fmt.Errorf("strategy file references unknown platform %q", name)
		}
		override[platform] = chain
	}
	table.Merge(override)

	known := map[string]bool{
		domain.ToolYTDLP:     true,
		domain.ToolGalleryDL: true,
		domain.ToolYouGet:    true,
	}
	if err := table.Validate(func(name string) bool { return known[name] }); err != nil {
		return nil, fmt.Errorf("invalid strategy file: %w", err)
	}
	return table, nil
}

// SaveConfig saves configuration to file
func SaveConfig(config *domain.Config, path string) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

package infrastructure

import (
	"fmt"
	"os"

	"github.com/shirou/gopsutil/v3/disk"
)

// EnsureOutputDir verifies the output location is usable before any
// download starts: the directory exists (creating it if needed), is
// writable, and its filesystem has at least minFreeMB megabytes free.
func EnsureOutputDir(path string, minFreeMB uint64) error {
	if path == "" {
		return fmt.Errorf("output dir is empty")
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("output dir %s: %w", path, err)
	}

	probe, err := os.CreateTemp(path, ".writecheck-*")
	if err != nil {
		return fmt.Errorf("output dir %s is not writable: %w", path, err)
	}
	probe.Close()
	os.Remove(probe.Name())

	if minFreeMB == 0 {
		return nil
	}
	usage, err := disk.Usage(path)
	if err != nil {
		return fmt.Errorf("failed to stat filesystem of %s: %w", path, err)
	}
	freeMB := usage.Free / (1024 * 1024)
	if freeMB < minFreeMB {
		return fmt.Errorf("only %d MB free under %s, need at least %d MB", freeMB, path, minFreeMB)
	}
	return nil
}

package infrastructure

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/toseeq44/automation-fb-sub003/internal/domain"
)

// GalleryDLDownloader drives gallery-dl, the first choice for image-heavy
// posts where yt-dlp gives up. It reports no byte counters, so progress
// stays textual.
type GalleryDLDownloader struct {
	binary string
	runner *toolRunner
}

func NewGalleryDLDownloader(binary, logsDir string) *GalleryDLDownloader {
	if binary == "" {
		binary = domain.ToolGalleryDL
	}
	return &GalleryDLDownloader{
		binary: binary,
		runner: &toolRunner{binary: binary, logsDir: logsDir},
	}
}

func (d *GalleryDLDownloader) Name() string { return domain.ToolGalleryDL }

func (d *GalleryDLDownloader) Available() error {
	if _, err := exec.LookPath(d.binary); err != nil {
		return fmt.Errorf("gallery-dl binary %q not found: %w", d.binary, err)
	}
	return nil
}

func (d *GalleryDLDownloader) Fetch(ctx context.Context, job domain.FetchJob) *domain.FetchOutcome {
	return d.runner.run(ctx, d.buildArgs(job), job)
}

func (d *GalleryDLDownloader) buildArgs(job domain.FetchJob) []string {
	// -D writes files straight into the output dir without gallery-dl's
	// usual site/user subfolders, matching where yt-dlp puts its files.
	args := []string{
		"-D", job.OutputDir,
	}
	if job.CookieFile != "" {
		args = append(args, "--cookies", job.CookieFile)
	}
	if job.ProxyURL != "" {
		args = append(args, "--proxy", job.ProxyURL)
	}
	return append(args, job.URL)
}

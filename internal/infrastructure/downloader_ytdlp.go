package infrastructure

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/toseeq44/automation-fb-sub003/internal/domain"
)

// ytdlpProgressPrefix tags the machine-readable progress lines requested
// via --progress-template so they are easy to tell apart from log noise.
const ytdlpProgressPrefix = "dlbytes "

// ytdlpProgressTemplate renders "dlbytes <downloaded> <total> <estimate>"
// once per progress tick; absent fields render as NA.
const ytdlpProgressTemplate = "download:" + ytdlpProgressPrefix +
	"%(progress.downloaded_bytes)s %(progress.total_bytes)s %(progress.total_bytes_estimate)s"

// YTDLPDownloader drives yt-dlp, the primary backend for video posts.
type YTDLPDownloader struct {
	binary string
	runner *toolRunner
}

func NewYTDLPDownloader(binary, logsDir string) *YTDLPDownloader {
	if binary == "" {
		binary = domain.ToolYTDLP
	}
	return &YTDLPDownloader{
		binary: binary,
		runner: &toolRunner{binary: binary, logsDir: logsDir, parse: parseYTDLPProgress},
	}
}

func (d *YTDLPDownloader) Name() string { return domain.ToolYTDLP }

func (d *YTDLPDownloader) Available() error {
	if _, err := exec.LookPath(d.binary); err != nil {
		return fmt.Errorf("yt-dlp binary %q not found: %w", d.binary, err)
	}
	return nil
}

func (d *YTDLPDownloader) Fetch(ctx context.Context, job domain.FetchJob) *domain.FetchOutcome {
	return d.runner.run(ctx, d.buildArgs(job), job)
}

// buildArgs assembles the yt-dlp invocation. The orchestrator owns the
// retry budget, so tool-level retries stay minimal.
func (d *YTDLPDownloader) buildArgs(job domain.FetchJob) []string {
	args := []string{
		"--newline",
		"--no-colors",
		"--no-playlist",
		"--restrict-filenames",
		"--retries", "2",
		"--socket-timeout", "30",
		"--progress-template", ytdlpProgressTemplate,
		"-P", job.OutputDir,
		"-o", "%(uploader_id,uploader,id)s_%(id)s.%(ext)s",
	}
	if job.FormatSpec != "" {
		args = append(args, "-f", job.FormatSpec)
	}
	if job.CookieFile != "" {
		args = append(args, "--cookies", job.CookieFile)
	}
	if job.ProxyURL != "" {
		args = append(args, "--proxy", job.ProxyURL)
	}
	return append(args, job.URL)
}

// parseYTDLPProgress reads the counters off a templated progress line.
// The total falls back to yt-dlp's estimate when the exact size is
// missing; -1 means unknown.
func parseYTDLPProgress(line string) (downloaded, total int64, ok bool) {
	rest, found := strings.CutPrefix(strings.TrimSpace(line), ytdlpProgressPrefix)
	if !found {
		return 0, 0, false
	}
	fields := strings.Fields(rest)
	if len(fields) < 3 {
		return 0, 0, false
	}
	downloaded = parseByteField(fields[0])
	total = parseByteField(fields[1])
	if total < 0 {
		total = parseByteField(fields[2])
	}
	return downloaded, total, true
}

func parseByteField(s string) int64 {
	if s == "" || s == "NA" || s == "None" {
		return -1
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 {
		return -1
	}
	return int64(f)
}

package infrastructure

import (
	"context"
	"fmt"
	"net/url"
	"os/exec"

	"github.com/toseeq44/automation-fb-sub003/internal/domain"
)

// YouGetDownloader drives you-get, the last-resort backend in the
// thorough chains.
type YouGetDownloader struct {
	binary string
	runner *toolRunner
}

func NewYouGetDownloader(binary, logsDir string) *YouGetDownloader {
	if binary == "" {
		binary = domain.ToolYouGet
	}
	return &YouGetDownloader{
		binary: binary,
		runner: &toolRunner{binary: binary, logsDir: logsDir},
	}
}

func (d *YouGetDownloader) Name() string { return domain.ToolYouGet }

func (d *YouGetDownloader) Available() error {
	if _, err := exec.LookPath(d.binary); err != nil {
		return fmt.Errorf("you-get binary %q not found: %w", d.binary, err)
	}
	return nil
}

func (d *YouGetDownloader) Fetch(ctx context.Context, job domain.FetchJob) *domain.FetchOutcome {
	return d.runner.run(ctx, d.buildArgs(job), job)
}

func (d *YouGetDownloader) buildArgs(job domain.FetchJob) []string {
	args := []string{
		"-o", job.OutputDir,
	}
	if job.CookieFile != "" {
		args = append(args, "-c", job.CookieFile)
	}
	// you-get only understands a bare host:port proxy and cannot send
	// credentials, so authenticated proxies are skipped rather than
	// guaranteed to fail with 407.
	if hostPort, ok := proxyHostPort(job.ProxyURL); ok {
		args = append(args, "-x", hostPort)
	}
	return append(args, job.URL)
}

func proxyHostPort(proxyURL string) (string, bool) {
	if proxyURL == "" {
		return "", false
	}
	u, err := url.Parse(proxyURL)
	if err != nil || u.Host == "" || u.User != nil {
		return "", false
	}
	return u.Host, true
}

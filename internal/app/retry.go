package app

import (
	"context"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/toseeq44/automation-fb-sub003/internal/domain"
)

// retryPolicy bounds the attempts one downloader gets for one URL. Every
// downloader in the chain starts from a fresh budget.
type retryPolicy struct {
	maxRetries       int           // extra attempts after a transient failure
	retryDelay       time.Duration // pause before a transient retry
	blockBackoffBase time.Duration // first block backoff, doubles each time
	blockBackoffMax  int           // block backoff retries after the proxy retry
}

func defaultRetryPolicy(cfg *domain.DownloadConfig) retryPolicy {
	return retryPolicy{
		maxRetries:       cfg.MaxRetries,
		retryDelay:       cfg.RetryDelay,
		blockBackoffBase: 2 * time.Second,
		blockBackoffMax:  2,
	}
}

// runDownloader drives one backend against one URL through the retry
// ladder: plain attempt first; on a block, once through the current
// proxy, then backed-off retries with explicit rotation; on an auth
// failure, the next cookie candidate; on anything else, plain retries.
// The ladder ends as soon as the budget of the failing kind runs out.
func (e *Engine) runDownloader(ctx context.Context, s *session, d domain.Downloader, req domain.DownloadRequest) *domain.FetchOutcome {
	cookies := e.resolveCookies(req)
	reporter := newProgressReporter(e.sink, s.summary.RunID, req.CanonicalURL)
	progress := func(line string, downloaded, total int64) {
		if s.cancelled.Load() {
			return
		}
		reporter.Update(line, downloaded, total)
	}

	var (
		cookieIdx  int
		proxyURL   string
		proxyTried bool
		backoffs   int
		transient  int
	)

	for attempt := 1; ; attempt++ {
		s.limiter.Wait(domain.DomainOf(req.CanonicalURL))

		job := domain.FetchJob{
			URL:        req.CanonicalURL,
			OutputDir:  s.outputDir,
			FormatSpec: e.config.Download.FormatSpec(),
			ProxyURL:   proxyURL,
			Timeout:    e.config.Download.DownloadTimeout,
			Progress:   progress,
		}
		if len(cookies) > 0 {
			job.CookieFile = cookies[cookieIdx]
		}

		e.logger.Debug("Attempting download",
			zap.String("url", req.CanonicalURL),
			zap.String("downloader", d.Name()),
			zap.Int("attempt", attempt),
			zap.String("proxy", proxyURL),
			zap.String("cookies", job.CookieFile))

		outcome := d.Fetch(ctx, job)
		if outcome.Succeeded {
			return outcome
		}
		if s.cancelled.Load() || ctx.Err() != nil {
			return outcome
		}

		switch e.classifier.Classify(outcome.Diagnostic) {
		case domain.FailureBlocked:
			if !proxyTried && s.pool.Size() > 0 {
				proxyTried = true
				proxyURL = s.pool.Current()
				e.logger.Info("Block detected, retrying through proxy",
					zap.String("url", req.CanonicalURL),
					zap.String("downloader", d.Name()))
				continue
			}
			if backoffs < e.policy.blockBackoffMax {
				delay := e.policy.blockBackoffBase << backoffs
				backoffs++
				if s.pool.Size() > 1 {
					proxyURL = s.pool.Rotate()
				}
				e.logger.Info("Still blocked, backing off",
					zap.String("url", req.CanonicalURL),
					zap.Duration("delay", delay),
					zap.Int("backoff", backoffs))
				if !e.pause(ctx, s, delay) {
					return outcome
				}
				continue
			}
			return outcome

		case domain.FailureAuth:
			if cookieIdx+1 < len(cookies) {
				cookieIdx++
				e.logger.Info("Auth failure, advancing cookie file",
					zap.String("url", req.CanonicalURL),
					zap.String("cookies", cookies[cookieIdx]))
				continue
			}
			return outcome

		default:
			if transient < e.policy.maxRetries {
				transient++
				e.logger.Info("Transient failure, retrying",
					zap.String("url", req.CanonicalURL),
					zap.Int("attempt", transient),
					zap.Int("max_retries", e.policy.maxRetries))
				if !e.pause(ctx, s, e.policy.retryDelay) {
					return outcome
				}
				continue
			}
			return outcome
		}
	}
}

func (e *Engine) resolveCookies(req domain.DownloadRequest) []string {
	if e.cookies == nil {
		return nil
	}
	sourceDir := ""
	if req.SourcePath != "" {
		sourceDir = filepath.Dir(req.SourcePath)
	}
	return e.cookies.Resolve(req.CanonicalURL, sourceDir)
}

// pause sleeps unless the run is cancelled first.
func (e *Engine) pause(ctx context.Context, s *session, d time.Duration) bool {
	select {
	case <-time.After(d):
		return !s.cancelled.Load()
	case <-ctx.Done():
		return false
	}
}

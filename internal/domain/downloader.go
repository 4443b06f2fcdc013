package domain

import (
	"context"
	"time"
)

// ProgressFunc receives one line of tool output plus the byte counters the
// tool reported for it. downloaded or total are -1 when the line carried
// no usable counter.
type ProgressFunc func(line string, downloaded, total int64)

// FetchJob carries everything a downloader needs for one attempt against
// one URL. The engine rebuilds it per attempt, cookie file and proxy vary
// between retries.
type FetchJob struct {
	URL        string
	OutputDir  string
	FormatSpec string
	CookieFile string
	ProxyURL   string
	Timeout    time.Duration
	Progress   ProgressFunc
}

// FetchOutcome reports one finished attempt. Diagnostic holds the tail of
// the tool's output when the attempt failed and is empty on success.
type FetchOutcome struct {
	Succeeded  bool
	Diagnostic string
	Elapsed    time.Duration
}

// Downloader wraps one external download tool.
type Downloader interface {
	// Name returns the tool name as used in strategy tables.
	Name() string
	// Available reports whether the tool binary can be invoked at all.
	Available() error
	// Fetch runs the tool against one URL and blocks until it finishes,
	// times out or the context is cancelled. It never returns nil.
	Fetch(ctx context.Context, job FetchJob) *FetchOutcome
}

// FailureKind classifies why an attempt failed, which decides the retry
// path: rotate proxies, advance cookies, or plain backoff.
type FailureKind int

const (
	// FailureTransient covers network hiccups and anything unrecognized.
	FailureTransient FailureKind = iota
	// FailureBlocked means the platform refused the client (IP block,
	// rate limit or geo fence).
	FailureBlocked
	// FailureAuth means the platform wanted a login the cookies did not
	// provide.
	FailureAuth
)

func (k FailureKind) String() string {
	switch k {
	case FailureBlocked:
		return "blocked"
	case FailureAuth:
		return "auth"
	default:
		return "transient"
	}
}

// Classifier inspects a failure diagnostic and names its kind.
type Classifier interface {
	Classify(diagnostic string) FailureKind
}

// CookieSource resolves the ordered cookie file candidates for a URL.
// sourceDir optionally points at the directory of the source list the URL
// came from, whose local cookie files rank last.
type CookieSource interface {
	Resolve(rawURL, sourceDir string) []string
}

package infrastructure

import (
	"regexp"
	"strings"

	"github.com/toseeq44/automation-fb-sub003/internal/domain"
)

var ansiEscapePattern = regexp.MustCompile(`\x1b\[[0-9;]*[A-Za-z]`)

// StripANSI removes terminal color codes so signature matching sees the
// words the tool printed, not its escape sequences.
func StripANSI(s string) string {
	if !strings.ContainsRune(s, '\x1b') {
		return s
	}
	return ansiEscapePattern.ReplaceAllString(s, "")
}

// Signature phrases are matched as lowercase substrings of the cleaned
// diagnostic. A transient error misread as a block costs one proxied
// retry before the ladder falls back to plain backoff.
var (
	defaultBlockSignatures = []string{
		"ip address is blocked",
		"has blocked",
		"blocked it",
		"access denied",
		"http error 403",
		"403 forbidden",
		"http error 429",
		"too many requests",
		"rate limit",
		"rate-limit",
		"not available in your country",
		"geo restriction",
		"geo-restricted",
		"geoblocked",
		"unable to extract",
	}
	defaultAuthSignatures = []string{
		"login required",
		"log in",
		"logged in",
		"sign in",
		"login_required",
		"cookies are no longer valid",
		"cookie is invalid",
		"use --cookies",
		"authentication",
		"unauthorized",
		"http error 401",
		"private account",
		"this post is private",
	}
)

// FailureClassifier names the kind of a failed attempt from its
// diagnostic text. Unmatched diagnostics default to transient.
type FailureClassifier struct {
	block []string
	auth  []string
}

// NewFailureClassifier builds a classifier with the given signature
// phrases; empty slices fall back to the built-in sets.
func NewFailureClassifier(block, auth []string) *FailureClassifier {
	c := &FailureClassifier{
		block: lowerAll(block),
		auth:  lowerAll(auth),
	}
	if len(c.block) == 0 {
		c.block = defaultBlockSignatures
	}
	if len(c.auth) == 0 {
		c.auth = defaultAuthSignatures
	}
	return c
}

func lowerAll(in []string) []string {
	var out []string
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Classify reports the failure kind for a diagnostic. Block signatures
// win over auth signatures when both match, a blocked client cannot tell
// whether its cookies are fine until it gets through.
func (c *FailureClassifier) Classify(diagnostic string) domain.FailureKind {
	cleaned := strings.ToLower(StripANSI(diagnostic))
	for _, sig := range c.block {
		if strings.Contains(cleaned, sig) {
			return domain.FailureBlocked
		}
	}
	for _, sig := range c.auth {
		if strings.Contains(cleaned, sig) {
			return domain.FailureAuth
		}
	}
	return domain.FailureTransient
}

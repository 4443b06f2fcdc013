package domain

import (
	"bufio"
	"net/url"
	"strings"
)

// Characters that commonly glue themselves to a pasted link: list bullets,
// quotes, brackets and sentence punctuation.
const linkTrimCutset = "\"'`“”‘’.,;:!?<>()[]{}|"

// zero-width and BOM runes that chat apps sprinkle into copied text.
func isZeroWidth(r rune) bool {
	switch r {
	case '\u200b', '\u200c', '\u200d', '\u2060', '\ufeff':
		return true
	}
	return false
}

func stripZeroWidth(s string) string {
	if !strings.ContainsFunc(s, isZeroWidth) {
		return s
	}
	return strings.Map(func(r rune) rune {
		if isZeroWidth(r) {
			return -1
		}
		return r
	}, s)
}

// ExtractURLs scans free-form text (a chat export, a saved list) and
// returns every plausible post URL in first-seen order. Inputs that
// share a dedup key keep only their first occurrence. Scheme-less links
// starting with "www." are promoted to https.
func ExtractURLs(text string) []string {
	var (
		out  []string
		seen = map[string]struct{}{}
	)
	sc := bufio.NewScanner(strings.NewReader(text))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := stripZeroWidth(sc.Text())
		for _, token := range splitLinkTokens(line) {
			candidate, ok := normalizeCandidate(token)
			if !ok {
				continue
			}
			key := DedupKey(candidate)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, candidate)
		}
	}
	return out
}

// splitLinkTokens breaks a line on whitespace and the separators people
// use between pasted links.
func splitLinkTokens(line string) []string {
	return strings.FieldsFunc(line, func(r rune) bool {
		switch r {
		case ' ', '\t', ',', ';', '\r':
			return true
		}
		return false
	})
}

// normalizeCandidate trims stray punctuation off a token and reports
// whether it looks like a usable http(s) URL.
func normalizeCandidate(token string) (string, bool) {
	t := strings.Trim(token, linkTrimCutset)
	if t == "" {
		return "", false
	}
	lower := strings.ToLower(t)
	switch {
	case strings.HasPrefix(lower, "http://"), strings.HasPrefix(lower, "https://"):
	case strings.HasPrefix(lower, "www."):
		t = "https://" + t
	default:
		return "", false
	}
	u, err := url.Parse(t)
	if err != nil || u.Host == "" || !strings.Contains(u.Host, ".") {
		return "", false
	}
	return t, true
}

// LinkRecord is one line of a source list file: the raw link plus the
// source it was collected for.
type LinkRecord struct {
	URL        string
	Source     string
	SourcePath string
}

// ExtractRecords canonicalizes and dedups structured link records,
// preserving first-seen order. Records whose URL yields nothing usable
// are dropped.
func ExtractRecords(records []LinkRecord) []LinkRecord {
	var (
		out  []LinkRecord
		seen = map[string]struct{}{}
	)
	for _, rec := range records {
		candidate, ok := normalizeCandidate(stripZeroWidth(strings.TrimSpace(rec.URL)))
		if !ok {
			continue
		}
		key := DedupKey(candidate)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		rec.URL = candidate
		out = append(out, rec)
	}
	return out
}

package domain

// DownloadRequest is one unit of work for the engine: a single post to
// fetch, already canonicalized and classified.
type DownloadRequest struct {
	RawInput     string
	CanonicalURL string
	DedupKey     string
	Platform     Platform

	// Source names the account or list the link was collected for; empty
	// for ad-hoc single downloads. SourcePath points at the list file the
	// line came from so it can be pruned after the run.
	Source     string
	SourcePath string
}

// NewDownloadRequest builds a request from a raw link.
func NewDownloadRequest(raw string) DownloadRequest {
	canonical := CanonicalURL(raw)
	return DownloadRequest{
		RawInput:     raw,
		CanonicalURL: canonical,
		DedupKey:     DedupKey(raw),
		Platform:     DetectPlatform(canonical),
	}
}

// BuildRequests turns extracted records into engine work items, dropping
// later duplicates of the same dedup key.
func BuildRequests(records []LinkRecord) []DownloadRequest {
	var (
		out  []DownloadRequest
		seen = map[string]struct{}{}
	)
	for _, rec := range ExtractRecords(records) {
		req := NewDownloadRequest(rec.URL)
		req.Source = rec.Source
		req.SourcePath = rec.SourcePath
		if _, dup := seen[req.DedupKey]; dup {
			continue
		}
		seen[req.DedupKey] = struct{}{}
		out = append(out, req)
	}
	return out
}

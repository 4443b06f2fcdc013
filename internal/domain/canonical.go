package domain

import (
	"net/url"
	"regexp"
	"strings"
)

// Tracking parameters are stripped during canonicalization so that two
// shares of the same post collapse to one dedup key. Matching is by exact
// name or by name prefix, always case-insensitive.
var (
	trackingParamNames = map[string]struct{}{
		"fbclid":    {},
		"gclid":     {},
		"yclid":     {},
		"igshid":    {},
		"igsh":      {},
		"si":        {},
		"s":         {},
		"t":         {},
		"feature":   {},
		"mibextid":  {},
		"rdid":      {},
		"share_id":  {},
		"share_url": {},
		"hl":        {},
	}
	trackingParamPrefixes = []string{"utm_", "mc_", "ref", "vero_", "_branch"}
)

func isTrackingParam(name string) bool {
	n := strings.ToLower(name)
	if _, ok := trackingParamNames[n]; ok {
		return true
	}
	for _, p := range trackingParamPrefixes {
		if strings.HasPrefix(n, p) {
			return true
		}
	}
	return false
}

// CanonicalURL normalizes a URL for comparison and for handing to the
// download tools: scheme and host are lowercased, fragments dropped,
// tracking parameters removed and the remaining query re-encoded in
// sorted order. The function is idempotent, canonicalizing twice yields
// the same string.
func CanonicalURL(rawURL string) string {
	s := strings.TrimSpace(rawURL)
	if s == "" {
		return ""
	}
	if strings.HasPrefix(strings.ToLower(s), "www.") {
		s = "https://" + s
	}
	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return s
	}
	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme == "" {
		u.Scheme = "https"
	}
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.User = nil

	if u.RawQuery != "" {
		q := u.Query()
		for name := range q {
			if isTrackingParam(name) {
				q.Del(name)
			}
		}
		u.RawQuery = q.Encode()
	}

	// Trailing slashes carry no meaning on the supported platforms.
	if len(u.Path) > 1 {
		u.Path = strings.TrimRight(u.Path, "/")
	}
	return u.String()
}

// Path shapes that carry the stable post or video identifier per platform.
var (
	xStatusPattern    = regexp.MustCompile(`/status(?:es)?/(\d+)`)
	instagramPattern  = regexp.MustCompile(`/(?:p|reel|reels|tv)/([A-Za-z0-9_-]+)`)
	tiktokVideoPat    = regexp.MustCompile(`/(?:video|photo)/(\d+)`)
	tiktokSharePat    = regexp.MustCompile(`^/(?:t/)?([A-Za-z0-9]+)/?$`)
	youtubeShortsPat  = regexp.MustCompile(`/(?:shorts|embed|live)/([A-Za-z0-9_-]+)`)
	facebookNumericID = regexp.MustCompile(`/(?:videos|reel|posts)/(?:[^/]+/)?(\d+)`)
	facebookSharePat  = regexp.MustCompile(`/share/(?:v|r|p)/([A-Za-z0-9_-]+)`)
	redditCommentsPat = regexp.MustCompile(`/comments/([a-z0-9]+)`)
)

// keyPrefixes gives each platform a short namespace so identifiers from
// different networks can never collide inside the tracking log.
var keyPrefixes = map[Platform]string{
	PlatformFacebook:  "fb",
	PlatformInstagram: "ig",
	PlatformTikTok:    "tt",
	PlatformX:         "x",
	PlatformYouTube:   "yt",
	PlatformReddit:    "rd",
}

// DedupKey derives the stable identity of a post. Where the platform is
// recognized and the path carries a post or video id, the key is
// "<prefix>:<id>"; otherwise the canonical URL itself is the key. Two
// inputs that differ only by tracking decoration always share a key.
func DedupKey(rawURL string) string {
	canonical := CanonicalURL(rawURL)
	u, err := url.Parse(canonical)
	if err != nil || u.Host == "" {
		return canonical
	}
	platform := DetectPlatform(canonical)
	prefix, ok := keyPrefixes[platform]
	if !ok {
		return canonical
	}
	if id := platformID(platform, u); id != "" {
		return prefix + ":" + id
	}
	return canonical
}

func platformID(platform Platform, u *url.URL) string {
	host := strings.ToLower(u.Hostname())
	path := u.EscapedPath()

	switch platform {
	case PlatformX:
		if m := xStatusPattern.FindStringSubmatch(path); m != nil {
			return m[1]
		}
	case PlatformInstagram:
		if m := instagramPattern.FindStringSubmatch(path); m != nil {
			return m[1]
		}
	case PlatformTikTok:
		if m := tiktokVideoPat.FindStringSubmatch(path); m != nil {
			return m[1]
		}
		// Short share hosts carry an opaque code as the whole path.
		if host == "vm.tiktok.com" || host == "vt.tiktok.com" {
			if m := tiktokSharePat.FindStringSubmatch(path); m != nil {
				return m[1]
			}
		}
	case PlatformYouTube:
		if v := u.Query().Get("v"); v != "" {
			return v
		}
		if host == "youtu.be" {
			if id := strings.Trim(path, "/"); id != "" && !strings.Contains(id, "/") {
				return id
			}
		}
		if m := youtubeShortsPat.FindStringSubmatch(path); m != nil {
			return m[1]
		}
	case PlatformFacebook:
		if m := facebookNumericID.FindStringSubmatch(path); m != nil {
			return m[1]
		}
		if m := facebookSharePat.FindStringSubmatch(path); m != nil {
			return m[1]
		}
		if v := u.Query().Get("v"); v != "" {
			return v
		}
		if fbid := u.Query().Get("story_fbid"); fbid != "" {
			return fbid
		}
		if host == "fb.watch" {
			if id := strings.Trim(path, "/"); id != "" && !strings.Contains(id, "/") {
				return id
			}
		}
	case PlatformReddit:
		if m := redditCommentsPat.FindStringSubmatch(path); m != nil {
			return m[1]
		}
	}
	return ""
}

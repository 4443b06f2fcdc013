package domain

import (
	"net/url"
	"strings"
)

// Platform identifies the social network a URL belongs to. It selects the
// downloader chain, the cookie file name and the dedup key prefix.
type Platform string

const (
	PlatformFacebook  Platform = "facebook"
	PlatformInstagram Platform = "instagram"
	PlatformTikTok    Platform = "tiktok"
	PlatformX         Platform = "x"
	PlatformYouTube   Platform = "youtube"
	PlatformReddit    Platform = "reddit"
	PlatformOther     Platform = "other"
)

// platformHosts maps a registrable host (or a well known subdomain) to its
// platform. Lookup walks suffixes, so m.facebook.com matches facebook.com.
var platformHosts = map[string]Platform{
	"facebook.com":  PlatformFacebook,
	"fb.com":        PlatformFacebook,
	"fb.watch":      PlatformFacebook,
	"instagram.com": PlatformInstagram,
	"instagr.am":    PlatformInstagram,
	"tiktok.com":    PlatformTikTok,
	"x.com":         PlatformX,
	"twitter.com":   PlatformX,
	"youtube.com":   PlatformYouTube,
	"youtu.be":      PlatformYouTube,
	"reddit.com":    PlatformReddit,
	"redd.it":       PlatformReddit,
}

// AllPlatforms lists every recognized platform, PlatformOther last.
func AllPlatforms() []Platform {
	return []Platform{
		PlatformFacebook,
		PlatformInstagram,
		PlatformTikTok,
		PlatformX,
		PlatformYouTube,
		PlatformReddit,
		PlatformOther,
	}
}

// ParsePlatform converts a config or API string into a Platform.
func ParsePlatform(s string) (Platform, bool) {
	switch Platform(strings.ToLower(strings.TrimSpace(s))) {
	case PlatformFacebook:
		return PlatformFacebook, true
	case PlatformInstagram:
		return PlatformInstagram, true
	case PlatformTikTok:
		return PlatformTikTok, true
	case PlatformX:
		return PlatformX, true
	case PlatformYouTube:
		return PlatformYouTube, true
	case PlatformReddit:
		return PlatformReddit, true
	case PlatformOther:
		return PlatformOther, true
	}
	return PlatformOther, false
}

// DetectPlatform classifies a URL by its host. Unknown or unparseable hosts
// map to PlatformOther so the generic downloader chain still applies.
func DetectPlatform(rawURL string) Platform {
	host := hostOf(rawURL)
	if host == "" {
		return PlatformOther
	}
	for h := host; h != ""; {
		if p, ok := platformHosts[h]; ok {
			return p
		}
		i := strings.IndexByte(h, '.')
		if i < 0 {
			break
		}
		h = h[i+1:]
	}
	return PlatformOther
}

// hostOf extracts the lowercased host of a URL, tolerating scheme-less input.
func hostOf(rawURL string) string {
	s := strings.TrimSpace(rawURL)
	if s == "" {
		return ""
	}
	if !strings.Contains(s, "://") {
		s = "https://" + s
	}
	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	return host
}

// DomainOf returns the host used as the per-domain rate limiter key.
func DomainOf(rawURL string) string {
	return hostOf(rawURL)
}

package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonicalURL(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected string
	}{
		{
			name:     "lowercases scheme and host",
			raw:      "HTTPS://X.COM/User/status/123",
			expected: "https://x.com/User/status/123",
		},
		{
			name:     "strips utm parameters",
			raw:      "https://x.com/u/status/123?utm_source=share&utm_medium=web",
			expected: "https://x.com/u/status/123",
		},
		{
			name:     "strips fbclid but keeps meaningful params",
			raw:      "https://www.facebook.com/watch?v=42&fbclid=IwAR0abc",
			expected: "https://www.facebook.com/watch?v=42",
		},
		{
			name:     "drops fragment",
			raw:      "https://www.reddit.com/r/videos/comments/abc123/title/#comment",
			expected: "https://www.reddit.com/r/videos/comments/abc123/title",
		},
		{
			name:     "trailing slash removed",
			raw:      "https://www.instagram.com/reel/Cxyz/",
			expected: "https://www.instagram.com/reel/Cxyz",
		},
		{
			name:     "scheme-less www input",
			raw:      "www.youtube.com/watch?v=abc",
			expected: "https://www.youtube.com/watch?v=abc",
		},
		{
			name:     "query params sorted for stable output",
			raw:      "https://example.com/page?b=2&a=1",
			expected: "https://example.com/page?a=1&b=2",
		},
		{
			name:     "unparseable input returned as-is",
			raw:      "://///",
			expected: "://///",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CanonicalURL(tt.raw))
		})
	}
}

func TestCanonicalURLIdempotent(t *testing.T) {
	inputs := []string{
		"https://x.com/u/status/123?utm_source=share#top",
		"www.instagram.com/p/Cabc/?igsh=xyz",
		"https://www.youtube.com/watch?v=abc&feature=share&t=30",
		"https://vm.tiktok.com/ZMabcdef/",
		"https://www.facebook.com/user/videos/99887766/?mibextid=qqq",
	}
	for _, in := range inputs {
		once := CanonicalURL(in)
		assert.Equal(t, once, CanonicalURL(once), "not idempotent for %s", in)
	}
}

func TestDedupKey(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected string
	}{
		{
			name:     "x status id",
			raw:      "https://x.com/someone/status/1234567890?s=20",
			expected: "x:1234567890",
		},
		{
			name:     "legacy twitter domain shares the key",
			raw:      "https://twitter.com/someone/status/1234567890",
			expected: "x:1234567890",
		},
		{
			name:     "youtube watch url",
			raw:      "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
			expected: "yt:dQw4w9WgXcQ",
		},
		{
			name:     "youtube short link",
			raw:      "https://youtu.be/dQw4w9WgXcQ?si=tracking",
			expected: "yt:dQw4w9WgXcQ",
		},
		{
			name:     "youtube shorts path",
			raw:      "https://www.youtube.com/shorts/xyz-ABC_12",
			expected: "yt:xyz-ABC_12",
		},
		{
			name:     "instagram reel",
			raw:      "https://www.instagram.com/reel/Cxyz123/?igsh=aaa",
			expected: "ig:Cxyz123",
		},
		{
			name:     "instagram post",
			raw:      "https://instagram.com/p/Babc987/",
			expected: "ig:Babc987",
		},
		{
			name:     "tiktok video",
			raw:      "https://www.tiktok.com/@user/video/7123456789012345678",
			expected: "tt:7123456789012345678",
		},
		{
			name:     "facebook video path",
			raw:      "https://www.facebook.com/pagename/videos/112233445566",
			expected: "fb:112233445566",
		},
		{
			name:     "facebook watch param",
			raw:      "https://www.facebook.com/watch/?v=9988776655",
			expected: "fb:9988776655",
		},
		{
			name:     "facebook share link",
			raw:      "https://www.facebook.com/share/v/AbCdEf123/",
			expected: "fb:AbCdEf123",
		},
		{
			name:     "fb.watch short link",
			raw:      "https://fb.watch/xYz123/",
			expected: "fb:xYz123",
		},
		{
			name:     "reddit comments",
			raw:      "https://www.reddit.com/r/videos/comments/17abcd/some_title/",
			expected: "rd:17abcd",
		},
		{
			name:     "unrecognized platform falls back to canonical url",
			raw:      "https://example.com/media/123?utm_source=x",
			expected: "https://example.com/media/123",
		},
		{
			name:     "recognized platform without id falls back to canonical url",
			raw:      "https://www.instagram.com/someuser",
			expected: "https://www.instagram.com/someuser",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DedupKey(tt.raw))
		})
	}
}

func TestDedupKeyIgnoresTrackingOrder(t *testing.T) {
	a := "https://x.com/u/status/42?utm_source=a&utm_medium=b"
	b := "https://x.com/u/status/42?utm_medium=b&utm_source=a"
	c := "https://x.com/u/status/42"
	assert.Equal(t, DedupKey(a), DedupKey(b))
	assert.Equal(t, DedupKey(b), DedupKey(c))
}

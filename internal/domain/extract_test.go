package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractURLs(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected []string
	}{
		{
			name:     "empty input",
			text:     "",
			expected: nil,
		},
		{
			name:     "plain url on its own line",
			text:     "https://x.com/someone/status/1234567890",
			expected: []string{"https://x.com/someone/status/1234567890"},
		},
		{
			name: "urls buried in prose",
			text: "check this out https://www.instagram.com/reel/Cxyz123/ and also\nhttps://youtu.be/dQw4w9WgXcQ thanks!",
			expected: []string{
				"https://www.instagram.com/reel/Cxyz123/",
				"https://youtu.be/dQw4w9WgXcQ",
			},
		},
		{
			name: "comma and semicolon separated",
			text: "https://x.com/a/status/111,https://x.com/b/status/222;https://x.com/c/status/333",
			expected: []string{
				"https://x.com/a/status/111",
				"https://x.com/b/status/222",
				"https://x.com/c/status/333",
			},
		},
		{
			name:     "surrounding punctuation trimmed",
			text:     `(see: "https://www.tiktok.com/@user/video/7123456789012345678").`,
			expected: []string{"https://www.tiktok.com/@user/video/7123456789012345678"},
		},
		{
			name:     "scheme-less www promoted to https",
			text:     "www.facebook.com/watch?v=1234567890",
			expected: []string{"https://www.facebook.com/watch?v=1234567890"},
		},
		{
			name:     "zero-width characters removed",
			text:     "https://x.com/user/status/99​88‍77",
			expected: []string{"https://x.com/user/status/998877"},
		},
		{
			name:     "plain words ignored",
			text:     "nothing to see here, just words and a half-link example.com/foo",
			expected: nil,
		},
		{
			name: "duplicates collapse to first occurrence",
			text: "https://x.com/user/status/123?utm_source=share\nhttps://x.com/user/status/123",
			expected: []string{
				"https://x.com/user/status/123?utm_source=share",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ExtractURLs(tt.text))
		})
	}
}

func TestExtractURLsNoDuplicateKeys(t *testing.T) {
	text := strings.Join([]string{
		"https://youtu.be/abc123XYZ_-",
		"https://www.youtube.com/watch?v=abc123XYZ_-&feature=share",
		"https://m.youtube.com/watch?v=abc123XYZ_-",
	}, "\n")

	urls := ExtractURLs(text)
	require.Len(t, urls, 1)

	seen := map[string]struct{}{}
	for _, u := range urls {
		key := DedupKey(u)
		_, dup := seen[key]
		assert.False(t, dup, "duplicate key %s", key)
		seen[key] = struct{}{}
	}
}

func TestExtractRecords(t *testing.T) {
	records := []LinkRecord{
		{URL: "https://x.com/user/status/123?utm_source=mail", Source: "alice", SourcePath: "/lists/alice.txt"},
		{URL: "not a url", Source: "alice", SourcePath: "/lists/alice.txt"},
		{URL: "  https://x.com/user/status/123  ", Source: "bob", SourcePath: "/lists/bob.txt"},
		{URL: "www.instagram.com/p/Cfoo42", Source: "bob", SourcePath: "/lists/bob.txt"},
	}

	out := ExtractRecords(records)
	require.Len(t, out, 2)
	assert.Equal(t, "alice", out[0].Source)
	assert.Equal(t, "https://x.com/user/status/123?utm_source=mail", out[0].URL)
	assert.Equal(t, "https://www.instagram.com/p/Cfoo42", out[1].URL)
	assert.Equal(t, "bob", out[1].Source)
}

func TestBuildRequests(t *testing.T) {
	records := []LinkRecord{
		{URL: "https://twitter.com/u/status/555?s=20&t=zzz", Source: "alice", SourcePath: "/lists/alice.txt"},
		{URL: "https://x.com/u/status/555", Source: "bob", SourcePath: "/lists/bob.txt"},
		{URL: "https://vm.tiktok.com/ZMabcdef/", Source: "bob", SourcePath: "/lists/bob.txt"},
	}

	reqs := BuildRequests(records)
	require.Len(t, reqs, 2)

	assert.Equal(t, "x:555", reqs[0].DedupKey)
	assert.Equal(t, PlatformX, reqs[0].Platform)
	assert.Equal(t, "alice", reqs[0].Source, "first occurrence wins")

	assert.Equal(t, PlatformTikTok, reqs[1].Platform)
	assert.Equal(t, "tt:ZMabcdef", reqs[1].DedupKey)
}

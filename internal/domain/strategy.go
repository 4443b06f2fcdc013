package domain

import "fmt"

// Downloader tool names as they appear in strategy tables and config.
const (
	ToolYTDLP     = "yt-dlp"
	ToolGalleryDL = "gallery-dl"
	ToolYouGet    = "you-get"
)

// defaultChainLimit caps how many backends a normal run tries per URL.
// Thorough mode lifts the cap and walks the full chain.
const defaultChainLimit = 2

// StrategyTable orders downloader backends per platform, best first.
type StrategyTable map[Platform][]string

// DefaultStrategyTable returns the built-in backend ordering. Video-first
// platforms lead with yt-dlp; image-heavy ones lead with gallery-dl.
func DefaultStrategyTable() StrategyTable {
	return StrategyTable{
		PlatformFacebook:  {ToolYTDLP, ToolGalleryDL, ToolYouGet},
		PlatformInstagram: {ToolGalleryDL, ToolYTDLP, ToolYouGet},
		PlatformTikTok:    {ToolYTDLP, ToolGalleryDL, ToolYouGet},
		PlatformX:         {ToolYTDLP, ToolGalleryDL},
		PlatformYouTube:   {ToolYTDLP, ToolYouGet},
		PlatformReddit:    {ToolYTDLP, ToolGalleryDL},
		PlatformOther:     {ToolYTDLP, ToolGalleryDL, ToolYouGet},
	}
}

// DownloadersFor returns the ordered backends to try for a platform.
// Unknown platforms fall back to the PlatformOther chain. Unless thorough
// is set the chain is truncated to the first two entries.
func (t StrategyTable) DownloadersFor(platform Platform, thorough bool) []string {
	chain, ok := t[platform]
	if !ok || len(chain) == 0 {
		chain = t[PlatformOther]
	}
	if !thorough && len(chain) > defaultChainLimit {
		chain = chain[:defaultChainLimit]
	}
	out := make([]string, len(chain))
	copy(out, chain)
	return out
}

// Merge overlays per-platform entries from an override table, leaving
// platforms the override does not mention untouched.
func (t StrategyTable) Merge(override StrategyTable) {
	for platform, chain := range override {
		if len(chain) == 0 {
			continue
		}
		t[platform] = chain
	}
}

// Validate rejects tables that reference unknown tools or empty chains,
// using known to test tool names against the registered downloaders.
func (t StrategyTable) Validate(known func(name string) bool) error {
	for platform, chain := range t {
		if len(chain) == 0 {
			return fmt.Errorf("strategy for %s is empty", platform)
		}
		for _, name := range chain {
			if !known(name) {
				return fmt.Errorf("strategy for %s references unknown downloader %q", platform, name)
			}
		}
	}
	return nil
}

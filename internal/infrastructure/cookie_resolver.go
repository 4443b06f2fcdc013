package infrastructure

import (
	"os"
	"path/filepath"

	"github.com/toseeq44/automation-fb-sub003/internal/domain"
)

// minCookieFileSize filters out empty or placeholder cookie files; a real
// Netscape export is always bigger than this.
const minCookieFileSize = 64

// CookieResolver locates Netscape-format cookie files for a URL. The
// candidate order is fixed: the shared master file, the platform file,
// the generic file in the cookies dir, the user's home fallback, then
// cookie files living next to the source list.
type CookieResolver struct {
	cookiesDir string
	homeDir    string
	minSize    int64
}

func NewCookieResolver(cookiesDir string) *CookieResolver {
	home, _ := os.UserHomeDir()
	return &CookieResolver{
		cookiesDir: cookiesDir,
		homeDir:    home,
		minSize:    minCookieFileSize,
	}
}

// Resolve returns the usable cookie file candidates for a URL in retry
// order. Files that do not exist or are trivially small are dropped.
// An empty result means attempts run cookie-less.
func (r *CookieResolver) Resolve(rawURL, sourceDir string) []string {
	platform := domain.DetectPlatform(rawURL)

	var candidates []string
	if r.cookiesDir != "" {
		candidates = append(candidates, filepath.Join(r.cookiesDir, "master.txt"))
		if platform != domain.PlatformOther {
			candidates = append(candidates, filepath.Join(r.cookiesDir, string(platform)+".txt"))
		}
		candidates = append(candidates, filepath.Join(r.cookiesDir, "cookies.txt"))
	}
	if r.homeDir != "" {
		candidates = append(candidates, filepath.Join(r.homeDir, "cookies.txt"))
	}
	if sourceDir != "" {
		if platform != domain.PlatformOther {
			candidates = append(candidates, filepath.Join(sourceDir, string(platform)+"_cookies.txt"))
		}
		candidates = append(candidates, filepath.Join(sourceDir, "cookies.txt"))
	}

	var out []string
	seen := map[string]struct{}{}
	for _, path := range candidates {
		if _, dup := seen[path]; dup {
			continue
		}
		seen[path] = struct{}{}
		if r.usable(path) {
			out = append(out, path)
		}
	}
	return out
}

func (r *CookieResolver) usable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	return info.Size() >= r.minSize
}

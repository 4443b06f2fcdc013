package infrastructure

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/toseeq44/automation-fb-sub003/internal/domain"
)

// LoadLinkRecords reads collected link lists. path may be a single .txt
// file or a directory of them; each file is one source named after the
// file. Blank lines and # comments are kept out of the records but stay
// in the file.
func LoadLinkRecords(path string) ([]domain.LinkRecord, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read source path: %w", err)
	}
	if !info.IsDir() {
		return loadLinkFile(path)
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("failed to list source dir: %w", err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".txt") {
			continue
		}
		if strings.Contains(e.Name(), "cookies") {
			continue
		}
		files = append(files, filepath.Join(path, e.Name()))
	}
	sort.Strings(files)

	var records []domain.LinkRecord
	for _, f := range files {
		recs, err := loadLinkFile(f)
		if err != nil {
			return nil, err
		}
		records = append(records, recs...)
	}
	return records, nil
}

func loadLinkFile(path string) ([]domain.LinkRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open source list: %w", err)
	}
	defer f.Close()

	source := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	var records []domain.LinkRecord
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		records = append(records, domain.LinkRecord{
			URL:        line,
			Source:     source,
			SourcePath: path,
		})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read source list: %w", err)
	}
	return records, nil
}

// PruneSourceList rewrites a link list dropping every line whose URL
// resolved to one of the done dedup keys. Comments, blanks and lines that
// never parsed as links survive. The rewrite goes through a temp file and
// rename. Returns how many lines were removed.
func PruneSourceList(path string, done map[string]struct{}) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read source list: %w", err)
	}

	var (
		kept    []string
		removed int
	)
	for _, line := range strings.Split(string(data), "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed != "" && !strings.HasPrefix(trimmed, "#") {
			if urls := domain.ExtractURLs(trimmed); len(urls) > 0 {
				if _, ok := done[domain.DedupKey(urls[0])]; ok {
					removed++
					continue
				}
			}
		}
		kept = append(kept, line)
	}
	if removed == 0 {
		return 0, nil
	}

	out := strings.Join(kept, "\n")
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return 0, fmt.Errorf("failed to create temp list: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.WriteString(out); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return 0, fmt.Errorf("failed to write pruned list: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("failed to close pruned list: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("failed to replace source list: %w", err)
	}
	return removed, nil
}

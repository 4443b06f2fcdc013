package logger

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// LogEntry is one parsed line from a dated log file. Structured zap
// output fills Time, Level, Message and Fields; plain-text lines (tool
// output logs) land in Message as-is.
type LogEntry struct {
	Time    string                 `json:"ts"`
	Level   string                 `json:"level"`
	Message string                 `json:"msg"`
	Fields  map[string]interface{} `json:"fields,omitempty"`
}

// LogReader reads dated log files from the logs directory.
type LogReader struct {
	logsDir string
}

// NewLogReader creates a reader over the given logs directory.
func NewLogReader(logsDir string) *LogReader {
	return &LogReader{logsDir: logsDir}
}

// Path returns the file path for a category on a given date.
func (lr *LogReader) Path(category LogCategory, date time.Time) string {
	filename := fmt.Sprintf("%s-%s.log", category, date.Format("20060102"))
	return filepath.Join(lr.logsDir, filename)
}

// Tail returns the last limit entries from today's log for a category.
// A limit of zero returns every entry. A missing file yields an empty
// slice, not an error.
func (lr *LogReader) Tail(category LogCategory, limit int) ([]LogEntry, error) {
	return lr.TailDate(category, time.Now(), limit)
}

// TailDate returns the last limit entries for a category on a specific date.
func (lr *LogReader) TailDate(category LogCategory, date time.Time, limit int) ([]LogEntry, error) {
	file, err := os.Open(lr.Path(category, date))
	if err != nil {
		if os.IsNotExist(err) {
			return []LogEntry{}, nil
		}
		return nil, err
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if line := scanner.Text(); line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if limit > 0 && len(lines) > limit {
		lines = lines[len(lines)-limit:]
	}

	entries := make([]LogEntry, 0, len(lines))
	for _, line := range lines {
		entries = append(entries, parseLogLine(line))
	}
	return entries, nil
}

// parseLogLine decodes a structured zap line, lifting the well-known
// keys out and leaving the rest in Fields. Non-JSON lines are wrapped
// verbatim.
func parseLogLine(line string) LogEntry {
	var raw map[string]interface{}
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		return LogEntry{Message: line}
	}

	entry := LogEntry{}
	if v, ok := raw["ts"].(string); ok {
		entry.Time = v
		delete(raw, "ts")
	}
	if v, ok := raw["level"].(string); ok {
		entry.Level = v
		delete(raw, "level")
	}
	if v, ok := raw["msg"].(string); ok {
		entry.Message = v
		delete(raw, "msg")
	}
	if len(raw) > 0 {
		entry.Fields = raw
	}
	return entry
}

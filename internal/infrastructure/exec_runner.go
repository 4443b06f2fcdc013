package infrastructure

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/toseeq44/automation-fb-sub003/internal/domain"
)

// diagnosticTailLines bounds how much tool output is kept for failure
// classification; the interesting error is always near the end.
const diagnosticTailLines = 40

// lineParser extracts byte counters from one line of tool output.
// ok is false when the line carries no counter.
type lineParser func(line string) (downloaded, total int64, ok bool)

// toolRunner executes one external downloader invocation: it scans stdout
// and stderr line by line, forwards lines to the progress callback,
// mirrors everything into a dated log file and keeps a tail for the
// failure diagnostic.
type toolRunner struct {
	binary  string
	logsDir string
	parse   lineParser
}

// run blocks until the tool exits, the timeout fires or ctx is cancelled.
func (r *toolRunner) run(ctx context.Context, args []string, job domain.FetchJob) *domain.FetchOutcome {
	start := time.Now()

	if job.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, job.Timeout)
		defer cancel()
	}

	logFile := r.openLogFile()
	if logFile != nil {
		defer logFile.Close()
		fmt.Fprintf(logFile, "\n=== %s | %s ===\n$ %s\n",
			start.Format(time.RFC3339), job.URL, commandLine(r.binary, args))
	}

	cmd := exec.CommandContext(ctx, r.binary, args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return failedOutcome(start, fmt.Sprintf("failed to open stdout pipe: %v", err))
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return failedOutcome(start, fmt.Sprintf("failed to open stderr pipe: %v", err))
	}

	if err := cmd.Start(); err != nil {
		return failedOutcome(start, fmt.Sprintf("failed to start %s: %v", r.binary, err))
	}

	tail := newTailBuffer(diagnosticTailLines)
	var wg sync.WaitGroup
	wg.Add(2)
	go r.scanPipe(&wg, stdout, job.Progress, tail, logFile)
	go r.scanPipe(&wg, stderr, job.Progress, tail, logFile)
	wg.Wait()

	waitErr := cmd.Wait()
	elapsed := time.Since(start)

	outcome := &domain.FetchOutcome{Elapsed: elapsed}
	switch {
	case waitErr == nil:
		outcome.Succeeded = true
	case ctx.Err() == context.DeadlineExceeded:
		outcome.Diagnostic = fmt.Sprintf("timed out after %s\n%s", elapsed.Round(time.Second), tail.String())
	case ctx.Err() == context.Canceled:
		outcome.Diagnostic = fmt.Sprintf("cancelled\n%s", tail.String())
	default:
		outcome.Diagnostic = fmt.Sprintf("%s exited: %v\n%s", r.binary, waitErr, tail.String())
	}

	if logFile != nil {
		fmt.Fprintf(logFile, "--- exit after %s: %s ---\n", elapsed.Round(time.Millisecond), outcomeLabel(outcome, waitErr))
	}
	return outcome
}

func (r *toolRunner) scanPipe(wg *sync.WaitGroup, pipe io.Reader, progress domain.ProgressFunc, tail *tailBuffer, logFile *os.File) {
	defer wg.Done()
	sc := bufio.NewScanner(pipe)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()
		tail.Add(line)
		if logFile != nil {
			fmt.Fprintln(logFile, line)
		}
		if progress == nil {
			continue
		}
		if r.parse != nil {
			if downloaded, total, ok := r.parse(line); ok {
				progress(line, downloaded, total)
				continue
			}
		}
		progress(line, -1, -1)
	}
}

// openLogFile appends to the dated tool log. An empty logsDir disables
// file logging entirely, which single-mode runs rely on.
func (r *toolRunner) openLogFile() *os.File {
	if r.logsDir == "" {
		return nil
	}
	if err := os.MkdirAll(r.logsDir, 0o755); err != nil {
		return nil
	}
	name := fmt.Sprintf("download-%s.log", time.Now().Format("20060102"))
	f, err := os.OpenFile(filepath.Join(r.logsDir, name), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil
	}
	return f
}

func failedOutcome(start time.Time, diagnostic string) *domain.FetchOutcome {
	return &domain.FetchOutcome{
		Diagnostic: diagnostic,
		Elapsed:    time.Since(start),
	}
}

func outcomeLabel(o *domain.FetchOutcome, waitErr error) string {
	if o.Succeeded {
		return "ok"
	}
	if waitErr != nil {
		return waitErr.Error()
	}
	return "failed"
}

// tailBuffer keeps the last n non-empty lines of output.
type tailBuffer struct {
	mu    sync.Mutex
	lines []string
	limit int
}

func newTailBuffer(limit int) *tailBuffer {
	return &tailBuffer{limit: limit}
}

func (b *tailBuffer) Add(line string) {
	line = strings.TrimRight(line, "\r\n")
	if strings.TrimSpace(line) == "" {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lines = append(b.lines, line)
	if len(b.lines) > b.limit {
		b.lines = b.lines[len(b.lines)-b.limit:]
	}
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.Join(b.lines, "\n")
}

// shellQuote renders one argument the way a user could paste it back into
// a shell. Only used for log readability, never for execution.
func shellQuote(arg string) string {
	if arg == "" {
		return "''"
	}
	if !strings.ContainsAny(arg, " \t\n\"'\\$`&|;<>(){}[]*?~#") {
		return arg
	}
	return "'" + strings.ReplaceAll(arg, "'", `'\''`) + "'"
}

func commandLine(binary string, args []string) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, shellQuote(binary))
	for _, a := range args {
		parts = append(parts, shellQuote(a))
	}
	return strings.Join(parts, " ")
}

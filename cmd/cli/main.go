package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"sync"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/toseeq44/automation-fb-sub003/internal/app"
	"github.com/toseeq44/automation-fb-sub003/internal/domain"
	"github.com/toseeq44/automation-fb-sub003/internal/infrastructure"
	"github.com/toseeq44/automation-fb-sub003/pkg/logger"
)

var (
	configPath string
	verbose    bool
	rootCmd    = &cobra.Command{
		Use:   "grab",
		Short: "Grab - bulk downloader for collected social media links",
		Long: `Grab downloads media from collected link lists through yt-dlp,
gallery-dl and you-get, with cross-run dedup tracking, cookie and proxy
rotation and per-source history.`,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: ./configs, ~/.grab, /etc/grab)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Echo engine diagnostics to the console")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(sourcesCmd)
}

func init() {
	runCmd.Flags().BoolP("thorough", "t", false, "Walk the full backend chain per URL")
	runCmd.Flags().StringP("output", "o", "", "Override the output directory")
	runCmd.Flags().Bool("skip-recent", false, "Skip sources downloaded within the recent window")
	getCmd.Flags().BoolP("thorough", "t", false, "Walk the full backend chain per URL")
	getCmd.Flags().StringP("output", "o", "", "Override the output directory")
}

func loadConfig() *domain.Config {
	cfg, err := app.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

var runCmd = &cobra.Command{
	Use:   "run [path]",
	Short: "Run a bulk download over a link file or a directory of link files",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		thorough, _ := cmd.Flags().GetBool("thorough")
		outputDir, _ := cmd.Flags().GetString("output")
		skipRecent, _ := cmd.Flags().GetBool("skip-recent")

		records, err := infrastructure.LoadLinkRecords(args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if len(records) == 0 {
			fmt.Fprintln(os.Stderr, "Error: no links found under "+args[0])
			os.Exit(1)
		}

		tracker, err := infrastructure.NewTracker(cfg.Download.DataDir)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer tracker.Close()

		engine, cleanup, err := buildEngine(cfg, tracker)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer cleanup()

		input := domain.RunInput{
			Records: records,
			Options: domain.RunOptions{
				Mode:       domain.ModeBulk,
				OutputDir:  outputDir,
				Thorough:   thorough,
				SkipRecent: skipRecent,
			},
		}
		runAndReport(engine, input)
	},
}

var getCmd = &cobra.Command{
	Use:   "get [url...]",
	Short: "Download ad-hoc URLs without touching tracking state",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		thorough, _ := cmd.Flags().GetBool("thorough")
		outputDir, _ := cmd.Flags().GetString("output")

		// Single mode never records dedup keys, so no tracker.
		engine, cleanup, err := buildEngine(cfg, nil)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer cleanup()

		input := domain.RunInput{
			Text: strings.Join(args, "\n"),
			Options: domain.RunOptions{
				Mode:      domain.ModeSingle,
				OutputDir: outputDir,
				Thorough:  thorough,
			},
		}
		runAndReport(engine, input)
	},
}

var extractCmd = &cobra.Command{
	Use:   "extract [file]",
	Short: "Extract canonical download links from text without downloading",
	Long:  `Reads a file (or stdin when the argument is omitted or "-") and prints every downloadable link it finds, canonicalized and deduplicated.`,
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		var (
			data []byte
			err  error
		)
		if len(args) == 0 || args[0] == "-" {
			data, err = io.ReadAll(os.Stdin)
		} else {
			data, err = os.ReadFile(args[0])
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		seen := make(map[string]struct{})
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "URL\tKEY\tPLATFORM")
		for _, raw := range domain.ExtractURLs(string(data)) {
			req := domain.NewDownloadRequest(raw)
			if _, dup := seen[req.DedupKey]; dup {
				continue
			}
			seen[req.DedupKey] = struct{}{}
			fmt.Fprintf(w, "%s\t%s\t%s\n", req.CanonicalURL, req.DedupKey, req.Platform)
		}
		w.Flush()
		fmt.Printf("%d links\n", len(seen))
	},
}

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "Show per-source download history",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		tracker, err := infrastructure.NewTracker(cfg.Download.DataDir)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer tracker.Close()

		histories := tracker.Histories()
		if len(histories) == 0 {
			fmt.Println("No sources recorded yet.")
			return
		}
		names := make([]string, 0, len(histories))
		for name := range histories {
			names = append(names, name)
		}
		sort.Strings(names)

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "SOURCE\tDOWNLOADED\tFAILED\tLAST STATUS\tLAST DOWNLOAD")
		for _, name := range names {
			h := histories[name]
			fmt.Fprintf(w, "%s\t%d\t%d\t%s\t%s\n",
				truncate(name, 30),
				h.TotalDownloaded,
				h.TotalFailed,
				h.LastStatus,
				h.LastDownload.Format("2006-01-02 15:04"))
		}
		w.Flush()
	},
}

// buildEngine wires an engine from the loaded config. tracker may be nil
// for single-mode use. The returned cleanup closes the loggers and the
// run archive; the tracker stays with the caller.
func buildEngine(cfg *domain.Config, tracker domain.DownloadTracker) (*app.Engine, func(), error) {
	if err := ensureDirectories(cfg); err != nil {
		return nil, nil, err
	}

	multiLog, err := logger.NewMultiLogger(logger.MultiLoggerConfig{
		Level:   cfg.Logging.Level,
		LogsDir: cfg.Download.LogsDir,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	// Engine diagnostics go to the dated run log; --verbose tees them to
	// the console as well.
	runLog := multiLog.Run()
	if verbose {
		console, err := logger.New(logger.Config{
			Level:      "debug",
			Format:     cfg.Logging.Format,
			OutputPath: cfg.Logging.OutputPath,
		})
		if err != nil {
			multiLog.Close()
			return nil, nil, fmt.Errorf("failed to initialize console logger: %w", err)
		}
		runLog = zap.New(zapcore.NewTee(runLog.Core(), console.Core()))
	}

	table, err := app.LoadStrategyTable(cfg)
	if err != nil {
		multiLog.Close()
		return nil, nil, err
	}

	var archive *infrastructure.RunArchive
	if cfg.Archive.Enabled {
		archive, err = infrastructure.NewRunArchive(cfg.Archive.DatabasePath)
		if err != nil {
			multiLog.Close()
			return nil, nil, fmt.Errorf("failed to open run archive: %w", err)
		}
	}

	deps := app.EngineDeps{
		Downloaders: app.NewToolRegistry(&cfg.Tools),
		Table:       table,
		Cookies:     infrastructure.NewCookieResolver(cfg.Download.CookiesDir),
		Classifier:  infrastructure.NewFailureClassifier(cfg.Signatures.Block, cfg.Signatures.Auth),
		Tracker:     tracker,
		Notifier:    infrastructure.NewNotificationService(&cfg.Notification, runLog),
		Sink:        domain.CombineSinks(app.NewLogSink(multiLog), newConsoleSink(os.Stdout)),
		Logger:      runLog,
	}
	if archive != nil {
		deps.Archiver = archive
	}

	cleanup := func() {
		if archive != nil {
			archive.Close()
		}
		multiLog.Close()
	}
	return app.NewEngine(cfg, deps), cleanup, nil
}

func ensureDirectories(cfg *domain.Config) error {
	dirs := []string{
		cfg.Download.OutputDir,
		cfg.Download.DataDir,
		cfg.Download.CookiesDir,
		cfg.Download.LogsDir,
	}
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// runAndReport executes one run to completion, cancelling cooperatively
// on SIGINT/SIGTERM, and exits non-zero unless the run fully succeeded.
func runAndReport(engine *app.Engine, input domain.RunInput) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary, err := engine.Run(ctx, input)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	printSummary(summary)
	if !summary.Success {
		os.Exit(1)
	}
}

func printSummary(s *domain.RunSummary) {
	fmt.Println()
	fmt.Println("Run summary:")
	fmt.Printf("  Run ID:     %s\n", s.RunID)
	fmt.Printf("  Total:      %d\n", s.Total)
	fmt.Printf("  Downloaded: %d\n", s.Downloaded)
	fmt.Printf("  Skipped:    %d\n", s.Skipped)
	fmt.Printf("  Failed:     %d\n", len(s.Failed))
	fmt.Printf("  Elapsed:    %s\n", s.Elapsed().Round(time.Second))
	if s.Cancelled {
		fmt.Println("  Cancelled:  yes")
	}
	for _, f := range s.Failed {
		fmt.Printf("    %s: %s\n", truncate(f.URL, 60), lastLine(f.Diagnostic))
	}
}

// lastLine trims a multi-line tool diagnostic down to its final line,
// which carries the actual error.
func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return lines[len(lines)-1]
}

// consoleSink renders run events as terminal lines. Progress samples
// redraw a single line in place; the next full line closes it first.
type consoleSink struct {
	out io.Writer

	mu    sync.Mutex
	dirty bool
}

func newConsoleSink(out io.Writer) *consoleSink {
	return &consoleSink{out: out}
}

func (c *consoleSink) Progress(e domain.ProgressEvent) {
	if e.Percent < 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, "\r  %5.1f%%  %-12s %-10s", e.Percent, e.Speed, e.ETA)
	c.dirty = true
}

func (c *consoleSink) Completed(n domain.CompletionNotice) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLine()
	// Index counts from zero; people count from one.
	switch n.Status {
	case domain.StatusDownloaded:
		fmt.Fprintf(c.out, "[%d/%d] done     %s (%s, %s)\n",
			n.Index+1, n.Total, truncate(n.URL, 60), n.Downloader, n.Elapsed.Round(time.Second))
	case domain.StatusSkipped:
		fmt.Fprintf(c.out, "[%d/%d] skipped  %s (%s)\n",
			n.Index+1, n.Total, truncate(n.URL, 60), n.Diagnostic)
	case domain.StatusFailed:
		fmt.Fprintf(c.out, "[%d/%d] failed   %s: %s\n",
			n.Index+1, n.Total, truncate(n.URL, 60), lastLine(n.Diagnostic))
	}
}

func (c *consoleSink) RunFinished(s domain.RunSummary) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLine()
}

func (c *consoleSink) closeLine() {
	if c.dirty {
		fmt.Fprintln(c.out)
		c.dirty = false
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

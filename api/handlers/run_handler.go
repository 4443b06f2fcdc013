package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/toseeq44/automation-fb-sub003/internal/app"
	"github.com/toseeq44/automation-fb-sub003/internal/domain"
	"github.com/toseeq44/automation-fb-sub003/internal/infrastructure"
)

// RunHandler exposes the engine's run lifecycle over HTTP.
type RunHandler struct {
	engine  *app.Engine
	archive *infrastructure.RunArchive
	logger  *zap.Logger
}

// NewRunHandler creates a run handler. archive may be nil when the run
// archive is disabled.
func NewRunHandler(engine *app.Engine, archive *infrastructure.RunArchive, logger *zap.Logger) *RunHandler {
	return &RunHandler{
		engine:  engine,
		archive: archive,
		logger:  logger,
	}
}

// StartRunRequest is the body of POST /api/v1/runs. Text carries pasted
// links; SourcePath points at a server-side list file or directory of
// list files. At least one of the two must yield a downloadable URL.
type StartRunRequest struct {
	Text       string `json:"text"`
	SourcePath string `json:"source_path"`
	Mode       string `json:"mode,omitempty"`
	OutputDir  string `json:"output_dir,omitempty"`
	Thorough   bool   `json:"thorough,omitempty"`
	SkipRecent bool   `json:"skip_recent,omitempty"`
}

// StartRun handles POST /api/v1/runs.
func (h *RunHandler) StartRun(c *gin.Context) {
	var req StartRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	switch req.Mode {
	case "", string(domain.ModeSingle), string(domain.ModeBulk):
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown run mode " + strconv.Quote(req.Mode)})
		return
	}

	input := domain.RunInput{
		Text: req.Text,
		Options: domain.RunOptions{
			Mode:       domain.RunMode(req.Mode),
			OutputDir:  req.OutputDir,
			Thorough:   req.Thorough,
			SkipRecent: req.SkipRecent,
		},
	}
	if req.SourcePath != "" {
		records, err := infrastructure.LoadLinkRecords(req.SourcePath)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		input.Records = records
	}

	// The run outlives this request; it is stopped through the cancel
	// endpoint, not by the client hanging up.
	runID, err := h.engine.Start(context.Background(), input)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrRunActive):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		case errors.Is(err, domain.ErrNoInput):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			h.logger.Error("Failed to start run", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"run_id": runID})
}

// ActiveRun handles GET /api/v1/runs/active.
func (h *RunHandler) ActiveRun(c *gin.Context) {
	status, ok := h.engine.Snapshot()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no active run"})
		return
	}
	c.JSON(http.StatusOK, status)
}

// CancelRun handles POST /api/v1/runs/active/cancel. Cancellation is
// cooperative: the URL in flight finishes, nothing further starts.
func (h *RunHandler) CancelRun(c *gin.Context) {
	if err := h.engine.Cancel(); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "cancellation requested"})
}

// ListRuns handles GET /api/v1/runs.
func (h *RunHandler) ListRuns(c *gin.Context) {
	if h.archive == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "run archive is disabled"})
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit < 0 {
		limit = 20
	}

	runs, err := h.archive.RecentRuns(limit)
	if err != nil {
		h.logger.Error("Failed to list archived runs", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read run archive"})
		return
	}
	total, err := h.archive.Count()
	if err != nil {
		h.logger.Error("Failed to count archived runs", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read run archive"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(runs), "total": total, "runs": runs})
}

// GetRun handles GET /api/v1/runs/:id.
func (h *RunHandler) GetRun(c *gin.Context) {
	if h.archive == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "run archive is disabled"})
		return
	}

	run, err := h.archive.FindRun(c.Param("id"))
	if err != nil {
		h.logger.Error("Failed to load archived run", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read run archive"})
		return
	}
	if run == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
		return
	}
	c.JSON(http.StatusOK, run)
}

// RunFailures handles GET /api/v1/runs/:id/failures.
func (h *RunHandler) RunFailures(c *gin.Context) {
	if h.archive == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "run archive is disabled"})
		return
	}

	runID := c.Param("id")
	links, err := h.archive.FailedLinks(runID)
	if err != nil {
		h.logger.Error("Failed to load run failures", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read run archive"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"run_id": runID, "count": len(links), "failures": links})
}

// ExtractRequest is the body of POST /api/v1/extract.
type ExtractRequest struct {
	Text string `json:"text" binding:"required"`
}

// ExtractedLink is one normalized URL in the extraction preview.
type ExtractedLink struct {
	URL      string          `json:"url"`
	Key      string          `json:"key"`
	Platform domain.Platform `json:"platform"`
}

// Extract handles POST /api/v1/extract. It previews what a run would
// download from the given text without starting anything.
func (h *RunHandler) Extract(c *gin.Context) {
	var req ExtractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	seen := make(map[string]struct{})
	var links []ExtractedLink
	for _, raw := range domain.ExtractURLs(req.Text) {
		r := domain.NewDownloadRequest(raw)
		if _, dup := seen[r.DedupKey]; dup {
			continue
		}
		seen[r.DedupKey] = struct{}{}
		links = append(links, ExtractedLink{
			URL:      r.CanonicalURL,
			Key:      r.DedupKey,
			Platform: r.Platform,
		})
	}
	c.JSON(http.StatusOK, gin.H{"count": len(links), "links": links})
}

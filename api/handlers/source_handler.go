package handlers

import (
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"

	"github.com/toseeq44/automation-fb-sub003/internal/domain"
)

// SourceHandler serves the per-source download history aggregates.
type SourceHandler struct {
	tracker domain.DownloadTracker
}

// NewSourceHandler creates a source handler.
func NewSourceHandler(tracker domain.DownloadTracker) *SourceHandler {
	return &SourceHandler{tracker: tracker}
}

type sourceSummary struct {
	Source string `json:"source"`
	domain.SourceHistory
}

// ListSources handles GET /api/v1/sources.
func (h *SourceHandler) ListSources(c *gin.Context) {
	histories := h.tracker.Histories()

	summaries := make([]sourceSummary, 0, len(histories))
	for source, history := range histories {
		summaries = append(summaries, sourceSummary{Source: source, SourceHistory: history})
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].Source < summaries[j].Source
	})

	c.JSON(http.StatusOK, gin.H{"count": len(summaries), "sources": summaries})
}

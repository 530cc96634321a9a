package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/akylbek/hotel-pos/settlement-engine/internal/report"
	"github.com/akylbek/hotel-pos/settlement-engine/internal/service"
)

type ReportHandler struct {
	reporter *service.Reporter
}

func NewReportHandler(reporter *service.Reporter) *ReportHandler {
	return &ReportHandler{reporter: reporter}
}

// GetSummary serves GET /reports/summary?from=<RFC3339>&to=<RFC3339>.
func (h *ReportHandler) GetSummary(c *gin.Context) {
	from, err := time.Parse(time.RFC3339, c.Query("from"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "from must be an RFC3339 timestamp"})
		return
	}
	to, err := time.Parse(time.RFC3339, c.Query("to"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "to must be an RFC3339 timestamp"})
		return
	}

	summary, err := h.reporter.Summary(c.Request.Context(), report.Window{Start: from, End: to})
	if err != nil {
		if errors.Is(err, report.ErrInvalidWindow) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/meshdecomp/internal/application/decompose"
	"github.com/turtacn/meshdecomp/pkg/errors"
)

// LastResult returns the most recent successful run, or nil.
type LastResult interface {
	Last() *decompose.Result
}

// SummaryHandler exposes the last decomposition run.
type SummaryHandler struct {
	results LastResult
}

// NewSummaryHandler creates a new SummaryHandler.
func NewSummaryHandler(results LastResult) *SummaryHandler {
	return &SummaryHandler{results: results}
}

// Get handles GET /api/v1/summary.
func (h *SummaryHandler) Get(c *gin.Context) {
	res := h.results.Last()
	if res == nil {
		writeAppError(c, errors.NotFound("no decomposition has completed yet"))
		return
	}
	c.JSON(http.StatusOK, res)
}

// Counts handles GET /api/v1/summary/counts, the cells per partition of
// the last run.
func (h *SummaryHandler) Counts(c *gin.Context) {
	res := h.results.Last()
	if res == nil {
		writeAppError(c, errors.NotFound("no decomposition has completed yet"))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"runId":  res.RunID,
		"counts": res.Summary.Counts,
		"stray":  res.Summary.Stray,
	})
}

// Ready reports whether a run has completed, for use as a readiness check.
func (h *SummaryHandler) Ready() HealthChecker {
	return HealthCheckFunc{
		ComponentName: "decomposition",
		Fn: func(_ context.Context) error {
			if h.results.Last() == nil {
				return errors.NotFound("no decomposition has completed yet")
			}
			return nil
		},
	}
}

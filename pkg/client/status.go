package client

import (
	"context"
	"time"
)

// Liveness is the /healthz body.
type Liveness struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`
}

// ComponentCheck is one readiness check.
type ComponentCheck struct {
	Status  string `json:"status"`
	Latency string `json:"latency,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Readiness is the /readyz body.
type Readiness struct {
	Status     string                    `json:"status"`
	Components map[string]ComponentCheck `json:"components,omitempty"`
}

// Ready reports whether every component is healthy.
func (r *Readiness) Ready() bool { return r.Status == "ready" }

// IDRange is the partition ID interval of one zone.  Zone is 0 for the
// fine region and 1 for the base region.
type IDRange struct {
	Zone  int `json:"zone"`
	First int `json:"first"`
	Last  int `json:"last"`
	Bins  int `json:"bins"`
}

// Summary describes how cells were spread over partitions.
type Summary struct {
	Cells           int     `json:"cells"`
	FineCells       int     `json:"fineCells"`
	BaseCells       int     `json:"baseCells"`
	OutsideBase     int     `json:"outsideBase"`
	Partitions      int     `json:"partitions"`
	Counts          []int   `json:"counts"`
	Stray           int     `json:"stray"`
	EmptyPartitions int     `json:"emptyPartitions"`
	Mean            float64 `json:"mean"`
	StdDev          float64 `json:"stdDev"`
	Min             int     `json:"min"`
	Max             int     `json:"max"`
	Imbalance       float64 `json:"imbalance"`
}

// Run is the last completed decomposition as served by /api/v1/summary.
type Run struct {
	RunID         string        `json:"runId"`
	Linearization string        `json:"linearization"`
	OutOfRange    string        `json:"outOfRange"`
	Ranges        []IDRange     `json:"ranges"`
	Centers       string        `json:"centers"`
	Output        string        `json:"output"`
	Summary       Summary       `json:"summary"`
	Workers       int           `json:"workers"`
	Duration      time.Duration `json:"duration"`
	FinishedAt    time.Time     `json:"finishedAt"`
}

// Counts is the /api/v1/summary/counts body.
type Counts struct {
	RunID  string `json:"runId"`
	Counts []int  `json:"counts"`
	Stray  int    `json:"stray"`
}

// Health calls /healthz.
func (c *Client) Health(ctx context.Context) (*Liveness, error) {
	var out Liveness
	if err := c.get(ctx, "/healthz", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Readiness calls /readyz.  A not-ready server yields both the decoded
// body and an *APIError with status 503.
func (c *Client) Readiness(ctx context.Context) (*Readiness, error) {
	var out Readiness
	err := c.get(ctx, "/readyz", &out)
	return &out, err
}

// LastRun fetches the last completed run.  Before the first run the error
// is an *APIError for which IsNotFound is true.
func (c *Client) LastRun(ctx context.Context) (*Run, error) {
	var out Run
	if err := c.get(ctx, "/api/v1/summary", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Counts fetches the cells per partition of the last run.
func (c *Client) Counts(ctx context.Context) (*Counts, error) {
	var out Counts
	if err := c.get(ctx, "/api/v1/summary/counts", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

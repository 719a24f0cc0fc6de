package cli

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/meshdecomp/internal/application/decompose"
	"github.com/turtacn/meshdecomp/internal/domain/decomposition"
	httpserver "github.com/turtacn/meshdecomp/internal/interfaces/http"
	"github.com/turtacn/meshdecomp/internal/interfaces/http/handlers"
	"github.com/turtacn/meshdecomp/pkg/errors"
)

type fixedResult struct{ res *decompose.Result }

func (f fixedResult) Last() *decompose.Result { return f.res }

func statusServer(t *testing.T, res *decompose.Result) string {
	t.Helper()
	summary := handlers.NewSummaryHandler(fixedResult{res})
	srv := httptest.NewServer(httpserver.NewRouter(httpserver.RouterConfig{
		Mode:           gin.TestMode,
		HealthHandler:  handlers.NewHealthHandler("test", summary.Ready()),
		SummaryHandler: summary,
	}))
	t.Cleanup(srv.Close)
	return srv.URL
}

func TestServerURL(t *testing.T) {
	assert.Equal(t, "http://localhost:9102", serverURL(":9102"))
	assert.Equal(t, "http://localhost:80", serverURL("0.0.0.0:80"))
	assert.Equal(t, "http://10.0.0.1:9102", serverURL("10.0.0.1:9102"))
	assert.Equal(t, "http://[fe80::1]:9102", serverURL("[fe80::1]:9102"))
}

func TestStatus_ReportsLastRun(t *testing.T) {
	url := statusServer(t, &decompose.Result{
		RunID:  "run-7",
		Output: "constant/cellDecomposition",
		Summary: decomposition.Summary{
			Cells: 6, FineCells: 3, BaseCells: 3, Partitions: 2, Counts: []int{4, 2},
		},
	})
	_, cfg := writeCase(t, cubeConfig)

	out, err := executeCommand(t, "status", "-c", cfg, "--server", url)
	require.NoError(t, err)
	assert.Contains(t, out, "(ready: true)")
	assert.Contains(t, out, "run         run-7")
	assert.Contains(t, out, "cells       6 (fine 3, base 3, outside base 0)")

	out, err = executeCommand(t, "status", "-c", cfg, "--server", url, "-o", "json")
	require.NoError(t, err)
	var r statusReport
	require.NoError(t, json.Unmarshal([]byte(out), &r))
	assert.True(t, r.Ready)
	assert.Equal(t, []int{4, 2}, r.Run.Summary.Counts)
}

func TestStatus_NoRunYet(t *testing.T) {
	url := statusServer(t, nil)
	_, cfg := writeCase(t, cubeConfig)

	_, err := executeCommand(t, "status", "-c", cfg, "--server", url)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeNotFound))
}

func TestStatus_BadServer(t *testing.T) {
	_, cfg := writeCase(t, cubeConfig)
	_, err := executeCommand(t, "status", "-c", cfg, "--server", "ftp://x")
	assert.True(t, errors.IsCode(err, errors.CodeInvalidParam))

	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	_, err = executeCommand(t, "status", "-c", cfg, "--server", srv.URL, "--timeout", "1s")
	assert.Error(t, err)
}

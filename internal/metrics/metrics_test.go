package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func value(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func TestRecordOperation_Outcomes(t *testing.T) {
	ok := workflowOps.WithLabelValues("save_progress", "ok")
	failed := workflowOps.WithLabelValues("save_progress", "error")
	okBefore, failedBefore := value(t, ok), value(t, failed)

	RecordOperation("save_progress", nil)
	RecordOperation("save_progress", errors.New("boom"))
	RecordOperation("save_progress", nil)

	assert.Equal(t, okBefore+2, value(t, ok))
	assert.Equal(t, failedBefore+1, value(t, failed))
}

func TestRecordRelocation(t *testing.T) {
	c := relocations.WithLabelValues("repaired")
	before := value(t, c)
	RecordRelocation("repaired")
	assert.Equal(t, before+1, value(t, c))
}

func TestHandler_ExposesSeries(t *testing.T) {
	app := fiber.New()
	app.Use(Middleware())
	app.Get("/projects/:id", func(c *fiber.Ctx) error { return c.SendString("ok") })
	app.Get("/metrics", Handler())

	_, err := app.Test(httptest.NewRequest(http.MethodGet, "/projects/7", nil), -1)
	require.NoError(t, err)
	RecordOperation("create_project", nil)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil), -1)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), `interior_http_request_duration_seconds_count{method="GET",route="/projects/:id",status="200"}`)
	assert.Contains(t, string(body), `interior_workflow_operations_total{operation="create_project",outcome="ok"}`)
}

func TestMiddleware_UnmatchedPathsShareOneLabel(t *testing.T) {
	app := fiber.New()
	app.Use(Middleware())
	app.Get("/rooms/:id", func(c *fiber.Ctx) error { return fiber.ErrNotFound })
	app.Get("/metrics", Handler())

	for _, p := range []string{"/nope/1", "/nope/2", "/rooms/9"} {
		_, err := app.Test(httptest.NewRequest(http.MethodGet, p, nil), -1)
		require.NoError(t, err)
	}

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil), -1)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), `interior_http_request_duration_seconds_count{method="GET",route="unmatched",status="404"} 2`)
	assert.Contains(t, string(body), `interior_http_request_duration_seconds_count{method="GET",route="/rooms/:id",status="404"} 1`)
	assert.NotContains(t, string(body), `route="/nope/1"`)
}

package metrics

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "interior_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
	workflowOps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "interior_workflow_operations_total",
			Help: "Project workflow operations by outcome",
		},
		[]string{"operation", "outcome"},
	)
	relocations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "interior_relocations_total",
			Help: "Object relocations into project prefixes by outcome",
		},
		[]string{"outcome"},
	)
)

// Middleware records request duration by matched route. Requests no route
// matched share the "unmatched" label. Mount it before the logging
// middleware, which renders chain errors into the response.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		status := c.Response().StatusCode()
		route := c.Route().Path
		var fe *fiber.Error
		if errors.As(err, &fe) {
			status = fe.Code
			if unmatched(fe) {
				route = "unmatched"
			}
		}
		if route == "" {
			route = "unmatched"
		}
		httpRequestDuration.WithLabelValues(c.Method(), route, strconv.Itoa(status)).
			Observe(time.Since(start).Seconds())
		return err
	}
}

// unmatched reports the error fiber's router returns when no route is left.
func unmatched(fe *fiber.Error) bool {
	return fe.Code == fiber.StatusNotFound && strings.HasPrefix(fe.Message, "Cannot ")
}

// Handler exposes the default registry.
func Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}

// RecordOperation counts one workflow operation; err decides the outcome label.
func RecordOperation(operation string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	workflowOps.WithLabelValues(operation, outcome).Inc()
}

// RecordRelocation counts one relocation attempt.
func RecordRelocation(outcome string) {
	relocations.WithLabelValues(outcome).Inc()
}

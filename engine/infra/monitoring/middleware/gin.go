package middleware

import (
	"errors"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/compozy/docbuddy/engine/infra/monitoring/metrics"
	"github.com/compozy/docbuddy/pkg/logger"
)

type httpInstruments struct {
	requests metric.Int64Counter
	duration metric.Float64Histogram
	inFlight metric.Int64UpDownCounter
}

func newHTTPInstruments(meter metric.Meter) (*httpInstruments, error) {
	var inst httpInstruments
	var errs [3]error
	inst.requests, errs[0] = meter.Int64Counter(
		metrics.MetricNameWithSubsystem("http", "requests_total"),
		metric.WithDescription("Total HTTP requests"),
	)
	inst.duration, errs[1] = meter.Float64Histogram(
		metrics.MetricNameWithSubsystem("http", "request_duration_seconds"),
		metric.WithDescription("HTTP request latency"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(metrics.HTTPDurationBuckets...),
	)
	inst.inFlight, errs[2] = meter.Int64UpDownCounter(
		metrics.MetricNameWithSubsystem("http", "requests_in_flight"),
		metric.WithDescription("Currently active HTTP requests"),
	)
	if err := errors.Join(errs[:]...); err != nil {
		return nil, err
	}
	return &inst, nil
}

// HTTPMetrics records request count, latency and in-flight requests on
// meter. Routes are labelled by their pattern; unmatched requests share the
// "unmatched" label.
func HTTPMetrics(meter metric.Meter) gin.HandlerFunc {
	if meter == nil {
		return func(c *gin.Context) { c.Next() }
	}
	inst, err := newHTTPInstruments(meter)
	if err != nil {
		logger.GetDefault().Error("Failed to create HTTP instruments", "error", err)
		return func(c *gin.Context) { c.Next() }
	}
	return inst.handle
}

func (i *httpInstruments) handle(c *gin.Context) {
	ctx := c.Request.Context()
	start := time.Now()
	i.inFlight.Add(ctx, 1)
	defer i.inFlight.Add(ctx, -1)
	c.Next()
	route := c.FullPath()
	if route == "" {
		route = "unmatched"
	}
	attrs := metric.WithAttributes(
		attribute.String("method", c.Request.Method),
		attribute.String("path", route),
		attribute.String("status_code", strconv.Itoa(c.Writer.Status())),
	)
	i.requests.Add(ctx, 1, attrs)
	i.duration.Record(ctx, time.Since(start).Seconds(), attrs)
}

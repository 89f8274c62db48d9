package knowledge

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/compozy/docbuddy/engine/infra/monitoring/metrics"
)

// instruments is resolved from the global meter provider on first use, so
// it picks up whatever provider serve installed.
type instruments struct {
	ingestDuration metric.Float64Histogram
	chunks         metric.Int64Counter
	embedLatency   metric.Float64Histogram
	queryLatency   metric.Float64Histogram
	emptyRetrieval metric.Int64Counter
	chatTurn       metric.Float64Histogram
}

var (
	instMu  sync.Mutex
	instSet *instruments
	instErr error
)

func current() *instruments {
	instMu.Lock()
	defer instMu.Unlock()
	if instSet == nil && instErr == nil {
		instSet, instErr = buildInstruments(otel.GetMeterProvider().Meter("docbuddy.knowledge"))
	}
	return instSet
}

func seconds(buckets []float64) []metric.Float64HistogramOption {
	return []metric.Float64HistogramOption{
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(buckets...),
	}
}

func buildInstruments(meter metric.Meter) (*instruments, error) {
	name := metrics.MetricNameWithSubsystem
	var in instruments
	var errs [6]error
	in.ingestDuration, errs[0] = meter.Float64Histogram(name("knowledge", "ingest_duration_seconds"),
		append(seconds(metrics.IngestDurationBuckets), metric.WithDescription("Latency of document indexing runs"))...)
	in.chunks, errs[1] = meter.Int64Counter(name("knowledge", "chunks_total"),
		metric.WithDescription("Number of chunks stored by indexing runs"), metric.WithUnit("1"))
	in.embedLatency, errs[2] = meter.Float64Histogram(name("knowledge", "embed_duration_seconds"),
		append(seconds(metrics.QueryDurationBuckets), metric.WithDescription("Latency of embedding model calls"))...)
	in.queryLatency, errs[3] = meter.Float64Histogram(name("knowledge", "query_latency_seconds"),
		append(seconds(metrics.QueryDurationBuckets), metric.WithDescription("Latency of similarity search queries"))...)
	in.emptyRetrieval, errs[4] = meter.Int64Counter(name("knowledge", "retrieval_empty_total"),
		metric.WithDescription("Number of searches that returned no passages"), metric.WithUnit("1"))
	in.chatTurn, errs[5] = meter.Float64Histogram(name("assistant", "turn_duration_seconds"),
		append(seconds(metrics.ChatDurationBuckets), metric.WithDescription("Latency of chat turns including generation"))...)
	if err := errors.Join(errs[:]...); err != nil {
		return nil, err
	}
	return &in, nil
}

// RecordIngestDuration records one indexing run by collection and final state.
func RecordIngestDuration(ctx context.Context, collection, outcome string, d time.Duration) {
	if in := current(); in != nil {
		in.ingestDuration.Record(ctx, d.Seconds(), metric.WithAttributes(
			attribute.String("collection", collection),
			attribute.String("outcome", outcome),
		))
	}
}

func RecordIngestChunks(ctx context.Context, collection string, chunks int) {
	if chunks <= 0 {
		return
	}
	if in := current(); in != nil {
		in.chunks.Add(ctx, int64(chunks), metric.WithAttributes(attribute.String("collection", collection)))
	}
}

func RecordEmbedLatency(ctx context.Context, provider, model string, d time.Duration) {
	if in := current(); in != nil {
		in.embedLatency.Record(ctx, d.Seconds(), metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("model", model),
		))
	}
}

func RecordQueryLatency(ctx context.Context, collection string, d time.Duration) {
	if in := current(); in != nil {
		in.queryLatency.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("collection", collection)))
	}
}

func RecordRetrievalEmpty(ctx context.Context, collection string) {
	if in := current(); in != nil {
		in.emptyRetrieval.Add(ctx, 1, metric.WithAttributes(attribute.String("collection", collection)))
	}
}

func RecordChatTurn(ctx context.Context, outcome string, d time.Duration) {
	if in := current(); in != nil {
		in.chatTurn.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("outcome", outcome)))
	}
}

// ResetMetricsForTesting drops the cached instruments so the next record
// call binds to the current global provider.
func ResetMetricsForTesting() {
	instMu.Lock()
	instSet, instErr = nil, nil
	instMu.Unlock()
}

// Package metrics publishes API and upstream fetch telemetry to CloudWatch.
package metrics

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"skyview/internal/types"
)

// maxDatumsPerCall is the PutMetricData limit per request.
const maxDatumsPerCall = 1000

// maxBufferedDatums caps the buffer between flushes. The oldest datums are
// dropped beyond it.
const maxBufferedDatums = 10 * maxDatumsPerCall

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// Collector buffers datums in memory and publishes them on Flush. Run also
// flushes early once a full PutMetricData batch is waiting.
// It satisfies both core.MetricsCollector and widget.FetchMetrics.
type Collector struct {
	client    CloudWatchClient
	namespace string
	logger    *slog.Logger
	now       func() time.Time

	full chan struct{}

	mu      sync.Mutex
	buf     []cwtypes.MetricDatum
	dropped int
}

// NewCollector creates a Collector. An empty namespace selects
// types.MetricNamespace.
func NewCollector(client CloudWatchClient, namespace string, logger *slog.Logger) *Collector {
	if namespace == "" {
		namespace = types.MetricNamespace
	}
	return &Collector{
		client:    client,
		namespace: namespace,
		logger:    logger,
		now:       time.Now,
		full:      make(chan struct{}, 1),
	}
}

// RecordRequest buffers APIRequestCount and APILatency datums for one HTTP
// request.
func (c *Collector) RecordRequest(method, endpoint, status string, duration time.Duration) {
	dims := []cwtypes.Dimension{
		dim(types.DimMethod, method),
		dim(types.DimEndpoint, endpoint),
		dim(types.DimStatus, status),
	}
	c.add(
		c.datum(types.MetricAPIRequestCount, 1, cwtypes.StandardUnitCount, dims),
		c.datum(types.MetricAPILatency, float64(duration.Milliseconds()), cwtypes.StandardUnitMilliseconds, dims),
	)
}

// RecordFetch buffers UpstreamFetch and UpstreamFetchLatency datums for one
// provider call.
func (c *Collector) RecordFetch(_ context.Context, provider, result string, duration time.Duration) {
	c.add(
		c.datum(types.MetricUpstreamFetch, 1, cwtypes.StandardUnitCount, []cwtypes.Dimension{
			dim(types.DimProvider, provider),
			dim(types.DimResult, result),
		}),
		c.datum(types.MetricUpstreamLatency, float64(duration.Milliseconds()), cwtypes.StandardUnitMilliseconds, []cwtypes.Dimension{
			dim(types.DimProvider, provider),
		}),
	)
}

// Flush publishes every buffered datum. Failed batches are logged and
// dropped.
func (c *Collector) Flush(ctx context.Context) {
	c.mu.Lock()
	pending, dropped := c.buf, c.dropped
	c.buf, c.dropped = nil, 0
	c.mu.Unlock()

	if dropped > 0 {
		c.logger.Warn("metrics buffer overflowed, oldest datums dropped", "dropped", dropped)
	}

	for len(pending) > 0 {
		n := min(len(pending), maxDatumsPerCall)
		batch := pending[:n]
		pending = pending[n:]

		_, err := c.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
			Namespace:  aws.String(c.namespace),
			MetricData: batch,
		})
		if err != nil {
			c.logger.Error("failed to publish metrics",
				"error", err.Error(),
				"datums", len(batch),
			)
		}
	}
}

// Run flushes every interval until ctx is done, then flushes once more.
func (c *Collector) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			final, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			c.Flush(final)
			cancel()
			return
		case <-ticker.C:
			c.Flush(ctx)
		case <-c.full:
			c.Flush(ctx)
		}
	}
}

// Pending returns the number of buffered datums.
func (c *Collector) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.buf)
}

func (c *Collector) add(datums ...cwtypes.MetricDatum) {
	c.mu.Lock()
	c.buf = append(c.buf, datums...)
	if over := len(c.buf) - maxBufferedDatums; over > 0 {
		c.buf = append(c.buf[:0], c.buf[over:]...)
		c.dropped += over
	}
	batchReady := len(c.buf) >= maxDatumsPerCall
	c.mu.Unlock()

	if batchReady {
		select {
		case c.full <- struct{}{}:
		default:
		}
	}
}

func (c *Collector) datum(name string, value float64, unit cwtypes.StandardUnit, dims []cwtypes.Dimension) cwtypes.MetricDatum {
	return cwtypes.MetricDatum{
		MetricName: aws.String(name),
		Value:      aws.Float64(value),
		Unit:       unit,
		Timestamp:  aws.Time(c.now()),
		Dimensions: dims,
	}
}

func dim(name, value string) cwtypes.Dimension {
	return cwtypes.Dimension{Name: aws.String(name), Value: aws.String(value)}
}

// Noop discards everything. Used when METRICS_ENABLED is false.
type Noop struct{}

func (Noop) RecordRequest(string, string, string, time.Duration) {}

func (Noop) RecordFetch(context.Context, string, string, time.Duration) {}

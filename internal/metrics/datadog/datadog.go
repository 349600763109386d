// Package datadog implements a Datadog backend for the internal/metrics
// package.
//
// Observations are buffered in memory, submitted on a periodic ticker, and
// flushed one final time on Close(), so short import runs still land their
// tail datapoints while long-running sessions show up as a time series.
// Import goroutines may call IncCounter/ObserveHistogram at any time; Flush
// snapshots and resets the buffers under a mutex, then submits out-of-lock.
package datadog

import (
	"context"
	"net/http"
	"sync"
	"time"

	"staffimport/internal/metrics"

	dd "github.com/DataDog/datadog-api-client-go/v2/api/datadog"
	"github.com/DataDog/datadog-api-client-go/v2/api/datadogV2"
)

// Options controls backend configuration.
type Options struct {
	// JobName becomes tag "job:<name>" on every metric. Defaults to
	// "staffimport".
	JobName string

	// Tags are extra Datadog tags (e.g. []string{"env:prod"}).
	Tags []string

	// FlushEvery controls the submission interval. <= 0 defaults to 60s.
	FlushEvery time.Duration

	// Unexported test seams: production never sets these; unit tests inject
	// them to avoid real clocks, tickers and network submission.
	now       func() time.Time
	newTicker func(d time.Duration) *time.Ticker
	submitter metricsSubmitter
}

// metricsSubmitter is the minimal slice of the Datadog SDK the backend needs.
// The SDK exposes a concrete *datadogV2.MetricsApi; depending on this tiny
// interface instead keeps the backend testable without real HTTP.
type metricsSubmitter interface {
	SubmitMetrics(ctx context.Context, body datadogV2.MetricPayload, params ...datadogV2.SubmitMetricsOptionalParameters) (datadogV2.IntakePayloadAccepted, *http.Response, error)
}

// Backend implements metrics.Backend for Datadog.
type Backend struct {
	api        metricsSubmitter
	ctx        context.Context
	flushEvery time.Duration
	stopCh     chan struct{}
	doneCh     chan struct{}

	baseTags  []string
	now       func() time.Time
	newTicker func(d time.Duration) *time.Ticker

	mu       sync.Mutex
	counters map[string]float64   // name|stage -> total
	samples  map[string][]float64 // stage -> duration samples
}

// NewBackend constructs a Datadog backend using the official client.
//
// Edge cases:
//   - FlushEvery <= 0 defaults to 60s; empty JobName to "staffimport".
//
// Errors:
//   - None under normal conditions; network errors surface from Flush().
func NewBackend(parent context.Context, opts Options) (*Backend, error) {
	job := opts.JobName
	if job == "" {
		job = "staffimport"
	}
	flushEvery := opts.FlushEvery
	if flushEvery <= 0 {
		flushEvery = 60 * time.Second
	}

	nowFn := opts.now
	if nowFn == nil {
		nowFn = time.Now
	}
	newTicker := opts.newTicker
	if newTicker == nil {
		newTicker = time.NewTicker
	}

	submitter := opts.submitter
	if submitter == nil {
		cfg := dd.NewConfiguration()
		client := dd.NewAPIClient(cfg)
		submitter = datadogV2.NewMetricsApi(client)
	}

	baseTags := make([]string, 0, 1+len(opts.Tags))
	baseTags = append(baseTags, "job:"+job)
	baseTags = append(baseTags, opts.Tags...)

	b := &Backend{
		api:        submitter,
		ctx:        dd.NewDefaultContext(parent),
		flushEvery: flushEvery,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
		baseTags:   baseTags,
		now:        nowFn,
		newTicker:  newTicker,
		counters:   make(map[string]float64),
		samples:    make(map[string][]float64),
	}
	go b.loop()
	return b, nil
}

func (b *Backend) loop() {
	defer close(b.doneCh)
	t := b.newTicker(b.flushEvery)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			_ = b.Flush()
		case <-b.stopCh:
			return
		}
	}
}

// Close stops the flush loop and performs one final Flush. Call once.
func (b *Backend) Close() error {
	close(b.stopCh)
	<-b.doneCh
	return b.Flush()
}

// IncCounter implements metrics.Backend. Unknown metric names are dropped.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	if delta <= 0 {
		return
	}
	switch name {
	case metrics.MetricRecordsTotal, metrics.MetricErrorsTotal, metrics.MetricCorrectionsTotal:
	default:
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.counters[counterKey(name, labels["stage"])] += delta
}

// ObserveHistogram implements metrics.Backend.
func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if value < 0 || name != metrics.MetricStageDurationSecond {
		return
	}
	stage := labels["stage"]
	if stage == "" {
		stage = "unknown"
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.samples[stage] = append(b.samples[stage], value)
}

type snapshot struct {
	counters map[string]float64
	samples  map[string][]float64
}

func (s snapshot) isEmpty() bool {
	return len(s.counters) == 0 && len(s.samples) == 0
}

// snapshotAndReset detaches the buffered state so payload building and
// submission run without holding the lock.
func (b *Backend) snapshotAndReset() snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := snapshot{counters: b.counters, samples: b.samples}
	b.counters = make(map[string]float64)
	b.samples = make(map[string][]float64)
	return s
}

// Flush submits buffered metrics and resets the buffers.
//
// Buffers reset even when submission fails: import work must never block on
// metrics delivery.
func (b *Backend) Flush() error {
	snap := b.snapshotAndReset()
	if snap.isEmpty() {
		return nil
	}

	payload := datadogV2.MetricPayload{Series: b.buildSeries(snap, b.now().Unix())}
	_, _, err := b.api.SubmitMetrics(b.ctx, payload, *datadogV2.NewSubmitMetricsOptionalParameters())
	return err
}

// buildSeries is pure (no locks, clocks or network) so it can be unit-tested
// directly; it centralizes the naming/tagging contract.
func (b *Backend) buildSeries(s snapshot, nowUnix int64) []datadogV2.MetricSeries {
	series := make([]datadogV2.MetricSeries, 0, len(s.counters)+2*len(s.samples))

	point := func(v float64) []datadogV2.MetricPoint {
		return []datadogV2.MetricPoint{
			{Timestamp: dd.PtrInt64(nowUnix), Value: dd.PtrFloat64(v)},
		}
	}

	for k, v := range s.counters {
		if v == 0 {
			continue
		}
		name, stage := splitCounterKey(k)
		tags := b.baseTags
		if stage != "" {
			tags = append(append([]string{}, b.baseTags...), "stage:"+stage)
		}
		series = append(series, datadogV2.MetricSeries{
			Metric: "staffimport." + dotted(name),
			Type:   datadogV2.METRICINTAKETYPE_COUNT.Ptr(),
			Points: point(v),
			Tags:   tags,
		})
	}

	for stage, values := range s.samples {
		var sum, max float64
		for _, v := range values {
			sum += v
			if v > max {
				max = v
			}
		}
		tags := append(append([]string{}, b.baseTags...), "stage:"+stage)
		series = append(series,
			datadogV2.MetricSeries{
				Metric: "staffimport.stage.duration.avg",
				Type:   datadogV2.METRICINTAKETYPE_GAUGE.Ptr(),
				Points: point(sum / float64(len(values))),
				Tags:   tags,
			},
			datadogV2.MetricSeries{
				Metric: "staffimport.stage.duration.max",
				Type:   datadogV2.METRICINTAKETYPE_GAUGE.Ptr(),
				Points: point(max),
				Tags:   tags,
			},
		)
	}

	return series
}

func counterKey(name, stage string) string { return name + "|" + stage }

func splitCounterKey(k string) (name, stage string) {
	for i := 0; i < len(k); i++ {
		if k[i] == '|' {
			return k[:i], k[i+1:]
		}
	}
	return k, ""
}

// dotted converts a metrics package name like "import_records_total" to
// Datadog's dotted convention "import.records.total".
func dotted(name string) string {
	out := []byte(name)
	for i := range out {
		if out[i] == '_' {
			out[i] = '.'
		}
	}
	return string(out)
}

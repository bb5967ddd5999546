package vitals

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/onnwee/viewfinder/internal/jobs"
)

// Defaults for RecorderConfig.
const (
	DefaultQueueSize     = 2048
	DefaultBatchSize     = 200
	DefaultFlushInterval = 5 * time.Second
	DefaultFlushTimeout  = 10 * time.Second
)

// JobObserver receives the outcome of each background flush.
type JobObserver interface {
	Observe(jobType string, d time.Duration, err error)
}

// RecorderConfig configures a Recorder.
type RecorderConfig struct {
	QueueSize     int
	BatchSize     int
	FlushInterval time.Duration
	FlushTimeout  time.Duration
}

// Recorder validates reports, records metrics and hands samples to a
// background writer when a repository is configured.
type Recorder struct {
	cfg     RecorderConfig
	repo    Repository
	metrics *Metrics
	jobs    JobObserver
	clock   clock.Clock
	logger  *slog.Logger

	queue chan Sample
	batch []Sample // owned by Run
}

// NewRecorder creates a Recorder. repo, observer and clk may be nil; without a
// repository samples are only exported as metrics.
func NewRecorder(cfg RecorderConfig, repo Repository, metrics *Metrics, observer JobObserver, clk clock.Clock, logger *slog.Logger) *Recorder {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultFlushInterval
	}
	if cfg.FlushTimeout <= 0 {
		cfg.FlushTimeout = DefaultFlushTimeout
	}
	if metrics == nil {
		metrics = NewMetrics()
	}
	if clk == nil {
		clk = clock.New()
	}
	if logger == nil {
		logger = slog.Default()
	}
	r := &Recorder{
		cfg:     cfg,
		repo:    repo,
		metrics: metrics,
		jobs:    observer,
		clock:   clk,
		logger:  logger,
	}
	if repo != nil {
		r.queue = make(chan Sample, cfg.QueueSize)
	}
	return r
}

// Outcome reports how many reports of a request were kept.
type Outcome struct {
	Accepted int      `json:"accepted"`
	Rejected int      `json:"rejected"`
	Errors   []string `json:"errors,omitempty"`
}

// Record validates and records reports. Invalid reports are counted and
// described in the outcome; they never fail the whole request.
func (r *Recorder) Record(ctx context.Context, reports []Report, userAgent string) Outcome {
	var out Outcome
	now := r.clock.Now().UTC()
	for _, raw := range reports {
		rep, err := Validate(raw)
		if err != nil {
			out.Rejected++
			out.Errors = append(out.Errors, err.Error())
			r.metrics.rejected.Inc()
			continue
		}
		out.Accepted++
		r.metrics.Observe(rep)
		r.enqueue(ctx, Sample{Report: rep, ReceivedAt: now, UserAgent: truncateUA(userAgent)})
	}
	return out
}

func (r *Recorder) enqueue(ctx context.Context, s Sample) {
	if r.queue == nil {
		return
	}
	select {
	case r.queue <- s:
	default:
		r.metrics.dropped.Inc()
		r.logger.WarnContext(ctx, "vitals queue full, dropping sample", slog.String("metric", s.Name))
	}
}

const maxUserAgentBytes = 512

func truncateUA(ua string) string {
	return clip(ua, maxUserAgentBytes)
}

// Run drains the queue into the repository until ctx is cancelled, writing
// a batch when it fills or every FlushInterval. Pending samples are flushed
// before Run returns. It is a no-op without a repository.
func (r *Recorder) Run(ctx context.Context) {
	if r.queue == nil {
		return
	}
	ticker := r.clock.Ticker(r.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case s := <-r.queue:
			r.batch = append(r.batch, s)
			if len(r.batch) >= r.cfg.BatchSize {
				r.flush(context.WithoutCancel(ctx))
			}
		case <-ticker.C:
			r.flush(context.WithoutCancel(ctx))
		case <-ctx.Done():
			r.drain()
			r.flush(context.WithoutCancel(ctx))
			r.logger.Info("stopping vitals writer")
			return
		}
	}
}

func (r *Recorder) drain() {
	for {
		select {
		case s := <-r.queue:
			r.batch = append(r.batch, s)
		default:
			return
		}
	}
}

// flush writes the pending batch. A failed batch is logged and discarded so
// a database outage cannot grow memory without bound.
func (r *Recorder) flush(ctx context.Context) {
	batch := r.batch
	r.batch = nil
	if len(batch) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, r.cfg.FlushTimeout)
	defer cancel()

	start := time.Now()
	err := r.repo.Insert(ctx, batch)
	if r.jobs != nil {
		r.jobs.Observe(jobs.JobTypeVitalsFlush, time.Since(start), err)
	}
	if err != nil {
		r.logger.Error("failed to persist vitals samples",
			slog.Int("samples", len(batch)),
			slog.String("error", err.Error()),
		)
		return
	}
	r.logger.Debug("persisted vitals samples", slog.Int("samples", len(batch)))
}

// ErrNoRepository is returned by Summarize when persistence is disabled.
var ErrNoRepository = errors.New("vitals persistence is not configured")

// Summarizer is implemented by repositories that can aggregate samples.
type Summarizer interface {
	Summarize(ctx context.Context, since time.Time) ([]Summary, error)
}

// Summarize returns aggregates for samples received within window.
func (r *Recorder) Summarize(ctx context.Context, window time.Duration) ([]Summary, error) {
	s, ok := r.repo.(Summarizer)
	if !ok {
		return nil, ErrNoRepository
	}
	return s.Summarize(ctx, r.clock.Now().Add(-window))
}

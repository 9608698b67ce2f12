package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/avalanche-location-etl/internal/domain"
	"github.com/couchcryptid/avalanche-location-etl/internal/observability"
)

// BatchExtractor reads up to batchSize raw events from the source.
type BatchExtractor interface {
	ExtractBatch(ctx context.Context, batchSize int) ([]domain.RawEvent, error)
}

// Transformer converts a raw event into a normalized location record.
type Transformer interface {
	Transform(ctx context.Context, raw domain.RawEvent) (domain.NormalizedLocationRecord, error)
}

// BatchLoader writes multiple normalized records to the destination. It is
// called once per batch, with an empty slice when every record was dropped.
type BatchLoader interface {
	LoadBatch(ctx context.Context, records []domain.NormalizedLocationRecord) error
}

// Pipeline orchestrates the extract-transform-load loop.
type Pipeline struct {
	extractor   BatchExtractor
	transformer Transformer
	loader      BatchLoader
	logger      *slog.Logger
	metrics     *observability.Metrics
	ready       atomic.Bool
	batchSize   int

	mu     sync.Mutex
	totals domain.Counts
}

// New creates a Pipeline with the given stages and observability.
func New(e BatchExtractor, t Transformer, l BatchLoader, logger *slog.Logger, metrics *observability.Metrics, batchSize int) *Pipeline {
	return &Pipeline{
		extractor:   e,
		transformer: t,
		loader:      l,
		logger:      logger,
		metrics:     metrics,
		batchSize:   batchSize,
	}
}

// CheckReadiness returns nil if the pipeline has processed at least one batch,
// or an error describing why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not processed any messages yet")
	}
	return nil
}

// Stats returns the accounting accumulated over every committed batch.
func (p *Pipeline) Stats() domain.Counts {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.totals
}

// Run executes the batch ETL loop until the context is cancelled.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("pipeline started", "batch_size", p.batchSize)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	// Exponential backoff: start at 200ms, double each retry, cap at 5s.
	backoff := 200 * time.Millisecond
	maxBackoff := 5 * time.Second

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("pipeline stopping", "reason", ctx.Err())
			return nil
		default:
		}

		if !p.processBatch(ctx, &backoff, maxBackoff) {
			return nil
		}
	}
}

// processBatch runs one extract-transform-load cycle. Returns false if the pipeline should stop.
func (p *Pipeline) processBatch(ctx context.Context, backoff *time.Duration, maxBackoff time.Duration) bool {
	start := time.Now()

	rawBatch, err := p.extractor.ExtractBatch(ctx, p.batchSize)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		p.logger.Error("extract batch failed", "error", err)
		return p.backoffOrStop(ctx, backoff, maxBackoff)
	}

	if len(rawBatch) == 0 {
		return ctx.Err() == nil
	}

	p.metrics.MessagesConsumed.Add(float64(len(rawBatch)))
	p.metrics.BatchSize.Observe(float64(len(rawBatch)))
	*backoff = 200 * time.Millisecond

	counts, ok := p.transformAndLoad(ctx, rawBatch, backoff, maxBackoff)
	if !ok {
		return false
	}

	p.metrics.BatchProcessingDuration.Observe(time.Since(start).Seconds())
	p.ready.Store(true)
	p.logger.Debug("batch processed",
		"input", counts.Input,
		"output", counts.Output,
		"dropped", counts.Dropped(),
		"duration", time.Since(start),
	)
	return true
}

// transformAndLoad normalizes each message, loads the survivors, and then
// commits every offset in the batch, dropped records included. A failed load
// is retried with backoff on the same records until it succeeds or ctx ends,
// and no further batch is extracted meanwhile. Returns the batch accounting
// and false if the pipeline stopped before the batch was loaded.
func (p *Pipeline) transformAndLoad(ctx context.Context, rawBatch []domain.RawEvent, backoff *time.Duration, maxBackoff time.Duration) (domain.Counts, bool) {
	counts := domain.Counts{Input: len(rawBatch)}
	outBatch := make([]domain.NormalizedLocationRecord, 0, len(rawBatch))

	for _, raw := range rawBatch {
		rec, err := p.transformer.Transform(ctx, raw)
		if err != nil {
			p.recordDrop(&counts, raw, err)
			continue
		}
		outBatch = append(outBatch, rec)
	}

	for {
		err := p.loader.LoadBatch(ctx, outBatch)
		if err == nil {
			break
		}
		p.logger.Error("load batch failed, retrying", "error", err, "batch_size", len(outBatch), "backoff", *backoff)
		if !p.backoffOrStop(ctx, backoff, maxBackoff) {
			return domain.Counts{}, false
		}
	}
	*backoff = 200 * time.Millisecond

	p.metrics.MessagesProduced.Add(float64(len(outBatch)))
	for _, rec := range outBatch {
		p.metrics.RecordsNormalized.WithLabelValues(rec.Variant.String()).Inc()
	}
	for _, raw := range rawBatch {
		p.commitOffset(ctx, raw)
	}

	counts.Output = len(outBatch)
	p.metrics.ObserveDrops(counts)

	p.mu.Lock()
	p.totals = p.totals.Merge(counts)
	p.mu.Unlock()

	return counts, true
}

// recordDrop files a failed message under its drop reason. Messages that never
// decoded into a record count as parse failures so the batch still balances.
func (p *Pipeline) recordDrop(counts *domain.Counts, raw domain.RawEvent, err error) {
	reason, ok := domain.ReasonOf(err)
	if !ok {
		reason = domain.ReasonParseFailure
		p.metrics.TransformErrors.Inc()
		p.logger.Warn("undecodable message, skipping",
			"error", err,
			"topic", raw.Topic,
			"partition", raw.Partition,
			"offset", raw.Offset,
		)
	} else {
		p.logger.Debug("record dropped",
			"reason", reason,
			"error", err,
			"topic", raw.Topic,
			"partition", raw.Partition,
			"offset", raw.Offset,
		)
	}
	counts.Record(reason)
}

// backoffOrStop checks for context cancellation, sleeps with the current backoff,
// and advances the backoff. Returns false if the pipeline should stop.
func (p *Pipeline) backoffOrStop(ctx context.Context, backoff *time.Duration, maxBackoff time.Duration) bool {
	if ctx.Err() != nil {
		return false
	}
	if !sleepWithContext(ctx, *backoff) {
		return false
	}
	*backoff = nextBackoff(*backoff, maxBackoff)
	return true
}

// commitOffset commits the message offset if a commit function is available.
func (p *Pipeline) commitOffset(ctx context.Context, raw domain.RawEvent) {
	if raw.Commit == nil {
		return
	}
	if err := raw.Commit(ctx); err != nil {
		p.logger.Warn("commit offset failed", "error", err,
			"topic", raw.Topic, "partition", raw.Partition, "offset", raw.Offset)
	}
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

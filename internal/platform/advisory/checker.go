package advisory

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ehr/amsmonitor/internal/platform/metrics"
)

// Checker outcomes recorded in metrics.
const (
	OutcomeFinding    = "finding"
	OutcomeNone       = "none"
	OutcomeFailed     = "failed"
	OutcomeSuperseded = "superseded"
)

// Evaluator runs one advisory check.
type Evaluator interface {
	Evaluate(ctx context.Context, kind Kind, req Request) (*Finding, error)
}

type call struct {
	seq    uint64
	cancel context.CancelFunc
}

// Checker debounces advisory checks per key. A newer Check for the same key
// cancels the older one, and a superseded result is never returned.
type Checker struct {
	eval    Evaluator
	quiet   time.Duration
	logger  zerolog.Logger
	metrics *metrics.Metrics

	mu       sync.Mutex
	seq      uint64
	inflight map[string]call
}

// NewChecker returns a Checker. A nil eval disables advisory checks.
func NewChecker(eval Evaluator, quiet time.Duration, logger zerolog.Logger) *Checker {
	return &Checker{
		eval:     eval,
		quiet:    quiet,
		logger:   logger.With().Str("component", "advisory").Logger(),
		inflight: make(map[string]call),
	}
}

func (c *Checker) SetMetrics(m *metrics.Metrics) { c.metrics = m }

func (c *Checker) Enabled() bool { return c != nil && c.eval != nil }

// Check waits for the quiet period and then runs the check. It returns nil
// when disabled, superseded, cancelled, failed or when there is no finding.
func (c *Checker) Check(ctx context.Context, key string, kind Kind, req Request) *Finding {
	if !c.Enabled() {
		return nil
	}
	ctx, seq := c.begin(ctx, key)
	defer c.finish(key, seq)

	log := c.logger.With().Str("key", key).Str("kind", string(kind)).Logger()

	timer := time.NewTimer(c.quiet)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		log.Debug().Msg("advisory check superseded before dispatch")
		return nil
	case <-timer.C:
	}

	start := time.Now()
	finding, err := c.eval.Evaluate(ctx, kind, req)
	elapsed := time.Since(start)

	switch {
	case !c.current(key, seq):
		log.Debug().Dur("latency", elapsed).Msg("advisory result discarded")
		c.metrics.RecordAdvisory(string(kind), OutcomeSuperseded, elapsed)
		return nil
	case err != nil:
		log.Debug().Err(err).Dur("latency", elapsed).Msg("advisory check failed")
		c.metrics.RecordAdvisory(string(kind), OutcomeFailed, elapsed)
		return nil
	case finding == nil:
		c.metrics.RecordAdvisory(string(kind), OutcomeNone, elapsed)
		return nil
	}
	c.metrics.RecordAdvisory(string(kind), OutcomeFinding, elapsed)
	return finding
}

func (c *Checker) begin(ctx context.Context, key string) (context.Context, uint64) {
	ctx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	defer c.mu.Unlock()
	if prev, ok := c.inflight[key]; ok {
		prev.cancel()
	}
	c.seq++
	c.inflight[key] = call{seq: c.seq, cancel: cancel}
	return ctx, c.seq
}

func (c *Checker) current(key string, seq uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	cur, ok := c.inflight[key]
	return ok && cur.seq == seq
}

func (c *Checker) finish(key string, seq uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cur, ok := c.inflight[key]; ok && cur.seq == seq {
		cur.cancel()
		delete(c.inflight, key)
	}
}

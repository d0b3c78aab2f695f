package matching

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cactuscomunidadcreativa/rowi-affinity/internal/affinity"
	"github.com/cactuscomunidadcreativa/rowi-affinity/internal/monitoring"
)

// Sub-score source names, used in logs and metrics.
const (
	SourceGrowth        = "growth"
	SourceCollaboration = "collaboration"
	SourceUnderstanding = "understanding"
)

var errNoSource = errors.New("matching: sub-score source not configured")

// Source computes one sub-score on the 0-135 scale. It may call another service and
// should honor ctx.
type Source func(ctx context.Context) (float64, error)

// Sources are the three independent sub-score computations of a composite.
type Sources struct {
	Growth        Source
	Collaboration Source
	Understanding Source
}

// Composer runs the sub-score sources concurrently. A source that fails, panics, times
// out or returns a non-finite value contributes 0 instead of aborting the composite.
type Composer struct {
	timeout time.Duration
	metrics *monitoring.Metrics
	logger  *monitoring.Logger
}

// NewComposer creates a composer with a per-source timeout.
func NewComposer(timeout time.Duration, metrics *monitoring.Metrics, logger *monitoring.Logger) *Composer {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	if logger == nil {
		logger = monitoring.NewLoggerWithWriter(io.Discard, "error")
	}
	return &Composer{timeout: timeout, metrics: metrics, logger: logger.Component("composer")}
}

// Compose returns the three sub-scores. It never fails.
func (c *Composer) Compose(ctx context.Context, src Sources) affinity.SubScores {
	var out affinity.SubScores

	var g errgroup.Group
	for _, job := range []struct {
		name string
		fn   Source
		dst  *float64
	}{
		{SourceGrowth, src.Growth, &out.Growth},
		{SourceCollaboration, src.Collaboration, &out.Collaboration},
		{SourceUnderstanding, src.Understanding, &out.Understanding},
	} {
		g.Go(func() error {
			*job.dst = c.fetch(ctx, job.name, job.fn)
			return nil
		})
	}
	_ = g.Wait()

	return out
}

type sourceResult struct {
	score float64
	err   error
}

func (c *Composer) fetch(ctx context.Context, name string, fn Source) float64 {
	if fn == nil {
		return c.fail(name, errNoSource)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	done := make(chan sourceResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- sourceResult{err: fmt.Errorf("source panicked: %v", r)}
			}
		}()
		v, err := fn(ctx)
		done <- sourceResult{score: v, err: err}
	}()

	select {
	case <-ctx.Done():
		return c.fail(name, ctx.Err())
	case r := <-done:
		if r.err != nil {
			return c.fail(name, r.err)
		}
		if math.IsNaN(r.score) || math.IsInf(r.score, 0) {
			return c.fail(name, fmt.Errorf("non-finite sub-score %v", r.score))
		}
		return affinity.Clamp(r.score, 0, affinity.MaxScore)
	}
}

func (c *Composer) fail(name string, err error) float64 {
	c.metrics.IncSubFetchFailure(name)
	c.logger.SubFetchLogger(name, err)
	return 0
}

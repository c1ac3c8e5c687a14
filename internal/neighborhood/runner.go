package neighborhood

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/fovcover/internal/config"
)

// Runner processes several neighborhoods. A failing neighborhood does not
// stop the others.
type Runner struct {
	proc        *Processor
	concurrency int
}

// NewRunner creates a runner processing up to concurrency neighborhoods at
// once.
func NewRunner(proc *Processor, concurrency int) *Runner {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Runner{proc: proc, concurrency: concurrency}
}

// Run processes the neighborhoods and returns their results in input order.
// Failed neighborhoods have a nil result; their errors are combined.
func (r *Runner) Run(ctx context.Context, hoods []config.NeighborhoodConfig) ([]*Result, error) {
	results := make([]*Result, len(hoods))

	var (
		mu   sync.Mutex
		errs error
	)
	var g errgroup.Group
	g.SetLimit(r.concurrency)

	for i, n := range hoods {
		if ctx.Err() != nil {
			mu.Lock()
			errs = multierr.Append(errs, eris.Wrapf(ctx.Err(), "neighborhood %s: not started", n.Name))
			mu.Unlock()
			continue
		}
		g.Go(func() error {
			res, err := r.proc.Process(ctx, n)
			if err != nil {
				mu.Lock()
				errs = multierr.Append(errs, eris.Wrapf(err, "neighborhood %s", n.Name))
				mu.Unlock()
				return nil
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()

	failed := len(multierr.Errors(errs))
	zap.L().Info("neighborhoods complete",
		zap.Int("succeeded", len(hoods)-failed),
		zap.Int("failed", failed),
	)
	return results, errs
}

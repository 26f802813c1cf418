package ops

import (
	"context"
	"database/sql"
	"sync"

	"github.com/hpungsan/legible/internal/config"
	"github.com/hpungsan/legible/internal/errors"
)

// CheckManyItem is the outcome for one input of CheckMany.
// Exactly one of Output or Err is set.
type CheckManyItem struct {
	Input  CheckInput
	Output *CheckOutput
	Err    error
}

// CheckMany runs Check over many inputs on a bounded worker pool.
// len(inputs) is not capped here; MaxCheckItems is for tool callers.
// Items come back in input order; a failing input does not stop the others.
// Once ctx is cancelled no new inputs are started and the remaining items
// carry a CANCELLED error.
func CheckMany(ctx context.Context, database *sql.DB, cfg *config.Config, inputs []CheckInput, concurrency int) ([]CheckManyItem, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if concurrency <= 0 {
		concurrency = cfg.CheckConcurrency
	}
	concurrency = max(1, min(concurrency, len(inputs)))

	items := make([]CheckManyItem, len(inputs))
	for i, in := range inputs {
		items[i].Input = in
	}

	jobs := make(chan int, concurrency*2)

	var wg sync.WaitGroup
	worker := func() {
		defer wg.Done()
		for i := range jobs {
			items[i].Output, items[i].Err = Check(ctx, database, cfg, items[i].Input)
		}
	}
	wg.Add(concurrency)
	for range concurrency {
		go worker()
	}

schedule:
	for i := range inputs {
		select {
		case <-ctx.Done():
			for j := i; j < len(inputs); j++ {
				items[j].Err = errors.NewCancelled("check")
			}
			break schedule
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()

	return items, nil
}

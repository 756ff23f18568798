package scenario

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// RunSweep は同じシナリオをシードごとに並行実行し、seeds と同じ順で結果を返す。
// いずれかの実行が失敗すると残りはキャンセルされる。
func RunSweep(ctx context.Context, config Config, seeds []uint64) ([]*Result, error) {
	if len(seeds) == 0 {
		return nil, fmt.Errorf("sweep %q: no seeds given", config.Name)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("sweep %q: %w", config.Name, err)
	}

	results := make([]*Result, len(seeds))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())

	for i, seed := range seeds {
		g.Go(func() error {
			cfg := config
			cfg.Seed = seed
			result, err := New(cfg).Run(gCtx)
			if err != nil {
				return fmt.Errorf("seed %d: %w", seed, err)
			}
			results[i] = result
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

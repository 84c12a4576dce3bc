package concurrencygen

import (
	"context"

	"github.com/cheekybits/genny/generic"
	"golang.org/x/sync/errgroup"
)

type ItemType generic.Type

// fans the items out to a fixed pool of workers. returns the first error and
// stops submitting further work when one happens.
func concurrentlyItemTypeSlice(
	ctx context.Context,
	concurrency int,
	items []ItemType,
	process func(context.Context, ItemType) error,
) error {
	itemsCh := make(chan ItemType, concurrency)

	// taskCtx cancels when a worker errors or when parent ctx cancels
	errGroup, taskCtx := errgroup.WithContext(ctx)

	for i := 0; i < concurrency; i++ {
		errGroup.Go(func() error {
			for item := range itemsCh {
				if err := process(taskCtx, item); err != nil {
					return err
				}
			}

			return nil
		})
	}

	for _, item := range items {
		select {
		case itemsCh <- item:
			continue
		case <-taskCtx.Done():
			// fall through to the break below (break inside select would
			// only break the select)
		}

		break
	}

	// lets idle workers exit with nil error
	close(itemsCh)

	return errGroup.Wait()
}

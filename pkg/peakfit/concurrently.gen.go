// This file was automatically generated by genny.
// Any changes will be lost if this file is regenerated.
// see https://github.com/cheekybits/genny

package peakfit

import (
	"context"

	"github.com/hb2btools/hidractl/pkg/hidra"
	"golang.org/x/sync/errgroup"
)

// fans the items out to a fixed pool of workers. returns the first error and
// stops submitting further work when one happens.
func concurrentlyHidraSubRunSlice(
	ctx context.Context,
	concurrency int,
	items []hidra.SubRun,
	process func(context.Context, hidra.SubRun) error,
) error {
	itemsCh := make(chan hidra.SubRun, concurrency)

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

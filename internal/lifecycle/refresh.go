package lifecycle

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"clickref/internal/anchor"
	"clickref/internal/refstore"
)

// RefreshSummary reports one refresh cycle: how many references got fresh
// metadata, how many lookups failed, and how many were skipped because
// their reference vanished mid-flight. Individual failures never abort the
// cycle; this count is the only failure surface.
type RefreshSummary struct {
	Refreshed int
	Failed    int
	Skipped   int
}

// Refresh fetches fresh metadata for every active reference with a task id
// in the given documents (all known documents when none are given) and
// merges it in. Spans are never touched. A reference purged while its fetch
// was in flight is left alone: a refresh never resurrects anything.
func (c *Coordinator) Refresh(ctx context.Context, uris ...string) (RefreshSummary, error) {
	if c.repo == nil {
		return RefreshSummary{}, errNoRepo
	}

	if len(uris) == 0 {
		uris = c.store.URIs()
	}

	// Snapshot the distinct task ids up front; a task referenced from
	// several documents is fetched once.
	taskIDs := make(map[string]struct{})

	for _, uri := range uris {
		for _, ref := range c.store.Get(uri) {
			if !ref.Placeholder() {
				taskIDs[ref.TaskID] = struct{}{}
			}
		}
	}

	if len(taskIDs) == 0 {
		return RefreshSummary{}, nil
	}

	var (
		mu      sync.Mutex
		fetched = make(map[string]anchor.Metadata, len(taskIDs))
		failed  int
	)

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(c.parallel)

	for taskID := range taskIDs {
		group.Go(func() error {
			rec, err := c.repo.GetTaskDetails(groupCtx, taskID)

			mu.Lock()
			defer mu.Unlock()

			if err != nil {
				// Collect and continue: this task keeps its existing
				// metadata until a later cycle succeeds.
				failed++
				c.logger.Warn("task refresh failed", "task", taskID, "error", err)

				return nil
			}

			fetched[taskID] = rec.Metadata()

			return nil
		})
	}

	_ = group.Wait() // workers never return errors

	summary := RefreshSummary{Failed: failed}
	merged := make(map[string]struct{}, len(fetched))

	for _, uri := range uris {
		summary.Refreshed += c.mergeFetched(uri, fetched, merged)
	}

	// Fetched but merged nowhere: the reference vanished mid-flight
	// (purged or retargeted). The stale fetch is dropped, never written.
	summary.Skipped = len(fetched) - len(merged)

	if summary.Refreshed > 0 {
		err := refstore.Save(c.kv, c.store)
		if err != nil {
			return summary, fmt.Errorf("refresh: %w", err)
		}

		c.notify()
	}

	return summary, nil
}

// mergeFetched merges fetched metadata into one document under its URI
// lock, reading the reference set as it is now, and records which task ids
// it actually applied.
func (c *Coordinator) mergeFetched(uri string, fetched map[string]anchor.Metadata, merged map[string]struct{}) int {
	unlock := c.lockURI(uri)
	defer unlock()

	refs := c.store.Get(uri)
	refreshed := 0

	for i := range refs {
		if refs[i].Placeholder() {
			continue
		}

		meta, ok := fetched[refs[i].TaskID]
		if !ok {
			continue
		}

		refs[i].MergeMeta(meta)
		merged[refs[i].TaskID] = struct{}{}
		refreshed++
	}

	if refreshed > 0 {
		c.store.SetActive(uri, refs)
	}

	return refreshed
}

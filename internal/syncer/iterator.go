package syncer

import (
	"context"

	"github.com/meltforce/garmsync/internal/metrics"
)

// activityCursor is the explicit pagination state of the activity list:
// a newest-first buffer, the next batch offset, and whether the server
// has more rows.
type activityCursor struct {
	buffer  []metrics.Activity
	offset  int
	hasMore bool
}

// ActivityIterator adapts the newest-first paginated activity list to
// per-date consumption. Dates must be requested in strictly descending
// order; older activities stay buffered for later calls.
type ActivityIterator struct {
	fetch     Fetcher
	batchSize int
	cur       activityCursor
}

func NewActivityIterator(fetch Fetcher, batchSize int) *ActivityIterator {
	it := &ActivityIterator{fetch: fetch, batchSize: batchSize}
	it.Reset()
	return it
}

// Reset discards all cursor state. Mandatory between independent sync
// sessions; a stale cursor silently skips dates.
func (it *ActivityIterator) Reset() {
	it.cur = activityCursor{hasMore: true}
}

// ActivitiesForDate returns the buffered activities dated exactly date,
// consuming newer entries along the way. Activities older than date are
// left buffered.
func (it *ActivityIterator) ActivitiesForDate(ctx context.Context, date string) ([]metrics.Activity, error) {
	var collected []metrics.Activity
	for {
		if len(it.cur.buffer) == 0 {
			if !it.cur.hasMore {
				return collected, nil
			}
			if err := it.fetchBatch(ctx); err != nil {
				return nil, err
			}
			if len(it.cur.buffer) == 0 {
				return collected, nil
			}
		}

		head := it.cur.buffer[0]
		headDate := activityDate(&head)
		switch {
		case headDate > date:
			// Newer than the requested date; a prior descending call
			// should have consumed it. Skip.
			it.cur.buffer = it.cur.buffer[1:]
		case headDate == date:
			collected = append(collected, head)
			it.cur.buffer = it.cur.buffer[1:]
		default:
			// Older; leave buffered for the next (earlier) date.
			return collected, nil
		}
	}
}

func (it *ActivityIterator) fetchBatch(ctx context.Context) error {
	batch, err := it.fetch.ActivitiesPage(ctx, it.batchSize, it.cur.offset)
	if err != nil {
		return err
	}
	it.cur.buffer = append(it.cur.buffer, batch...)
	it.cur.offset += len(batch)
	if len(batch) < it.batchSize {
		it.cur.hasMore = false
	}
	return nil
}

func activityDate(a *metrics.Activity) string {
	if len(a.StartTimeLocal) >= 10 {
		return a.StartTimeLocal[:10]
	}
	return ""
}

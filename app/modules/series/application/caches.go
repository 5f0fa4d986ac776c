package seriesservice

import (
	"context"
	"time"

	"github.com/davidhouweling/guilty-spark-sub001/app/clients/halo"
	sharedtypes "github.com/davidhouweling/guilty-spark-sub001/app/shared/types"
)

// historyCache caches match-history pages per account for the duration of
// one assembler call. It is an explicit per-run object, never a global.
type historyCache struct {
	client StatsClient
	// histories holds every summary fetched so far, newest first.
	histories map[sharedtypes.XboxUserID][]sharedtypes.MatchSummary
	// exhausted marks accounts whose history was paged all the way back.
	exhausted map[sharedtypes.XboxUserID]bool
}

func newHistoryCache(client StatsClient) *historyCache {
	return &historyCache{
		client:    client,
		histories: make(map[sharedtypes.XboxUserID][]sharedtypes.MatchSummary),
		exhausted: make(map[sharedtypes.XboxUserID]bool),
	}
}

// historyBack pages one account's history backward (sequentially, to
// respect upstream ordering and rate constraints) until a match precedes
// the cutoff or the history runs out, and returns everything fetched.
func (c *historyCache) historyBack(ctx context.Context, id sharedtypes.XboxUserID, cutoff time.Time) ([]sharedtypes.MatchSummary, error) {
	for !c.exhausted[id] && !c.reachedCutoff(id, cutoff) {
		page, err := c.client.ListMatches(ctx, id, len(c.histories[id]), halo.MatchHistoryPageSize)
		if err != nil {
			return nil, err
		}
		c.histories[id] = append(c.histories[id], page...)
		if len(page) < halo.MatchHistoryPageSize {
			c.exhausted[id] = true
		}
	}
	return c.histories[id], nil
}

func (c *historyCache) reachedCutoff(id sharedtypes.XboxUserID, cutoff time.Time) bool {
	history := c.histories[id]
	if len(history) == 0 {
		return false
	}
	oldest := history[len(history)-1]
	return oldest.StartTime.Before(cutoff)
}

package savings

import (
	"context"
	"fmt"

	"github.com/JamesWheadon/Carbon-Intensity/core/decisionlog"
	"github.com/JamesWheadon/Carbon-Intensity/core/events"
	coresavings "github.com/JamesWheadon/Carbon-Intensity/core/savings"
)

// Backfill replays the decision log matching q into store and returns the
// number of records processed. Invalid requests are not counted as queries.
func Backfill(ctx context.Context, store coresavings.Store, log decisionlog.Store, q decisionlog.Query) (int, error) {
	recs, err := log.Query(ctx, q)
	if err != nil {
		return 0, fmt.Errorf("read decision log: %w", err)
	}
	n := 0
	for _, r := range recs {
		if r.Outcome == events.OutcomeInvalid {
			continue
		}
		if err := ctx.Err(); err != nil {
			return n, err
		}
		inc := coresavings.FromDecision(r.Timestamp, r.Bucket, r.Outcome == events.OutcomeFound, r.Saving)
		if err := store.Add(inc); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

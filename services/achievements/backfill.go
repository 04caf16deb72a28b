package achievements

import (
	"context"
	"fmt"
)

// BackfillReport summarises a bulk recomputation.
type BackfillReport struct {
	Users    int `json:"users"`
	Changed  int `json:"changed"`
	Unlocked int `json:"unlocked"`
	Failed   int `json:"failed"`
}

// Backfill recomputes every user selected by f, one at a time. A failure for
// one user is reported through each and does not stop the run; ctx
// cancellation does.
func (e *Engine) Backfill(ctx context.Context, f UserFilter, opts RecomputeOptions, each func(userID string, res *AwardResult, err error)) (BackfillReport, error) {
	var report BackfillReport

	userIDs, err := e.store.ListUserIDs(ctx, f)
	if err != nil {
		return report, fmt.Errorf("list users: %w", err)
	}

	for _, userID := range userIDs {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Users++

		res, err := e.Recompute(ctx, userID, opts)
		if err != nil {
			report.Failed++
		} else {
			report.Unlocked += len(res.Unlocked)
			if len(res.Unlocked) > 0 || res.AchievementXP != res.PreviousAchievementXP {
				report.Changed++
			}
		}
		if each != nil {
			each(userID, res, err)
		}
	}
	return report, nil
}

package assessment

import (
	"context"
	"math"

	"github.com/skillscan/backend/internal/models"
)

// ItemBank is the slice of the content service the selector consumes:
// calibrated candidate items by subject, optionally narrowed to a grade
// band, minus the ids already used in the session.
type ItemBank interface {
	Query(ctx context.Context, subject string, gradeBand *models.GradeBand, excludedIDs []int64) ([]models.Item, error)
	Get(ctx context.Context, id int64) (*models.Item, error)
	Subjects(ctx context.Context) ([]string, error)
}

// Selector picks the next item to present. Under the one-parameter model
// the most informative item is the one whose difficulty is closest to the
// current ability estimate, so that is what it maximizes.
type Selector struct {
	bank ItemBank
}

func NewSelector(bank ItemBank) *Selector {
	return &Selector{bank: bank}
}

// Select returns the candidate minimizing |difficulty - targetAbility|.
// Ties break to the lowest item id so a given response sequence always
// replays identically. Returns ErrNoCandidates when the pool is exhausted.
func (s *Selector) Select(ctx context.Context, subject string, targetAbility float64, gradeBand *models.GradeBand, excludedIDs []int64) (*models.Item, error) {
	candidates, err := s.bank.Query(ctx, subject, gradeBand, excludedIDs)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, ErrNoCandidates
	}

	best := candidates[0]
	bestDist := math.Abs(best.Difficulty - targetAbility)

	for _, c := range candidates[1:] {
		dist := math.Abs(c.Difficulty - targetAbility)
		if dist < bestDist || (dist == bestDist && c.ID < best.ID) {
			best = c
			bestDist = dist
		}
	}

	return &best, nil
}

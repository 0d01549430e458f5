package shadow

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/framevault/dedupe-engine/internal/resolution"
	"github.com/framevault/dedupe-engine/pkg/models"
)

// ShadowRunner executes an experimental selector in parallel against
// production pairs. An edited rule never affects the live population
// immediately; it runs in shadow mode over the same candidates first, and the
// user promotes it once the agreement numbers look right.
type ShadowRunner struct {
	pool   *pgxpool.Pool
	ruleID int64

	productionSelector *resolution.PairSelectorAndComparator
	shadowSelector     *resolution.PairSelectorAndComparator
}

// ShadowResult captures the diff between the production and shadow selectors
// on one pair. Winner ids of 0 mean "no match".
type ShadowResult struct {
	RuleID       int64     `json:"ruleId"`
	PairID       int64     `json:"pairId"`
	ProdWinner   int64     `json:"prodWinner"`
	ShadowWinner int64     `json:"shadowWinner"`
	Agreed       bool      `json:"agreed"`
	CreatedAt    time.Time `json:"createdAt"`
}

func NewShadowRunner(pool *pgxpool.Pool, ruleID int64, production, shadow *resolution.PairSelectorAndComparator) *ShadowRunner {
	return &ShadowRunner{
		pool:               pool,
		ruleID:             ruleID,
		productionSelector: production,
		shadowSelector:     shadow,
	}
}

// RunShadowEvaluation evaluates both selectors on a pair and persists the
// comparison. Both selectors shuffle internally, so a pair where both
// orientations pass can disagree by tie-break alone; that noise is expected
// and washes out over a corpus.
func (sr *ShadowRunner) RunShadowEvaluation(ctx context.Context, pair *models.PairCandidate) (*ShadowResult, error) {
	prodWinner := sr.productionSelector.GetMatchingMedia(pair.FileA, pair.FileB)
	shadowWinner := sr.shadowSelector.GetMatchingMedia(pair.FileA, pair.FileB)

	result := &ShadowResult{
		RuleID:    sr.ruleID,
		PairID:    pair.PairID,
		CreatedAt: time.Now(),
	}
	if prodWinner != nil {
		result.ProdWinner = prodWinner.FileID
	}
	if shadowWinner != nil {
		result.ShadowWinner = shadowWinner.FileID
	}
	result.Agreed = result.ProdWinner == result.ShadowWinner

	if sr.pool != nil {
		_, err := sr.pool.Exec(ctx, `
			INSERT INTO shadow_selector_results (rule_id, pair_id, prod_winner, shadow_winner, agreed)
			VALUES ($1, $2, NULLIF($3, 0), NULLIF($4, 0), $5)
		`, result.RuleID, result.PairID, result.ProdWinner, result.ShadowWinner, result.Agreed)
		if err != nil {
			return nil, err
		}
	}

	return result, nil
}

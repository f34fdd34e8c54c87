package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/dyike/OptiFolio/internal/models"
	"github.com/dyike/OptiFolio/internal/portfolio"
)

// basketRequest describes one non-interactive optimization. Nil caps and
// an empty model keep the session defaults.
type basketRequest struct {
	Tickers   []string
	WeightCap *float64
	RiskCap   *float64
	Model     models.ModelType
}

// runBasket drives a fresh session through add, constrain, check and
// optimize
func runBasket(ctx context.Context, sess *portfolio.Session, req basketRequest) (*models.OptimizationResult, error) {
	if len(req.Tickers) == 0 {
		return nil, fmt.Errorf("no tickers given")
	}

	for _, t := range req.Tickers {
		if _, err := sess.AddTicker(ctx, t); err != nil {
			if errors.Is(err, portfolio.ErrDuplicateAsset) {
				continue
			}
			return nil, fmt.Errorf("add %s: %w", t, err)
		}
	}

	if req.Model != "" {
		if err := sess.SetModel(req.Model); err != nil {
			return nil, err
		}
	}
	if req.WeightCap != nil && !sess.SetWeightCap(*req.WeightCap) {
		return nil, fmt.Errorf("invalid max weight %v", *req.WeightCap)
	}
	if req.RiskCap != nil && !sess.SetRiskCap(*req.RiskCap) {
		return nil, fmt.Errorf("invalid max risk %v", *req.RiskCap)
	}

	// the risk check needs the attainable minimum for the final basket
	sess.WaitFeasibility()

	if !sess.CanOptimize() {
		if msg := sess.Message(); msg.Text != "" {
			return nil, fmt.Errorf("cannot optimize: %s", msg.Text)
		}
		return nil, fmt.Errorf("cannot optimize: %w", portfolio.ErrNotReady)
	}
	return sess.Optimize(ctx)
}

package portfolio

import (
	"context"

	"github.com/dyike/OptiFolio/internal/models"
)

// InfoService resolves static info for a ticker
type InfoService interface {
	FetchInfo(ctx context.Context, ticker string) (*models.TickerInfo, error)
}

// MinRiskService queries the attainable minimum risk for a basket
type MinRiskService interface {
	MinimumRisk(ctx context.Context, req models.MinRiskRequest) (float64, error)
}

// Optimizer runs the remote optimization
type Optimizer interface {
	Optimize(ctx context.Context, req models.OptimizeRequest) (*models.OptimizeResponse, error)
}

// RunRecorder persists successful optimization runs
type RunRecorder interface {
	RecordRun(ctx context.Context, result *models.OptimizationResult) error
}

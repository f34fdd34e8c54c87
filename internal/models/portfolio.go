package models

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ModelType selects the return estimator used by the optimizer backend
type ModelType string

const (
	// ModelCAPM uses forward-looking CAPM-style expected returns
	ModelCAPM ModelType = "capm"
	// ModelHistorical uses trailing realized statistics
	ModelHistorical ModelType = "historical"
)

// ModelTypes lists the selectable models in display order
var ModelTypes = []ModelType{ModelCAPM, ModelHistorical}

// GetDisplayName returns a human-readable label for the model
func (m ModelType) GetDisplayName() string {
	switch m {
	case ModelCAPM:
		return "Forward-looking (CAPM)"
	case ModelHistorical:
		return "Historical average"
	default:
		return string(m)
	}
}

// Valid reports whether m is a known model type
func (m ModelType) Valid() bool {
	return m == ModelCAPM || m == ModelHistorical
}

// ParseModelType accepts the canonical names plus a few aliases
func ParseModelType(s string) (ModelType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "capm", "forward", "forward-looking":
		return ModelCAPM, true
	case "historical", "hist", "history":
		return ModelHistorical, true
	}
	return "", false
}

// Asset is a resolved ticker held in the basket
type Asset struct {
	Ticker   string          `json:"ticker"`
	Price    decimal.Decimal `json:"price"`
	Name     string          `json:"name"`
	Sector   string          `json:"sector"`
	Industry string          `json:"industry"`
}

// TickerInfo is the static information returned by an info lookup
type TickerInfo struct {
	Ticker   string          `json:"ticker"`
	Price    decimal.Decimal `json:"price"`
	Name     string          `json:"name"`
	Sector   string          `json:"sector"`
	Industry string          `json:"industry"`
}

// ConstraintSet holds the user-controlled caps, both fractions in [0,1]
type ConstraintSet struct {
	WeightCap float64 `json:"weight_cap"`
	RiskCap   float64 `json:"risk_cap"`
}

// DefaultConstraints leaves both caps unconstrained
func DefaultConstraints() ConstraintSet {
	return ConstraintSet{WeightCap: 1, RiskCap: 1}
}

// Tag identifies the inputs a feasibility snapshot was derived from
type Tag struct {
	Set       string  `json:"set"`
	WeightCap float64 `json:"weight_cap"`
}

// NewTag builds a tag from tickers in any order. The set key is canonical:
// the same tickers always produce the same key.
func NewTag(tickers []string, weightCap float64) Tag {
	sorted := make([]string, len(tickers))
	copy(sorted, tickers)
	sort.Strings(sorted)
	return Tag{Set: strings.Join(sorted, ","), WeightCap: weightCap}
}

// Empty reports whether the tag describes an empty asset set
func (t Tag) Empty() bool {
	return t.Set == ""
}

// FeasibilitySnapshot is the attainable minimum risk for a given tag
type FeasibilitySnapshot struct {
	AttainableMinRisk float64   `json:"attainable_min_risk"`
	ComputedFor       Tag       `json:"computed_for"`
	ComputedAt        time.Time `json:"computed_at"`
}

// ValidationState is derived from constraints, asset count and the latest
// valid snapshot. Empty strings mean no warning.
type ValidationState struct {
	WeightWarning string `json:"weight_warning,omitempty"`
	RiskWarning   string `json:"risk_warning,omitempty"`
}

// OK reports whether neither warning is present
func (v ValidationState) OK() bool {
	return v.WeightWarning == "" && v.RiskWarning == ""
}

// OptimizationResult is one completed optimizer run
type OptimizationResult struct {
	Tickers        []string  `json:"tickers"`
	Weights        []float64 `json:"weights"`
	ExpectedReturn float64   `json:"expected_return"`
	Volatility     float64   `json:"volatility"`
	SharpeRatio    float64   `json:"sharpe_ratio"`
	MinVolatility  float64   `json:"min_volatility"`
	Model          ModelType `json:"model"`
	AsOf           string    `json:"as_of"`
	MaxWeight      float64   `json:"max_weight"`
	MaxRisk        float64   `json:"max_risk"`
	CompletedAt    time.Time `json:"completed_at"`
}

// Allocation pairs a ticker with its weight
type Allocation struct {
	Ticker string
	Weight float64
}

// Allocations returns the weights in ticker order
func (r *OptimizationResult) Allocations() []Allocation {
	out := make([]Allocation, 0, len(r.Tickers))
	for i, t := range r.Tickers {
		out = append(out, Allocation{Ticker: t, Weight: r.Weights[i]})
	}
	return out
}

// TotalWeight sums the weights
func (r *OptimizationResult) TotalWeight() float64 {
	var sum float64
	for _, w := range r.Weights {
		sum += w
	}
	return sum
}

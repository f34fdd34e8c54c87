package models

// MinRiskRequest asks the backend for the attainable minimum risk
type MinRiskRequest struct {
	Tickers   []string `json:"tickers"`
	Date      string   `json:"date"`
	MaxWeight float64  `json:"max_weight"`
}

// OptimizeRequest is the body of an optimize call
type OptimizeRequest struct {
	Model     ModelType `json:"model"`
	Tickers   []string  `json:"tickers"`
	Date      string    `json:"date"`
	MaxWeight float64   `json:"max_weight"`
	MaxRisk   float64   `json:"max_risk"`
}

// OptimizeResponse is the raw optimizer reply. The backend reports failures
// in Error, and reports an infeasible risk cap by sending only MinVol.
type OptimizeResponse struct {
	Tickers        []string  `json:"tickers,omitempty"`
	Weights        []float64 `json:"weights,omitempty"`
	ExpectedReturn *float64  `json:"expected_return,omitempty"`
	Volatility     *float64  `json:"volatility,omitempty"`
	SharpeRatio    *float64  `json:"sharpe_ratio,omitempty"`
	MinVol         *float64  `json:"min_vol,omitempty"`
	Error          string    `json:"error,omitempty"`
}

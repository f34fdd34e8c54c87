package mockbackend

import (
	"errors"
	"hash/fnv"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const (
	// correlation between every pair of synthetic assets
	correlation = 0.3
	riskFree    = 0.02
)

var errCapTooSmall = errors.New("max_weight is too small for the number of tickers")

var sectors = []struct{ sector, industry string }{
	{"Technology", "Software"},
	{"Healthcare", "Biotechnology"},
	{"Financial Services", "Banks"},
	{"Energy", "Oil & Gas"},
	{"Consumer Cyclical", "Specialty Retail"},
	{"Industrials", "Aerospace & Defense"},
}

// asset is a synthetic security derived from the ticker alone, so every
// run sees the same numbers
type asset struct {
	Ticker     string
	Name       string
	Sector     string
	Industry   string
	Price      float64
	CAPMReturn float64
	HistReturn float64
	Vol        float64
}

func lookup(ticker string) asset {
	h := fnv.New64a()
	h.Write([]byte(ticker))
	seed := h.Sum64()
	unit := func(shift uint) float64 {
		return float64((seed>>shift)&0xffff) / 0xffff
	}

	sec := sectors[int((seed>>48)%uint64(len(sectors)))]
	capm := 0.04 + 0.16*unit(16)
	return asset{
		Ticker:     ticker,
		Name:       ticker + " Holdings",
		Sector:     sec.sector,
		Industry:   sec.industry,
		Price:      math.Round((20+480*unit(0))*100) / 100,
		CAPMReturn: capm,
		HistReturn: 0.01 + 0.8*capm,
		Vol:        0.15 + 0.30*unit(32),
	}
}

func lookupAll(tickers []string) []asset {
	out := make([]asset, len(tickers))
	for i, t := range tickers {
		out[i] = lookup(t)
	}
	return out
}

// covariance builds Σ with a constant pairwise correlation
func covariance(assets []asset) *mat.SymDense {
	n := len(assets)
	cov := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			if i == j {
				cov.SetSym(i, i, assets[i].Vol*assets[i].Vol)
				continue
			}
			cov.SetSym(i, j, correlation*assets[i].Vol*assets[j].Vol)
		}
	}
	return cov
}

// portfolioVol is sqrt(wᵀΣw)
func portfolioVol(cov *mat.SymDense, w []float64) float64 {
	x := mat.NewVecDense(len(w), append([]float64(nil), w...))
	return math.Sqrt(mat.Inner(x, cov, x))
}

// capWeights normalizes positive scores into weights that sum to one
// with no weight above maxWeight. Excess is redistributed to the rest in
// proportion to their scores.
func capWeights(scores []float64, maxWeight float64) []float64 {
	n := len(scores)
	w := make([]float64, n)
	fixed := make([]bool, n)

	for round := 0; round < n; round++ {
		var freeSum float64
		var nFixed int
		for i, s := range scores {
			if fixed[i] {
				nFixed++
				continue
			}
			freeSum += s
		}
		if nFixed == n {
			break
		}

		remaining := 1 - maxWeight*float64(nFixed)
		over := false
		for i, s := range scores {
			if fixed[i] {
				continue
			}
			if freeSum > 0 {
				w[i] = remaining * s / freeSum
			} else {
				w[i] = remaining / float64(n-nFixed)
			}
			if w[i] > maxWeight+1e-12 {
				over = true
			}
		}
		if !over {
			break
		}
		for i := range w {
			if !fixed[i] && w[i] > maxWeight {
				w[i] = maxWeight
				fixed[i] = true
			}
		}
	}
	return w
}

func feasibleCap(n int, maxWeight float64) bool {
	return maxWeight > 0 && float64(n)*maxWeight >= 1-1e-9
}

// minVolWeights is the inverse-variance portfolio under the cap
func minVolWeights(assets []asset, maxWeight float64) []float64 {
	scores := make([]float64, len(assets))
	for i, a := range assets {
		scores[i] = 1 / (a.Vol * a.Vol)
	}
	return capWeights(scores, maxWeight)
}

func minimumVolatility(assets []asset, maxWeight float64) (float64, error) {
	if !feasibleCap(len(assets), maxWeight) {
		return 0, errCapTooSmall
	}
	return portfolioVol(covariance(assets), minVolWeights(assets, maxWeight)), nil
}

type optimum struct {
	Weights        []float64
	ExpectedReturn float64
	Volatility     float64
	SharpeRatio    float64
	MinVol         float64
	Infeasible     bool
}

// optimize tilts towards return per unit variance, then blends back
// towards the minimum-volatility weights until the risk cap holds
func optimize(model string, assets []asset, maxWeight, maxRisk float64) (optimum, error) {
	if !feasibleCap(len(assets), maxWeight) {
		return optimum{}, errCapTooSmall
	}

	cov := covariance(assets)
	wMin := minVolWeights(assets, maxWeight)
	minVol := portfolioVol(cov, wMin)
	if maxRisk < minVol {
		return optimum{MinVol: minVol, Infeasible: true}, nil
	}

	returns := make([]float64, len(assets))
	scores := make([]float64, len(assets))
	for i, a := range assets {
		returns[i] = a.CAPMReturn
		if model == "historical" {
			returns[i] = a.HistReturn
		}
		scores[i] = returns[i] / (a.Vol * a.Vol)
	}
	w := capWeights(scores, maxWeight)

	if portfolioVol(cov, w) > maxRisk {
		lo, hi := 0.0, 1.0
		for i := 0; i < 50; i++ {
			mid := (lo + hi) / 2
			if portfolioVol(cov, blend(w, wMin, mid)) > maxRisk {
				lo = mid
			} else {
				hi = mid
			}
		}
		w = blend(w, wMin, hi)
	}

	vol := portfolioVol(cov, w)
	ret := floats.Dot(w, returns)
	return optimum{
		Weights:        w,
		ExpectedReturn: ret,
		Volatility:     vol,
		SharpeRatio:    (ret - riskFree) / vol,
		MinVol:         minVol,
	}, nil
}

// blend returns (1-t)a + tb
func blend(a, b []float64, t float64) []float64 {
	out := make([]float64, len(a))
	floats.AddScaledTo(out, floats.ScaleTo(make([]float64, len(a)), 1-t, a), t, b)
	return out
}

package portfolio

import (
	"math"

	"github.com/dyike/OptiFolio/internal/models"
)

const (
	// WeightWarningText is shown when the weight cap cannot cover the basket
	WeightWarningText = "cap below minimum feasible"
	// RiskWarningText is shown when the risk cap is below the attainable minimum
	RiskWarningText = "cap below attainable minimum"
)

// MinFeasibleWeight is the equal-split floor for n assets
func MinFeasibleWeight(n int) float64 {
	if n <= 0 {
		return 0
	}
	return 1 / float64(n)
}

// WeightWarning returns the weight warning for a basket of n assets
func WeightWarning(n int, weightCap float64) string {
	if n == 0 {
		return ""
	}
	if weightCap < MinFeasibleWeight(n) {
		return WeightWarningText
	}
	return ""
}

// RiskWarning returns the risk warning. snapshot is nil when no valid
// snapshot exists.
func RiskWarning(riskCap float64, snapshot *models.FeasibilitySnapshot) string {
	if snapshot == nil {
		return ""
	}
	if riskCap < snapshot.AttainableMinRisk {
		return RiskWarningText
	}
	return ""
}

// Validate derives the validation state. snapshot must already be checked
// against the current inputs.
func Validate(n int, c models.ConstraintSet, snapshot *models.FeasibilitySnapshot) models.ValidationState {
	if n == 0 {
		return models.ValidationState{}
	}
	return models.ValidationState{
		WeightWarning: WeightWarning(n, c.WeightCap),
		RiskWarning:   RiskWarning(c.RiskCap, snapshot),
	}
}

// Gate reports whether an optimization may start
func Gate(n int, v models.ValidationState, inFlight bool) bool {
	return n > 0 && v.OK() && !inFlight
}

// ClampUnit clamps v into [0,1]. ok is false for NaN, which callers ignore.
func ClampUnit(v float64) (clamped float64, ok bool) {
	if math.IsNaN(v) {
		return 0, false
	}
	return math.Min(1, math.Max(0, v)), true
}

// MessageLevel ranks what the session message slot shows
type MessageLevel string

const (
	LevelNone    MessageLevel = ""
	LevelError   MessageLevel = "error"
	LevelWarning MessageLevel = "warning"
)

// Message is the single most relevant notice for the user
type Message struct {
	Level MessageLevel
	Text  string
}

// SelectMessage picks one message: an error wins over the weight warning,
// which wins over the risk warning.
func SelectMessage(err error, v models.ValidationState) Message {
	switch {
	case err != nil:
		return Message{Level: LevelError, Text: err.Error()}
	case v.WeightWarning != "":
		return Message{Level: LevelWarning, Text: "Max weight: " + v.WeightWarning}
	case v.RiskWarning != "":
		return Message{Level: LevelWarning, Text: "Max risk: " + v.RiskWarning}
	default:
		return Message{}
	}
}

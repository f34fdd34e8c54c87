package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/AlecAivazis/survey/v2"

	"github.com/dyike/OptiFolio/internal/display"
	"github.com/dyike/OptiFolio/internal/models"
)

// Prompter asks the user for choices the REPL cannot take as arguments
type Prompter interface {
	SelectModel(current models.ModelType) (models.ModelType, error)
	AskConstraints(current models.ConstraintSet) (models.ConstraintSet, error)
	ConfirmClear(count int) (bool, error)
}

// surveyPrompter prompts on the terminal
type surveyPrompter struct{}

// SelectModel lets the user pick the return model
func (surveyPrompter) SelectModel(current models.ModelType) (models.ModelType, error) {
	options := make([]string, 0, len(models.ModelTypes))
	byLabel := make(map[string]models.ModelType, len(models.ModelTypes))
	var def string
	for _, m := range models.ModelTypes {
		label := m.GetDisplayName()
		options = append(options, label)
		byLabel[label] = m
		if m == current {
			def = label
		}
	}

	var selected string
	prompt := &survey.Select{
		Message: "Select the expected-return model:",
		Options: options,
		Default: def,
		Help:    "CAPM uses forward-looking returns; historical uses trailing averages",
	}
	if err := survey.AskOne(prompt, &selected); err != nil {
		return current, err
	}
	return byLabel[selected], nil
}

// AskConstraints walks through both caps, defaulting to the current values
func (surveyPrompter) AskConstraints(current models.ConstraintSet) (models.ConstraintSet, error) {
	answers := struct {
		MaxWeight string
		MaxRisk   string
	}{}

	questions := []*survey.Question{
		{
			Name: "MaxWeight",
			Prompt: &survey.Input{
				Message: "Max weight per asset:",
				Default: display.FormatPercent(current.WeightCap),
				Help:    "A fraction such as 0.4 or a percentage such as 40%",
			},
			Validate: validateCap,
		},
		{
			Name: "MaxRisk",
			Prompt: &survey.Input{
				Message: "Max portfolio risk (volatility):",
				Default: display.FormatPercent(current.RiskCap),
				Help:    "A fraction such as 0.25 or a percentage such as 25%",
			},
			Validate: validateCap,
		},
	}

	if err := survey.Ask(questions, &answers); err != nil {
		return current, err
	}

	weight, _ := parseCap(answers.MaxWeight)
	risk, _ := parseCap(answers.MaxRisk)
	return models.ConstraintSet{WeightCap: weight, RiskCap: risk}, nil
}

// ConfirmClear asks before emptying the basket
func (surveyPrompter) ConfirmClear(count int) (bool, error) {
	confirm := false
	prompt := &survey.Confirm{
		Message: fmt.Sprintf("Remove all %d assets from the basket?", count),
		Default: false,
	}
	if err := survey.AskOne(prompt, &confirm); err != nil {
		return false, err
	}
	return confirm, nil
}

func validateCap(val interface{}) error {
	str, ok := val.(string)
	if !ok {
		return fmt.Errorf("expected text input")
	}
	_, err := parseCap(str)
	return err
}

// parseCap reads a cap as a fraction ("0.4") or a percentage ("40%").
// Range is not checked here; the session clamps into [0,1].
func parseCap(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("value cannot be empty")
	}

	percent := strings.HasSuffix(s, "%")
	s = strings.TrimSpace(strings.TrimSuffix(s, "%"))
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", s)
	}
	if percent {
		v /= 100
	}
	return v, nil
}

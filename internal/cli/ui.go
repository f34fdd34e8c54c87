package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/dyike/OptiFolio/internal/display"
	"github.com/dyike/OptiFolio/internal/models"
	"github.com/dyike/OptiFolio/internal/portfolio"
)

const panelWidth = 72

// UI styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7C3AED")).
			Background(lipgloss.Color("#1F2937")).
			Padding(0, 1).
			MarginBottom(1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#3B82F6")).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#3B82F6")).
			Padding(1, 2).
			Width(panelWidth)

	basketStyle      = panelStyle("#3B82F6")
	constraintsStyle = panelStyle("#F59E0B")
	resultsStyle     = panelStyle("#10B981")

	// Status styles
	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6B7280"))

	pendingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F59E0B")).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#10B981")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F59E0B"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#EF4444")).
			Bold(true)
)

func panelStyle(color string) lipgloss.Style {
	return lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(color)).
		Padding(0, 1).
		Width(panelWidth)
}

func renderPanel(style lipgloss.Style, title, body string) string {
	return style.Render(titleStyle.Render(title) + "\n" + body)
}

// renderWelcomeBanner is printed once when the REPL starts
func renderWelcomeBanner(asOf string) string {
	body := strings.Join([]string{
		"OptiFolio - Portfolio Optimization",
		"",
		"Build a basket of tickers, set your caps and optimize.",
		"As of " + asOf + ". Type 'help' for commands.",
	}, "\n")
	return headerStyle.Render(body)
}

func renderBasketPanel(st portfolio.State) string {
	title := fmt.Sprintf("Basket (%d)", len(st.Assets))
	return renderPanel(basketStyle, title, display.BasketText(st.Assets))
}

func renderConstraintsPanel(st portfolio.State) string {
	n := len(st.Assets)
	c := st.Constraints

	weightLine := "Max weight:  " + display.FormatPercent(c.WeightCap)
	if n > 0 {
		weightLine += mutedStyle.Render(fmt.Sprintf("  (min feasible %s)",
			display.FormatPercent(portfolio.MinFeasibleWeight(n))))
	}

	riskLine := "Max risk:    " + display.FormatPercent(c.RiskCap)
	if n > 0 {
		riskLine += "  " + renderFeasibility(st)
	}

	lines := []string{
		"Model:       " + st.Model.GetDisplayName(),
		"As of:       " + st.AsOf,
		weightLine,
		riskLine,
		"Optimize:    " + renderGate(st),
	}
	return renderPanel(constraintsStyle, "Constraints", strings.Join(lines, "\n"))
}

func renderFeasibility(st portfolio.State) string {
	switch {
	case st.MinRiskPending:
		return pendingStyle.Render("(checking attainable minimum...)")
	case st.Snapshot != nil:
		return mutedStyle.Render("(attainable min " + display.FormatPercent(st.Snapshot.AttainableMinRisk) + ")")
	case st.MinRiskErr != nil:
		return warningStyle.Render("(attainable minimum unavailable)")
	default:
		return ""
	}
}

func renderGate(st portfolio.State) string {
	switch {
	case st.InFlight:
		return pendingStyle.Render("running")
	case st.CanOptimize:
		return successStyle.Render("ready")
	case len(st.Assets) == 0:
		return mutedStyle.Render("add at least one ticker")
	default:
		return warningStyle.Render("blocked")
	}
}

// renderMessage renders the session's single message slot; empty when
// there is nothing to say
func renderMessage(msg portfolio.Message) string {
	switch msg.Level {
	case portfolio.LevelError:
		return errorStyle.Render("Error: " + msg.Text)
	case portfolio.LevelWarning:
		return warningStyle.Render("Warning: " + msg.Text)
	default:
		return ""
	}
}

func renderResultsPanel(r *models.OptimizationResult) string {
	return renderPanel(resultsStyle, "Optimal Weights", display.ResultText(r))
}

// renderState lays out every panel for the current session state
func renderState(st portfolio.State) string {
	parts := []string{
		renderBasketPanel(st),
		renderConstraintsPanel(st),
	}
	if msg := renderMessage(st.Message); msg != "" {
		parts = append(parts, msg)
	}
	parts = append(parts, renderResultsPanel(st.Result))
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func renderError(err error) string {
	return errorStyle.Render("Error: " + err.Error())
}

func renderInfo(message string) string {
	return mutedStyle.Render(message)
}

func renderSuccess(message string) string {
	return successStyle.Render(message)
}

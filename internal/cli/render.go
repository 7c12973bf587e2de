package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"

	"github.com/dyike/VancelleGo/internal/session"
	"github.com/dyike/VancelleGo/models"
)

// UI styles
var (
	titleStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#FFFFFF")).
		Background(lipgloss.Color("#111827")).
		Padding(0, 1).
		MarginBottom(1)

	panelStyle = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#374151")).
		Padding(0, 2).
		Width(76)

	labelStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#6B7280")).
		Bold(true)

	bullStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#00F59B")).
		Bold(true)

	bearStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#FF3B5C")).
		Bold(true)

	waitStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#FACC15")).
		Bold(true)

	errorStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#EF4444")).
		Bold(true)

	mutedStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#9CA3AF"))
)

func directiveStyle(d models.Directive) lipgloss.Style {
	switch d {
	case models.DirectiveBuy:
		return bullStyle
	case models.DirectiveSell:
		return bearStyle
	default:
		return waitStyle
	}
}

func field(b *strings.Builder, label, value string) {
	if strings.TrimSpace(value) == "" {
		return
	}
	fmt.Fprintf(b, "%s %s\n", labelStyle.Render(label+":"), value)
}

func bullets(b *strings.Builder, label string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "%s\n", labelStyle.Render(label+":"))
	for _, item := range items {
		fmt.Fprintf(b, "  • %s\n", item)
	}
}

// renderDecision prints a verdict the way the DECISION view lays it out.
func renderDecision(w io.Writer, r *models.AnalysisResult, settings models.Settings) {
	if r == nil {
		fmt.Fprintln(w, mutedStyle.Render("NO ACTIVE SESSION: upload a chart to begin technical extraction."))
		return
	}

	if !r.IsComplete() {
		var b strings.Builder
		fmt.Fprintln(&b, errorStyle.Render("INCOMPLETE DIAGNOSTIC"))
		bullets(&b, "Missing", r.MissingData)
		fmt.Fprintln(w, panelStyle.Render(strings.TrimRight(b.String(), "\n")))
		return
	}

	pair := r.Pair
	if pair == "" {
		pair = "DIAGNOSTIC"
	}
	header := fmt.Sprintf("%s %s  %s  quality %d",
		pair, r.Timeframe, directiveStyle(r.TradeDirective).Render(string(r.TradeDirective)), r.QualityScore)
	fmt.Fprintln(w, titleStyle.Render(header))

	var b strings.Builder
	field(&b, "Overview", r.MarketOverview)
	field(&b, "Bias", r.Bias)
	field(&b, "Confidence", r.ReasoningConfidence)

	if plan := r.ExecutionPlan; plan != nil {
		b.WriteString("\n")
		field(&b, "Entry", plan.Entry)
		field(&b, "Stop loss", plan.StopLoss)
		field(&b, "Take profit", strings.Join(plan.TakeProfit, " / "))
		field(&b, "R:R", plan.RiskRewardRatio)
		field(&b, "Sizing", plan.PositionSizing)
		field(&b, "Risk", models.FormatUSD(settings.RiskAmount()))
		if reward, err := settings.RewardAmount(plan.RiskRewardRatio); err == nil {
			field(&b, "Reward", models.FormatUSD(reward))
		}
	}
	if op := r.ObservationProtocol; op != nil {
		b.WriteString("\n")
		field(&b, "Wait reason", op.Reason)
		bullets(&b, "Watch", op.Indicators)
		field(&b, "Re-evaluate", op.ReevaluationTrigger)
	}

	b.WriteString("\n")
	field(&b, "Why this", r.WhyThisStrategy)
	field(&b, "Why not opposite", r.WhyNotOpposite)
	field(&b, "Momentum", r.TechnicalFactors.Momentum)
	field(&b, "Volatility", r.TechnicalFactors.Volatility)
	bullets(&b, "Confluence", r.TechnicalFactors.ConfluencePoints)
	field(&b, "Primary scenario", r.ScenarioAnalysis.Primary)
	field(&b, "Invalidation", r.ScenarioAnalysis.Invalidation)
	field(&b, "Alternative", r.ScenarioAnalysis.Alternative)
	field(&b, "Risk management", r.RiskManagement)

	if len(r.DrawingLayers) > 0 {
		b.WriteString("\n")
		fmt.Fprintf(&b, "%s\n", labelStyle.Render("Annotations:"))
		for _, l := range r.DrawingLayers {
			fmt.Fprintf(&b, "  %-13s %-7s %s (%d points)\n", l.Type, l.Color, l.Label, len(l.Points))
		}
	}
	fmt.Fprintln(w, panelStyle.Render(strings.TrimRight(b.String(), "\n")))
}

func renderStats(w io.Writer, stats models.JournalStats) {
	fmt.Fprintln(w, titleStyle.Render("LIVE EDGE DATA"))
	var b strings.Builder
	field(&b, "Edge accuracy", bullStyle.Render(fmt.Sprintf("%d%%", stats.WinRate)))
	field(&b, "Trades reviewed", fmt.Sprintf("%d of %d", stats.Reviewed, stats.Total))
	field(&b, "Wins / losses", fmt.Sprintf("%d / %d", stats.Wins, stats.Losses))
	field(&b, "Breakeven / skipped", fmt.Sprintf("%d / %d", stats.Breakeven, stats.Skipped))
	fmt.Fprintln(w, panelStyle.Render(strings.TrimRight(b.String(), "\n")))
}

func renderSettings(w io.Writer, s models.Settings) {
	var b strings.Builder
	field(&b, "Account balance", models.FormatUSD(decimal.NewFromFloat(s.AccountBalance)))
	field(&b, "Risk per trade", fmt.Sprintf("%g%%", s.RiskPerTrade))
	field(&b, "Risk amount", models.FormatUSD(s.RiskAmount()))
	fmt.Fprintln(w, panelStyle.Render(strings.TrimRight(b.String(), "\n")))
}

func renderError(w io.Writer, st session.State) {
	if st.Error == "" {
		return
	}
	fmt.Fprintln(w, errorStyle.Render(st.Error))
}

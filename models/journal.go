package models

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

type Outcome string

const (
	OutcomeWin       Outcome = "WIN"
	OutcomeLoss      Outcome = "LOSS"
	OutcomeBreakeven Outcome = "BREAKEVEN"
	OutcomeSkipped   Outcome = "SKIPPED"
)

var Outcomes = []Outcome{OutcomeWin, OutcomeLoss, OutcomeBreakeven, OutcomeSkipped}

func (o Outcome) IsValid() bool {
	switch o {
	case OutcomeWin, OutcomeLoss, OutcomeBreakeven, OutcomeSkipped:
		return true
	}
	return false
}

// ParseOutcome accepts the canonical names plus the short labels shown on the
// review buttons (B/E, SKIP).
func ParseOutcome(s string) (Outcome, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "WIN", "W":
		return OutcomeWin, nil
	case "LOSS", "L":
		return OutcomeLoss, nil
	case "BREAKEVEN", "B/E", "BE":
		return OutcomeBreakeven, nil
	case "SKIPPED", "SKIP":
		return OutcomeSkipped, nil
	}
	return "", fmt.Errorf("unknown outcome %q", s)
}

type TradeReview struct {
	Outcome Outcome `json:"outcome"`
	Notes   string  `json:"notes"`
}

// TradeLog is one journal entry, created once per completed analysis.
type TradeLog struct {
	ID        string         `json:"id"`
	Timestamp int64          `json:"timestamp"`
	Image     string         `json:"image"`
	Result    AnalysisResult `json:"result"`
	Review    *TradeReview   `json:"review,omitempty"`
}

// DisplayPair falls back to a generic label when the verdict names no pair.
func (l TradeLog) DisplayPair() string {
	if l.Result.Pair == "" {
		return "DIAGNOSTIC"
	}
	return l.Result.Pair
}

const (
	DefaultAccountBalance = 10000
	DefaultRiskPerTrade   = 1
)

type Settings struct {
	AccountBalance float64 `json:"accountBalance"`
	RiskPerTrade   float64 `json:"riskPerTrade"`
}

func DefaultSettings() Settings {
	return Settings{
		AccountBalance: DefaultAccountBalance,
		RiskPerTrade:   DefaultRiskPerTrade,
	}
}

// SettingsPatch is a shallow partial update; nil fields are left untouched.
type SettingsPatch struct {
	AccountBalance *float64 `json:"accountBalance,omitempty"`
	RiskPerTrade   *float64 `json:"riskPerTrade,omitempty"`
}

func (s Settings) Apply(p SettingsPatch) Settings {
	if p.AccountBalance != nil {
		s.AccountBalance = *p.AccountBalance
	}
	if p.RiskPerTrade != nil {
		s.RiskPerTrade = *p.RiskPerTrade
	}
	return s
}

// RiskAmount is the account currency put at risk by one trade.
func (s Settings) RiskAmount() decimal.Decimal {
	return decimal.NewFromFloat(s.AccountBalance).
		Mul(decimal.NewFromFloat(s.RiskPerTrade)).
		Div(decimal.NewFromInt(100)).
		Round(2)
}

// RewardAmount scales the risk amount by an "N:1" reward ratio.
func (s Settings) RewardAmount(ratio string) (decimal.Decimal, error) {
	n, err := ParseRiskReward(ratio)
	if err != nil {
		return decimal.Zero, err
	}
	return s.RiskAmount().Mul(n).Round(2), nil
}

// ParseRiskReward reads the reward side of an "N:1" ratio.
func ParseRiskReward(ratio string) (decimal.Decimal, error) {
	parts := strings.Split(strings.TrimSpace(ratio), ":")
	if len(parts) != 2 || strings.TrimSpace(parts[1]) != "1" {
		return decimal.Zero, fmt.Errorf("invalid risk/reward ratio %q", ratio)
	}
	n, err := decimal.NewFromString(strings.TrimSpace(parts[0]))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid risk/reward ratio %q: %w", ratio, err)
	}
	if n.IsNegative() {
		return decimal.Zero, fmt.Errorf("invalid risk/reward ratio %q", ratio)
	}
	return n, nil
}

// FormatUSD renders an amount as $1,234.56.
func FormatUSD(d decimal.Decimal) string {
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Abs()
	}
	d = d.Round(2)
	_, frac, _ := strings.Cut(d.StringFixed(2), ".")
	return sign + "$" + humanize.Comma(d.IntPart()) + "." + frac
}

type JournalStats struct {
	Total     int `json:"total"`
	Reviewed  int `json:"reviewed"`
	Wins      int `json:"wins"`
	Losses    int `json:"losses"`
	Breakeven int `json:"breakeven"`
	Skipped   int `json:"skipped"`
	WinRate   int `json:"winRate"`
}

func ComputeStats(logs []TradeLog) JournalStats {
	stats := JournalStats{Total: len(logs)}
	for _, l := range logs {
		if l.Review == nil {
			continue
		}
		stats.Reviewed++
		switch l.Review.Outcome {
		case OutcomeWin:
			stats.Wins++
		case OutcomeLoss:
			stats.Losses++
		case OutcomeBreakeven:
			stats.Breakeven++
		case OutcomeSkipped:
			stats.Skipped++
		}
	}
	if stats.Reviewed > 0 {
		stats.WinRate = int(decimal.NewFromInt(int64(stats.Wins)).
			Mul(decimal.NewFromInt(100)).
			Div(decimal.NewFromInt(int64(stats.Reviewed))).
			Round(0).IntPart())
	}
	return stats
}

// LogIDFromMillis formats a time-derived journal id.
func LogIDFromMillis(ms int64) string {
	return strconv.FormatInt(ms, 10)
}

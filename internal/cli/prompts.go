package cli

import (
	"errors"
	"fmt"
	"math"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/AlecAivazis/survey/v2"

	"github.com/dyike/VancelleGo/consts"
	"github.com/dyike/VancelleGo/models"
)

var pairPattern = regexp.MustCompile(`^[A-Z0-9/]{3,12}$`)

const (
	actionAnalyze  = "Analyze a chart"
	actionJournal  = "Browse journal"
	actionStats    = "Show stats"
	actionSettings = "Edit settings"
	actionExit     = "Exit Vancelle"

	reviewLater = "Review later"
	anyTF       = "Any"
)

func validateImagePath(val interface{}) error {
	path := strings.TrimSpace(val.(string))
	if path == "" {
		return fmt.Errorf("image path cannot be empty")
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("cannot read %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	return nil
}

// validatePair allows an empty answer; the model then reads the pair off the chart.
func validatePair(val interface{}) error {
	str := strings.TrimSpace(strings.ToUpper(val.(string)))
	if str == "" {
		return nil
	}
	if !pairPattern.MatchString(str) {
		return fmt.Errorf("invalid pair format (e.g. EURUSD or GBP/JPY)")
	}
	return nil
}

func validateAmount(val interface{}) error {
	v, err := strconv.ParseFloat(strings.TrimSpace(val.(string)), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("enter a number")
	}
	if v < 0 {
		return fmt.Errorf("value cannot be negative")
	}
	return nil
}

// PromptForAction asks what to do next from the main menu.
func PromptForAction() (string, error) {
	var choice string
	prompt := &survey.Select{
		Message: "What would you like to do?",
		Options: []string{actionAnalyze, actionJournal, actionStats, actionSettings, actionExit},
		Default: actionAnalyze,
	}
	err := survey.AskOne(prompt, &choice)
	return choice, err
}

// PromptForImage asks for the path of a chart screenshot.
func PromptForImage() (string, error) {
	var path string
	prompt := &survey.Input{
		Message: "Path to the chart screenshot:",
		Help:    "PNG, JPEG or WebP captured from your charting platform",
	}
	if err := survey.AskOne(prompt, &path, survey.WithValidator(validateImagePath)); err != nil {
		return "", err
	}
	return strings.TrimSpace(path), nil
}

// Intake is the optional context typed next to a chart.
type Intake struct {
	Pair      string
	Timeframe string
	Notes     string
}

// PromptForIntake collects the optional pair, timeframe and notes.
func PromptForIntake() (Intake, error) {
	var in Intake

	pairPrompt := &survey.Input{
		Message: "Currency pair (optional):",
		Help:    "Leave empty to let the engine read it off the chart",
	}
	if err := survey.AskOne(pairPrompt, &in.Pair, survey.WithValidator(validatePair)); err != nil {
		return in, err
	}
	in.Pair = strings.TrimSpace(strings.ToUpper(in.Pair))

	var tf string
	tfPrompt := &survey.Select{
		Message: "Timeframe:",
		Options: append([]string{anyTF}, consts.Timeframes...),
		Default: anyTF,
	}
	if err := survey.AskOne(tfPrompt, &tf); err != nil {
		return in, err
	}
	if tf != anyTF {
		in.Timeframe = tf
	}

	notesPrompt := &survey.Input{
		Message: "Notes (optional):",
		Help:    "Anything the engine should take into account, e.g. upcoming news",
	}
	if err := survey.AskOne(notesPrompt, &in.Notes); err != nil {
		return in, err
	}
	in.Notes = strings.TrimSpace(in.Notes)
	return in, nil
}

// errReviewLater is returned when the user postpones a review.
var errReviewLater = errors.New("review postponed")

// PromptForReview asks for the trade outcome and optional notes.
func PromptForReview() (models.Outcome, string, error) {
	var choice string
	prompt := &survey.Select{
		Message: "How did the trade play out?",
		Options: []string{"WIN", "LOSS", "B/E", "SKIP", reviewLater},
		Default: reviewLater,
	}
	if err := survey.AskOne(prompt, &choice); err != nil {
		return "", "", err
	}
	if choice == reviewLater {
		return "", "", errReviewLater
	}
	outcome, err := models.ParseOutcome(choice)
	if err != nil {
		return "", "", err
	}

	var notes string
	if err := survey.AskOne(&survey.Input{Message: "Review notes (optional):"}, &notes); err != nil {
		return "", "", err
	}
	return outcome, strings.TrimSpace(notes), nil
}

// PromptForLog picks one journal entry.
func PromptForLog(logs []models.TradeLog) (string, error) {
	options := make([]string, 0, len(logs))
	ids := make(map[string]string, len(logs))
	for _, l := range logs {
		status := "open"
		if l.Review != nil {
			status = string(l.Review.Outcome)
		}
		label := fmt.Sprintf("%s  %-10s %-6s %-5s %s", l.ID, l.DisplayPair(), l.Result.Timeframe, l.Result.TradeDirective, status)
		options = append(options, label)
		ids[label] = l.ID
	}

	var choice string
	prompt := &survey.Select{
		Message:  "Select a journal entry:",
		Options:  options,
		PageSize: 10,
	}
	if err := survey.AskOne(prompt, &choice); err != nil {
		return "", err
	}
	return ids[choice], nil
}

// PromptForSettings asks for a new balance and risk percentage.
func PromptForSettings(current models.Settings) (models.SettingsPatch, error) {
	var balance, risk string
	balancePrompt := &survey.Input{
		Message: "Account balance (USD):",
		Default: fmt.Sprintf("%g", current.AccountBalance),
	}
	if err := survey.AskOne(balancePrompt, &balance, survey.WithValidator(validateAmount)); err != nil {
		return models.SettingsPatch{}, err
	}
	riskPrompt := &survey.Input{
		Message: "Risk per trade (%):",
		Default: fmt.Sprintf("%g", current.RiskPerTrade),
	}
	if err := survey.AskOne(riskPrompt, &risk, survey.WithValidator(validateAmount)); err != nil {
		return models.SettingsPatch{}, err
	}

	b, _ := strconv.ParseFloat(strings.TrimSpace(balance), 64)
	r, _ := strconv.ParseFloat(strings.TrimSpace(risk), 64)
	return models.SettingsPatch{AccountBalance: &b, RiskPerTrade: &r}, nil
}

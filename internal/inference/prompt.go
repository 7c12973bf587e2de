package inference

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dyike/VancelleGo/consts"
	"github.com/dyike/VancelleGo/models"
)

const operatingRules = `You are VANCELLE TRADES, a high-precision Forex-only chart diagnostic engine.
STRICT PROTOCOL:
1. FOREX ONLY: If the asset is not a Forex pair (stocks, crypto, commodities), return status "INCOMPLETE". Gold quoted against USD (XAUUSD) is accepted.
2. DATA INTEGRITY: You MUST see the currency pair, the timeframe and clear candles. If any is missing, return status "INCOMPLETE" and list the missing items in "missingData".
3. WAIT BEHAVIOR: If the directive is "WAIT", you MUST NOT provide an "executionPlan". Provide an "observationProtocol" instead: the reason, the indicators to watch and the re-evaluation trigger.
4. ACCURACY: Accuracy is everything. Confluence < 80% = WAIT.
5. DRAWINGS: Return "drawingLayers" with coordinates on a 0-100 plane.
   - FIBONACCI: map the 0.618 and 0.5 levels.
   - LIQUIDITY_GAP: highlight imbalance zones.
6. STRATEGY: Always explain "whyThisStrategy" and "whyNotOpposite".

TECHNICAL CORE: Mark Andrew Lim's "Handbook of Technical Analysis".`

// HistoryWindow keeps the last n entries of a chronological history, in order.
func HistoryWindow(history []models.AnalysisResult, n int) []models.AnalysisResult {
	if n <= 0 || len(history) == 0 {
		return nil
	}
	if len(history) > n {
		history = history[len(history)-n:]
	}
	out := make([]models.AnalysisResult, len(history))
	copy(out, history)
	return out
}

// BuildInstruction assembles the system instruction for one request: the fixed
// operating rules, the trader's own context and the learning window.
func BuildInstruction(req models.AnalysisRequest) string {
	var b strings.Builder
	b.WriteString(operatingRules)

	if ctx := userContext(req); ctx != "" {
		b.WriteString("\n\nUSER CONTEXT (authoritative; prefer it over what you read from the chart):\n")
		b.WriteString(ctx)
	}

	if window := HistoryWindow(req.History, consts.HistoryWindow); len(window) > 0 {
		data, err := json.Marshal(window)
		if err == nil {
			b.WriteString("\n\nLEARNING CONTEXT (advisory only): ")
			b.Write(data)
		}
	}
	return b.String()
}

func userContext(req models.AnalysisRequest) string {
	var lines []string
	if pair := strings.TrimSpace(req.Pair); pair != "" {
		lines = append(lines, fmt.Sprintf("- Pair: %s", strings.ToUpper(pair)))
	}
	if tf := strings.TrimSpace(req.Timeframe); tf != "" {
		lines = append(lines, fmt.Sprintf("- Timeframe: %s", tf))
	}
	if notes := strings.TrimSpace(req.Notes); notes != "" {
		lines = append(lines, fmt.Sprintf("- Notes: %s", notes))
	}
	return strings.Join(lines, "\n")
}

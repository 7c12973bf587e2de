package inference

import "encoding/json"

type schemaNode map[string]any

func str(enum ...string) schemaNode {
	n := schemaNode{"type": "STRING"}
	if len(enum) > 0 {
		n["enum"] = enum
	}
	return n
}

func arrayOf(items schemaNode) schemaNode {
	return schemaNode{"type": "ARRAY", "items": items}
}

func object(props schemaNode, required ...string) schemaNode {
	n := schemaNode{"type": "OBJECT", "properties": props}
	if len(required) > 0 {
		n["required"] = required
	}
	return n
}

// RequiredFields are the response fields the service must always return.
var RequiredFields = []string{"status", "tradeDirective", "qualityScore", "whyThisStrategy", "whyNotOpposite", "technicalFactors"}

// ResponseSchema is the structured-output schema declared with every request,
// in the upper-case type notation of the Gemini API.
func ResponseSchema() map[string]any {
	return object(schemaNode{
		"status":         str("COMPLETE", "INCOMPLETE"),
		"missingData":    arrayOf(str()),
		"pair":           str(),
		"timeframe":      str(),
		"marketOverview": str(),
		"bias":           str(),
		"tradeDirective": str("BUY", "SELL", "WAIT"),
		"executionPlan": object(schemaNode{
			"entry":           str(),
			"stopLoss":        str(),
			"takeProfit":      arrayOf(str()),
			"riskRewardRatio": str(),
			"positionSizing":  str(),
		}),
		"observationProtocol": object(schemaNode{
			"reason":              str(),
			"indicators":          arrayOf(str()),
			"reevaluationTrigger": str(),
		}),
		"riskManagement": str(),
		"technicalFactors": object(schemaNode{
			"momentum":         str(),
			"volatility":       str(),
			"confluencePoints": arrayOf(str()),
		}),
		"drawingLayers": arrayOf(object(schemaNode{
			"type": str("TRENDLINE", "ZONE", "FIBONACCI", "MARKER", "LIQUIDITY_GAP"),
			"points": arrayOf(object(schemaNode{
				"x": schemaNode{"type": "NUMBER"},
				"y": schemaNode{"type": "NUMBER"},
			})),
			"label": str(),
			"color": str("bull", "bear", "neutral"),
		})),
		"qualityScore":        schemaNode{"type": "INTEGER"},
		"reasoningConfidence": str(),
		"whyThisStrategy":     str(),
		"whyNotOpposite":      str(),
		"scenarioAnalysis": object(schemaNode{
			"primary":      str(),
			"invalidation": str(),
			"alternative":  str(),
		}),
	}, RequiredFields...)
}

// SchemaText renders the schema for providers without native structured output.
func SchemaText() string {
	data, err := json.MarshalIndent(ResponseSchema(), "", "  ")
	if err != nil {
		return ""
	}
	return string(data)
}

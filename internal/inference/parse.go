package inference

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dyike/VancelleGo/models"
)

var errEmptyPayload = errors.New("empty response payload")

// stripFence removes a surrounding ```json fence some models wrap output in.
func stripFence(text string) string {
	s := strings.TrimSpace(text)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// DecodeResult parses a response payload, fills pair and timeframe from the
// request when the service left them out, and checks the verdict shape.
func DecodeResult(text string, req models.AnalysisRequest) (*models.AnalysisResult, error) {
	body := stripFence(text)
	if body == "" {
		return nil, &ParseError{Payload: text, Err: errEmptyPayload}
	}

	var result models.AnalysisResult
	if err := json.Unmarshal([]byte(body), &result); err != nil {
		return nil, &ParseError{Payload: text, Err: fmt.Errorf("decode json: %w", err)}
	}

	if strings.TrimSpace(result.Pair) == "" && strings.TrimSpace(req.Pair) != "" {
		result.Pair = strings.ToUpper(strings.TrimSpace(req.Pair))
	}
	if strings.TrimSpace(result.Timeframe) == "" && strings.TrimSpace(req.Timeframe) != "" {
		result.Timeframe = strings.TrimSpace(req.Timeframe)
	}

	result.Normalize()
	if err := result.Validate(); err != nil {
		return nil, &ParseError{Payload: text, Err: err}
	}
	return &result, nil
}

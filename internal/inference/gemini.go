package inference

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/dyike/VancelleGo/consts"
	"github.com/dyike/VancelleGo/models"
)

const DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	ResponseMimeType string         `json:"responseMimeType"`
	ResponseSchema   map[string]any `json:"responseSchema"`
	MaxOutputTokens  int            `json:"maxOutputTokens,omitempty"`
}

type geminiRequest struct {
	SystemInstruction geminiContent          `json:"systemInstruction"`
	Contents          []geminiContent        `json:"contents"`
	GenerationConfig  geminiGenerationConfig `json:"generationConfig"`
}

type geminiCandidate struct {
	Content      geminiContent `json:"content"`
	FinishReason string        `json:"finishReason"`
}

type geminiResponse struct {
	Candidates     []geminiCandidate `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback,omitempty"`
}

type geminiErrorBody struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// GeminiClient calls the generateContent REST endpoint with a declared
// response schema.
type GeminiClient struct {
	client    *resty.Client
	apiKey    string
	model     string
	maxTokens int
}

type GeminiOption func(*GeminiClient)

func WithGeminiBaseURL(url string) GeminiOption {
	return func(g *GeminiClient) {
		if url != "" {
			g.client.SetBaseURL(strings.TrimRight(url, "/"))
		}
	}
}

func WithGeminiMaxTokens(n int) GeminiOption {
	return func(g *GeminiClient) {
		g.maxTokens = n
	}
}

func NewGeminiClient(apiKey, model string, opts ...GeminiOption) *GeminiClient {
	client := resty.New()
	client.SetBaseURL(DefaultGeminiBaseURL)
	client.SetTimeout(120 * time.Second)

	g := &GeminiClient{
		client: client,
		apiKey: apiKey,
		model:  model,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *GeminiClient) buildRequest(req models.AnalysisRequest) (geminiRequest, error) {
	mimeType, payload, err := SplitDataURI(req.Image)
	if err != nil {
		return geminiRequest{}, err
	}
	return geminiRequest{
		SystemInstruction: geminiContent{Parts: []geminiPart{{Text: BuildInstruction(req)}}},
		Contents: []geminiContent{{
			Role: "user",
			Parts: []geminiPart{
				{InlineData: &geminiInlineData{MimeType: mimeType, Data: payload}},
				{Text: consts.DiagnosticCue},
			},
		}},
		GenerationConfig: geminiGenerationConfig{
			ResponseMimeType: "application/json",
			ResponseSchema:   ResponseSchema(),
			MaxOutputTokens:  g.maxTokens,
		},
	}, nil
}

func (g *GeminiClient) Analyze(ctx context.Context, req models.AnalysisRequest) (*models.AnalysisResult, error) {
	body, err := g.buildRequest(req)
	if err != nil {
		return nil, &RequestError{Provider: consts.ProviderGemini, Err: err}
	}

	start := time.Now()
	resp, err := g.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("x-goog-api-key", g.apiKey).
		SetBody(body).
		Post("/models/" + g.model + ":generateContent")
	if err != nil {
		return nil, &RequestError{Provider: consts.ProviderGemini, Err: err}
	}
	slog.Debug("gemini response", "status", resp.StatusCode(), "elapsed", time.Since(start))

	if resp.IsError() {
		var apiErr geminiErrorBody
		msg := strings.TrimSpace(resp.String())
		if json.Unmarshal(resp.Body(), &apiErr) == nil && apiErr.Error.Message != "" {
			msg = apiErr.Error.Message
		}
		return nil, &RequestError{Provider: consts.ProviderGemini, StatusCode: resp.StatusCode(), Message: msg}
	}

	var out geminiResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return nil, &RequestError{Provider: consts.ProviderGemini, StatusCode: resp.StatusCode(), Err: fmt.Errorf("decode envelope: %w", err)}
	}

	text := out.text()
	if stripFence(text) == "" {
		reason := errEmptyPayload
		if out.PromptFeedback != nil && out.PromptFeedback.BlockReason != "" {
			reason = errors.New("response blocked: " + out.PromptFeedback.BlockReason)
		}
		return nil, &RequestError{Provider: consts.ProviderGemini, StatusCode: resp.StatusCode(), Err: reason}
	}

	return DecodeResult(text, req)
}

func (r geminiResponse) text() string {
	if len(r.Candidates) == 0 {
		return ""
	}
	var b strings.Builder
	for _, p := range r.Candidates[0].Content.Parts {
		b.WriteString(p.Text)
	}
	return b.String()
}

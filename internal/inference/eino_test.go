package inference

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/dyike/VancelleGo/models"
)

type fakeChatModel struct {
	reply *schema.Message
	err   error
	calls int
	input []*schema.Message
}

func (f *fakeChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	f.calls++
	f.input = input
	return f.reply, f.err
}

func TestEinoAnalyzerBuildsMultimodalMessage(t *testing.T) {
	fake := &fakeChatModel{reply: schema.AssistantMessage("```json\n"+buyPayload+"\n```", nil)}
	analyzer := NewEinoAnalyzer("openai", fake)

	res, err := analyzer.Analyze(context.Background(), models.AnalysisRequest{Image: testImage, Pair: "usdjpy"})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if res.Pair != "USDJPY" {
		t.Fatalf("expected backfilled pair, got %q", res.Pair)
	}
	if fake.calls != 1 {
		t.Fatalf("expected exactly one call, got %d", fake.calls)
	}

	if len(fake.input) != 2 || fake.input[0].Role != schema.System {
		t.Fatalf("expected system + user messages, got %+v", fake.input)
	}
	if !strings.Contains(fake.input[0].Content, `"tradeDirective"`) {
		t.Fatal("system message should carry the response schema")
	}
	user := fake.input[1]
	if len(user.MultiContent) != 2 {
		t.Fatalf("expected image and text parts, got %d", len(user.MultiContent))
	}
	if user.MultiContent[0].ImageURL == nil || user.MultiContent[0].ImageURL.URL != testImage {
		t.Fatalf("image part missing: %+v", user.MultiContent[0])
	}
}

func TestEinoAnalyzerErrors(t *testing.T) {
	fake := &fakeChatModel{err: errors.New("connection reset")}
	_, err := NewEinoAnalyzer("openai", fake).Analyze(context.Background(), models.AnalysisRequest{Image: testImage})
	var rerr *RequestError
	if !errors.As(err, &rerr) || !strings.Contains(err.Error(), "connection reset") {
		t.Fatalf("expected RequestError, got %v", err)
	}

	fake = &fakeChatModel{reply: schema.AssistantMessage("", nil)}
	if _, err := NewEinoAnalyzer("openai", fake).Analyze(context.Background(), models.AnalysisRequest{Image: testImage}); !errors.As(err, &rerr) {
		t.Fatalf("expected RequestError for empty reply, got %v", err)
	}

	fake = &fakeChatModel{reply: schema.AssistantMessage("```json\n```", nil)}
	_, err = NewEinoAnalyzer("openai", fake).Analyze(context.Background(), models.AnalysisRequest{Image: testImage})
	if !errors.As(err, &rerr) || !errors.Is(err, errEmptyPayload) {
		t.Fatalf("expected RequestError for fence-only reply, got %v", err)
	}
}

func TestDebrief(t *testing.T) {
	logs := []models.TradeLog{
		{ID: "2", Result: models.AnalysisResult{Pair: "EURUSD", TradeDirective: models.DirectiveBuy, QualityScore: 85}, Review: &models.TradeReview{Outcome: models.OutcomeWin, Notes: "textbook"}},
		{ID: "1", Result: models.AnalysisResult{TradeDirective: models.DirectiveSell}},
	}

	input, err := DebriefInput(logs)
	if err != nil {
		t.Fatalf("DebriefInput: %v", err)
	}
	if !strings.Contains(input, "win rate: 100%") || !strings.Contains(input, "EURUSD") || strings.Contains(input, "DIAGNOSTIC") {
		t.Fatalf("unexpected debrief input:\n%s", input)
	}

	fake := &fakeChatModel{reply: schema.AssistantMessage("  - keep trading demand retests  ", nil)}
	summary, err := NewDebriefer("deepseek", fake).Debrief(context.Background(), logs)
	if err != nil {
		t.Fatalf("Debrief: %v", err)
	}
	if summary != "- keep trading demand retests" {
		t.Fatalf("unexpected summary %q", summary)
	}

	if _, err := DebriefInput(logs[1:]); !errors.Is(err, ErrNothingReviewed) {
		t.Fatalf("expected ErrNothingReviewed, got %v", err)
	}
}

package inference

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/deepseek"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/schema"

	"github.com/dyike/VancelleGo/consts"
	"github.com/dyike/VancelleGo/models"
)

const debriefPrompt = `You are the VANCELLE TRADES journal coach. You receive the trader's reviewed
outcomes and the verdicts they followed. Summarise in at most six short bullet
points which setups are working, which are failing and how the confluence
threshold should be calibrated. Plain text only.`

// Debriefer turns the reviewed journal into a short coaching summary.
type Debriefer struct {
	chatModel ChatModel
	provider  string
}

func NewDebriefer(provider string, chatModel ChatModel) *Debriefer {
	return &Debriefer{chatModel: chatModel, provider: provider}
}

func NewDeepSeekDebriefer(ctx context.Context, apiKey, modelName string) (*Debriefer, error) {
	chatModel, err := deepseek.NewChatModel(ctx, &deepseek.ChatModelConfig{
		APIKey:    apiKey,
		Model:     modelName,
		MaxTokens: 2000,
	})
	if err != nil {
		return nil, err
	}
	return NewDebriefer(consts.ProviderDeepSeek, chatModel), nil
}

func NewOpenAIDebriefer(ctx context.Context, apiKey, modelName, baseURL string) (*Debriefer, error) {
	maxTokens := 2000
	cfg := &openai.ChatModelConfig{
		APIKey:    apiKey,
		Model:     modelName,
		MaxTokens: &maxTokens,
	}
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	chatModel, err := openai.NewChatModel(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewDebriefer(consts.ProviderOpenAI, chatModel), nil
}

// ErrNothingReviewed is returned when no log carries a review yet.
var ErrNothingReviewed = errors.New("no reviewed trades to debrief")

// DebriefInput renders the reviewed part of the journal as model input.
func DebriefInput(logs []models.TradeLog) (string, error) {
	stats := models.ComputeStats(logs)
	if stats.Reviewed == 0 {
		return "", ErrNothingReviewed
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Reviewed: %d, wins: %d, losses: %d, breakeven: %d, skipped: %d, win rate: %d%%\n\n",
		stats.Reviewed, stats.Wins, stats.Losses, stats.Breakeven, stats.Skipped, stats.WinRate)
	for _, l := range logs {
		if l.Review == nil {
			continue
		}
		r := l.Result
		fmt.Fprintf(&b, "- %s %s %s quality=%d outcome=%s", l.DisplayPair(), r.Timeframe, r.TradeDirective, r.QualityScore, l.Review.Outcome)
		if len(r.TechnicalFactors.ConfluencePoints) > 0 {
			fmt.Fprintf(&b, " confluence=[%s]", strings.Join(r.TechnicalFactors.ConfluencePoints, "; "))
		}
		if notes := strings.TrimSpace(l.Review.Notes); notes != "" {
			fmt.Fprintf(&b, " notes=%q", notes)
		}
		b.WriteByte('\n')
	}
	return b.String(), nil
}

func (d *Debriefer) Debrief(ctx context.Context, logs []models.TradeLog) (string, error) {
	input, err := DebriefInput(logs)
	if err != nil {
		return "", err
	}
	out, err := d.chatModel.Generate(ctx, []*schema.Message{
		schema.SystemMessage(debriefPrompt),
		schema.UserMessage(input),
	})
	if err != nil {
		return "", &RequestError{Provider: d.provider, Err: err}
	}
	if out == nil || strings.TrimSpace(out.Content) == "" {
		return "", &RequestError{Provider: d.provider, Err: errors.New("empty response payload")}
	}
	return strings.TrimSpace(out.Content), nil
}

package inference

import (
	"context"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/dyike/VancelleGo/consts"
	"github.com/dyike/VancelleGo/models"
)

// ChatModel is the slice of the eino chat model used here.
type ChatModel interface {
	Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error)
}

// EinoAnalyzer sends the chart to any eino chat model that accepts image
// parts. The schema travels in the system message.
type EinoAnalyzer struct {
	chatModel ChatModel
	provider  string
}

func NewEinoAnalyzer(provider string, chatModel ChatModel) *EinoAnalyzer {
	return &EinoAnalyzer{chatModel: chatModel, provider: provider}
}

// NewOpenAIAnalyzer builds an analyzer over an OpenAI-compatible vision
// endpoint. An empty baseURL uses the provider default.
func NewOpenAIAnalyzer(ctx context.Context, apiKey, modelName, baseURL string, maxTokens int) (*EinoAnalyzer, error) {
	cfg := &openai.ChatModelConfig{
		APIKey: apiKey,
		Model:  modelName,
	}
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if maxTokens > 0 {
		cfg.MaxTokens = &maxTokens
	}
	chatModel, err := openai.NewChatModel(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewEinoAnalyzer(consts.ProviderOpenAI, chatModel), nil
}

func (e *EinoAnalyzer) messages(req models.AnalysisRequest) ([]*schema.Message, error) {
	if _, _, err := SplitDataURI(req.Image); err != nil {
		return nil, err
	}
	system := BuildInstruction(req) +
		"\n\nRespond with a single JSON object and nothing else. It must match this schema:\n" +
		SchemaText()

	return []*schema.Message{
		schema.SystemMessage(system),
		{
			Role: schema.User,
			MultiContent: []schema.ChatMessagePart{
				{
					Type: schema.ChatMessagePartTypeImageURL,
					ImageURL: &schema.ChatMessageImageURL{
						URL:    req.Image,
						Detail: schema.ImageURLDetailHigh,
					},
				},
				{
					Type: schema.ChatMessagePartTypeText,
					Text: consts.DiagnosticCue,
				},
			},
		},
	}, nil
}

func (e *EinoAnalyzer) Analyze(ctx context.Context, req models.AnalysisRequest) (*models.AnalysisResult, error) {
	msgs, err := e.messages(req)
	if err != nil {
		return nil, &RequestError{Provider: e.provider, Err: err}
	}

	out, err := e.chatModel.Generate(ctx, msgs)
	if err != nil {
		return nil, &RequestError{Provider: e.provider, Err: err}
	}
	if out == nil || stripFence(out.Content) == "" {
		return nil, &RequestError{Provider: e.provider, Err: errEmptyPayload}
	}
	return DecodeResult(out.Content, req)
}

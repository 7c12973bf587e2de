package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dyike/VancelleGo/config"
	"github.com/dyike/VancelleGo/consts"
	"github.com/dyike/VancelleGo/internal/inference"
	"github.com/dyike/VancelleGo/internal/journal"
	"github.com/dyike/VancelleGo/internal/session"
	"github.com/dyike/VancelleGo/internal/storage"
	"github.com/dyike/VancelleGo/models"
)

type AnalyzerBuilder func(context.Context, *config.Config) (inference.Analyzer, error)

type DebrieferBuilder func(context.Context, *config.Config) (*inference.Debriefer, error)

type BackendBuilder func(context.Context, *config.Config) (storage.Backend, error)

type Option func(*App)

func WithAnalyzerBuilder(builder AnalyzerBuilder) Option {
	return func(a *App) {
		if builder != nil {
			a.analyzerBuilder = builder
		}
	}
}

func WithDebrieferBuilder(builder DebrieferBuilder) Option {
	return func(a *App) {
		if builder != nil {
			a.debrieferBuilder = builder
		}
	}
}

func WithBackendBuilder(builder BackendBuilder) Option {
	return func(a *App) {
		if builder != nil {
			a.backendBuilder = builder
		}
	}
}

// RequireInference makes New fail when no analyzer can be built, instead of
// deferring the error to the first analysis.
func RequireInference() Option {
	return func(a *App) {
		a.requireInference = true
	}
}

// App wires config, storage, journal, inference and session together.
type App struct {
	Config  *config.Config
	Backend storage.Backend
	Journal *journal.Repository
	Session *session.Session

	analyzerBuilder  AnalyzerBuilder
	debrieferBuilder DebrieferBuilder
	backendBuilder   BackendBuilder
	requireInference bool
}

func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	a := &App{
		Config:           cfg,
		analyzerBuilder:  BuildAnalyzer,
		debrieferBuilder: BuildDebriefer,
		backendBuilder:   storage.Open,
	}
	for _, opt := range opts {
		opt(a)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	analyzer, err := a.analyzerBuilder(ctx, cfg)
	if err != nil {
		if a.requireInference {
			return nil, err
		}
		slog.Debug("inference unavailable", "error", err)
		analyzer = unavailable{err: err}
	}

	backend, err := a.backendBuilder(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.StoreBackend, err)
	}
	a.Backend = backend

	a.Journal = journal.New(backend)
	a.Journal.Load(ctx)
	a.Session = session.New(a.Journal, analyzer)
	return a, nil
}

// Debriefer builds the journal coach on demand.
func (a *App) Debriefer(ctx context.Context) (*inference.Debriefer, error) {
	return a.debrieferBuilder(ctx, a.Config)
}

func (a *App) Close() error {
	if a == nil || a.Backend == nil {
		return nil
	}
	return a.Backend.Close()
}

// BuildAnalyzer picks the transport for the configured provider. A missing
// credential is a *config.ConfigurationError.
func BuildAnalyzer(ctx context.Context, cfg *config.Config) (inference.Analyzer, error) {
	if err := cfg.ValidateInference(); err != nil {
		return nil, err
	}
	switch cfg.LLMProvider {
	case consts.ProviderOpenAI:
		return inference.NewOpenAIAnalyzer(ctx, cfg.OpenAIAPIKey, cfg.Model, cfg.BackendURL, cfg.MaxTokens)
	default:
		return inference.NewGeminiClient(cfg.GeminiAPIKey, cfg.Model,
			inference.WithGeminiBaseURL(cfg.BackendURL),
			inference.WithGeminiMaxTokens(cfg.MaxTokens),
		), nil
	}
}

func BuildDebriefer(ctx context.Context, cfg *config.Config) (*inference.Debriefer, error) {
	if err := cfg.ValidateDebrief(); err != nil {
		return nil, err
	}
	switch cfg.DebriefProvider {
	case consts.ProviderOpenAI:
		return inference.NewOpenAIDebriefer(ctx, cfg.OpenAIAPIKey, cfg.DebriefModel, cfg.BackendURL)
	default:
		return inference.NewDeepSeekDebriefer(ctx, cfg.DeepSeekAPIKey, cfg.DebriefModel)
	}
}

// unavailable stands in for the analyzer when inference is not configured,
// so journal and settings commands keep working.
type unavailable struct {
	err error
}

func (u unavailable) Analyze(context.Context, models.AnalysisRequest) (*models.AnalysisResult, error) {
	return nil, u.err
}

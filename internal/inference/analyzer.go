package inference

import (
	"context"

	"github.com/dyike/VancelleGo/models"
)

// Analyzer submits one chart for diagnosis. Implementations send exactly one
// request per call and never retry.
type Analyzer interface {
	Analyze(ctx context.Context, req models.AnalysisRequest) (*models.AnalysisResult, error)
}

// AnalyzerFunc adapts a plain function to Analyzer.
type AnalyzerFunc func(ctx context.Context, req models.AnalysisRequest) (*models.AnalysisResult, error)

func (f AnalyzerFunc) Analyze(ctx context.Context, req models.AnalysisRequest) (*models.AnalysisResult, error) {
	return f(ctx, req)
}

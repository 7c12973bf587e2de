package models

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

type AnalysisStatus string

const (
	StatusComplete   AnalysisStatus = "COMPLETE"
	StatusIncomplete AnalysisStatus = "INCOMPLETE"
)

func (s AnalysisStatus) IsValid() bool {
	return s == StatusComplete || s == StatusIncomplete
}

type Directive string

const (
	DirectiveBuy  Directive = "BUY"
	DirectiveSell Directive = "SELL"
	DirectiveWait Directive = "WAIT"
)

func (d Directive) IsValid() bool {
	switch d {
	case DirectiveBuy, DirectiveSell, DirectiveWait:
		return true
	}
	return false
}

// IsActionable reports whether the directive carries an execution plan.
func (d Directive) IsActionable() bool {
	return d == DirectiveBuy || d == DirectiveSell
}

type LayerType string

const (
	LayerTrendline    LayerType = "TRENDLINE"
	LayerZone         LayerType = "ZONE"
	LayerFibonacci    LayerType = "FIBONACCI"
	LayerMarker       LayerType = "MARKER"
	LayerLiquidityGap LayerType = "LIQUIDITY_GAP"
)

var LayerTypes = []LayerType{LayerTrendline, LayerZone, LayerFibonacci, LayerMarker, LayerLiquidityGap}

type LayerColor string

const (
	ColorBull    LayerColor = "bull"
	ColorBear    LayerColor = "bear"
	ColorNeutral LayerColor = "neutral"
)

// Point is a coordinate on the normalized 0-100 chart plane.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type DrawingLayer struct {
	Type   LayerType  `json:"type"`
	Points []Point    `json:"points"`
	Label  string     `json:"label"`
	Color  LayerColor `json:"color"`
}

type ExecutionPlan struct {
	Entry           string   `json:"entry"`
	StopLoss        string   `json:"stopLoss"`
	TakeProfit      []string `json:"takeProfit"`
	RiskRewardRatio string   `json:"riskRewardRatio"`
	PositionSizing  string   `json:"positionSizing"`
}

// PrimaryTarget returns the first take-profit level, if any.
func (p *ExecutionPlan) PrimaryTarget() string {
	if p == nil || len(p.TakeProfit) == 0 {
		return ""
	}
	return p.TakeProfit[0]
}

type ObservationProtocol struct {
	Reason              string   `json:"reason"`
	Indicators          []string `json:"indicators"`
	ReevaluationTrigger string   `json:"reevaluationTrigger"`
}

type TechnicalFactors struct {
	Momentum         string   `json:"momentum"`
	Volatility       string   `json:"volatility"`
	ConfluencePoints []string `json:"confluencePoints"`
}

type ScenarioAnalysis struct {
	Primary      string `json:"primary"`
	Invalidation string `json:"invalidation"`
	Alternative  string `json:"alternative"`
}

// AnalysisResult is the verdict returned by the inference service. It is
// persisted verbatim inside a TradeLog.
type AnalysisResult struct {
	Status              AnalysisStatus       `json:"status"`
	MissingData         []string             `json:"missingData,omitempty"`
	Pair                string               `json:"pair"`
	Timeframe           string               `json:"timeframe"`
	MarketOverview      string               `json:"marketOverview"`
	Bias                string               `json:"bias"`
	TradeDirective      Directive            `json:"tradeDirective"`
	ExecutionPlan       *ExecutionPlan       `json:"executionPlan,omitempty"`
	ObservationProtocol *ObservationProtocol `json:"observationProtocol,omitempty"`
	WaitReason          string               `json:"waitReason,omitempty"`
	WaitDuration        string               `json:"waitDuration,omitempty"`
	RiskManagement      string               `json:"riskManagement,omitempty"`
	DrawingLayers       []DrawingLayer       `json:"drawingLayers"`
	QualityScore        int                  `json:"qualityScore"`
	ReasoningConfidence string               `json:"reasoningConfidence"`
	WhyThisStrategy     string               `json:"whyThisStrategy"`
	WhyNotOpposite      string               `json:"whyNotOpposite"`
	TechnicalFactors    TechnicalFactors     `json:"technicalFactors"`
	ScenarioAnalysis    ScenarioAnalysis     `json:"scenarioAnalysis"`
}

const (
	DefaultWaitReason  = "Market structure currently ambiguous. Awaiting clearer structural print."
	DefaultWaitTrigger = "Indefinite"
)

var (
	ErrInvalidStatus      = errors.New("invalid analysis status")
	ErrInvalidDirective   = errors.New("invalid trade directive")
	ErrMissingPlan        = errors.New("execution plan required for BUY/SELL")
	ErrMissingObservation = errors.New("observation protocol required for WAIT")
	ErrConflictingPlan    = errors.New("execution plan and observation protocol are mutually exclusive")
)

// IsComplete reports whether the service produced a full verdict.
func (r *AnalysisResult) IsComplete() bool {
	return r != nil && r.Status == StatusComplete
}

// Clone returns a deep copy; no slice or pointer is shared with r.
func (r *AnalysisResult) Clone() AnalysisResult {
	c := *r
	c.MissingData = slices.Clone(r.MissingData)
	if r.ExecutionPlan != nil {
		plan := *r.ExecutionPlan
		plan.TakeProfit = slices.Clone(plan.TakeProfit)
		c.ExecutionPlan = &plan
	}
	if r.ObservationProtocol != nil {
		op := *r.ObservationProtocol
		op.Indicators = slices.Clone(op.Indicators)
		c.ObservationProtocol = &op
	}
	c.TechnicalFactors.ConfluencePoints = slices.Clone(r.TechnicalFactors.ConfluencePoints)
	if r.DrawingLayers != nil {
		c.DrawingLayers = make([]DrawingLayer, len(r.DrawingLayers))
		for i, l := range r.DrawingLayers {
			l.Points = slices.Clone(l.Points)
			c.DrawingLayers[i] = l
		}
	}
	return c
}

// Normalize folds legacy wait fields into the observation protocol and drops
// whichever of plan/protocol the directive rules out.
func (r *AnalysisResult) Normalize() {
	if r == nil {
		return
	}
	r.Pair = strings.TrimSpace(r.Pair)
	r.Timeframe = strings.TrimSpace(r.Timeframe)

	switch {
	case r.TradeDirective == DirectiveWait:
		r.ExecutionPlan = nil
		if r.ObservationProtocol == nil {
			r.ObservationProtocol = &ObservationProtocol{}
		}
		if r.ObservationProtocol.Reason == "" {
			r.ObservationProtocol.Reason = r.WaitReason
		}
		if r.ObservationProtocol.ReevaluationTrigger == "" {
			r.ObservationProtocol.ReevaluationTrigger = r.WaitDuration
		}
		if r.ObservationProtocol.Reason == "" {
			r.ObservationProtocol.Reason = DefaultWaitReason
		}
		if r.ObservationProtocol.ReevaluationTrigger == "" {
			r.ObservationProtocol.ReevaluationTrigger = DefaultWaitTrigger
		}
		r.WaitReason = ""
		r.WaitDuration = ""
	case r.TradeDirective.IsActionable():
		r.ObservationProtocol = nil
		r.WaitReason = ""
		r.WaitDuration = ""
	}
}

// Validate checks the shape the rest of the client depends on.
func (r *AnalysisResult) Validate() error {
	if r == nil {
		return fmt.Errorf("%w: empty result", ErrInvalidStatus)
	}
	if !r.Status.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, r.Status)
	}
	if r.Status == StatusIncomplete {
		return nil
	}
	if !r.TradeDirective.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidDirective, r.TradeDirective)
	}
	if r.ExecutionPlan != nil && r.ObservationProtocol != nil {
		return ErrConflictingPlan
	}
	if r.TradeDirective.IsActionable() && r.ExecutionPlan == nil {
		return ErrMissingPlan
	}
	if r.TradeDirective == DirectiveWait && r.ObservationProtocol == nil {
		return ErrMissingObservation
	}
	return nil
}

// AnalysisRequest is what the client sends for one chart. History holds prior
// verdicts oldest first and is advisory only.
type AnalysisRequest struct {
	Image     string
	Pair      string
	Timeframe string
	Notes     string
	History   []AnalysisResult
}

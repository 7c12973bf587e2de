package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/dyike/VancelleGo/internal/inference"
	"github.com/dyike/VancelleGo/internal/journal"
	"github.com/dyike/VancelleGo/models"
)

type View string

const (
	ViewAnalyze  View = "ANALYZE"
	ViewDecision View = "DECISION"
	ViewLearn    View = "LEARN"
	ViewJournal  View = "JOURNAL"
	ViewSettings View = "SETTINGS"
)

var Views = []View{ViewAnalyze, ViewDecision, ViewLearn, ViewJournal, ViewSettings}

func ParseView(s string) (View, error) {
	v := View(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range Views {
		if v == known {
			return v, nil
		}
	}
	return "", fmt.Errorf("unknown view %q", s)
}

var (
	ErrBusy           = errors.New("an analysis is already in progress")
	ErrNoImage        = errors.New("no chart image uploaded")
	ErrNotImage       = errors.New("uploaded file is not an image")
	ErrNoActiveLog    = errors.New("no journal entry is active for review")
	ErrAnalysisFailed = errors.New("analysis failed: the engine returned an unreadable verdict")
)

// State is a point-in-time copy of everything the presentation layer renders.
type State struct {
	View        View                   `json:"view"`
	Image       string                 `json:"image,omitempty"`
	Result      *models.AnalysisResult `json:"result,omitempty"`
	Loading     bool                   `json:"loading"`
	Error       string                 `json:"error,omitempty"`
	ActiveLogID string                 `json:"activeLogId,omitempty"`
	Settings    models.Settings        `json:"settings"`
	Logs        []models.TradeLog      `json:"logs"`
	Stats       models.JournalStats    `json:"stats"`
}

// Session is the single-user state machine between the presentation layer,
// the inference client and the journal. At most one analysis runs at a time;
// busy is written only under mu so state checks and the flag never race.
type Session struct {
	mu       sync.RWMutex
	busy     atomic.Bool
	repo     *journal.Repository
	analyzer inference.Analyzer

	view        View
	image       string
	result      *models.AnalysisResult
	errMsg      string
	activeLogID string
}

func New(repo *journal.Repository, analyzer inference.Analyzer) *Session {
	return &Session{
		repo:     repo,
		analyzer: analyzer,
		view:     ViewAnalyze,
	}
}

// Busy reports whether an analysis is in flight.
func (s *Session) Busy() bool {
	return s.busy.Load()
}

// UploadImage sniffs the bytes, rejects non-images and makes the chart the
// current one. Any previous verdict is cleared.
func (s *Session) UploadImage(data []byte) error {
	if len(data) == 0 {
		return ErrNotImage
	}
	mtype := mimetype.Detect(data)
	if !strings.HasPrefix(mtype.String(), "image/") {
		return fmt.Errorf("%w: detected %s", ErrNotImage, mtype.String())
	}
	uri := inference.EncodeDataURI(mtype.String(), data)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy.Load() {
		return ErrBusy
	}
	s.image = uri
	s.result = nil
	s.errMsg = ""
	s.activeLogID = ""
	s.view = ViewAnalyze
	slog.Info("chart uploaded", "mime", mtype.String(), "bytes", len(data))
	return nil
}

// begin claims the busy flag and returns the chart to analyze. The flag is
// only set or cleared while holding mu, so the chart cannot change until the
// verdict is stored.
func (s *Session) begin() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.image == "" {
		s.errMsg = ErrNoImage.Error()
		return "", ErrNoImage
	}
	if !s.busy.CompareAndSwap(false, true) {
		return "", ErrBusy
	}
	s.errMsg = ""
	return s.image, nil
}

// RequestAnalysis sends the current chart for diagnosis. Complete verdicts
// are prepended to the journal; incomplete ones are shown but not logged.
func (s *Session) RequestAnalysis(ctx context.Context, pair, timeframe, notes string) (*models.AnalysisResult, error) {
	image, err := s.begin()
	if err != nil {
		return nil, err
	}

	requestID := uuid.NewString()
	logger := slog.With("request_id", requestID)
	req := models.AnalysisRequest{
		Image:     image,
		Pair:      pair,
		Timeframe: timeframe,
		Notes:     notes,
		History:   s.repo.History(),
	}
	logger.Info("analysis requested", "pair", pair, "timeframe", timeframe, "history", len(req.History))

	start := time.Now()
	result, err := s.analyzer.Analyze(ctx, req)

	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.busy.Store(false)

	if err != nil {
		logger.Error("analysis failed", "elapsed", time.Since(start), "error", err)
		s.errMsg = displayError(err)
		return nil, err
	}
	logger.Info("analysis received", "status", result.Status, "directive", result.TradeDirective, "quality", result.QualityScore, "elapsed", time.Since(start))

	s.result = result
	s.activeLogID = ""
	s.view = ViewDecision

	if !result.IsComplete() {
		s.errMsg = incompleteMessage(result)
		return result, nil
	}

	entry, err := s.repo.RecordAnalysis(ctx, image, *result)
	s.activeLogID = entry.ID
	if err != nil {
		logger.Warn("journal entry kept in memory only", "log_id", entry.ID, "error", err)
		s.errMsg = "journal not saved: " + err.Error()
	}
	return result, nil
}

// SubmitReview attaches an outcome to the active journal entry and returns
// the session to a fresh ANALYZE state.
func (s *Session) SubmitReview(ctx context.Context, outcome models.Outcome, notes string) (models.TradeLog, error) {
	s.mu.RLock()
	logID, busy := s.activeLogID, s.busy.Load()
	s.mu.RUnlock()
	if busy {
		return models.TradeLog{}, ErrBusy
	}
	if logID == "" {
		return models.TradeLog{}, ErrNoActiveLog
	}

	entry, err := s.repo.AttachReview(ctx, logID, models.TradeReview{Outcome: outcome, Notes: notes})
	switch {
	case err == nil:
	case entry.ID == "", errors.Is(err, journal.ErrAlreadyReviewed):
		return entry, err
	default:
		slog.Warn("review kept in memory only", "log_id", logID, "error", err)
	}
	if rerr := s.Reset(); rerr != nil {
		slog.Warn("session not reset after review", "log_id", logID, "error", rerr)
	}
	return entry, err
}

// UpdateSettings changes the balance and risk percentage in one step.
func (s *Session) UpdateSettings(ctx context.Context, balance, riskPct float64) (models.Settings, error) {
	return s.repo.UpdateSettings(ctx, models.SettingsPatch{AccountBalance: &balance, RiskPerTrade: &riskPct})
}

// PatchSettings applies a partial settings update.
func (s *Session) PatchSettings(ctx context.Context, patch models.SettingsPatch) (models.Settings, error) {
	return s.repo.UpdateSettings(ctx, patch)
}

// OpenLog makes a journal entry the current chart and verdict.
func (s *Session) OpenLog(id string) (models.TradeLog, error) {
	entry, ok := s.repo.Find(id)
	if !ok {
		return models.TradeLog{}, fmt.Errorf("%w: %s", journal.ErrLogNotFound, id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy.Load() {
		return models.TradeLog{}, ErrBusy
	}
	result := entry.Result.Clone()
	s.image = entry.Image
	s.result = &result
	s.activeLogID = entry.ID
	s.errMsg = ""
	s.view = ViewDecision
	return entry, nil
}

func (s *Session) SetView(v View) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.view = v
}

// Reset drops the current chart and verdict.
func (s *Session) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy.Load() {
		return ErrBusy
	}
	s.image = ""
	s.result = nil
	s.errMsg = ""
	s.activeLogID = ""
	s.view = ViewAnalyze
	return nil
}

func (s *Session) Snapshot() State {
	s.mu.RLock()
	st := State{
		View:        s.view,
		Image:       s.image,
		Loading:     s.busy.Load(),
		Error:       s.errMsg,
		ActiveLogID: s.activeLogID,
	}
	if s.result != nil {
		r := s.result.Clone()
		st.Result = &r
	}
	s.mu.RUnlock()

	st.Settings = s.repo.Settings()
	st.Logs = s.repo.Logs()
	st.Stats = s.repo.Stats()
	return st
}

func displayError(err error) string {
	var perr *inference.ParseError
	if errors.As(err, &perr) {
		return ErrAnalysisFailed.Error()
	}
	return err.Error()
}

func incompleteMessage(r *models.AnalysisResult) string {
	if len(r.MissingData) == 0 {
		return "Incomplete chart data"
	}
	return "Incomplete chart data: missing " + strings.Join(r.MissingData, ", ")
}

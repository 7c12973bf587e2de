package journal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/dyike/VancelleGo/consts"
	"github.com/dyike/VancelleGo/internal/storage"
	"github.com/dyike/VancelleGo/models"
)

var (
	ErrLogNotFound      = errors.New("journal: log not found")
	ErrAlreadyReviewed  = errors.New("journal: log already reviewed")
	ErrInvalidOutcome   = errors.New("journal: invalid outcome")
	ErrInvalidSettings  = errors.New("journal: invalid settings")
	ErrIncompleteResult = errors.New("journal: only complete analyses are logged")
)

// Repository owns the two persisted documents: the trade log list (newest
// first) and the user settings. Every mutation rewrites the whole document of
// the key it touches and nothing else.
type Repository struct {
	mu       sync.RWMutex
	backend  storage.Backend
	logs     []models.TradeLog
	settings models.Settings
	now      func() time.Time
}

type Option func(*Repository)

// WithClock replaces the time source used for log ids and timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Repository) {
		if now != nil {
			r.now = now
		}
	}
}

func New(backend storage.Backend, opts ...Option) *Repository {
	r := &Repository{
		backend:  backend,
		logs:     []models.TradeLog{},
		settings: models.DefaultSettings(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Load reads both documents. Missing or unreadable values fall back to an
// empty journal and default settings.
func (r *Repository) Load(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.logs = []models.TradeLog{}
	if data, ok := r.read(ctx, consts.LogsKey); ok {
		var logs []models.TradeLog
		if err := json.Unmarshal(data, &logs); err != nil {
			slog.Warn("journal: discarding corrupt logs document", "key", consts.LogsKey, "error", err)
		} else if logs != nil {
			r.logs = logs
		}
	}

	r.settings = models.DefaultSettings()
	if data, ok := r.read(ctx, consts.SettingsKey); ok {
		// Fields absent from the document, or a null document, keep their defaults.
		settings := models.DefaultSettings()
		if err := json.Unmarshal(data, &settings); err != nil {
			slog.Warn("journal: discarding corrupt settings document", "key", consts.SettingsKey, "error", err)
		} else if err := checkSettings(settings); err != nil {
			slog.Warn("journal: discarding invalid settings document", "key", consts.SettingsKey, "error", err)
		} else {
			r.settings = settings
		}
	}

	slog.Info("journal loaded", "logs", len(r.logs), "balance", r.settings.AccountBalance, "risk", r.settings.RiskPerTrade)
}

func (r *Repository) read(ctx context.Context, key string) ([]byte, bool) {
	data, err := r.backend.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			slog.Warn("journal: read failed, using defaults", "key", key, "error", err)
		}
		return nil, false
	}
	return data, true
}

// Logs returns a copy of the journal, newest first.
func (r *Repository) Logs() []models.TradeLog {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.TradeLog, len(r.logs))
	for i, l := range r.logs {
		out[i] = cloneLog(l)
	}
	return out
}

func (r *Repository) Settings() models.Settings {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.settings
}

func (r *Repository) Find(id string) (models.TradeLog, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, l := range r.logs {
		if l.ID == id {
			return cloneLog(l), true
		}
	}
	return models.TradeLog{}, false
}

func (r *Repository) Stats() models.JournalStats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return models.ComputeStats(r.logs)
}

// History returns every logged result oldest first.
func (r *Repository) History() []models.AnalysisResult {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.AnalysisResult, 0, len(r.logs))
	for i := len(r.logs) - 1; i >= 0; i-- {
		out = append(out, r.logs[i].Result.Clone())
	}
	return out
}

// RecordAnalysis creates a log entry for a complete verdict and prepends it.
func (r *Repository) RecordAnalysis(ctx context.Context, image string, result models.AnalysisResult) (models.TradeLog, error) {
	if !result.IsComplete() {
		return models.TradeLog{}, ErrIncompleteResult
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	ts := r.now().UnixMilli()
	id := ts
	for r.hasID(models.LogIDFromMillis(id)) {
		id++
	}
	entry := models.TradeLog{
		ID:        models.LogIDFromMillis(id),
		Timestamp: ts,
		Image:     image,
		Result:    result.Clone(),
	}
	err := r.prependLocked(ctx, entry)
	return cloneLog(entry), err
}

// AppendLog prepends an already built entry.
func (r *Repository) AppendLog(ctx context.Context, entry models.TradeLog) error {
	if entry.ID == "" {
		return fmt.Errorf("journal: log id is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.hasID(entry.ID) {
		return fmt.Errorf("journal: duplicate log id %s", entry.ID)
	}
	return r.prependLocked(ctx, cloneLog(entry))
}

func (r *Repository) prependLocked(ctx context.Context, entry models.TradeLog) error {
	r.logs = append([]models.TradeLog{entry}, r.logs...)
	return r.persistLogsLocked(ctx)
}

// AttachReview records the outcome of the trade behind one log entry. A log
// can be reviewed once.
func (r *Repository) AttachReview(ctx context.Context, logID string, review models.TradeReview) (models.TradeLog, error) {
	if !review.Outcome.IsValid() {
		return models.TradeLog{}, fmt.Errorf("%w: %q", ErrInvalidOutcome, review.Outcome)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.logs {
		if r.logs[i].ID != logID {
			continue
		}
		if r.logs[i].Review != nil {
			return cloneLog(r.logs[i]), ErrAlreadyReviewed
		}
		rv := review
		r.logs[i].Review = &rv
		updated := cloneLog(r.logs[i])
		return updated, r.persistLogsLocked(ctx)
	}
	return models.TradeLog{}, fmt.Errorf("%w: %s", ErrLogNotFound, logID)
}

// UpdateSettings merges the non-nil fields of patch and persists the result.
// A rejected or unencodable patch leaves the settings untouched.
func (r *Repository) UpdateSettings(ctx context.Context, patch models.SettingsPatch) (models.Settings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := r.settings.Apply(patch)
	if err := checkSettings(next); err != nil {
		return r.settings, err
	}
	data, err := json.Marshal(next)
	if err != nil {
		return r.settings, fmt.Errorf("encode settings: %w", err)
	}

	r.settings = next
	if err := r.backend.Set(ctx, consts.SettingsKey, data); err != nil {
		slog.Error("journal: persist settings failed", "error", err)
		return r.settings, fmt.Errorf("persist settings: %w", err)
	}
	return r.settings, nil
}

func checkSettings(s models.Settings) error {
	if !isFinite(s.AccountBalance) || !isFinite(s.RiskPerTrade) {
		return fmt.Errorf("%w: values must be finite numbers", ErrInvalidSettings)
	}
	if s.AccountBalance < 0 {
		return fmt.Errorf("%w: account balance must not be negative", ErrInvalidSettings)
	}
	if s.RiskPerTrade < 0 {
		return fmt.Errorf("%w: risk per trade must not be negative", ErrInvalidSettings)
	}
	return nil
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func (r *Repository) persistLogsLocked(ctx context.Context) error {
	data, err := json.Marshal(r.logs)
	if err != nil {
		return fmt.Errorf("encode logs: %w", err)
	}
	if err := r.backend.Set(ctx, consts.LogsKey, data); err != nil {
		slog.Error("journal: persist logs failed", "count", len(r.logs), "error", err)
		return fmt.Errorf("persist logs: %w", err)
	}
	return nil
}

func (r *Repository) hasID(id string) bool {
	for _, l := range r.logs {
		if l.ID == id {
			return true
		}
	}
	return false
}

func cloneLog(l models.TradeLog) models.TradeLog {
	l.Result = l.Result.Clone()
	if l.Review != nil {
		rv := *l.Review
		l.Review = &rv
	}
	return l
}

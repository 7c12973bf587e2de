package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/dyike/VancelleGo/internal/inference"
	"github.com/dyike/VancelleGo/internal/journal"
	"github.com/dyike/VancelleGo/internal/storage"
	"github.com/dyike/VancelleGo/models"
)

// pngHeader is enough for content sniffing to report image/png.
var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

const buyPayload = `{"status":"COMPLETE","tradeDirective":"BUY","qualityScore":82,
	"executionPlan":{"entry":"1.2650","stopLoss":"1.2600","takeProfit":["1.2750"],"riskRewardRatio":"2:1"},
	"whyThisStrategy":"demand retest","whyNotOpposite":"no lower low"}`

func newSession(t *testing.T, analyzer inference.Analyzer) (*Session, *journal.Repository) {
	t.Helper()
	repo := journal.New(storage.NewMemoryBackend())
	repo.Load(context.Background())
	return New(repo, analyzer), repo
}

func stubAnalyzer(result *models.AnalysisResult, err error) inference.Analyzer {
	return inference.AnalyzerFunc(func(ctx context.Context, req models.AnalysisRequest) (*models.AnalysisResult, error) {
		return result, err
	})
}

func TestAnalyzeCompleteLogsAndShowsDecision(t *testing.T) {
	var seen models.AnalysisRequest
	analyzer := inference.AnalyzerFunc(func(ctx context.Context, req models.AnalysisRequest) (*models.AnalysisResult, error) {
		seen = req
		return inference.DecodeResult(`{"status":"COMPLETE","tradeDirective":"BUY","qualityScore":82,
			"executionPlan":{"entry":"1.2650","stopLoss":"1.2600","takeProfit":["1.2750"],"riskRewardRatio":"2:1"},
			"whyThisStrategy":"demand retest","whyNotOpposite":"no lower low","technicalFactors":{"momentum":"up"}}`, req)
	})
	s, repo := newSession(t, analyzer)

	if err := s.UploadImage(pngHeader); err != nil {
		t.Fatalf("UploadImage: %v", err)
	}
	res, err := s.RequestAnalysis(context.Background(), "GBPUSD", "4H", "")
	if err != nil {
		t.Fatalf("RequestAnalysis: %v", err)
	}
	if !strings.HasPrefix(seen.Image, "data:image/png;base64,") {
		t.Fatalf("analyzer should receive a png data uri, got %q", seen.Image)
	}
	if res.TradeDirective != models.DirectiveBuy || res.Pair != "GBPUSD" {
		t.Fatalf("unexpected result %+v", res)
	}

	logs := repo.Logs()
	if len(logs) != 1 || logs[0].Result.TradeDirective != models.DirectiveBuy {
		t.Fatalf("expected one BUY log, got %+v", logs)
	}

	st := s.Snapshot()
	if st.View != ViewDecision || st.Result == nil || st.Result.TradeDirective != models.DirectiveBuy {
		t.Fatalf("expected DECISION view with result, got %+v", st)
	}
	if st.ActiveLogID != logs[0].ID || st.Loading || st.Error != "" {
		t.Fatalf("unexpected snapshot %+v", st)
	}
}

func TestAnalyzeIncompleteIsNotLogged(t *testing.T) {
	s, repo := newSession(t, stubAnalyzer(&models.AnalysisResult{
		Status:      models.StatusIncomplete,
		MissingData: []string{"Timeframe"},
	}, nil))
	_ = s.UploadImage(pngHeader)

	if _, err := s.RequestAnalysis(context.Background(), "", "", ""); err != nil {
		t.Fatalf("RequestAnalysis: %v", err)
	}
	if len(repo.Logs()) != 0 {
		t.Fatal("incomplete verdict must not be logged")
	}
	st := s.Snapshot()
	if !strings.Contains(st.Error, "Timeframe") {
		t.Fatalf("expected missing data in error indicator, got %q", st.Error)
	}
	if st.ActiveLogID != "" {
		t.Fatal("no log should be active")
	}
}

func TestAnalyzeErrorsBecomeDisplayMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"request", &inference.RequestError{Provider: "gemini", StatusCode: 503, Message: "overloaded"}, "overloaded"},
		{"parse", &inference.ParseError{Err: errors.New("bad json")}, ErrAnalysisFailed.Error()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, repo := newSession(t, stubAnalyzer(nil, tt.err))
			_ = s.UploadImage(pngHeader)
			if _, err := s.RequestAnalysis(context.Background(), "EURUSD", "1H", ""); err == nil {
				t.Fatal("expected error")
			}
			st := s.Snapshot()
			if !strings.Contains(st.Error, tt.want) {
				t.Fatalf("expected %q in error, got %q", tt.want, st.Error)
			}
			if st.View != ViewAnalyze || st.Loading || len(repo.Logs()) != 0 {
				t.Fatalf("unexpected state after failure %+v", st)
			}
		})
	}
}

func TestRequestAnalysisWithoutImage(t *testing.T) {
	called := false
	s, _ := newSession(t, inference.AnalyzerFunc(func(ctx context.Context, req models.AnalysisRequest) (*models.AnalysisResult, error) {
		called = true
		return nil, nil
	}))
	if _, err := s.RequestAnalysis(context.Background(), "", "", ""); !errors.Is(err, ErrNoImage) {
		t.Fatalf("expected ErrNoImage, got %v", err)
	}
	if called {
		t.Fatal("analyzer must not be called without an image")
	}
}

func TestBusyGuardRejectsConcurrentAnalysis(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	var calls int
	var mu sync.Mutex
	analyzer := inference.AnalyzerFunc(func(ctx context.Context, req models.AnalysisRequest) (*models.AnalysisResult, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		close(entered)
		<-release
		return &models.AnalysisResult{Status: models.StatusIncomplete}, nil
	})
	s, _ := newSession(t, analyzer)
	_ = s.UploadImage(pngHeader)

	done := make(chan error, 1)
	go func() {
		_, err := s.RequestAnalysis(context.Background(), "", "", "")
		done <- err
	}()
	<-entered

	if !s.Snapshot().Loading {
		t.Fatal("expected loading while analysis is in flight")
	}
	if _, err := s.RequestAnalysis(context.Background(), "", "", ""); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
	if err := s.UploadImage(pngHeader); !errors.Is(err, ErrBusy) {
		t.Fatalf("upload during analysis should fail with ErrBusy, got %v", err)
	}
	if err := s.Reset(); !errors.Is(err, ErrBusy) {
		t.Fatalf("reset during analysis should fail with ErrBusy, got %v", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first analysis: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected one analyzer call, got %d", calls)
	}
	if s.Busy() {
		t.Fatal("busy flag should clear after completion")
	}
}

func TestChartStaysFixedDuringAnalysis(t *testing.T) {
	var s *Session
	var mismatches atomic.Int32
	analyzer := inference.AnalyzerFunc(func(ctx context.Context, req models.AnalysisRequest) (*models.AnalysisResult, error) {
		if s.Snapshot().Image != req.Image {
			mismatches.Add(1)
		}
		return inference.DecodeResult(buyPayload, req)
	})
	s, repo := newSession(t, analyzer)
	_ = s.UploadImage(pngHeader)

	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			select {
			case <-stop:
				return
			default:
			}
			_ = s.UploadImage(append(append([]byte{}, pngHeader...), byte(i)))
			_ = s.Reset()
			_, _ = s.OpenLog("missing")
		}
	}()

	for i := 0; i < 200; i++ {
		_ = s.UploadImage(append(append([]byte{}, pngHeader...), byte(i), 0xff))
		_, _ = s.RequestAnalysis(context.Background(), "EURUSD", "1H", "")
	}
	close(stop)
	wg.Wait()

	if n := mismatches.Load(); n != 0 {
		t.Fatalf("chart changed under %d in-flight analyses", n)
	}
	for _, l := range repo.Logs() {
		if !strings.HasPrefix(l.Image, "data:image/png;base64,") {
			t.Fatalf("log %s stored without its chart", l.ID)
		}
	}
}

func TestReviewAndOpenRejectedWhileBusy(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32
	analyzer := inference.AnalyzerFunc(func(ctx context.Context, req models.AnalysisRequest) (*models.AnalysisResult, error) {
		if calls.Add(1) > 1 {
			close(entered)
			<-release
		}
		return inference.DecodeResult(buyPayload, req)
	})
	s, repo := newSession(t, analyzer)
	_ = s.UploadImage(pngHeader)
	if _, err := s.RequestAnalysis(context.Background(), "EURUSD", "", ""); err != nil {
		t.Fatalf("RequestAnalysis: %v", err)
	}
	first := s.Snapshot().ActiveLogID

	done := make(chan error, 1)
	go func() {
		_, err := s.RequestAnalysis(context.Background(), "EURUSD", "", "")
		done <- err
	}()
	<-entered

	if _, err := s.SubmitReview(context.Background(), models.OutcomeWin, ""); !errors.Is(err, ErrBusy) {
		t.Fatalf("review during analysis should fail with ErrBusy, got %v", err)
	}
	if _, err := s.OpenLog(first); !errors.Is(err, ErrBusy) {
		t.Fatalf("open during analysis should fail with ErrBusy, got %v", err)
	}
	if got, _ := repo.Find(first); got.Review != nil {
		t.Fatal("rejected review must not be attached")
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("second analysis: %v", err)
	}
}

func TestSnapshotResultIsACopy(t *testing.T) {
	s, _ := newSession(t, inference.AnalyzerFunc(func(ctx context.Context, req models.AnalysisRequest) (*models.AnalysisResult, error) {
		return inference.DecodeResult(buyPayload, req)
	}))
	_ = s.UploadImage(pngHeader)
	if _, err := s.RequestAnalysis(context.Background(), "EURUSD", "", ""); err != nil {
		t.Fatalf("RequestAnalysis: %v", err)
	}

	st := s.Snapshot()
	st.Result.ExecutionPlan.TakeProfit[0] = "0.0001"
	if got := s.Snapshot().Result.ExecutionPlan.TakeProfit[0]; got == "0.0001" {
		t.Fatal("snapshot shares the execution plan with the session")
	}
}

func TestHistoryIsChronological(t *testing.T) {
	var history []models.AnalysisResult
	n := 0
	analyzer := inference.AnalyzerFunc(func(ctx context.Context, req models.AnalysisRequest) (*models.AnalysisResult, error) {
		history = req.History
		n++
		return &models.AnalysisResult{
			Status:              models.StatusComplete,
			Pair:                []string{"A", "B", "C"}[n-1],
			TradeDirective:      models.DirectiveWait,
			ObservationProtocol: &models.ObservationProtocol{Reason: "chop"},
		}, nil
	})
	s, _ := newSession(t, analyzer)
	for i := 0; i < 3; i++ {
		_ = s.UploadImage(pngHeader)
		if _, err := s.RequestAnalysis(context.Background(), "", "", ""); err != nil {
			t.Fatalf("RequestAnalysis: %v", err)
		}
	}
	if len(history) != 2 || history[0].Pair != "A" || history[1].Pair != "B" {
		t.Fatalf("expected [A B] oldest first, got %+v", history)
	}
}

func TestUploadRejectsNonImage(t *testing.T) {
	s, _ := newSession(t, stubAnalyzer(nil, nil))
	if err := s.UploadImage([]byte("%PDF-1.7 not a chart")); !errors.Is(err, ErrNotImage) {
		t.Fatalf("expected ErrNotImage, got %v", err)
	}
	if err := s.UploadImage(nil); !errors.Is(err, ErrNotImage) {
		t.Fatalf("expected ErrNotImage for empty upload, got %v", err)
	}
}

func TestReviewFlow(t *testing.T) {
	s, repo := newSession(t, stubAnalyzer(&models.AnalysisResult{
		Status:         models.StatusComplete,
		TradeDirective: models.DirectiveSell,
		ExecutionPlan:  &models.ExecutionPlan{Entry: "150.20", StopLoss: "150.80", TakeProfit: []string{"149.00"}},
	}, nil))

	if _, err := s.SubmitReview(context.Background(), models.OutcomeWin, ""); !errors.Is(err, ErrNoActiveLog) {
		t.Fatalf("expected ErrNoActiveLog, got %v", err)
	}

	_ = s.UploadImage(pngHeader)
	if _, err := s.RequestAnalysis(context.Background(), "usdjpy", "1H", ""); err != nil {
		t.Fatalf("RequestAnalysis: %v", err)
	}
	logID := s.Snapshot().ActiveLogID

	entry, err := s.SubmitReview(context.Background(), models.OutcomeLoss, "stopped at news")
	if err != nil {
		t.Fatalf("SubmitReview: %v", err)
	}
	if entry.ID != logID || entry.Review.Outcome != models.OutcomeLoss {
		t.Fatalf("review attached to wrong entry: %+v", entry)
	}
	st := s.Snapshot()
	if st.View != ViewAnalyze || st.Image != "" || st.Result != nil {
		t.Fatalf("expected reset after review, got %+v", st)
	}

	if _, err := s.OpenLog(logID); err != nil {
		t.Fatalf("OpenLog: %v", err)
	}
	if st := s.Snapshot(); st.View != ViewDecision || st.ActiveLogID != logID || st.Result.TradeDirective != models.DirectiveSell {
		t.Fatalf("unexpected state after OpenLog %+v", st)
	}
	if _, err := s.SubmitReview(context.Background(), models.OutcomeWin, ""); !errors.Is(err, journal.ErrAlreadyReviewed) {
		t.Fatalf("expected ErrAlreadyReviewed, got %v", err)
	}
	if got, _ := repo.Find(logID); got.Review.Outcome != models.OutcomeLoss {
		t.Fatal("second review must not overwrite the first")
	}

	if _, err := s.OpenLog("nope"); !errors.Is(err, journal.ErrLogNotFound) {
		t.Fatalf("expected ErrLogNotFound, got %v", err)
	}
}

func TestUpdateSettings(t *testing.T) {
	s, _ := newSession(t, stubAnalyzer(nil, nil))
	got, err := s.UpdateSettings(context.Background(), 25000, 0.5)
	if err != nil {
		t.Fatalf("UpdateSettings: %v", err)
	}
	if got.AccountBalance != 25000 || got.RiskPerTrade != 0.5 {
		t.Fatalf("unexpected settings %+v", got)
	}
	if s.Snapshot().Settings != got {
		t.Fatal("snapshot should reflect new settings")
	}
	if _, err := s.UpdateSettings(context.Background(), -1, 1); !errors.Is(err, journal.ErrInvalidSettings) {
		t.Fatalf("expected ErrInvalidSettings, got %v", err)
	}
}

func TestParseView(t *testing.T) {
	if v, err := ParseView("journal"); err != nil || v != ViewJournal {
		t.Fatalf("ParseView: %v %v", v, err)
	}
	if _, err := ParseView("charts"); err == nil {
		t.Fatal("expected error for unknown view")
	}
}

package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/dyike/VancelleGo/config"
	"github.com/dyike/VancelleGo/internal/inference"
	"github.com/dyike/VancelleGo/internal/journal"
	"github.com/dyike/VancelleGo/internal/session"
	"github.com/dyike/VancelleGo/internal/storage"
	"github.com/dyike/VancelleGo/models"
)

var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

const sellPayload = `{"status":"COMPLETE","tradeDirective":"SELL","qualityScore":74,
	"executionPlan":{"entry":"1.0850","stopLoss":"1.0900","takeProfit":["1.0750"],"riskRewardRatio":"2:1"},
	"whyThisStrategy":"supply rejection","whyNotOpposite":"lower highs"}`

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter(t *testing.T, analyzer inference.Analyzer) (*gin.Engine, *session.Session) {
	t.Helper()
	repo := journal.New(storage.NewMemoryBackend())
	repo.Load(context.Background())
	sess := session.New(repo, analyzer)
	return NewRouter(sess), sess
}

func payloadAnalyzer(payload string) inference.Analyzer {
	return inference.AnalyzerFunc(func(ctx context.Context, req models.AnalysisRequest) (*models.AnalysisResult, error) {
		return inference.DecodeResult(payload, req)
	})
}

func do(r *gin.Engine, method, path string, body []byte, contentType string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	r, _ := newTestRouter(t, payloadAnalyzer(sellPayload))
	w := do(r, http.MethodGet, "/health", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestAnalysisFlow(t *testing.T) {
	r, _ := newTestRouter(t, payloadAnalyzer(sellPayload))

	if w := do(r, http.MethodPost, "/api/image", pngHeader, "image/png"); w.Code != http.StatusOK {
		t.Fatalf("upload: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	w := do(r, http.MethodPost, "/api/analysis", []byte(`{"pair":"eurusd","timeframe":"1H"}`), "application/json")
	if w.Code != http.StatusOK {
		t.Fatalf("analysis: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Result models.AnalysisResult `json:"result"`
		LogID  string                `json:"logId"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if resp.Result.TradeDirective != models.DirectiveSell || resp.Result.Pair != "EURUSD" || resp.LogID == "" {
		t.Fatalf("unexpected response: %+v", resp)
	}

	w = do(r, http.MethodPost, "/api/review", []byte(`{"outcome":"win","notes":"clean"}`), "application/json")
	if w.Code != http.StatusOK {
		t.Fatalf("review: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	w = do(r, http.MethodPost, "/api/logs/"+resp.LogID+"/review", []byte(`{"outcome":"loss"}`), "application/json")
	if w.Code != http.StatusConflict {
		t.Fatalf("second review: expected 409, got %d", w.Code)
	}

	w = do(r, http.MethodGet, "/api/stats", nil, "")
	var stats models.JournalStats
	if err := json.Unmarshal(w.Body.Bytes(), &stats); err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if stats.Total != 1 || stats.Wins != 1 || stats.WinRate != 100 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestUploadMultipart(t *testing.T) {
	r, sess := newTestRouter(t, payloadAnalyzer(sellPayload))

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("image", "chart.png")
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	part.Write(pngHeader)
	mw.Close()

	w := do(r, http.MethodPost, "/api/image", buf.Bytes(), mw.FormDataContentType())
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.HasPrefix(sess.Snapshot().Image, "data:image/png;base64,") {
		t.Fatal("expected image stored as data uri")
	}
}

func TestUploadRejectsNonImage(t *testing.T) {
	r, _ := newTestRouter(t, payloadAnalyzer(sellPayload))
	w := do(r, http.MethodPost, "/api/image", []byte("just some text"), "text/plain")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestAnalysisErrorStatus(t *testing.T) {
	tests := []struct {
		name     string
		analyzer inference.Analyzer
		upload   bool
		want     int
	}{
		{
			name:     "no image",
			analyzer: payloadAnalyzer(sellPayload),
			want:     http.StatusBadRequest,
		},
		{
			name:     "unreadable verdict",
			analyzer: payloadAnalyzer("not json"),
			upload:   true,
			want:     http.StatusBadGateway,
		},
		{
			name: "upstream failure",
			analyzer: inference.AnalyzerFunc(func(context.Context, models.AnalysisRequest) (*models.AnalysisResult, error) {
				return nil, &inference.RequestError{Provider: "gemini", StatusCode: 500, Message: "boom"}
			}),
			upload: true,
			want:   http.StatusBadGateway,
		},
		{
			name: "missing credential",
			analyzer: inference.AnalyzerFunc(func(context.Context, models.AnalysisRequest) (*models.AnalysisResult, error) {
				return nil, &config.ConfigurationError{Field: "gemini api key"}
			}),
			upload: true,
			want:   http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := newTestRouter(t, tt.analyzer)
			if tt.upload {
				do(r, http.MethodPost, "/api/image", pngHeader, "image/png")
			}
			w := do(r, http.MethodPost, "/api/analysis", nil, "")
			if w.Code != tt.want {
				t.Fatalf("expected %d, got %d: %s", tt.want, w.Code, w.Body.String())
			}
		})
	}
}

func TestAnalysisBusy(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	analyzer := inference.AnalyzerFunc(func(ctx context.Context, req models.AnalysisRequest) (*models.AnalysisResult, error) {
		close(started)
		<-release
		return inference.DecodeResult(sellPayload, req)
	})
	r, _ := newTestRouter(t, analyzer)
	do(r, http.MethodPost, "/api/image", pngHeader, "image/png")

	done := make(chan int)
	go func() {
		done <- do(r, http.MethodPost, "/api/analysis", nil, "").Code
	}()
	<-started

	if w := do(r, http.MethodPost, "/api/analysis", nil, ""); w.Code != http.StatusConflict {
		t.Fatalf("expected 409 while busy, got %d", w.Code)
	}
	if w := do(r, http.MethodPost, "/api/reset", nil, ""); w.Code != http.StatusConflict {
		t.Fatalf("expected 409 reset while busy, got %d", w.Code)
	}
	close(release)
	if code := <-done; code != http.StatusOK {
		t.Fatalf("expected first analysis to succeed, got %d", code)
	}
}

func TestLogsEndpoints(t *testing.T) {
	r, _ := newTestRouter(t, payloadAnalyzer(sellPayload))

	if w := do(r, http.MethodGet, "/api/logs/missing", nil, ""); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	if w := do(r, http.MethodGet, "/api/logs?limit=zero", nil, ""); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad limit, got %d", w.Code)
	}

	do(r, http.MethodPost, "/api/image", pngHeader, "image/png")
	do(r, http.MethodPost, "/api/analysis", nil, "")

	w := do(r, http.MethodGet, "/api/logs?limit=5", nil, "")
	var resp struct {
		Logs []models.TradeLog `json:"logs"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if len(resp.Logs) != 1 {
		t.Fatalf("expected one log, got %d", len(resp.Logs))
	}

	id := resp.Logs[0].ID
	if w := do(r, http.MethodGet, "/api/logs/"+id, nil, ""); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	w = do(r, http.MethodPost, "/api/logs/"+id+"/open", nil, "")
	var st session.State
	if err := json.Unmarshal(w.Body.Bytes(), &st); err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if st.View != session.ViewDecision || st.ActiveLogID != id {
		t.Fatalf("unexpected state after open: view=%s active=%s", st.View, st.ActiveLogID)
	}
}

func TestSettingsAndView(t *testing.T) {
	r, _ := newTestRouter(t, payloadAnalyzer(sellPayload))

	w := do(r, http.MethodPut, "/api/settings", []byte(`{"riskPerTrade":2}`), "application/json")
	var s models.Settings
	if err := json.Unmarshal(w.Body.Bytes(), &s); err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if s.RiskPerTrade != 2 || s.AccountBalance != models.DefaultAccountBalance {
		t.Fatalf("unexpected settings: %+v", s)
	}

	if w := do(r, http.MethodPut, "/api/settings", []byte(`{"accountBalance":-5}`), "application/json"); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for negative balance, got %d", w.Code)
	}

	if w := do(r, http.MethodPut, "/api/view", []byte(`{"view":"journal"}`), "application/json"); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if w := do(r, http.MethodPut, "/api/view", []byte(`{"view":"lobby"}`), "application/json"); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown view, got %d", w.Code)
	}
}

func TestAnalysisSurvivesClientDisconnect(t *testing.T) {
	var ctxErr error
	analyzer := inference.AnalyzerFunc(func(ctx context.Context, req models.AnalysisRequest) (*models.AnalysisResult, error) {
		ctxErr = ctx.Err()
		return inference.DecodeResult(sellPayload, req)
	})
	r, sess := newTestRouter(t, analyzer)
	do(r, http.MethodPost, "/api/image", pngHeader, "image/png")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/analysis", nil).WithContext(ctx)
	r.ServeHTTP(w, req)

	if ctxErr != nil {
		t.Fatalf("analysis context was cancelled with the request: %v", ctxErr)
	}
	if len(sess.Snapshot().Logs) != 1 {
		t.Fatal("expected the verdict to be logged")
	}
}

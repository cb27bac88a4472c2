package telegram

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gonum.org/v1/gonum/mat"

	"montecarloBot/internal/finance"
	"montecarloBot/internal/logger"
	"montecarloBot/internal/montecarlo"
	"montecarloBot/internal/storage"
)

type fakeSender struct {
	mu   sync.Mutex
	sent []tgbotapi.Chattable
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, nil
}

func (f *fakeSender) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.sent {
		if m, ok := c.(tgbotapi.MessageConfig); ok {
			out = append(out, m.Text)
		}
	}
	return out
}

func (f *fakeSender) photos() []tgbotapi.PhotoConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []tgbotapi.PhotoConfig
	for _, c := range f.sent {
		if p, ok := c.(tgbotapi.PhotoConfig); ok {
			out = append(out, p)
		}
	}
	return out
}

func (f *fakeSender) documents() []tgbotapi.DocumentConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []tgbotapi.DocumentConfig
	for _, c := range f.sent {
		if d, ok := c.(tgbotapi.DocumentConfig); ok {
			out = append(out, d)
		}
	}
	return out
}

type fakeRunner struct {
	calls []montecarlo.RunConfig
	err   error
}

func (f *fakeRunner) Run(_ context.Context, cfg montecarlo.RunConfig) (*montecarlo.Result, error) {
	f.calls = append(f.calls, cfg)
	if f.err != nil {
		return nil, f.err
	}
	days := make([][]float64, cfg.NumDays)
	for t := range days {
		days[t] = make([]float64, cfg.NumSimulations)
		for j := range days[t] {
			days[t][j] = 100 + float64(t+1)*float64(j-1)
		}
	}
	e, err := montecarlo.NewEnsemble(days)
	if err != nil {
		return nil, err
	}
	res := &montecarlo.Result{
		Config:     cfg,
		Params:     montecarlo.EstimatedParameters{MeanDailyReturn: 0.001, Volatility: 0.02, Drift: 0.0008},
		StartPrice: 100,
		Summary:    montecarlo.Summarize(e),
	}
	if cfg.IsPortfolio() {
		res.Portfolio = &montecarlo.Portfolio{Symbols: cfg.Symbols, Weights: cfg.Weights}
		res.Correlation = mat.NewSymDense(len(cfg.Symbols), nil)
		for i := range cfg.Symbols {
			res.Correlation.SetSym(i, i, 1)
		}
	}
	return res, nil
}

type fakeHistory struct {
	saved []int64
	runs  []storage.Run
	err   error
}

func (f *fakeHistory) Save(_ context.Context, _ *montecarlo.Result, chatID int64) (uuid.UUID, error) {
	f.saved = append(f.saved, chatID)
	return uuid.MustParse("0f8fad5b-d9cb-469f-a165-70867728950e"), f.err
}

func (f *fakeHistory) List(_ context.Context, _ int64, limit int) ([]storage.Run, error) {
	if limit < len(f.runs) {
		return f.runs[:limit], f.err
	}
	return f.runs, f.err
}

type fakeNarrator struct{ text string }

func (f fakeNarrator) Explain(context.Context, *montecarlo.Result) (string, error) {
	return f.text, nil
}

var testNow = time.Date(2024, 6, 14, 15, 0, 0, 0, time.UTC)

func newTestHandlers(t *testing.T, deps Deps) (*Handlers, *fakeSender) {
	t.Helper()
	api := &fakeSender{}
	if deps.Defaults == (Defaults{}) {
		deps.Defaults = Defaults{Simulations: 5, Days: 3, Window: "1y", MaxCells: 1000}
	}
	deps.Charts = finance.ChartOptions{Width: 600, Height: 400, MaxPaths: 5}
	h := NewHandlers(api, deps, logger.Wrap(zaptest.NewLogger(t)))
	h.now = func() time.Time { return testNow }
	return h, api
}

func message(text string) *tgbotapi.Message {
	return &tgbotapi.Message{Text: text, Chat: &tgbotapi.Chat{ID: 7}, From: &tgbotapi.User{ID: 9}}
}

func TestHandleSim(t *testing.T) {
	runner := &fakeRunner{}
	history := &fakeHistory{}
	h, api := newTestHandlers(t, Deps{Runner: runner, History: history, Narrator: fakeNarrator{"commentary"}})

	h.HandleMessage(context.Background(), message("/sim nvda 4 2 30d"))

	require.Len(t, runner.calls, 1)
	cfg := runner.calls[0]
	assert.Equal(t, []string{"NVDA"}, cfg.Symbols)
	assert.Equal(t, 4, cfg.NumSimulations)
	assert.Equal(t, 2, cfg.NumDays)
	assert.Equal(t, time.Date(2024, 5, 15, 0, 0, 0, 0, time.UTC), cfg.Start)
	assert.Equal(t, time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC), cfg.End)
	assert.Equal(t, uint64(testNow.UnixNano()), cfg.Seed)
	assert.Equal(t, []int64{7}, history.saved)

	texts := api.texts()
	require.Len(t, texts, 2)
	assert.Equal(t, "Simulating NVDA: 4 paths × 2 days…", texts[0])
	assert.Equal(t, "commentary", texts[1])

	photos := api.photos()
	require.Len(t, photos, 2)
	assert.Contains(t, photos[0].Caption, "NVDA • 4 paths × 2 days")
	assert.Contains(t, photos[0].Caption, "Run 0f8fad5b")

	docs := api.documents()
	require.Len(t, docs, 1)
	file := docs[0].File.(tgbotapi.FileBytes)
	assert.Equal(t, "NVDA_simulation.csv", file.Name)
	assert.True(t, bytes.HasPrefix(file.Bytes, []byte("Simulation,Mean_Price,5th_Percentile,95th_Percentile,Day_1,Day_2\n")))
}

func TestHandleSimUsesDefaults(t *testing.T) {
	runner := &fakeRunner{}
	h, _ := newTestHandlers(t, Deps{Runner: runner})

	h.HandleMessage(context.Background(), message("/sim@mc_bot MSFT"))

	require.Len(t, runner.calls, 1)
	assert.Equal(t, 5, runner.calls[0].NumSimulations)
	assert.Equal(t, 3, runner.calls[0].NumDays)
	assert.Equal(t, time.Date(2023, 6, 14, 0, 0, 0, 0, time.UTC), runner.calls[0].Start)
}

func TestHandleSimPort(t *testing.T) {
	runner := &fakeRunner{}
	h, api := newTestHandlers(t, Deps{Runner: runner})

	h.HandleMessage(context.Background(), message("/simport NVDA 60% AAPL 40% 6m"))

	require.Len(t, runner.calls, 1)
	cfg := runner.calls[0]
	assert.Equal(t, []string{"NVDA", "AAPL"}, cfg.Symbols)
	assert.InDeltaSlice(t, []float64{0.6, 0.4}, cfg.Weights, 1e-12)
	assert.Equal(t, time.Date(2023, 12, 14, 0, 0, 0, 0, time.UTC), cfg.Start)

	var captions []string
	for _, p := range api.photos() {
		captions = append(captions, p.Caption)
	}
	require.Len(t, captions, 3)
	assert.Contains(t, captions[0], "NVDA 60%, AAPL 40%")
	assert.Equal(t, "Daily return correlation", captions[2])
	assert.Equal(t, "NVDA_AAPL_simulation.csv", api.documents()[0].File.(tgbotapi.FileBytes).Name)
}

func TestHandleSimRejectsBadInput(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"/sim", "Usage: /sim"},
		{"/sim NVDA ten", "Usage: /sim"},
		{"/sim NVDA 100 100", "too large"},
		{"/sim NVDA 4294967296 4294967296", "too large"},
		{"/sim NVDA 5 5 0y", "invalid window format"},
		{"/simport NVDA 1.0", "Usage: /simport"},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			runner := &fakeRunner{}
			h, api := newTestHandlers(t, Deps{Runner: runner})
			h.HandleMessage(context.Background(), message(tt.text))

			assert.Empty(t, runner.calls)
			texts := api.texts()
			require.Len(t, texts, 1)
			assert.Contains(t, texts[0], tt.want)
		})
	}
}

func TestHandleSimReportsRunErrors(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{fmt.Errorf("%w: ZZZZ: no data", montecarlo.ErrDataUnavailable), "Couldn’t fetch price history"},
		{montecarlo.ErrInsufficientData, "Not enough price history"},
		{montecarlo.ErrMisalignedSeries, "different calendars"},
		{montecarlo.ErrInvalidWeights, "Weights must be non-negative"},
		{montecarlo.ErrInvalidParameter, "Invalid parameters"},
		{context.DeadlineExceeded, "timed out"},
		{errors.New("boom"), "Simulation failed: boom"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			history := &fakeHistory{}
			h, api := newTestHandlers(t, Deps{Runner: &fakeRunner{err: tt.err}, History: history})
			h.HandleMessage(context.Background(), message("/sim NVDA"))

			texts := api.texts()
			require.Len(t, texts, 2)
			assert.Contains(t, texts[1], tt.want)
			assert.Empty(t, api.photos())
			assert.Empty(t, history.saved)
		})
	}
}

func TestHandleSimSaveFailureStillReplies(t *testing.T) {
	h, api := newTestHandlers(t, Deps{Runner: &fakeRunner{}, History: &fakeHistory{err: errors.New("disk full")}})
	h.HandleMessage(context.Background(), message("/sim NVDA"))

	photos := api.photos()
	require.NotEmpty(t, photos)
	assert.NotContains(t, photos[0].Caption, "Run ")
}

func TestHandleHistory(t *testing.T) {
	runs := []storage.Run{
		{
			ID:         uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8"),
			Config:     montecarlo.RunConfig{Symbols: []string{"NVDA"}, NumSimulations: 150, NumDays: 100},
			StartPrice: 100,
			Final:      montecarlo.DaySummary{Day: 100, MeanPrice: 120, P5: 80, P95: 170},
			CreatedAt:  time.Date(2024, 1, 2, 21, 0, 0, 0, time.UTC),
		},
		{
			ID:     uuid.New(),
			Config: montecarlo.RunConfig{Symbols: []string{"AAPL"}, NumSimulations: 10, NumDays: 10},
		},
	}
	h, api := newTestHandlers(t, Deps{Runner: &fakeRunner{}, History: &fakeHistory{runs: runs}})

	h.HandleMessage(context.Background(), message("/history 1"))
	texts := api.texts()
	require.Len(t, texts, 1)
	assert.Contains(t, texts[0], "1. NVDA • 150×100 • Jan 02 16:00 ET")
	assert.Contains(t, texts[0], "Day 100 mean $120.00 (+20.0%), 90% band $80.00 - $170.00")
	assert.Contains(t, texts[0], "Run 6ba7b810")
	assert.NotContains(t, texts[0], "AAPL")
}

func TestHandleHistoryEmptyAndDisabled(t *testing.T) {
	h, api := newTestHandlers(t, Deps{Runner: &fakeRunner{}, History: &fakeHistory{}})
	h.HandleMessage(context.Background(), message("/history"))
	assert.Equal(t, []string{"No runs yet. Try /sim NVDA"}, api.texts())

	h, api = newTestHandlers(t, Deps{Runner: &fakeRunner{}})
	h.HandleMessage(context.Background(), message("/history"))
	assert.Equal(t, []string{"Run history is not enabled."}, api.texts())
}

func TestHandleHelpAndUnknown(t *testing.T) {
	h, api := newTestHandlers(t, Deps{Runner: &fakeRunner{}})

	h.HandleMessage(context.Background(), message("hello there"))
	h.HandleMessage(context.Background(), message("/simulate NVDA"))
	assert.Empty(t, api.texts())

	h.HandleMessage(context.Background(), message("/start"))
	texts := api.texts()
	require.Len(t, texts, 1)
	assert.Contains(t, texts[0], "/simport S1 W1 S2 W2")
	assert.Contains(t, texts[0], "Defaults: 5 paths, 3 days, 1y history.")
}

func TestWebhookHandler(t *testing.T) {
	api := &fakeSender{}
	b := newBot(context.Background(), api, Deps{Runner: &fakeRunner{}}, logger.Wrap(zaptest.NewLogger(t)))

	body := `{"update_id":1,"message":{"message_id":2,"date":1700000000,"chat":{"id":7,"type":"private"},"from":{"id":9,"is_bot":false,"first_name":"A"},"text":"/help"}}`
	rec := httptest.NewRecorder()
	b.WebhookHandler(rec, httptest.NewRequest(http.MethodPost, "/telegram/webhook", strings.NewReader(body)))
	assert.Equal(t, http.StatusOK, rec.Code)
	b.Wait()
	require.Len(t, api.texts(), 1)
	assert.True(t, strings.HasPrefix(api.texts()[0], "Commands"))

	rec = httptest.NewRecorder()
	b.WebhookHandler(rec, httptest.NewRequest(http.MethodPost, "/telegram/webhook", strings.NewReader(`{"update_id":3}`)))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	b.WebhookHandler(rec, httptest.NewRequest(http.MethodPost, "/telegram/webhook", strings.NewReader("{")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	b.Wait()
	assert.Len(t, api.texts(), 1)
}

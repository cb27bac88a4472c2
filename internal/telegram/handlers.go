package telegram

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"

	"montecarloBot/internal/finance"
	"montecarloBot/internal/logger"
	"montecarloBot/internal/metrics"
	"montecarloBot/internal/montecarlo"
	"montecarloBot/internal/report"
	"montecarloBot/internal/storage"
)

var (
	// /sim SYMBOL [sims] [days] [window]
	reSim = regexp.MustCompile(`^/sim(?:@[\w_]+)?(?:\s|$)`)
	// /simport S1 W1 S2 W2 ... [window]
	reSimPort = regexp.MustCompile(`^/simport(?:@[\w_]+)?(?:\s|$)`)
	// /history [n]
	reHistory = regexp.MustCompile(`^/history(?:@[\w_]+)?(?:\s+(\d+))?$`)
	// /help
	reHelp = regexp.MustCompile(`^/(help|start)(?:@[\w_]+)?$`)
)

// Sender is the part of the Bot API the handlers use. *tgbotapi.BotAPI
// satisfies it.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Runner executes one simulation run, e.g. *montecarlo.Pipeline.
type Runner interface {
	Run(ctx context.Context, cfg montecarlo.RunConfig) (*montecarlo.Result, error)
}

// RunHistory stores finished runs, e.g. *storage.RunStore.
type RunHistory interface {
	Save(ctx context.Context, res *montecarlo.Result, chatID int64) (uuid.UUID, error)
	List(ctx context.Context, chatID int64, limit int) ([]storage.Run, error)
}

// Explainer writes a commentary for a run, e.g. *openai.Narrator.
type Explainer interface {
	Explain(ctx context.Context, res *montecarlo.Result) (string, error)
}

// Defaults fill in arguments a command leaves out.
type Defaults struct {
	Simulations int
	Days        int
	Window      string
	MaxCells    int
}

// Deps are the collaborators of the command handlers. History and Narrator
// are optional.
type Deps struct {
	Runner   Runner
	History  RunHistory
	Narrator Explainer
	Defaults Defaults
	Charts   finance.ChartOptions
	Timeout  time.Duration
}

type Handlers struct {
	api  Sender
	deps Deps
	log  *logger.Logger
	now  func() time.Time
}

func NewHandlers(api Sender, deps Deps, log *logger.Logger) *Handlers {
	if deps.Timeout <= 0 {
		deps.Timeout = 2 * time.Minute
	}
	if deps.Defaults.Simulations < 1 {
		deps.Defaults.Simulations = 150
	}
	if deps.Defaults.Days < 1 {
		deps.Defaults.Days = 100
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Handlers{api: api, deps: deps, log: log.Named("telegram"), now: time.Now}
}

func (h *Handlers) HandleMessage(ctx context.Context, m *tgbotapi.Message) {
	txt := strings.TrimSpace(m.Text)
	chatID := m.Chat.ID
	switch {
	case reSimPort.MatchString(txt):
		metrics.BotCommands.WithLabelValues("simport").Inc()
		h.handleSimPort(ctx, chatID, txt)

	case reSim.MatchString(txt):
		metrics.BotCommands.WithLabelValues("sim").Inc()
		h.handleSim(ctx, chatID, txt)

	case reHistory.MatchString(txt):
		metrics.BotCommands.WithLabelValues("history").Inc()
		limit := 5
		if g := reHistory.FindStringSubmatch(txt); len(g) == 2 && g[1] != "" {
			limit, _ = strconv.Atoi(g[1])
			limit = min(max(limit, 1), 20)
		}
		h.handleHistory(ctx, chatID, limit)

	case reHelp.MatchString(txt):
		metrics.BotCommands.WithLabelValues("help").Inc()
		h.handleHelp(chatID)
	}
}

func (h *Handlers) handleSim(ctx context.Context, chatID int64, txt string) {
	args, err := finance.ParseSimulationArgs(txt)
	if err != nil {
		h.reply(chatID, "Usage: /sim SYMBOL [sims] [days] [window]\n"+err.Error())
		return
	}
	cfg, err := h.runConfig([]string{args.Symbol}, nil, args.Simulations, args.Days, args.Window)
	if err != nil {
		h.reply(chatID, err.Error())
		return
	}
	h.simulate(ctx, chatID, cfg)
}

func (h *Handlers) handleSimPort(ctx context.Context, chatID int64, txt string) {
	symbols, weights, window, err := finance.ParseWeightedPortfolio(txt)
	if err != nil {
		h.reply(chatID, "Usage: /simport S1 W1 S2 W2 ... [window], e.g. /simport NVDA 0.6 AAPL 0.4 1y\n"+err.Error())
		return
	}
	cfg, err := h.runConfig(symbols, weights, 0, 0, window)
	if err != nil {
		h.reply(chatID, err.Error())
		return
	}
	h.simulate(ctx, chatID, cfg)
}

func (h *Handlers) runConfig(symbols []string, weights []float64, sims, days int, window string) (montecarlo.RunConfig, error) {
	if sims == 0 {
		sims = h.deps.Defaults.Simulations
	}
	if days == 0 {
		days = h.deps.Defaults.Days
	}
	if window == "" {
		window = h.deps.Defaults.Window
	}
	if ceiling := h.deps.Defaults.MaxCells; ceiling > 0 && days > 0 && sims > ceiling/days {
		return montecarlo.RunConfig{}, fmt.Errorf("too large: %d paths × %d days exceeds %d cells", sims, days, ceiling)
	}
	now := h.now()
	start, end, err := finance.ParseWindow(window, now)
	if err != nil {
		return montecarlo.RunConfig{}, err
	}
	return montecarlo.RunConfig{
		Symbols:        symbols,
		Weights:        weights,
		Start:          start,
		End:            end,
		NumSimulations: sims,
		NumDays:        days,
		Seed:           uint64(now.UnixNano()),
	}, nil
}

func (h *Handlers) simulate(ctx context.Context, chatID int64, cfg montecarlo.RunConfig) {
	mode := "single"
	if cfg.IsPortfolio() {
		mode = "portfolio"
	}
	h.reply(chatID, fmt.Sprintf("Simulating %s: %d paths × %d days…", cfg.Label(), cfg.NumSimulations, cfg.NumDays))

	ctx, cancel := context.WithTimeout(ctx, h.deps.Timeout)
	defer cancel()
	began := time.Now()
	res, err := h.deps.Runner.Run(ctx, cfg)
	metrics.ObserveRun(mode, err, time.Since(began), cfg.NumSimulations*cfg.NumDays)
	if err != nil {
		h.log.Warnw("simulation failed", "chat_id", chatID, "instrument", cfg.Label(), "error", err)
		h.reply(chatID, userError(err))
		return
	}

	caption := report.Caption(res)
	if h.deps.History != nil {
		id, err := h.deps.History.Save(ctx, res, chatID)
		if err != nil {
			h.log.Errorw("failed to save run", "chat_id", chatID, "error", err)
		} else {
			caption += "\nRun " + shortID(id)
		}
	}

	name := fileName(cfg)
	label := cfg.Label()
	if img, err := finance.RenderBands(label, res.Summary, h.deps.Charts); err != nil {
		h.log.Warnw("bands chart failed", "error", err)
		h.reply(chatID, caption)
	} else {
		h.sendPhoto(chatID, name+"_bands.png", img, caption)
	}
	if img, err := finance.RenderPaths(label, res.Summary.Ensemble, h.deps.Charts); err != nil {
		h.log.Warnw("paths chart failed", "error", err)
	} else {
		h.sendPhoto(chatID, name+"_paths.png", img, "")
	}
	if res.Portfolio != nil && res.Correlation != nil {
		if img, err := finance.RenderCorrelation(res.Portfolio.Symbols, res.Correlation); err != nil {
			h.log.Warnw("correlation table failed", "error", err)
		} else {
			h.sendPhoto(chatID, name+"_correlation.png", img, "Daily return correlation")
		}
	}
	if csv, err := report.CSVBytes(res.Summary); err != nil {
		h.log.Warnw("csv failed", "error", err)
	} else {
		doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: name + "_simulation.csv", Bytes: csv})
		h.send(doc)
	}

	if h.deps.Narrator != nil {
		text, err := h.deps.Narrator.Explain(ctx, res)
		if err != nil {
			h.log.Warnw("commentary failed", "error", err)
			return
		}
		h.reply(chatID, text)
	}
}

func (h *Handlers) handleHistory(ctx context.Context, chatID int64, limit int) {
	if h.deps.History == nil {
		h.reply(chatID, "Run history is not enabled.")
		return
	}
	runs, err := h.deps.History.List(ctx, chatID, limit)
	if err != nil {
		h.log.Errorw("history failed", "chat_id", chatID, "error", err)
		h.reply(chatID, "History failed: "+err.Error())
		return
	}
	if len(runs) == 0 {
		h.reply(chatID, "No runs yet. Try /sim NVDA")
		return
	}
	var b strings.Builder
	b.WriteString("Recent runs\n")
	for i, r := range runs {
		fmt.Fprintf(&b, "\n%d. %s • %d×%d • %s\n   Day %d mean %s (%s), 90%% band %s - %s\n   Run %s\n",
			i+1, r.Config.Label(), r.Config.NumSimulations, r.Config.NumDays, finance.AsOf(r.CreatedAt),
			r.Final.Day, report.Money(r.Final.MeanPrice), report.Change(r.StartPrice, r.Final.MeanPrice),
			report.Money(r.Final.P5), report.Money(r.Final.P95), shortID(r.ID))
	}
	h.reply(chatID, b.String())
}

func (h *Handlers) handleHelp(chatID int64) {
	help := "Commands\n\n" +
		"- /sim SYMBOL [sims] [days] [window] - Monte Carlo price scenarios for one symbol\n" +
		"- /simport S1 W1 S2 W2 ... [window] - Weighted portfolio, weights sum to 1 (0.4 or 40%)\n" +
		"- /history [n] - Your last n runs (default 5)\n" +
		"\nWindow: 30d, 6w, 6m, 1y, 5y or 2023-01-01:2024-01-01. " +
		fmt.Sprintf("Defaults: %d paths, %d days, %s history.", h.deps.Defaults.Simulations, h.deps.Defaults.Days, h.deps.Defaults.Window)
	h.reply(chatID, help)
}

// userError turns a run error into a chat reply.
func userError(err error) string {
	switch {
	case errors.Is(err, montecarlo.ErrDataUnavailable):
		return "Couldn’t fetch price history: " + err.Error()
	case errors.Is(err, montecarlo.ErrInsufficientData):
		return "Not enough price history for an estimate. Try a longer window, e.g. 1y."
	case errors.Is(err, montecarlo.ErrMisalignedSeries):
		return "These symbols trade on different calendars, so their histories don't line up."
	case errors.Is(err, montecarlo.ErrInvalidWeights):
		return "Weights must be non-negative and sum to 1: " + err.Error()
	case errors.Is(err, montecarlo.ErrInvalidParameter):
		return "Invalid parameters: " + err.Error()
	case errors.Is(err, context.DeadlineExceeded):
		return "Simulation timed out, try fewer paths or days."
	default:
		return "Simulation failed: " + err.Error()
	}
}

func fileName(cfg montecarlo.RunConfig) string {
	return strings.NewReplacer("^", "", "=", "", "/", "").Replace(strings.Join(cfg.Symbols, "_"))
}

func shortID(id uuid.UUID) string {
	return id.String()[:8]
}

func (h *Handlers) sendPhoto(chatID int64, name string, img []byte, caption string) {
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: name, Bytes: img})
	photo.Caption = caption
	h.send(photo)
}

func (h *Handlers) reply(chatID int64, text string) {
	h.send(tgbotapi.NewMessage(chatID, text))
}

func (h *Handlers) send(c tgbotapi.Chattable) {
	if _, err := h.api.Send(c); err != nil {
		h.log.Warnw("send failed", "error", err)
	}
}

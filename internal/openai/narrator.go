package openai

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	oa "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"montecarloBot/internal/montecarlo"
	"montecarloBot/internal/report"
)

const (
	DefaultModel = "gpt-4o-mini"

	// telegram messages are capped at 4096 characters
	maxReplyLen = 3500
)

const systemPrompt = `You are a quantitative analyst explaining a Monte Carlo price simulation to a retail investor.
The simulation uses geometric Brownian motion with drift and volatility estimated from daily history.

Your response must follow this exact structure:

**What the model says:**
[Two or three sentences on the expected path and the 90% band]

**How to read it:**
[Explain what the 5th and 95th percentile mean for this instrument]

**Caveats:**
[Model limits: constant volatility, normal shocks, no jumps, history is not a forecast]

Guidelines:
- Quote the numbers you are given, do not invent new ones
- No buy or sell recommendation
- Plain text with short bullet points, under 200 words`

// Narrator turns a finished run into a short plain-language commentary.
type Narrator struct {
	cli       oa.Client
	model     string
	maxTokens int64
}

// NewNarrator builds a narrator. Extra request options are appended after the
// API key, e.g. option.WithBaseURL in tests.
func NewNarrator(apiKey, model string, opts ...option.RequestOption) *Narrator {
	if model == "" {
		model = DefaultModel
	}
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &Narrator{cli: oa.NewClient(opts...), model: model, maxTokens: 600}
}

func (n *Narrator) Explain(ctx context.Context, res *montecarlo.Result) (string, error) {
	if res == nil || len(res.Summary.Rows) == 0 {
		return "", fmt.Errorf("nothing to explain")
	}
	resp, err := n.cli.Chat.Completions.New(ctx, oa.ChatCompletionNewParams{
		Model: n.model,
		Messages: []oa.ChatCompletionMessageParamUnion{
			oa.SystemMessage(systemPrompt),
			oa.UserMessage(buildPrompt(res)),
		},
		MaxTokens: oa.Int(n.maxTokens),
	})
	if err != nil {
		return "", fmt.Errorf("OpenAI API error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response from OpenAI")
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	return truncate(text, maxReplyLen), nil
}

// truncate cuts text to at most n bytes on a rune boundary.
func truncate(text string, n int) string {
	if len(text) <= n {
		return text
	}
	for n > 0 && !utf8.RuneStart(text[n]) {
		n--
	}
	return text[:n] + "…"
}

// buildPrompt lists the run's inputs and outcome as plain facts.
func buildPrompt(res *montecarlo.Result) string {
	cfg := res.Config
	final := res.Summary.Final()

	var b strings.Builder
	fmt.Fprintf(&b, "Instrument: %s\n", cfg.Label())
	if cfg.IsPortfolio() {
		b.WriteString("Type: weighted portfolio, rebalanced daily\n")
	}
	fmt.Fprintf(&b, "History window: %s to %s (%d daily returns)\n",
		cfg.Start.Format("2006-01-02"), cfg.End.Format("2006-01-02"), len(res.Returns))
	fmt.Fprintf(&b, "%s\n", res.Params)
	fmt.Fprintf(&b, "Simulated paths: %d, horizon: %d trading days\n", cfg.NumSimulations, cfg.NumDays)
	fmt.Fprintf(&b, "Starting price: %s\n", report.Money(res.StartPrice))
	fmt.Fprintf(&b, "Final day mean: %s (%s)\n", report.Money(final.MeanPrice), report.Change(res.StartPrice, final.MeanPrice))
	fmt.Fprintf(&b, "Final day 5th percentile: %s (%s)\n", report.Money(final.P5), report.Change(res.StartPrice, final.P5))
	fmt.Fprintf(&b, "Final day 95th percentile: %s (%s)\n", report.Money(final.P95), report.Change(res.StartPrice, final.P95))
	if res.Portfolio != nil && res.Correlation != nil {
		b.WriteString("Return correlations:\n")
		syms := res.Portfolio.Symbols
		for i := range syms {
			for j := i + 1; j < len(syms); j++ {
				fmt.Fprintf(&b, "  %s/%s: %.2f\n", syms[i], syms[j], res.Correlation.At(i, j))
			}
		}
	}
	b.WriteString("\nExplain this simulation following the structured format.")
	return b.String()
}

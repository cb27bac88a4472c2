package finance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"montecarloBot/internal/logger"
	"montecarloBot/internal/metrics"
	"montecarloBot/internal/montecarlo"
)

// errNoData marks a definitive "nothing there" answer: not retried and not
// counted against the circuit breaker.
var errNoData = errors.New("no data")

// YahooConfig tunes the Yahoo Finance client.
type YahooConfig struct {
	BaseURLs          []string
	Timeout           time.Duration
	Backoffs          []time.Duration
	RequestsPerSecond float64
	CacheTTL          time.Duration
}

// DefaultYahooConfig rotates both public hosts with short backoffs.
func DefaultYahooConfig() YahooConfig {
	return YahooConfig{
		BaseURLs:          []string{"https://query1.finance.yahoo.com", "https://query2.finance.yahoo.com"},
		Timeout:           15 * time.Second,
		Backoffs:          []time.Duration{200 * time.Millisecond, 500 * time.Millisecond, 1 * time.Second},
		RequestsPerSecond: 4,
		CacheTTL:          defaultSeriesCacheTTL,
	}
}

// YahooClient fetches daily price history from Yahoo Finance. It implements
// montecarlo.PriceSource.
type YahooClient struct {
	cfg     YahooConfig
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter
	cache   *seriesCache
	log     *logger.Logger
	now     func() time.Time
}

func NewYahooClient(cfg YahooConfig, log *logger.Logger) *YahooClient {
	def := DefaultYahooConfig()
	if len(cfg.BaseURLs) == 0 {
		cfg.BaseURLs = def.BaseURLs
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.Backoffs == nil {
		cfg.Backoffs = def.Backoffs
	}
	if log == nil {
		log = logger.Nop()
	}
	log = log.Named("yahoo")

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	st := gobreaker.Settings{
		Name:        "YahooFinance",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, errNoData) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Warnw("circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
	}

	return &YahooClient{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		breaker: gobreaker.NewCircuitBreaker(st),
		limiter: rate.NewLimiter(limit, 1),
		cache:   newSeriesCache(cfg.CacheTTL),
		log:     log,
		now:     time.Now,
	}
}

// FetchHistory returns daily adjusted closes for symbol with dates in [start, end).
func (c *YahooClient) FetchHistory(ctx context.Context, symbol string, start, end time.Time) (montecarlo.PriceSeries, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return montecarlo.PriceSeries{}, fmt.Errorf("%w: empty symbol", montecarlo.ErrDataUnavailable)
	}
	key := symbol + "|" + start.Format(time.DateOnly) + "|" + end.Format(time.DateOnly)
	if s, ok := c.cache.get(key); ok {
		c.log.Debugw("series cache hit", "symbol", symbol)
		return s, nil
	}

	out, err := c.breaker.Execute(func() (interface{}, error) {
		return c.fetch(ctx, symbol, start, end)
	})
	if err != nil {
		c.log.Warnw("history fetch failed", "symbol", symbol, "error", err)
		return montecarlo.PriceSeries{}, fmt.Errorf("%w: %s: %w", montecarlo.ErrDataUnavailable, symbol, err)
	}
	s := out.(montecarlo.PriceSeries)
	c.cache.set(key, s)
	c.log.Infow("history fetched", "symbol", symbol, "observations", s.Len(),
		"start", start.Format(time.DateOnly), "end", end.Format(time.DateOnly))
	return s, nil
}

// FetchPortfolio fetches every symbol in order; the first failure aborts.
func (c *YahooClient) FetchPortfolio(ctx context.Context, symbols []string, start, end time.Time) ([]montecarlo.PriceSeries, error) {
	if len(symbols) == 0 {
		return nil, fmt.Errorf("%w: no symbols", montecarlo.ErrDataUnavailable)
	}
	out := make([]montecarlo.PriceSeries, 0, len(symbols))
	for _, s := range symbols {
		ps, err := c.FetchHistory(ctx, s, start, end)
		if err != nil {
			return nil, err
		}
		out = append(out, ps)
	}
	return out, nil
}

func (c *YahooClient) fetch(ctx context.Context, symbol string, start, end time.Time) (montecarlo.PriceSeries, error) {
	q := url.Values{}
	q.Set("period1", strconv.FormatInt(start.Unix(), 10))
	q.Set("period2", strconv.FormatInt(end.Unix(), 10))
	q.Set("interval", "1d")
	q.Set("events", "div,splits")
	q.Set("includeAdjustedClose", "true")

	var yc yahooChartResp
	err := c.getJSON(ctx, "chart", "/v8/finance/chart/"+url.PathEscape(symbol)+"?"+q.Encode(), symbol, &yc)
	if err == nil {
		if len(yc.Chart.Result) == 0 {
			return montecarlo.PriceSeries{}, errNoData
		}
		return nonEmpty(toSeries(symbol, yc.Chart.Result[0], start, end))
	}
	if errors.Is(err, errNoData) || ctx.Err() != nil {
		return montecarlo.PriceSeries{}, err
	}

	// Spark fallback only knows relative ranges, so ask for one that covers
	// start and trim afterwards.
	c.log.Warnw("chart endpoint failed, trying spark", "symbol", symbol, "error", err)
	sq := url.Values{}
	sq.Set("symbols", symbol)
	sq.Set("range", sparkRange(c.now().Sub(start)))
	sq.Set("interval", "1d")
	var sp yahooSparkResp
	if serr := c.getJSON(ctx, "spark", "/v7/finance/spark?"+sq.Encode(), symbol, &sp); serr != nil {
		return montecarlo.PriceSeries{}, fmt.Errorf("chart: %v; spark: %w", err, serr)
	}
	if len(sp.Spark.Result) == 0 || len(sp.Spark.Result[0].Response) == 0 {
		return montecarlo.PriceSeries{}, errNoData
	}
	return nonEmpty(toSeries(symbol, sp.Spark.Result[0].Response[0], start, end))
}

func nonEmpty(s montecarlo.PriceSeries) (montecarlo.PriceSeries, error) {
	if s.Len() == 0 {
		return s, errNoData
	}
	return s, nil
}

// getJSON rotates hosts with backoff until one returns a parseable body.
func (c *YahooClient) getJSON(ctx context.Context, endpoint, pathAndQuery, symbol string, out any) error {
	var lastErr error
	for attempt := 0; attempt < len(c.cfg.Backoffs)+1; attempt++ {
		for _, base := range c.cfg.BaseURLs {
			if err := c.limiter.Wait(ctx); err != nil {
				return err
			}
			err := c.getOnce(ctx, base+pathAndQuery, symbol, out)
			if err == nil {
				metrics.YahooRequests.WithLabelValues(endpoint, "ok").Inc()
				return nil
			}
			if errors.Is(err, errNoData) {
				metrics.YahooRequests.WithLabelValues(endpoint, "not_found").Inc()
				return err
			}
			metrics.YahooRequests.WithLabelValues(endpoint, "error").Inc()
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.log.Debugw("yahoo request failed", "endpoint", endpoint, "host", base, "attempt", attempt, "error", err)
			lastErr = err
		}
		if attempt < len(c.cfg.Backoffs) {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.cfg.Backoffs[attempt]):
			}
		}
	}
	return lastErr
}

func (c *YahooClient) getOnce(ctx context.Context, u, symbol string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15")
	req.Header.Set("Accept", "application/json, text/javascript, */*; q=0.01")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Referer", fmt.Sprintf("https://finance.yahoo.com/quote/%s/history", symbol))

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return fmt.Errorf("failed to read yahoo response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", errNoData, describeYahooError(body))
	case resp.StatusCode == http.StatusTooManyRequests || strings.HasPrefix(string(body), "Edge: Too Many Requests"):
		return errors.New("yahoo returned 429: Edge: Too Many Requests")
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("yahoo returned %d: %s", resp.StatusCode, preview(body))
	case strings.HasPrefix(string(body), "<") || strings.HasPrefix(string(body), "Edge:"):
		return fmt.Errorf("yahoo returned non-json body: %s", preview(body))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse yahoo json: %v; body: %s", err, preview(body))
	}
	return nil
}

func describeYahooError(body []byte) string {
	var yc yahooChartResp
	if json.Unmarshal(body, &yc) == nil && yc.Chart.Error != nil {
		return yc.Chart.Error.Description
	}
	return preview(body)
}

func preview(body []byte) string {
	s := string(body)
	if len(s) > 120 {
		s = s[:120]
	}
	return s
}

// sparkRange maps a lookback to the smallest Yahoo range covering it.
func sparkRange(lookback time.Duration) string {
	days := int(lookback.Hours()/24) + 1
	switch {
	case days <= 5:
		return "5d"
	case days <= 30:
		return "1mo"
	case days <= 90:
		return "3mo"
	case days <= 180:
		return "6mo"
	case days <= 365:
		return "1y"
	case days <= 2*365:
		return "2y"
	case days <= 5*365:
		return "5y"
	case days <= 10*365:
		return "10y"
	default:
		return "max"
	}
}

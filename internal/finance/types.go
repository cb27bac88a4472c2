package finance

import (
	"time"

	"montecarloBot/internal/montecarlo"
)

// yahooChartResult is one entry of a v8 chart result or v7 spark response
// (trimmed to the fields we read).
type yahooChartResult struct {
	Meta struct {
		Symbol               string `json:"symbol"`
		GmtOffset            int64  `json:"gmtoffset"`
		Timezone             string `json:"timezone"`
		ExchangeTimezoneName string `json:"exchangeTimezoneName"`
	} `json:"meta"`
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Close []*float64 `json:"close"`
		} `json:"quote"`
		AdjClose []struct {
			AdjClose []*float64 `json:"adjclose"`
		} `json:"adjclose"`
	} `json:"indicators"`
}

type yahooError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// yahooChartResp mirrors the v8 chart response.
type yahooChartResp struct {
	Chart struct {
		Result []yahooChartResult `json:"result"`
		Error  *yahooError        `json:"error"`
	} `json:"chart"`
}

// yahooSparkResp mirrors the v7 spark fallback.
type yahooSparkResp struct {
	Spark struct {
		Result []struct {
			Symbol   string             `json:"symbol"`
			Response []yahooChartResult `json:"response"`
		} `json:"result"`
		Error *yahooError `json:"error"`
	} `json:"spark"`
}

type seriesCacheEntry struct {
	createdAt time.Time
	series    montecarlo.PriceSeries
}

const defaultSeriesCacheTTL = 10 * time.Minute

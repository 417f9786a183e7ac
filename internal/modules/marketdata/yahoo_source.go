package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

var (
	_ QuoteSource = (*YahooSource)(nil)
	_ Backfiller  = (*YahooSource)(nil)
)

// DefaultYahooBaseURL is the public chart API host
const DefaultYahooBaseURL = "https://query1.finance.yahoo.com"

// YahooSource reads quotes from the Yahoo Finance chart API
type YahooSource struct {
	client  *http.Client
	baseURL string
	log     zerolog.Logger
}

// NewYahooSource creates a Yahoo Finance source. An empty baseURL uses the public host.
func NewYahooSource(baseURL string, log zerolog.Logger) *YahooSource {
	if baseURL == "" {
		baseURL = DefaultYahooBaseURL
	}
	return &YahooSource{
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
		log:     log.With().Str("client", "yahoo").Logger(),
	}
}

// chartResponse is the subset of /v8/finance/chart used here. Pointers
// distinguish JSON nulls, which Yahoo emits for bars with no trades.
type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				RegularMarketPrice  *float64 `json:"regularMarketPrice"`
				RegularMarketVolume *int64   `json:"regularMarketVolume"`
				RegularMarketTime   *int64   `json:"regularMarketTime"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close  []*float64 `json:"close"`
					Volume []*int64   `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// Name implements QuoteSource
func (s *YahooSource) Name() string { return "yahoo" }

// Ping fetches a well known symbol
func (s *YahooSource) Ping(ctx context.Context) error {
	_, err := s.fetchChart(ctx, "AAPL", "1d", "1d")
	return err
}

// Latest returns the regular market price and volume. A quote missing
// either is reported as ErrQuoteUnavailable.
func (s *YahooSource) Latest(ctx context.Context, symbol string) (Quote, error) {
	chart, err := s.fetchChart(ctx, symbol, "1d", "1m")
	if err != nil {
		return Quote{}, err
	}
	if len(chart.Chart.Result) == 0 {
		return Quote{}, ErrQuoteUnavailable
	}

	meta := chart.Chart.Result[0].Meta
	if meta.RegularMarketPrice == nil || *meta.RegularMarketPrice <= 0 || meta.RegularMarketVolume == nil {
		return Quote{}, ErrQuoteUnavailable
	}
	q := Quote{
		Price:     *meta.RegularMarketPrice,
		Volume:    *meta.RegularMarketVolume,
		Timestamp: time.Now().UTC(),
	}
	if meta.RegularMarketTime != nil {
		q.Timestamp = time.Unix(*meta.RegularMarketTime, 0).UTC()
	}
	return q, nil
}

// Intraday returns today's one-minute bars, oldest first, skipping bars without a close
func (s *YahooSource) Intraday(ctx context.Context, symbol string) ([]Quote, error) {
	chart, err := s.fetchChart(ctx, symbol, "1d", "1m")
	if err != nil {
		return nil, err
	}
	if len(chart.Chart.Result) == 0 || len(chart.Chart.Result[0].Indicators.Quote) == 0 {
		s.log.Warn().Str("symbol", symbol).Msg("No intraday data returned")
		return nil, nil
	}

	result := chart.Chart.Result[0]
	bars := result.Indicators.Quote[0]
	quotes := make([]Quote, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		if i >= len(bars.Close) || bars.Close[i] == nil || *bars.Close[i] <= 0 {
			continue
		}
		q := Quote{Price: *bars.Close[i], Timestamp: time.Unix(ts, 0).UTC()}
		if i < len(bars.Volume) && bars.Volume[i] != nil {
			q.Volume = *bars.Volume[i]
		}
		quotes = append(quotes, q)
	}

	s.log.Debug().Str("symbol", symbol).Int("count", len(quotes)).Msg("Fetched intraday bars")
	return quotes, nil
}

func (s *YahooSource) fetchChart(ctx context.Context, symbol, rng, interval string) (*chartResponse, error) {
	params := url.Values{}
	params.Add("range", rng)
	params.Add("interval", interval)
	reqURL := s.baseURL + "/v8/finance/chart/" + url.PathEscape(symbol) + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36")
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch chart for %s: %w", symbol, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("yahoo chart API returned status %d for %s: %s", resp.StatusCode, symbol, string(body))
	}

	var chart chartResponse
	if err := json.Unmarshal(body, &chart); err != nil {
		return nil, fmt.Errorf("failed to parse chart response: %w", err)
	}
	if chart.Chart.Error != nil {
		return nil, fmt.Errorf("yahoo chart API error for %s: %s: %s", symbol, chart.Chart.Error.Code, chart.Chart.Error.Description)
	}
	return &chart, nil
}

package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/txrecon/txrecon/internal/domain"
)

// rangeWindow is the window requested around the target instant; the
// point nearest the target wins.
const rangeWindow = time.Hour

// RangeSource is the coarsest price tier: a market-chart range
// aggregator (CoinGecko-compatible). Last resort because its sampling
// gaps widen for far-past instants. It also serves live prices.
type RangeSource struct {
	baseURL string
	apiKey  string
	fiat    string
	client  *http.Client
}

func NewRangeSource(baseURL, apiKey, fiat string, client *http.Client) *RangeSource {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if fiat == "" {
		fiat = "EUR"
	}
	return &RangeSource{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		fiat:    strings.ToLower(fiat),
		client:  client,
	}
}

func (s *RangeSource) Name() string { return domain.SourceRange }

func (s *RangeSource) get(ctx context.Context, path string, params url.Values, out any) error {
	if s.apiKey != "" {
		params.Set("x_cg_demo_api_key", s.apiKey)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		s.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "range source request failed")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("range source status %d", resp.StatusCode)
	}
	return decodeJSON(resp, out)
}

// HistoricalPrice requests a ±1-hour window of price points and picks
// the one nearest the target instant.
func (s *RangeSource) HistoricalPrice(ctx context.Context, symbol string, at time.Time) (decimal.Decimal, error) {
	coinID, ok := coingeckoIDs[strings.ToUpper(symbol)]
	if !ok {
		return decimal.Decimal{}, errors.Errorf("asset %s has no range source mapping", symbol)
	}

	params := url.Values{}
	params.Set("vs_currency", s.fiat)
	params.Set("from", strconv.FormatInt(at.Add(-rangeWindow).Unix(), 10))
	params.Set("to", strconv.FormatInt(at.Add(rangeWindow).Unix(), 10))

	var chart struct {
		// Each point is [timestamp_ms, price].
		Prices [][2]float64 `json:"prices"`
	}
	if err := s.get(ctx, fmt.Sprintf("/coins/%s/market_chart/range", coinID), params, &chart); err != nil {
		return decimal.Decimal{}, err
	}
	if len(chart.Prices) == 0 {
		return decimal.Decimal{}, errors.Errorf("no %s price points around %s", symbol, at)
	}

	target := float64(at.UnixMilli())
	closest := chart.Prices[0]
	minDiff := absFloat(chart.Prices[0][0] - target)
	for _, point := range chart.Prices[1:] {
		if diff := absFloat(point[0] - target); diff < minDiff {
			minDiff = diff
			closest = point
		}
	}
	if closest[1] <= 0 {
		return decimal.Decimal{}, errors.Errorf("non-positive %s price point", symbol)
	}
	return decimal.NewFromFloat(closest[1]), nil
}

// CurrentPrice returns the live price of one asset.
func (s *RangeSource) CurrentPrice(ctx context.Context, symbol string) (domain.PriceQuote, error) {
	prices, err := s.CurrentPrices(ctx, []string{symbol})
	if err != nil {
		return domain.PriceQuote{}, err
	}
	quote, ok := prices[strings.ToUpper(symbol)]
	if !ok {
		return domain.PriceQuote{}, errors.Errorf("no live price data for %s", symbol)
	}
	return quote, nil
}

// CurrentPrices returns live prices for several assets in one request.
// Assets without a source mapping are silently absent from the result.
func (s *RangeSource) CurrentPrices(ctx context.Context, symbols []string) (map[string]domain.PriceQuote, error) {
	ids := make([]string, 0, len(symbols))
	bySymbol := make(map[string]string, len(symbols))
	for _, sym := range symbols {
		sym = strings.ToUpper(sym)
		if id, ok := coingeckoIDs[sym]; ok {
			ids = append(ids, id)
			bySymbol[sym] = id
		}
	}
	if len(ids) == 0 {
		return map[string]domain.PriceQuote{}, nil
	}

	params := url.Values{}
	params.Set("ids", strings.Join(ids, ","))
	params.Set("vs_currencies", s.fiat)

	var data map[string]map[string]float64
	if err := s.get(ctx, "/simple/price", params, &data); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	quotes := make(map[string]domain.PriceQuote, len(bySymbol))
	for sym, id := range bySymbol {
		price, ok := data[id][s.fiat]
		if !ok || price <= 0 {
			continue
		}
		quotes[sym] = domain.PriceQuote{
			Symbol:   sym,
			Price:    decimal.NewFromFloat(price),
			Currency: strings.ToUpper(s.fiat),
			Source:   s.Name(),
			Instant:  now,
		}
	}
	return quotes, nil
}

func decodeJSON(resp *http.Response, out any) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "read response body")
	}
	if err := json.Unmarshal(body, out); err != nil {
		return errors.Wrap(err, "decode response")
	}
	return nil
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

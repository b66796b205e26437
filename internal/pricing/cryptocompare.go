package pricing

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/txrecon/txrecon/internal/cache"
	"github.com/txrecon/txrecon/internal/domain"
)

// minuteHistoryMaxAge is how far back the aggregator keeps
// minute-resolution data; older instants fall back to hour resolution.
const minuteHistoryMaxAge = 7 * 24 * time.Hour

// AggregatorSource is the middle price tier: an hour/minute history
// aggregator (CryptoCompare-compatible). It picks the latest data point
// at or before the target instant.
type AggregatorSource struct {
	baseURL string
	apiKey  string
	fiat    string
	client  *http.Client
	clock   cache.Clock
}

// NewAggregatorSource builds the tier-2 source. The clock decides the
// instant's age for minute vs hour resolution; nil means wall clock.
func NewAggregatorSource(baseURL, apiKey, fiat string, client *http.Client, clock cache.Clock) *AggregatorSource {
	if client == nil {
		client = &http.Client{Timeout: 8 * time.Second}
	}
	if clock == nil {
		clock = cache.SystemClock()
	}
	if fiat == "" {
		fiat = "EUR"
	}
	return &AggregatorSource{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		fiat:    strings.ToUpper(fiat),
		client:  client,
		clock:   clock,
	}
}

func (s *AggregatorSource) Name() string { return domain.SourceAggregator }

type histResponse struct {
	Data struct {
		Data []struct {
			Time  int64   `json:"time"`
			Close float64 `json:"close"`
		} `json:"Data"`
	} `json:"Data"`
}

func (s *AggregatorSource) fetchClose(ctx context.Context, endpoint, symbol string, at time.Time) (decimal.Decimal, bool, error) {
	params := url.Values{}
	params.Set("fsym", strings.ToUpper(symbol))
	params.Set("tsym", s.fiat)
	params.Set("limit", "1")
	params.Set("toTs", strconv.FormatInt(at.Unix(), 10))
	if s.apiKey != "" {
		params.Set("api_key", s.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		s.baseURL+endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return decimal.Decimal{}, false, errors.Wrap(err, "build request")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return decimal.Decimal{}, false, errors.Wrap(err, "aggregator request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decimal.Decimal{}, false, errors.Errorf("aggregator status %d", resp.StatusCode)
	}

	var hist histResponse
	if err := decodeJSON(resp, &hist); err != nil {
		return decimal.Decimal{}, false, err
	}

	points := hist.Data.Data
	if len(points) == 0 {
		return decimal.Decimal{}, false, nil
	}
	// The last point is the one closest to toTs.
	last := points[len(points)-1]
	if last.Close <= 0 {
		return decimal.Decimal{}, false, nil
	}
	return decimal.NewFromFloat(last.Close), true, nil
}

// HistoricalPrice uses minute resolution for instants younger than seven
// days and hour resolution otherwise.
func (s *AggregatorSource) HistoricalPrice(ctx context.Context, symbol string, at time.Time) (decimal.Decimal, error) {
	if s.clock.Now().Sub(at) < minuteHistoryMaxAge {
		price, ok, err := s.fetchClose(ctx, "/v2/histominute", symbol, at)
		if err != nil {
			return decimal.Decimal{}, err
		}
		if ok {
			return price, nil
		}
	}

	price, ok, err := s.fetchClose(ctx, "/v2/histohour", symbol, at)
	if err != nil {
		return decimal.Decimal{}, err
	}
	if !ok {
		return decimal.Decimal{}, errors.Errorf("no %s history at %s", symbol, at)
	}
	return price, nil
}

package pricing

import (
	"context"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/txrecon/txrecon/internal/domain"
)

// CandleSource is the finest price tier: 1-minute klines from the
// Binance exchange, queried on the direct fiat pair. No API key is
// needed for kline history.
type CandleSource struct {
	client *binance.Client
	fiat   string
}

// NewCandleSource builds the tier-1 source. An empty fiat defaults to
// EUR.
func NewCandleSource(client *binance.Client, fiat string) *CandleSource {
	if client == nil {
		client = binance.NewClient("", "")
	}
	if fiat == "" {
		fiat = "EUR"
	}
	return &CandleSource{client: client, fiat: strings.ToUpper(fiat)}
}

func (s *CandleSource) Name() string { return domain.SourceCandle }

// HistoricalPrice asks for the 1-minute candle covering the instant. If
// that exact minute has no candle, the window widens to five minutes and
// the candle whose open time is nearest the target wins.
func (s *CandleSource) HistoricalPrice(ctx context.Context, symbol string, at time.Time) (decimal.Decimal, error) {
	symbol = strings.ToUpper(symbol)
	if !candlePairs[symbol] {
		return decimal.Decimal{}, errors.Errorf("no %s candle pair for %s", s.fiat, symbol)
	}
	pair := symbol + s.fiat
	target := at.UnixMilli()

	klines, err := s.client.NewKlinesService().
		Symbol(pair).
		Interval("1m").
		StartTime(target).
		EndTime(target + 60_000).
		Limit(1).
		Do(ctx)
	if err != nil {
		return decimal.Decimal{}, errors.Wrapf(err, "klines %s", pair)
	}

	if len(klines) == 0 {
		klines, err = s.client.NewKlinesService().
			Symbol(pair).
			Interval("1m").
			StartTime(target - 2*60_000).
			EndTime(target + 3*60_000).
			Limit(5).
			Do(ctx)
		if err != nil {
			return decimal.Decimal{}, errors.Wrapf(err, "klines %s widened window", pair)
		}
		if len(klines) == 0 {
			return decimal.Decimal{}, errors.Errorf("no candle near %s for %s", at, pair)
		}
	}

	closest := nearestKline(klines, target)
	price, err := decimal.NewFromString(closest.Close)
	if err != nil {
		return decimal.Decimal{}, errors.Wrapf(err, "parse close price %q", closest.Close)
	}
	return price, nil
}

// nearestKline picks the candle whose open time is closest to the target
// instant (milliseconds).
func nearestKline(klines []*binance.Kline, target int64) *binance.Kline {
	closest := klines[0]
	minDiff := absInt64(klines[0].OpenTime - target)
	for _, k := range klines[1:] {
		if diff := absInt64(k.OpenTime - target); diff < minDiff {
			minDiff = diff
			closest = k
		}
	}
	return closest
}

func absInt64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

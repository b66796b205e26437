// Package pricing resolves historical fiat prices by cross-checking
// several independently-precise sources. Sources are ordered by claimed
// precision; queries fan out concurrently and the tier order, not the
// response order, decides the recommended quote.
package pricing

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Source is one historical price feed. Implementations return an error
// for anything unusable (network failure, unknown symbol, non-positive
// price); the resolver treats every error as a silent absence.
type Source interface {
	// Name identifies the source in reconciliations and traces.
	Name() string
	// HistoricalPrice returns the fiat price of symbol at the instant.
	HistoricalPrice(ctx context.Context, symbol string, at time.Time) (decimal.Decimal, error)
}

// coingeckoIDs maps asset symbols to the range aggregator's coin IDs.
var coingeckoIDs = map[string]string{
	"BTC":   "bitcoin",
	"ETH":   "ethereum",
	"BNB":   "binancecoin",
	"SOL":   "solana",
	"ADA":   "cardano",
	"DOT":   "polkadot",
	"AVAX":  "avalanche-2",
	"MATIC": "matic-network",
	"LINK":  "chainlink",
	"UNI":   "uniswap",
	"FTM":   "fantom",
	"CRO":   "crypto-com-chain",
}

// candlePairs lists the assets with a direct fiat pair on the
// minute-candle source.
var candlePairs = map[string]bool{
	"BTC": true, "ETH": true, "BNB": true, "SOL": true, "ADA": true,
	"DOT": true, "AVAX": true, "MATIC": true, "LINK": true, "UNI": true,
}

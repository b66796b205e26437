package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Price source identifiers, ordered by claimed precision. SourceCandle is
// the finest (1-minute candles), SourceRange the coarsest.
const (
	SourceCandle     = "binance"
	SourceAggregator = "cryptocompare"
	SourceRange      = "coingecko"
	SourceAverage    = "average"
)

// PriceQuote is one fiat price for an asset at an instant, attributed to
// the source that produced it.
type PriceQuote struct {
	Symbol   string          `json:"symbol"`
	Price    decimal.Decimal `json:"price"`
	Currency string          `json:"currency"`
	Source   string          `json:"source"`
	Instant  time.Time       `json:"instant"`
}

// PriceReconciliation is the cross-checked answer of every price source
// for one (asset, instant) pair. A nil entry in Sources means that source
// did not answer; absence is normal, never an error.
type PriceReconciliation struct {
	Sources map[string]*decimal.Decimal `json:"sources"`
	// Average is the arithmetic mean of the sources that answered.
	Average *decimal.Decimal `json:"average"`
	// Recommended is the answer of the most precise source that
	// responded, falling back to the average.
	Recommended       *decimal.Decimal `json:"recommended"`
	RecommendedSource string           `json:"recommendedSource,omitempty"`
	SourcesCount      int              `json:"sourcesCount"`
}

// HasPrice reports whether any usable price was found.
func (r PriceReconciliation) HasPrice() bool {
	return r.Recommended != nil
}

package pricing

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/txrecon/txrecon/internal/cache"
	"github.com/txrecon/txrecon/internal/domain"
)

const (
	historicalTTL = time.Hour
	liveTTL       = 60 * time.Second
)

// LiveSource serves current (no historical instant) prices.
type LiveSource interface {
	CurrentPrice(ctx context.Context, symbol string) (domain.PriceQuote, error)
	CurrentPrices(ctx context.Context, symbols []string) (map[string]domain.PriceQuote, error)
}

// Resolver fans a historical price query out to every source
// concurrently and reconciles the answers. The sources slice is ordered
// by claimed precision, finest first; that order, not response timing,
// breaks ties.
type Resolver struct {
	sources []Source
	live    LiveSource
	fiat    string
	logger  *zap.Logger

	reconCache *cache.Cache[domain.PriceReconciliation]
	quoteCache *cache.Cache[domain.PriceQuote]
	liveCache  *cache.Cache[domain.PriceQuote]
}

// NewResolver builds a resolver over precision-ordered sources. A nil
// clock means wall-clock cache expiry.
func NewResolver(sources []Source, live LiveSource, fiat string, logger *zap.Logger, clock cache.Clock) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	if fiat == "" {
		fiat = "EUR"
	}
	return &Resolver{
		sources:    sources,
		live:       live,
		fiat:       strings.ToUpper(fiat),
		logger:     logger,
		reconCache: cache.New[domain.PriceReconciliation](clock),
		quoteCache: cache.New[domain.PriceQuote](clock),
		liveCache:  cache.New[domain.PriceQuote](clock),
	}
}

// fanOut queries every source concurrently and returns the answers in
// source order. Errors and non-positive prices are absences.
func (r *Resolver) fanOut(ctx context.Context, symbol string, at time.Time) []*decimal.Decimal {
	results := make([]*decimal.Decimal, len(r.sources))

	var wg sync.WaitGroup
	for i, src := range r.sources {
		wg.Add(1)
		go func(i int, src Source) {
			defer wg.Done()
			price, err := src.HistoricalPrice(ctx, symbol, at)
			if err != nil {
				r.logger.Debug("price source did not answer",
					zap.String("source", src.Name()),
					zap.String("symbol", symbol),
					zap.Time("instant", at),
					zap.Error(err))
				return
			}
			if !price.IsPositive() {
				return
			}
			results[i] = &price
		}(i, src)
	}
	wg.Wait()

	return results
}

func histKey(symbol string, at time.Time) string {
	return fmt.Sprintf("%s:%d", symbol, at.Unix())
}

// ResolveAt returns the answer of the most precise source that responded
// for the instant. It fails only when every source is silent.
func (r *Resolver) ResolveAt(ctx context.Context, symbol string, at time.Time) (domain.PriceQuote, error) {
	symbol = strings.ToUpper(symbol)
	key := histKey(symbol, at)
	if cached, ok := r.quoteCache.Get(key); ok {
		return cached, nil
	}

	results := r.fanOut(ctx, symbol, at)
	for i, price := range results {
		if price == nil {
			continue
		}
		quote := domain.PriceQuote{
			Symbol:   symbol,
			Price:    *price,
			Currency: r.fiat,
			Source:   r.sources[i].Name(),
			Instant:  at,
		}
		r.quoteCache.Set(key, quote, historicalTTL)
		return quote, nil
	}

	return domain.PriceQuote{}, errors.Errorf("no historical price available for %s at %s", symbol, at)
}

// ResolveAllSources returns every source's answer for the instant, their
// mean, and the tier-priority recommendation. Absent sources are nil
// entries; a fully silent reconciliation is a valid result, not an
// error.
func (r *Resolver) ResolveAllSources(ctx context.Context, symbol string, at time.Time) domain.PriceReconciliation {
	symbol = strings.ToUpper(symbol)
	key := histKey(symbol, at)
	if cached, ok := r.reconCache.Get(key); ok {
		return cached
	}

	results := r.fanOut(ctx, symbol, at)

	recon := domain.PriceReconciliation{
		Sources: make(map[string]*decimal.Decimal, len(r.sources)),
	}
	sum := decimal.Zero
	for i, price := range results {
		recon.Sources[r.sources[i].Name()] = price
		if price == nil {
			continue
		}
		sum = sum.Add(*price)
		recon.SourcesCount++

		if recon.Recommended == nil {
			// Sources are precision-ordered, so the first present
			// answer is the recommended one.
			recon.Recommended = price
			recon.RecommendedSource = r.sources[i].Name()
		}
	}
	if recon.SourcesCount > 0 {
		avg := sum.Div(decimal.NewFromInt(int64(recon.SourcesCount)))
		recon.Average = &avg
	}
	if recon.Recommended == nil && recon.Average != nil {
		recon.Recommended = recon.Average
		recon.RecommendedSource = domain.SourceAverage
	}

	r.reconCache.Set(key, recon, historicalTTL)
	return recon
}

// CurrentPrice returns the live price of symbol, cached for a minute.
func (r *Resolver) CurrentPrice(ctx context.Context, symbol string) (domain.PriceQuote, error) {
	symbol = strings.ToUpper(symbol)
	if cached, ok := r.liveCache.Get(symbol); ok {
		return cached, nil
	}
	if r.live == nil {
		return domain.PriceQuote{}, errors.New("no live price source configured")
	}

	quote, err := r.live.CurrentPrice(ctx, symbol)
	if err != nil {
		return domain.PriceQuote{}, errors.Wrapf(err, "live price for %s", symbol)
	}
	r.liveCache.Set(symbol, quote, liveTTL)
	return quote, nil
}

// CurrentPrices returns live prices for several assets. Cached entries
// are served as is, the rest are fetched in one batch.
func (r *Resolver) CurrentPrices(ctx context.Context, symbols []string) (map[string]domain.PriceQuote, error) {
	out := make(map[string]domain.PriceQuote, len(symbols))
	var missing []string
	for _, sym := range symbols {
		sym = strings.ToUpper(sym)
		if cached, ok := r.liveCache.Get(sym); ok {
			out[sym] = cached
		} else {
			missing = append(missing, sym)
		}
	}
	if len(missing) == 0 {
		return out, nil
	}
	if r.live == nil {
		return nil, errors.New("no live price source configured")
	}

	fetched, err := r.live.CurrentPrices(ctx, missing)
	if err != nil {
		return nil, errors.Wrap(err, "live prices")
	}
	for sym, quote := range fetched {
		r.liveCache.Set(sym, quote, liveTTL)
		out[sym] = quote
	}
	return out, nil
}

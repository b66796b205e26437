package pricing

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/txrecon/txrecon/internal/domain"
)

// stubSource answers with a fixed price after an optional delay, or
// errors when price is nil. It counts calls for cache assertions.
type stubSource struct {
	name  string
	price *decimal.Decimal
	delay time.Duration
	calls atomic.Int32
}

func (s *stubSource) Name() string { return s.name }

func (s *stubSource) HistoricalPrice(_ context.Context, _ string, _ time.Time) (decimal.Decimal, error) {
	s.calls.Add(1)
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	if s.price == nil {
		return decimal.Decimal{}, errors.New("source unavailable")
	}
	return *s.price, nil
}

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func newTestResolver(sources ...Source) *Resolver {
	return NewResolver(sources, nil, "EUR", nil, nil)
}

func TestResolveAtTierPriorityBeatsResponseOrder(t *testing.T) {
	// Tier 1 is the slowest responder; its answer must still win.
	tier1 := &stubSource{name: domain.SourceCandle, price: dec("50000"), delay: 30 * time.Millisecond}
	tier2 := &stubSource{name: domain.SourceAggregator, price: dec("50010")}
	tier3 := &stubSource{name: domain.SourceRange, price: nil}

	resolver := newTestResolver(tier1, tier2, tier3)
	quote, err := resolver.ResolveAt(context.Background(), "BTC", time.Unix(1700000000, 0))
	require.NoError(t, err)

	assert.True(t, quote.Price.Equal(decimal.NewFromInt(50000)))
	assert.Equal(t, domain.SourceCandle, quote.Source)
	assert.Equal(t, "BTC", quote.Symbol)
	assert.Equal(t, "EUR", quote.Currency)
}

func TestResolveAtFallsThroughTiers(t *testing.T) {
	tier1 := &stubSource{name: domain.SourceCandle, price: nil}
	tier2 := &stubSource{name: domain.SourceAggregator, price: nil}
	tier3 := &stubSource{name: domain.SourceRange, price: dec("49990")}

	resolver := newTestResolver(tier1, tier2, tier3)
	quote, err := resolver.ResolveAt(context.Background(), "BTC", time.Unix(1700000000, 0))
	require.NoError(t, err)
	assert.Equal(t, domain.SourceRange, quote.Source)
}

func TestResolveAtAllSilent(t *testing.T) {
	resolver := newTestResolver(
		&stubSource{name: domain.SourceCandle, price: nil},
		&stubSource{name: domain.SourceAggregator, price: nil},
		&stubSource{name: domain.SourceRange, price: nil},
	)

	_, err := resolver.ResolveAt(context.Background(), "ZZZ", time.Unix(1700000000, 0))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no historical price available")
}

func TestResolveAtConcurrentFanOut(t *testing.T) {
	// Three sources, each sleeping 40ms: a sequential resolver would
	// need 120ms.
	const delay = 40 * time.Millisecond
	resolver := newTestResolver(
		&stubSource{name: domain.SourceCandle, price: dec("1"), delay: delay},
		&stubSource{name: domain.SourceAggregator, price: dec("1"), delay: delay},
		&stubSource{name: domain.SourceRange, price: dec("1"), delay: delay},
	)

	start := time.Now()
	_, err := resolver.ResolveAt(context.Background(), "BTC", time.Unix(1700000000, 0))
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 3*delay,
		"sources must be queried concurrently, not sequentially")
}

func TestResolveAllSources(t *testing.T) {
	tier1 := &stubSource{name: domain.SourceCandle, price: nil}
	tier2 := &stubSource{name: domain.SourceAggregator, price: dec("100")}
	tier3 := &stubSource{name: domain.SourceRange, price: dec("104")}

	resolver := newTestResolver(tier1, tier2, tier3)
	recon := resolver.ResolveAllSources(context.Background(), "ETH", time.Unix(1700000000, 0))

	assert.Equal(t, 2, recon.SourcesCount)
	assert.Nil(t, recon.Sources[domain.SourceCandle])
	require.NotNil(t, recon.Sources[domain.SourceAggregator])
	require.NotNil(t, recon.Average)
	assert.True(t, recon.Average.Equal(decimal.NewFromInt(102)), "average = %s", recon.Average)
	require.NotNil(t, recon.Recommended)
	assert.True(t, recon.Recommended.Equal(decimal.NewFromInt(100)),
		"the most precise answering tier is recommended")
	assert.Equal(t, domain.SourceAggregator, recon.RecommendedSource)
	assert.True(t, recon.HasPrice())
}

func TestResolveAllSourcesEmpty(t *testing.T) {
	resolver := newTestResolver(
		&stubSource{name: domain.SourceCandle, price: nil},
		&stubSource{name: domain.SourceAggregator, price: nil},
		&stubSource{name: domain.SourceRange, price: nil},
	)

	recon := resolver.ResolveAllSources(context.Background(), "ZZZ", time.Unix(1700000000, 0))

	assert.Equal(t, 0, recon.SourcesCount)
	assert.Nil(t, recon.Average)
	assert.Nil(t, recon.Recommended)
	assert.False(t, recon.HasPrice())
}

func TestResolveAllSourcesNonPositiveIsAbsent(t *testing.T) {
	resolver := newTestResolver(
		&stubSource{name: domain.SourceCandle, price: dec("0")},
		&stubSource{name: domain.SourceAggregator, price: dec("200")},
	)

	recon := resolver.ResolveAllSources(context.Background(), "ETH", time.Unix(1700000000, 0))

	assert.Nil(t, recon.Sources[domain.SourceCandle],
		"a non-positive price reads as a silent source")
	assert.Equal(t, 1, recon.SourcesCount)
	assert.Equal(t, domain.SourceAggregator, recon.RecommendedSource)
}

func TestResolveAllSourcesCached(t *testing.T) {
	tier1 := &stubSource{name: domain.SourceCandle, price: dec("50000")}
	resolver := newTestResolver(tier1)
	at := time.Unix(1700000000, 0)

	for i := 0; i < 3; i++ {
		resolver.ResolveAllSources(context.Background(), "BTC", at)
	}
	assert.Equal(t, int32(1), tier1.calls.Load(),
		"repeated queries for the same (symbol, instant) hit the cache")

	// A different instant is a different cache entry.
	resolver.ResolveAllSources(context.Background(), "BTC", at.Add(time.Minute))
	assert.Equal(t, int32(2), tier1.calls.Load())
}

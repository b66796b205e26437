package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/txrecon/txrecon/internal/adapters"
	"github.com/txrecon/txrecon/internal/domain"
	"github.com/txrecon/txrecon/internal/registry"
)

type fakeRegistry struct {
	chains      map[string]domain.ChainConfig
	credential  string
	hashOK      bool
	addressOK   bool
	getCalls    int
	credErr     error
	validatedHs []string
}

func (f *fakeRegistry) Get(_ context.Context, symbol string) (domain.ChainConfig, error) {
	f.getCalls++
	cfg, ok := f.chains[symbol]
	if !ok {
		return domain.ChainConfig{}, registry.ErrConfigNotFound
	}
	return cfg, nil
}

func (f *fakeRegistry) List(_ context.Context, includeInactive bool) ([]domain.ChainConfig, error) {
	var out []domain.ChainConfig
	for _, cfg := range f.chains {
		if cfg.Active || includeInactive {
			out = append(out, cfg)
		}
	}
	return out, nil
}

func (f *fakeRegistry) Credential(_ context.Context, _ string) (string, error) {
	return f.credential, f.credErr
}

func (f *fakeRegistry) ValidateHash(text string, _ domain.ChainConfig) bool {
	f.validatedHs = append(f.validatedHs, text)
	return f.hashOK
}

func (f *fakeRegistry) ValidateAddress(string, domain.ChainConfig) bool {
	return f.addressOK
}

type fakeAdapter struct {
	facts      domain.TransactionFacts
	err        error
	fetchCalls int
	lastReq    adapters.Request
}

func (f *fakeAdapter) FetchFacts(_ context.Context, req adapters.Request) (domain.TransactionFacts, error) {
	f.fetchCalls++
	f.lastReq = req
	if f.err != nil {
		return domain.TransactionFacts{}, f.err
	}
	return f.facts, nil
}

func (f *fakeAdapter) ListOutputs(_ context.Context, req adapters.Request) ([]domain.Output, error) {
	f.lastReq = req
	return f.facts.Outputs, nil
}

type fakeResolver struct {
	recon domain.PriceReconciliation
	calls int
}

func (f *fakeResolver) ResolveAllSources(context.Context, string, time.Time) domain.PriceReconciliation {
	f.calls++
	return f.recon
}

type memJournal struct {
	mu      sync.Mutex
	entries []domain.AuditEntry
	err     error
}

func (j *memJournal) Append(entry domain.AuditEntry) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.err != nil {
		return j.err
	}
	j.entries = append(j.entries, entry)
	return nil
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func btcConfig() domain.ChainConfig {
	return domain.ChainConfig{
		Symbol:      "BTC",
		Name:        "Bitcoin",
		AssetSymbol: "BTC",
		Kind:        domain.AdapterUTXO,
		Active:      true,
	}
}

func testFacts() domain.TransactionFacts {
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	height := int64(832000)
	return domain.TransactionFacts{
		Hash:         "deadbeef",
		ChainSymbol:  "BTC",
		Timestamp:    &ts,
		Confirmation: domain.StateConfirmed,
		BlockHeight:  &height,
		Quantity:     dec("0.5"),
		Fee:          dec("0.0001"),
		From:         "bc1sender",
		To:           "bc1recipient",
		Outputs: []domain.Output{
			{Address: "bc1recipient", Amount: dec("0.5")},
		},
		TotalOutputs:    2,
		RelevantOutputs: 1,
	}
}

func newVerifier(reg Registry, resolver PriceResolver, adapter adapters.Adapter, opts ...Option) *Verifier {
	factory := func(domain.AdapterKind) (adapters.Adapter, error) { return adapter, nil }
	return New(reg, resolver, factory, zap.NewNop(), opts...)
}

func TestVerifySuccessWithPrice(t *testing.T) {
	reg := &fakeRegistry{
		chains:    map[string]domain.ChainConfig{"BTC": btcConfig()},
		hashOK:    true,
		addressOK: true,
	}
	adapter := &fakeAdapter{facts: testFacts()}
	resolver := &fakeResolver{recon: domain.PriceReconciliation{
		Sources: map[string]*decimal.Decimal{
			domain.SourceCandle:     decPtr("60000"),
			domain.SourceAggregator: decPtr("60100"),
			domain.SourceRange:      nil,
		},
		Average:           decPtr("60050"),
		Recommended:       decPtr("60000"),
		RecommendedSource: domain.SourceCandle,
		SourcesCount:      2,
	}}
	journal := &memJournal{}

	env := newVerifier(reg, resolver, adapter, WithJournal(journal)).
		Verify(context.Background(), "deadbeef", "BTC", "bc1recipient")

	require.True(t, env.Success)
	require.NotNil(t, env.Data)
	record := env.Data

	assert.NotEmpty(t, record.ID)
	assert.Equal(t, "deadbeef", record.Hash)
	assert.Equal(t, "BTC", record.ChainSymbol)
	assert.Equal(t, "EUR", record.Currency)
	assert.Equal(t, domain.StateConfirmed, record.Confirmation)

	require.NotNil(t, record.PriceAtInstant)
	assert.True(t, record.PriceAtInstant.Equal(dec("60000")))
	require.NotNil(t, record.EstimatedValue)
	assert.True(t, record.EstimatedValue.Equal(dec("30000")))

	calc := record.Trace.Calculation
	require.NotNil(t, calc.FeeFiat)
	assert.True(t, calc.FeeFiat.Equal(dec("6")))
	require.NotNil(t, calc.Total)
	assert.True(t, calc.Total.Equal(dec("30006")))
	assert.Equal(t, domain.SourceCandle, calc.PriceSource)

	require.Len(t, journal.entries, 1)
	assert.True(t, journal.entries[0].Success)
	assert.Equal(t, record.ID, journal.entries[0].ID)
}

func TestVerifySuccessWithoutPrice(t *testing.T) {
	reg := &fakeRegistry{
		chains: map[string]domain.ChainConfig{"BTC": btcConfig()},
		hashOK: true,
	}
	adapter := &fakeAdapter{facts: testFacts()}
	resolver := &fakeResolver{recon: domain.PriceReconciliation{
		Sources: map[string]*decimal.Decimal{
			domain.SourceCandle:     nil,
			domain.SourceAggregator: nil,
			domain.SourceRange:      nil,
		},
	}}

	env := newVerifier(reg, resolver, adapter).Verify(context.Background(), "deadbeef", "BTC", "")

	require.True(t, env.Success)
	assert.Nil(t, env.Data.PriceAtInstant)
	assert.Nil(t, env.Data.EstimatedValue)
	assert.Nil(t, env.Data.Trace.Calculation.Total)
	assert.True(t, env.Data.Quantity.Equal(dec("0.5")))
}

func TestVerifyNoTimestampSkipsPricing(t *testing.T) {
	reg := &fakeRegistry{
		chains: map[string]domain.ChainConfig{"BTC": btcConfig()},
		hashOK: true,
	}
	facts := testFacts()
	facts.Timestamp = nil
	facts.Confirmation = domain.StateUnconfirmed
	adapter := &fakeAdapter{facts: facts}
	resolver := &fakeResolver{}

	env := newVerifier(reg, resolver, adapter).Verify(context.Background(), "deadbeef", "BTC", "")

	require.True(t, env.Success)
	assert.Zero(t, resolver.calls)
	assert.Nil(t, env.Data.PriceAtInstant)
}

func TestVerifyUnknownChain(t *testing.T) {
	reg := &fakeRegistry{chains: map[string]domain.ChainConfig{}}
	adapter := &fakeAdapter{}

	env := newVerifier(reg, &fakeResolver{}, adapter).Verify(context.Background(), "deadbeef", "XYZ", "")

	assert.False(t, env.Success)
	assert.Equal(t, domain.CodeFormatInvalid, env.Error)
	assert.Zero(t, adapter.fetchCalls)
}

func TestVerifyBadHashNeverReachesAdapter(t *testing.T) {
	reg := &fakeRegistry{
		chains: map[string]domain.ChainConfig{"BTC": btcConfig()},
		hashOK: false,
	}
	adapter := &fakeAdapter{facts: testFacts()}
	resolver := &fakeResolver{}

	env := newVerifier(reg, resolver, adapter).Verify(context.Background(), "not-a-hash", "BTC", "")

	assert.False(t, env.Success)
	assert.Equal(t, domain.CodeFormatInvalid, env.Error)
	assert.Zero(t, adapter.fetchCalls)
	assert.Zero(t, resolver.calls)
}

func TestVerifyBadRecipientHint(t *testing.T) {
	reg := &fakeRegistry{
		chains:    map[string]domain.ChainConfig{"BTC": btcConfig()},
		hashOK:    true,
		addressOK: false,
	}
	adapter := &fakeAdapter{facts: testFacts()}

	env := newVerifier(reg, &fakeResolver{}, adapter).Verify(context.Background(), "deadbeef", "BTC", "bogus")

	assert.False(t, env.Success)
	assert.Equal(t, domain.CodeAddressInvalid, env.Error)
	assert.Zero(t, adapter.fetchCalls)
}

func TestVerifyInactiveChain(t *testing.T) {
	cfg := btcConfig()
	cfg.Active = false
	reg := &fakeRegistry{
		chains: map[string]domain.ChainConfig{"BTC": cfg},
		hashOK: true,
	}
	adapter := &fakeAdapter{facts: testFacts()}

	env := newVerifier(reg, &fakeResolver{}, adapter).Verify(context.Background(), "deadbeef", "BTC", "")

	assert.False(t, env.Success)
	assert.Equal(t, domain.CodeAPIError, env.Error)
	assert.Zero(t, adapter.fetchCalls)
}

func TestVerifyFactsErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want domain.ErrorCode
	}{
		{
			name: "not found",
			err:  domain.NewFactsError(domain.KindNotFound, "no such transaction"),
			want: domain.CodeTxNotFound,
		},
		{
			name: "recipient not in transaction",
			err:  domain.NewFactsError(domain.KindRecipientNotInTransaction, "address bc1x not among outputs"),
			want: domain.CodeAddressNotInTx,
		},
		{
			name: "unsupported",
			err:  domain.NewFactsError(domain.KindUnsupported, "enter the transaction manually"),
			want: domain.CodeUnsupported,
		},
		{
			name: "upstream",
			err:  domain.WrapFactsError(domain.KindUpstream, errors.New("502 bad gateway"), "explorer call failed"),
			want: domain.CodeAPIError,
		},
		{
			name: "untyped",
			err:  errors.New("connection reset"),
			want: domain.CodeAPIError,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			reg := &fakeRegistry{
				chains: map[string]domain.ChainConfig{"BTC": btcConfig()},
				hashOK: true,
			}
			adapter := &fakeAdapter{err: tc.err}
			journal := &memJournal{}

			env := newVerifier(reg, &fakeResolver{}, adapter, WithJournal(journal)).
				Verify(context.Background(), "deadbeef", "BTC", "")

			assert.False(t, env.Success)
			assert.Equal(t, tc.want, env.Error)
			require.Len(t, journal.entries, 1)
			assert.False(t, journal.entries[0].Success)
			assert.Equal(t, tc.want, journal.entries[0].Code)
		})
	}
}

func TestVerifyCredentialFailureProceedsUnauthenticated(t *testing.T) {
	reg := &fakeRegistry{
		chains:  map[string]domain.ChainConfig{"BTC": btcConfig()},
		hashOK:  true,
		credErr: errors.New("store unavailable"),
	}
	adapter := &fakeAdapter{facts: testFacts()}
	resolver := &fakeResolver{recon: domain.PriceReconciliation{}}

	env := newVerifier(reg, resolver, adapter).Verify(context.Background(), "deadbeef", "BTC", "")

	require.True(t, env.Success)
	assert.Equal(t, 1, adapter.fetchCalls)
	assert.Empty(t, adapter.lastReq.Credential)
}

func TestVerifyPanicBecomesServerError(t *testing.T) {
	reg := &fakeRegistry{
		chains: map[string]domain.ChainConfig{"BTC": btcConfig()},
		hashOK: true,
	}
	journal := &memJournal{}
	factory := func(domain.AdapterKind) (adapters.Adapter, error) { panic("boom") }
	v := New(reg, &fakeResolver{}, factory, zap.NewNop(), WithJournal(journal))

	env := v.Verify(context.Background(), "deadbeef", "BTC", "")

	assert.False(t, env.Success)
	assert.Equal(t, domain.CodeServerError, env.Error)
	require.Len(t, journal.entries, 1)
	assert.Equal(t, domain.CodeServerError, journal.entries[0].Code)
}

func TestVerifyJournalFailureDoesNotSurface(t *testing.T) {
	reg := &fakeRegistry{
		chains: map[string]domain.ChainConfig{"BTC": btcConfig()},
		hashOK: true,
	}
	adapter := &fakeAdapter{facts: testFacts()}
	journal := &memJournal{err: errors.New("disk full")}

	env := newVerifier(reg, &fakeResolver{}, adapter, WithJournal(journal)).
		Verify(context.Background(), "deadbeef", "BTC", "")

	assert.True(t, env.Success)
}

func TestVerifyEmptySourcesMapNormalized(t *testing.T) {
	reg := &fakeRegistry{
		chains: map[string]domain.ChainConfig{"BTC": btcConfig()},
		hashOK: true,
	}
	adapter := &fakeAdapter{facts: testFacts()}
	resolver := &fakeResolver{recon: domain.PriceReconciliation{}}

	env := newVerifier(reg, resolver, adapter).Verify(context.Background(), "deadbeef", "BTC", "")

	require.True(t, env.Success)
	sources := env.Data.Trace.PriceSources.Sources
	require.NotNil(t, sources)
	assert.Contains(t, sources, domain.SourceCandle)
	assert.Contains(t, sources, domain.SourceAggregator)
	assert.Contains(t, sources, domain.SourceRange)
}

func TestListOutputAddresses(t *testing.T) {
	reg := &fakeRegistry{
		chains:     map[string]domain.ChainConfig{"BTC": btcConfig()},
		credential: "secret",
	}
	adapter := &fakeAdapter{facts: testFacts()}

	outputs, err := newVerifier(reg, &fakeResolver{}, adapter).
		ListOutputAddresses(context.Background(), "deadbeef", "BTC")
	require.NoError(t, err)
	require.Len(t, outputs, 1)
	assert.Equal(t, "bc1recipient", outputs[0].Address)
	assert.Equal(t, "secret", adapter.lastReq.Credential)
}

func TestListOutputAddressesUnknownChain(t *testing.T) {
	reg := &fakeRegistry{chains: map[string]domain.ChainConfig{}}

	_, err := newVerifier(reg, &fakeResolver{}, &fakeAdapter{}).
		ListOutputAddresses(context.Background(), "deadbeef", "XYZ")
	require.Error(t, err)
	assert.True(t, errors.Is(err, registry.ErrConfigNotFound))
}

func TestListSupportedChains(t *testing.T) {
	inactive := btcConfig()
	inactive.Symbol = "ETH"
	inactive.Active = false
	reg := &fakeRegistry{chains: map[string]domain.ChainConfig{
		"BTC": btcConfig(),
		"ETH": inactive,
	}}
	v := newVerifier(reg, &fakeResolver{}, &fakeAdapter{})

	active, err := v.ListSupportedChains(context.Background(), false)
	require.NoError(t, err)
	assert.Len(t, active, 1)

	all, err := v.ListSupportedChains(context.Background(), true)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

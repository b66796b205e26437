// Package pipeline orchestrates one verification request: format
// validation against registry metadata, fact retrieval through the
// dispatched chain adapter, best-effort price enrichment, and assembly
// of the reconciled, auditable record.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/txrecon/txrecon/internal/adapters"
	"github.com/txrecon/txrecon/internal/domain"
	"github.com/txrecon/txrecon/internal/registry"
)

// Registry is the slice of the chain registry the pipeline needs.
type Registry interface {
	Get(ctx context.Context, symbol string) (domain.ChainConfig, error)
	List(ctx context.Context, includeInactive bool) ([]domain.ChainConfig, error)
	Credential(ctx context.Context, symbol string) (string, error)
	ValidateHash(text string, cfg domain.ChainConfig) bool
	ValidateAddress(text string, cfg domain.ChainConfig) bool
}

// PriceResolver cross-checks historical prices. Its answer is
// best-effort: an empty reconciliation is valid.
type PriceResolver interface {
	ResolveAllSources(ctx context.Context, symbol string, at time.Time) domain.PriceReconciliation
}

// AdapterFactory returns the adapter for a chain family.
type AdapterFactory func(kind domain.AdapterKind) (adapters.Adapter, error)

// Journal receives every completed verification. Append failures are
// logged, never surfaced.
type Journal interface {
	Append(entry domain.AuditEntry) error
}

// Verifier is the reconciliation pipeline.
type Verifier struct {
	registry   Registry
	prices     PriceResolver
	adapterFor AdapterFactory
	journal    Journal
	currency   string
	logger     *zap.Logger
}

// Option configures the Verifier.
type Option func(*Verifier)

// WithJournal attaches an audit journal.
func WithJournal(journal Journal) Option {
	return func(v *Verifier) { v.journal = journal }
}

// WithCurrency sets the fiat currency recorded on reconciled records.
func WithCurrency(currency string) Option {
	return func(v *Verifier) { v.currency = currency }
}

// New creates a Verifier.
func New(reg Registry, prices PriceResolver, adapterFor AdapterFactory, logger *zap.Logger, opts ...Option) *Verifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	v := &Verifier{
		registry:   reg,
		prices:     prices,
		adapterFor: adapterFor,
		currency:   "EUR",
		logger:     logger,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify reconciles one transaction against on-chain facts and
// cross-checked pricing. It always returns an envelope; no failure
// escapes as an error or a panic.
func (v *Verifier) Verify(ctx context.Context, hash, chainSymbol, recipientHint string) (env domain.Envelope) {
	defer func() {
		if r := recover(); r != nil {
			v.logger.Error("verification panicked",
				zap.String("hash", hash),
				zap.String("chain", chainSymbol),
				zap.Any("panic", r))
			env = domain.Fail(domain.CodeServerError, "internal error during verification")
		}
		v.record(hash, chainSymbol, recipientHint, env)
	}()

	// Step 1: hash format. A chain that is not registered cannot
	// validate any hash.
	cfg, err := v.registry.Get(ctx, chainSymbol)
	if err != nil {
		if errors.Is(err, registry.ErrConfigNotFound) {
			return domain.Fail(domain.CodeFormatInvalid, "transaction hash format is invalid")
		}
		v.logger.Error("registry lookup failed", zap.String("chain", chainSymbol), zap.Error(err))
		return domain.Fail(domain.CodeAPIError, "chain configuration is unavailable")
	}
	if !v.registry.ValidateHash(hash, cfg) {
		return domain.Fail(domain.CodeFormatInvalid, "transaction hash format is invalid")
	}

	// Step 2: recipient hint format, only when one was supplied.
	if recipientHint != "" && !v.registry.ValidateAddress(recipientHint, cfg) {
		return domain.Fail(domain.CodeAddressInvalid,
			"address format is invalid for "+cfg.Symbol)
	}

	if !cfg.Active {
		return domain.Fail(domain.CodeAPIError, cfg.Name+" is deactivated")
	}

	// Step 3: fact retrieval through the dispatched adapter.
	adapter, err := v.adapterFor(cfg.Kind)
	if err != nil {
		v.logger.Error("adapter dispatch failed",
			zap.String("chain", cfg.Symbol), zap.String("kind", string(cfg.Kind)), zap.Error(err))
		return domain.Fail(domain.CodeAPIError, "no adapter available for "+cfg.Name)
	}

	credential, err := v.registry.Credential(ctx, cfg.Symbol)
	if err != nil {
		// Proceed unauthenticated; public endpoints may still answer.
		v.logger.Warn("credential resolution failed", zap.String("chain", cfg.Symbol), zap.Error(err))
		credential = ""
	}

	facts, err := adapter.FetchFacts(ctx, adapters.Request{
		Hash:          hash,
		Config:        cfg,
		RecipientHint: recipientHint,
		Credential:    credential,
	})
	if err != nil {
		return v.mapFactsError(err, cfg)
	}

	// Step 4: best-effort price enrichment. A silent resolver degrades
	// the record to "no price available", never to a failure.
	var reconciliation domain.PriceReconciliation
	if facts.Timestamp != nil && cfg.AssetSymbol != "" {
		reconciliation = v.prices.ResolveAllSources(ctx, cfg.AssetSymbol, *facts.Timestamp)
	}

	record := assemble(facts, reconciliation, cfg, recipientHint, v.currency)
	return domain.OK(record)
}

func (v *Verifier) mapFactsError(err error, cfg domain.ChainConfig) domain.Envelope {
	var factsErr *domain.FactsError
	if errors.As(err, &factsErr) {
		switch factsErr.Kind {
		case domain.KindNotFound:
			return domain.Fail(domain.CodeTxNotFound, "transaction not found on "+cfg.Name)
		case domain.KindRecipientNotInTransaction:
			return domain.Fail(domain.CodeAddressNotInTx, factsErr.Message)
		case domain.KindUnsupported:
			return domain.Fail(domain.CodeUnsupported, factsErr.Message)
		}
	}
	v.logger.Error("fact retrieval failed", zap.String("chain", cfg.Symbol), zap.Error(err))
	return domain.Fail(domain.CodeAPIError, "failed to retrieve on-chain data for "+cfg.Name)
}

// assemble builds the immutable reconciled record, including the full
// computation trace.
func assemble(facts domain.TransactionFacts, recon domain.PriceReconciliation,
	cfg domain.ChainConfig, recipientHint, currency string) *domain.ReconciledRecord {

	var (
		price    *decimal.Decimal
		subtotal *decimal.Decimal
		feeFiat  *decimal.Decimal
		total    *decimal.Decimal
	)
	if recon.HasPrice() {
		price = recon.Recommended
		st := facts.Quantity.Mul(*price)
		subtotal = &st
		ff := facts.Fee.Mul(*price)
		feeFiat = &ff
		tt := st.Add(ff)
		total = &tt
	}
	if recon.Sources == nil {
		recon.Sources = map[string]*decimal.Decimal{
			domain.SourceCandle:     nil,
			domain.SourceAggregator: nil,
			domain.SourceRange:      nil,
		}
	}

	return &domain.ReconciledRecord{
		ID:              uuid.NewString(),
		Hash:            facts.Hash,
		ChainSymbol:     cfg.Symbol,
		RecipientHint:   recipientHint,
		AssetSymbol:     cfg.AssetSymbol,
		Currency:        currency,
		Timestamp:       facts.Timestamp,
		Confirmation:    facts.Confirmation,
		BlockHeight:     facts.BlockHeight,
		Quantity:        facts.Quantity,
		Fee:             facts.Fee,
		PriceAtInstant:  price,
		EstimatedValue:  subtotal,
		From:            facts.From,
		To:              facts.To,
		Outputs:         facts.Outputs,
		TotalOutputs:    facts.TotalOutputs,
		RelevantOutputs: facts.RelevantOutputs,
		Trace: domain.Trace{
			QuantityRaw:  facts.Quantity,
			FeeRaw:       facts.Fee,
			PriceSources: recon,
			Calculation: domain.Calculation{
				Quantity:    facts.Quantity,
				Price:       price,
				PriceSource: recon.RecommendedSource,
				Subtotal:    subtotal,
				Fee:         facts.Fee,
				FeeFiat:     feeFiat,
				Total:       total,
			},
		},
	}
}

func (v *Verifier) record(hash, chainSymbol, recipientHint string, env domain.Envelope) {
	if v.journal == nil {
		return
	}
	entry := domain.AuditEntry{
		ID:            uuid.NewString(),
		Hash:          hash,
		ChainSymbol:   chainSymbol,
		RecipientHint: recipientHint,
		At:            time.Now().UTC(),
		Success:       env.Success,
		Code:          env.Error,
		Record:        env.Data,
	}
	if env.Data != nil {
		entry.ID = env.Data.ID
	}
	if err := v.journal.Append(entry); err != nil {
		v.logger.Warn("audit journal append failed", zap.String("hash", hash), zap.Error(err))
	}
}

// ListSupportedChains exposes the registry's chain list to the calling
// shell.
func (v *Verifier) ListSupportedChains(ctx context.Context, includeInactive bool) ([]domain.ChainConfig, error) {
	return v.registry.List(ctx, includeInactive)
}

// ListOutputAddresses enumerates the candidate destinations of a
// transaction, so a caller can pick which output is theirs before
// re-verifying with a recipient hint.
func (v *Verifier) ListOutputAddresses(ctx context.Context, hash, chainSymbol string) ([]domain.Output, error) {
	cfg, err := v.registry.Get(ctx, chainSymbol)
	if err != nil {
		return nil, errors.Wrapf(err, "chain %s", chainSymbol)
	}

	adapter, err := v.adapterFor(cfg.Kind)
	if err != nil {
		return nil, errors.Wrapf(err, "dispatch adapter for %s", cfg.Symbol)
	}

	credential, err := v.registry.Credential(ctx, cfg.Symbol)
	if err != nil {
		credential = ""
	}

	return adapter.ListOutputs(ctx, adapters.Request{
		Hash:       hash,
		Config:     cfg,
		Credential: credential,
	})
}

package adapters

import (
	"context"

	"github.com/txrecon/txrecon/internal/domain"
)

// UnsupportedAdapter is the adapter for chains registered without an
// automatic retrieval path. Every lookup fails with a kind the pipeline
// maps to UNSUPPORTED, directing the caller toward manual entry.
type UnsupportedAdapter struct{}

func (UnsupportedAdapter) FetchFacts(_ context.Context, req Request) (domain.TransactionFacts, error) {
	return domain.TransactionFacts{}, unsupportedErr(req)
}

func (UnsupportedAdapter) ListOutputs(_ context.Context, req Request) ([]domain.Output, error) {
	return nil, unsupportedErr(req)
}

func unsupportedErr(req Request) *domain.FactsError {
	return domain.NewFactsError(domain.KindUnsupported,
		"automatic retrieval is not available for %s, enter the transaction manually", req.Config.Name)
}

// Package adapters normalizes raw transactions from structurally
// different chain data models (UTXO, EVM account/gas, balance-diff) into
// one TransactionFacts shape. One adapter per chain family; dispatch is a
// pure lookup on the registry's adapter kind.
package adapters

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"github.com/txrecon/txrecon/internal/domain"
)

// DefaultTimeout bounds every explorer/RPC call.
const DefaultTimeout = 8 * time.Second

// Request carries everything an adapter needs for one lookup. Credential
// may be empty; adapters then make unauthenticated requests.
type Request struct {
	Hash          string
	Config        domain.ChainConfig
	RecipientHint string
	Credential    string
}

// Adapter turns a raw transaction hash into normalized facts. Failures
// are always *domain.FactsError with a classified kind.
type Adapter interface {
	// FetchFacts retrieves and normalizes the transaction.
	FetchFacts(ctx context.Context, req Request) (domain.TransactionFacts, error)
	// ListOutputs enumerates the candidate destination addresses with
	// their amounts, so a caller can pick which output is theirs.
	ListOutputs(ctx context.Context, req Request) ([]domain.Output, error)
}

// ForKind returns the adapter implementation for an adapter kind. An
// unknown kind is an error; the unsupported kind is a real adapter that
// fails every fetch with a kind the pipeline maps to UNSUPPORTED.
func ForKind(kind domain.AdapterKind, client *http.Client) (Adapter, error) {
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	switch kind {
	case domain.AdapterUTXO:
		return NewUTXOAdapter(client), nil
	case domain.AdapterEVMLike:
		return NewEVMAdapter(client), nil
	case domain.AdapterBalanceDiff:
		return NewBalanceDiffAdapter(client), nil
	case domain.AdapterUnsupported:
		return UnsupportedAdapter{}, nil
	default:
		return nil, errors.Errorf("unknown adapter kind %q", kind)
	}
}

// getJSON performs a GET and decodes the JSON body into out. A 404 is
// reported distinctly so adapters can classify it as not-found.
func getJSON(ctx context.Context, client *http.Client, url string, out any) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, errors.Wrap(err, "build request")
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, errors.Wrap(err, "http request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, errors.Wrap(err, "read response body")
	}
	if resp.StatusCode != http.StatusOK {
		return resp.StatusCode, errors.Errorf("unexpected status %d: %s", resp.StatusCode, truncate(body))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return resp.StatusCode, errors.Wrap(err, "decode response")
	}
	return resp.StatusCode, nil
}

func truncate(body []byte) string {
	const max = 200
	if len(body) > max {
		return string(body[:max]) + "..."
	}
	return string(body)
}

package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/txrecon/txrecon/internal/domain"
)

const lamportExponent = -9

// BalanceDiffAdapter normalizes Solana-style transactions where
// transfers are not explicit and must be derived by diffing each
// account's balance before and after the transaction.
type BalanceDiffAdapter struct {
	client *http.Client
}

func NewBalanceDiffAdapter(client *http.Client) *BalanceDiffAdapter {
	return &BalanceDiffAdapter{client: client}
}

// accountKey accepts both the plain-string and the jsonParsed object
// encodings of an account key.
type accountKey struct {
	Pubkey string
}

func (k *accountKey) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		k.Pubkey = s
		return nil
	}
	var obj struct {
		Pubkey string `json:"pubkey"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	k.Pubkey = obj.Pubkey
	return nil
}

type rpcTransaction struct {
	Slot      int64  `json:"slot"`
	BlockTime *int64 `json:"blockTime"`
	Meta      struct {
		Err          json.RawMessage `json:"err"`
		Fee          int64           `json:"fee"`
		PreBalances  []int64         `json:"preBalances"`
		PostBalances []int64         `json:"postBalances"`
	} `json:"meta"`
	Transaction struct {
		Message struct {
			AccountKeys []accountKey `json:"accountKeys"`
		} `json:"message"`
	} `json:"transaction"`
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

func (a *BalanceDiffAdapter) fetchTransaction(ctx context.Context, req Request) (rpcTransaction, error) {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "getTransaction",
		Params: []any{req.Hash, map[string]any{
			"encoding":                       "jsonParsed",
			"maxSupportedTransactionVersion": 0,
		}},
	})
	if err != nil {
		return rpcTransaction{}, domain.WrapFactsError(domain.KindUpstream, err, "marshal RPC request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.Config.APIURL, bytes.NewReader(body))
	if err != nil {
		return rpcTransaction{}, domain.WrapFactsError(domain.KindUpstream, err, "build RPC request")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return rpcTransaction{}, domain.WrapFactsError(domain.KindUpstream, err,
			"%s RPC request failed", req.Config.Name)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return rpcTransaction{}, domain.WrapFactsError(domain.KindUpstream, err, "read RPC response")
	}
	if resp.StatusCode != http.StatusOK {
		return rpcTransaction{}, domain.WrapFactsError(domain.KindUpstream,
			errors.Errorf("unexpected status %d", resp.StatusCode),
			"%s RPC request failed", req.Config.Name)
	}

	var rpcResp struct {
		Result *rpcTransaction `json:"result"`
	}
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		return rpcTransaction{}, domain.WrapFactsError(domain.KindUpstream, err, "decode RPC response")
	}
	if rpcResp.Result == nil {
		return rpcTransaction{}, domain.NewFactsError(domain.KindNotFound,
			"transaction %s not found on %s", req.Hash, req.Config.Name)
	}
	return *rpcResp.Result, nil
}

// transfers derives the sender and the candidate receivers from the
// per-account balance diffs. The first account whose balance decreased
// is taken as the sender; every account whose balance increased is a
// candidate receiver.
func (tx rpcTransaction) transfers() (from string, outputs []domain.Output) {
	keys := tx.Transaction.Message.AccountKeys
	for i, key := range keys {
		if i >= len(tx.Meta.PreBalances) || i >= len(tx.Meta.PostBalances) {
			break
		}
		diff := tx.Meta.PostBalances[i] - tx.Meta.PreBalances[i]
		switch {
		case diff < 0:
			if from == "" {
				from = key.Pubkey
			}
		case diff > 0:
			outputs = append(outputs, domain.Output{
				Address: key.Pubkey,
				Amount:  decimal.New(diff, lamportExponent),
			})
		}
	}
	return from, outputs
}

// FetchFacts fetches the transaction and derives transfers from balance
// diffs. Recipient disambiguation mirrors the UTXO adapter: filter the
// candidate receivers by the hint, or fail if none match.
func (a *BalanceDiffAdapter) FetchFacts(ctx context.Context, req Request) (domain.TransactionFacts, error) {
	tx, err := a.fetchTransaction(ctx, req)
	if err != nil {
		return domain.TransactionFacts{}, err
	}

	from, outputs := tx.transfers()

	quantity, relevant, err := selectOutputs(outputs, req.RecipientHint)
	if err != nil {
		return domain.TransactionFacts{}, err
	}

	var timestamp *time.Time
	if tx.BlockTime != nil {
		t := time.Unix(*tx.BlockTime, 0).UTC()
		timestamp = &t
	}

	confirmation := domain.StateConfirmed
	if len(tx.Meta.Err) > 0 && string(tx.Meta.Err) != "null" {
		confirmation = domain.StateFailed
	}

	to := req.RecipientHint
	if to == "" && len(outputs) > 0 {
		to = outputs[0].Address
	}
	slot := tx.Slot

	return domain.TransactionFacts{
		Hash:            req.Hash,
		ChainSymbol:     req.Config.Symbol,
		Timestamp:       timestamp,
		Confirmation:    confirmation,
		BlockHeight:     &slot,
		Quantity:        quantity,
		Fee:             decimal.New(tx.Meta.Fee, lamportExponent),
		From:            from,
		To:              to,
		Outputs:         outputs,
		TotalOutputs:    len(outputs),
		RelevantOutputs: relevant,
	}, nil
}

// ListOutputs returns every account whose balance increased.
func (a *BalanceDiffAdapter) ListOutputs(ctx context.Context, req Request) ([]domain.Output, error) {
	tx, err := a.fetchTransaction(ctx, req)
	if err != nil {
		return nil, err
	}
	_, outputs := tx.transfers()
	return outputs, nil
}

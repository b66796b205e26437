package adapters

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/shopspring/decimal"

	"github.com/txrecon/txrecon/internal/domain"
)

// UTXOAdapter normalizes Bitcoin-style multi-output transactions served
// by a blockchain.info-compatible explorer.
type UTXOAdapter struct {
	client *http.Client
}

func NewUTXOAdapter(client *http.Client) *UTXOAdapter {
	return &UTXOAdapter{client: client}
}

type utxoPrevOut struct {
	Addr  string `json:"addr"`
	Value int64  `json:"value"`
}

type utxoInput struct {
	PrevOut *utxoPrevOut `json:"prev_out"`
}

type utxoOutput struct {
	Addr  string `json:"addr"`
	Value int64  `json:"value"`
}

type rawTransaction struct {
	Hash        string       `json:"hash"`
	BlockHeight int64        `json:"block_height"`
	Time        int64        `json:"time"`
	Inputs      []utxoInput  `json:"inputs"`
	Out         []utxoOutput `json:"out"`
}

type blockHeightResponse struct {
	Blocks []struct {
		Time int64 `json:"time"`
	} `json:"blocks"`
}

func satoshisToCoin(v int64) decimal.Decimal {
	return decimal.NewFromFloat(btcutil.Amount(v).ToBTC())
}

func (a *UTXOAdapter) fetchRaw(ctx context.Context, req Request) (rawTransaction, error) {
	var tx rawTransaction
	url := fmt.Sprintf("%s/rawtx/%s", req.Config.APIURL, req.Hash)
	status, err := getJSON(ctx, a.client, url, &tx)
	if status == http.StatusNotFound {
		return rawTransaction{}, domain.NewFactsError(domain.KindNotFound,
			"transaction %s not found on %s", req.Hash, req.Config.Name)
	}
	if err != nil {
		return rawTransaction{}, domain.WrapFactsError(domain.KindUpstream, err,
			"%s explorer request failed", req.Config.Name)
	}
	return tx, nil
}

// FetchFacts fetches the raw transaction and, when it is mined, the
// containing block. The block's consensus time is authoritative over the
// transaction-level time, which only reflects node-local propagation.
func (a *UTXOAdapter) FetchFacts(ctx context.Context, req Request) (domain.TransactionFacts, error) {
	tx, err := a.fetchRaw(ctx, req)
	if err != nil {
		return domain.TransactionFacts{}, err
	}

	var blockTime *time.Time
	if tx.BlockHeight > 0 {
		url := fmt.Sprintf("%s/block-height/%d?format=json", req.Config.APIURL, tx.BlockHeight)
		var blocks blockHeightResponse
		// Best effort: the raw transaction already carries a usable
		// timestamp if the block lookup fails.
		if _, err := getJSON(ctx, a.client, url, &blocks); err == nil &&
			len(blocks.Blocks) > 0 && blocks.Blocks[0].Time > 0 {
			t := time.Unix(blocks.Blocks[0].Time, 0).UTC()
			blockTime = &t
		}
	}

	var totalIn, totalOut int64
	for _, in := range tx.Inputs {
		if in.PrevOut != nil {
			totalIn += in.PrevOut.Value
		}
	}
	outputs := make([]domain.Output, 0, len(tx.Out))
	for _, out := range tx.Out {
		totalOut += out.Value
		outputs = append(outputs, domain.Output{
			Address: out.Addr,
			Amount:  satoshisToCoin(out.Value),
		})
	}

	quantity, relevant, err := selectOutputs(outputs, req.RecipientHint)
	if err != nil {
		return domain.TransactionFacts{}, err
	}

	timestamp := blockTime
	if timestamp == nil && tx.Time > 0 {
		t := time.Unix(tx.Time, 0).UTC()
		timestamp = &t
	}

	confirmation := domain.StateUnconfirmed
	var height *int64
	if tx.BlockHeight > 0 {
		confirmation = domain.StateConfirmed
		h := tx.BlockHeight
		height = &h
	}

	from := ""
	if len(tx.Inputs) > 0 && tx.Inputs[0].PrevOut != nil {
		from = tx.Inputs[0].PrevOut.Addr
	}
	to := req.RecipientHint
	if to == "" && len(outputs) > 0 {
		to = outputs[0].Address
	}

	return domain.TransactionFacts{
		Hash:            tx.Hash,
		ChainSymbol:     req.Config.Symbol,
		Timestamp:       timestamp,
		Confirmation:    confirmation,
		BlockHeight:     height,
		Quantity:        quantity,
		Fee:             satoshisToCoin(totalIn - totalOut),
		From:            from,
		To:              to,
		Outputs:         outputs,
		TotalOutputs:    len(outputs),
		RelevantOutputs: relevant,
	}, nil
}

// ListOutputs returns every addressed output of the transaction.
func (a *UTXOAdapter) ListOutputs(ctx context.Context, req Request) ([]domain.Output, error) {
	tx, err := a.fetchRaw(ctx, req)
	if err != nil {
		return nil, err
	}
	outputs := make([]domain.Output, 0, len(tx.Out))
	for _, out := range tx.Out {
		if out.Addr == "" {
			continue
		}
		outputs = append(outputs, domain.Output{
			Address: out.Addr,
			Amount:  satoshisToCoin(out.Value),
		})
	}
	return outputs, nil
}

// selectOutputs resolves the quantity for a multi-output transaction:
// with a hint, the sum over the outputs paying the hinted address; with
// none, the sum over all outputs.
func selectOutputs(outputs []domain.Output, hint string) (decimal.Decimal, int, error) {
	quantity := decimal.Zero
	if hint == "" {
		for _, out := range outputs {
			quantity = quantity.Add(out.Amount)
		}
		return quantity, len(outputs), nil
	}

	matched := 0
	for _, out := range outputs {
		if out.Address == hint {
			quantity = quantity.Add(out.Amount)
			matched++
		}
	}
	if matched == 0 {
		return decimal.Zero, 0, domain.NewFactsError(domain.KindRecipientNotInTransaction,
			"address %s received no funds in this transaction", hint)
	}
	return quantity, matched, nil
}

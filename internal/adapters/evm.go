package adapters

import (
	"context"
	"math/big"
	"net/http"
	"net/url"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/shopspring/decimal"

	"github.com/txrecon/txrecon/internal/domain"
)

const weiExponent = -18

// EVMAdapter normalizes account-model transactions served by an
// etherscan-compatible proxy API (Ethereum, BSC, Polygon, L2s, ...).
type EVMAdapter struct {
	client *http.Client
}

func NewEVMAdapter(client *http.Client) *EVMAdapter {
	return &EVMAdapter{client: client}
}

type proxyTransaction struct {
	Hash        string `json:"hash"`
	From        string `json:"from"`
	To          string `json:"to"`
	Value       string `json:"value"`
	GasPrice    string `json:"gasPrice"`
	BlockNumber string `json:"blockNumber"`
}

type proxyReceipt struct {
	GasUsed string `json:"gasUsed"`
	Status  string `json:"status"`
}

type proxyBlock struct {
	Timestamp string `json:"timestamp"`
}

func (a *EVMAdapter) proxyCall(ctx context.Context, req Request, action string, extra url.Values, out any) error {
	params := url.Values{}
	params.Set("module", "proxy")
	params.Set("action", action)
	params.Set("apikey", req.Credential)
	for k, vs := range extra {
		for _, v := range vs {
			params.Add(k, v)
		}
	}

	endpoint := req.Config.APIURL + "?" + params.Encode()
	if _, err := getJSON(ctx, a.client, endpoint, out); err != nil {
		return domain.WrapFactsError(domain.KindUpstream, err,
			"%s explorer request failed", req.Config.Symbol)
	}
	return nil
}

func sameAddress(a, b string) bool {
	return common.HexToAddress(a) == common.HexToAddress(b)
}

func hexToDecimal(s string, exp int32) (decimal.Decimal, error) {
	v, err := hexutil.DecodeBig(s)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return decimal.NewFromBigInt(v, exp), nil
}

func (a *EVMAdapter) fetchTransaction(ctx context.Context, req Request) (proxyTransaction, error) {
	var txResp struct {
		Result *proxyTransaction `json:"result"`
	}
	if err := a.proxyCall(ctx, req, "eth_getTransactionByHash",
		url.Values{"txhash": {req.Hash}}, &txResp); err != nil {
		return proxyTransaction{}, err
	}
	if txResp.Result == nil {
		return proxyTransaction{}, domain.NewFactsError(domain.KindNotFound,
			"transaction %s not found on %s", req.Hash, req.Config.Name)
	}
	return *txResp.Result, nil
}

// FetchFacts fetches the transaction, its receipt and its block. When a
// recipient hint is supplied it is checked against the transaction's
// single destination first, so a doomed request never pays for the
// receipt and block lookups.
func (a *EVMAdapter) FetchFacts(ctx context.Context, req Request) (domain.TransactionFacts, error) {
	tx, err := a.fetchTransaction(ctx, req)
	if err != nil {
		return domain.TransactionFacts{}, err
	}

	if req.RecipientHint != "" {
		if tx.To == "" || !sameAddress(req.RecipientHint, tx.To) {
			return domain.TransactionFacts{}, domain.NewFactsError(
				domain.KindRecipientNotInTransaction,
				"address %s is not the destination of this transaction", req.RecipientHint)
		}
	}

	value, err := hexToDecimal(tx.Value, weiExponent)
	if err != nil {
		return domain.TransactionFacts{}, domain.WrapFactsError(domain.KindUpstream, err,
			"parse transaction value %q", tx.Value)
	}
	gasPrice, err := hexutil.DecodeBig(tx.GasPrice)
	if err != nil {
		return domain.TransactionFacts{}, domain.WrapFactsError(domain.KindUpstream, err,
			"parse gas price %q", tx.GasPrice)
	}

	var receiptResp struct {
		Result *proxyReceipt `json:"result"`
	}
	if err := a.proxyCall(ctx, req, "eth_getTransactionReceipt",
		url.Values{"txhash": {req.Hash}}, &receiptResp); err != nil {
		return domain.TransactionFacts{}, err
	}

	confirmation := domain.StateUnconfirmed
	gasUsed := big.NewInt(0)
	if receipt := receiptResp.Result; receipt != nil {
		if receipt.Status == "0x1" {
			confirmation = domain.StateConfirmed
		} else {
			confirmation = domain.StateFailed
		}
		if receipt.GasUsed != "" {
			gasUsed, err = hexutil.DecodeBig(receipt.GasUsed)
			if err != nil {
				return domain.TransactionFacts{}, domain.WrapFactsError(domain.KindUpstream, err,
					"parse gas used %q", receipt.GasUsed)
			}
		}
	}
	fee := decimal.NewFromBigInt(new(big.Int).Mul(gasUsed, gasPrice), weiExponent)

	var (
		timestamp *time.Time
		height    *int64
	)
	if tx.BlockNumber != "" {
		blockNumber, err := hexutil.DecodeUint64(tx.BlockNumber)
		if err == nil {
			h := int64(blockNumber)
			height = &h
		}

		var blockResp struct {
			Result *proxyBlock `json:"result"`
		}
		if err := a.proxyCall(ctx, req, "eth_getBlockByNumber",
			url.Values{"tag": {tx.BlockNumber}, "boolean": {"false"}}, &blockResp); err != nil {
			return domain.TransactionFacts{}, err
		}
		if blockResp.Result != nil {
			if ts, err := hexutil.DecodeUint64(blockResp.Result.Timestamp); err == nil {
				t := time.Unix(int64(ts), 0).UTC()
				timestamp = &t
			}
		}
	}

	return domain.TransactionFacts{
		Hash:            tx.Hash,
		ChainSymbol:     req.Config.Symbol,
		Timestamp:       timestamp,
		Confirmation:    confirmation,
		BlockHeight:     height,
		Quantity:        value,
		Fee:             fee,
		From:            tx.From,
		To:              tx.To,
		Outputs:         []domain.Output{{Address: tx.To, Amount: value}},
		TotalOutputs:    1,
		RelevantOutputs: 1,
	}, nil
}

// ListOutputs returns the transaction's single destination.
func (a *EVMAdapter) ListOutputs(ctx context.Context, req Request) ([]domain.Output, error) {
	tx, err := a.fetchTransaction(ctx, req)
	if err != nil {
		return nil, err
	}
	value, err := hexToDecimal(tx.Value, weiExponent)
	if err != nil {
		return nil, domain.WrapFactsError(domain.KindUpstream, err,
			"parse transaction value %q", tx.Value)
	}
	return []domain.Output{{Address: tx.To, Amount: value}}, nil
}

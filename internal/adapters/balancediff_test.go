package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/txrecon/txrecon/internal/domain"
)

const solHash = "5j7s6NiJS3JAkvgkoc18WVAsiSaci2pxB2A6ueCJP4tprA2TFg9wSyTLeYouxPBJEMzJinENTkpA52YStRW5Dia7"

// solServer serves a transaction moving 1 SOL to receiverA and 2 SOL to
// receiverB from sender, with a 5000-lamport fee. Account keys use the
// jsonParsed object encoding.
func solServer(t *testing.T, failed bool) *httptest.Server {
	t.Helper()
	errField := "null"
	if failed {
		errField = `{"InstructionError": [0, "Custom"]}`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Method string `json:"method"`
			Params []any  `json:"params"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "getTransaction", req.Method)

		if req.Params[0] != solHash {
			fmt.Fprint(w, `{"jsonrpc": "2.0", "id": 1, "result": null}`)
			return
		}
		fmt.Fprintf(w, `{"jsonrpc": "2.0", "id": 1, "result": {
			"slot": 250000000,
			"blockTime": 1700000000,
			"meta": {
				"err": %s,
				"fee": 5000,
				"preBalances":  [5000005000, 1000000000, 500000000],
				"postBalances": [2000000000, 2000000000, 2500000000]
			},
			"transaction": {"message": {"accountKeys": [
				{"pubkey": "sender"},
				{"pubkey": "receiverA"},
				{"pubkey": "receiverB"}
			]}}
		}}`, errField)
	}))
	t.Cleanup(server.Close)
	return server
}

func solRequest(serverURL, hint string) Request {
	return Request{
		Hash: solHash,
		Config: domain.ChainConfig{
			Symbol: "SOL", Name: "Solana", Kind: domain.AdapterBalanceDiff, APIURL: serverURL,
		},
		RecipientHint: hint,
	}
}

func TestBalanceDiffFetchFacts(t *testing.T) {
	server := solServer(t, false)
	adapter := NewBalanceDiffAdapter(server.Client())

	facts, err := adapter.FetchFacts(context.Background(), solRequest(server.URL, ""))
	require.NoError(t, err)

	assert.Equal(t, "sender", facts.From, "first negative balance diff is the sender")
	assert.True(t, facts.Quantity.Equal(decimal.NewFromInt(3)),
		"quantity = %s", facts.Quantity)
	assert.True(t, facts.Fee.Equal(decimal.RequireFromString("0.000005")),
		"fee = %s", facts.Fee)
	assert.Equal(t, domain.StateConfirmed, facts.Confirmation)
	assert.Equal(t, 2, facts.TotalOutputs)
	assert.Equal(t, 2, facts.RelevantOutputs)
	require.NotNil(t, facts.BlockHeight)
	assert.Equal(t, int64(250000000), *facts.BlockHeight)
	require.NotNil(t, facts.Timestamp)
	assert.Equal(t, int64(1700000000), facts.Timestamp.Unix())
}

func TestBalanceDiffHintFiltersReceivers(t *testing.T) {
	server := solServer(t, false)
	adapter := NewBalanceDiffAdapter(server.Client())

	facts, err := adapter.FetchFacts(context.Background(), solRequest(server.URL, "receiverB"))
	require.NoError(t, err)

	assert.True(t, facts.Quantity.Equal(decimal.NewFromInt(2)),
		"quantity = %s", facts.Quantity)
	assert.Equal(t, 1, facts.RelevantOutputs)
	assert.Equal(t, 2, facts.TotalOutputs)
	assert.Equal(t, "receiverB", facts.To)
}

func TestBalanceDiffHintNotAReceiver(t *testing.T) {
	server := solServer(t, false)
	adapter := NewBalanceDiffAdapter(server.Client())

	_, err := adapter.FetchFacts(context.Background(), solRequest(server.URL, "stranger"))

	var factsErr *domain.FactsError
	require.ErrorAs(t, err, &factsErr)
	assert.Equal(t, domain.KindRecipientNotInTransaction, factsErr.Kind)
}

func TestBalanceDiffFailedTransaction(t *testing.T) {
	server := solServer(t, true)
	adapter := NewBalanceDiffAdapter(server.Client())

	facts, err := adapter.FetchFacts(context.Background(), solRequest(server.URL, ""))
	require.NoError(t, err)
	assert.Equal(t, domain.StateFailed, facts.Confirmation)
}

func TestBalanceDiffNotFound(t *testing.T) {
	server := solServer(t, false)
	adapter := NewBalanceDiffAdapter(server.Client())

	req := solRequest(server.URL, "")
	req.Hash = "unknownhash"
	_, err := adapter.FetchFacts(context.Background(), req)

	var factsErr *domain.FactsError
	require.ErrorAs(t, err, &factsErr)
	assert.Equal(t, domain.KindNotFound, factsErr.Kind)
}

func TestBalanceDiffListOutputs(t *testing.T) {
	server := solServer(t, false)
	adapter := NewBalanceDiffAdapter(server.Client())

	outputs, err := adapter.ListOutputs(context.Background(), solRequest(server.URL, ""))
	require.NoError(t, err)
	require.Len(t, outputs, 2)
	assert.Equal(t, "receiverA", outputs[0].Address)
	assert.True(t, outputs[1].Amount.Equal(decimal.NewFromInt(2)))
}

func TestAccountKeyEncodings(t *testing.T) {
	var key accountKey
	require.NoError(t, json.Unmarshal([]byte(`"plainkey"`), &key))
	assert.Equal(t, "plainkey", key.Pubkey)

	require.NoError(t, json.Unmarshal([]byte(`{"pubkey": "objkey"}`), &key))
	assert.Equal(t, "objkey", key.Pubkey)
}

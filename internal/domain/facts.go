package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ConfirmationState of a transaction as reported by the chain.
type ConfirmationState string

const (
	StateConfirmed   ConfirmationState = "confirmed"
	StateUnconfirmed ConfirmationState = "unconfirmed"
	StateFailed      ConfirmationState = "failed"
)

// Output is one destination of a transaction with the amount it received,
// in the chain's native asset.
type Output struct {
	Address string          `json:"address"`
	Amount  decimal.Decimal `json:"amount"`
}

// TransactionFacts is the normalized shape every chain adapter produces,
// regardless of the underlying data model (UTXO multi-output, EVM
// account/gas, balance-diff).
//
// Invariant: RelevantOutputs <= TotalOutputs, and Quantity equals the sum
// of amounts across exactly the relevant outputs.
type TransactionFacts struct {
	Hash        string            `json:"hash"`
	ChainSymbol string            `json:"chainSymbol"`
	// Timestamp is nil when the chain did not expose a block or
	// transaction time.
	Timestamp    *time.Time        `json:"timestamp,omitempty"`
	Confirmation ConfirmationState `json:"confirmation"`
	BlockHeight  *int64            `json:"blockHeight,omitempty"`
	// Quantity moved to the relevant outputs, in the native asset.
	Quantity decimal.Decimal `json:"quantity"`
	// Fee paid, in the native asset.
	Fee decimal.Decimal `json:"fee"`
	// From is empty when the sender could not be determined
	// (e.g. a coinbase transaction).
	From string `json:"from,omitempty"`
	// To is the resolved recipient: the caller's hint when one was
	// supplied, otherwise the first output address.
	To              string   `json:"to,omitempty"`
	Outputs         []Output `json:"outputs"`
	TotalOutputs    int      `json:"totalOutputs"`
	RelevantOutputs int      `json:"relevantOutputs"`
}

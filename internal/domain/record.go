package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ErrorCode is the stable failure taxonomy exposed to callers.
type ErrorCode string

const (
	CodeFormatInvalid  ErrorCode = "FORMAT_INVALID"
	CodeAddressInvalid ErrorCode = "ADDRESS_INVALID"
	CodeTxNotFound     ErrorCode = "TX_NOT_FOUND"
	CodeAddressNotInTx ErrorCode = "ADDRESS_NOT_IN_TX"
	CodeUnsupported    ErrorCode = "UNSUPPORTED"
	CodeAPIError       ErrorCode = "API_ERROR"
	CodeServerError    ErrorCode = "SERVER_ERROR"
)

// Calculation lays out every intermediate number behind the valuation, so
// a user can audit how the fiat figure was produced.
type Calculation struct {
	Quantity    decimal.Decimal  `json:"quantity"`
	Price       *decimal.Decimal `json:"price"`
	PriceSource string           `json:"priceSource,omitempty"`
	Subtotal    *decimal.Decimal `json:"subtotal"`
	Fee         decimal.Decimal  `json:"fee"`
	FeeFiat     *decimal.Decimal `json:"feeFiat"`
	Total       *decimal.Decimal `json:"total"`
}

// Trace is the full computation trace attached to a reconciled record.
type Trace struct {
	QuantityRaw  decimal.Decimal     `json:"quantityRaw"`
	FeeRaw       decimal.Decimal     `json:"feeRaw"`
	PriceSources PriceReconciliation `json:"priceSources"`
	Calculation  Calculation         `json:"calculation"`
}

// ReconciledRecord is the final auditable result of one verification
// request: on-chain facts plus cross-checked pricing and the derived
// fiat valuation. It is constructed once and never mutated; persisting an
// accepted record is the calling shell's responsibility.
type ReconciledRecord struct {
	ID            string            `json:"id"`
	Hash          string            `json:"hash"`
	ChainSymbol   string            `json:"chainSymbol"`
	RecipientHint string            `json:"recipientHint,omitempty"`
	AssetSymbol   string            `json:"assetSymbol,omitempty"`
	Currency      string            `json:"currency"`
	Timestamp     *time.Time        `json:"timestamp,omitempty"`
	Confirmation  ConfirmationState `json:"confirmation"`
	BlockHeight   *int64            `json:"blockHeight,omitempty"`
	Quantity      decimal.Decimal   `json:"quantity"`
	Fee           decimal.Decimal   `json:"fee"`
	// PriceAtInstant is nil when no source could price the asset at the
	// transaction's timestamp.
	PriceAtInstant  *decimal.Decimal `json:"priceAtInstant"`
	EstimatedValue  *decimal.Decimal `json:"estimatedValue"`
	From            string           `json:"from,omitempty"`
	To              string           `json:"to,omitempty"`
	Outputs         []Output         `json:"outputs"`
	TotalOutputs    int              `json:"totalOutputs"`
	RelevantOutputs int              `json:"relevantOutputs"`
	Trace           Trace            `json:"trace"`
}

// Envelope is the stable success/failure shape returned to the caller.
type Envelope struct {
	Success bool              `json:"success"`
	Data    *ReconciledRecord `json:"data,omitempty"`
	Error   ErrorCode         `json:"error,omitempty"`
	Message string            `json:"message,omitempty"`
}

// OK wraps a reconciled record in a success envelope.
func OK(record *ReconciledRecord) Envelope {
	return Envelope{Success: true, Data: record}
}

// Fail builds a failure envelope with a caller-facing code and message.
func Fail(code ErrorCode, message string) Envelope {
	return Envelope{Success: false, Error: code, Message: message}
}

// AuditEntry is one line of the verification journal: the request, the
// outcome code, and the record when verification succeeded.
type AuditEntry struct {
	ID            string            `json:"id"`
	Hash          string            `json:"hash"`
	ChainSymbol   string            `json:"chainSymbol"`
	RecipientHint string            `json:"recipientHint,omitempty"`
	At            time.Time         `json:"at"`
	Success       bool              `json:"success"`
	Code          ErrorCode         `json:"code,omitempty"`
	Record        *ReconciledRecord `json:"record,omitempty"`
}

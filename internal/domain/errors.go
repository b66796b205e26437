package domain

import "fmt"

// ErrorKind classifies adapter failures so the pipeline can map them to
// caller-facing codes without inspecting message text.
type ErrorKind int

const (
	// KindNotFound: the transaction does not exist on the chain.
	KindNotFound ErrorKind = iota + 1
	// KindRecipientNotInTransaction: a recipient hint was supplied but
	// matches none of the transaction's destinations.
	KindRecipientNotInTransaction
	// KindUnsupported: no automatic retrieval exists for this chain.
	KindUnsupported
	// KindUpstream: the explorer/RPC endpoint failed or answered
	// something unusable.
	KindUpstream
)

// FactsError is the typed failure returned by every chain adapter.
type FactsError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *FactsError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *FactsError) Unwrap() error { return e.Err }

// NewFactsError builds a FactsError with a formatted message.
func NewFactsError(kind ErrorKind, format string, args ...any) *FactsError {
	return &FactsError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapFactsError attaches an underlying cause.
func WrapFactsError(kind ErrorKind, err error, format string, args ...any) *FactsError {
	return &FactsError{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

package relay

import (
	"errors"
	"fmt"
)

var (
	ErrUnauthorized     = errors.New("invalid access key")
	ErrEmptyBatch       = errors.New("batch contains no requests")
	ErrInvalidAddress   = errors.New("invalid address")
	ErrUnknownChain     = errors.New("unknown chain")
	ErrTargetNotAllowed = errors.New("target contract is not allowed")
	ErrInvalidPage      = errors.New("invalid page parameters")
	ErrRequestNotFound  = errors.New("request not found")
	ErrAlreadyFinalized = errors.New("request already finalized")
	ErrTxReverted       = errors.New("transaction reverted")
)

// ValidationError is returned when a request is rejected before anything is stored or submitted.
type ValidationError struct {
	Field string
	Err   error
}

func NewValidationError(field string, err error) *ValidationError {
	return &ValidationError{Field: field, Err: err}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

type SubmissionErrorKind int

const (
	// SubmissionTransport means the chain node could not be reached or the connection failed.
	SubmissionTransport SubmissionErrorKind = iota
	// SubmissionRejected means the node answered with an error, e.g. a reverted gas estimation.
	SubmissionRejected
	// SubmissionInvalidInput means the call could not be built from the given request.
	SubmissionInvalidInput
)

func (k SubmissionErrorKind) String() string {
	switch k {
	case SubmissionTransport:
		return "transport"
	case SubmissionRejected:
		return "rejected"
	case SubmissionInvalidInput:
		return "invalid_input"
	default:
		return "unknown"
	}
}

// SubmissionError is returned by a Processor when a forwarder call could not be submitted.
// Submissions are never retried by the processor.
type SubmissionError struct {
	Kind    SubmissionErrorKind
	ChainID uint64
	Err     error
}

func NewSubmissionError(kind SubmissionErrorKind, chainID uint64, err error) *SubmissionError {
	return &SubmissionError{Kind: kind, ChainID: chainID, Err: err}
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("submission to chain %d failed (%s): %s", e.ChainID, e.Kind, e.Err)
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}

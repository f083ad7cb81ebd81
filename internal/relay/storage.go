package relay

import "context"

// Storage keeps the lifecycle of relay requests.
//
// A request is inserted as Pending and moved to a terminal state exactly once. Finalize never
// overwrites a terminal state: it returns ErrAlreadyFinalized instead.
type Storage interface {
	// InsertPending creates a Pending record. Inserting an existing id is a no-op that returns
	// the stored record.
	InsertPending(ctx context.Context, chainID uint64, requestID string, isBatch bool) (*RequestRecord, error)
	// MarkSubmitted stores the transaction hash of a Pending request.
	MarkSubmitted(ctx context.Context, requestID string, txHash string) error
	Finalize(ctx context.Context, requestID string, params FinalizeParams) error
	// GetRequest returns nil without an error if the request does not exist.
	GetRequest(ctx context.Context, requestID string) (*RequestRecord, error)
	// ListRequests returns a page of records, newest first. Pages start at 1.
	ListRequests(ctx context.Context, page, pageSize int) ([]*RequestRecord, error)
	GetPendingRequests(ctx context.Context) ([]*RequestRecord, error)
	Close() error
}

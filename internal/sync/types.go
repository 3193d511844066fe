// Package sync is the reconciliation engine: it turns batches of
// client-generated operations, live or replayed by an offline device
// reconnecting later, into durable, ordered, exactly-once state changes.
package sync

import (
	"errors"
	"time"
)

// Operation kinds
const (
	OpAdjust = "adjust"
	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
)

// Entity kinds
const (
	EntityItem     = "item"
	EntityTag      = "tag"
	EntityBusiness = "business"
)

// Conflict reasons surfaced to clients
const (
	ReasonInsufficientStock = "insufficient stock"
	ReasonStaleWrite        = "server has newer data (last-write-wins)"
)

var (
	// ErrInvalidOperation marks a malformed payload or unknown kind,
	// rejected before dispatch.
	ErrInvalidOperation = errors.New("invalid operation")

	// ErrDuplicateOp is returned by OpStore.Record when another writer
	// already recorded the same (business, opId).
	ErrDuplicateOp = errors.New("operation already recorded")
)

// ClientOperation is one client-submitted operation. OpID is generated by
// the client and is unique per business; submitting the same OpID again
// returns the stored outcome without re-applying side effects.
type ClientOperation struct {
	OpID            string                 `json:"opId"`
	Type            string                 `json:"type"`
	EntityType      string                 `json:"entityType,omitempty"`
	Payload         map[string]interface{} `json:"payload"`
	ClientTimestamp *time.Time             `json:"clientTimestamp,omitempty"`
}

// OperationResult is the per-operation outcome returned to the caller.
//
// applied: side effects took hold exactly once.
// conflict: business rule rejection (insufficient stock, stale write);
// the client may resubmit with fresh data.
// failed: unexpected error; retrying with the same OpID is safe.
type OperationResult struct {
	OpID           string                 `json:"opId"`
	Status         string                 `json:"status"`
	AppliedAt      time.Time              `json:"appliedAt"`
	ServerData     map[string]interface{} `json:"serverData,omitempty"`
	ConflictReason string                 `json:"conflictReason,omitempty"`
	Error          string                 `json:"error,omitempty"`
}

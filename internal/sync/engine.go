package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/duka-app/dukago/internal/ledger"
	"github.com/duka-app/dukago/internal/models"
	"github.com/duka-app/dukago/internal/stock"
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// ThresholdChecker is the alert state machine hook, invoked after every
// accepted quantity mutation.
type ThresholdChecker interface {
	CheckThreshold(ctx context.Context, businessID, itemID uuid.UUID, currentQuantity int) error
}

// Engine applies batches of client operations exactly once.
type Engine struct {
	ops       OpStore
	entities  EntityStore
	stock     stock.Store
	ledger    ledger.Recorder
	alerts    ThresholdChecker
	opTimeout time.Duration
}

// NewEngine creates a new reconciliation engine
func NewEngine(ops OpStore, entities EntityStore, stockStore stock.Store, recorder ledger.Recorder, alerts ThresholdChecker, opTimeout time.Duration) *Engine {
	if opTimeout <= 0 {
		opTimeout = 5 * time.Second
	}
	return &Engine{
		ops:       ops,
		entities:  entities,
		stock:     stockStore,
		ledger:    recorder,
		alerts:    alerts,
		opTimeout: opTimeout,
	}
}

// ApplyBatch applies operations strictly in the order received. A later
// operation can observe the effect of an earlier one in the same batch
// (create followed by adjust on the new item). One bad operation is
// recorded as failed and does not abort its siblings.
func (e *Engine) ApplyBatch(ctx context.Context, businessID, userID uuid.UUID, operations []ClientOperation) []OperationResult {
	results := make([]OperationResult, 0, len(operations))
	for _, op := range operations {
		results = append(results, e.applyOne(ctx, businessID, userID, op))
	}
	return results
}

func (e *Engine) applyOne(ctx context.Context, businessID, userID uuid.UUID, op ClientOperation) (result OperationResult) {
	// The per-operation error boundary. A panic in a handler becomes a
	// failed outcome for this operation only.
	defer func() {
		if r := recover(); r != nil {
			log.Printf("🔥 Operation %s panicked: %v", op.OpID, r)
			result = OperationResult{
				OpID:      op.OpID,
				Status:    models.SyncStatusFailed,
				AppliedAt: time.Now().UTC(),
				Error:     fmt.Sprintf("internal error: %v", r),
			}
		}
	}()

	if op.OpID == "" {
		return OperationResult{
			Status:    models.SyncStatusFailed,
			AppliedAt: time.Now().UTC(),
			Error:     "opId is required",
		}
	}

	// Timeout budget is per operation, not per batch: a slow operation
	// does not hold up the rest of the batch beyond its own deadline.
	opCtx, cancel := context.WithTimeout(ctx, e.opTimeout)
	defer cancel()

	// Idempotency: a previously seen opId returns its stored outcome
	// with no side effects, which is what makes retransmission safe.
	existing, err := e.ops.Find(opCtx, businessID, op.OpID)
	if err != nil {
		return OperationResult{
			OpID:      op.OpID,
			Status:    models.SyncStatusFailed,
			AppliedAt: time.Now().UTC(),
			Error:     fmt.Sprintf("idempotency lookup failed: %v", err),
		}
	}
	if existing != nil {
		return replayResult(existing)
	}

	entityType := op.EntityType
	if entityType == "" {
		entityType = EntityItem
	}

	switch op.Type {
	case OpAdjust:
		return e.applyAdjust(opCtx, businessID, userID, op)
	case OpCreate:
		return e.applyCreate(opCtx, businessID, userID, op, entityType)
	case OpUpdate:
		return e.applyUpdate(opCtx, businessID, userID, op, entityType)
	case OpDelete:
		return e.applyDelete(opCtx, businessID, userID, op, entityType)
	default:
		return e.record(opCtx, businessID, userID, outcome{
			op:         op,
			entityType: entityType,
			status:     models.SyncStatusFailed,
			errMsg:     fmt.Sprintf("unknown operation type: %s", op.Type),
		})
	}
}

func (e *Engine) applyAdjust(ctx context.Context, businessID, userID uuid.UUID, op ClientOperation) OperationResult {
	p, err := parseAdjust(op.Payload)
	if err != nil {
		return e.record(ctx, businessID, userID, outcome{
			op: op, entityType: EntityItem, status: models.SyncStatusFailed, errMsg: err.Error(),
		})
	}

	m, err := e.stock.Adjust(ctx, businessID, p.ItemID, p.Delta)
	if errors.Is(err, stock.ErrInsufficientStock) {
		serverData := map[string]interface{}{}
		if item, gerr := e.stock.Get(ctx, businessID, p.ItemID); gerr == nil {
			serverData["quantity"] = item.Quantity
		}
		return e.record(ctx, businessID, userID, outcome{
			op: op, entityType: EntityItem, status: models.SyncStatusConflict,
			conflictReason: ReasonInsufficientStock, serverData: serverData, itemID: &p.ItemID,
		})
	}
	if err != nil {
		return e.record(ctx, businessID, userID, outcome{
			op: op, entityType: EntityItem, status: models.SyncStatusFailed, errMsg: err.Error(), itemID: &p.ItemID,
		})
	}

	reason := p.Reason
	if reason == "" {
		reason = "Sync operation"
	}
	if _, err := e.ledger.Append(ctx, ledger.Entry{
		ItemID:     p.ItemID,
		BusinessID: businessID,
		UserID:     userID,
		Delta:      p.Delta,
		Action:     p.Action,
		Reason:     reason,
	}); err != nil {
		return e.record(ctx, businessID, userID, outcome{
			op: op, entityType: EntityItem, status: models.SyncStatusFailed,
			errMsg: fmt.Sprintf("ledger append failed: %v", err), itemID: &p.ItemID,
		})
	}

	// Alert evaluation lag is tolerable; alert failures never undo an
	// accepted mutation. The periodic recheck converges stragglers.
	if err := e.alerts.CheckThreshold(ctx, businessID, p.ItemID, m.Quantity); err != nil {
		log.Printf("⚠️ Alert evaluation failed for item %s: %v", p.ItemID, err)
	}

	return e.record(ctx, businessID, userID, outcome{
		op: op, entityType: EntityItem, status: models.SyncStatusApplied,
		serverData: map[string]interface{}{
			"itemId":    p.ItemID.String(),
			"quantity":  m.Quantity,
			"version":   m.Version,
			"updatedAt": m.UpdatedAt,
		},
		itemID: &p.ItemID,
	})
}

func (e *Engine) applyCreate(ctx context.Context, businessID, userID uuid.UUID, op ClientOperation, entityType string) OperationResult {
	switch entityType {
	case EntityItem:
		p, err := parseCreateItem(op.Payload)
		if err != nil {
			return e.record(ctx, businessID, userID, outcome{
				op: op, entityType: entityType, status: models.SyncStatusFailed, errMsg: err.Error(),
			})
		}

		item := &models.Item{
			ID:           uuid.New(),
			BusinessID:   businessID,
			Name:         p.Name,
			SKU:          p.SKU,
			Description:  p.Description,
			Quantity:     p.Quantity,
			Unit:         p.Unit,
			Category:     p.Category,
			Location:     p.Location,
			Tags:         datatypes.NewJSONSlice(p.Tags),
			MinThreshold: p.MinThreshold,
			Image:        p.Image,
			ExpiryDate:   p.ExpiryDate,
			Version:      1,
		}
		if err := e.entities.CreateItem(ctx, item); err != nil {
			return e.record(ctx, businessID, userID, outcome{
				op: op, entityType: entityType, status: models.SyncStatusFailed, errMsg: err.Error(),
			})
		}

		if p.Quantity > 0 {
			if _, err := e.ledger.Append(ctx, ledger.Entry{
				ItemID:     item.ID,
				BusinessID: businessID,
				UserID:     userID,
				Delta:      p.Quantity,
				Action:     models.ActionAdded,
				Reason:     "Initial stock (sync)",
			}); err != nil {
				log.Printf("⚠️ Initial stock ledger append failed for item %s: %v", item.ID, err)
			}
		}
		if err := e.alerts.CheckThreshold(ctx, businessID, item.ID, item.Quantity); err != nil {
			log.Printf("⚠️ Alert evaluation failed for item %s: %v", item.ID, err)
		}

		return e.record(ctx, businessID, userID, outcome{
			op: op, entityType: entityType, status: models.SyncStatusApplied,
			serverData: entityMap(item), itemID: &item.ID,
		})

	case EntityTag:
		p, err := parseCreateTag(op.Payload)
		if err != nil {
			return e.record(ctx, businessID, userID, outcome{
				op: op, entityType: entityType, status: models.SyncStatusFailed, errMsg: err.Error(),
			})
		}
		tag := &models.Tag{
			TagID:          p.TagID,
			Type:           p.Type,
			BusinessID:     businessID,
			AttachedItemID: p.AttachedItemID,
			Meta:           datatypes.JSONMap(p.Meta),
		}
		if err := e.entities.CreateTag(ctx, tag); err != nil {
			return e.record(ctx, businessID, userID, outcome{
				op: op, entityType: entityType, status: models.SyncStatusFailed, errMsg: err.Error(),
			})
		}
		return e.record(ctx, businessID, userID, outcome{
			op: op, entityType: entityType, status: models.SyncStatusApplied, serverData: entityMap(tag),
		})

	default:
		return e.record(ctx, businessID, userID, outcome{
			op: op, entityType: entityType, status: models.SyncStatusFailed,
			errMsg: fmt.Sprintf("create operation not supported for entity type: %s", entityType),
		})
	}
}

func (e *Engine) applyUpdate(ctx context.Context, businessID, userID uuid.UUID, op ClientOperation, entityType string) OperationResult {
	switch entityType {
	case EntityItem:
		p, err := parseUpdateItem(op.Payload)
		if err != nil {
			return e.record(ctx, businessID, userID, outcome{
				op: op, entityType: entityType, status: models.SyncStatusFailed, errMsg: err.Error(),
			})
		}
		item, err := e.entities.GetItem(ctx, businessID, p.ID)
		if err != nil {
			return e.record(ctx, businessID, userID, outcome{
				op: op, entityType: entityType, status: models.SyncStatusFailed, errMsg: "item not found",
			})
		}
		if res, stale := e.staleWrite(ctx, businessID, userID, op, entityType, item.UpdatedAt, entityMap(item), &item.ID); stale {
			return res
		}

		mergeItem(item, p)
		if err := e.entities.SaveItem(ctx, item); err != nil {
			return e.record(ctx, businessID, userID, outcome{
				op: op, entityType: entityType, status: models.SyncStatusFailed, errMsg: err.Error(), itemID: &item.ID,
			})
		}
		return e.record(ctx, businessID, userID, outcome{
			op: op, entityType: entityType, status: models.SyncStatusApplied,
			serverData: entityMap(item), itemID: &item.ID,
		})

	case EntityTag:
		p, err := parseUpdateTag(op.Payload)
		if err != nil {
			return e.record(ctx, businessID, userID, outcome{
				op: op, entityType: entityType, status: models.SyncStatusFailed, errMsg: err.Error(),
			})
		}
		tag, err := e.entities.GetTag(ctx, businessID, p.ID)
		if err != nil {
			return e.record(ctx, businessID, userID, outcome{
				op: op, entityType: entityType, status: models.SyncStatusFailed, errMsg: "tag not found",
			})
		}
		if res, stale := e.staleWrite(ctx, businessID, userID, op, entityType, tag.UpdatedAt, entityMap(tag), nil); stale {
			return res
		}

		if p.Type != nil {
			tag.Type = *p.Type
		}
		if p.AttachedItemID != nil {
			tag.AttachedItemID = p.AttachedItemID
		}
		if p.Meta != nil {
			tag.Meta = datatypes.JSONMap(p.Meta)
		}
		if err := e.entities.SaveTag(ctx, tag); err != nil {
			return e.record(ctx, businessID, userID, outcome{
				op: op, entityType: entityType, status: models.SyncStatusFailed, errMsg: err.Error(),
			})
		}
		return e.record(ctx, businessID, userID, outcome{
			op: op, entityType: entityType, status: models.SyncStatusApplied, serverData: entityMap(tag),
		})

	case EntityBusiness:
		p, err := parseUpdateBusiness(op.Payload)
		if err != nil {
			return e.record(ctx, businessID, userID, outcome{
				op: op, entityType: entityType, status: models.SyncStatusFailed, errMsg: err.Error(),
			})
		}
		// Callers can only update their own business.
		if p.ID != businessID {
			return e.record(ctx, businessID, userID, outcome{
				op: op, entityType: entityType, status: models.SyncStatusFailed, errMsg: "business not found",
			})
		}
		business, err := e.entities.GetBusiness(ctx, businessID)
		if err != nil {
			return e.record(ctx, businessID, userID, outcome{
				op: op, entityType: entityType, status: models.SyncStatusFailed, errMsg: "business not found",
			})
		}
		if res, stale := e.staleWrite(ctx, businessID, userID, op, entityType, business.UpdatedAt, entityMap(business), nil); stale {
			return res
		}

		if p.Name != nil {
			business.Name = *p.Name
		}
		if p.Location != nil {
			business.Location = *p.Location
		}
		if p.ContactPhone != nil {
			business.ContactPhone = *p.ContactPhone
		}
		if p.Language != nil {
			business.Language = *p.Language
		}
		if err := e.entities.SaveBusiness(ctx, business); err != nil {
			return e.record(ctx, businessID, userID, outcome{
				op: op, entityType: entityType, status: models.SyncStatusFailed, errMsg: err.Error(),
			})
		}
		return e.record(ctx, businessID, userID, outcome{
			op: op, entityType: entityType, status: models.SyncStatusApplied, serverData: entityMap(business),
		})

	default:
		return e.record(ctx, businessID, userID, outcome{
			op: op, entityType: entityType, status: models.SyncStatusFailed,
			errMsg: fmt.Sprintf("unknown entity type: %s", entityType),
		})
	}
}

func (e *Engine) applyDelete(ctx context.Context, businessID, userID uuid.UUID, op ClientOperation, entityType string) OperationResult {
	p, err := parseDelete(op.Payload)
	if err != nil {
		return e.record(ctx, businessID, userID, outcome{
			op: op, entityType: entityType, status: models.SyncStatusFailed, errMsg: err.Error(),
		})
	}

	switch entityType {
	case EntityItem:
		// An absent target means the delete already happened somewhere:
		// record applied so replays stay idempotent.
		if _, err := e.entities.DeleteItem(ctx, businessID, p.ID); err != nil {
			return e.record(ctx, businessID, userID, outcome{
				op: op, entityType: entityType, status: models.SyncStatusFailed, errMsg: err.Error(),
			})
		}
		return e.record(ctx, businessID, userID, outcome{
			op: op, entityType: entityType, status: models.SyncStatusApplied, itemID: &p.ID,
		})

	case EntityTag:
		if _, err := e.entities.DeleteTag(ctx, businessID, p.ID); err != nil {
			return e.record(ctx, businessID, userID, outcome{
				op: op, entityType: entityType, status: models.SyncStatusFailed, errMsg: err.Error(),
			})
		}
		return e.record(ctx, businessID, userID, outcome{
			op: op, entityType: entityType, status: models.SyncStatusApplied,
		})

	default:
		return e.record(ctx, businessID, userID, outcome{
			op: op, entityType: entityType, status: models.SyncStatusFailed,
			errMsg: fmt.Sprintf("delete operation not supported for entity type: %s", entityType),
		})
	}
}

// staleWrite applies the last-write-wins rule: when the server's row is
// strictly newer than the timestamp the client wrote at, the older client
// write is rejected and current server state is returned.
func (e *Engine) staleWrite(ctx context.Context, businessID, userID uuid.UUID, op ClientOperation, entityType string, serverUpdatedAt time.Time, serverData map[string]interface{}, itemID *uuid.UUID) (OperationResult, bool) {
	if op.ClientTimestamp == nil || !serverUpdatedAt.After(*op.ClientTimestamp) {
		return OperationResult{}, false
	}
	return e.record(ctx, businessID, userID, outcome{
		op: op, entityType: entityType, status: models.SyncStatusConflict,
		conflictReason: ReasonStaleWrite, serverData: serverData, itemID: itemID,
	}), true
}

// outcome is what gets persisted as the idempotency record.
type outcome struct {
	op             ClientOperation
	entityType     string
	status         string
	conflictReason string
	errMsg         string
	serverData     map[string]interface{}
	itemID         *uuid.UUID
}

// record persists the idempotency record and builds the caller-facing
// result. Losing the insert race to a concurrent retransmission falls
// back to the winner's stored outcome.
func (e *Engine) record(ctx context.Context, businessID, userID uuid.UUID, o outcome) OperationResult {
	reason := o.conflictReason
	if reason == "" {
		reason = o.errMsg
	}

	rec := &models.SyncOperation{
		OpID:            o.op.OpID,
		BusinessID:      businessID,
		UserID:          userID,
		Type:            o.op.Type,
		EntityType:      o.entityType,
		Payload:         datatypes.JSONMap(o.op.Payload),
		ClientTimestamp: o.op.ClientTimestamp,
		AppliedAt:       time.Now().UTC(),
		Source:          "client",
		Status:          o.status,
		ConflictReason:  reason,
		ItemID:          o.itemID,
	}

	if err := e.ops.Record(ctx, rec); err != nil {
		if errors.Is(err, ErrDuplicateOp) {
			if existing, ferr := e.ops.Find(ctx, businessID, o.op.OpID); ferr == nil && existing != nil {
				return replayResult(existing)
			}
		}
		log.Printf("⚠️ Failed to record operation %s: %v", o.op.OpID, err)
	}

	return OperationResult{
		OpID:           o.op.OpID,
		Status:         o.status,
		AppliedAt:      rec.AppliedAt,
		ServerData:     o.serverData,
		ConflictReason: o.conflictReason,
		Error:          o.errMsg,
	}
}

// replayResult converts a stored idempotency record into the result a
// retransmission receives.
func replayResult(rec *models.SyncOperation) OperationResult {
	return OperationResult{
		OpID:           rec.OpID,
		Status:         rec.Status,
		AppliedAt:      rec.AppliedAt,
		ServerData:     map[string]interface{}(rec.Payload),
		ConflictReason: rec.ConflictReason,
	}
}

func mergeItem(item *models.Item, p *updateItemPayload) {
	if p.Name != nil {
		item.Name = *p.Name
	}
	if p.SKU != nil {
		item.SKU = *p.SKU
	}
	if p.Description != nil {
		item.Description = *p.Description
	}
	if p.Unit != nil {
		item.Unit = *p.Unit
	}
	if p.Category != nil {
		item.Category = *p.Category
	}
	if p.Location != nil {
		item.Location = *p.Location
	}
	if p.Tags != nil {
		item.Tags = datatypes.NewJSONSlice(p.Tags)
	}
	if p.MinThreshold != nil {
		item.MinThreshold = *p.MinThreshold
	}
	if p.Image != nil {
		item.Image = *p.Image
	}
	if p.ExpiryDate != nil {
		item.ExpiryDate = p.ExpiryDate
	}
}

// OperationsSince returns applied operations for incremental pull.
func (e *Engine) OperationsSince(ctx context.Context, businessID uuid.UUID, since time.Time) ([]models.SyncOperation, error) {
	return e.ops.ListAppliedSince(ctx, businessID, since)
}

// ConflictLog returns recent conflict records for client inspection.
func (e *Engine) ConflictLog(ctx context.Context, businessID uuid.UUID, limit int) ([]models.SyncOperation, error) {
	return e.ops.ListConflicts(ctx, businessID, limit)
}

// Deduplicate removes redundant copies of the same logical operation.
func (e *Engine) Deduplicate(ctx context.Context, businessID uuid.UUID) (int64, error) {
	return e.ops.Deduplicate(ctx, businessID)
}

// PurgeOlderThan drops operation records past the retention window.
func (e *Engine) PurgeOlderThan(ctx context.Context, retentionDays int) (int64, error) {
	return e.ops.PurgeOlderThan(ctx, retentionDays)
}

// entityMap renders an entity the way it appears on the wire.
func entityMap(v interface{}) map[string]interface{} {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var out map[string]interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

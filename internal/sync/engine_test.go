package sync

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/duka-app/dukago/internal/ledger"
	"github.com/duka-app/dukago/internal/models"
	"github.com/duka-app/dukago/internal/stock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memOpStore is an in-memory idempotency store keyed on (business, opId).
type memOpStore struct {
	records map[string]*models.SyncOperation
}

func newMemOpStore() *memOpStore {
	return &memOpStore{records: map[string]*models.SyncOperation{}}
}

func opKey(businessID uuid.UUID, opID string) string {
	return businessID.String() + "/" + opID
}

func (s *memOpStore) Find(_ context.Context, businessID uuid.UUID, opID string) (*models.SyncOperation, error) {
	return s.records[opKey(businessID, opID)], nil
}

func (s *memOpStore) Record(_ context.Context, op *models.SyncOperation) error {
	key := opKey(op.BusinessID, op.OpID)
	if _, ok := s.records[key]; ok {
		return ErrDuplicateOp
	}
	s.records[key] = op
	return nil
}

func (s *memOpStore) ListAppliedSince(_ context.Context, businessID uuid.UUID, since time.Time) ([]models.SyncOperation, error) {
	var out []models.SyncOperation
	for _, rec := range s.records {
		if rec.BusinessID == businessID && rec.Status == models.SyncStatusApplied && rec.AppliedAt.After(since) {
			out = append(out, *rec)
		}
	}
	return out, nil
}

func (s *memOpStore) ListConflicts(_ context.Context, businessID uuid.UUID, _ int) ([]models.SyncOperation, error) {
	var out []models.SyncOperation
	for _, rec := range s.records {
		if rec.BusinessID == businessID && rec.Status == models.SyncStatusConflict {
			out = append(out, *rec)
		}
	}
	return out, nil
}

func (s *memOpStore) Deduplicate(context.Context, uuid.UUID) (int64, error) { return 0, nil }
func (s *memOpStore) PurgeOlderThan(context.Context, int) (int64, error)   { return 0, nil }

// memWorld holds the shared entity state behind both the entity store and
// the quantity store, the way the real stores share one database.
type memWorld struct {
	items      map[uuid.UUID]*models.Item
	tags       map[uuid.UUID]*models.Tag
	businesses map[uuid.UUID]*models.Business

	panicOnAdjust bool
}

func newMemWorld() *memWorld {
	return &memWorld{
		items:      map[uuid.UUID]*models.Item{},
		tags:       map[uuid.UUID]*models.Tag{},
		businesses: map[uuid.UUID]*models.Business{},
	}
}

func (w *memWorld) GetItem(_ context.Context, businessID, itemID uuid.UUID) (*models.Item, error) {
	item, ok := w.items[itemID]
	if !ok || item.BusinessID != businessID {
		return nil, ErrEntityNotFound
	}
	return item, nil
}

func (w *memWorld) CreateItem(_ context.Context, item *models.Item) error {
	w.items[item.ID] = item
	return nil
}

func (w *memWorld) SaveItem(_ context.Context, item *models.Item) error {
	item.Version++
	item.UpdatedAt = time.Now().UTC()
	w.items[item.ID] = item
	return nil
}

func (w *memWorld) DeleteItem(_ context.Context, businessID, itemID uuid.UUID) (bool, error) {
	item, ok := w.items[itemID]
	if !ok || item.BusinessID != businessID {
		return false, nil
	}
	delete(w.items, itemID)
	return true, nil
}

func (w *memWorld) GetTag(_ context.Context, businessID, tagID uuid.UUID) (*models.Tag, error) {
	tag, ok := w.tags[tagID]
	if !ok || tag.BusinessID != businessID {
		return nil, ErrEntityNotFound
	}
	return tag, nil
}

func (w *memWorld) CreateTag(_ context.Context, tag *models.Tag) error {
	if tag.ID == uuid.Nil {
		tag.ID = uuid.New()
	}
	w.tags[tag.ID] = tag
	return nil
}

func (w *memWorld) SaveTag(_ context.Context, tag *models.Tag) error {
	tag.UpdatedAt = time.Now().UTC()
	w.tags[tag.ID] = tag
	return nil
}

func (w *memWorld) DeleteTag(_ context.Context, businessID, tagID uuid.UUID) (bool, error) {
	tag, ok := w.tags[tagID]
	if !ok || tag.BusinessID != businessID {
		return false, nil
	}
	delete(w.tags, tagID)
	return true, nil
}

func (w *memWorld) GetBusiness(_ context.Context, id uuid.UUID) (*models.Business, error) {
	business, ok := w.businesses[id]
	if !ok {
		return nil, ErrEntityNotFound
	}
	return business, nil
}

func (w *memWorld) SaveBusiness(_ context.Context, business *models.Business) error {
	business.UpdatedAt = time.Now().UTC()
	w.businesses[business.ID] = business
	return nil
}

// Quantity store side of the world.

func (w *memWorld) Get(_ context.Context, businessID, itemID uuid.UUID) (*models.Item, error) {
	item, ok := w.items[itemID]
	if !ok || item.BusinessID != businessID {
		return nil, stock.ErrNotFound
	}
	return item, nil
}

func (w *memWorld) Adjust(_ context.Context, businessID, itemID uuid.UUID, delta int) (stock.Mutation, error) {
	if w.panicOnAdjust {
		panic("simulated storage fault")
	}
	item, ok := w.items[itemID]
	if !ok || item.BusinessID != businessID {
		return stock.Mutation{}, stock.ErrNotFound
	}
	if item.Quantity+delta < 0 {
		return stock.Mutation{}, stock.ErrInsufficientStock
	}
	item.Quantity += delta
	item.Version++
	item.UpdatedAt = time.Now().UTC()
	return stock.Mutation{Quantity: item.Quantity, Version: item.Version, UpdatedAt: item.UpdatedAt}, nil
}

func (w *memWorld) Mutate(ctx context.Context, businessID, itemID uuid.UUID, delta int, expectedVersion int64) (stock.Mutation, error) {
	item, ok := w.items[itemID]
	if !ok {
		return stock.Mutation{}, stock.ErrNotFound
	}
	if item.Version != expectedVersion {
		return stock.Mutation{}, stock.ErrStaleVersion
	}
	return w.Adjust(ctx, businessID, itemID, delta)
}

type memLedger struct {
	entries []ledger.Entry
}

func (l *memLedger) Append(_ context.Context, e ledger.Entry) (*models.InventoryEvent, error) {
	l.entries = append(l.entries, e)
	return &models.InventoryEvent{
		ID:         uuid.New(),
		ItemID:     e.ItemID,
		BusinessID: e.BusinessID,
		UserID:     e.UserID,
		Delta:      e.Delta,
		Action:     e.Action,
		Reason:     e.Reason,
		Timestamp:  time.Now().UTC(),
	}, nil
}

type thresholdCall struct {
	itemID   uuid.UUID
	quantity int
}

type memAlerts struct {
	calls []thresholdCall
}

func (a *memAlerts) CheckThreshold(_ context.Context, _, itemID uuid.UUID, quantity int) error {
	a.calls = append(a.calls, thresholdCall{itemID: itemID, quantity: quantity})
	return nil
}

type testRig struct {
	engine *Engine
	ops    *memOpStore
	world  *memWorld
	ledger *memLedger
	alerts *memAlerts

	businessID uuid.UUID
	userID     uuid.UUID
}

func newTestRig() *testRig {
	rig := &testRig{
		ops:        newMemOpStore(),
		world:      newMemWorld(),
		ledger:     &memLedger{},
		alerts:     &memAlerts{},
		businessID: uuid.New(),
		userID:     uuid.New(),
	}
	rig.engine = NewEngine(rig.ops, rig.world, rig.world, rig.ledger, rig.alerts, 5*time.Second)
	return rig
}

func (r *testRig) addItem(quantity, threshold int) *models.Item {
	item := &models.Item{
		ID:           uuid.New(),
		BusinessID:   r.businessID,
		Name:         "Rice 1kg",
		Unit:         models.UnitPiece,
		Quantity:     quantity,
		MinThreshold: threshold,
		Version:      1,
		UpdatedAt:    time.Now().UTC().Add(-time.Hour),
	}
	r.world.items[item.ID] = item
	return item
}

func (r *testRig) apply(ops ...ClientOperation) []OperationResult {
	return r.engine.ApplyBatch(context.Background(), r.businessID, r.userID, ops)
}

func adjustOp(opID string, itemID uuid.UUID, delta int) ClientOperation {
	return ClientOperation{
		OpID: opID,
		Type: OpAdjust,
		Payload: map[string]interface{}{
			"itemId": itemID.String(),
			"delta":  delta,
		},
	}
}

func TestAdjustApplied(t *testing.T) {
	rig := newTestRig()
	item := rig.addItem(10, 3)

	results := rig.apply(adjustOp("op-1", item.ID, -4))

	require.Len(t, results, 1)
	res := results[0]
	assert.Equal(t, models.SyncStatusApplied, res.Status)
	assert.Equal(t, "op-1", res.OpID)
	assert.Equal(t, 6, res.ServerData["quantity"])
	assert.Equal(t, 6, item.Quantity)

	// One ledger entry with the default reason and action.
	require.Len(t, rig.ledger.entries, 1)
	assert.Equal(t, -4, rig.ledger.entries[0].Delta)
	assert.Equal(t, models.ActionAdjusted, rig.ledger.entries[0].Action)
	assert.Equal(t, "Sync operation", rig.ledger.entries[0].Reason)

	// Alert evaluation ran with the post-mutation quantity.
	require.Len(t, rig.alerts.calls, 1)
	assert.Equal(t, 6, rig.alerts.calls[0].quantity)
}

func TestAdjustInsufficientStockConflict(t *testing.T) {
	rig := newTestRig()
	item := rig.addItem(5, 2)

	results := rig.apply(adjustOp("op-1", item.ID, -8))

	res := results[0]
	assert.Equal(t, models.SyncStatusConflict, res.Status)
	assert.Equal(t, ReasonInsufficientStock, res.ConflictReason)
	assert.Equal(t, 5, res.ServerData["quantity"])

	// The rejected mutation left no trace.
	assert.Equal(t, 5, item.Quantity)
	assert.Empty(t, rig.ledger.entries)
	assert.Empty(t, rig.alerts.calls)
}

func TestAdjustUnknownItemFails(t *testing.T) {
	rig := newTestRig()

	results := rig.apply(adjustOp("op-1", uuid.New(), 3))

	res := results[0]
	assert.Equal(t, models.SyncStatusFailed, res.Status)
	assert.NotEmpty(t, res.Error)
	assert.Empty(t, rig.ledger.entries)
}

func TestIdempotentReplay(t *testing.T) {
	rig := newTestRig()
	item := rig.addItem(10, 3)

	first := rig.apply(adjustOp("op-1", item.ID, -4))
	second := rig.apply(adjustOp("op-1", item.ID, -4))

	assert.Equal(t, models.SyncStatusApplied, first[0].Status)
	assert.Equal(t, models.SyncStatusApplied, second[0].Status)

	// Side effects happened exactly once.
	assert.Equal(t, 6, item.Quantity)
	assert.Len(t, rig.ledger.entries, 1)
	assert.Len(t, rig.alerts.calls, 1)
}

func TestConflictReplayReturnsStoredOutcome(t *testing.T) {
	rig := newTestRig()
	item := rig.addItem(5, 2)

	rig.apply(adjustOp("op-1", item.ID, -8))
	replay := rig.apply(adjustOp("op-1", item.ID, -8))

	assert.Equal(t, models.SyncStatusConflict, replay[0].Status)
	assert.Equal(t, ReasonInsufficientStock, replay[0].ConflictReason)
	assert.Equal(t, 5, item.Quantity)
}

func TestBatchAppliesInOrder(t *testing.T) {
	rig := newTestRig()
	item := rig.addItem(0, 3)

	// A withdrawal before the delivery would be rejected; in submitted
	// order the batch is consistent.
	results := rig.apply(
		adjustOp("op-1", item.ID, 10),
		adjustOp("op-2", item.ID, -6),
	)

	assert.Equal(t, models.SyncStatusApplied, results[0].Status)
	assert.Equal(t, models.SyncStatusApplied, results[1].Status)
	assert.Equal(t, 4, item.Quantity)

	require.Len(t, rig.ledger.entries, 2)
	assert.Equal(t, 10, rig.ledger.entries[0].Delta)
	assert.Equal(t, -6, rig.ledger.entries[1].Delta)
}

func TestBatchFailureIsolation(t *testing.T) {
	rig := newTestRig()
	item := rig.addItem(10, 3)

	results := rig.apply(
		ClientOperation{OpID: "op-bad", Type: "merge", Payload: map[string]interface{}{}},
		adjustOp("op-good", item.ID, -2),
	)

	assert.Equal(t, models.SyncStatusFailed, results[0].Status)
	assert.Contains(t, results[0].Error, "unknown operation type")

	assert.Equal(t, models.SyncStatusApplied, results[1].Status)
	assert.Equal(t, 8, item.Quantity)
}

func TestPanicIsContainedPerOperation(t *testing.T) {
	rig := newTestRig()
	item := rig.addItem(10, 3)

	rig.world.panicOnAdjust = true
	results := rig.apply(adjustOp("op-1", item.ID, -2))
	assert.Equal(t, models.SyncStatusFailed, results[0].Status)
	assert.Contains(t, results[0].Error, "internal error")

	// The engine keeps serving after the fault clears.
	rig.world.panicOnAdjust = false
	results = rig.apply(adjustOp("op-2", item.ID, -2))
	assert.Equal(t, models.SyncStatusApplied, results[0].Status)
}

func TestMissingOpIDFails(t *testing.T) {
	rig := newTestRig()
	item := rig.addItem(10, 3)

	results := rig.apply(ClientOperation{
		Type:    OpAdjust,
		Payload: map[string]interface{}{"itemId": item.ID.String(), "delta": 1},
	})

	assert.Equal(t, models.SyncStatusFailed, results[0].Status)
	assert.Contains(t, results[0].Error, "opId")
	assert.Equal(t, 10, item.Quantity)
}

func TestInvalidPayloadFails(t *testing.T) {
	rig := newTestRig()

	results := rig.apply(ClientOperation{
		OpID:    "op-1",
		Type:    OpAdjust,
		Payload: map[string]interface{}{"delta": 1},
	})

	assert.Equal(t, models.SyncStatusFailed, results[0].Status)
	assert.Contains(t, results[0].Error, "itemId")
}

func TestCreateItemApplied(t *testing.T) {
	rig := newTestRig()

	results := rig.apply(ClientOperation{
		OpID:       "op-1",
		Type:       OpCreate,
		EntityType: EntityItem,
		Payload: map[string]interface{}{
			"name":         "Sugar 2kg",
			"quantity":     12,
			"unit":         models.UnitPiece,
			"minThreshold": 4,
		},
	})

	res := results[0]
	require.Equal(t, models.SyncStatusApplied, res.Status)
	require.Len(t, rig.world.items, 1)

	// Initial stock shows up in the ledger and in alert evaluation.
	require.Len(t, rig.ledger.entries, 1)
	assert.Equal(t, 12, rig.ledger.entries[0].Delta)
	assert.Equal(t, models.ActionAdded, rig.ledger.entries[0].Action)
	require.Len(t, rig.alerts.calls, 1)
	assert.Equal(t, 12, rig.alerts.calls[0].quantity)

	assert.Equal(t, "Sugar 2kg", res.ServerData["name"])
}

func TestCreateItemZeroQuantitySkipsLedger(t *testing.T) {
	rig := newTestRig()

	results := rig.apply(ClientOperation{
		OpID:       "op-1",
		Type:       OpCreate,
		EntityType: EntityItem,
		Payload:    map[string]interface{}{"name": "Salt"},
	})

	assert.Equal(t, models.SyncStatusApplied, results[0].Status)
	assert.Empty(t, rig.ledger.entries)
	// Threshold evaluation still runs: zero stock may warrant an alert.
	assert.Len(t, rig.alerts.calls, 1)
}

func TestUpdateItemMerge(t *testing.T) {
	rig := newTestRig()
	item := rig.addItem(10, 3)

	now := time.Now().UTC()
	results := rig.apply(ClientOperation{
		OpID:       "op-1",
		Type:       OpUpdate,
		EntityType: EntityItem,
		Payload: map[string]interface{}{
			"id":           item.ID.String(),
			"name":         "Rice 2kg",
			"minThreshold": 5,
		},
		ClientTimestamp: &now,
	})

	assert.Equal(t, models.SyncStatusApplied, results[0].Status)
	assert.Equal(t, "Rice 2kg", item.Name)
	assert.Equal(t, 5, item.MinThreshold)
	// Fields absent from the payload keep their values.
	assert.Equal(t, models.UnitPiece, item.Unit)
}

func TestUpdateCannotTouchQuantity(t *testing.T) {
	rig := newTestRig()
	item := rig.addItem(10, 3)

	now := time.Now().UTC()
	results := rig.apply(ClientOperation{
		OpID:       "op-1",
		Type:       OpUpdate,
		EntityType: EntityItem,
		Payload: map[string]interface{}{
			"id":       item.ID.String(),
			"name":     "Rice 2kg",
			"quantity": 999,
		},
		ClientTimestamp: &now,
	})

	assert.Equal(t, models.SyncStatusApplied, results[0].Status)
	// Quantity only moves through adjust operations.
	assert.Equal(t, 10, item.Quantity)
	assert.Empty(t, rig.ledger.entries)
}

func TestUpdateStaleWriteConflict(t *testing.T) {
	rig := newTestRig()
	item := rig.addItem(10, 3)
	item.Name = "Rice 1kg"
	item.UpdatedAt = time.Now().UTC()

	stale := item.UpdatedAt.Add(-time.Minute)
	results := rig.apply(ClientOperation{
		OpID:       "op-1",
		Type:       OpUpdate,
		EntityType: EntityItem,
		Payload: map[string]interface{}{
			"id":   item.ID.String(),
			"name": "Rice (old name)",
		},
		ClientTimestamp: &stale,
	})

	res := results[0]
	assert.Equal(t, models.SyncStatusConflict, res.Status)
	assert.Equal(t, ReasonStaleWrite, res.ConflictReason)
	// The losing write changed nothing; current state is returned.
	assert.Equal(t, "Rice 1kg", item.Name)
	assert.Equal(t, "Rice 1kg", res.ServerData["name"])
}

func TestUpdateWithoutTimestampSkipsStaleCheck(t *testing.T) {
	rig := newTestRig()
	item := rig.addItem(10, 3)
	item.UpdatedAt = time.Now().UTC()

	results := rig.apply(ClientOperation{
		OpID:       "op-1",
		Type:       OpUpdate,
		EntityType: EntityItem,
		Payload: map[string]interface{}{
			"id":   item.ID.String(),
			"name": "Renamed",
		},
	})

	assert.Equal(t, models.SyncStatusApplied, results[0].Status)
	assert.Equal(t, "Renamed", item.Name)
}

func TestDeleteItemIdempotent(t *testing.T) {
	rig := newTestRig()
	item := rig.addItem(10, 3)

	first := rig.apply(ClientOperation{
		OpID:       "op-1",
		Type:       OpDelete,
		EntityType: EntityItem,
		Payload:    map[string]interface{}{"id": item.ID.String()},
	})
	assert.Equal(t, models.SyncStatusApplied, first[0].Status)
	assert.Empty(t, rig.world.items)

	// A second delete from another device finds nothing and still counts
	// as applied.
	second := rig.apply(ClientOperation{
		OpID:       "op-2",
		Type:       OpDelete,
		EntityType: EntityItem,
		Payload:    map[string]interface{}{"id": item.ID.String()},
	})
	assert.Equal(t, models.SyncStatusApplied, second[0].Status)
}

func TestCreateTagApplied(t *testing.T) {
	rig := newTestRig()

	results := rig.apply(ClientOperation{
		OpID:       "op-1",
		Type:       OpCreate,
		EntityType: EntityTag,
		Payload: map[string]interface{}{
			"tagId": "DK-0000000001",
			"type":  models.TagTypeItem,
		},
	})

	assert.Equal(t, models.SyncStatusApplied, results[0].Status)
	require.Len(t, rig.world.tags, 1)
}

func TestUpdateBusinessScopedToCaller(t *testing.T) {
	rig := newTestRig()
	business := &models.Business{ID: rig.businessID, Name: "Old Name"}
	rig.world.businesses[business.ID] = business

	results := rig.apply(ClientOperation{
		OpID:       "op-1",
		Type:       OpUpdate,
		EntityType: EntityBusiness,
		Payload: map[string]interface{}{
			"id":   rig.businessID.String(),
			"name": "New Name",
		},
	})
	assert.Equal(t, models.SyncStatusApplied, results[0].Status)
	assert.Equal(t, "New Name", business.Name)

	// Another business's id is rejected even if it exists.
	other := &models.Business{ID: uuid.New(), Name: "Other"}
	rig.world.businesses[other.ID] = other
	results = rig.apply(ClientOperation{
		OpID:       "op-2",
		Type:       OpUpdate,
		EntityType: EntityBusiness,
		Payload: map[string]interface{}{
			"id":   other.ID.String(),
			"name": "Hijacked",
		},
	})
	assert.Equal(t, models.SyncStatusFailed, results[0].Status)
	assert.Equal(t, "Other", other.Name)
}

func TestLargeBatchMixedOutcomes(t *testing.T) {
	rig := newTestRig()
	item := rig.addItem(10, 3)

	ops := make([]ClientOperation, 0, 6)
	ops = append(ops,
		adjustOp("op-1", item.ID, -3),           // applied, 7 left
		adjustOp("op-2", item.ID, -10),          // conflict, insufficient
		adjustOp("op-1", item.ID, -3),           // replay of op-1
		adjustOp("op-3", uuid.New(), 5),         // failed, unknown item
		adjustOp("op-4", item.ID, -7),           // applied, 0 left
	)
	ops = append(ops, ClientOperation{OpID: "op-5", Type: "noop"}) // failed

	results := rig.apply(ops...)

	statuses := make([]string, len(results))
	for i, res := range results {
		statuses[i] = res.Status
	}
	assert.Equal(t, []string{
		models.SyncStatusApplied,
		models.SyncStatusConflict,
		models.SyncStatusApplied,
		models.SyncStatusFailed,
		models.SyncStatusApplied,
		models.SyncStatusFailed,
	}, statuses)

	assert.Equal(t, 0, item.Quantity)
	assert.Len(t, rig.ledger.entries, 2)
}

func TestApplyBatchEmptyInput(t *testing.T) {
	rig := newTestRig()
	assert.Empty(t, rig.apply())
}

func TestOperationsSinceOnlyApplied(t *testing.T) {
	rig := newTestRig()
	item := rig.addItem(5, 2)

	rig.apply(
		adjustOp("op-1", item.ID, -1),
		adjustOp("op-2", item.ID, -100),
	)

	ops, err := rig.engine.OperationsSince(context.Background(), rig.businessID, time.Time{})
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, "op-1", ops[0].OpID)

	conflicts, err := rig.engine.ConflictLog(context.Background(), rig.businessID, 10)
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, "op-2", conflicts[0].OpID)
}

func TestReplayDoesNotDependOnPayloadEquality(t *testing.T) {
	rig := newTestRig()
	item := rig.addItem(10, 3)

	rig.apply(adjustOp("op-1", item.ID, -4))

	// Same opId with a different payload: the stored outcome wins and the
	// new payload is ignored.
	replay := rig.apply(ClientOperation{
		OpID: "op-1",
		Type: OpAdjust,
		Payload: map[string]interface{}{
			"itemId": item.ID.String(),
			"delta":  fmt.Sprintf("%d", -999),
		},
	})

	assert.Equal(t, models.SyncStatusApplied, replay[0].Status)
	assert.Equal(t, 6, item.Quantity)
	assert.Len(t, rig.ledger.entries, 1)
}

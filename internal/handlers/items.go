package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/duka-app/dukago/internal/alerts"
	"github.com/duka-app/dukago/internal/database"
	"github.com/duka-app/dukago/internal/ledger"
	"github.com/duka-app/dukago/internal/models"
	"github.com/duka-app/dukago/internal/stock"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"gorm.io/datatypes"
)

// ItemHandler handles inventory item requests
type ItemHandler struct {
	db     *database.DB
	stock  *stock.GormStore
	ledger *ledger.Store
	alerts *alerts.Service
}

// NewItemHandler creates a new item handler
func NewItemHandler(db *database.DB, stockStore *stock.GormStore, ledgerStore *ledger.Store, alertService *alerts.Service) *ItemHandler {
	return &ItemHandler{db: db, stock: stockStore, ledger: ledgerStore, alerts: alertService}
}

// RegisterRoutes registers item routes
func (ih *ItemHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/items", ih.ListItems).Methods("GET")
	r.HandleFunc("/items", ih.CreateItem).Methods("POST")
	r.HandleFunc("/items/{id}", ih.GetItem).Methods("GET")
	r.HandleFunc("/items/{id}", ih.UpdateItem).Methods("PUT")
	r.HandleFunc("/items/{id}", ih.DeleteItem).Methods("DELETE")
	r.HandleFunc("/items/{id}/adjust", ih.AdjustStock).Methods("POST")
	r.HandleFunc("/items/{id}/events", ih.ListEvents).Methods("GET")
}

// ListItems returns the business inventory with optional filters.
func (ih *ItemHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}

	q := ih.db.WithContext(r.Context()).Where("business_id = ?", caller.BusinessID)
	if search := r.URL.Query().Get("search"); search != "" {
		q = q.Where("name ILIKE ?", "%"+search+"%")
	}
	if category := r.URL.Query().Get("category"); category != "" {
		q = q.Where("category = ?", category)
	}
	if r.URL.Query().Get("lowStock") == "true" {
		q = q.Where("quantity <= min_threshold")
	}

	var items []models.Item
	if err := q.Order("name ASC").Find(&items).Error; err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load items")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"items": items,
		"count": len(items),
	})
}

// GetItem returns one item.
func (ih *ItemHandler) GetItem(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	itemID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	item, err := ih.stock.Get(r.Context(), caller.BusinessID, itemID)
	if errors.Is(err, stock.ErrNotFound) {
		respondError(w, http.StatusNotFound, "item not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load item")
		return
	}

	respondJSON(w, http.StatusOK, item)
}

type itemRequest struct {
	Name         string     `json:"name"`
	SKU          string     `json:"sku"`
	Description  string     `json:"description"`
	Quantity     int        `json:"quantity"`
	Unit         string     `json:"unit"`
	Category     string     `json:"category"`
	Location     string     `json:"location"`
	Tags         []string   `json:"tags"`
	MinThreshold int        `json:"minThreshold"`
	Image        string     `json:"image"`
	ExpiryDate   *time.Time `json:"expiryDate"`
}

// CreateItem creates an item. A positive starting quantity becomes the
// first ledger entry.
func (ih *ItemHandler) CreateItem(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}

	var req itemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}
	if req.Quantity < 0 {
		respondError(w, http.StatusBadRequest, "quantity cannot be negative")
		return
	}
	if req.Unit != "" && !models.ValidUnit(req.Unit) {
		respondError(w, http.StatusBadRequest, "unit must be one of pcs, kg, ltr")
		return
	}

	item := &models.Item{
		BusinessID:   caller.BusinessID,
		Name:         req.Name,
		SKU:          req.SKU,
		Description:  req.Description,
		Quantity:     req.Quantity,
		Unit:         req.Unit,
		Category:     req.Category,
		Location:     req.Location,
		Tags:         datatypes.NewJSONSlice(req.Tags),
		MinThreshold: req.MinThreshold,
		Image:        req.Image,
		ExpiryDate:   req.ExpiryDate,
	}
	if err := ih.db.WithContext(r.Context()).Create(item).Error; err != nil {
		respondError(w, http.StatusInternalServerError, "failed to create item")
		return
	}

	if req.Quantity > 0 {
		if _, err := ih.ledger.Append(r.Context(), ledger.Entry{
			ItemID:     item.ID,
			BusinessID: caller.BusinessID,
			UserID:     caller.UserID,
			Delta:      req.Quantity,
			Action:     models.ActionAdded,
			Reason:     "Initial stock",
		}); err != nil {
			log.Printf("⚠️ Initial stock ledger append failed for item %s: %v", item.ID, err)
		}
	}
	if err := ih.alerts.CheckThreshold(r.Context(), caller.BusinessID, item.ID, item.Quantity); err != nil {
		log.Printf("⚠️ Alert evaluation failed for item %s: %v", item.ID, err)
	}

	respondJSON(w, http.StatusCreated, item)
}

// UpdateItem changes item metadata. Quantity is not writable here; it only
// moves through the adjust endpoint so the ledger stays complete.
func (ih *ItemHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	itemID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	var req struct {
		itemRequest
		Version int64 `json:"version"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	item, err := ih.stock.Get(r.Context(), caller.BusinessID, itemID)
	if errors.Is(err, stock.ErrNotFound) {
		respondError(w, http.StatusNotFound, "item not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load item")
		return
	}

	if req.Name != "" {
		item.Name = req.Name
	}
	if req.Unit != "" {
		if !models.ValidUnit(req.Unit) {
			respondError(w, http.StatusBadRequest, "unit must be one of pcs, kg, ltr")
			return
		}
		item.Unit = req.Unit
	}
	item.SKU = req.SKU
	item.Description = req.Description
	item.Category = req.Category
	item.Location = req.Location
	item.Tags = datatypes.NewJSONSlice(req.Tags)
	item.MinThreshold = req.MinThreshold
	item.Image = req.Image
	item.ExpiryDate = req.ExpiryDate

	expected := req.Version
	if expected == 0 {
		expected = item.Version
	}
	if err := ih.stock.SaveVersioned(r.Context(), item, expected); err != nil {
		if errors.Is(err, stock.ErrStaleVersion) {
			respondError(w, http.StatusConflict, "item was modified by someone else, reload and retry")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to update item")
		return
	}

	respondJSON(w, http.StatusOK, item)
}

// DeleteItem soft deletes an item.
func (ih *ItemHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	itemID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	res := ih.db.WithContext(r.Context()).
		Where("business_id = ? AND id = ?", caller.BusinessID, itemID).
		Delete(&models.Item{})
	if res.Error != nil {
		respondError(w, http.StatusInternalServerError, "failed to delete item")
		return
	}
	if res.RowsAffected == 0 {
		respondError(w, http.StatusNotFound, "item not found")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// AdjustStock applies a signed quantity delta and records it in the ledger.
func (ih *ItemHandler) AdjustStock(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	itemID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	var req struct {
		Delta  int    `json:"delta"`
		Action string `json:"action"`
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Delta == 0 {
		respondError(w, http.StatusBadRequest, "delta cannot be zero")
		return
	}
	if req.Action != "" && !models.ValidAction(req.Action) {
		respondError(w, http.StatusBadRequest, "unknown action")
		return
	}

	m, err := ih.stock.Adjust(r.Context(), caller.BusinessID, itemID, req.Delta)
	if errors.Is(err, stock.ErrNotFound) {
		respondError(w, http.StatusNotFound, "item not found")
		return
	}
	if errors.Is(err, stock.ErrInsufficientStock) {
		respondError(w, http.StatusConflict, "insufficient stock")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to adjust stock")
		return
	}

	reason := req.Reason
	if reason == "" {
		reason = "Manual adjustment"
	}
	event, err := ih.ledger.Append(r.Context(), ledger.Entry{
		ItemID:     itemID,
		BusinessID: caller.BusinessID,
		UserID:     caller.UserID,
		Delta:      req.Delta,
		Action:     req.Action,
		Reason:     reason,
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "stock changed but event recording failed")
		return
	}

	if err := ih.alerts.CheckThreshold(r.Context(), caller.BusinessID, itemID, m.Quantity); err != nil {
		log.Printf("⚠️ Alert evaluation failed for item %s: %v", itemID, err)
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"quantity":  m.Quantity,
		"version":   m.Version,
		"updatedAt": m.UpdatedAt,
		"event":     event,
	})
}

// ListEvents returns the item's movement history, newest first.
func (ih *ItemHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	itemID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	events, err := ih.ledger.ListByItem(r.Context(), caller.BusinessID, itemID, 100)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load events")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"events": events,
		"count":  len(events),
	})
}

package handlers

import (
	"errors"
	"net/http"

	"github.com/duka-app/dukago/internal/alerts"
	"github.com/duka-app/dukago/internal/notify"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// AlertHandler handles alert and notification requests
type AlertHandler struct {
	store         *alerts.GormStore
	notifications notify.Store
}

// NewAlertHandler creates a new alert handler
func NewAlertHandler(store *alerts.GormStore, notifications notify.Store) *AlertHandler {
	return &AlertHandler{store: store, notifications: notifications}
}

// RegisterRoutes registers alert routes
func (ah *AlertHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/alerts", ah.ListAlerts).Methods("GET")
	r.HandleFunc("/alerts/{id}/resolve", ah.ResolveAlert).Methods("POST")
	r.HandleFunc("/notifications", ah.ListNotifications).Methods("GET")
}

// ListAlerts returns open alerts, or the full history with ?includeResolved=true.
func (ah *AlertHandler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}

	includeResolved := r.URL.Query().Get("includeResolved") == "true"
	list, err := ah.store.ListByBusiness(r.Context(), caller.BusinessID, includeResolved)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load alerts")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"alerts": list,
		"count":  len(list),
	})
}

// ResolveAlert manually closes an alert. The threshold checker may reopen
// it on the next quantity change if the condition still holds.
func (ah *AlertHandler) ResolveAlert(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	alertID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid alert id")
		return
	}

	alert, err := ah.store.Resolve(r.Context(), caller.BusinessID, alertID)
	if errors.Is(err, alerts.ErrAlertNotFound) {
		respondError(w, http.StatusNotFound, "alert not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to resolve alert")
		return
	}

	respondJSON(w, http.StatusOK, alert)
}

// ListNotifications returns the caller's recent notifications.
func (ah *AlertHandler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}

	list, err := ah.notifications.ListForUser(r.Context(), caller.UserID, 50)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load notifications")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"notifications": list,
		"count":         len(list),
	})
}

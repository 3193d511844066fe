package handlers

import (
	"net/http"
	"time"

	"github.com/duka-app/dukago/internal/database"
	"github.com/duka-app/dukago/internal/ledger"
	"github.com/duka-app/dukago/internal/models"
	"github.com/duka-app/dukago/internal/services/export"
	"github.com/gorilla/mux"
)

// ReportHandler handles ledger reads and report exports
type ReportHandler struct {
	db       *database.DB
	ledger   *ledger.Store
	exporter *export.Service
}

// NewReportHandler creates a new report handler
func NewReportHandler(db *database.DB, ledgerStore *ledger.Store, exporter *export.Service) *ReportHandler {
	return &ReportHandler{db: db, ledger: ledgerStore, exporter: exporter}
}

// RegisterRoutes registers report routes
func (rh *ReportHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/events", rh.ListEvents).Methods("GET")
	r.HandleFunc("/ledger/verify", rh.VerifyLedger).Methods("GET")
	r.HandleFunc("/reports/stock.csv", rh.StockCSV).Methods("GET")
	r.HandleFunc("/reports/events.csv", rh.EventsCSV).Methods("GET")
	r.HandleFunc("/reports/stock.pdf", rh.StockPDF).Methods("GET")
}

// ListEvents returns business-wide ledger entries after a timestamp.
func (rh *ReportHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}

	since, ok := parseSince(w, r)
	if !ok {
		return
	}

	events, err := rh.ledger.ListByBusiness(r.Context(), caller.BusinessID, since)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load events")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"events": events,
		"count":  len(events),
	})
}

// VerifyLedger cross-checks each item's quantity against the sum of its
// ledger deltas and reports any divergence.
func (rh *ReportHandler) VerifyLedger(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}

	results, err := rh.ledger.VerifyBusiness(r.Context(), caller.BusinessID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "verification failed")
		return
	}

	diverged := make([]ledger.VerifyResult, 0)
	for _, res := range results {
		if !res.Consistent {
			diverged = append(diverged, res)
		}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"checked":    len(results),
		"diverged":   diverged,
		"consistent": len(diverged) == 0,
	})
}

// StockCSV exports the current inventory as CSV.
func (rh *ReportHandler) StockCSV(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}

	data, err := rh.exporter.StockSummaryCSV(r.Context(), caller.BusinessID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "export failed")
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="stock.csv"`)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// EventsCSV exports the movement ledger as CSV.
func (rh *ReportHandler) EventsCSV(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}

	since, ok := parseSince(w, r)
	if !ok {
		return
	}

	data, err := rh.exporter.EventHistoryCSV(r.Context(), caller.BusinessID, since)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "export failed")
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="events.csv"`)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// StockPDF exports a printable stock report.
func (rh *ReportHandler) StockPDF(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}

	var business models.Business
	if err := rh.db.WithContext(r.Context()).First(&business, "id = ?", caller.BusinessID).Error; err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load business")
		return
	}

	data, err := rh.exporter.StockReportPDF(r.Context(), &business)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "export failed")
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="stock.pdf"`)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func parseSince(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	raw := r.URL.Query().Get("since")
	if raw == "" {
		return time.Time{}, true
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		respondError(w, http.StatusBadRequest, "since must be RFC3339")
		return time.Time{}, false
	}
	return parsed, true
}

package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/duka-app/dukago/internal/alerts"
	"github.com/duka-app/dukago/internal/database"
	"github.com/duka-app/dukago/internal/ledger"
	"github.com/duka-app/dukago/internal/middleware"
	"github.com/duka-app/dukago/internal/notify"
	"github.com/duka-app/dukago/internal/services/export"
	"github.com/duka-app/dukago/internal/services/printer"
	"github.com/duka-app/dukago/internal/stock"
	syncpkg "github.com/duka-app/dukago/internal/sync"
	ws "github.com/duka-app/dukago/internal/websocket"
	"github.com/gorilla/mux"
)

// Deps carries everything the HTTP layer needs.
type Deps struct {
	DB            *database.DB
	JWTSecret     string
	Engine        *syncpkg.Engine
	Stock         *stock.GormStore
	Ledger        *ledger.Store
	Alerts        *alerts.Service
	AlertStore    *alerts.GormStore
	Notifications notify.Store
	Hub           *ws.Hub
	Exporter      *export.Service
	Printer       *printer.Generator
	RetentionDays int
}

// NewRouter creates a new HTTP router with all routes
func NewRouter(deps Deps) *mux.Router {
	r := mux.NewRouter()

	// Health check endpoint
	r.HandleFunc("/health", func(w http.ResponseWriter, req *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{
			"status": "ok",
			"server": "local",
		})
	}).Methods("GET")

	// Auth routes (public)
	authHandler := NewAuthHandler(deps.DB, deps.JWTSecret)
	auth := r.PathPrefix("/auth").Subrouter()
	auth.HandleFunc("/register", authHandler.Register).Methods("POST")
	auth.HandleFunc("/login", authHandler.Login).Methods("POST")

	// Everything under /api requires a valid token
	api := r.PathPrefix("/api").Subrouter()
	api.Use(middleware.AuthMiddleware(deps.JWTSecret))

	NewSyncHandler(deps.Engine, deps.RetentionDays).RegisterRoutes(api)
	NewItemHandler(deps.DB, deps.Stock, deps.Ledger, deps.Alerts).RegisterRoutes(api)
	NewTagHandler(deps.DB, deps.Printer).RegisterRoutes(api)
	NewAlertHandler(deps.AlertStore, deps.Notifications).RegisterRoutes(api)
	NewReportHandler(deps.DB, deps.Ledger, deps.Exporter).RegisterRoutes(api)

	// Live notification stream
	api.HandleFunc("/ws", func(w http.ResponseWriter, req *http.Request) {
		caller, ok := middleware.CallerFromContext(req.Context())
		if !ok {
			respondError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		ws.ServeWs(deps.Hub, caller.UserID, w, req)
	}).Methods("GET")

	return r
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError sends an error response
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}

// requireCaller pulls the authenticated caller or writes a 401.
func requireCaller(w http.ResponseWriter, r *http.Request) (*middleware.Caller, bool) {
	caller, ok := middleware.CallerFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
	}
	return caller, ok
}

package handler

import (
	"net/http"

	"lecturegate/internal/middleware"
	"lecturegate/pkg/logger"

	"github.com/gorilla/mux"
)

// NewRouter assembles the HTTP surface: the Telegram webhook, the admin
// API, and health probes, behind the shared middleware chain.
func NewRouter(webhook *WebhookHandler, admin *AdminHandler, auth *middleware.AuthMiddleware, log logger.Logger) *mux.Router {
	r := mux.NewRouter()

	r.Use(middleware.Recovery)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.CorrelationID)
	r.Use(middleware.NewLoggingMiddleware(log).Log)
	r.Use(middleware.BodyLimit(1 << 20))

	r.HandleFunc("/api/webhook", webhook.ServeWebhook).Methods(http.MethodGet, http.MethodPost)
	r.HandleFunc("/api/health", healthCheck).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1/admin").Subrouter()
	api.HandleFunc("/login", admin.Login).Methods(http.MethodPost)

	protected := api.NewRoute().Subrouter()
	protected.Use(auth.Authenticate)
	protected.HandleFunc("/approve", admin.Approve).Methods(http.MethodPost)
	protected.HandleFunc("/students/{id}", admin.GetStudent).Methods(http.MethodGet)

	return r
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

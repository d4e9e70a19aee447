package api

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/nidhogg/tappy/internal/gateway"
	"github.com/nidhogg/tappy/internal/notify"
	"github.com/nidhogg/tappy/internal/orchestrator"
	"github.com/nidhogg/tappy/internal/skill"
	"github.com/nidhogg/tappy/internal/store"
)

// Deps are the collaborators behind the HTTP surface. Relays and Metrics
// may be nil.
type Deps struct {
	Repo     store.Repository
	Queue    *orchestrator.Queue
	Worker   *orchestrator.Worker
	Registry *skill.Registry
	Hub      *notify.Hub
	Relays   *gateway.Gateway
	Metrics  http.Handler

	// Limits bounds notification edits. Zero values take notify.DefaultLimits.
	Limits notify.Limits

	CORSOrigins    []string
	AllowAnyOrigin bool
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	deps   Deps
	logger *zap.Logger
}

// NewHandler creates a new API handler.
func NewHandler(deps Deps, logger *zap.Logger) *Handler {
	if deps.Limits.TitleMax <= 0 {
		deps.Limits.TitleMax = notify.DefaultLimits.TitleMax
	}
	return &Handler{deps: deps, logger: logger}
}

// Router builds the chi router with all routes.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: h.allowedOrigins(),
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}))

	r.Get("/", h.healthCheck)
	if h.deps.Metrics != nil {
		r.Handle("/metrics", h.deps.Metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.healthCheck)

		r.Post("/entries", h.createEntry)
		r.Get("/entries", h.listEntries)
		r.Get("/entries/{id}", h.getEntry)
		r.Delete("/entries/{id}", h.deleteEntry)

		r.Get("/notifications", h.listNotifications)
		r.Get("/notifications/{id}", h.getNotification)
		r.Put("/notifications/{id}", h.updateNotification)
		r.Patch("/notifications/{id}/read", h.markNotificationRead)
		r.Delete("/notifications/{id}", h.deleteNotification)

		r.Get("/skills", h.listSkills)
		r.Get("/queue", h.queueStatus)

		r.Get("/events", h.deps.Hub.ServeSSE)
		r.Get("/ws", h.deps.Hub.WebSocket(h.checkOrigin))
	})

	return r
}

func (h *Handler) allowedOrigins() []string {
	if h.deps.AllowAnyOrigin || len(h.deps.CORSOrigins) == 0 {
		return []string{"*"}
	}
	return h.deps.CORSOrigins
}

// checkOrigin admits non-browser clients, same-host pages and the
// configured frontend origins.
func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" || h.deps.AllowAnyOrigin {
		return true
	}
	for _, allowed := range h.deps.CORSOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, r.Host)
}

func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"status":      "ok",
		"skills":      h.deps.Registry.Len(),
		"queue_depth": h.deps.Queue.Len(),
		"subscribers": h.deps.Hub.Count(),
	}
	if h.deps.Relays != nil {
		resp["relays"] = h.deps.Relays.Relays()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) listSkills(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.deps.Registry.List())
}

func (h *Handler) queueStatus(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"depth":    h.deps.Queue.Len(),
		"capacity": h.deps.Queue.Cap(),
		"workers":  1,
	}
	if h.deps.Worker != nil {
		resp["processed"] = h.deps.Worker.Processed()
		resp["busy"] = h.deps.Worker.Busy()
	}
	writeJSON(w, http.StatusOK, resp)
}

func pageFrom(r *http.Request) store.Page {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	return store.Page{Limit: limit, Offset: offset}
}

func idParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

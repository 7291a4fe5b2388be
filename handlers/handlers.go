package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"pricecompare/middleware"
	"pricecompare/models"
	"pricecompare/services"
	"pricecompare/storage"
	"pricecompare/utils"
)

// Comparer is the part of services.CompareService the HTTP layer needs.
type Comparer interface {
	Compare(ctx context.Context, query string) ([]*models.ProductGroup, bool, error)
	ClearCache()
}

type Handlers struct {
	svc       Comparer
	port      int
	publicDir string
	logger    *utils.Logger
}

func NewHandlers(svc Comparer, port int, publicDir string, logger *utils.Logger) *Handlers {
	return &Handlers{svc: svc, port: port, publicDir: publicDir, logger: logger}
}

// Router builds the mux router with logging, request ids and a per-IP limit
// on /compare. rps <= 0 disables the limit.
func (h *Handlers) Router(rps float64) *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging(h.logger))

	r.Handle("/compare", middleware.RateLimit(rps)(http.HandlerFunc(h.Compare))).Methods("GET")
	r.HandleFunc("/clear-cache", h.ClearCache).Methods("GET")
	r.HandleFunc("/api/health", h.HealthCheck).Methods("GET")
	r.HandleFunc("/api/test", h.Test).Methods("GET")
	r.PathPrefix("/").Handler(http.FileServer(http.Dir(h.publicDir)))
	return r
}

// Compare handles GET /compare?q=<query>[&format=csv].
func (h *Handlers) Compare(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeError(w, http.StatusBadRequest, "Missing query")
		return
	}

	groups, cached, err := h.svc.Compare(r.Context(), query)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrEmptyQuery):
			writeError(w, http.StatusBadRequest, "Missing query")
		case errors.Is(err, services.ErrQueryTimeout):
			h.logger.Warn("[http] compare %q timed out: %v", query, err)
			writeError(w, http.StatusGatewayTimeout, "timeout")
		default:
			h.logger.Error("[http] compare %q failed: %v", query, err)
			writeError(w, http.StatusInternalServerError, "scrape_failed")
		}
		return
	}
	if groups == nil {
		groups = []*models.ProductGroup{}
	}

	if cached {
		w.Header().Set("X-Cache", "HIT")
	} else {
		w.Header().Set("X-Cache", "MISS")
	}

	if strings.EqualFold(r.URL.Query().Get("format"), "csv") {
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="compare.csv"`)
		cw, err := storage.NewCSVWriter(w)
		if err == nil {
			err = cw.WriteGroups(groups)
		}
		if err == nil {
			err = cw.Close()
		}
		if err != nil {
			h.logger.Error("[http] writing csv for %q: %v", query, err)
		}
		return
	}

	writeJSON(w, http.StatusOK, groups)
}

func (h *Handlers) ClearCache(w http.ResponseWriter, r *http.Request) {
	h.svc.ClearCache()
	h.logger.Info("[http] Cache cleared")
	writeJSON(w, http.StatusOK, map[string]string{"message": "Cache cleared"})
}

func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"port":      h.port,
	})
}

func (h *Handlers) Test(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"message":   "Server is working",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

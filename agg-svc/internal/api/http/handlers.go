package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"smartbill/agg-svc/internal/domain"
	"smartbill/agg-svc/internal/service"
)

type Handler struct {
	Reports service.ReportServiceInterface
	Log     *log.Entry
}

func NewHandler(reports service.ReportServiceInterface, logger *log.Entry) *Handler {
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	return &Handler{Reports: reports, Log: logger}
}

func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/health", h.healthCheck).Methods("GET")
	r.HandleFunc("/api/reports/daily", h.getDailyReport).Methods("GET")
}

func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"service":   "agg-svc",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

func (h *Handler) getDailyReport(w http.ResponseWriter, r *http.Request) {
	report, err := h.Reports.DailyReport(r.Context(), r.URL.Query().Get("date"))
	if err != nil {
		if errors.Is(err, domain.ErrInvalidDate) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		h.Log.WithError(err).Error("Failed to load daily report")
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "report store unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

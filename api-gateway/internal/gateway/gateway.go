package gateway

import (
	"encoding/json"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"smartbill/middleware"
)

type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

type Config struct {
	BillingSvcURL string
	AggSvcURL     string
	FrontendDir   string
}

type Gateway struct {
	config  Config
	client  HTTPClient
	session SessionValidator
	log     *log.Entry
}

// NewGateway builds a gateway. A nil session validator leaves the API open.
func NewGateway(config Config, client HTTPClient, session SessionValidator, logger *log.Entry) *Gateway {
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	if config.FrontendDir == "" {
		config.FrontendDir = "./frontend"
	}
	return &Gateway{
		config:  config,
		client:  client,
		session: session,
		log:     logger,
	}
}

func (g *Gateway) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "api-gateway",
	})
}

func (g *Gateway) ProxyRequest(w http.ResponseWriter, r *http.Request, targetURL string) {
	entry := g.log.WithFields(log.Fields{
		"method": r.Method,
		"path":   r.URL.Path,
		"target": targetURL,
	})
	entry.Debug("proxy")

	url := strings.TrimRight(targetURL, "/") + r.URL.Path
	if r.URL.RawQuery != "" {
		url += "?" + r.URL.RawQuery
	}

	req, err := http.NewRequestWithContext(r.Context(), r.Method, url, r.Body)
	if err != nil {
		entry.WithError(err).Error("Failed to create request")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	for k, v := range r.Header {
		req.Header[k] = v
	}

	resp, err := g.client.Do(req)
	if err != nil {
		entry.WithError(err).Error("Failed to proxy request")
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "upstream unavailable"})
		return
	}
	defer resp.Body.Close()

	for k, v := range resp.Header {
		w.Header()[k] = v
	}
	w.WriteHeader(resp.StatusCode)

	if _, err := io.Copy(w, resp.Body); err != nil {
		entry.WithError(err).Warn("Failed to copy response")
	}
}

func (g *Gateway) RouteHandler(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path

	switch {
	case path == "/api/tables" || strings.HasPrefix(path, "/api/tables/"):
		g.ProxyRequest(w, r, g.config.BillingSvcURL)
	case path == "/api/reports" || strings.HasPrefix(path, "/api/reports/"):
		g.ProxyRequest(w, r, g.config.AggSvcURL)
	case strings.HasPrefix(path, "/api/"):
		g.log.WithField("path", path).Debug("Unmatched API route")
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "API route not found"})
	default:
		http.ServeFile(w, r, filepath.Join(g.config.FrontendDir, "index.html"))
	}
}

func (g *Gateway) SetupRoutes() http.Handler {
	r := mux.NewRouter()
	r.Use(middleware.Logging(g.log))
	r.HandleFunc("/health", g.HealthCheck).Methods("GET")

	r.PathPrefix("/api/").Handler(Guard(g.session)(http.HandlerFunc(g.RouteHandler)))

	r.PathPrefix("/static/").Handler(http.StripPrefix("/static/", http.FileServer(http.Dir(g.config.FrontendDir))))
	r.PathPrefix("/").HandlerFunc(g.RouteHandler)
	return r
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"smartbill/billing-svc/internal/domain"
	"smartbill/billing-svc/internal/ledger"
	"smartbill/billing-svc/internal/service"
)

const maxBodyBytes = 1 << 20

type Handler struct {
	Billing service.BillingServiceInterface
	Log     *log.Entry
}

func NewHandler(billing service.BillingServiceInterface, logger *log.Entry) *Handler {
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	return &Handler{Billing: billing, Log: logger}
}

func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/health", h.healthCheck).Methods("GET")

	r.HandleFunc("/api/tables", h.createTable).Methods("POST")
	r.HandleFunc("/api/tables", h.listTables).Methods("GET")
	r.HandleFunc("/api/tables/{id}", h.getTable).Methods("GET")
	r.HandleFunc("/api/tables/{id}", h.deleteTable).Methods("DELETE")
	r.HandleFunc("/api/tables/{id}/orders", h.addOrder).Methods("POST")
	r.HandleFunc("/api/tables/{id}/payments", h.addPayment).Methods("POST")
	r.HandleFunc("/api/tables/{id}/reset", h.resetTable).Methods("POST")
	r.HandleFunc("/api/tables/{id}/qrcode", h.getTableQRCode).Methods("GET")
}

type createTableRequest struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type addOrderRequest struct {
	ProductName string       `json:"product_name"`
	Amount      domain.Money `json:"amount"`
}

type addPaymentRequest struct {
	Amount domain.Money `json:"amount"`
}

type orderLineResponse struct {
	ID          int64        `json:"id"`
	ProductName string       `json:"product_name"`
	Amount      domain.Money `json:"amount"`
}

type tableResponse struct {
	ID               string              `json:"id"`
	Name             string              `json:"name"`
	Status           domain.TableStatus  `json:"status"`
	Orders           []orderLineResponse `json:"orders"`
	TotalOrdered     domain.Money        `json:"total_ordered"`
	TotalPaid        domain.Money        `json:"total_paid"`
	RemainingBalance domain.Money        `json:"remaining_balance"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Op      string `json:"op,omitempty"`
	TableID string `json:"table_id,omitempty"`
}

func newTableResponse(table *domain.Table) tableResponse {
	orders := make([]orderLineResponse, 0, len(table.Orders))
	for _, line := range table.Orders {
		orders = append(orders, orderLineResponse{
			ID:          line.ID,
			ProductName: line.ProductName,
			Amount:      line.Amount,
		})
	}
	return tableResponse{
		ID:               table.ID,
		Name:             table.Name,
		Status:           table.Status(),
		Orders:           orders,
		TotalOrdered:     table.TotalOrdered,
		TotalPaid:        table.TotalPaid,
		RemainingBalance: table.RemainingBalance(),
	}
}

func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"service":   "billing-svc",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

func (h *Handler) createTable(w http.ResponseWriter, r *http.Request) {
	var req createTableRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.writeError(w, domain.Invalid(ledger.OpCreate, "", "invalid JSON body: %v", err))
		return
	}
	table, err := h.Billing.CreateTable(r.Context(), req.ID, req.Name)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, newTableResponse(table))
}

func (h *Handler) listTables(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.Billing.ListTables(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	if summaries == nil {
		summaries = []domain.TableSummary{}
	}
	h.writeJSON(w, http.StatusOK, summaries)
}

func (h *Handler) getTable(w http.ResponseWriter, r *http.Request) {
	table, err := h.Billing.GetTable(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, newTableResponse(table))
}

func (h *Handler) deleteTable(w http.ResponseWriter, r *http.Request) {
	if err := h.Billing.DeleteTable(r.Context(), mux.Vars(r)["id"]); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) addOrder(w http.ResponseWriter, r *http.Request) {
	tableID := mux.Vars(r)["id"]
	var req addOrderRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.writeError(w, domain.Invalid(ledger.OpAddOrder, tableID, "invalid JSON body: %v", err))
		return
	}
	table, err := h.Billing.AddOrder(r.Context(), tableID, req.ProductName, req.Amount)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, newTableResponse(table))
}

func (h *Handler) addPayment(w http.ResponseWriter, r *http.Request) {
	tableID := mux.Vars(r)["id"]
	var req addPaymentRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.writeError(w, domain.Invalid(ledger.OpAddPayment, tableID, "invalid JSON body: %v", err))
		return
	}
	table, err := h.Billing.AddPayment(r.Context(), tableID, req.Amount)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, newTableResponse(table))
}

func (h *Handler) resetTable(w http.ResponseWriter, r *http.Request) {
	if err := h.Billing.ResetTable(r.Context(), mux.Vars(r)["id"]); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) getTableQRCode(w http.ResponseWriter, r *http.Request) {
	png, err := h.Billing.TableQRCode(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(png); err != nil {
		h.Log.WithError(err).Warn("write qr code response")
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, domain.ErrStoreUnavailable), errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	resp := errorResponse{Error: err.Error()}
	var opErr *domain.OpError
	if errors.As(err, &opErr) {
		resp.Op = opErr.Op
		resp.TableID = opErr.TableID
	}

	entry := h.Log.WithError(err).WithFields(log.Fields{"op": resp.Op, "table_id": resp.TableID, "status": status})
	if status >= http.StatusInternalServerError {
		entry.Error("request failed")
	} else {
		entry.Debug("request rejected")
	}
	h.writeJSON(w, status, resp)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.Log.WithError(err).Warn("write response")
	}
}

package payments

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/ledgerline-erp/ledgerline-erp/internal/coa"
	"github.com/ledgerline-erp/ledgerline-erp/internal/periods"
	"github.com/ledgerline-erp/ledgerline-erp/internal/platform/httpx"
)

// Handler wires payment voucher endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers HTTP routes for payments.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/payments", h.handleList)
	r.Post("/payments", h.handleCreate)
	r.Get("/payments/{id}", h.handleGet)
	r.Put("/payments/{id}", h.handleUpdate)
	r.Delete("/payments/{id}", h.handleDelete)
	r.Post("/payments/{id}/post", h.handlePost)
	r.Post("/payments/{id}/reverse", h.handleReverse)
}

type paymentRequest struct {
	Type          string          `json:"type" validate:"required,oneof=RECEIPT DISBURSEMENT"`
	CustomerID    *int64          `json:"customer_id"`
	SupplierID    *int64          `json:"supplier_id"`
	Date          string          `json:"date" validate:"required"`
	Amount        decimal.Decimal `json:"amount"`
	CashAccountID int64           `json:"cash_account_id"`
	Description   string          `json:"description"`
}

type paymentResponse struct {
	ID             int64  `json:"id"`
	Type           string `json:"type"`
	VoucherNumber  string `json:"voucher_number"`
	CustomerID     *int64 `json:"customer_id,omitempty"`
	SupplierID     *int64 `json:"supplier_id,omitempty"`
	Date           string `json:"date"`
	Amount         string `json:"amount"`
	CashAccountID  int64  `json:"cash_account_id,omitempty"`
	Description    string `json:"description,omitempty"`
	JournalEntryID *int64 `json:"journal_entry_id,omitempty"`
	Locked         bool   `json:"locked"`
}

func toPaymentResponse(p Payment) paymentResponse {
	return paymentResponse{
		ID:             p.ID,
		Type:           string(p.Type),
		VoucherNumber:  p.VoucherNumber,
		CustomerID:     p.CustomerID,
		SupplierID:     p.SupplierID,
		Date:           p.Date.Format("2006-01-02"),
		Amount:         p.Amount.StringFixed(2),
		CashAccountID:  p.CashAccountID,
		Description:    p.Description,
		JournalEntryID: p.JournalEntryID,
		Locked:         p.Locked,
	}
}

func (h *Handler) decodePayment(w http.ResponseWriter, r *http.Request) (paymentRequest, time.Time, bool) {
	var req paymentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return req, time.Time{}, false
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
		return req, time.Time{}, false
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "date must be YYYY-MM-DD")
		return req, time.Time{}, false
	}
	return req, date, true
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	unposted := r.URL.Query().Get("unposted") == "true"
	vouchers, err := h.service.List(r.Context(), unposted)
	if err != nil {
		h.logger.Error("list payments", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Server Error", "failed to list payments")
		return
	}
	out := make([]paymentResponse, 0, len(vouchers))
	for _, p := range vouchers {
		out = append(out, toPaymentResponse(p))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	req, date, ok := h.decodePayment(w, r)
	if !ok {
		return
	}
	payment, err := h.service.Create(r.Context(), CreateInput{
		Type:          Type(req.Type),
		CustomerID:    req.CustomerID,
		SupplierID:    req.SupplierID,
		Date:          date,
		Amount:        req.Amount,
		CashAccountID: req.CashAccountID,
		Description:   req.Description,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toPaymentResponse(payment))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid payment id")
		return
	}
	payment, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toPaymentResponse(payment))
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid payment id")
		return
	}
	req, date, ok := h.decodePayment(w, r)
	if !ok {
		return
	}
	payment, err := h.service.Update(r.Context(), UpdateInput{
		ID:            id,
		CustomerID:    req.CustomerID,
		SupplierID:    req.SupplierID,
		Date:          date,
		Amount:        req.Amount,
		CashAccountID: req.CashAccountID,
		Description:   req.Description,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toPaymentResponse(payment))
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid payment id")
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handlePost(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid payment id")
		return
	}
	actorID, _ := strconv.ParseInt(r.URL.Query().Get("actor_id"), 10, 64)
	entry, err := h.service.Post(r.Context(), id, actorID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"journal_entry_id": entry.ID,
		"serial_number":    entry.SerialNumber,
	})
}

func (h *Handler) handleReverse(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid payment id")
		return
	}
	actorID, _ := strconv.ParseInt(r.URL.Query().Get("actor_id"), 10, 64)
	entry, err := h.service.Reverse(r.Context(), id, actorID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"journal_entry_id": entry.ID,
		"serial_number":    entry.SerialNumber,
	})
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrPaymentNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrPaymentLocked), errors.Is(err, ErrPartyMismatch), errors.Is(err, ErrInvalidAmount),
		errors.Is(err, coa.ErrMissingControlAccount),
		errors.Is(err, periods.ErrPeriodClosed), errors.Is(err, periods.ErrNoPeriodCovers):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Unprocessable Entity", err.Error())
	default:
		h.logger.Error("payment operation", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Server Error", "payment operation failed")
	}
}

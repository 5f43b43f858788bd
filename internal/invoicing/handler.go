package invoicing

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
	"github.com/ledgerline-erp/ledgerline-erp/internal/costing"
	"github.com/ledgerline-erp/ledgerline-erp/internal/periods"
	"github.com/ledgerline-erp/ledgerline-erp/internal/platform/httpx"
)

// Handler wires invoice endpoints for both kinds.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers HTTP routes for invoices.
func (h *Handler) MountRoutes(r chi.Router) {
	for prefix, kind := range map[string]Kind{
		"/sales-invoices":    KindSales,
		"/purchase-invoices": KindPurchase,
	} {
		kind := kind
		r.Route(prefix, func(r chi.Router) {
			r.Get("/", h.list(kind))
			r.Post("/", h.create(kind))
			r.Get("/{id}", h.get(kind))
			r.Put("/{id}", h.update(kind))
			r.Delete("/{id}", h.remove(kind))
			r.Post("/{id}/post", h.post(kind))
			r.Post("/{id}/reverse", h.reverse(kind))
		})
	}
}

type itemRequest struct {
	ProductID int64           `json:"product_id" validate:"required"`
	Qty       decimal.Decimal `json:"qty"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type invoiceRequest struct {
	PartyID int64         `json:"party_id" validate:"required"`
	Date    string        `json:"date" validate:"required"`
	Items   []itemRequest `json:"items" validate:"dive"`
}

type itemResponse struct {
	ID        int64  `json:"id"`
	ProductID int64  `json:"product_id"`
	Qty       string `json:"qty"`
	UnitPrice string `json:"unit_price"`
}

type invoiceResponse struct {
	ID             int64          `json:"id"`
	Number         string         `json:"number"`
	PartyID        int64          `json:"party_id"`
	Date           string         `json:"date"`
	Total          string         `json:"total"`
	JournalEntryID *int64         `json:"journal_entry_id,omitempty"`
	Items          []itemResponse `json:"items,omitempty"`
}

func toInvoiceResponse(inv Invoice) invoiceResponse {
	out := invoiceResponse{
		ID:             inv.ID,
		Number:         inv.Number,
		PartyID:        inv.PartyID,
		Date:           inv.Date.Format("2006-01-02"),
		Total:          inv.Total.StringFixed(2),
		JournalEntryID: inv.JournalEntryID,
	}
	for _, it := range inv.Items {
		out.Items = append(out.Items, itemResponse{
			ID: it.ID, ProductID: it.ProductID,
			Qty: it.Qty.String(), UnitPrice: it.UnitPrice.String(),
		})
	}
	return out
}

func (h *Handler) decodeInvoice(w http.ResponseWriter, r *http.Request) (invoiceRequest, time.Time, bool) {
	var req invoiceRequest
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

func toItemInputs(items []itemRequest) []ItemInput {
	out := make([]ItemInput, 0, len(items))
	for _, it := range items {
		out = append(out, ItemInput{ProductID: it.ProductID, Qty: it.Qty, UnitPrice: it.UnitPrice})
	}
	return out
}

func (h *Handler) list(kind Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		unposted := r.URL.Query().Get("unposted") == "true"
		invoices, err := h.service.List(r.Context(), kind, unposted)
		if err != nil {
			h.logger.Error("list invoices", slog.Any("error", err))
			httpx.Problem(w, http.StatusInternalServerError, "Internal Server Error", "failed to list invoices")
			return
		}
		out := make([]invoiceResponse, 0, len(invoices))
		for _, inv := range invoices {
			out = append(out, toInvoiceResponse(inv))
		}
		httpx.JSON(w, http.StatusOK, out)
	}
}

func (h *Handler) create(kind Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, date, ok := h.decodeInvoice(w, r)
		if !ok {
			return
		}
		invoice, err := h.service.Create(r.Context(), CreateInput{
			Kind: kind, PartyID: req.PartyID, Date: date, Items: toItemInputs(req.Items),
		})
		if err != nil {
			h.respondError(w, err)
			return
		}
		httpx.JSON(w, http.StatusCreated, toInvoiceResponse(invoice))
	}
}

func (h *Handler) get(kind Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid invoice id")
			return
		}
		invoice, err := h.service.Get(r.Context(), kind, id)
		if err != nil {
			h.respondError(w, err)
			return
		}
		httpx.JSON(w, http.StatusOK, toInvoiceResponse(invoice))
	}
}

func (h *Handler) update(kind Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid invoice id")
			return
		}
		req, date, ok := h.decodeInvoice(w, r)
		if !ok {
			return
		}
		invoice, err := h.service.Update(r.Context(), UpdateInput{
			ID: id, Kind: kind, PartyID: req.PartyID, Date: date, Items: toItemInputs(req.Items),
		})
		if err != nil {
			h.respondError(w, err)
			return
		}
		httpx.JSON(w, http.StatusOK, toInvoiceResponse(invoice))
	}
}

func (h *Handler) remove(kind Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid invoice id")
			return
		}
		if err := h.service.Delete(r.Context(), kind, id); err != nil {
			h.respondError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (h *Handler) post(kind Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid invoice id")
			return
		}
		actorID, _ := strconv.ParseInt(r.URL.Query().Get("actor_id"), 10, 64)
		entry, err := h.service.Post(r.Context(), kind, id, actorID)
		if err != nil {
			h.respondError(w, err)
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]any{
			"journal_entry_id": entry.ID,
			"serial_number":    entry.SerialNumber,
		})
	}
}

func (h *Handler) reverse(kind Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid invoice id")
			return
		}
		actorID, _ := strconv.ParseInt(r.URL.Query().Get("actor_id"), 10, 64)
		entry, err := h.service.Reverse(r.Context(), kind, id, actorID)
		if err != nil {
			h.respondError(w, err)
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]any{
			"journal_entry_id": entry.ID,
			"serial_number":    entry.SerialNumber,
		})
	}
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvoiceNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrInvoicePosted), errors.Is(err, ErrNoItems), errors.Is(err, ErrZeroTotal),
		errors.Is(err, ErrInvalidItem), errors.Is(err, coa.ErrMissingControlAccount),
		errors.Is(err, costing.ErrInsufficientStock),
		errors.Is(err, periods.ErrPeriodClosed), errors.Is(err, periods.ErrNoPeriodCovers):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Unprocessable Entity", err.Error())
	default:
		h.logger.Error("invoice operation", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Server Error", "invoice operation failed")
	}
}

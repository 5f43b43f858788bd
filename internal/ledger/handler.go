package ledger

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/ledgerline-erp/ledgerline-erp/internal/periods"
	"github.com/ledgerline-erp/ledgerline-erp/internal/platform/httpx"
)

// Handler wires journal entry endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers HTTP routes for the journal ledger.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/journal-entries", h.handleList)
	r.Post("/journal-entries", h.handlePost)
	r.Get("/journal-entries/{id}", h.handleGet)
	r.Post("/journal-entries/{id}/reverse", h.handleReverse)
	r.Delete("/journal-entries/{id}", h.handleDelete)
}

type postLineRequest struct {
	AccountID int64           `json:"account_id" validate:"required"`
	Debit     decimal.Decimal `json:"debit"`
	Credit    decimal.Decimal `json:"credit"`
	Note      string          `json:"note"`
}

type postEntryRequest struct {
	Date        string            `json:"date"`
	Description string            `json:"description" validate:"required"`
	Reference   string            `json:"reference"`
	PeriodID    int64             `json:"period_id"`
	ActorID     int64             `json:"actor_id"`
	Lines       []postLineRequest `json:"lines" validate:"required,min=2,dive"`
}

type lineResponse struct {
	ID        int64  `json:"id"`
	AccountID int64  `json:"account_id"`
	Debit     string `json:"debit"`
	Credit    string `json:"credit"`
	Note      string `json:"note,omitempty"`
}

type entryResponse struct {
	ID           int64          `json:"id"`
	SerialNumber string         `json:"serial_number"`
	Date         string         `json:"date"`
	Description  string         `json:"description"`
	Reference    string         `json:"reference,omitempty"`
	PeriodID     *int64         `json:"period_id,omitempty"`
	IsReversed   bool           `json:"is_reversed"`
	ReversesID   *int64         `json:"reverses_id,omitempty"`
	Lines        []lineResponse `json:"lines,omitempty"`
}

func toEntryResponse(e Entry) entryResponse {
	out := entryResponse{
		ID:           e.ID,
		SerialNumber: e.SerialNumber,
		Date:         e.Date.Format("2006-01-02"),
		Description:  e.Description,
		Reference:    e.Reference,
		PeriodID:     e.PeriodID,
		IsReversed:   e.IsReversed,
		ReversesID:   e.ReversesID,
	}
	for _, l := range e.Lines {
		out.Lines = append(out.Lines, lineResponse{
			ID:        l.ID,
			AccountID: l.AccountID,
			Debit:     l.Debit.StringFixed(2),
			Credit:    l.Credit.StringFixed(2),
			Note:      l.Note,
		})
	}
	return out
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	periodID, _ := strconv.ParseInt(r.URL.Query().Get("period_id"), 10, 64)
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	entries, err := h.service.List(r.Context(), ListFilter{PeriodID: periodID, Limit: limit, Offset: offset})
	if err != nil {
		h.logger.Error("list journal entries", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Server Error", "failed to list journal entries")
		return
	}
	out := make([]entryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, toEntryResponse(e))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) handlePost(w http.ResponseWriter, r *http.Request) {
	var req postEntryRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
		return
	}
	in := PostingInput{
		Description: req.Description,
		Reference:   req.Reference,
		PeriodID:    req.PeriodID,
		CreatedBy:   req.ActorID,
	}
	if req.Date != "" {
		date, err := time.Parse("2006-01-02", req.Date)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "date must be YYYY-MM-DD")
			return
		}
		in.Date = date
	}
	for _, l := range req.Lines {
		in.Lines = append(in.Lines, LineInput{AccountID: l.AccountID, Debit: l.Debit, Credit: l.Credit, Note: l.Note})
	}
	entry, err := h.service.Post(r.Context(), in)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toEntryResponse(entry))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid entry id")
		return
	}
	entry, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toEntryResponse(entry))
}

func (h *Handler) handleReverse(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid entry id")
		return
	}
	actorID, _ := strconv.ParseInt(r.URL.Query().Get("actor_id"), 10, 64)
	reversal, err := h.service.Reverse(r.Context(), id, actorID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toEntryResponse(reversal))
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid entry id")
		return
	}
	actorID, _ := strconv.ParseInt(r.URL.Query().Get("actor_id"), 10, 64)
	if err := h.service.Delete(r.Context(), id, actorID); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrEntryNotFound), errors.Is(err, periods.ErrPeriodNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrUnbalanced), errors.Is(err, ErrInvalidLine), errors.Is(err, ErrTooFewLines),
		errors.Is(err, ErrAlreadyReversed), errors.Is(err, ErrIsAReversal), errors.Is(err, ErrEntryHasDocument),
		errors.Is(err, periods.ErrPeriodClosed), errors.Is(err, periods.ErrNoPeriodCovers):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Unprocessable Entity", err.Error())
	default:
		h.logger.Error("journal operation", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Server Error", "journal operation failed")
	}
}

package closing

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/ledgerline-erp/ledgerline-erp/internal/coa"
	"github.com/ledgerline-erp/ledgerline-erp/internal/ledger"
	"github.com/ledgerline-erp/ledgerline-erp/internal/periods"
	"github.com/ledgerline-erp/ledgerline-erp/internal/platform/httpx"
	"github.com/ledgerline-erp/ledgerline-erp/internal/shared"
)

// Handler wires period closing and opening balance endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers HTTP routes under /periods.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/periods/{id}/close", h.handleClose)
	r.Post("/periods/{id}/reopen", h.handleReopen)
	r.Get("/periods/{id}/opening-balances", h.handleListOpening)
	r.Put("/periods/{id}/opening-balances", h.handleSetOpening)
	r.Post("/periods/{id}/opening-balances/post", h.handlePostOpening)
}

type openingRequest struct {
	AccountID int64           `json:"account_id" validate:"required"`
	Debit     decimal.Decimal `json:"debit"`
	Credit    decimal.Decimal `json:"credit"`
}

type openingResponse struct {
	ID        int64  `json:"id"`
	PeriodID  int64  `json:"period_id"`
	AccountID int64  `json:"account_id"`
	Debit     string `json:"debit"`
	Credit    string `json:"credit"`
}

func toOpeningResponse(ob OpeningBalance) openingResponse {
	return openingResponse{
		ID:        ob.ID,
		PeriodID:  ob.PeriodID,
		AccountID: ob.AccountID,
		Debit:     ob.Debit.StringFixed(2),
		Credit:    ob.Credit.StringFixed(2),
	}
}

func entryPayload(entry *ledger.Entry) map[string]any {
	if entry == nil {
		return map[string]any{"journal_entry_id": nil}
	}
	return map[string]any{
		"journal_entry_id": entry.ID,
		"serial_number":    entry.SerialNumber,
	}
}

func periodID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func (h *Handler) handleClose(w http.ResponseWriter, r *http.Request) {
	id, err := periodID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid period id")
		return
	}
	actorID, _ := strconv.ParseInt(r.URL.Query().Get("actor_id"), 10, 64)
	entry, err := h.service.Close(r.Context(), id, actorID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entryPayload(entry))
}

func (h *Handler) handleReopen(w http.ResponseWriter, r *http.Request) {
	id, err := periodID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid period id")
		return
	}
	actorID, _ := strconv.ParseInt(r.URL.Query().Get("actor_id"), 10, 64)
	if err := h.service.Reopen(r.Context(), id, actorID); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleListOpening(w http.ResponseWriter, r *http.Request) {
	id, err := periodID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid period id")
		return
	}
	rows, err := h.service.OpeningBalances(r.Context(), id)
	if err != nil {
		h.logger.Error("list opening balances", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Server Error", "failed to list opening balances")
		return
	}
	out := make([]openingResponse, 0, len(rows))
	for _, ob := range rows {
		out = append(out, toOpeningResponse(ob))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) handleSetOpening(w http.ResponseWriter, r *http.Request) {
	id, err := periodID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid period id")
		return
	}
	var req openingRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
		return
	}
	row, err := h.service.SetOpening(r.Context(), SetOpeningInput{
		PeriodID:  id,
		AccountID: req.AccountID,
		Debit:     req.Debit,
		Credit:    req.Credit,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toOpeningResponse(row))
}

func (h *Handler) handlePostOpening(w http.ResponseWriter, r *http.Request) {
	id, err := periodID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid period id")
		return
	}
	actorID, _ := strconv.ParseInt(r.URL.Query().Get("actor_id"), 10, 64)
	entry, err := h.service.PostOpening(r.Context(), id, actorID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entryPayload(&entry))
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, periods.ErrPeriodNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrLockHeld):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, ErrAlreadyClosed), errors.Is(err, ErrNotClosed),
		errors.Is(err, ErrOpeningPosted), errors.Is(err, ErrOpeningEmpty), errors.Is(err, ErrInvalidOpening),
		errors.Is(err, coa.ErrMissingControlAccount),
		errors.Is(err, ledger.ErrUnbalanced),
		errors.Is(err, periods.ErrPeriodClosed):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Unprocessable Entity", err.Error())
	default:
		h.logger.Error("closing operation", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Server Error", "closing operation failed")
	}
}

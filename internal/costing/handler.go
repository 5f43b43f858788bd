package costing

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/ledgerline-erp/ledgerline-erp/internal/platform/httpx"
)

// Handler wires stock costing endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers HTTP routes for stock costing.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/stock/receive", h.handleReceive)
	r.Post("/stock/consume", h.handleConsume)
	r.Get("/stock/{productID}/layers", h.handleLayers)
	r.Get("/stock/{productID}/movements", h.handleMovements)
}

type receiveRequest struct {
	ProductID int64           `json:"product_id" validate:"required"`
	Qty       decimal.Decimal `json:"qty"`
	UnitCost  decimal.Decimal `json:"unit_cost"`
	Reference string          `json:"reference"`
}

type consumeRequest struct {
	ProductID int64           `json:"product_id" validate:"required"`
	Qty       decimal.Decimal `json:"qty"`
	Reference string          `json:"reference"`
}

type layerResponse struct {
	ID        int64  `json:"id"`
	ProductID int64  `json:"product_id"`
	Quantity  string `json:"quantity"`
	Remaining string `json:"remaining"`
	UnitCost  string `json:"unit_cost"`
}

func (h *Handler) handleReceive(w http.ResponseWriter, r *http.Request) {
	var req receiveRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
		return
	}
	layer, err := h.service.Receive(r.Context(), ReceiveInput{
		ProductID: req.ProductID, Qty: req.Qty, UnitCost: req.UnitCost, Reference: req.Reference,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, layerResponse{
		ID: layer.ID, ProductID: layer.ProductID,
		Quantity: layer.Quantity.String(), Remaining: layer.Remaining.String(), UnitCost: layer.UnitCost.String(),
	})
}

func (h *Handler) handleConsume(w http.ResponseWriter, r *http.Request) {
	var req consumeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
		return
	}
	result, err := h.service.Consume(r.Context(), ConsumeInput{
		ProductID: req.ProductID, Qty: req.Qty, Reference: req.Reference,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{
		"total_cost":    result.TotalCost.StringFixed(2),
		"avg_unit_cost": result.AvgUnitCost.String(),
	})
}

func (h *Handler) handleLayers(w http.ResponseWriter, r *http.Request) {
	productID, err := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid product id")
		return
	}
	layers, err := h.service.Layers(r.Context(), productID)
	if err != nil {
		h.logger.Error("list layers", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Server Error", "failed to list layers")
		return
	}
	out := make([]layerResponse, 0, len(layers))
	for _, l := range layers {
		out = append(out, layerResponse{
			ID: l.ID, ProductID: l.ProductID,
			Quantity: l.Quantity.String(), Remaining: l.Remaining.String(), UnitCost: l.UnitCost.String(),
		})
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) handleMovements(w http.ResponseWriter, r *http.Request) {
	productID, err := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid product id")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	movements, err := h.service.Movements(r.Context(), productID, limit)
	if err != nil {
		h.logger.Error("list movements", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Server Error", "failed to list movements")
		return
	}
	type movementResponse struct {
		ID        int64  `json:"id"`
		Direction string `json:"direction"`
		Quantity  string `json:"quantity"`
		UnitCost  string `json:"unit_cost"`
		Reference string `json:"reference,omitempty"`
	}
	out := make([]movementResponse, 0, len(movements))
	for _, m := range movements {
		out = append(out, movementResponse{
			ID: m.ID, Direction: string(m.Direction),
			Quantity: m.Quantity.String(), UnitCost: m.UnitCost.String(), Reference: m.Reference,
		})
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInsufficientStock), errors.Is(err, ErrInvalidQuantity), errors.Is(err, ErrInvalidUnitCost):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Unprocessable Entity", err.Error())
	default:
		h.logger.Error("stock operation", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Server Error", "stock operation failed")
	}
}

package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/ledgerline-erp/ledgerline-erp/internal/closing"
	"github.com/ledgerline-erp/ledgerline-erp/internal/coa"
	"github.com/ledgerline-erp/ledgerline-erp/internal/costing"
	"github.com/ledgerline-erp/ledgerline-erp/internal/invoicing"
	"github.com/ledgerline-erp/ledgerline-erp/internal/ledger"
	"github.com/ledgerline-erp/ledgerline-erp/internal/masterdata"
	"github.com/ledgerline-erp/ledgerline-erp/internal/payments"
	"github.com/ledgerline-erp/ledgerline-erp/internal/periods"
	"github.com/ledgerline-erp/ledgerline-erp/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger *slog.Logger
	Config *Config

	COAHandler        *coa.Handler
	PeriodsHandler    *periods.Handler
	LedgerHandler     *ledger.Handler
	CostingHandler    *costing.Handler
	InvoicingHandler  *invoicing.Handler
	PaymentsHandler   *payments.Handler
	ClosingHandler    *closing.Handler
	MasterDataHandler *masterdata.Handler
	JobHandler        *jobs.Handler
}

// NewRouter constructs the chi.Router with application defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger: params.Logger,
		Config: params.Config,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(api chi.Router) {
		if params.COAHandler != nil {
			params.COAHandler.MountRoutes(api)
		}
		if params.PeriodsHandler != nil {
			params.PeriodsHandler.MountRoutes(api)
		}
		if params.LedgerHandler != nil {
			params.LedgerHandler.MountRoutes(api)
		}
		if params.CostingHandler != nil {
			params.CostingHandler.MountRoutes(api)
		}
		if params.InvoicingHandler != nil {
			params.InvoicingHandler.MountRoutes(api)
		}
		if params.PaymentsHandler != nil {
			params.PaymentsHandler.MountRoutes(api)
		}
		if params.ClosingHandler != nil {
			params.ClosingHandler.MountRoutes(api)
		}
		if params.MasterDataHandler != nil {
			params.MasterDataHandler.MountRoutes(api)
		}
	})

	if params.JobHandler != nil {
		r.Route("/jobs", func(jr chi.Router) {
			params.JobHandler.MountRoutes(jr)
		})
	}

	return r
}

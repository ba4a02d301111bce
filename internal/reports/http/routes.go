package reporthttp

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
)

// MountRoutes registers report endpoints onto the router.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	limiter := httprate.Limit(20, time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
		}),
	)

	r.Get("/classification", h.handleClassification)
	r.Group(func(gr chi.Router) {
		gr.Use(limiter)
		gr.Get("/ledger-summary", h.handleLedgerSummary)
		gr.Get("/receivables-aging", h.handleAging)
		gr.Get("/client-balances", h.handleClientBalances)
		gr.Post("/release-worksheet", h.handleReleaseWorksheet)
	})
}

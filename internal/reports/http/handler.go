package reporthttp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/odyssey-erp/microfin/internal/ledger"
	"github.com/odyssey-erp/microfin/internal/ledger/classify"
	"github.com/odyssey-erp/microfin/internal/loans/amortization"
	"github.com/odyssey-erp/microfin/internal/platform/httpx"
	"github.com/odyssey-erp/microfin/internal/reports"
	"github.com/odyssey-erp/microfin/internal/reports/export"
)

const requestTimeout = 20 * time.Second

// ReportService is the report data contract used by the handler.
type ReportService interface {
	LedgerSummary(ctx context.Context, filter reports.Filter) (reports.LedgerSummary, error)
	ReceivablesAging(ctx context.Context, filter reports.AgingFilter) (reports.AgingReport, error)
	ReleaseWorksheet(ctx context.Context, loans []amortization.LoanTerms) (reports.ReleaseWorksheet, error)
	ClientBalances(ctx context.Context, filter reports.Filter, bucket classify.Bucket) (reports.ClientBalances, error)
	Classifier() *classify.Classifier
}

// Handler serves report data as JSON or XLSX.
type Handler struct {
	logger  *slog.Logger
	service ReportService
	now     func() time.Time
}

// NewHandler constructs the report HTTP handler.
func NewHandler(logger *slog.Logger, service ReportService) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, now: time.Now}
}

// WithNow overrides the handler clock for testing.
func (h *Handler) WithNow(fn func() time.Time) {
	if fn != nil {
		h.now = fn
	}
}

type releaseRequest struct {
	Loans []amortization.LoanTerms `json:"loans"`
}

type tableResponse struct {
	Version     string                       `json:"version"`
	Fingerprint string                       `json:"fingerprint"`
	Buckets     map[classify.Bucket][]string `json:"buckets"`
}

func (h *Handler) handleLedgerSummary(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	summary, err := h.service.LedgerSummary(ctx, filter)
	if err != nil {
		h.respondServiceError(w, "ledger summary", err)
		return
	}
	if wantsXLSX(r) {
		h.writeXLSX(w, "ledger-summary", func(buf io.Writer) error { return export.LedgerSummary(buf, summary) })
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

func (h *Handler) handleAging(w http.ResponseWriter, r *http.Request) {
	filter := reports.AgingFilter{ClientID: strings.TrimSpace(r.URL.Query().Get("client"))}
	asOf := strings.TrimSpace(r.URL.Query().Get("asOf"))
	if asOf == "" {
		filter.AsOf = h.now().UTC().Truncate(24 * time.Hour)
	} else {
		t, err := time.Parse(time.DateOnly, asOf)
		if err != nil {
			httpx.RespondError(w, fmt.Errorf("%w: asOf must be YYYY-MM-DD", httpx.ErrValidation))
			return
		}
		filter.AsOf = t
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	report, err := h.service.ReceivablesAging(ctx, filter)
	if err != nil {
		h.respondServiceError(w, "receivables aging", err)
		return
	}
	if wantsXLSX(r) {
		h.writeXLSX(w, "receivables-aging", func(buf io.Writer) error { return export.Aging(buf, report) })
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) handleReleaseWorksheet(w http.ResponseWriter, r *http.Request) {
	var req releaseRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	ws, err := h.service.ReleaseWorksheet(ctx, req.Loans)
	if err != nil {
		h.respondServiceError(w, "release worksheet", err)
		return
	}
	if wantsXLSX(r) {
		h.writeXLSX(w, "release-worksheet", func(buf io.Writer) error { return export.ReleaseWorksheet(buf, ws) })
		return
	}
	httpx.JSON(w, http.StatusOK, ws)
}

func (h *Handler) handleClientBalances(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	bucket := classify.Bucket(strings.TrimSpace(r.URL.Query().Get("bucket")))
	if bucket == "" {
		httpx.RespondError(w, fmt.Errorf("%w: bucket is required", httpx.ErrValidation))
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	res, err := h.service.ClientBalances(ctx, filter, bucket)
	if err != nil {
		h.respondServiceError(w, "client balances", err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}

func (h *Handler) handleClassification(w http.ResponseWriter, r *http.Request) {
	c := h.service.Classifier()
	table := c.Table()
	httpx.JSON(w, http.StatusOK, tableResponse{
		Version:     table.Version,
		Fingerprint: table.Fingerprint(),
		Buckets:     table.Buckets,
	})
}

func (h *Handler) respondServiceError(w http.ResponseWriter, what string, err error) {
	switch {
	case errors.Is(err, reports.ErrInvalidFilter):
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
	case errors.Is(err, ledger.ErrNegativeAmount), errors.Is(err, ledger.ErrInvalidAmount):
		h.logger.Warn("ledger data rejected", slog.String("report", what), slog.Any("error", err))
		httpx.Problem(w, http.StatusUnprocessableEntity, "Invalid Ledger Data", err.Error())
	default:
		h.logger.Error("build report", slog.String("report", what), slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

func (h *Handler) writeXLSX(w http.ResponseWriter, name string, write func(io.Writer) error) {
	var buf bytes.Buffer
	if err := write(&buf); err != nil {
		h.logger.Error("export xlsx", slog.String("report", name), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	filename := fmt.Sprintf("%s-%s.xlsx", name, h.now().Format("20060102"))
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", "attachment; filename="+strconv.Quote(filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func wantsXLSX(r *http.Request) bool {
	return strings.EqualFold(r.URL.Query().Get("format"), "xlsx")
}

func parseFilter(r *http.Request) (reports.Filter, error) {
	q := r.URL.Query()
	var filter reports.Filter
	var err error
	if filter.From, err = parseDate(q.Get("from"), "from"); err != nil {
		return reports.Filter{}, err
	}
	if filter.To, err = parseDate(q.Get("to"), "to"); err != nil {
		return reports.Filter{}, err
	}
	if raw := strings.TrimSpace(q.Get("kinds")); raw != "" {
		for _, k := range strings.Split(raw, ",") {
			if k = strings.TrimSpace(k); k != "" {
				filter.Kinds = append(filter.Kinds, ledger.TransactionKind(k))
			}
		}
	}
	filter.ClientID = strings.TrimSpace(q.Get("client"))
	filter.Layout = reports.Layout(strings.TrimSpace(q.Get("layout")))
	if raw := q.Get("details"); raw != "" {
		if filter.Details, err = strconv.ParseBool(raw); err != nil {
			return reports.Filter{}, fmt.Errorf("%w: details must be a boolean", httpx.ErrValidation)
		}
	}
	return filter, nil
}

func parseDate(raw, field string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, fmt.Errorf("%w: %s is required", httpx.ErrValidation, field)
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s must be YYYY-MM-DD", httpx.ErrValidation, field)
	}
	return t, nil
}

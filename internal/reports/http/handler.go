package reportshttp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/google/uuid"

	"github.com/crewstay/crewstay/internal/billing"
	"github.com/crewstay/crewstay/internal/platform/httpx"
	"github.com/crewstay/crewstay/internal/reports"
)

const (
	maxBodyBytes       = 4 << 20
	previewLimitFactor = 6
)

// Service is the subset of reports.Service used by the handler.
type Service interface {
	Preview(ctx context.Context, input billing.AllocationInput) (billing.Allocation, error)
	Request(ctx context.Context, req reports.GenerateRequest) (reports.SavedReport, error)
	List(ctx context.Context, filter reports.ListFilter) ([]reports.SavedReport, int, error)
	Get(ctx context.Context, id uuid.UUID) (reports.SavedReport, error)
	Open(ctx context.Context, id uuid.UUID) (io.ReadCloser, reports.SavedReport, error)
}

// Handler exposes the report JSON API.
type Handler struct {
	logger       *slog.Logger
	service      Service
	requestLimit int
}

// NewHandler constructs handler. requestsPerMinute caps report generation
// requests per client IP; zero uses 10. Previews are capped at
// previewLimitFactor times that rate.
func NewHandler(logger *slog.Logger, service Service, requestsPerMinute int) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if requestsPerMinute <= 0 {
		requestsPerMinute = 10
	}
	return &Handler{logger: logger, service: service, requestLimit: requestsPerMinute}
}

// MountRoutes registers routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/reports", func(r chi.Router) {
		r.With(httprate.Limit(h.requestLimit*previewLimitFactor, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP))).
			Post("/allocation/preview", h.preview)
		r.With(httprate.Limit(h.requestLimit, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP))).Post("/", h.create)
		r.Get("/", h.list)
		r.Get("/{id}", h.show)
		r.Get("/{id}/download", h.download)
	})
}

type listResponse struct {
	Items []reports.SavedReport `json:"items"`
	Total int                   `json:"total"`
	Page  int                   `json:"page"`
	Limit int                   `json:"limit"`
}

type previewResponse struct {
	billing.Allocation
	Totals totals `json:"totals"`
}

type totals struct {
	Living float64 `json:"living"`
	Meals  float64 `json:"meals"`
	Debt   float64 `json:"debt"`
}

func (h *Handler) preview(w http.ResponseWriter, r *http.Request) {
	var input billing.AllocationInput
	if err := decode(w, r, &input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	alloc, err := h.service.Preview(r.Context(), input)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	living, meals, debt := alloc.Totals()
	httpx.JSON(w, http.StatusOK, previewResponse{Allocation: alloc, Totals: totals{Living: living, Meals: meals, Debt: debt}})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req reports.GenerateRequest
	if err := decode(w, r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	report, err := h.service.Request(r.Context(), req)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	w.Header().Set("Location", "/reports/"+report.ID.String())
	httpx.JSON(w, http.StatusAccepted, report)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := reports.ListFilter{
		Kind:    billing.ReportKind(strings.ToLower(strings.TrimSpace(q.Get("kind")))),
		OwnerID: strings.TrimSpace(q.Get("owner")),
		Status:  reports.Status(strings.ToUpper(strings.TrimSpace(q.Get("status")))),
		Limit:   clamp(parseInt(q.Get("limit"), 20), 1, 100),
		Page:    max(parseInt(q.Get("page"), 1), 1),
	}
	items, total, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if items == nil {
		items = []reports.SavedReport{}
	}
	httpx.JSON(w, http.StatusOK, listResponse{Items: items, Total: total, Page: filter.Page, Limit: filter.Limit})
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, ok := reportID(w, r)
	if !ok {
		return
	}
	report, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) download(w http.ResponseWriter, r *http.Request) {
	id, ok := reportID(w, r)
	if !ok {
		return
	}
	file, report, err := h.service.Open(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	defer func() { _ = file.Close() }()
	w.Header().Set("Content-Type", report.Format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=report-%s%s", report.ID, report.Format.Extension()))
	if _, err := io.Copy(w, file); err != nil {
		h.logger.Warn("stream report", slog.String("report_id", id.String()), slog.Any("error", err))
	}
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *reports.ValidationError
	switch {
	case errors.As(err, &verr):
		httpx.JSON(w, http.StatusBadRequest, validationProblem{
			ProblemDetail: httpx.ProblemDetail{Title: "Validation Failed", Status: http.StatusBadRequest, Detail: err.Error()},
			Fields:        verr.Fields,
		})
		return
	case errors.Is(err, reports.ErrReportNotFound):
		err = fmt.Errorf("%w: %w", httpx.ErrNotFound, err)
	case errors.Is(err, reports.ErrDuplicateReport):
		err = fmt.Errorf("%w: %w", httpx.ErrDuplicate, err)
	case errors.Is(err, reports.ErrReportNotReady):
		err = fmt.Errorf("%w: %w", httpx.ErrNotReady, err)
	default:
		h.logger.Error("reports request", slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

type validationProblem struct {
	httpx.ProblemDetail
	Fields map[string]string `json:"fields,omitempty"`
}

func decode(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return httpx.DecodeJSON(r, dst)
}

func reportID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "report id must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}

func parseInt(value string, fallback int) int {
	v, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return v
}

func clamp(v, lo, hi int) int {
	return min(max(v, lo), hi)
}

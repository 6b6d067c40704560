package reports

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
	"golang.org/x/text/language"

	"github.com/crewstay/crewstay/internal/billing"
	"github.com/crewstay/crewstay/internal/billing/export"
	jobmetrics "github.com/crewstay/crewstay/internal/jobs"
	"github.com/crewstay/crewstay/internal/pricing"
)

// Enqueuer schedules background generation of a saved report.
type Enqueuer interface {
	EnqueueReportGenerate(ctx context.Context, id uuid.UUID) error
}

// ServiceConfig wires dependencies required by the service.
type ServiceConfig struct {
	Store    Store
	Prices   pricing.Source
	Cache    *Cache
	Storage  *FileStorage
	Exporter export.Exporter
	Queue    Enqueuer
	Metrics  *jobmetrics.Metrics
	Logger   *slog.Logger
	Location *time.Location
	Locale   language.Tag
}

// Service coordinates allocation builds and saved report processing.
type Service struct {
	store    Store
	prices   pricing.Source
	cache    *Cache
	storage  *FileStorage
	exporter export.Exporter
	queue    Enqueuer
	metrics  *jobmetrics.Metrics
	logger   *slog.Logger
	location *time.Location
	locale   language.Tag
	parser   billing.Parser
	validate *validator.Validate
	group    singleflight.Group
	now      func() time.Time
}

// NewService builds the service.
func NewService(cfg ServiceConfig) *Service {
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	locale := cfg.Locale
	if locale == language.Und {
		locale = language.Russian
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	storage := cfg.Storage
	if storage == nil {
		storage = NewFileStorage("", "")
	}
	return &Service{
		store:    cfg.Store,
		prices:   cfg.Prices,
		cache:    cfg.Cache,
		storage:  storage,
		exporter: cfg.Exporter,
		queue:    cfg.Queue,
		metrics:  cfg.Metrics,
		logger:   logger,
		location: loc,
		locale:   locale,
		parser:   billing.NewParser(loc),
		validate: newValidator(),
		now:      time.Now,
	}
}

// Parser exposes the date parser bound to the report timezone.
func (s *Service) Parser() billing.Parser {
	return s.parser
}

// Preview runs the allocator synchronously over caller supplied records.
func (s *Service) Preview(ctx context.Context, input billing.AllocationInput) (billing.Allocation, error) {
	if err := ctx.Err(); err != nil {
		return billing.Allocation{}, err
	}
	if err := s.validate.Struct(input); err != nil {
		return billing.Allocation{}, validationFrom(err)
	}
	alloc, err := billing.BuildAllocationFromInput(input, s.parser)
	if err != nil {
		if errors.Is(err, billing.ErrNoRange) || errors.Is(err, billing.ErrInvalidDate) {
			return billing.Allocation{}, fieldError("range", err.Error())
		}
		return billing.Allocation{}, err
	}
	s.metrics.AddAllocationIssues("preview", len(alloc.Skipped), alloc.UnresolvedCount())
	return alloc, nil
}

// Build loads stays and prices for the filter, allocates and sorts the rows.
// Results are cached and concurrent identical builds share one computation.
func (s *Service) Build(ctx context.Context, filter BuildFilter) (billing.Allocation, error) {
	if !filter.Kind.Valid() {
		return billing.Allocation{}, fieldError("kind", "oneof=airline hotel")
	}
	if strings.TrimSpace(filter.OwnerID) == "" {
		return billing.Allocation{}, fieldError("ownerId", "required")
	}
	key, err := s.cache.BuildKey(ctx, allocationKey(filter)...)
	if err != nil {
		s.logger.Warn("report cache key", slog.Any("error", err))
		key = strings.Join(allocationKey(filter), ":")
	}
	ch := s.group.DoChan(key, func() (any, error) {
		var alloc billing.Allocation
		hit, err := s.cache.FetchJSON(ctx, key, &alloc, func(ctx context.Context) (any, error) {
			return s.build(ctx, filter)
		})
		if err != nil {
			return nil, err
		}
		s.logger.Debug("allocation built", slog.String("key", key), slog.Bool("cache_hit", hit), slog.Int("rows", len(alloc.Rows)))
		return alloc, nil
	})
	select {
	case <-ctx.Done():
		return billing.Allocation{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return billing.Allocation{}, res.Err
		}
		return res.Val.(billing.Allocation), nil
	}
}

func (s *Service) build(ctx context.Context, filter BuildFilter) (billing.Allocation, error) {
	window := billing.Window{Start: filter.Start.In(s.location), End: filter.End.In(s.location)}.Normalize()
	filter.Start, filter.End = window.Start, window.End

	stays, err := s.store.ListStays(ctx, filter)
	if err != nil {
		return billing.Allocation{}, err
	}
	stays = s.localize(stays)
	book, err := s.priceBook(ctx, filter)
	if err != nil {
		return billing.Allocation{}, err
	}
	records := billing.AggregateRequests(stays, window, book)
	alloc, err := billing.BuildAllocation(records, &window)
	if err != nil {
		return billing.Allocation{}, err
	}
	billing.SortRows(alloc.Rows, billing.NewCollator(s.locale))
	if len(alloc.Skipped) > 0 {
		s.logger.Warn("allocation skipped records",
			slog.String("kind", string(filter.Kind)), slog.String("owner", filter.OwnerID), slog.Int("count", len(alloc.Skipped)))
	}
	s.metrics.AddAllocationIssues(string(filter.Kind), len(alloc.Skipped), alloc.UnresolvedCount())
	return alloc, nil
}

// localize moves stored instants into the report location. Day boundaries and
// arrival/departure thresholds are evaluated in that location.
func (s *Service) localize(stays []billing.Stay) []billing.Stay {
	out := make([]billing.Stay, len(stays))
	for i, stay := range stays {
		stay.Arrival = stay.Arrival.In(s.location)
		stay.Departure = stay.Departure.In(s.location)
		if len(stay.MealPlan) > 0 {
			plan := make([]billing.MealDay, len(stay.MealPlan))
			for j, day := range stay.MealPlan {
				day.Date = day.Date.In(s.location)
				plan[j] = day
			}
			stay.MealPlan = plan
		}
		out[i] = stay
	}
	return out
}

func (s *Service) priceBook(ctx context.Context, filter BuildFilter) (pricing.Book, error) {
	empty := pricing.Book{Kind: filter.Kind, OwnerID: filter.OwnerID}
	if s.prices == nil {
		return empty, nil
	}
	book, err := s.prices.Book(ctx, filter.Kind, filter.OwnerID)
	if errors.Is(err, pricing.ErrBookNotFound) {
		s.logger.Warn("price book not found, prices unresolved",
			slog.String("kind", string(filter.Kind)), slog.String("owner", filter.OwnerID))
		return empty, nil
	}
	return book, err
}

// Invalidate drops every cached allocation.
func (s *Service) Invalidate(ctx context.Context) error {
	return s.cache.Bump(ctx)
}

// Request validates and stores a pending report, then queues its generation.
func (s *Service) Request(ctx context.Context, req GenerateRequest) (SavedReport, error) {
	if err := s.validate.Struct(req); err != nil {
		return SavedReport{}, validationFrom(err)
	}
	start, err := s.parser.Parse(req.Start)
	if err != nil {
		return SavedReport{}, fieldError("start", err.Error())
	}
	end, err := s.parser.Parse(req.End)
	if err != nil {
		return SavedReport{}, fieldError("end", err.Error())
	}
	end = endOfDay(end)
	if end.Before(start) {
		return SavedReport{}, fieldError("end", "must not precede start")
	}
	format, err := export.ParseFormat(req.Format)
	if err != nil {
		return SavedReport{}, fieldError("format", err.Error())
	}
	report, err := s.store.InsertReport(ctx, SavedReport{
		ID:        uuid.New(),
		Name:      strings.TrimSpace(req.Name),
		Kind:      billing.ReportKind(req.Kind),
		OwnerID:   strings.TrimSpace(req.OwnerID),
		Start:     start,
		End:       end,
		Format:    format,
		Status:    StatusPending,
		CreatedBy: req.CreatedBy,
	})
	if err != nil {
		return SavedReport{}, err
	}
	if s.queue != nil {
		if err := s.queue.EnqueueReportGenerate(ctx, report.ID); err != nil {
			s.markFailed(ctx, report.ID, "enqueue: "+err.Error())
			return SavedReport{}, fmt.Errorf("reports: enqueue generation: %w", err)
		}
	}
	return report, nil
}

// Process generates the file of a saved report. It is the body of the queue job.
func (s *Service) Process(ctx context.Context, id uuid.UUID) error {
	report, err := s.store.GetReport(ctx, id)
	if err != nil {
		return err
	}
	if report.Status == StatusReady {
		return nil
	}
	if err := s.store.MarkInProgress(ctx, id); err != nil {
		if errors.Is(err, ErrInvalidStatus) {
			current, loadErr := s.store.GetReport(ctx, id)
			if loadErr == nil && (current.Status == StatusInProgress || current.Status == StatusReady) {
				return nil
			}
		}
		return err
	}
	result, err := s.render(ctx, report)
	if err != nil {
		s.markFailed(ctx, id, err.Error())
		return err
	}
	if err := s.store.MarkReady(ctx, id, result); err != nil {
		return err
	}
	s.logger.Info("report ready", slog.String("report_id", id.String()), slog.String("file", result.FilePath),
		slog.Int("rows", result.RowCount), slog.Int("unresolved", result.UnresolvedCount))
	return nil
}

// markFailed records the failure even when ctx is already cancelled.
func (s *Service) markFailed(ctx context.Context, id uuid.UUID, message string) {
	if err := s.store.MarkFailed(context.WithoutCancel(ctx), id, message); err != nil {
		s.logger.Error("mark report failed", slog.String("report_id", id.String()), slog.Any("error", err))
	}
}

func (s *Service) render(ctx context.Context, report SavedReport) (ReadyResult, error) {
	alloc, err := s.Build(ctx, BuildFilter{Kind: report.Kind, OwnerID: report.OwnerID, Start: report.Start, End: report.End})
	if err != nil {
		return ReadyResult{}, err
	}
	doc := export.Document{
		Title:       report.Name,
		Kind:        report.Kind,
		Owner:       report.OwnerID,
		Allocation:  alloc,
		Formatter:   billing.NewFormatter(s.locale, s.location),
		GeneratedAt: s.now(),
	}
	path, err := s.storage.Save(report.ID, report.Format, func(w io.Writer) error {
		return s.exporter.Write(ctx, w, report.Format, doc)
	})
	if err != nil {
		return ReadyResult{}, fmt.Errorf("reports: write %s: %w", report.Format, err)
	}
	return ReadyResult{
		FilePath:        path,
		URL:             s.storage.URL(report.ID),
		RowCount:        len(alloc.Rows),
		SkippedCount:    len(alloc.Skipped),
		UnresolvedCount: alloc.UnresolvedCount(),
	}, nil
}

// List pages through saved reports.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]SavedReport, int, error) {
	return s.store.ListReports(ctx, filter)
}

// Get returns metadata by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (SavedReport, error) {
	return s.store.GetReport(ctx, id)
}

// Open returns the generated file of a ready report. Callers close the reader.
func (s *Service) Open(ctx context.Context, id uuid.UUID) (io.ReadCloser, SavedReport, error) {
	report, err := s.store.GetReport(ctx, id)
	if err != nil {
		return nil, SavedReport{}, err
	}
	if report.Status != StatusReady || report.FilePath == "" {
		return nil, report, ErrReportNotReady
	}
	file, err := s.storage.Open(report.FilePath)
	if err != nil {
		return nil, report, fmt.Errorf("reports: open file: %w", err)
	}
	return file, report, nil
}

// Sweep deletes reports older than retention together with their files.
func (s *Service) Sweep(ctx context.Context, retention time.Duration) (int, error) {
	if retention <= 0 {
		return 0, nil
	}
	removed, err := s.store.DeleteOlderThan(ctx, s.now().Add(-retention))
	if err != nil {
		return 0, err
	}
	for _, report := range removed {
		if err := s.storage.Remove(report.FilePath); err != nil {
			s.logger.Warn("remove report file", slog.String("report_id", report.ID.String()), slog.Any("error", err))
		}
	}
	return len(removed), nil
}

func endOfDay(t time.Time) time.Time {
	if !t.Equal(billing.TruncateDay(t)) {
		return t
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, 0, t.Location())
}

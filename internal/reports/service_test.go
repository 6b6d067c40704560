package reports

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"io"
	"sort"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"github.com/crewstay/crewstay/internal/billing"
	"github.com/crewstay/crewstay/internal/billing/export"
	"github.com/crewstay/crewstay/internal/platform/httpx"
	"github.com/crewstay/crewstay/internal/pricing"
)

type memoryStore struct {
	mu         sync.Mutex
	stays      []billing.Stay
	stayCalls  int
	reports    map[uuid.UUID]SavedReport
	insertErr  error
	lastFilter BuildFilter
}

func newMemoryStore(stays ...billing.Stay) *memoryStore {
	return &memoryStore{stays: stays, reports: make(map[uuid.UUID]SavedReport)}
}

func (m *memoryStore) ListStays(_ context.Context, filter BuildFilter) ([]billing.Stay, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stayCalls++
	m.lastFilter = filter
	return append([]billing.Stay(nil), m.stays...), nil
}

func (m *memoryStore) InsertReport(_ context.Context, report SavedReport) (SavedReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return SavedReport{}, m.insertErr
	}
	for _, existing := range m.reports {
		if existing.OwnerID == report.OwnerID && existing.Kind == report.Kind && existing.Name == report.Name {
			return SavedReport{}, ErrDuplicateReport
		}
	}
	report.Status = StatusPending
	report.CreatedAt = time.Now()
	report.UpdatedAt = report.CreatedAt
	m.reports[report.ID] = report
	return report, nil
}

func (m *memoryStore) GetReport(_ context.Context, id uuid.UUID) (SavedReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	report, ok := m.reports[id]
	if !ok {
		return SavedReport{}, ErrReportNotFound
	}
	return report, nil
}

func (m *memoryStore) ListReports(_ context.Context, filter ListFilter) ([]SavedReport, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []SavedReport
	for _, report := range m.reports {
		if filter.Status != "" && report.Status != filter.Status {
			continue
		}
		out = append(out, report)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, len(out), nil
}

func (m *memoryStore) update(id uuid.UUID, fn func(*SavedReport) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	report, ok := m.reports[id]
	if !ok {
		return ErrReportNotFound
	}
	if err := fn(&report); err != nil {
		return err
	}
	m.reports[id] = report
	return nil
}

func (m *memoryStore) MarkInProgress(_ context.Context, id uuid.UUID) error {
	return m.update(id, func(r *SavedReport) error {
		if r.Status != StatusPending && r.Status != StatusFailed {
			return ErrInvalidStatus
		}
		r.Status = StatusInProgress
		r.Error = ""
		return nil
	})
}

func (m *memoryStore) MarkReady(_ context.Context, id uuid.UUID, result ReadyResult) error {
	return m.update(id, func(r *SavedReport) error {
		r.Status = StatusReady
		r.FilePath, r.URL = result.FilePath, result.URL
		r.RowCount, r.SkippedCount, r.UnresolvedCount = result.RowCount, result.SkippedCount, result.UnresolvedCount
		return nil
	})
}

func (m *memoryStore) MarkFailed(ctx context.Context, id uuid.UUID, message string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return m.update(id, func(r *SavedReport) error {
		r.Status = StatusFailed
		r.Error = message
		return nil
	})
}

func (m *memoryStore) DeleteOlderThan(_ context.Context, cutoff time.Time) ([]SavedReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []SavedReport
	for id, report := range m.reports {
		if report.CreatedAt.Before(cutoff) && report.Status != StatusInProgress {
			out = append(out, report)
			delete(m.reports, id)
		}
	}
	return out, nil
}

type recordingQueue struct {
	ids []uuid.UUID
	err error
}

func (q *recordingQueue) EnqueueReportGenerate(_ context.Context, id uuid.UUID) error {
	q.ids = append(q.ids, id)
	return q.err
}

const testCatalog = `
airlines:
  - id: su
    contracts:
      - name: Moscow
        airports: [SVO]
        rooms:
          onePlace: 3500
        meals:
          breakfast: 400
`

func jan(day, hour int) time.Time {
	return time.Date(2025, time.January, day, hour, 0, 0, 0, time.UTC)
}

func testStays() []billing.Stay {
	return []billing.Stay{
		{
			RequestID: "r1", PersonName: "Иванов", AirportCode: "SVO", HotelName: "Азимут",
			RoomID: "101", RoomName: "101", Category: billing.CategoryOnePlace,
			Arrival: jan(1, 14), Departure: jan(3, 12),
			MealPlan: []billing.MealDay{{Date: jan(1, 0), Breakfast: 1}, {Date: jan(2, 0), Breakfast: 1}},
		},
		{
			RequestID: "r2", PersonName: "Петров", AirportCode: "SVO", HotelName: "Азимут",
			RoomID: "102", RoomName: "102", Category: billing.CategoryLuxe,
			Arrival: jan(2, 14), Departure: jan(3, 12),
		},
	}
}

type fixture struct {
	svc   *Service
	store *memoryStore
	queue *recordingQueue
	redis *miniredis.Miniredis
	dir   string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureIn(t, time.UTC, testStays()...)
}

func newFixtureIn(t *testing.T, loc *time.Location, stays ...billing.Stay) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	prices, err := pricing.ParseCatalog([]byte(testCatalog))
	require.NoError(t, err)

	store := newMemoryStore(stays...)
	queue := &recordingQueue{}
	dir := t.TempDir()
	svc := NewService(ServiceConfig{
		Store:    store,
		Prices:   prices,
		Cache:    NewCache(client, time.Minute),
		Storage:  NewFileStorage(dir, "https://reports.example.com/"),
		Queue:    queue,
		Location: loc,
		Locale:   language.Russian,
	})
	return &fixture{svc: svc, store: store, queue: queue, redis: mr, dir: dir}
}

func janFilter() BuildFilter {
	return BuildFilter{Kind: billing.KindAirline, OwnerID: "su", Start: jan(1, 0), End: time.Date(2025, time.January, 31, 23, 59, 59, 0, time.UTC)}
}

func TestBuildAllocatesAndCaches(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	alloc, err := f.svc.Build(ctx, janFilter())
	require.NoError(t, err)
	require.Len(t, alloc.Rows, 2)

	ivanov := alloc.Rows[0]
	assert.Equal(t, "Иванов", ivanov.PersonName)
	assert.Equal(t, 3, ivanov.TotalDays)
	assert.Equal(t, 10500.0, ivanov.TotalLivingCost)
	assert.Equal(t, 800.0, ivanov.TotalMealCost)
	assert.Equal(t, 11300.0, ivanov.TotalDebt)

	petrov := alloc.Rows[1]
	assert.True(t, petrov.PriceUnresolved)
	assert.Zero(t, petrov.TotalLivingCost)
	assert.Equal(t, 1, alloc.UnresolvedCount())

	_, err = f.svc.Build(ctx, janFilter())
	require.NoError(t, err)
	assert.Equal(t, 1, f.store.stayCalls, "second build should be served from cache")

	require.NoError(t, f.svc.Invalidate(ctx))
	_, err = f.svc.Build(ctx, janFilter())
	require.NoError(t, err)
	assert.Equal(t, 2, f.store.stayCalls)
}

func TestBuildUsesReportLocation(t *testing.T) {
	moscow, err := time.LoadLocation("Europe/Moscow")
	require.NoError(t, err)
	local := func(day, hour int) time.Time {
		return time.Date(2025, time.January, day, hour, 0, 0, 0, moscow).UTC()
	}
	stay := billing.Stay{
		RequestID: "r1", PersonName: "Сидоров", AirportCode: "SVO", HotelName: "Азимут",
		RoomID: "201", RoomName: "201", Category: billing.CategoryOnePlace,
		Arrival: local(5, 2), Departure: local(6, 12), DailyRate: billing.Resolved(1000),
		MealPlan: []billing.MealDay{{Date: local(6, 0), Breakfast: 1}},
	}
	f := newFixtureIn(t, moscow, stay)

	filter := BuildFilter{Kind: billing.KindAirline, OwnerID: "su", Start: local(1, 0),
		End: time.Date(2025, time.January, 31, 23, 59, 59, 0, moscow).UTC()}
	alloc, err := f.svc.Build(context.Background(), filter)
	require.NoError(t, err)
	require.Len(t, alloc.Rows, 1)

	row := alloc.Rows[0]
	assert.Equal(t, "01.01.2025 00:00:00", row.Arrival)
	assert.Equal(t, "31.01.2025 23:59:59", row.Departure)
	assert.Equal(t, "05.01.2025", row.StayStart)
	assert.Equal(t, "06.01.2025", row.StayEnd)
	assert.Equal(t, 2, row.TotalDays)
	assert.Equal(t, 2000.0, row.TotalLivingCost)
	assert.Equal(t, 1, row.BreakfastCount)
	assert.Equal(t, 400.0, row.TotalMealCost)
}

func TestBuildWithoutPriceBook(t *testing.T) {
	f := newFixture(t)
	filter := janFilter()
	filter.OwnerID = "unknown-airline"

	alloc, err := f.svc.Build(context.Background(), filter)
	require.NoError(t, err)
	require.Len(t, alloc.Rows, 2)
	for _, row := range alloc.Rows {
		assert.True(t, row.PriceUnresolved)
	}
}

func TestBuildRejectsBadFilter(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Build(context.Background(), BuildFilter{Kind: "bus", OwnerID: "x"})
	assert.ErrorIs(t, err, httpx.ErrValidation)
	_, err = f.svc.Build(context.Background(), BuildFilter{Kind: billing.KindHotel})
	assert.ErrorIs(t, err, httpx.ErrValidation)
}

func TestPreview(t *testing.T) {
	f := newFixture(t)
	price := 1400.0
	alloc, err := f.svc.Preview(context.Background(), billing.AllocationInput{
		Records: []billing.InputRecord{
			{PersonName: "Иванов", RoomID: "101", RoomName: "101", Arrival: "01.01.2025 14:00", Departure: "07.01.2025 12:00", Price: &price},
			{PersonName: "", RoomID: "102", Arrival: "01.01.2025", Departure: "02.01.2025"},
		},
		RangeStart: "2025-01-01",
		RangeEnd:   "07.01.2025 23:59",
	})
	require.NoError(t, err)
	require.Len(t, alloc.Rows, 1)
	assert.Equal(t, 9800.0, alloc.Rows[0].TotalLivingCost)
	assert.Len(t, alloc.Skipped, 1)

	_, err = f.svc.Preview(context.Background(), billing.AllocationInput{})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "range")

	_, err = f.svc.Preview(context.Background(), billing.AllocationInput{
		Records: []billing.InputRecord{{PersonName: "A", RoomID: "1", BreakfastCount: -1}},
	})
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "records[0].breakfastCount")

	_, err = f.svc.Preview(context.Background(), billing.AllocationInput{
		Records: make([]billing.InputRecord, 2001),
	})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "max=2000", verr.Fields["records"])
}

func validRequest() GenerateRequest {
	return GenerateRequest{Name: "Январь", Kind: "airline", OwnerID: "su", Start: "01.01.2025", End: "31.01.2025", Format: "csv"}
}

func TestRequestQueuesPendingReport(t *testing.T) {
	f := newFixture(t)
	report, err := f.svc.Request(context.Background(), validRequest())
	require.NoError(t, err)
	assert.Equal(t, StatusPending, report.Status)
	assert.Equal(t, export.FormatCSV, report.Format)
	assert.Equal(t, time.Date(2025, time.January, 31, 23, 59, 59, 0, time.UTC), report.End)
	assert.Equal(t, []uuid.UUID{report.ID}, f.queue.ids)

	_, err = f.svc.Request(context.Background(), validRequest())
	assert.ErrorIs(t, err, ErrDuplicateReport)
}

func TestRequestValidation(t *testing.T) {
	f := newFixture(t)
	cases := map[string]func(*GenerateRequest){
		"kind":   func(r *GenerateRequest) { r.Kind = "bus" },
		"format": func(r *GenerateRequest) { r.Format = "docx" },
		"name":   func(r *GenerateRequest) { r.Name = "" },
		"start":  func(r *GenerateRequest) { r.Start = "tomorrow" },
		"end":    func(r *GenerateRequest) { r.End = "01.12.2024" },
	}
	for field, mutate := range cases {
		t.Run(field, func(t *testing.T) {
			req := validRequest()
			mutate(&req)
			_, err := f.svc.Request(context.Background(), req)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Contains(t, verr.Fields, field)
			assert.ErrorIs(t, err, httpx.ErrValidation)
		})
	}
	assert.Empty(t, f.queue.ids)
}

func TestRequestEnqueueFailureMarksFailed(t *testing.T) {
	f := newFixture(t)
	f.queue.err = errors.New("redis down")
	_, err := f.svc.Request(context.Background(), validRequest())
	require.Error(t, err)

	reports, _, err := f.svc.List(context.Background(), ListFilter{Status: StatusFailed})
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Contains(t, reports[0].Error, "redis down")
}

func TestRequestMarksFailedAfterCancel(t *testing.T) {
	f := newFixture(t)
	f.queue.err = errors.New("deadline exceeded")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.svc.Request(ctx, validRequest())
	require.Error(t, err)

	reports, _, err := f.svc.List(context.Background(), ListFilter{Status: StatusFailed})
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Contains(t, reports[0].Error, "deadline exceeded")
}

func TestProcessWritesFileAndOpen(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	report, err := f.svc.Request(ctx, validRequest())
	require.NoError(t, err)

	_, _, err = f.svc.Open(ctx, report.ID)
	assert.ErrorIs(t, err, ErrReportNotReady)

	require.NoError(t, f.svc.Process(ctx, report.ID))
	ready, err := f.svc.Get(ctx, report.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusReady, ready.Status)
	assert.Equal(t, 2, ready.RowCount)
	assert.Equal(t, 1, ready.UnresolvedCount)
	assert.Equal(t, "https://reports.example.com/reports/"+report.ID.String()+"/download", ready.URL)

	file, _, err := f.svc.Open(ctx, report.ID)
	require.NoError(t, err)
	defer func() { _ = file.Close() }()
	data, err := io.ReadAll(file)
	require.NoError(t, err)
	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, "Иванов", records[1][4])

	require.NoError(t, f.svc.Process(ctx, report.ID), "processing a ready report is a no-op")
}

func TestProcessFailureMarksFailed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := validRequest()
	req.Format = "pdf"
	report, err := f.svc.Request(ctx, req)
	require.NoError(t, err)

	err = f.svc.Process(ctx, report.ID)
	require.ErrorIs(t, err, export.ErrPDFUnavailable)
	failed, err := f.svc.Get(ctx, report.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, failed.Status)
	assert.NotEmpty(t, failed.Error)

	assert.ErrorIs(t, f.svc.Process(ctx, uuid.New()), ErrReportNotFound)
}

func TestSweepRemovesExpiredReports(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	report, err := f.svc.Request(ctx, validRequest())
	require.NoError(t, err)
	require.NoError(t, f.svc.Process(ctx, report.ID))
	ready, err := f.svc.Get(ctx, report.ID)
	require.NoError(t, err)

	removed, err := f.svc.Sweep(ctx, time.Hour)
	require.NoError(t, err)
	assert.Zero(t, removed)

	f.svc.now = func() time.Time { return time.Now().Add(48 * time.Hour) }
	removed, err = f.svc.Sweep(ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.NoFileExists(t, ready.FilePath)
	_, err = f.svc.Get(ctx, report.ID)
	assert.ErrorIs(t, err, ErrReportNotFound)
}

package reports

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/crewstay/crewstay/internal/billing"
	"github.com/crewstay/crewstay/internal/billing/export"
	"github.com/crewstay/crewstay/internal/platform/db"
)

// Store is the persistence contract used by Service.
type Store interface {
	ListStays(ctx context.Context, filter BuildFilter) ([]billing.Stay, error)
	InsertReport(ctx context.Context, report SavedReport) (SavedReport, error)
	GetReport(ctx context.Context, id uuid.UUID) (SavedReport, error)
	ListReports(ctx context.Context, filter ListFilter) ([]SavedReport, int, error)
	MarkInProgress(ctx context.Context, id uuid.UUID) error
	MarkReady(ctx context.Context, id uuid.UUID, result ReadyResult) error
	MarkFailed(ctx context.Context, id uuid.UUID, message string) error
	DeleteOlderThan(ctx context.Context, cutoff time.Time) ([]SavedReport, error)
}

// Repository persists saved reports and reads stays from PostgreSQL.
type Repository struct {
	db db.Querier
}

// NewRepository constructs a repo.
func NewRepository(q db.Querier) *Repository {
	return &Repository{db: q}
}

const reportColumns = `id, name, kind, owner_id, period_start, period_end, format, status,
	file_path, url, row_count, skipped_count, unresolved_count, error_message, created_by, created_at, updated_at`

const staysSQL = `
SELECT request_id, person_name, person_position, airport_code, hotel_name,
	room_id, room_name, category, arrival, departure, daily_rate::float8, meal_plan
FROM hotel_stays
WHERE %s = $1 AND arrival <= $3 AND departure >= $2
ORDER BY arrival, request_id`

// ListStays loads every stay of the owner that overlaps the filter window.
func (r *Repository) ListStays(ctx context.Context, filter BuildFilter) ([]billing.Stay, error) {
	var column string
	switch filter.Kind {
	case billing.KindAirline:
		column = "airline_id"
	case billing.KindHotel:
		column = "hotel_id"
	default:
		return nil, fmt.Errorf("reports: unsupported report kind %q", filter.Kind)
	}
	rows, err := r.db.Query(ctx, fmt.Sprintf(staysSQL, column), filter.OwnerID, filter.Start, filter.End)
	if err != nil {
		return nil, fmt.Errorf("reports: query stays: %w", err)
	}
	defer rows.Close()

	var stays []billing.Stay
	for rows.Next() {
		var (
			stay     billing.Stay
			category string
			rate     pgtype.Float8
			mealPlan []byte
		)
		if err := rows.Scan(&stay.RequestID, &stay.PersonName, &stay.PersonPosition, &stay.AirportCode, &stay.HotelName,
			&stay.RoomID, &stay.RoomName, &category, &stay.Arrival, &stay.Departure, &rate, &mealPlan); err != nil {
			return nil, fmt.Errorf("reports: scan stay: %w", err)
		}
		stay.Category = billing.Category(category)
		if rate.Valid {
			stay.DailyRate = billing.Resolved(rate.Float64)
		}
		if len(mealPlan) > 0 {
			if err := json.Unmarshal(mealPlan, &stay.MealPlan); err != nil {
				return nil, fmt.Errorf("reports: decode meal plan of %s: %w", stay.RequestID, err)
			}
		}
		stays = append(stays, stay)
	}
	return stays, rows.Err()
}

// InsertReport stores a new pending report.
func (r *Repository) InsertReport(ctx context.Context, report SavedReport) (SavedReport, error) {
	row := r.db.QueryRow(ctx, `
INSERT INTO saved_reports (id, name, kind, owner_id, period_start, period_end, format, status, created_by)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING `+reportColumns,
		report.ID, report.Name, string(report.Kind), report.OwnerID, report.Start, report.End,
		string(report.Format), string(StatusPending), report.CreatedBy)
	saved, err := scanReport(row)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return SavedReport{}, ErrDuplicateReport
		}
		return SavedReport{}, err
	}
	return saved, nil
}

// GetReport loads by id.
func (r *Repository) GetReport(ctx context.Context, id uuid.UUID) (SavedReport, error) {
	report, err := scanReport(r.db.QueryRow(ctx, `SELECT `+reportColumns+` FROM saved_reports WHERE id = $1`, id))
	if err != nil {
		if db.IsNoRows(err) {
			return SavedReport{}, ErrReportNotFound
		}
		return SavedReport{}, err
	}
	return report, nil
}

// ListReports lists recent reports, newest first.
func (r *Repository) ListReports(ctx context.Context, filter ListFilter) ([]SavedReport, int, error) {
	if filter.Limit <= 0 {
		filter.Limit = 20
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}
	where, args := listConditions(filter)

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM saved_reports`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, filter.Limit, (filter.Page-1)*filter.Limit)
	query := fmt.Sprintf(`SELECT %s FROM saved_reports%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		reportColumns, where, len(args)-1, len(args))
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []SavedReport
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, report)
	}
	return out, total, rows.Err()
}

// MarkInProgress moves a pending or failed report into IN_PROGRESS.
func (r *Repository) MarkInProgress(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `
UPDATE saved_reports SET status = $2, error_message = NULL, updated_at = NOW()
WHERE id = $1 AND status IN ($3, $4)`, id, string(StatusInProgress), string(StatusPending), string(StatusFailed))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrInvalidStatus
	}
	return nil
}

// MarkReady records the generated file.
func (r *Repository) MarkReady(ctx context.Context, id uuid.UUID, result ReadyResult) error {
	_, err := r.db.Exec(ctx, `
UPDATE saved_reports
SET status = $2, file_path = $3, url = $4, row_count = $5, skipped_count = $6, unresolved_count = $7,
	error_message = NULL, updated_at = NOW()
WHERE id = $1`, id, string(StatusReady), result.FilePath, result.URL, result.RowCount, result.SkippedCount, result.UnresolvedCount)
	return err
}

// MarkFailed stores the failure reason.
func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID, message string) error {
	_, err := r.db.Exec(ctx, `UPDATE saved_reports SET status = $2, error_message = $3, updated_at = NOW() WHERE id = $1`,
		id, string(StatusFailed), message)
	return err
}

// DeleteOlderThan removes reports created before cutoff and returns them.
func (r *Repository) DeleteOlderThan(ctx context.Context, cutoff time.Time) ([]SavedReport, error) {
	rows, err := r.db.Query(ctx, `DELETE FROM saved_reports WHERE created_at < $1 AND status <> $2 RETURNING `+reportColumns,
		cutoff, string(StatusInProgress))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []SavedReport
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, report)
	}
	return out, rows.Err()
}

func listConditions(filter ListFilter) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	add := func(column string, value any) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if filter.Kind != "" {
		add("kind", string(filter.Kind))
	}
	if filter.OwnerID != "" {
		add("owner_id", filter.OwnerID)
	}
	if filter.Status != "" {
		add("status", string(filter.Status))
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func scanReport(row pgx.Row) (SavedReport, error) {
	var (
		report                           SavedReport
		kind, format, status             string
		filePath, url, errMsg, createdBy pgtype.Text
	)
	err := row.Scan(&report.ID, &report.Name, &kind, &report.OwnerID, &report.Start, &report.End, &format, &status,
		&filePath, &url, &report.RowCount, &report.SkippedCount, &report.UnresolvedCount, &errMsg, &createdBy,
		&report.CreatedAt, &report.UpdatedAt)
	if err != nil {
		return SavedReport{}, err
	}
	report.Kind = billing.ReportKind(kind)
	report.Format = export.Format(format)
	report.Status = Status(status)
	report.FilePath = filePath.String
	report.URL = url.String
	report.Error = errMsg.String
	report.CreatedBy = createdBy.String
	return report, nil
}

// Package reports manages saved accommodation reports: it builds allocations from
// stored stays and price books, renders them and tracks their lifecycle.
package reports

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/crewstay/crewstay/internal/billing"
	"github.com/crewstay/crewstay/internal/billing/export"
)

// Status enumerates async generation lifecycle values.
type Status string

const (
	// StatusPending indicates waiting to be processed.
	StatusPending Status = "PENDING"
	// StatusInProgress indicates job executing.
	StatusInProgress Status = "IN_PROGRESS"
	// StatusReady indicates the file is available for download.
	StatusReady Status = "READY"
	// StatusFailed indicates error occurred.
	StatusFailed Status = "FAILED"
)

var (
	// ErrReportNotFound occurs when report missing.
	ErrReportNotFound = errors.New("reports: report not found")
	// ErrReportNotReady occurs when downloading an unfinished report.
	ErrReportNotReady = errors.New("reports: report not ready")
	// ErrDuplicateReport occurs when a report name is reused for the same owner.
	ErrDuplicateReport = errors.New("reports: report already exists")
	// ErrInvalidStatus occurs on an illegal lifecycle transition.
	ErrInvalidStatus = errors.New("reports: invalid status transition")
)

// SavedReport is the persisted metadata of a generated report.
type SavedReport struct {
	ID              uuid.UUID          `json:"id"`
	Name            string             `json:"name"`
	Kind            billing.ReportKind `json:"kind"`
	OwnerID         string             `json:"ownerId"`
	Start           time.Time          `json:"start"`
	End             time.Time          `json:"end"`
	Format          export.Format      `json:"format"`
	Status          Status             `json:"status"`
	FilePath        string             `json:"-"`
	URL             string             `json:"url,omitempty"`
	RowCount        int                `json:"rowCount"`
	SkippedCount    int                `json:"skippedCount"`
	UnresolvedCount int                `json:"unresolvedCount"`
	Error           string             `json:"error,omitempty"`
	CreatedBy       string             `json:"createdBy,omitempty"`
	CreatedAt       time.Time          `json:"createdAt"`
	UpdatedAt       time.Time          `json:"updatedAt"`
}

// GenerateRequest is the user input for a new saved report.
type GenerateRequest struct {
	Name      string `json:"name" validate:"required,max=200"`
	Kind      string `json:"kind" validate:"required,oneof=airline hotel"`
	OwnerID   string `json:"ownerId" validate:"required,max=100"`
	Start     string `json:"start" validate:"required"`
	End       string `json:"end" validate:"required"`
	Format    string `json:"format" validate:"required,oneof=csv xlsx pdf"`
	CreatedBy string `json:"createdBy" validate:"omitempty,max=100"`
}

// BuildFilter selects the stays an allocation is built from.
type BuildFilter struct {
	Kind    billing.ReportKind
	OwnerID string
	Start   time.Time
	End     time.Time
}

// ListFilter pages through saved reports.
type ListFilter struct {
	Kind    billing.ReportKind
	OwnerID string
	Status  Status
	Limit   int
	Page    int
}

// ReadyResult captures the outcome of a successful generation.
type ReadyResult struct {
	FilePath        string
	URL             string
	RowCount        int
	SkippedCount    int
	UnresolvedCount int
}

package reports

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	jobmetrics "github.com/crewstay/crewstay/internal/jobs"
	"github.com/crewstay/crewstay/jobs"
)

// Job processes report generation requests coming from the queue.
type Job struct {
	service *Service
	metrics *jobmetrics.Metrics
	logger  *slog.Logger
}

// NewJob constructs a Job handler.
func NewJob(service *Service, metrics *jobmetrics.Metrics, logger *slog.Logger) *Job {
	if logger == nil {
		logger = slog.Default()
	}
	return &Job{service: service, metrics: metrics, logger: logger}
}

// Handle fulfils the asynq.HandlerFunc contract.
func (j *Job) Handle(ctx context.Context, task *asynq.Task) (err error) {
	if j == nil || j.service == nil {
		return fmt.Errorf("report job not configured")
	}
	var payload jobs.ReportGeneratePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.ReportID == uuid.Nil {
		return fmt.Errorf("missing report id: %w", asynq.SkipRetry)
	}
	tracker := j.metrics.Track(jobs.TaskReportGenerate)
	defer func() { err = tracker.End(err) }()

	logger := j.logger.With(slog.String("report_id", payload.ReportID.String()))
	if err := j.service.Process(ctx, payload.ReportID); err != nil {
		if errors.Is(err, ErrReportNotFound) {
			logger.Warn("report vanished before generation")
			return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
		}
		logger.Error("report generation", slog.Any("error", err))
		return err
	}
	return nil
}

// SweepJob removes saved reports past their retention.
type SweepJob struct {
	service   *Service
	retention time.Duration
	metrics   *jobmetrics.Metrics
	logger    *slog.Logger
}

// NewSweepJob constructs the retention handler. The task payload retention wins
// over the default when set.
func NewSweepJob(service *Service, retention time.Duration, metrics *jobmetrics.Metrics, logger *slog.Logger) *SweepJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &SweepJob{service: service, retention: retention, metrics: metrics, logger: logger}
}

// Handle fulfils the asynq.HandlerFunc contract.
func (j *SweepJob) Handle(ctx context.Context, task *asynq.Task) (err error) {
	if j == nil || j.service == nil {
		return fmt.Errorf("report sweep job not configured")
	}
	var payload jobs.ReportSweepPayload
	if len(task.Payload()) > 0 {
		if err := json.Unmarshal(task.Payload(), &payload); err != nil {
			return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
		}
	}
	retention := j.retention
	if payload.Retention > 0 {
		retention = payload.Retention
	}
	tracker := j.metrics.Track(jobs.TaskReportSweep)
	defer func() { err = tracker.End(err) }()

	removed, err := j.service.Sweep(ctx, retention)
	if err != nil {
		return err
	}
	j.logger.Info("report sweep", slog.Int("removed", removed), slog.Duration("retention", retention))
	return nil
}

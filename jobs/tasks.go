package jobs

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskReportGenerate renders a saved report file.
	TaskReportGenerate = "report:generate"
	// TaskReportSweep deletes expired saved reports.
	TaskReportSweep = "report:sweep"
)

// ReportGeneratePayload identifies the saved report to render.
type ReportGeneratePayload struct {
	ReportID uuid.UUID `json:"report_id"`
}

// ReportSweepPayload carries the retention applied by the sweep.
type ReportSweepPayload struct {
	Retention time.Duration `json:"retention"`
}

// NewReportGenerateTask constructs an Asynq task for report generation. The
// task id is the report id so a report is never queued twice.
func NewReportGenerateTask(id uuid.UUID) (*asynq.Task, error) {
	body, err := json.Marshal(ReportGeneratePayload{ReportID: id})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskReportGenerate, body,
		asynq.Queue(QueueDefault), asynq.TaskID("report:"+id.String()), asynq.MaxRetry(5)), nil
}

// NewReportSweepTask constructs the retention sweep task.
func NewReportSweepTask(retention time.Duration) (*asynq.Task, error) {
	body, err := json.Marshal(ReportSweepPayload{Retention: retention})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskReportSweep, body, asynq.Queue(QueueDefault), asynq.MaxRetry(3)), nil
}

package jobs

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskDashboardInvalidate drops cached dashboards for one company.
	TaskDashboardInvalidate = "dashboard:invalidate"
	// TaskDashboardSweep drops cached dashboards for every company.
	TaskDashboardSweep = "dashboard:sweep"
)

// DashboardInvalidatePayload names the tenant whose dashboards went stale.
type DashboardInvalidatePayload struct {
	CompanyID uuid.UUID `json:"companyId"`
}

// NewDashboardInvalidateTask constructs an invalidation task for companyID.
func NewDashboardInvalidateTask(companyID uuid.UUID) (*asynq.Task, error) {
	data, err := json.Marshal(DashboardInvalidatePayload{CompanyID: companyID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskDashboardInvalidate, data), nil
}

// NewDashboardSweepTask constructs the periodic sweep task.
func NewDashboardSweepTask() *asynq.Task {
	return asynq.NewTask(TaskDashboardSweep, nil)
}

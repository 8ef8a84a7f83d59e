package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	jobmetrics "github.com/odyssey-crm/odyssey-crm/internal/jobs"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// Invalidator drops derived dashboard data for a company.
type Invalidator interface {
	Invalidate(ctx context.Context, companyID uuid.UUID) error
}

// CompanyLister enumerates tenants for the sweep.
type CompanyLister interface {
	CompanyIDs(ctx context.Context) ([]uuid.UUID, error)
}

// DashboardInvalidateJob handles TaskDashboardInvalidate and TaskDashboardSweep.
type DashboardInvalidateJob struct {
	Dashboards Invalidator
	Companies  CompanyLister
	Logger     *slog.Logger
	Metrics    *jobmetrics.Metrics
}

// NewDashboardInvalidateJob wires dependencies for the invalidation handlers.
func NewDashboardInvalidateJob(dashboards Invalidator, companies CompanyLister, logger *slog.Logger, metrics *jobmetrics.Metrics) *DashboardInvalidateJob {
	return &DashboardInvalidateJob{
		Dashboards: dashboards,
		Companies:  companies,
		Logger:     logger,
		Metrics:    metrics,
	}
}

// Handle processes a single-company invalidation.
func (j *DashboardInvalidateJob) Handle(ctx context.Context, task *asynq.Task) error {
	tracker := j.metrics().Track(TaskDashboardInvalidate)

	var payload DashboardInvalidatePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return tracker.End(fmt.Errorf("decode payload: %w", asynq.SkipRetry))
	}
	if payload.CompanyID == uuid.Nil {
		return tracker.End(fmt.Errorf("missing company: %w", asynq.SkipRetry))
	}
	if j.Dashboards == nil {
		return tracker.End(errors.New("dashboard invalidate: invalidator not configured"))
	}
	if err := j.Dashboards.Invalidate(ctx, payload.CompanyID); err != nil {
		j.logger().Error("invalidate dashboards", slog.String("company_id", payload.CompanyID.String()), slog.Any("error", err))
		return tracker.End(err)
	}
	return tracker.End(nil)
}

// HandleSweep invalidates every tenant. Failures for one company do not stop
// the others; the first error is returned so asynq retries the sweep.
func (j *DashboardInvalidateJob) HandleSweep(ctx context.Context, _ *asynq.Task) error {
	tracker := j.metrics().Track(TaskDashboardSweep)
	if j.Companies == nil || j.Dashboards == nil {
		return tracker.End(errors.New("dashboard sweep: not configured"))
	}
	started := time.Now()
	ids, err := j.Companies.CompanyIDs(ctx)
	if err != nil {
		return tracker.End(fmt.Errorf("list companies: %w", err))
	}
	var firstErr error
	for _, id := range ids {
		if err := j.Dashboards.Invalidate(ctx, id); err != nil {
			j.logger().Warn("sweep company", slog.String("company_id", id.String()), slog.Any("error", err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	j.logger().Info("dashboard sweep finished", slog.Int("companies", len(ids)), slog.Duration("duration", time.Since(started)))
	return tracker.End(firstErr)
}

func (j *DashboardInvalidateJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskDashboardInvalidate))
	}
	return slog.Default().With(slog.String("job", TaskDashboardInvalidate))
}

func (j *DashboardInvalidateJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

// PoolCompanies lists tenants straight from the companies table.
type PoolCompanies struct {
	Pool *pgxpool.Pool
}

// CompanyIDs implements CompanyLister.
func (p PoolCompanies) CompanyIDs(ctx context.Context) ([]uuid.UUID, error) {
	if p.Pool == nil {
		return nil, errors.New("companies: pool not configured")
	}
	rows, err := p.Pool.Query(ctx, `SELECT id FROM companies ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jobmetrics "github.com/odyssey-crm/odyssey-crm/internal/jobs"
)

type invalidatorSpy struct {
	calls []uuid.UUID
	fail  map[uuid.UUID]error
}

func (s *invalidatorSpy) Invalidate(_ context.Context, companyID uuid.UUID) error {
	s.calls = append(s.calls, companyID)
	return s.fail[companyID]
}

type staticCompanies []uuid.UUID

func (c staticCompanies) CompanyIDs(context.Context) ([]uuid.UUID, error) { return c, nil }

func newTestJob(inv Invalidator, companies CompanyLister) *DashboardInvalidateJob {
	return NewDashboardInvalidateJob(inv, companies, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))
}

func TestDashboardInvalidateHandle(t *testing.T) {
	company := uuid.New()
	spy := &invalidatorSpy{}
	job := newTestJob(spy, nil)

	task, err := NewDashboardInvalidateTask(company)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	assert.Equal(t, []uuid.UUID{company}, spy.calls)
}

func TestDashboardInvalidateRejectsBadPayload(t *testing.T) {
	spy := &invalidatorSpy{}
	job := newTestJob(spy, nil)

	err := job.Handle(context.Background(), asynq.NewTask(TaskDashboardInvalidate, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	err = job.Handle(context.Background(), asynq.NewTask(TaskDashboardInvalidate, []byte(`{"companyId":"00000000-0000-0000-0000-000000000000"}`)))
	assert.ErrorIs(t, err, asynq.SkipRetry)
	assert.Empty(t, spy.calls)
}

func TestDashboardInvalidatePropagatesFailure(t *testing.T) {
	company := uuid.New()
	boom := errors.New("redis down")
	job := newTestJob(&invalidatorSpy{fail: map[uuid.UUID]error{company: boom}}, nil)

	task, err := NewDashboardInvalidateTask(company)
	require.NoError(t, err)
	assert.ErrorIs(t, job.Handle(context.Background(), task), boom)
}

func TestDashboardSweepContinuesPastFailures(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	boom := errors.New("boom")
	spy := &invalidatorSpy{fail: map[uuid.UUID]error{b: boom}}
	job := newTestJob(spy, staticCompanies{a, b, c})

	err := job.HandleSweep(context.Background(), NewDashboardSweepTask())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []uuid.UUID{a, b, c}, spy.calls)
}

type enqueueSpy struct {
	tasks []*asynq.Task
	err   error
}

func (s *enqueueSpy) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	s.tasks = append(s.tasks, task)
	return &asynq.TaskInfo{Type: task.Type()}, s.err
}

func (s *enqueueSpy) Close() error { return nil }

func TestClientTenantChangedEnqueuesInvalidation(t *testing.T) {
	company := uuid.New()
	spy := &enqueueSpy{}
	client := &Client{client: spy}

	require.NoError(t, client.TenantChanged(context.Background(), company))
	require.Len(t, spy.tasks, 1)
	assert.Equal(t, TaskDashboardInvalidate, spy.tasks[0].Type())

	var payload DashboardInvalidatePayload
	require.NoError(t, json.Unmarshal(spy.tasks[0].Payload(), &payload))
	assert.Equal(t, company, payload.CompanyID)
}

func TestClientTenantChangedAbsorbsDuplicates(t *testing.T) {
	client := &Client{client: &enqueueSpy{err: asynq.ErrDuplicateTask}}
	assert.NoError(t, client.TenantChanged(context.Background(), uuid.New()))

	boom := errors.New("redis down")
	client = &Client{client: &enqueueSpy{err: boom}}
	assert.ErrorIs(t, client.TenantChanged(context.Background(), uuid.New()), boom)
}

type inspectorStub struct {
	info *asynq.QueueInfo
	err  error
}

func (s inspectorStub) GetQueueInfo(string) (*asynq.QueueInfo, error) { return s.info, s.err }

func TestHealthReportsQueue(t *testing.T) {
	h := &Handler{inspector: inspectorStub{info: &asynq.QueueInfo{Queue: "default", Pending: 4, Failed: 1}}}
	rec := httptest.NewRecorder()
	h.health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body queueHealth
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 4, body.Pending)
	assert.Equal(t, 1, body.Failed)
}

func TestHealthUnavailable(t *testing.T) {
	h := &Handler{inspector: inspectorStub{err: errors.New("down")}, logger: discardLogger()}
	rec := httptest.NewRecorder()
	h.health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = httptest.NewRecorder()
	NewHandler(nil, discardLogger()).health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

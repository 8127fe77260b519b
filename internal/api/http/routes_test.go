package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/solar-radiation-ingestion/internal/pipeline"
	"github.com/i474232898/solar-radiation-ingestion/internal/scheduler"
	"github.com/i474232898/solar-radiation-ingestion/internal/solar"
	"github.com/i474232898/solar-radiation-ingestion/internal/store"
)

type fakeTrigger struct {
	id  string
	err error
}

func (f *fakeTrigger) Trigger(pipeline.Trigger) (string, error) {
	return f.id, f.err
}

type fakeRecords struct {
	from, to time.Time
	limit    int
	records  []store.StoredRecord
	err      error
}

func (f *fakeRecords) QueryRecords(_ context.Context, from, to time.Time, limit int) ([]store.StoredRecord, error) {
	f.from, f.to, f.limit = from, to, limit
	return f.records, f.err
}

type testEnv struct {
	app     *fiber.App
	history *store.MemoryHistory
	trigger *fakeTrigger
	records *fakeRecords
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		app:     fiber.New(fiber.Config{ErrorHandler: ErrorHandler}),
		history: store.NewMemoryHistory(10, 0),
		trigger: &fakeTrigger{id: "run-new"},
		records: &fakeRecords{},
	}

	reg := prometheus.NewRegistry()
	pipeline.NewMetrics(reg)

	RegisterRoutes(env.app, Deps{
		Service:  "solar-radiation-ingestion",
		History:  env.history,
		Runner:   env.trigger,
		Records:  env.records,
		Gatherer: reg,
	})
	return env
}

func (env *testEnv) do(t *testing.T, method, target string) (int, []byte) {
	t.Helper()
	resp, err := env.app.Test(httptest.NewRequest(method, target, nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, body
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	code, body := env.do(t, http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"status":"ok","service":"solar-radiation-ingestion"}`, string(body))
}

func TestMetricsExposition(t *testing.T) {
	env := newTestEnv(t)

	code, body := env.do(t, http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(body), "solar_ingest_records_loaded_total")
}

func TestRunsEndpoints(t *testing.T) {
	env := newTestEnv(t)

	code, body := env.do(t, http.MethodGet, "/api/v1/runs/latest")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Contains(t, string(body), `"error":true`)

	started := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		env.history.Save(pipeline.RunReport{
			ID:        id,
			Trigger:   pipeline.TriggerScheduled,
			Status:    pipeline.StatusSucceeded,
			StartedAt: started.Add(time.Duration(i) * 24 * time.Hour),
		})
	}

	code, body = env.do(t, http.MethodGet, "/api/v1/runs?limit=2")
	require.Equal(t, http.StatusOK, code)
	var list struct {
		Runs []pipeline.RunReport `json:"runs"`
	}
	require.NoError(t, json.Unmarshal(body, &list))
	require.Len(t, list.Runs, 2)
	assert.Equal(t, "c", list.Runs[0].ID)
	assert.Equal(t, "b", list.Runs[1].ID)

	code, body = env.do(t, http.MethodGet, "/api/v1/runs/latest")
	require.Equal(t, http.StatusOK, code)
	var latest pipeline.RunReport
	require.NoError(t, json.Unmarshal(body, &latest))
	assert.Equal(t, "c", latest.ID)

	code, _ = env.do(t, http.MethodGet, "/api/v1/runs/a")
	assert.Equal(t, http.StatusOK, code)

	code, _ = env.do(t, http.MethodGet, "/api/v1/runs/unknown")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestRunsLimitValidation(t *testing.T) {
	env := newTestEnv(t)

	for _, target := range []string{
		"/api/v1/runs?limit=0",
		"/api/v1/runs?limit=101",
		"/api/v1/runs?limit=ten",
	} {
		code, _ := env.do(t, http.MethodGet, target)
		assert.Equal(t, http.StatusBadRequest, code, target)
	}

	code, _ := env.do(t, http.MethodGet, "/api/v1/runs")
	assert.Equal(t, http.StatusOK, code)
}

func TestTriggerRun(t *testing.T) {
	env := newTestEnv(t)

	code, body := env.do(t, http.MethodPost, "/api/v1/runs")
	assert.Equal(t, http.StatusAccepted, code)
	assert.JSONEq(t, `{"id":"run-new"}`, string(body))

	env.trigger.err = scheduler.ErrRunInProgress
	code, _ = env.do(t, http.MethodPost, "/api/v1/runs")
	assert.Equal(t, http.StatusConflict, code)

	env.trigger.err = errors.New("unexpected")
	code, _ = env.do(t, http.MethodPost, "/api/v1/runs")
	assert.Equal(t, http.StatusInternalServerError, code)
}

func TestRecordsQuery(t *testing.T) {
	env := newTestEnv(t)
	v := 12.5
	env.records.records = []store.StoredRecord{{
		ID: 7,
		Record: solar.Record{
			Latitude:           6.4541,
			Longitude:          3.3947,
			Time:               "2024-01-01T01:00",
			ShortwaveRadiation: &v,
		},
	}}

	code, body := env.do(t, http.MethodGet, "/api/v1/records?from=2024-01-01T00:00&to=1704153600&limit=50")
	require.Equal(t, http.StatusOK, code, string(body))

	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), env.records.from)
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), env.records.to)
	assert.Equal(t, 50, env.records.limit)

	var out struct {
		Count   int              `json:"count"`
		Records []map[string]any `json:"records"`
	}
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, 1, out.Count)
	require.Len(t, out.Records, 1)
	assert.Equal(t, 7.0, out.Records[0]["id"])
	assert.Equal(t, "2024-01-01T01:00", out.Records[0]["time"])
	assert.Equal(t, 12.5, out.Records[0]["shortwave_radiation"])
	assert.Nil(t, out.Records[0]["direct_radiation"])
}

func TestRecordsQueryDefaultsAndEmpty(t *testing.T) {
	env := newTestEnv(t)

	code, body := env.do(t, http.MethodGet, "/api/v1/records?from=2024-01-01T00:00:00Z&to=2024-01-01T00:00:00Z")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 1000, env.records.limit)
	assert.Contains(t, string(body), `"records":[]`)
}

func TestRecordsQueryValidation(t *testing.T) {
	env := newTestEnv(t)

	for _, target := range []string{
		"/api/v1/records",
		"/api/v1/records?from=2024-01-01T00:00",
		"/api/v1/records?from=yesterday&to=2024-01-01T00:00",
		"/api/v1/records?from=2024-01-02T00:00&to=2024-01-01T00:00",
		"/api/v1/records?from=2024-01-01T00:00&to=2024-01-02T00:00&limit=5001",
		"/api/v1/records?from=2024-01-01T00:00&to=2024-01-02T00:00&limit=0",
	} {
		code, _ := env.do(t, http.MethodGet, target)
		assert.Equal(t, http.StatusBadRequest, code, target)
	}
}

func TestRecordsQueryStoreFailure(t *testing.T) {
	env := newTestEnv(t)
	env.records.err = errors.New("connection refused")

	code, body := env.do(t, http.MethodGet, "/api/v1/records?from=2024-01-01T00:00&to=2024-01-02T00:00")
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Contains(t, string(body), "failed to query records")
}

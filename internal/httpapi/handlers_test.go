package httpapi_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/septivank/farm-telemetry/internal/aggregate"
	"github.com/septivank/farm-telemetry/internal/httpapi"
	"github.com/septivank/farm-telemetry/internal/model"
	"github.com/septivank/farm-telemetry/internal/service"
	"github.com/septivank/farm-telemetry/internal/snapshot"
	"github.com/septivank/farm-telemetry/internal/timeseries"
	"github.com/septivank/farm-telemetry/internal/validator"
)

var now = time.Date(2025, 12, 29, 10, 32, 0, 0, time.UTC)

type testServer struct {
	router http.Handler
	writer *service.Writer
	store  *timeseries.MemoryStore
}

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

func newTestServer(t *testing.T, health httpapi.HealthChecker, debug bool) *testServer {
	t.Helper()
	logger := zap.NewNop()
	zones := model.DefaultZones()
	store := timeseries.NewMemoryStore()

	v, err := validator.NewValidator(zones, nil, 0, time.UTC)
	if err != nil {
		t.Fatalf("NewValidator failed: %v", err)
	}
	v.WithClock(func() time.Time { return now })

	writer := service.NewWriter(store, service.WriterConfig{QueueSize: 16, Workers: 2, MaxRetries: 1, Timeout: time.Second}, logger)
	writer.Start()
	t.Cleanup(func() { writer.Stop(context.Background()) })

	snap := snapshot.NewStore(zones)
	if health == nil {
		health = store
	}

	h := httpapi.NewHandler(httpapi.Deps{
		Coordinator: service.NewCoordinator(v, snap, writer, nil, logger),
		Snapshot:    snap,
		Engine:      aggregate.NewEngine(store, zones, time.UTC).WithClock(func() time.Time { return now }),
		Health:      health,
		Logger:      logger,
		Debug:       debug,
	})
	return &testServer{router: httpapi.NewRouter(h), writer: writer, store: store}
}

func (s *testServer) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	var out map[string]any
	if strings.TrimSpace(rec.Body.String()) != "null" {
		if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
			t.Fatalf("%s %s: invalid JSON %q: %v", method, path, rec.Body.String(), err)
		}
	}
	return rec, out
}

// flush waits for queued appends to land in the store
func (s *testServer) flush(t *testing.T) {
	t.Helper()
	if err := s.writer.Stop(context.Background()); err != nil {
		t.Fatalf("writer stop failed: %v", err)
	}
}

func TestIngestThenSnapshot(t *testing.T) {
	s := newTestServer(t, nil, false)

	rec, body := s.do(t, http.MethodPost, "/ingest", `{"zone":"zone1","soil":42,"temperature":25.5,"humidity":60,"motor":"ON"}`)
	if rec.Code != http.StatusOK || body["status"] != "success" {
		t.Fatalf("Unexpected ingest response %d: %v", rec.Code, body)
	}

	rec, body = s.do(t, http.MethodGet, "/snapshot/zone1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if body["soilMoisture"] != 42.0 || body["temperature"] != 25.5 || body["humidity"] != 60.0 || body["actuatorState"] != "ON" {
		t.Errorf("Unexpected snapshot: %v", body)
	}
	if body["zoneId"] != "6587ab12c3456e7890123451" || body["lastUpdated"] == nil {
		t.Errorf("Expected zoneId and lastUpdated, got %v", body)
	}

	if rec, _ := s.do(t, http.MethodGet, "/snapshot/1", ""); rec.Code != http.StatusOK {
		t.Errorf("Expected numeric zone lookup to succeed, got %d", rec.Code)
	}
}

func TestIngest_InvalidPayload(t *testing.T) {
	s := newTestServer(t, nil, false)

	rec, body := s.do(t, http.MethodPost, "/ingest", `{"zone":"zone1","soil":"wet","temperature":25.5,"humidity":60}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", rec.Code)
	}
	if body["error"] != "Invalid payload" || body["kind"] != "InvalidPayload" {
		t.Errorf("Unexpected error body: %v", body)
	}
	if _, ok := body["detail"]; ok {
		t.Error("Expected no detail outside debug mode")
	}
}

func TestIngest_InvalidPayloadDebugDetail(t *testing.T) {
	s := newTestServer(t, nil, true)

	_, body := s.do(t, http.MethodPost, "/ingest", `[1,2,3]`)
	if body["detail"] == nil {
		t.Errorf("Expected detail in debug mode, got %v", body)
	}
}

func TestIngest_MultiZone(t *testing.T) {
	s := newTestServer(t, nil, false)

	rec, body := s.do(t, http.MethodPost, "/ingest", `{"zone1":{"soil":1,"temperature":2,"humidity":3},"zone2":{"soil":1}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if acc := body["accepted"].([]any); len(acc) != 1 || acc[0] != "zone1" {
		t.Errorf("Unexpected accepted list: %v", body["accepted"])
	}
	if rej := body["rejected"].([]any); len(rej) != 1 {
		t.Errorf("Unexpected rejected list: %v", body["rejected"])
	}
}

func TestSnapshot(t *testing.T) {
	s := newTestServer(t, nil, false)

	rec, body := s.do(t, http.MethodGet, "/snapshot", "")
	if rec.Code != http.StatusOK || len(body) != 3 {
		t.Fatalf("Expected every zone listed, got %d %v", rec.Code, body)
	}
	for zone, v := range body {
		if v != nil {
			t.Errorf("Expected %s to have no data yet", zone)
		}
	}

	rec, _ = s.do(t, http.MethodGet, "/snapshot/zone2", "")
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != "null" {
		t.Errorf("Expected null for zone without data, got %d %s", rec.Code, rec.Body.String())
	}

	rec, body = s.do(t, http.MethodGet, "/snapshot/zone9", "")
	if rec.Code != http.StatusNotFound || body["kind"] != "NotFound" {
		t.Errorf("Expected 404 NotFound, got %d %v", rec.Code, body)
	}
}

func TestDaily(t *testing.T) {
	s := newTestServer(t, nil, false)

	for i, temp := range []string{"20", "22", "24"} {
		ts := time.Date(2025, 12, 28, 8+i, 0, 0, 0, time.UTC).Format(time.RFC3339)
		payload := `{"zone":"zone2","soil":40,"temperature":` + temp + `,"humidity":50,"timestamp":"` + ts + `"}`
		if rec, _ := s.do(t, http.MethodPost, "/ingest", payload); rec.Code != http.StatusOK {
			t.Fatalf("Ingest failed with %d", rec.Code)
		}
	}
	s.flush(t)

	rec, body := s.do(t, http.MethodGet, "/sensor/daily/zone2?date=2025-12-28", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %v", rec.Code, body)
	}
	summary, ok := body["summary"].(map[string]any)
	if !ok {
		t.Fatalf("Expected summary, got %v", body)
	}
	if summary["avgTemp"] != 22.0 || summary["maxTemp"] != 24.0 || summary["minTemp"] != 20.0 || summary["totalReadings"] != 3.0 {
		t.Errorf("Unexpected summary: %v", summary)
	}
	if body["message"] == nil || body["date"] != "2025-12-28" || body["zone"] != "zone2" {
		t.Errorf("Unexpected envelope: %v", body)
	}

	_, body = s.do(t, http.MethodGet, "/sensor/daily/zone2", "")
	if body["date"] != "2025-12-29" || body["summary"] != nil {
		t.Errorf("Expected empty view for today, got %v", body)
	}

	_, body = s.do(t, http.MethodGet, "/sensor/daily?date=2025-12-28", "")
	zones := body["zones"].(map[string]any)
	if len(zones) != 3 {
		t.Errorf("Expected all zones, got %v", zones)
	}
}

func TestMonthly(t *testing.T) {
	s := newTestServer(t, nil, false)

	s.do(t, http.MethodPost, "/ingest", `{"zone":"zone3","soil":40,"temperature":18,"humidity":50,"timestamp":"2024-02-29T12:00:00Z"}`)
	s.flush(t)

	rec, body := s.do(t, http.MethodGet, "/sensor/monthly/zone3?year=2024&month=2", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %v", rec.Code, body)
	}
	if body["daysInMonth"] != 29.0 || len(body["data"].([]any)) != 1 {
		t.Errorf("Unexpected monthly view: %v", body)
	}

	rec, body = s.do(t, http.MethodGet, "/sensor/monthly?year=2024&month=2", "")
	if rec.Code != http.StatusOK || len(body["zones"].(map[string]any)) != 3 {
		t.Errorf("Unexpected all-zone monthly view: %d %v", rec.Code, body)
	}
}

func TestAggregation_Errors(t *testing.T) {
	s := newTestServer(t, nil, false)

	tests := []struct {
		path string
		kind string
	}{
		{"/sensor/daily/zone7?date=2025-12-01", "InvalidZone"},
		{"/sensor/daily/zone1?date=12-01-2025", "InvalidDate"},
		{"/sensor/daily?date=yesterday", "InvalidDate"},
		{"/sensor/monthly/zone1?year=1999&month=2", "InvalidYear"},
		{"/sensor/monthly/zone1?year=abc", "InvalidYear"},
		{"/sensor/monthly/zone1?year=2025&month=13", "InvalidMonth"},
		{"/sensor/monthly?year=2025&month=x", "InvalidMonth"},
	}

	for _, tt := range tests {
		rec, body := s.do(t, http.MethodGet, tt.path, "")
		if rec.Code != http.StatusBadRequest || body["kind"] != tt.kind {
			t.Errorf("%s: expected 400 %s, got %d %v", tt.path, tt.kind, rec.Code, body)
		}
		if body["error"] == "" {
			t.Errorf("%s: expected a message", tt.path)
		}
	}
}

type downStore struct{ *timeseries.MemoryStore }

func (downStore) QueryRange(context.Context, string, time.Time, time.Time) ([]model.Record, error) {
	return nil, errors.New("dial tcp 10.0.0.5:5432: connection refused")
}

func TestAggregation_StorageUnavailable(t *testing.T) {
	logger := zap.NewNop()
	zones := model.DefaultZones()
	guarded := timeseries.NewGuardedStore(downStore{timeseries.NewMemoryStore()}, timeseries.GuardedConfig{Timeout: time.Second, BreakerFailures: 5}, logger)
	v, _ := validator.NewValidator(zones, nil, 0, time.UTC)
	snap := snapshot.NewStore(zones)

	router := httpapi.NewRouter(httpapi.NewHandler(httpapi.Deps{
		Coordinator: service.NewCoordinator(v, snap, service.NewWriter(guarded, service.WriterConfig{}, logger), nil, logger),
		Snapshot:    snap,
		Engine:      aggregate.NewEngine(guarded, zones, time.UTC),
		Health:      guarded,
		Logger:      logger,
	}))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/sensor/daily/zone1?date=2025-12-01", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("Expected 503, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "10.0.0.5") {
		t.Errorf("Expected storage details hidden, got %s", rec.Body.String())
	}
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, nil, false)
	if rec, body := s.do(t, http.MethodGet, "/health", ""); rec.Code != http.StatusOK || body["storage"] != "up" {
		t.Errorf("Expected healthy storage, got %d %v", rec.Code, body)
	}

	down := newTestServer(t, pinger{err: errors.New("pool closed")}, false)
	if rec, body := down.do(t, http.MethodGet, "/health", ""); rec.Code != http.StatusServiceUnavailable || body["storage"] != "down" {
		t.Errorf("Expected 503 with storage down, got %d %v", rec.Code, body)
	}
}

func TestRequestIDHeader(t *testing.T) {
	s := newTestServer(t, nil, false)

	req := httptest.NewRequest(http.MethodGet, "/snapshot", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	if rec.Header().Get("X-Request-ID") != "abc-123" {
		t.Errorf("Expected request id echoed, got %q", rec.Header().Get("X-Request-ID"))
	}

	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/snapshot", nil))
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("Expected generated request id")
	}
}

func TestIngest_TimestampBeyondYear9999(t *testing.T) {
	s := newTestServer(t, nil, false)

	rec, body := s.do(t, http.MethodPost, "/ingest", `{"zone":"zone1","soil":1,"temperature":2,"humidity":3,"timestamp":1e15}`)
	if rec.Code != http.StatusBadRequest || body["kind"] != "InvalidPayload" {
		t.Fatalf("Expected 400 InvalidPayload, got %d: %v", rec.Code, body)
	}

	rec, body = s.do(t, http.MethodGet, "/snapshot", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if body["zone1"] != nil {
		t.Errorf("Expected rejected reading to stay out of the snapshot, got %v", body["zone1"])
	}
}

func TestSnapshot_UnencodableReadingIs500(t *testing.T) {
	zones := model.DefaultZones()
	snap := snapshot.NewStore(zones)
	snap.Put("zone1", model.Reading{
		Zone:          "zone1",
		ActuatorState: model.ActuatorOff,
		Timestamp:     time.Date(10000, 1, 1, 0, 0, 0, 0, time.UTC),
	})

	h := httpapi.NewHandler(httpapi.Deps{
		Snapshot: snap,
		Health:   pinger{},
		Logger:   zap.NewNop(),
	})
	router := httpapi.NewRouter(h)

	for _, path := range []string{"/snapshot", "/snapshot/zone1"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

		if rec.Code != http.StatusInternalServerError {
			t.Errorf("%s: expected 500, got %d", path, rec.Code)
		}
		var body map[string]any
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("%s: invalid JSON %q: %v", path, rec.Body.String(), err)
		}
		if body["kind"] != "Internal" {
			t.Errorf("%s: expected Internal kind, got %v", path, body)
		}
	}
}

func TestIngest_TrailingSlash(t *testing.T) {
	s := newTestServer(t, nil, false)

	rec, body := s.do(t, http.MethodPost, "/ingest/", `{"zone":"zone1","soil":42,"temperature":25.5,"humidity":60}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %v", rec.Code, body)
	}
	if acc, ok := body["accepted"].([]any); !ok || len(acc) != 1 || acc[0] != "zone1" {
		t.Errorf("Unexpected accepted list: %v", body["accepted"])
	}

	s.flush(t)
	got, err := s.store.QueryRange(context.Background(), "zone1", now.Add(-time.Hour), now.Add(time.Hour))
	if err != nil || len(got) != 1 {
		t.Errorf("Expected the reading to be persisted, got %d (%v)", len(got), err)
	}
}

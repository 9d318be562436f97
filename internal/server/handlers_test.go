package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bobmcallan/nemwatch/internal/app"
	"github.com/bobmcallan/nemwatch/internal/common"
	"github.com/bobmcallan/nemwatch/internal/interfaces"
	"github.com/bobmcallan/nemwatch/internal/models"
	"github.com/bobmcallan/nemwatch/internal/services/market"
)

// fixedService serves a canned snapshot; no feed access.
type fixedService struct {
	snapshot *models.MarketSnapshot
}

func (f *fixedService) Refresh(ctx context.Context, includePredispatch bool) (interfaces.RefreshResult, error) {
	return interfaces.RefreshResult{}, nil
}

func (f *fixedService) Snapshot() *models.MarketSnapshot { return f.snapshot }
func (f *fixedService) Region() string                   { return "NSW1" }

func newTestServer(t *testing.T, snapshot *models.MarketSnapshot) *Server {
	t.Helper()

	logger := common.NewSilentLogger()
	svc := &fixedService{snapshot: snapshot}
	a := &app.App{
		Config:        common.NewDefaultConfig(),
		Logger:        logger,
		MarketService: svc,
		Poller:        market.NewPoller(svc, logger),
		StartupTime:   time.Now(),
	}
	return NewServer(a)
}

func doRequest(t *testing.T, s *Server, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("response is not JSON: %v\n%s", err, rec.Body.String())
	}
	return body
}

func snapshotFixture() *models.MarketSnapshot {
	realtime := models.NewPricePoint("NSW1", 86.21, "2025/01/12 13:05:00")
	spot := models.NewPricePoint("NSW1", 85.00, "2025/01/12 13:05:00")
	return &models.MarketSnapshot{
		Region:        "NSW1",
		RealtimePrice: &realtime,
		SpotPrice:     &spot,
		P5MinForecast: models.ForecastSeries{
			models.NewPricePoint("NSW1", 85.00, "2025/01/12 13:10:00"),
			models.NewPricePoint("NSW1", 90.00, "2025/01/12 13:15:00"),
		},
		PredispatchForecast: models.ForecastSeries{
			models.NewPricePoint("NSW1", 92.00, "2025/01/12 13:30:00"),
			models.NewPricePoint("NSW1", 97.00, "2025/01/12 14:00:00"),
		},
		SpikeInfo:  models.SpikeInfo{Ratio: 1.01, AvgPrice: 85.3, CurrentPrice: 86.21, Samples: 4},
		LastUpdate: "2025/01/12 13:05:00",
		FetchedAt:  time.Now(),
	}
}

func TestHandleHealth(t *testing.T) {
	s := newTestServer(t, snapshotFixture())

	rec := doRequest(t, s, http.MethodGet, "/api/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	body := decodeJSON(t, rec)
	if body["status"] != "ok" {
		t.Errorf("status = %v", body["status"])
	}
	if body["region"] != "NSW1" {
		t.Errorf("region = %v", body["region"])
	}
	poller, ok := body["poller"].(map[string]interface{})
	if !ok {
		t.Fatalf("poller section missing: %v", body)
	}
	if poller["mode"] != "active" {
		t.Errorf("poller mode = %v, want active before first anchor", poller["mode"])
	}
}

func TestHandlePrice(t *testing.T) {
	s := newTestServer(t, snapshotFixture())

	rec := doRequest(t, s, http.MethodGet, "/api/market/price")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	body := decodeJSON(t, rec)
	if body["price_mwh"] != 86.21 {
		t.Errorf("price_mwh = %v", body["price_mwh"])
	}
	if body["source"] != "dispatch" {
		t.Errorf("source = %v, want dispatch when a realtime price exists", body["source"])
	}
	if body["timestamp_iso"] != "2025-01-12T13:05:00+10:00" {
		t.Errorf("timestamp_iso = %v", body["timestamp_iso"])
	}
}

func TestHandlePrice_SpotFallback(t *testing.T) {
	snap := snapshotFixture()
	snap.RealtimePrice = nil
	s := newTestServer(t, snap)

	body := decodeJSON(t, doRequest(t, s, http.MethodGet, "/api/market/price"))
	if body["source"] != "p5min" {
		t.Errorf("source = %v, want p5min fallback", body["source"])
	}
	if body["price_mwh"] != 85.00 {
		t.Errorf("price_mwh = %v", body["price_mwh"])
	}
}

func TestHandlePrice_NoDataYet(t *testing.T) {
	s := newTestServer(t, &models.MarketSnapshot{Region: "NSW1"})

	rec := doRequest(t, s, http.MethodGet, "/api/market/price")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 before any poll succeeds", rec.Code)
	}
}

func TestHandleForecast_DefaultHorizon(t *testing.T) {
	s := newTestServer(t, snapshotFixture())

	body := decodeJSON(t, doRequest(t, s, http.MethodGet, "/api/market/forecast"))
	if body["horizon"] != "p5min" {
		t.Errorf("horizon = %v, want p5min default", body["horizon"])
	}
	if body["periods"] != float64(2) {
		t.Errorf("periods = %v", body["periods"])
	}
}

func TestHandleForecast_Predispatch(t *testing.T) {
	s := newTestServer(t, snapshotFixture())

	body := decodeJSON(t, doRequest(t, s, http.MethodGet, "/api/market/forecast?horizon=predispatch"))
	if body["horizon"] != "predispatch" {
		t.Errorf("horizon = %v", body["horizon"])
	}
}

func TestHandleForecast_BadHorizon(t *testing.T) {
	s := newTestServer(t, snapshotFixture())

	rec := doRequest(t, s, http.MethodGet, "/api/market/forecast?horizon=yearly")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHandleSpike(t *testing.T) {
	s := newTestServer(t, snapshotFixture())

	rec := doRequest(t, s, http.MethodGet, "/api/market/spike")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	body := decodeJSON(t, rec)
	if body["is_spike"] != false {
		t.Errorf("is_spike = %v", body["is_spike"])
	}
	if body["current_price"] != 86.21 {
		t.Errorf("current_price = %v", body["current_price"])
	}
}

func TestHandleSnapshot(t *testing.T) {
	s := newTestServer(t, snapshotFixture())

	rec := doRequest(t, s, http.MethodGet, "/api/market/snapshot")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	body := decodeJSON(t, rec)
	if body["region"] != "NSW1" {
		t.Errorf("region = %v", body["region"])
	}
	if _, ok := body["realtime_price"]; !ok {
		t.Error("snapshot missing realtime_price")
	}
}

func TestHandleChart(t *testing.T) {
	s := newTestServer(t, snapshotFixture())

	rec := doRequest(t, s, http.MethodGet, "/api/market/chart")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("Content-Type = %s", ct)
	}
}

func TestHandleChart_NoForecast(t *testing.T) {
	s := newTestServer(t, &models.MarketSnapshot{Region: "NSW1"})

	rec := doRequest(t, s, http.MethodGet, "/api/market/chart")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestHandlers_MethodNotAllowed(t *testing.T) {
	s := newTestServer(t, snapshotFixture())

	rec := doRequest(t, s, http.MethodPost, "/api/market/price")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
	if allow := rec.Header().Get("Allow"); !strings.Contains(allow, http.MethodGet) {
		t.Errorf("Allow = %s", allow)
	}
}

func TestHandleVersion(t *testing.T) {
	s := newTestServer(t, snapshotFixture())

	rec := doRequest(t, s, http.MethodGet, "/api/version")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if _, ok := decodeJSON(t, rec)["version"]; !ok {
		t.Error("missing version field")
	}
}

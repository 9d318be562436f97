package models

import (
	"testing"
)

func TestNewPricePoint_DerivedUnits(t *testing.T) {
	p := NewPricePoint("NSW1", 142.5, "2025/01/12 13:05:00")

	if p.PriceCents != 14.25 {
		t.Errorf("PriceCents = %v, want 14.25", p.PriceCents)
	}
	if p.PriceDollars != 0.1425 {
		t.Errorf("PriceDollars = %v, want 0.1425", p.PriceDollars)
	}
}

func TestNewPricePoint_NegativePrice(t *testing.T) {
	p := NewPricePoint("SA1", -50, "2025/01/12 13:05:00")

	if p.PriceCents != -5 {
		t.Errorf("PriceCents = %v, want -5", p.PriceCents)
	}
	if p.PriceDollars != -0.05 {
		t.Errorf("PriceDollars = %v, want -0.05", p.PriceDollars)
	}
}

func TestIsNEMRegion(t *testing.T) {
	for _, code := range []string{"NSW1", "QLD1", "VIC1", "SA1", "TAS1"} {
		if !IsNEMRegion(code) {
			t.Errorf("expected %s to be a NEM region", code)
		}
	}
	if IsNEMRegion("NT1") {
		t.Error("NT1 is not a NEM region")
	}
	if IsNEMRegion("") {
		t.Error("empty region code accepted")
	}
}

func TestForecastSeries_NormalizeSorts(t *testing.T) {
	s := ForecastSeries{
		{Timestamp: "2025/01/12 13:30:00", PriceMWh: 120},
		{Timestamp: "2025/01/12 13:10:00", PriceMWh: 100},
		{Timestamp: "2025/01/12 13:20:00", PriceMWh: 110},
	}

	out := s.Normalize()
	if len(out) != 3 {
		t.Fatalf("len = %d, want 3", len(out))
	}
	if out[0].Timestamp != "2025/01/12 13:10:00" || out[2].Timestamp != "2025/01/12 13:30:00" {
		t.Errorf("series not sorted ascending: %v", out)
	}
}

func TestForecastSeries_NormalizeDedupesLastWins(t *testing.T) {
	s := ForecastSeries{
		{Timestamp: "2025/01/12 13:10:00", PriceMWh: 100},
		{Timestamp: "2025/01/12 13:10:00", PriceMWh: 105},
		{Timestamp: "2025/01/12 13:15:00", PriceMWh: 110},
	}

	out := s.Normalize()
	if len(out) != 2 {
		t.Fatalf("len = %d, want 2", len(out))
	}
	if out[0].PriceMWh != 105 {
		t.Errorf("duplicate timestamp kept PriceMWh = %v, want 105 (later entry)", out[0].PriceMWh)
	}
}

func TestForecastSeries_NormalizeEmpty(t *testing.T) {
	var s ForecastSeries
	if out := s.Normalize(); len(out) != 0 {
		t.Errorf("expected empty series, got %v", out)
	}
}

func TestMarketSnapshot_CurrentPrice(t *testing.T) {
	dispatch := NewPricePoint("NSW1", 90, "2025/01/12 13:05:00")
	spot := NewPricePoint("NSW1", 95, "2025/01/12 13:05:00")

	m := &MarketSnapshot{RealtimePrice: &dispatch, SpotPrice: &spot}
	if got := m.CurrentPrice(); got == nil || got.PriceMWh != 90 {
		t.Errorf("CurrentPrice = %v, want dispatch price 90", got)
	}

	m.RealtimePrice = nil
	if got := m.CurrentPrice(); got == nil || got.PriceMWh != 95 {
		t.Errorf("CurrentPrice = %v, want spot price 95", got)
	}

	m.SpotPrice = nil
	if got := m.CurrentPrice(); got != nil {
		t.Errorf("CurrentPrice = %v, want nil", got)
	}

	var nilSnap *MarketSnapshot
	if got := nilSnap.CurrentPrice(); got != nil {
		t.Error("nil snapshot should return nil price")
	}
}

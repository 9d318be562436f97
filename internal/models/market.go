// Package models defines data structures for Nemwatch
package models

import (
	"errors"
	"sort"
	"time"
)

// Errors returned across the fetch/parse pipeline. Transport failures,
// discovery misses and decode failures are all soft: callers receive
// ErrNotFound (or an empty result) and carry forward the previous snapshot.
// ErrSchedulerFatal is the one hard failure: the fetch subsystem itself is
// unusable and the tick must be reported as failed.
var (
	ErrNotFound       = errors.New("no matching archive file found")
	ErrSchedulerFatal = errors.New("market poller: fetch subsystem unavailable")
)

// NEMRegions maps the five NEM region codes to their display names.
var NEMRegions = map[string]string{
	"NSW1": "New South Wales",
	"QLD1": "Queensland",
	"VIC1": "Victoria",
	"SA1":  "South Australia",
	"TAS1": "Tasmania",
}

// IsNEMRegion reports whether code is one of the five NEM region codes.
func IsNEMRegion(code string) bool {
	_, ok := NEMRegions[code]
	return ok
}

// PricePoint is a single regional price observation or forecast interval.
// PriceCents and PriceDollars are derived from PriceMWh, never set
// independently. Timestamp is the raw market-local string from the archive
// ("2006/01/02 15:04:05", always AEST).
type PricePoint struct {
	Region       string  `json:"region"`
	PriceMWh     float64 `json:"price_mwh"`
	PriceCents   float64 `json:"price_cents"`   // c/kWh
	PriceDollars float64 `json:"price_dollars"` // $/kWh
	Timestamp    string  `json:"timestamp"`
}

// NewPricePoint builds a PricePoint from a $/MWh price, deriving the
// per-kWh unit conversions.
func NewPricePoint(region string, priceMWh float64, timestamp string) PricePoint {
	return PricePoint{
		Region:       region,
		PriceMWh:     priceMWh,
		PriceCents:   priceMWh / 10,
		PriceDollars: priceMWh / 1000,
		Timestamp:    timestamp,
	}
}

// ForecastSeries is an ordered sequence of forecast price intervals.
type ForecastSeries []PricePoint

// Normalize sorts the series ascending by timestamp and collapses duplicate
// timestamps, keeping the last entry per timestamp after the sort.
func (s ForecastSeries) Normalize() ForecastSeries {
	if len(s) == 0 {
		return s
	}

	sorted := make(ForecastSeries, len(s))
	copy(sorted, s)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp < sorted[j].Timestamp
	})

	out := sorted[:0]
	for _, p := range sorted {
		if n := len(out); n > 0 && out[n-1].Timestamp == p.Timestamp {
			out[n-1] = p
			continue
		}
		out = append(out, p)
	}
	return out
}

// SpikeInfo holds rolling-window spike detection metrics for the most
// recently observed price. Ratio and magnitude are rounded to 2 decimal
// places.
type SpikeInfo struct {
	IsSpike      bool    `json:"is_spike"`
	IsNegative   bool    `json:"is_negative"`
	Ratio        float64 `json:"spike_ratio"`
	Magnitude    float64 `json:"spike_magnitude"` // $/MWh above rolling average
	CurrentPrice float64 `json:"current_price"`
	AvgPrice     float64 `json:"avg_price"`
	Samples      int     `json:"samples"`
}

// MarketSnapshot is the consumer-facing aggregate refreshed by the polling
// scheduler. It is replaced wholesale on each tick that produces new data;
// fields with no new data carry the previous snapshot's values forward.
type MarketSnapshot struct {
	Region              string         `json:"region"`
	RealtimePrice       *PricePoint    `json:"realtime_price"`       // from DISPATCH, fastest
	SpotPrice           *PricePoint    `json:"spot_price"`           // from P5MIN, most recently completed interval
	P5MinForecast       ForecastSeries `json:"p5min_forecast"`       // short horizon, 5-minute intervals
	PredispatchForecast ForecastSeries `json:"predispatch_forecast"` // long horizon, 30-minute intervals
	SpikeInfo           SpikeInfo      `json:"spike_info"`
	LastUpdate          string         `json:"last_update,omitempty"` // market-local timestamp of newest price
	FetchedAt           time.Time      `json:"fetched_at"`
}

// CurrentPrice returns the freshest price available: the dispatch price when
// present, otherwise the P5MIN spot price, otherwise nil.
func (m *MarketSnapshot) CurrentPrice() *PricePoint {
	if m == nil {
		return nil
	}
	if m.RealtimePrice != nil {
		return m.RealtimePrice
	}
	return m.SpotPrice
}

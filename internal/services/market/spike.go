package market

import (
	"math"

	"github.com/bobmcallan/nemwatch/internal/models"
)

const (
	// spikeWindowSize is one hour of prices at 5-minute dispatch cadence.
	spikeWindowSize = 12

	// A spike is a price more than double the rolling average AND at least
	// $20/MWh above it. The magnitude floor stops tiny baselines (e.g.
	// $2 -> $5) from flagging.
	spikeRatioThreshold     = 2.0
	spikeMagnitudeThreshold = 20.0
)

// SpikeDetector maintains a bounded rolling window of recent dispatch
// prices and derives deviation metrics for the newest one. Not safe for
// concurrent use; the poller is its only writer.
type SpikeDetector struct {
	window []float64
}

// NewSpikeDetector creates an empty detector.
func NewSpikeDetector() *SpikeDetector {
	return &SpikeDetector{
		window: make([]float64, 0, spikeWindowSize),
	}
}

// Observe appends price to the rolling window and returns spike metrics for
// it. Advances the window every call. The average excludes the price being
// judged, so a spike does not inflate its own baseline.
func (d *SpikeDetector) Observe(price float64) models.SpikeInfo {
	d.window = append(d.window, price)
	if len(d.window) > spikeWindowSize {
		d.window = d.window[len(d.window)-spikeWindowSize:]
	}

	if len(d.window) < 3 {
		return models.SpikeInfo{
			IsNegative:   price < 0,
			CurrentPrice: price,
			AvgPrice:     price,
			Samples:      len(d.window),
		}
	}

	prior := d.window[:len(d.window)-1]
	sum := 0.0
	for _, p := range prior {
		sum += p
	}
	avg := sum / float64(len(prior))

	ratio := 1.0
	if avg != 0 {
		ratio = price / avg
	}
	magnitude := price - avg

	return models.SpikeInfo{
		IsSpike:      ratio > spikeRatioThreshold && magnitude > spikeMagnitudeThreshold,
		IsNegative:   price < 0,
		Ratio:        round2(ratio),
		Magnitude:    round2(magnitude),
		CurrentPrice: price,
		AvgPrice:     round2(avg),
		Samples:      len(d.window),
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

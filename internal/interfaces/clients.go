// Package interfaces defines service contracts for Nemwatch
package interfaces

import (
	"context"

	"github.com/bobmcallan/nemwatch/internal/models"
)

// NemwebClient provides access to the AEMO NEMWEB file archive. Each method
// discovers the most recently published file for its feed, downloads it at
// most once (repeat calls for the same filename are served from cache), and
// returns the source filename alongside the parsed data so callers can tell
// whether anything new was published.
type NemwebClient interface {
	// DispatchPrices returns the current dispatch clearing price for every
	// region, keyed by region code. Fastest feed, ~2-5 minute cadence.
	DispatchPrices(ctx context.Context) (map[string]models.PricePoint, string, error)

	// P5MinPrices returns the most recently completed interval price per
	// region plus the short-horizon forecast series for the given region.
	P5MinPrices(ctx context.Context, region string) (map[string]models.PricePoint, models.ForecastSeries, string, error)

	// PredispatchForecast returns the long-horizon forecast series for the
	// given region. Coarsest feed, ~30 minute cadence.
	PredispatchForecast(ctx context.Context, region string) (models.ForecastSeries, string, error)

	// Close releases the underlying connection pool. Idempotent.
	Close()
}

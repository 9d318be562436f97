package interfaces

import (
	"context"
	"time"

	"github.com/bobmcallan/nemwatch/internal/models"
)

// RefreshResult reports what one fetch cycle across the three feeds
// produced.
type RefreshResult struct {
	// NewData is true when at least one feed published a file not seen
	// before this cycle.
	NewData bool

	// PeriodAnchor is the publication instant of the newest dispatch or
	// P5MIN file observed this cycle (dispatch preferred when both are
	// new), used to re-anchor the polling schedule. Zero when no new
	// timing-relevant file appeared.
	PeriodAnchor time.Time
}

// MarketService maintains the latest market snapshot for a single region.
type MarketService interface {
	// Refresh runs one fetch/parse/merge cycle across the feeds and
	// replaces the snapshot. Individual feed failures are absorbed (prior
	// values carry forward); only an unusable fetch subsystem returns an
	// error.
	Refresh(ctx context.Context, includePredispatch bool) (RefreshResult, error)

	// Snapshot returns the latest consumer-facing snapshot. Never nil
	// after the service is constructed; fields may be empty before the
	// first successful fetch.
	Snapshot() *models.MarketSnapshot

	// Region returns the configured NEM region code.
	Region() string
}

// Package market maintains the latest wholesale price snapshot for one NEM
// region, refreshed by an adaptive polling scheduler over the NEMWEB feeds.
package market

import (
	"context"
	"sync"
	"time"

	"github.com/bobmcallan/nemwatch/internal/common"
	"github.com/bobmcallan/nemwatch/internal/interfaces"
	"github.com/bobmcallan/nemwatch/internal/models"
)

// Service implements MarketService. One instance watches one region.
//
// Refresh is only ever called from the poller's tick goroutine, so the feed
// bookkeeping fields need no locking; the snapshot pointer is guarded
// because HTTP handlers read it concurrently. The snapshot is replaced
// wholesale, never mutated in place, so readers always see a complete
// consistent value.
type Service struct {
	client interfaces.NemwebClient
	logger *common.Logger
	region string
	spike  *SpikeDetector

	mu       sync.RWMutex
	snapshot *models.MarketSnapshot

	lastDispatchFile    string
	lastP5MinFile       string
	lastPredispatchFile string

	now func() time.Time // injectable clock for testing
}

// NewService creates a market data service for the given region.
func NewService(client interfaces.NemwebClient, region string, logger *common.Logger) *Service {
	return &Service{
		client:   client,
		logger:   logger,
		region:   region,
		spike:    NewSpikeDetector(),
		snapshot: &models.MarketSnapshot{Region: region},
		now:      time.Now,
	}
}

// Region returns the configured NEM region code.
func (s *Service) Region() string {
	return s.region
}

// Snapshot returns the latest market snapshot.
func (s *Service) Snapshot() *models.MarketSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot
}

// Refresh runs one fetch/parse/merge cycle. Each feed is attempted
// independently: a failure on one never stops the others, and the failed
// feed's previous values carry forward. The only hard failure is a missing
// fetch subsystem.
func (s *Service) Refresh(ctx context.Context, includePredispatch bool) (interfaces.RefreshResult, error) {
	var result interfaces.RefreshResult

	if s.client == nil {
		return result, models.ErrSchedulerFatal
	}

	next := *s.Snapshot()
	dispatchUpdated := false

	// Dispatch: fastest feed, drives the realtime price and spike window.
	prices, file, err := s.client.DispatchPrices(ctx)
	switch {
	case err != nil:
		s.logger.Debug().Err(err).Msg("Dispatch feed unavailable this tick")
	case file != s.lastDispatchFile:
		s.logger.Info().Str("file", file).Str("was", s.lastDispatchFile).Msg("New dispatch file")
		s.lastDispatchFile = file
		result.NewData = true
		if ts, ok := common.ArchiveFileTime(file); ok {
			result.PeriodAnchor = ts
		}
		if p, ok := prices[s.region]; ok {
			next.RealtimePrice = &p
			next.LastUpdate = p.Timestamp
			next.SpikeInfo = s.spike.Observe(p.PriceMWh)
			dispatchUpdated = true
			s.logger.Info().
				Str("region", s.region).
				Float64("price_mwh", p.PriceMWh).
				Bool("spike", next.SpikeInfo.IsSpike).
				Float64("ratio", next.SpikeInfo.Ratio).
				Msg("Realtime price updated")
		}
	}

	// P5MIN: spot price for the completed interval plus the short forecast.
	actuals, forecast, file, err := s.client.P5MinPrices(ctx, s.region)
	switch {
	case err != nil:
		s.logger.Debug().Err(err).Msg("P5MIN feed unavailable this tick")
	case file != s.lastP5MinFile:
		s.logger.Info().Str("file", file).Str("was", s.lastP5MinFile).Msg("New P5MIN file")
		s.lastP5MinFile = file
		result.NewData = true
		// Dispatch timing wins when both feeds produced a new file.
		if result.PeriodAnchor.IsZero() {
			if ts, ok := common.ArchiveFileTime(file); ok {
				result.PeriodAnchor = ts
			}
		}
		if p, ok := actuals[s.region]; ok {
			next.SpotPrice = &p
			if !dispatchUpdated {
				next.LastUpdate = p.Timestamp
			}
		}
		next.P5MinForecast = forecast
		s.logger.Info().Int("periods", len(forecast)).Msg("P5MIN forecast updated")
	}

	if includePredispatch {
		series, file, err := s.client.PredispatchForecast(ctx, s.region)
		switch {
		case err != nil:
			s.logger.Debug().Err(err).Msg("Predispatch feed unavailable this tick")
		case file != s.lastPredispatchFile:
			s.logger.Info().Str("file", file).Msg("New predispatch file")
			s.lastPredispatchFile = file
			result.NewData = true
			next.PredispatchForecast = series
			s.logger.Info().Int("periods", len(series)).Msg("Predispatch forecast updated")
		}
	}

	next.Region = s.region
	next.FetchedAt = s.now()

	s.mu.Lock()
	s.snapshot = &next
	s.mu.Unlock()

	return result, nil
}

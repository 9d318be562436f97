package server

import (
	"net/http"
	"time"

	"github.com/bobmcallan/nemwatch/internal/common"
	"github.com/bobmcallan/nemwatch/internal/services/market"
)

// handleHealth handles GET /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	snapshot := s.app.MarketService.Snapshot()
	state := s.app.Poller.State()

	periodEnd := ""
	if !state.PeriodEnd.IsZero() {
		periodEnd = state.PeriodEnd.Format(time.RFC3339)
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"version": common.GetVersion(),
		"region":  s.app.MarketService.Region(),
		"uptime":  time.Since(s.app.StartupTime).Round(time.Second).String(),
		"poller": map[string]interface{}{
			"mode":         state.Mode.String(),
			"period_end":   periodEnd,
			"ticks":        state.Ticks,
			"active_polls": state.ActivePolls,
		},
		"last_update": snapshot.LastUpdate,
	})
}

// handleVersion handles GET /api/version.
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{
		"version": common.GetVersion(),
		"build":   common.GetBuild(),
		"commit":  common.GetGitCommit(),
	})
}

// handleSnapshot handles GET /api/market/snapshot: the full consumer-facing
// aggregate, full precision.
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	WriteJSON(w, http.StatusOK, s.app.MarketService.Snapshot())
}

// handlePrice handles GET /api/market/price: the freshest available price,
// dispatch preferred, spot fallback.
func (s *Server) handlePrice(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	snapshot := s.app.MarketService.Snapshot()
	price := snapshot.CurrentPrice()
	if price == nil {
		WriteError(w, http.StatusNotFound, "No price data yet, waiting for first poll")
		return
	}

	source := "p5min"
	if snapshot.RealtimePrice != nil {
		source = "dispatch"
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"region":        price.Region,
		"price_mwh":     price.PriceMWh,
		"price_cents":   price.PriceCents,
		"price_dollars": price.PriceDollars,
		"timestamp":     price.Timestamp,
		"timestamp_iso": common.NEMTimeToISO(price.Timestamp),
		"source":        source,
	})
}

// handleForecast handles GET /api/market/forecast?horizon=p5min|predispatch.
func (s *Server) handleForecast(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	snapshot := s.app.MarketService.Snapshot()

	horizon := r.URL.Query().Get("horizon")
	if horizon == "" {
		horizon = "p5min"
	}

	series := snapshot.P5MinForecast
	switch horizon {
	case "p5min":
	case "predispatch":
		series = snapshot.PredispatchForecast
	default:
		WriteError(w, http.StatusBadRequest, "horizon must be p5min or predispatch")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"region":   snapshot.Region,
		"horizon":  horizon,
		"periods":  len(series),
		"forecast": series,
	})
}

// handleSpike handles GET /api/market/spike: the rolling-window metrics
// for the most recent dispatch price.
func (s *Server) handleSpike(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	WriteJSON(w, http.StatusOK, s.app.MarketService.Snapshot().SpikeInfo)
}

// handleChart handles GET /api/market/chart: a PNG of the forecast horizon.
func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	png, err := market.RenderForecastChart(s.app.MarketService.Snapshot())
	if err != nil {
		WriteError(w, http.StatusNotFound, "Not enough forecast data to chart: "+err.Error())
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}

package market

import (
	"bytes"
	"fmt"
	"time"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/bobmcallan/nemwatch/internal/common"
	"github.com/bobmcallan/nemwatch/internal/models"
)

// RenderForecastChart renders a PNG line chart of the snapshot's forecast
// horizon. Two series: the 5-minute forecast (blue solid) and the
// predispatch forecast (gray dashed). Returns raw PNG bytes.
func RenderForecastChart(snapshot *models.MarketSnapshot) ([]byte, error) {
	p5x, p5y := seriesPoints(snapshot.P5MinForecast)
	pdx, pdy := seriesPoints(snapshot.PredispatchForecast)

	if len(p5x) < 2 && len(pdx) < 2 {
		return nil, fmt.Errorf("need at least 2 forecast points, got %d", len(p5x)+len(pdx))
	}

	var series []chart.Series
	if len(p5x) >= 2 {
		series = append(series, chart.TimeSeries{
			Name: "5-Min Forecast",
			Style: chart.Style{
				StrokeColor: drawing.ColorFromHex("2563eb"), // blue-600
				StrokeWidth: 2.5,
			},
			XValues: p5x,
			YValues: p5y,
		})
	}
	if len(pdx) >= 2 {
		series = append(series, chart.TimeSeries{
			Name: "Predispatch Forecast",
			Style: chart.Style{
				StrokeColor:     drawing.ColorFromHex("9ca3af"), // gray-400
				StrokeWidth:     1.5,
				StrokeDashArray: []float64{5.0, 3.0},
			},
			XValues: pdx,
			YValues: pdy,
		})
	}

	graph := chart.Chart{
		Title:  fmt.Sprintf("%s Price Forecast", snapshot.Region),
		Width:  900,
		Height: 400,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 10, Right: 20, Bottom: 10},
		},
		XAxis: chart.XAxis{
			TickPosition: chart.TickPositionBetweenTicks,
			ValueFormatter: func(v interface{}) string {
				if t, ok := v.(float64); ok {
					return chart.TimeFromFloat64(t).In(common.MarketTime).Format("15:04")
				}
				return ""
			},
		},
		YAxis: chart.YAxis{
			ValueFormatter: func(v interface{}) string {
				if f, ok := v.(float64); ok {
					return fmt.Sprintf("$%.0f/MWh", f)
				}
				return ""
			},
		},
		Series: series,
	}

	graph.Elements = []chart.Renderable{
		chart.LegendLeft(&graph),
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("chart render failed: %w", err)
	}
	return buf.Bytes(), nil
}

// seriesPoints converts a forecast series to chart axes, dropping points
// whose timestamps do not parse.
func seriesPoints(series models.ForecastSeries) ([]time.Time, []float64) {
	xs := make([]time.Time, 0, len(series))
	ys := make([]float64, 0, len(series))
	for _, p := range series {
		t, err := common.ParseNEMTime(p.Timestamp)
		if err != nil {
			continue
		}
		xs = append(xs, t)
		ys = append(ys, p.PriceMWh)
	}
	return xs, ys
}

// Package nemweb provides a client for the AEMO NEMWEB file archive.
//
// NEMWEB has no API: reports are published as ZIP archives of CSV tables in
// plain directory listings. The client discovers the newest file for each
// feed by filename pattern, downloads it once, and caches the parsed result
// per filename so a file is never fetched or parsed twice.
package nemweb

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/bobmcallan/nemwatch/internal/common"
	"github.com/bobmcallan/nemwatch/internal/models"
)

const (
	DefaultBaseURL         = "https://nemweb.com.au/Reports/Current"
	DefaultListTimeout     = 30 * time.Second
	DefaultDownloadTimeout = 60 * time.Second
	DefaultRateLimit       = 5 // requests per second
)

// Client implements the NemwebClient interface against the public NEMWEB
// archive.
type Client struct {
	baseURL         string
	httpClient      *http.Client
	logger          *common.Logger
	limiter         *rate.Limiter
	listTimeout     time.Duration
	downloadTimeout time.Duration

	dispatchCache    fileCache[[]DispatchPriceRow]
	p5minCache       fileCache[[]RegionSolutionRow]
	predispatchCache fileCache[[]PdRegionRow]

	closeOnce sync.Once
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithBaseURL sets the base URL
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithLogger sets the logger
func WithLogger(logger *common.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRateLimit sets the rate limit
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
	}
}

// WithTimeouts sets the directory listing and archive download timeouts.
// Listings are small and should fail fast; downloads get longer.
func WithTimeouts(list, download time.Duration) ClientOption {
	return func(c *Client) {
		c.listTimeout = list
		c.downloadTimeout = download
	}
}

// NewClient creates a new NEMWEB archive client.
// No API key is required: NEMWEB is a public file archive.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL:         DefaultBaseURL,
		httpClient:      &http.Client{},
		limiter:         rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		logger:          common.NewSilentLogger(),
		listTimeout:     DefaultListTimeout,
		downloadTimeout: DefaultDownloadTimeout,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Close releases the client's idle connections. Safe to call more than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.httpClient.CloseIdleConnections()
	})
}

// get issues a GET with the given timeout and returns the response body.
// Non-200 responses map to ErrNotFound: on NEMWEB a missing or not-yet
// published file is routine, not an outage.
func (c *Client) get(ctx context.Context, url string, timeout time.Duration) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d for %s: %w", resp.StatusCode, url, models.ErrNotFound)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return body, nil
}

// discoverLatest fetches a feed's directory listing and returns the most
// recently published matching filename.
func (c *Client) discoverLatest(ctx context.Context, f feed) (string, error) {
	listing, err := c.get(ctx, c.baseURL+f.path, c.listTimeout)
	if err != nil {
		return "", fmt.Errorf("%s listing: %w", f.name, err)
	}

	filename, ok := f.latest(string(listing))
	if !ok {
		return "", fmt.Errorf("%s: no files matched: %w", f.name, models.ErrNotFound)
	}
	return filename, nil
}

// download fetches one archive file from a feed directory.
func (c *Client) download(ctx context.Context, f feed, filename string) ([]byte, error) {
	c.logger.Info().Str("feed", f.name).Str("file", filename).Msg("Downloading new NEMWEB file")
	content, err := c.get(ctx, c.baseURL+f.path+filename, c.downloadTimeout)
	if err != nil {
		return nil, fmt.Errorf("%s download %s: %w", f.name, filename, err)
	}
	return content, nil
}

// DispatchPrices fetches the latest DispatchIS file and returns the current
// non-intervention clearing price for every region, keyed by region code,
// along with the source filename. A cached filename is served without any
// network download.
func (c *Client) DispatchPrices(ctx context.Context) (map[string]models.PricePoint, string, error) {
	filename, err := c.discoverLatest(ctx, dispatchFeed)
	if err != nil {
		return nil, "", err
	}

	rows, isNew := c.dispatchCache.Observe(filename)
	if isNew {
		content, err := c.download(ctx, dispatchFeed, filename)
		if err != nil {
			return nil, "", err
		}
		rows, err = parseDispatchPrices(content)
		if err != nil {
			c.logger.Warn().Err(err).Str("file", filename).Msg("Dispatch archive decode failed")
			rows = nil
		}
		c.dispatchCache.Store(filename, rows)
	} else {
		c.logger.Debug().Str("file", filename).Msg("Using cached dispatch data")
	}

	prices := make(map[string]models.PricePoint, len(rows))
	for _, row := range rows {
		prices[row.RegionID] = models.NewPricePoint(row.RegionID, row.RRP, row.SettlementDate)
	}
	return prices, filename, nil
}

// P5MinPrices fetches the latest P5MIN file and returns, per region, the
// price of the most recently completed interval (the minimum period id in
// the file), plus the full forecast series for the requested region sorted
// ascending and deduplicated by timestamp.
func (c *Client) P5MinPrices(ctx context.Context, region string) (map[string]models.PricePoint, models.ForecastSeries, string, error) {
	filename, err := c.discoverLatest(ctx, p5minFeed)
	if err != nil {
		return nil, nil, "", err
	}

	rows, isNew := c.p5minCache.Observe(filename)
	if isNew {
		content, err := c.download(ctx, p5minFeed, filename)
		if err != nil {
			return nil, nil, "", err
		}
		rows, err = parseRegionSolutions(content)
		if err != nil {
			c.logger.Warn().Err(err).Str("file", filename).Msg("P5MIN archive decode failed")
			rows = nil
		}
		c.p5minCache.Store(filename, rows)
	} else {
		c.logger.Debug().Str("file", filename).Msg("Using cached P5MIN data")
	}

	// Earliest period per region = the most recently completed interval.
	earliest := make(map[string]RegionSolutionRow)
	for _, row := range rows {
		if prev, ok := earliest[row.RegionID]; !ok || row.PeriodID < prev.PeriodID {
			earliest[row.RegionID] = row
		}
	}
	actuals := make(map[string]models.PricePoint, len(earliest))
	for code, row := range earliest {
		actuals[code] = models.NewPricePoint(code, row.RRP, row.PeriodID)
	}

	var forecast models.ForecastSeries
	for _, row := range rows {
		if row.RegionID == region {
			forecast = append(forecast, models.NewPricePoint(region, row.RRP, row.PeriodID))
		}
	}
	return actuals, forecast.Normalize(), filename, nil
}

// PredispatchForecast fetches the latest predispatch file and returns the
// long-horizon forecast series for the requested region, sorted ascending
// and deduplicated by timestamp.
func (c *Client) PredispatchForecast(ctx context.Context, region string) (models.ForecastSeries, string, error) {
	filename, err := c.discoverLatest(ctx, predispatchFeed)
	if err != nil {
		return nil, "", err
	}

	rows, isNew := c.predispatchCache.Observe(filename)
	if isNew {
		content, err := c.download(ctx, predispatchFeed, filename)
		if err != nil {
			return nil, "", err
		}
		rows, err = parsePdRegions(content)
		if err != nil {
			c.logger.Warn().Err(err).Str("file", filename).Msg("Predispatch archive decode failed")
			rows = nil
		}
		c.predispatchCache.Store(filename, rows)
	} else {
		c.logger.Debug().Str("file", filename).Msg("Using cached predispatch data")
	}

	var forecast models.ForecastSeries
	for _, row := range rows {
		if row.RegionID == region {
			forecast = append(forecast, models.NewPricePoint(region, row.RRP, row.DateTime))
		}
	}
	return forecast.Normalize(), filename, nil
}

// Package app wires configuration, clients, and services into a running
// application core.
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bobmcallan/nemwatch/internal/clients/nemweb"
	"github.com/bobmcallan/nemwatch/internal/common"
	"github.com/bobmcallan/nemwatch/internal/interfaces"
	"github.com/bobmcallan/nemwatch/internal/services/market"
)

// App holds all initialized services and clients. It is the shared core
// behind cmd/nemwatch-server.
type App struct {
	Config        *common.Config
	Logger        *common.Logger
	NemwebClient  interfaces.NemwebClient
	MarketService interfaces.MarketService
	Poller        *market.Poller
	StartupTime   time.Time

	closeOnce sync.Once
}

// getBinaryDir returns the directory containing the executable.
func getBinaryDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

// NewApp initializes configuration, the NEMWEB client, and the market
// service. configPath may be empty, in which case the default resolution
// logic is used.
func NewApp(configPath string) (*App, error) {
	// Check provided path, NEMWATCH_CONFIG, then binary dir, then fallback
	if configPath == "" {
		configPath = os.Getenv("NEMWATCH_CONFIG")
	}
	if configPath == "" {
		configPath = filepath.Join(getBinaryDir(), "nemwatch.toml")
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			configPath = "config/nemwatch.toml" // fallback for development
		}
	}

	config, err := common.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger := common.NewLoggerFromConfig(config.Logging)

	client := nemweb.NewClient(
		nemweb.WithBaseURL(config.Clients.Nemweb.BaseURL),
		nemweb.WithLogger(logger),
		nemweb.WithRateLimit(config.Clients.Nemweb.RateLimit),
		nemweb.WithTimeouts(config.Clients.Nemweb.GetListTimeout(), config.Clients.Nemweb.GetDownloadTimeout()),
	)

	service := market.NewService(client, config.Region, logger)

	return &App{
		Config:        config,
		Logger:        logger,
		NemwebClient:  client,
		MarketService: service,
		Poller:        market.NewPoller(service, logger),
		StartupTime:   time.Now(),
	}, nil
}

// StartPoller launches the background polling scheduler.
func (a *App) StartPoller() {
	if !a.Config.Poller.Enabled {
		a.Logger.Warn().Msg("Poller disabled by configuration")
		return
	}
	a.Poller.Start(context.Background())
}

// Close stops the poller and releases the HTTP client. Idempotent.
func (a *App) Close() {
	a.closeOnce.Do(func() {
		if a.Config.Poller.Enabled {
			a.Poller.Stop()
		}
		a.NemwebClient.Close()
	})
}

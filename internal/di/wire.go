//go:build wireinject
// +build wireinject

package di

import (
	"SigPulse/pkg/config"
	"SigPulse/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire generates the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient services
		ProvideLogger,
		ProvideMetrics,
		ProvideCache,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideKafkaConsumer,

		// Repositories
		ProvideSignalStore,
		ProvidePublisher,
		ProvideEntitlements,

		// Domain services
		ProvideConnectors,
		ProvideHub,
		ProvideTracker,
		ProvideRateWindow,

		// Use cases
		ProvideSignalProcessor,
		ProvideIngestPipeline,
		ProvideScheduler,
		ProvideKafkaSignalsHandler,
		ProvideSignalService,

		// HTTP surface
		ProvideGateway,
		ProvideWebSocketHandler,
		ProvideHTTPHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}

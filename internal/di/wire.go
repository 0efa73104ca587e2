//go:build wireinject
// +build wireinject

package di

import (
	"ZoneScan/pkg/config"
	"ZoneScan/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideCache,
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,

		// Repositories
		ProvideMarketData,
		ProvideZoneStore,
		ProvideZonePublisher,

		// Use cases
		ProvideCandleSource,
		ProvideFreshness,
		ProvideZoneDetector,
		ProvideDailyScanner,
		ProvideScanCommandHandler,
		ProvideScheduler,

		// Transport
		ProvideZonesHandler,
		ProvideHTTPServer,

		// Application server
		ProvideClosers,
		ProvideApp,
	)
	return &server.App{}, nil
}

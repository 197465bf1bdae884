//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"ZeroDTE/pkg/config"
	"ZeroDTE/pkg/server"
)

// analysisSet builds everything one analysis run needs.
var analysisSet = wire.NewSet(
	ProvideKafkaProducer,
	ProvideLogger,
	ProvideLocation,
	ProvideSession,
	ProvideMetrics,
	ProvideClickHouseClient,
	ProvideRedis,
	ProvideCache,
	ProvideTickerMap,
	ProvideHistoryStore,
	ProvidePriceTape,
	ProvideCalendar,
	ProvidePublisher,
	ProvideSnapshotBuilder,
	ProvideAnalysisRunner,
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		analysisSet,
		ProvideBarsUseCase,
		ProvideKafkaConsumer,
		ProvideAnalysisTrigger,
		ProvideTapeCollector,
		ProvideHealthChecks,
		ProvideAnalysisHandler,
		ProvideHTTPServer,
		ProvideApp,
	)
	return &server.App{}, nil
}

// InitializeDesk wires a runner for one-shot use.
func InitializeDesk(cfg *config.Config) (*Desk, error) {
	wire.Build(analysisSet, ProvideDesk)
	return &Desk{}, nil
}

package di

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	domrepo "ZeroDTE/internal/domain/repository"
	domsvc "ZeroDTE/internal/domain/service"
	"ZeroDTE/internal/handler/api"
	mid "ZeroDTE/internal/middleware"
	internalrepo "ZeroDTE/internal/repository"
	"ZeroDTE/internal/service/finnhub"
	"ZeroDTE/internal/service/guard"
	"ZeroDTE/internal/service/ratelimit"
	"ZeroDTE/internal/service/yahoo"
	"ZeroDTE/internal/services/analytics"
	"ZeroDTE/internal/usecase"
	"ZeroDTE/pkg/cache"
	pkgch "ZeroDTE/pkg/clickhouse"
	"ZeroDTE/pkg/config"
	xhttp "ZeroDTE/pkg/http"
	pkgkafka "ZeroDTE/pkg/kafka"
	applogger "ZeroDTE/pkg/logger"
	"ZeroDTE/pkg/metrics"
	"ZeroDTE/pkg/server"
)

// ProvideKafkaProducer creates the shared producer, nil when Kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.BatchTimeout),
		pkgkafka.WithWriteTimeout(cfg.Kafka.Producer.WriteTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideLogger builds the application logger. Error lines are shipped to
// the logs topic when collection is on and Kafka is up.
func ProvideLogger(cfg *config.Config, producer *pkgkafka.Producer) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:   cfg.Logging.Level,
		Format:  cfg.Logging.Format,
		Output:  cfg.Logging.Output,
		Service: "zerodte",
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	if producer != nil && cfg.Logging.Collect {
		l.AddCollector(&applogger.CollectionConfig{
			TimeInterval: cfg.Logging.CollectorInterval,
			Topic:        cfg.Kafka.Topics.Logs,
			Publisher:    producer,
		})
	}
	return l, nil
}

// ProvideLocation loads the trading timezone.
func ProvideLocation(cfg *config.Config) (*time.Location, error) {
	return cfg.Trading.Location()
}

func ProvideSession(loc *time.Location) *analytics.Session {
	return analytics.NewSession(loc)
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() domrepo.Metrics {
	return metrics.New(prometheus.DefaultRegisterer)
}

// ProvideClickHouseClient connects only for the clickhouse history backend.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if cfg.MarketData.Backend != "clickhouse" {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

// ProvideRedis connects to Redis, nil when disabled.
func ProvideRedis(cfg *config.Config) (*cache.RedisCache, error) {
	if !cfg.Redis.Enabled {
		return nil, nil
	}
	rc, err := cache.NewRedisCache(
		cache.WithRedisAddr(cfg.Redis.Addr),
		cache.WithRedisAuth(cfg.Redis.Password, cfg.Redis.DB),
		cache.WithRedisPrefix(cfg.Redis.Prefix),
	)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}
	return rc, nil
}

// ProvideCache layers a local cache over Redis, or runs memory-only.
func ProvideCache(cfg *config.Config, rc *cache.RedisCache) cache.Service {
	local := cache.NewMemoryCache(cache.WithMemoryMaxSize(256), cache.WithMemoryDefaultTTL(cfg.Calendar.CacheTTL))
	if rc == nil {
		return local
	}
	return cache.NewLayeredCache(local, rc, time.Minute)
}

func ProvideTickerMap(cfg *config.Config) (internalrepo.TickerMap, error) {
	return internalrepo.NewTickerMap(cfg.MarketData.Tickers)
}

// ProvideHistoryStore selects the bar source for market_data.backend.
func ProvideHistoryStore(cfg *config.Config, ch *pkgch.Client, l *applogger.Logger) (domrepo.HistoryStore, error) {
	if cfg.MarketData.Backend == "clickhouse" {
		if ch == nil {
			return nil, fmt.Errorf("clickhouse backend selected without a client")
		}
		return internalrepo.NewCHHistoryStore(ch.DB(), cfg.ClickHouse.Table, l)
	}
	md := cfg.MarketData
	return yahoo.New(
		yahoo.WithBaseURL(md.BaseURL),
		yahoo.WithHTTPClient(xhttp.NewClient(xhttp.WithTimeout(md.Timeout))),
		yahoo.WithGuard(guard.New(guard.Config{
			Name:                "yahoo",
			RequestsPerSecond:   md.RequestsPerSecond,
			Burst:               md.Burst,
			ConsecutiveFailures: md.BreakerFailures,
			Cooldown:            md.BreakerCooldown,
		}, l)),
		yahoo.WithLogger(l),
	), nil
}

// ProvidePriceTape reads bars through the history store and overlays fresh
// stream prints on top.
func ProvidePriceTape(cfg *config.Config, store domrepo.HistoryStore, tickers internalrepo.TickerMap, loc *time.Location, l *applogger.Logger) *usecase.PriceTape {
	source := cfg.MarketData.Backend
	quotes := internalrepo.NewHistoryQuotes(store, tickers, source, cfg.ClickHouse.Lookback, loc, l)
	return usecase.NewPriceTape(quotes, cfg.MarketData.TapeMaxAge)
}

// ProvideCalendar returns the cached event feed, nil when disabled.
func ProvideCalendar(cfg *config.Config, c cache.Service, l *applogger.Logger) domrepo.EventCalendar {
	if cfg.Calendar.Disabled {
		l.Warn("economic calendar disabled, no event gate applies")
		return nil
	}
	if cfg.Finnhub.APIKey == "" {
		l.Warn("finnhub api key missing, calendar requests will fail open")
	}
	g := guard.New(guard.Config{Name: "finnhub-calendar", RequestsPerSecond: 1, Burst: 2}, l)
	feed := finnhub.NewCalendar(
		cfg.Calendar.BaseURL,
		cfg.Finnhub.APIKey,
		xhttp.NewClient(xhttp.WithTimeout(cfg.Calendar.Timeout)),
		g, l,
	)
	return internalrepo.NewCachedCalendar(feed, c, cfg.Calendar.CacheTTL, l)
}

// ProvidePublisher publishes finished analyses to Kafka when enabled.
func ProvidePublisher(cfg *config.Config, producer *pkgkafka.Producer) domrepo.AnalysisPublisher {
	if producer == nil {
		return internalrepo.NopPublisher{}
	}
	return internalrepo.NewKafkaAnalysisPublisher(producer, cfg.Kafka.Topics.Results)
}

func ProvideSnapshotBuilder(tape *usecase.PriceTape, m domrepo.Metrics, l *applogger.Logger) *usecase.SnapshotBuilder {
	return usecase.NewSnapshotBuilder(tape, m, l)
}

// ProvideAnalysisRunner wires the three analytics components around the
// snapshot and calendar collaborators.
func ProvideAnalysisRunner(
	cfg *config.Config,
	snapshots *usecase.SnapshotBuilder,
	calendar domrepo.EventCalendar,
	session *analytics.Session,
	pub domrepo.AnalysisPublisher,
	m domrepo.Metrics,
	l *applogger.Logger,
) *usecase.AnalysisRunner {
	var riskOpts []analytics.EventRiskOption
	if len(cfg.Trading.EventKeywords) > 0 {
		riskOpts = append(riskOpts, analytics.WithKeywords(cfg.Trading.EventKeywords))
	}
	return usecase.NewAnalysisRunner(
		snapshots,
		calendar,
		analytics.NewEventRiskEvaluator(session, riskOpts...),
		analytics.NewRegimeClassifier(session),
		analytics.NewLevelEngine(),
		session,
		m,
		domsvc.LevelParams{Capital: cfg.Trading.Capital, SigmaMultiplier: cfg.Trading.SigmaMultiplier},
		usecase.WithPublisher(pub),
		usecase.WithRunnerLogger(l),
	)
}

func ProvideBarsUseCase(store domrepo.HistoryStore, tickers internalrepo.TickerMap) *usecase.BarsUseCase {
	return usecase.NewBarsUseCase(store, tickers.Ticker)
}

// ProvideKafkaConsumer creates the request consumer, nil when Kafka is disabled.
func ProvideKafkaConsumer(cfg *config.Config, l *applogger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	c := cfg.Kafka.Consumer
	consumer, err := pkgkafka.NewConsumer(l,
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(c.GroupID),
		pkgkafka.WithConsumerWorkers(c.Workers),
		pkgkafka.WithConsumerBufferSize(c.BufferSize),
		pkgkafka.WithConsumerRetry(c.RetryMax, c.BackoffMin, c.BackoffMax),
		pkgkafka.WithConsumerFetch(c.MinBytes, c.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.WithConsumerHook(pkgkafka.TraceHook)
	return consumer, nil
}

func ProvideAnalysisTrigger(cfg *config.Config, runner *usecase.AnalysisRunner, m domrepo.Metrics, l *applogger.Logger) *usecase.AnalysisTrigger {
	return usecase.NewAnalysisTrigger(cfg.Kafka.Topics.Requests, runner, m, l)
}

// ProvideTapeCollector builds the live stream path into the price tape,
// nil when streaming is off.
func ProvideTapeCollector(cfg *config.Config, tape *usecase.PriceTape, m domrepo.Metrics, l *applogger.Logger) (*usecase.TapeCollector, error) {
	if !cfg.Finnhub.StreamEnabled {
		return nil, nil
	}
	f := cfg.Finnhub
	stream, err := finnhub.NewStream(f.APIKey, f.WebSocketURL, f.StreamSymbols, f.ReconnectDelay, f.PingInterval, l)
	if err != nil {
		return nil, fmt.Errorf("finnhub stream: %w", err)
	}
	pipe := mid.NewTickPipeline(tape, m)
	return usecase.NewTapeCollector(stream, pipe, m, l), nil
}

// ProvideHealthChecks checks the backing stores that are in use.
func ProvideHealthChecks(ch *pkgch.Client, rc *cache.RedisCache) map[string]api.HealthCheck {
	checks := map[string]api.HealthCheck{}
	if ch != nil {
		checks["clickhouse"] = ch.Health
	}
	if rc != nil {
		checks["redis"] = rc.Ping
	}
	return checks
}

func ProvideAnalysisHandler(
	cfg *config.Config,
	l *applogger.Logger,
	runner *usecase.AnalysisRunner,
	bars *usecase.BarsUseCase,
	loc *time.Location,
	checks map[string]api.HealthCheck,
) *api.AnalysisEchoHandler {
	return api.NewAnalysisEchoHandler(l, runner, bars, ratelimit.PerMinute(cfg.Server.RequestsPerMinute), loc, checks)
}

// ProvideHTTPServer builds the echo server with every handler registered.
func ProvideHTTPServer(cfg *config.Config, l *applogger.Logger, h *api.AnalysisEchoHandler) *xhttp.Server {
	opts := []xhttp.ServerOption{
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithLogger(l),
	}
	if cfg.Metrics.Enabled {
		opts = append(opts, xhttp.WithMetricsPath(cfg.Metrics.Path))
	}
	return xhttp.NewServer([]xhttp.Handler{h}, opts...)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	httpServer *xhttp.Server,
	collector *usecase.TapeCollector,
	consumer *pkgkafka.Consumer,
	trigger *usecase.AnalysisTrigger,
	pub domrepo.AnalysisPublisher,
	c cache.Service,
	ch *pkgch.Client,
) *server.App {
	app := server.New(cfg, l, httpServer)
	if collector != nil {
		app.WithCollector(collector)
	}
	if consumer != nil {
		consumer.RegisterHandler(trigger)
		app.WithConsumer(consumer)
	}
	app.OnClose("publisher", pub.Close)
	app.OnClose("cache", c.Close)
	if ch != nil {
		app.OnClose("clickhouse", ch.Close)
	}
	return app
}

// Desk is a runner plus the clients it holds, for one-shot commands.
type Desk struct {
	Runner   *usecase.AnalysisRunner
	Location *time.Location
	log      *applogger.Logger
	closers  []func() error
}

func ProvideDesk(
	runner *usecase.AnalysisRunner,
	loc *time.Location,
	l *applogger.Logger,
	pub domrepo.AnalysisPublisher,
	c cache.Service,
	ch *pkgch.Client,
) *Desk {
	d := &Desk{Runner: runner, Location: loc, log: l, closers: []func() error{pub.Close, c.Close}}
	if ch != nil {
		d.closers = append(d.closers, ch.Close)
	}
	return d
}

// Close flushes logs and releases every client.
func (d *Desk) Close() error {
	d.log.RemoveCollector()
	var errs []error
	for _, fn := range d.closers {
		errs = append(errs, fn())
	}
	return errors.Join(errs...)
}

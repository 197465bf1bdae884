package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"ZeroDTE/internal/usecase"
	"ZeroDTE/pkg/config"
	xhttp "ZeroDTE/pkg/http"
	pkgkafka "ZeroDTE/pkg/kafka"
	applogger "ZeroDTE/pkg/logger"
)

type closer struct {
	name string
	fn   func() error
}

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	httpServer *xhttp.Server
	collector  *usecase.TapeCollector
	consumer   *pkgkafka.Consumer
	closers    []closer
}

// New creates an App around the HTTP server; the stream collector and the
// request consumer are optional.
func New(cfg *config.Config, l *applogger.Logger, httpServer *xhttp.Server) *App {
	if l == nil {
		l = applogger.Nop()
	}
	return &App{cfg: cfg, log: l, httpServer: httpServer}
}

func (a *App) WithCollector(c *usecase.TapeCollector) { a.collector = c }

func (a *App) WithConsumer(c *pkgkafka.Consumer) { a.consumer = c }

// OnClose registers a resource released at shutdown, in registration order.
func (a *App) OnClose(name string, fn func() error) {
	a.closers = append(a.closers, closer{name: name, fn: fn})
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.run(ctx)
}

func (a *App) run(ctx context.Context) error {
	// the live tape only refines prices; history still serves without it
	if a.collector != nil {
		if err := a.collector.Start(ctx); err != nil {
			a.log.Warn("tape collector not started", applogger.Error(err))
		} else {
			a.log.Info("tape collector started", applogger.Strings("symbols", a.cfg.Finnhub.StreamSymbols))
		}
	}

	if a.consumer != nil {
		if err := a.consumer.Start(); err != nil {
			a.log.Error("kafka consumer start error", applogger.Error(err))
			return a.abort(err)
		}
		a.log.Info("kafka consumer started", applogger.String("topic", a.cfg.Kafka.Topics.Requests))
	}

	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return a.abort(err)
	}
	a.log.Info("desk ready",
		applogger.String("env", a.cfg.Environment),
		applogger.String("backend", a.cfg.MarketData.Backend),
		applogger.String("timezone", a.cfg.Trading.Timezone),
		applogger.Float64("capital", a.cfg.Trading.Capital),
		applogger.Float64("sigma", a.cfg.Trading.SigmaMultiplier),
	)

	<-ctx.Done()
	a.log.Info("shutdown signal received")
	return a.shutdown()
}

// abort releases whatever already started before reporting err.
func (a *App) abort(err error) error {
	_ = a.shutdown()
	return err
}

// shutdown stops intake first, then releases shared clients.
func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := a.httpServer.Stop(ctx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}
	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}
	if a.collector != nil {
		if err := a.collector.Shutdown(ctx); err != nil {
			a.log.Warn("tape collector stop error", applogger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
	// flush aggregated error logs while the producer is still open
	a.log.RemoveCollector()
	for _, c := range a.closers {
		if err := c.fn(); err != nil {
			a.log.Warn("close error", applogger.String("resource", c.name), applogger.Error(err))
		}
	}
	return nil
}

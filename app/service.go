// Package app wires the configuration into a running service: MQTT intake,
// the session engine, statistics, persistence and the HTTP endpoints.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/kilianp07/chargetrack/api/sessions"
	"github.com/kilianp07/chargetrack/config"
	coremetrics "github.com/kilianp07/chargetrack/core/metrics"
	"github.com/kilianp07/chargetrack/core/pricing"
	"github.com/kilianp07/chargetrack/core/session"
	"github.com/kilianp07/chargetrack/core/sessionlog"
	"github.com/kilianp07/chargetrack/core/stats"
	"github.com/kilianp07/chargetrack/infra/logger"
	"github.com/kilianp07/chargetrack/infra/metrics"
	"github.com/kilianp07/chargetrack/infra/mqtt"
	"github.com/kilianp07/chargetrack/infra/store"
	"github.com/kilianp07/chargetrack/internal/eventbus"
)

// Service orchestrates the session engine and its surroundings.
type Service struct {
	Engine *session.Engine
	Stats  *stats.Aggregator

	cfg     *config.Config
	log     logger.Logger
	bus     *eventbus.Bus[session.Event]
	client  *mqtt.Client
	history sessionlog.Store
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	logg := logger.New("service")

	client, err := mqtt.NewClient(cfg.MQTT)
	if err != nil {
		return nil, fmt.Errorf("mqtt client: %w", err)
	}

	var sinks []coremetrics.SessionSink
	if cfg.Metrics.PrometheusEnabled {
		sink, err := metrics.NewPromSink(cfg.Metrics)
		if err != nil {
			return nil, fmt.Errorf("prom sink: %w", err)
		}
		sinks = append(sinks, sink)
	}
	if cfg.Metrics.InfluxEnabled {
		sink := metrics.NewInfluxSinkWithFallback(
			cfg.Metrics.InfluxURL, cfg.Metrics.InfluxToken, cfg.Metrics.InfluxOrg, cfg.Metrics.InfluxBucket)
		sinks = append(sinks, sink)
	}
	var sink coremetrics.SessionSink
	if len(sinks) == 1 {
		sink = sinks[0]
	} else if len(sinks) > 1 {
		sink = metrics.NewMultiSink(sinks...)
	}

	snaps, err := store.NewFileSnapshotStore(cfg.Store.SnapshotDir)
	if err != nil {
		return nil, err
	}
	statsStore, err := store.NewFileStatsStore(cfg.Store.StatsPath)
	if err != nil {
		return nil, err
	}
	history, err := sessionlog.NewJSONLStore(cfg.Store.HistoryPath)
	if err != nil {
		return nil, fmt.Errorf("session history: %w", err)
	}

	bus := eventbus.New[session.Event]()
	engine := session.New(
		cfg.Session,
		cfg.Identity.Resolver(),
		pricing.NewCalculator(cfg.Pricing),
		snaps,
		bus,
		sink,
		logger.New("engine"),
	)
	agg := stats.New(cfg.Stats, statsStore, logger.New("stats"))

	return &Service{
		Engine:  engine,
		Stats:   agg,
		cfg:     cfg,
		log:     logg,
		bus:     bus,
		client:  client,
		history: history,
	}, nil
}

// Run starts the service and blocks until the context is cancelled or the
// reading stream closes.
func (s *Service) Run(ctx context.Context) error {
	s.Engine.Restore(ctx)
	s.Stats.Restore(ctx)

	go s.Stats.Run(ctx, s.bus.Subscribe())
	go s.appendHistory(ctx, s.bus.Subscribe())
	go s.client.Forward(ctx, s.bus.Subscribe())

	if s.cfg.Metrics.PrometheusEnabled {
		go func() {
			if err := metrics.StartPromServer(ctx, s.cfg.Metrics.PrometheusPort, s.log); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}
	if s.cfg.API.Enabled {
		go s.serveAPI(ctx)
	}

	return s.Engine.Run(ctx, s.client.Readings(), s.client.Spots())
}

func (s *Service) appendHistory(ctx context.Context, events <-chan session.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.Kind != session.EventCompleted {
				continue
			}
			if err := s.history.Append(ctx, ev.Session); err != nil {
				s.log.Errorf("history append: %v", err)
			}
		}
	}
}

func (s *Service) serveAPI(ctx context.Context) {
	srv := &http.Server{
		Addr:    s.cfg.API.Addr,
		Handler: sessions.NewMux(s.Engine, s.Stats, s.history),
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Errorf("api server shutdown: %v", err)
		}
		cancel()
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		s.log.Errorf("api server: %v", err)
	}
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	s.client.Close()
	s.bus.Close()
	return s.history.Close()
}

package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kilianp07/bessopt/config"
	coremetrics "github.com/kilianp07/bessopt/core/metrics"
	coremon "github.com/kilianp07/bessopt/core/monitoring"
	"github.com/kilianp07/bessopt/core/optimizer"
	"github.com/kilianp07/bessopt/core/runlog"
	"github.com/kilianp07/bessopt/infra/logger"
	"github.com/kilianp07/bessopt/infra/market"
	"github.com/kilianp07/bessopt/infra/metrics"
	"github.com/kilianp07/bessopt/infra/monitoring"
	"github.com/kilianp07/bessopt/infra/mqtt"
	_ "github.com/kilianp07/bessopt/infra/solver"
)

// Service wires the optimizer to its metrics, run log, monitor and outputs.
type Service struct {
	Config    *config.Config
	Optimizer *optimizer.Optimizer
	Pipeline  *Pipeline
	Store     runlog.Store
	sink      coremetrics.MetricsSink
	publisher *mqtt.SchedulePublisher
	log       logger.Logger
}

// New creates a Service from the configuration. The MQTT publisher is only
// connected when withPublisher is set and a broker is configured.
func New(cfg *config.Config, withPublisher bool) (*Service, error) {
	logg := logger.New("service")

	mon, err := monitoring.NewSentryMonitor(cfg.Sentry)
	if err != nil {
		return nil, fmt.Errorf("monitoring: %w", err)
	}
	coremon.Init(mon)

	sink, err := coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
	if err != nil {
		return nil, fmt.Errorf("metrics sink: %w", err)
	}
	store, err := runlog.Open(cfg.RunLog)
	if err != nil {
		return nil, fmt.Errorf("run log: %w", err)
	}

	opt := optimizer.New(cfg.Solver, logger.New("optimizer"),
		optimizer.WithMetrics(sink),
		optimizer.WithRunLog(store),
	)
	svc := &Service{Config: cfg, Optimizer: opt, Store: store, sink: sink, log: logg}

	popts := []PipelineOption{}
	if cfg.Market.Source == "smard" {
		client, err := NewSMARDClient(cfg.Market)
		if err != nil {
			_ = svc.Close()
			return nil, fmt.Errorf("smard client: %w", err)
		}
		popts = append(popts, WithFetcher(client))
	}
	if withPublisher && cfg.MQTTEnabled() {
		pub, err := mqtt.NewSchedulePublisher(cfg.MQTT)
		if err != nil {
			_ = svc.Close()
			return nil, fmt.Errorf("mqtt publisher: %w", err)
		}
		svc.publisher = pub
		popts = append(popts, WithPublisher(pub))
	}
	svc.Pipeline = NewPipeline(cfg, opt, popts...)
	return svc, nil
}

// NewSMARDClient builds the market client described by cfg.
func NewSMARDClient(cfg config.MarketConfig) (*market.SMARDClient, error) {
	opts := []market.Option{
		market.WithRegion(cfg.SMARD.Region),
		market.WithLocation(cfg.Location()),
		market.WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.SMARD.TimeoutSeconds) * time.Second}),
	}
	if cfg.SMARD.BaseURL != "" {
		opts = append(opts, market.WithBaseURL(cfg.SMARD.BaseURL))
	}
	return market.NewSMARDClient(opts...)
}

// Serve runs the HTTP API, and the Prometheus endpoint when configured,
// until ctx is canceled.
func (s *Service) Serve(ctx context.Context) error {
	if addr := s.Config.Metrics.PrometheusAddr; addr != "" {
		go func() {
			if err := metrics.StartPromServer(ctx, addr, prometheus.DefaultGatherer); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}
	srv := NewServer(s.Optimizer, s.Store, s.Config.Server.MaxSteps, s.Config.Server.AllowedOrigins)
	return srv.ListenAndServe(ctx, s.Config.Server.Addr)
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	var errs []error
	if s.publisher != nil {
		s.publisher.Close()
	}
	if c, ok := s.sink.(interface{ Close() }); ok {
		c.Close()
	}
	if s.Store != nil {
		errs = append(errs, s.Store.Close())
	}
	coremon.Flush(2 * time.Second)
	return errors.Join(errs...)
}

package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	api "github.com/JamesWheadon/Carbon-Intensity/api/scheduler"
	"github.com/JamesWheadon/Carbon-Intensity/config"
	"github.com/JamesWheadon/Carbon-Intensity/core/advisor"
	"github.com/JamesWheadon/Carbon-Intensity/core/decisionlog"
	coremetrics "github.com/JamesWheadon/Carbon-Intensity/core/metrics"
	"github.com/JamesWheadon/Carbon-Intensity/core/monitoring"
	"github.com/JamesWheadon/Carbon-Intensity/core/savings"
	"github.com/JamesWheadon/Carbon-Intensity/core/scheduler"
	"github.com/JamesWheadon/Carbon-Intensity/infra/kpi"
	"github.com/JamesWheadon/Carbon-Intensity/infra/logger"
	"github.com/JamesWheadon/Carbon-Intensity/infra/metrics"
	inframon "github.com/JamesWheadon/Carbon-Intensity/infra/monitoring"
	"github.com/JamesWheadon/Carbon-Intensity/infra/mqtt"
	"github.com/JamesWheadon/Carbon-Intensity/infra/nationalgrid"
	"github.com/JamesWheadon/Carbon-Intensity/infra/snapshot"
	"github.com/JamesWheadon/Carbon-Intensity/internal/eventbus"
)

// Service wires the advisor to its stores, the HTTP API and the forecast
// feeds.
type Service struct {
	Advisor *advisor.Advisor
	cfg     *config.Config
	bus     eventbus.EventBus
	sink    coremetrics.MetricsSink
	log     logger.Logger
	server  *http.Server
	mqtt    *mqtt.PahoClient

	closers []func() error
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	logg := logger.New("service")
	mon, err := inframon.NewSentryMonitor(cfg.Sentry)
	if err != nil {
		return nil, fmt.Errorf("sentry: %w", err)
	}
	monitoring.Init(mon)

	s, err := scheduler.New(cfg.Scheduler, scheduler.WithLogger(logger.New("scheduler")))
	if err != nil {
		return nil, fmt.Errorf("scheduler: %w", err)
	}
	svc := &Service{cfg: cfg, log: logg, bus: eventbus.New()}

	dlog, err := decisionlog.Open(decisionlog.Options{
		Backend:    cfg.DecisionLog.Backend,
		Path:       cfg.DecisionLog.Path,
		MaxSizeMB:  cfg.DecisionLog.MaxSizeMB,
		MaxBackups: cfg.DecisionLog.MaxBackups,
		MaxAgeDays: cfg.DecisionLog.MaxAgeDays,
	})
	if err != nil {
		return nil, fmt.Errorf("decision log: %w", err)
	}
	svc.closers = append(svc.closers, dlog.Close)

	kpis, err := openSavings(cfg.Savings)
	if err != nil {
		_ = svc.Close()
		return nil, fmt.Errorf("savings store: %w", err)
	}
	if c, ok := kpis.(interface{ Close() error }); ok {
		svc.closers = append(svc.closers, c.Close)
	}

	snap := snapshot.New(cfg.Snapshot, logger.New("snapshot"))
	if c, ok := snap.(interface{ Close() error }); ok {
		svc.closers = append(svc.closers, c.Close)
	}

	sink, err := coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
	if err != nil {
		_ = svc.Close()
		return nil, fmt.Errorf("metrics sink: %w", err)
	}
	if len(cfg.Metrics.Sinks) == 0 && cfg.Metrics.PrometheusAddr != "" {
		if sink, err = metrics.NewPromSink(); err != nil {
			_ = svc.Close()
			return nil, fmt.Errorf("prom sink: %w", err)
		}
	}
	svc.sink = sink

	opts := []advisor.Option{
		advisor.WithBus(svc.bus),
		advisor.WithDecisionLog(dlog),
		advisor.WithSavings(kpis),
		advisor.WithLogger(logger.New("advisor")),
		advisor.WithTrainOnDemand(cfg.Forecast.TrainOnDemand),
	}
	if snap != nil {
		opts = append(opts, advisor.WithSnapshot(snap))
	}
	svc.Advisor = advisor.New(scheduler.NewSynchronized(s), opts...)

	router := api.NewRouter(svc.Advisor, api.Options{
		Token:   cfg.HTTP.Token,
		PowerKW: cfg.Savings.PowerKW,
		Metrics: api.NewHTTPMetrics(prometheus.DefaultRegisterer),
		Logger:  logger.New("api"),
	})
	svc.server = &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      otelhttp.NewHandler(router, "carbon-scheduler"),
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSeconds) * time.Second,
	}
	return svc, nil
}

func openSavings(cfg config.SavingsConfig) (savings.Store, error) {
	if cfg.Backend == "sqlite" {
		return kpi.NewSQLiteStore(cfg.Path)
	}
	return savings.NewMemoryStore(), nil
}

// Run starts the feeds and the HTTP server and blocks until ctx is
// cancelled or the server fails.
func (s *Service) Run(ctx context.Context) error {
	defer monitoring.Recover()
	ctx, stop := context.WithCancel(ctx)
	collected := metrics.StartEventCollector(ctx, s.bus, s.sink)
	defer func() {
		stop()
		<-collected
	}()

	if addr := s.cfg.Metrics.PrometheusAddr; addr != "" {
		go func() {
			if err := metrics.StartPromServer(ctx, addr, prometheus.DefaultGatherer); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}

	restored, err := s.Advisor.Restore(ctx, s.cfg.Forecast.Buckets())
	if err != nil {
		s.log.Warnf("snapshot restore: %v", err)
	} else if restored {
		s.log.Infof("forecast restored from snapshot")
	}

	if s.cfg.Forecast.Enabled {
		client := nationalgrid.NewClient(s.cfg.Forecast, s.cfg.Scheduler.CoarseSlots)
		poller := nationalgrid.NewPoller(s.cfg.Forecast, s.Advisor, client, logger.New("forecast-poller"))
		go func() {
			if err := poller.Start(ctx); err != nil {
				s.log.Errorf("forecast poller: %v", err)
			}
		}()
	}

	if s.cfg.MQTT.Enabled {
		cli, err := mqtt.NewPahoClient(s.cfg.MQTT, s.Advisor)
		if err != nil {
			return fmt.Errorf("mqtt client: %w", err)
		}
		s.mqtt = cli
	}

	errc := make(chan error, 1)
	go func() {
		s.log.Infof("listening on %s", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(s.cfg.HTTP.ShutdownTimeoutSeconds)*time.Second)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return <-errc
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	if s.mqtt != nil {
		s.mqtt.Disconnect()
	}
	if s.bus != nil {
		s.bus.Close()
	}
	var errs []error
	for _, c := range s.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	monitoring.Flush(2 * time.Second)
	return errors.Join(errs...)
}

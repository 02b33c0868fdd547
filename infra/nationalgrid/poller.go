package nationalgrid

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/JamesWheadon/Carbon-Intensity/config"
	"github.com/JamesWheadon/Carbon-Intensity/core/events"
	"github.com/JamesWheadon/Carbon-Intensity/core/forecast"
	"github.com/JamesWheadon/Carbon-Intensity/core/logger"
	"github.com/JamesWheadon/Carbon-Intensity/core/model"
	"github.com/JamesWheadon/Carbon-Intensity/core/monitoring"
	"github.com/JamesWheadon/Carbon-Intensity/core/scheduler"
)

// Refresher installs a fresh forecast when the loaded one is stale.
type Refresher interface {
	Refresh(ctx context.Context, p forecast.Provider, source string, buckets []model.DurationBucket) (bool, error)
}

// Poller keeps the scheduler forecast current.
type Poller struct {
	target   Refresher
	provider forecast.Provider
	buckets  []model.DurationBucket
	interval time.Duration
	retries  uint64
	log      logger.Logger
}

// NewPoller polls provider every cfg.PollIntervalSeconds and trains the
// configured durations after each install.
func NewPoller(cfg config.ForecastConfig, target Refresher, provider forecast.Provider, log logger.Logger) *Poller {
	if cfg.PollIntervalSeconds <= 0 {
		cfg.PollIntervalSeconds = 300
	}
	if log == nil {
		log = logger.Nop{}
	}
	return &Poller{
		target:   target,
		provider: provider,
		buckets:  cfg.Buckets(),
		interval: time.Duration(cfg.PollIntervalSeconds) * time.Second,
		retries:  uint64(cfg.MaxRetries),
		log:      log,
	}
}

// Start polls once immediately, then on every tick until ctx is done.
func (p *Poller) Start(ctx context.Context) error {
	p.Poll(ctx)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			p.Poll(ctx)
		}
	}
}

// Poll runs a single refresh with retries. Failures are logged and reported.
func (p *Poller) Poll(ctx context.Context) {
	var installed bool
	op := func() error {
		var err error
		installed, err = p.target.Refresh(ctx, p.provider, events.SourcePoller, p.buckets)
		if scheduler.IsValidation(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), p.retries), ctx)
	notify := func(err error, wait time.Duration) {
		p.log.Warnf("forecast refresh failed, retrying in %s: %v", wait, err)
	}
	if err := backoff.RetryNotify(op, bo, notify); err != nil {
		p.log.Errorf("poll error: %v", err)
		monitoring.CaptureException(err, map[string]string{"component": "forecast-poller"})
		return
	}
	if installed {
		p.log.Infof("forecast refreshed, trained %d durations", len(p.buckets))
	}
}

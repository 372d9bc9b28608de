// Package checker runs the fetch, accumulate, decide, notify pipeline.
package checker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"snow-alert/internal/notify"
	"snow-alert/internal/snowfall"
	"snow-alert/internal/weather"
)

type Checker struct {
	provider weather.Provider
	sender   notify.Sender
	log      *zap.SugaredLogger

	threshold  float64
	recipients []string
	fallback   string
	startHour  int
	span       time.Duration
	interval   time.Duration
	enabled    bool

	mu             sync.RWMutex
	latestResult   *Result
	latestForecast *weather.Forecast
	isRunning      bool
}

type Config struct {
	Provider          weather.Provider
	Sender            notify.Sender
	Log               *zap.SugaredLogger
	ThresholdMM       float64
	Recipients        []string
	FallbackRecipient string
	WindowStartHour   int
	WindowSpan        time.Duration
	Interval          time.Duration
	Enabled           bool
}

// Result is the outcome of one check run. A run that could not fetch the
// forecast or could not deliver an alert still produces a Result; only
// configuration problems abort before a run starts.
type Result struct {
	CheckedAt   time.Time `json:"checked_at"`
	WindowStart time.Time `json:"window_start"`
	WindowEnd   time.Time `json:"window_end"`
	ThresholdMM float64   `json:"threshold_mm"`
	SnowMM      float64   `json:"snow_mm"`
	Notified    bool      `json:"notified"`
	FetchFailed bool      `json:"fetch_failed"`
	Error       string    `json:"error,omitempty"`
}

func New(cfg Config) *Checker {
	return &Checker{
		provider:   cfg.Provider,
		sender:     cfg.Sender,
		log:        cfg.Log,
		threshold:  cfg.ThresholdMM,
		recipients: cfg.Recipients,
		fallback:   cfg.FallbackRecipient,
		startHour:  cfg.WindowStartHour,
		span:       cfg.WindowSpan,
		interval:   cfg.Interval,
		enabled:    cfg.Enabled,
	}
}

// Start runs checks on the configured interval until ctx is canceled. The
// first check fires immediately.
func (c *Checker) Start(ctx context.Context) error {
	if !c.enabled {
		c.log.Info("checker is disabled")
		return nil
	}

	c.mu.Lock()
	c.isRunning = true
	c.mu.Unlock()

	c.log.Infof("starting checker with interval %s", c.interval)

	c.RunOnce(ctx)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.log.Info("checker stopped")
			c.mu.Lock()
			c.isRunning = false
			c.mu.Unlock()
			return nil
		case <-ticker.C:
			c.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single check. Fetch and delivery failures are logged
// and folded into the Result rather than returned, so a scheduled run never
// crashes on them.
func (c *Checker) RunOnce(ctx context.Context) *Result {
	now := time.Now()
	win := snowfall.Overnight(now, c.startHour, c.span)
	res := &Result{
		CheckedAt:   now,
		WindowStart: win.Start,
		WindowEnd:   win.End,
		ThresholdMM: c.threshold,
	}

	forecast, err := c.provider.Forecast(ctx)
	if err != nil {
		c.log.Errorf("forecast fetch failed: %v", err)
		res.FetchFailed = true
		res.Error = err.Error()
		c.sendFetchFailureAlert(err)
		c.store(res, nil)
		return res
	}

	res.SnowMM = snowfall.Accumulate(forecast.Samples, win)

	if snowfall.ShouldNotify(res.SnowMM, c.threshold) {
		msg := notify.Message{
			Subject: "Snow alert",
			Body: fmt.Sprintf("%.1f mm of snow expected between %s and %s.",
				res.SnowMM,
				win.Start.Format("Mon 15:04"),
				win.End.Format("Mon 15:04")),
			Recipients: c.recipients,
		}
		if err := c.sender.Send(msg); err != nil {
			c.logSendFailure(err)
			res.Error = err.Error()
		} else {
			res.Notified = true
			c.log.Infof("alert sent to %d recipient(s): %.1f mm expected, threshold %.1f mm",
				len(c.recipients), res.SnowMM, c.threshold)
		}
	} else {
		c.log.Infof("no alert: %.1f mm expected, threshold %.1f mm", res.SnowMM, c.threshold)
	}

	c.store(res, forecast)
	return res
}

// sendFetchFailureAlert makes a best-effort attempt to tell someone the
// check itself broke. Its own failure is logged and not propagated.
func (c *Checker) sendFetchFailureAlert(cause error) {
	rcpt := c.fallback
	if rcpt == "" && len(c.recipients) > 0 {
		rcpt = c.recipients[0]
	}
	if rcpt == "" {
		return
	}

	msg := notify.Message{
		Subject:    "Snow check failed",
		Body:       fmt.Sprintf("The weather check failed: %v", cause),
		Recipients: []string{rcpt},
	}
	if err := c.sender.Send(msg); err != nil {
		c.logSendFailure(err)
	}
}

func (c *Checker) logSendFailure(err error) {
	var serr *notify.SendError
	if errors.As(err, &serr) && serr.Kind == notify.KindAuth {
		c.log.Errorf("mail relay rejected our credentials: %v", err)
		return
	}
	c.log.Errorf("mail send failed: %v", err)
}

func (c *Checker) store(res *Result, forecast *weather.Forecast) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.latestResult = res
	if forecast != nil {
		c.latestForecast = forecast
	}
}

func (c *Checker) LatestResult() *Result {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.latestResult
}

func (c *Checker) LatestForecast() *weather.Forecast {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.latestForecast
}

func (c *Checker) IsRunning() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.isRunning
}

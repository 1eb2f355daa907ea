package keepalive

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"earningbot/internal/logger"

	"github.com/sethvargo/go-retry"
)

// Pinger periodically fetches a URL so free-tier hosting does not put
// the process to sleep. It shares no state with the rest of the app.
type Pinger struct {
	url      string
	interval time.Duration
	hc       *http.Client
}

func New(url string, interval time.Duration) *Pinger {
	return &Pinger{
		url:      url,
		interval: interval,
		hc:       &http.Client{Timeout: 10 * time.Second},
	}
}

// Run pings until ctx is cancelled. A no-op when no URL is configured.
func (p *Pinger) Run(ctx context.Context) {
	if p.url == "" {
		return
	}

	log := logger.With("component", "keepalive")
	log.Info("keepalive loop started", "url", p.url, "interval", p.interval)

	// Give the rest of the app a moment to start serving.
	select {
	case <-ctx.Done():
		return
	case <-time.After(5 * time.Second):
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		if err := p.pingOnce(ctx); err != nil {
			log.Warn("keepalive ping failed", "err", err)
		} else {
			log.Debug("keepalive ping ok")
		}

		select {
		case <-ctx.Done():
			log.Info("keepalive loop stopped")
			return
		case <-ticker.C:
		}
	}
}

func (p *Pinger) pingOnce(ctx context.Context) error {
	backoff := retry.WithMaxRetries(3, retry.NewExponential(time.Second))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
		if err != nil {
			return err
		}
		resp, err := p.hc.Do(req)
		if err != nil {
			return retry.RetryableError(err)
		}
		resp.Body.Close()
		if resp.StatusCode/100 != 2 {
			return retry.RetryableError(fmt.Errorf("status %d", resp.StatusCode))
		}
		return nil
	})
}

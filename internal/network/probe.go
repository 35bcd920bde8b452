package network

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ProbeConfig configures a ProbeSource.
type ProbeConfig struct {
	URL        string
	Interval   time.Duration
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// ProbeSource polls a URL and reports the backend reachable whenever a response
// of any status arrives. Only the first result and later changes are published.
type ProbeSource struct {
	url      string
	interval time.Duration
	client   *http.Client
	logger   *zap.Logger
	subs     subscribers

	mu   sync.Mutex
	last *bool
}

// NewProbeSource constructs a ProbeSource.
func NewProbeSource(cfg ProbeConfig) *ProbeSource {
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 3 * time.Second
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &ProbeSource{
		url:      cfg.URL,
		interval: cfg.Interval,
		client:   cfg.HTTPClient,
		logger:   cfg.Logger,
	}
}

// Subscribe implements Source.
func (p *ProbeSource) Subscribe(fn func(bool)) func() {
	return p.subs.add(fn)
}

// Run probes immediately and then on every interval until ctx is done.
func (p *ProbeSource) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.Probe(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Probe(ctx)
		}
	}
}

// Probe performs one reachability check, publishes it when it differs from the
// previous result and returns it.
func (p *ProbeSource) Probe(ctx context.Context) bool {
	reachable := p.check(ctx)
	if ctx.Err() != nil {
		return reachable
	}

	p.mu.Lock()
	changed := p.last == nil || *p.last != reachable
	p.last = &reachable
	p.mu.Unlock()

	if changed {
		p.subs.publish(reachable)
	}
	return reachable
}

func (p *ProbeSource) check(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		p.logger.Warn("invalid probe url", zap.String("url", p.url), zap.Error(err))
		return false
	}
	resp, err := p.client.Do(req)
	if err != nil {
		p.logger.Debug("connectivity probe failed", zap.Error(err))
		return false
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	return true
}

// Solutio - Offline-First Sync Gateway for Complaint Management
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/solutio

// Package connectivity tracks whether the upstream is reachable.
//
// The monitor combines an active probe of the upstream health URL with
// passive reports from proxied traffic. Breaker rejections never reach the
// upstream and do not change the state; only the probe brings the gateway
// back online after an outage.
package connectivity

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/tomtom215/solutio/internal/events"
	"github.com/tomtom215/solutio/internal/logging"
	"github.com/tomtom215/solutio/internal/metrics"
	"github.com/tomtom215/solutio/internal/upstream"
)

// Config configures the monitor.
type Config struct {
	HealthURL     string
	ProbeInterval time.Duration
	ProbeTimeout  time.Duration
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.HealthURL == "" {
		return fmt.Errorf("connectivity: health url is required")
	}
	if c.ProbeInterval <= 0 {
		return fmt.Errorf("connectivity: probe interval must be positive")
	}
	if c.ProbeTimeout <= 0 || c.ProbeTimeout > c.ProbeInterval {
		return fmt.Errorf("connectivity: probe timeout must be positive and at most the probe interval")
	}
	return nil
}

// Listener is called after every online/offline transition.
type Listener func(online bool)

// Monitor tracks upstream reachability.
type Monitor struct {
	config    Config
	client    *http.Client
	publisher events.Publisher

	stateMu     sync.RWMutex
	online      bool
	lastChange  time.Time
	lastProbe   time.Time
	lastFailure string
	listeners   []Listener

	// Control
	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// Status is a snapshot of the monitor state.
type Status struct {
	Online      bool      `json:"online"`
	LastChange  time.Time `json:"last_change"`
	LastProbe   time.Time `json:"last_probe,omitempty"`
	LastFailure string    `json:"last_failure,omitempty"`
}

// New returns a monitor that assumes the upstream is online until a probe
// or report says otherwise. pub may be nil.
func New(cfg Config, pub events.Publisher) (*Monitor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	metrics.UpstreamOnline.Set(1)
	return &Monitor{
		config:     cfg,
		client:     &http.Client{Timeout: cfg.ProbeTimeout},
		publisher:  pub,
		online:     true,
		lastChange: time.Now(),
	}, nil
}

// OnChange registers l for state transitions.
func (m *Monitor) OnChange(l Listener) {
	m.stateMu.Lock()
	m.listeners = append(m.listeners, l)
	m.stateMu.Unlock()
}

// Online reports the current state.
func (m *Monitor) Online() bool {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()
	return m.online
}

// Status returns a snapshot of the monitor state.
func (m *Monitor) Status() Status {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()
	return Status{
		Online:      m.online,
		LastChange:  m.lastChange,
		LastProbe:   m.lastProbe,
		LastFailure: m.lastFailure,
	}
}

// ReportSuccess records that a proxied call got an HTTP response.
func (m *Monitor) ReportSuccess() {
	m.setState(true, "")
}

// ReportFailure records that a proxied call got no response.
func (m *Monitor) ReportFailure(err error) {
	if upstream.IsRejected(err) {
		return
	}
	reason := "unknown"
	if err != nil {
		reason = err.Error()
	}
	m.setState(false, reason)
}

// Probe checks the health URL once and updates the state. Any HTTP
// response counts as reachable.
func (m *Monitor) Probe(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, m.config.ProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.config.HealthURL, nil)
	if err != nil {
		m.setState(false, err.Error())
		return false
	}
	resp, err := m.client.Do(req)

	m.stateMu.Lock()
	m.lastProbe = time.Now()
	m.stateMu.Unlock()

	if err != nil {
		// Shutdown is not an outage.
		if ctx.Err() == context.Canceled {
			return m.Online()
		}
		m.setState(false, err.Error())
		return false
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	resp.Body.Close()
	m.setState(true, "")
	return true
}

func (m *Monitor) setState(online bool, reason string) {
	m.stateMu.Lock()
	if !online {
		m.lastFailure = reason
	}
	if m.online == online {
		m.stateMu.Unlock()
		return
	}
	m.online = online
	m.lastChange = time.Now()
	listeners := make([]Listener, len(m.listeners))
	copy(listeners, m.listeners)
	m.stateMu.Unlock()

	metrics.RecordConnectivity(online)

	evType := events.TypeOnline
	if online {
		logging.Info().Msg("Upstream reachable, gateway online")
	} else {
		evType = events.TypeOffline
		logging.Warn().Str("reason", reason).Msg("Upstream unreachable, gateway offline")
	}
	if m.publisher != nil {
		if err := m.publisher.Publish(context.Background(), events.Event{Type: evType, Error: reason}); err != nil {
			logging.Debug().Err(err).Msg("Failed to publish connectivity event")
		}
	}
	for _, l := range listeners {
		l(online)
	}
}

// Start begins probing. The first probe runs immediately.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return nil
	}
	m.ctx, m.cancel = context.WithCancel(ctx)
	m.running = true
	m.mu.Unlock()

	m.wg.Add(1)
	go m.run()

	logging.Info().
		Str("health_url", m.config.HealthURL).
		Dur("interval", m.config.ProbeInterval).
		Msg("Connectivity monitor started")
	return nil
}

// Stop stops probing and waits for the loop to exit.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.cancel()
	m.running = false
	m.mu.Unlock()

	m.wg.Wait()
	logging.Info().Msg("Connectivity monitor stopped")
}

// IsRunning returns whether the probe loop is active.
func (m *Monitor) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *Monitor) run() {
	defer m.wg.Done()

	m.Probe(m.ctx)

	ticker := time.NewTicker(m.config.ProbeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.Probe(m.ctx)
		}
	}
}

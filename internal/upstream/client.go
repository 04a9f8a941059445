// Solutio - Offline-First Sync Gateway for Complaint Management
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/solutio

// Package upstream is the gateway's HTTP client for the complaint management
// server. Every call goes through a circuit breaker and its outcome is
// reported to the connectivity monitor.
package upstream

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/solutio/internal/logging"
	"github.com/tomtom215/solutio/internal/metrics"
)

// Reporter receives passive connectivity signals.
type Reporter interface {
	ReportSuccess()
	ReportFailure(err error)
}

// Config configures the client and its breaker.
type Config struct {
	BaseURL string
	Timeout time.Duration

	MaxRequests       uint32
	Interval          time.Duration
	BreakerTimeout    time.Duration
	FailureThreshold  uint32
	FailureRatio      float64
	MinimumRequests   uint32
	TripOnServerError bool
}

// NetworkError is a call that produced no HTTP response: a transport failure
// or a breaker rejection.
type NetworkError struct {
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("upstream %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// MetricLabel names the error class for metrics.
func (e *NetworkError) MetricLabel() string {
	if IsRejected(e) {
		return "breaker_open"
	}
	return "network"
}

// IsRejected reports whether err is a breaker rejection. Rejected calls never
// reached the upstream.
func IsRejected(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

// IsNetworkError reports whether err is or wraps a NetworkError.
func IsNetworkError(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}

// errServerStatus marks a 5xx answer as a breaker failure while still
// handing the response to the caller.
var errServerStatus = errors.New("upstream server error")

// Client calls the upstream through a circuit breaker.
type Client struct {
	base *url.URL
	http *http.Client
	cb   *gobreaker.CircuitBreaker[*http.Response]
	name string
	trip bool

	mu       sync.RWMutex
	reporter Reporter
}

// New returns a client named name. The name labels breaker metrics.
func New(name string, cfg Config) (*Client, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid upstream url %q", cfg.BaseURL)
	}

	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)
	metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(name).Set(0)

	threshold := cfg.FailureThreshold
	cb := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.BreakerTimeout,

		// Open on a run of consecutive failures, or on a failure ratio once
		// enough requests were seen in the interval.
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if threshold > 0 && counts.ConsecutiveFailures >= threshold {
				logging.Warn().Str("breaker", name).Uint32("consecutive_failures", counts.ConsecutiveFailures).Msg("[CIRCUIT BREAKER] Opening circuit")
				return true
			}
			if cfg.FailureRatio <= 0 || counts.Requests < cfg.MinimumRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			if ratio >= cfg.FailureRatio {
				logging.Warn().Str("breaker", name).Float64("failure_rate", ratio*100).Msg("[CIRCUIT BREAKER] Opening circuit")
				return true
			}
			return false
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr, toStr := stateToString(from), stateToString(to)
			logging.Info().Str("breaker", name).Str("from", fromStr).Str("to", toStr).Msg("[CIRCUIT BREAKER] State transition")

			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()
			if to == gobreaker.StateClosed {
				metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(name).Set(0)
			}
		},
	})

	return &Client{
		base: base,
		http: &http.Client{
			Timeout: cfg.Timeout,
			// Redirects are the page's business.
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		cb:   cb,
		name: name,
		trip: cfg.TripOnServerError,
	}, nil
}

// SetReporter installs the connectivity reporter.
func (c *Client) SetReporter(r Reporter) {
	c.mu.Lock()
	c.reporter = r
	c.mu.Unlock()
}

func (c *Client) report(err error) {
	c.mu.RLock()
	r := c.reporter
	c.mu.RUnlock()
	if r == nil {
		return
	}
	if err != nil {
		r.ReportFailure(err)
		return
	}
	r.ReportSuccess()
}

// Resolve turns a gateway-relative path (with optional query) into an
// absolute upstream URL. Absolute URLs are returned unchanged.
func (c *Client) Resolve(target string) string {
	if strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://") {
		return target
	}
	ref, err := url.Parse(target)
	if err != nil {
		return strings.TrimRight(c.base.String(), "/") + "/" + strings.TrimLeft(target, "/")
	}
	return c.base.ResolveReference(ref).String()
}

// Do sends req. Any HTTP response, including 5xx, is returned with a nil
// error; a call that produced no response returns a *NetworkError.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	resp, err := c.cb.Execute(func() (*http.Response, error) {
		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= 500 && c.trip {
			return resp, errServerStatus
		}
		return resp, nil
	})

	switch {
	case err == nil:
		metrics.CircuitBreakerRequests.WithLabelValues(c.name, "success").Inc()
		metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(c.name).Set(0)
		c.report(nil)
		return resp, nil
	case errors.Is(err, errServerStatus):
		metrics.CircuitBreakerRequests.WithLabelValues(c.name, "failure").Inc()
		metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(c.name).Set(float64(c.cb.Counts().ConsecutiveFailures))
		c.report(nil)
		return resp, nil
	case IsRejected(err):
		metrics.CircuitBreakerRequests.WithLabelValues(c.name, "rejected").Inc()
		logging.Debug().Str("breaker", c.name).Str("url", req.URL.String()).Msg("[CIRCUIT BREAKER] Request rejected")
	default:
		metrics.CircuitBreakerRequests.WithLabelValues(c.name, "failure").Inc()
		metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(c.name).Set(float64(c.cb.Counts().ConsecutiveFailures))
	}

	nerr := &NetworkError{URL: req.URL.String(), Err: err}
	c.report(nerr)
	return nil, nerr
}

// State returns the breaker state as closed, half-open or open.
func (c *Client) State() string {
	return stateToString(c.cb.State())
}

// stateToFloat converts circuit breaker state to numeric value for metrics
func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

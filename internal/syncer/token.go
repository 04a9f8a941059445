// Solutio - Offline-First Sync Gateway for Complaint Management
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/solutio

package syncer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tomtom215/solutio/internal/cache"
	"github.com/tomtom215/solutio/internal/upstream"
)

// ErrNoToken is returned when the upstream did not set the token cookie.
var ErrNoToken = errors.New("upstream did not issue an anti-forgery cookie")

// TokenSource supplies the anti-forgery token sent with replays.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// invalidator is implemented by token sources that memoise.
type invalidator interface {
	Invalidate()
}

// CookieTokenSource fetches the token cookie from the upstream and memoises
// it for TTL.
type CookieTokenSource struct {
	url    string
	cookie string
	client *upstream.Client
	memo   *cache.Cache
	ttl    time.Duration
}

// NewCookieTokenSource returns a source reading cookie from GET url.
func NewCookieTokenSource(client *upstream.Client, url, cookie string, memo *cache.Cache, ttl time.Duration) *CookieTokenSource {
	return &CookieTokenSource{url: url, cookie: cookie, client: client, memo: memo, ttl: ttl}
}

func (s *CookieTokenSource) memoKey() string {
	return "csrf:" + s.cookie
}

// Token returns the memoised token or fetches a fresh one.
func (s *CookieTokenSource) Token(ctx context.Context) (string, error) {
	if v, ok := s.memo.Get(s.memoKey()); ok {
		syncTokenFetches.WithLabelValues("cached").Inc()
		return v.(string), nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return "", err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		syncTokenFetches.WithLabelValues("error").Inc()
		return "", fmt.Errorf("fetch anti-forgery token: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))

	for _, c := range resp.Cookies() {
		if c.Name == s.cookie && c.Value != "" {
			s.memo.SetWithTTL(s.memoKey(), c.Value, s.ttl)
			syncTokenFetches.WithLabelValues("fetched").Inc()
			return c.Value, nil
		}
	}
	syncTokenFetches.WithLabelValues("error").Inc()
	return "", ErrNoToken
}

// Invalidate drops the memoised token.
func (s *CookieTokenSource) Invalidate() {
	s.memo.Delete(s.memoKey())
}

// withCookie returns a Cookie header with name set to value, replacing any
// earlier value of name.
func withCookie(header, name, value string) string {
	parts := make([]string, 0, 4)
	for _, p := range strings.Split(header, ";") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if k, _, _ := strings.Cut(p, "="); k == name {
			continue
		}
		parts = append(parts, p)
	}
	parts = append(parts, name+"="+value)
	return strings.Join(parts, "; ")
}

// Solutio - Offline-First Sync Gateway for Complaint Management
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/solutio

package interceptor

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
)

// sessionKey fingerprints the credentials r carries. Requests without a
// Cookie or Authorization header return "".
func sessionKey(r *http.Request) string {
	auth := r.Header.Values("Authorization")
	cookies := r.Header.Values("Cookie")
	if len(auth) == 0 && len(cookies) == 0 {
		return ""
	}
	h := sha256.New()
	for _, v := range auth {
		h.Write([]byte("a:" + v + "\n"))
	}
	for _, v := range cookies {
		h.Write([]byte("c:" + v + "\n"))
	}
	return hex.EncodeToString(h.Sum(nil)[:16])
}

// dynamicKey is the network-first cache key for r. Credentialed requests
// get a key of their own.
func (i *Interceptor) dynamicKey(r *http.Request) string {
	key := cacheKey(i.config.dynamicCache(), r.URL.RequestURI())
	if s := sessionKey(r); s != "" {
		key += "|session " + s
	}
	return key
}

// cacheable reports whether resp may be kept. no-store and Vary: * are never
// kept; private responses only under a per-session key.
func cacheable(resp *http.Response, perSession bool) bool {
	for _, v := range resp.Header.Values("Cache-Control") {
		for _, d := range strings.Split(v, ",") {
			d = strings.ToLower(strings.TrimSpace(d))
			switch {
			case d == "no-store":
				return false
			case d == "private" || strings.HasPrefix(d, "private="):
				if !perSession {
					return false
				}
			}
		}
	}
	for _, name := range varyNames(resp.Header) {
		if name == "*" {
			return false
		}
	}
	return true
}

// Vary names that never split a cache entry. Credentials are part of the
// key and the upstream is always asked for an unencoded body.
var keyedVary = map[string]bool{
	"Cookie":          true,
	"Authorization":   true,
	"Accept-Encoding": true,
}

func varyNames(h http.Header) []string {
	var names []string
	for _, v := range h.Values("Vary") {
		for _, name := range strings.Split(v, ",") {
			if name = strings.TrimSpace(name); name != "" {
				names = append(names, http.CanonicalHeaderKey(name))
			}
		}
	}
	return names
}

// varyValues captures the request headers a response varies on.
func varyValues(resp http.Header, req http.Header) map[string]string {
	var out map[string]string
	for _, name := range varyNames(resp) {
		if keyedVary[name] {
			continue
		}
		if out == nil {
			out = make(map[string]string)
		}
		out[name] = strings.Join(req.Values(name), ", ")
	}
	return out
}

// matches reports whether r sends the same varying headers as the request
// that produced s.
func (s *StoredResponse) matches(r *http.Request) bool {
	for name, want := range s.Vary {
		if strings.Join(r.Header.Values(name), ", ") != want {
			return false
		}
	}
	return true
}

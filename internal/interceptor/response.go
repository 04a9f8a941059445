// Solutio - Offline-First Sync Gateway for Complaint Management
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/solutio

package interceptor

import (
	"bytes"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/solutio/internal/logging"
	"github.com/tomtom215/solutio/internal/models"
)

// Response headers set by the gateway.
const (
	HeaderOfflineCache  = "X-Offline-Cache"
	HeaderOfflineQueued = "X-Offline-Queued"
	HeaderQueueID       = "X-Offline-Queue-Id"
)

// StoredResponse is a cached copy of an upstream response.
type StoredResponse struct {
	Status   int         `json:"status"`
	Header   http.Header `json:"header"`
	Body     []byte      `json:"body"`
	StoredAt time.Time   `json:"stored_at"`
	URL      string      `json:"url"`

	// Vary holds the request header values named by the response's Vary.
	Vary map[string]string `json:"vary,omitempty"`
}

// Headers never copied into a cached response.
var uncachedHeaders = []string{"Set-Cookie", "Content-Length", "Date"}

func newStoredResponse(resp *http.Response, req *http.Request, body []byte) *StoredResponse {
	h := resp.Header.Clone()
	for _, k := range uncachedHeaders {
		h.Del(k)
	}
	removeHopHeaders(h)
	return &StoredResponse{
		Status:   resp.StatusCode,
		Header:   h,
		Body:     body,
		StoredAt: time.Now().UTC(),
		URL:      req.URL.RequestURI(),
		Vary:     varyValues(resp.Header, req.Header),
	}
}

// write replays the stored response. source, when set, is sent as
// X-Offline-Cache.
func (s *StoredResponse) write(w http.ResponseWriter, source string) {
	h := w.Header()
	for k, vv := range s.Header {
		h[k] = append([]string(nil), vv...)
	}
	if source != "" {
		h.Set(HeaderOfflineCache, source)
	}
	h.Set("Content-Length", strconv.Itoa(len(s.Body)))
	w.WriteHeader(s.Status)
	_, _ = w.Write(s.Body)
}

// Hop-by-hop headers, removed when forwarding in either direction.
var hopHeaders = []string{
	"Connection",
	"Proxy-Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

func removeHopHeaders(h http.Header) {
	for _, f := range h.Values("Connection") {
		for _, name := range strings.Split(f, ",") {
			if name = strings.TrimSpace(name); name != "" {
				h.Del(name)
			}
		}
	}
	for _, k := range hopHeaders {
		h.Del(k)
	}
}

func copyHeader(dst, src http.Header) {
	for k, vv := range src {
		for _, v := range vv {
			dst.Add(k, v)
		}
	}
}

// relay writes resp to w. prefix holds body bytes already read from resp.
func relay(w http.ResponseWriter, resp *http.Response, prefix []byte) {
	h := resp.Header.Clone()
	removeHopHeaders(h)
	copyHeader(w.Header(), h)
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, io.MultiReader(bytes.NewReader(prefix), resp.Body)); err != nil {
		logging.Debug().Err(err).Msg("Client went away while relaying upstream response")
	}
}

// readLimited reads up to limit bytes of body. complete is false when the
// body is larger; the bytes read so far are still returned.
func readLimited(body io.Reader, limit int64) (data []byte, complete bool, err error) {
	data, err = io.ReadAll(io.LimitReader(body, limit+1))
	if err != nil {
		return data, false, err
	}
	if int64(len(data)) > limit {
		return data, false, nil
	}
	return data, true, nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func writeOffline(w http.ResponseWriter, status int, body models.OfflineResponse) {
	body.Offline = true
	writeJSON(w, status, body)
}

// wantsHTML reports whether r is a page navigation rather than a data fetch.
func wantsHTML(r *http.Request) bool {
	if r.Header.Get("Sec-Fetch-Mode") == "navigate" || r.Header.Get("Sec-Fetch-Dest") == "document" {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}

// builtinOfflinePage is served when no offline page was precached.
const builtinOfflinePage = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Offline - Solutio 360</title>
<style>
body{font-family:system-ui,sans-serif;display:flex;align-items:center;justify-content:center;min-height:100vh;margin:0;background:#f8fafc;color:#1e293b}
main{text-align:center;max-width:28rem;padding:2rem}
button{margin-top:1rem;padding:.5rem 1.25rem;border:0;border-radius:.375rem;background:#2563eb;color:#fff;cursor:pointer}
</style>
</head>
<body>
<main>
<h1>You are offline</h1>
<p>This page is not available offline. Changes you make are saved and will be sent when the connection returns.</p>
<button onclick="location.reload()">Try again</button>
</main>
</body>
</html>
`

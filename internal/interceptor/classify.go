// Solutio - Offline-First Sync Gateway for Complaint Management
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/solutio

package interceptor

import (
	"net/http"
	"path"
	"regexp"
	"strings"
)

// Class is the routing class of a request.
type Class int

const (
	ClassExcluded Class = iota
	ClassStatic
	ClassAPIRead
	ClassAPIWrite
)

func (c Class) String() string {
	switch c {
	case ClassStatic:
		return "static"
	case ClassAPIRead:
		return "api_read"
	case ClassAPIWrite:
		return "api_write"
	default:
		return "excluded"
	}
}

// Classify routes a request by method and path. Excluded prefixes win over
// everything else.
func (c *Config) Classify(method, urlPath string) Class {
	if hasAnyPrefix(urlPath, c.ExcludedPrefixes) {
		return ClassExcluded
	}
	switch method {
	case http.MethodGet:
		if hasAnyPrefix(urlPath, c.StaticPrefixes) || c.isPrecachedAsset(urlPath) {
			return ClassStatic
		}
		return ClassAPIRead
	case http.MethodHead, http.MethodOptions:
		return ClassExcluded
	}
	if hasAnyPrefix(urlPath, c.APIPrefixes) {
		return ClassAPIWrite
	}
	return ClassExcluded
}

// isPrecachedAsset reports whether p is a precached file such as
// /manifest.json. Precached pages stay network-first.
func (c *Config) isPrecachedAsset(p string) bool {
	if path.Ext(p) == "" {
		return false
	}
	for _, pc := range c.PrecachePaths {
		if pc == p {
			return true
		}
	}
	return false
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

var versionSegment = regexp.MustCompile(`^v[0-9]+$`)

// ModelForPath returns the collection a write to urlPath targets: the first
// path segment after the API prefix, skipping a version segment.
// /api/complaints/12/ and /api/v1/complaints/ both yield "complaints".
func (c *Config) ModelForPath(urlPath string) string {
	for _, prefix := range c.APIPrefixes {
		if !strings.HasPrefix(urlPath, prefix) {
			continue
		}
		for _, seg := range strings.Split(strings.TrimPrefix(urlPath, prefix), "/") {
			if seg == "" || versionSegment.MatchString(seg) {
				continue
			}
			return seg
		}
	}
	return ""
}

// Solutio - Offline-First Sync Gateway for Complaint Management
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/solutio

package metrics

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

type labelledError struct{}

func (labelledError) Error() string       { return "quota" }
func (labelledError) MetricLabel() string { return "quota_exceeded" }

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

func TestErrorType(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"classified", labelledError{}, "quota_exceeded"},
		{"wrapped classified", fmt.Errorf("put: %w", labelledError{}), "quota_exceeded"},
		{"net timeout", timeoutError{}, "timeout"},
		{"plain", errors.New("boom"), "other"},
		{"context", context.Canceled, "other"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ErrorType(tt.err); got != tt.want {
				t.Errorf("ErrorType() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRecordStoreOperation(t *testing.T) {
	before := testutil.ToFloat64(StoreOperationErrors.WithLabelValues("put", "complaints", "quota_exceeded"))

	RecordStoreOperation("put", "complaints", time.Millisecond, nil)
	RecordStoreOperation("put", "complaints", time.Millisecond, labelledError{})

	after := testutil.ToFloat64(StoreOperationErrors.WithLabelValues("put", "complaints", "quota_exceeded"))
	if after-before != 1 {
		t.Errorf("Expected 1 new error sample, got %v", after-before)
	}
}

func TestRecordAPIRequest(t *testing.T) {
	before := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("GET", "/_offline/status", "200"))
	RecordAPIRequest("GET", "/_offline/status", "200", 5*time.Millisecond)
	after := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("GET", "/_offline/status", "200"))
	if after-before != 1 {
		t.Errorf("Expected counter to increase by 1, got %v", after-before)
	}
}

func TestTrackActiveRequest(t *testing.T) {
	start := testutil.ToFloat64(APIActiveRequests)
	TrackActiveRequest(true)
	if got := testutil.ToFloat64(APIActiveRequests); got != start+1 {
		t.Errorf("Expected %v active requests, got %v", start+1, got)
	}
	TrackActiveRequest(false)
	if got := testutil.ToFloat64(APIActiveRequests); got != start {
		t.Errorf("Expected %v active requests, got %v", start, got)
	}
}

func TestRecordConnectivity(t *testing.T) {
	RecordConnectivity(false)
	if got := testutil.ToFloat64(UpstreamOnline); got != 0 {
		t.Errorf("Expected upstream_online 0, got %v", got)
	}
	RecordConnectivity(true)
	if got := testutil.ToFloat64(UpstreamOnline); got != 1 {
		t.Errorf("Expected upstream_online 1, got %v", got)
	}
}

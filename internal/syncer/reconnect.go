// Solutio - Offline-First Sync Gateway for Complaint Management
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/solutio

package syncer

import "github.com/tomtom215/solutio/internal/connectivity"

// ConnectivityNotifier announces upstream reachability changes.
type ConnectivityNotifier interface {
	OnChange(l connectivity.Listener)
}

// DrainOnReconnect requests a drain each time n reports the upstream
// reachable again.
func (c *Coordinator) DrainOnReconnect(n ConnectivityNotifier) {
	n.OnChange(func(online bool) {
		if online {
			c.Trigger(TriggerOnline)
		}
	})
}

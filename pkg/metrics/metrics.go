// Copyright (C) 2026 Kinoko Lab (oss@kinokolab.jp)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package metrics exposes semesterd's prometheus instrumentation.
//
// Counters are registered on the default registry and served by the
// admin endpoint's /metrics handler.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DirectoryCalls counts remote object-store calls by operation and
	// outcome (ok, not_found, error).
	DirectoryCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "semesterd_directory_calls_total",
		Help: "Remote directory calls by operation and outcome.",
	}, []string{"op", "outcome"})

	// ReactionGrants counts role grants triggered by reaction-add events.
	ReactionGrants = promauto.NewCounter(prometheus.CounterOpts{
		Name: "semesterd_reaction_grants_total",
		Help: "Role grants triggered by reaction menus.",
	})

	// ReactionRevokes counts role revocations triggered by
	// reaction-remove events.
	ReactionRevokes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "semesterd_reaction_revokes_total",
		Help: "Role revocations triggered by reaction menus.",
	})

	// DroppedBindings counts registry bindings discarded at load time
	// because their role no longer resolves.
	DroppedBindings = promauto.NewCounter(prometheus.CounterOpts{
		Name: "semesterd_registry_dropped_bindings_total",
		Help: "Stored reaction-role bindings dropped on reload.",
	})
)

// ObserveDirectoryCall records one directory call outcome.
func ObserveDirectoryCall(op, outcome string) {
	DirectoryCalls.WithLabelValues(op, outcome).Inc()
}

// Copyright (C) 2026 Kinoko Lab (oss@kinokolab.jp)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package confirm gates destructive operations behind an explicit
// two-step acknowledgement: the operator is shown the exact plan of
// what will be destroyed and must confirm within a deadline before
// anything runs.
package confirm

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Outcome is the terminal state of a pending confirmation.
type Outcome int

const (
	OutcomePending Outcome = iota
	OutcomeConfirmed
	OutcomeCancelled
	OutcomeExpired
)

func (o Outcome) String() string {
	switch o {
	case OutcomeConfirmed:
		return "confirmed"
	case OutcomeCancelled:
		return "cancelled"
	case OutcomeExpired:
		return "expired"
	default:
		return "pending"
	}
}

// Pending is one outstanding confirmation: the plan to be acknowledged
// and who is allowed to acknowledge it.
type Pending struct {
	ID          uuid.UUID
	RequesterID string
	// Plan lists, line by line, everything the gated operation will
	// destroy. It is presented verbatim to the operator.
	Plan []string

	once sync.Once
	done chan Outcome
}

// resolve delivers the terminal outcome exactly once. Later calls are
// no-ops, so a confirm racing the timeout cannot flip the result.
func (p *Pending) resolve(o Outcome) {
	p.once.Do(func() {
		p.done <- o
		close(p.done)
	})
}

// Gate issues and resolves pending confirmations.
type Gate struct {
	timeout time.Duration
	log     *slog.Logger

	mu      sync.Mutex
	pending map[uuid.UUID]*Pending
}

// NewGate builds a gate whose confirmations expire after timeout.
func NewGate(timeout time.Duration, log *slog.Logger) *Gate {
	return &Gate{
		timeout: timeout,
		log:     log,
		pending: make(map[uuid.UUID]*Pending),
	}
}

// Propose registers a new pending confirmation for the given plan and
// returns it. The caller presents the plan to the operator and then
// blocks on Await.
func (g *Gate) Propose(requesterID string, plan []string) *Pending {
	p := &Pending{
		ID:          uuid.New(),
		RequesterID: requesterID,
		Plan:        append([]string(nil), plan...),
		done:        make(chan Outcome, 1),
	}
	g.mu.Lock()
	g.pending[p.ID] = p
	g.mu.Unlock()
	g.log.Info("confirmation proposed", "id", p.ID, "requester", requesterID, "plan_lines", len(plan))
	return p
}

// Resolve records the operator's decision for a pending confirmation.
// Only the original requester may resolve; anyone else gets
// ErrNotRequester and the confirmation stays pending with its timeout
// intact.
func (g *Gate) Resolve(id uuid.UUID, actorID string, confirmed bool) error {
	g.mu.Lock()
	p, ok := g.pending[id]
	if ok && p.RequesterID != actorID {
		g.mu.Unlock()
		return ErrNotRequester
	}
	if ok {
		delete(g.pending, id)
	}
	g.mu.Unlock()

	if !ok {
		return ErrUnknownPending
	}
	if confirmed {
		p.resolve(OutcomeConfirmed)
	} else {
		p.resolve(OutcomeCancelled)
	}
	g.log.Info("confirmation resolved", "id", id, "confirmed", confirmed)
	return nil
}

// Await blocks until the confirmation reaches a terminal outcome: the
// requester's decision, the gate timeout, or context cancellation
// (treated as expiry). An expired or cancelled confirmation means the
// gated operation must not run.
func (g *Gate) Await(ctx context.Context, p *Pending) Outcome {
	timer := time.NewTimer(g.timeout)
	defer timer.Stop()

	select {
	case o := <-p.done:
		return o
	case <-timer.C:
	case <-ctx.Done():
	}

	// Timed out or cancelled: withdraw the pending entry so a late
	// button press resolves to ErrUnknownPending instead of silently
	// arming a dead confirmation.
	g.mu.Lock()
	delete(g.pending, p.ID)
	g.mu.Unlock()
	p.resolve(OutcomeExpired)

	// The requester's decision may have won the race just before the
	// withdrawal; honor whatever resolve delivered first.
	if o, ok := <-p.done; ok {
		return o
	}
	return OutcomeExpired
}

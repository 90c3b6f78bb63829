// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package fallback

import (
	"sync"
	"time"
)

// Breaker thresholds. A provider with breakerFailureThreshold consecutive
// failures is skipped until breakerCooldown has elapsed since its last
// attempt; the first attempt after the cooldown is the single retry.
const (
	breakerFailureThreshold = 3
	breakerCooldown         = 60 * time.Second
)

// ProviderHealth is a snapshot of one provider's availability, as exposed
// via /queue/stats and the diagnostics CLI.
type ProviderHealth struct {
	ID                  string    `json:"id"`
	Name                string    `json:"name"`
	Available           bool      `json:"available"`
	LastChecked         time.Time `json:"lastChecked"`
	LastError           string    `json:"lastError,omitempty"`
	ConsecutiveFailures int       `json:"consecutiveFailures"`
}

// breaker tracks per-provider failure state. It is shared across
// concurrent chain invocations; all reads and writes go through the mutex.
type breaker struct {
	mu          sync.Mutex
	failures    int
	lastChecked time.Time
	lastErr     string
	now         func() time.Time // swapped in tests
}

func newBreaker() *breaker {
	return &breaker{now: time.Now}
}

// allow reports whether a call to this provider should be attempted.
// While the breaker is open (failures at/over threshold and inside the
// cooldown window) calls are skipped without touching provider state.
func (b *breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failures < breakerFailureThreshold {
		return true
	}
	return b.now().Sub(b.lastChecked) >= breakerCooldown
}

// recordSuccess closes the breaker.
func (b *breaker) recordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.lastErr = ""
	b.lastChecked = b.now()
}

// recordFailure counts one consecutive failure. Updating lastChecked here
// restarts the cooldown, which is what makes the post-cooldown retry a
// single probe rather than a thundering herd.
func (b *breaker) recordFailure(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures++
	b.lastErr = err.Error()
	b.lastChecked = b.now()
}

// reset forces the breaker closed. Used by the health refresher when a
// provider is known to have recovered.
func (b *breaker) reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.lastErr = ""
}

// snapshot returns the health view of this breaker.
func (b *breaker) snapshot(id, name string) ProviderHealth {
	b.mu.Lock()
	defer b.mu.Unlock()
	return ProviderHealth{
		ID:                  id,
		Name:                name,
		Available:           b.failures < breakerFailureThreshold,
		LastChecked:         b.lastChecked,
		LastError:           b.lastErr,
		ConsecutiveFailures: b.failures,
	}
}

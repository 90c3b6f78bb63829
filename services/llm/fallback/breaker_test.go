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
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// fakeClock drives a breaker deterministically.
type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time           { return c.t }
func (c *fakeClock) advance(d time.Duration)  { c.t = c.t.Add(d) }

func newTestBreaker() (*breaker, *fakeClock) {
	clock := &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	b := newBreaker()
	b.now = clock.now
	return b, clock
}

func TestBreaker_OpensAfterThreeConsecutiveFailures(t *testing.T) {
	b, _ := newTestBreaker()
	err := errors.New("connection refused")

	assert.True(t, b.allow())
	b.recordFailure(err)
	assert.True(t, b.allow())
	b.recordFailure(err)
	assert.True(t, b.allow())
	b.recordFailure(err)

	assert.False(t, b.allow(), "breaker should be open at threshold")
}

func TestBreaker_SingleRetryAfterCooldown(t *testing.T) {
	b, clock := newTestBreaker()
	err := errors.New("timeout")
	for i := 0; i < 3; i++ {
		b.recordFailure(err)
	}

	clock.advance(59 * time.Second)
	assert.False(t, b.allow(), "still inside cooldown")

	clock.advance(2 * time.Second)
	assert.True(t, b.allow(), "cooldown elapsed, one probe allowed")

	// The probe fails: the cooldown restarts, so no second retry.
	b.recordFailure(err)
	assert.False(t, b.allow())
	clock.advance(30 * time.Second)
	assert.False(t, b.allow())
	clock.advance(31 * time.Second)
	assert.True(t, b.allow())
}

func TestBreaker_SuccessCloses(t *testing.T) {
	b, clock := newTestBreaker()
	err := errors.New("boom")
	for i := 0; i < 3; i++ {
		b.recordFailure(err)
	}
	clock.advance(breakerCooldown)

	b.recordSuccess()
	assert.True(t, b.allow())

	snap := b.snapshot("embedding-0", "primary")
	assert.True(t, snap.Available)
	assert.Zero(t, snap.ConsecutiveFailures)
	assert.Empty(t, snap.LastError)
}

func TestBreaker_SnapshotTracksFailureState(t *testing.T) {
	b, _ := newTestBreaker()
	b.recordFailure(errors.New("dial tcp: refused"))

	snap := b.snapshot("synthesis-1", "backup")
	assert.Equal(t, "synthesis-1", snap.ID)
	assert.Equal(t, "backup", snap.Name)
	assert.True(t, snap.Available, "one failure is below threshold")
	assert.Equal(t, 1, snap.ConsecutiveFailures)
	assert.Equal(t, "dial tcp: refused", snap.LastError)
}

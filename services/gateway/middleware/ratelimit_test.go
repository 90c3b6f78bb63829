// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package middleware

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func limitedRouter(maxRequests int) *gin.Engine {
	r := gin.New()
	rl := NewRateLimiter(maxRequests, time.Minute, "query", nil)
	r.POST("/query", rl.Middleware(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return r
}

func TestRateLimiter_AllowsUpToBurst(t *testing.T) {
	r := limitedRouter(3)
	for i := 0; i < 3; i++ {
		w := doRequest(r, http.MethodPost, "/query", nil)
		assert.Equal(t, http.StatusOK, w.Code)
	}

	w := doRequest(r, http.MethodPost, "/query", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestRateLimiter_429CarriesRetryAfter(t *testing.T) {
	r := limitedRouter(1)
	doRequest(r, http.MethodPost, "/query", nil)
	w := doRequest(r, http.MethodPost, "/query", nil)

	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	var body struct {
		Error      string `json:"error"`
		RetryAfter int    `json:"retryAfter"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "rate limit exceeded", body.Error)
	assert.GreaterOrEqual(t, body.RetryAfter, 1)
}

func TestRateLimiter_IsolatesClients(t *testing.T) {
	r := limitedRouter(1)

	first := doRequest(r, http.MethodPost, "/query", map[string]string{"X-Forwarded-For": "10.0.0.1"})
	assert.Equal(t, http.StatusOK, first.Code)

	// The same client is now out of tokens.
	again := doRequest(r, http.MethodPost, "/query", map[string]string{"X-Forwarded-For": "10.0.0.1"})
	assert.Equal(t, http.StatusTooManyRequests, again.Code)

	// A different client has its own bucket.
	other := doRequest(r, http.MethodPost, "/query", map[string]string{"X-Forwarded-For": "10.0.0.2"})
	assert.Equal(t, http.StatusOK, other.Code)
}

func TestRateLimiter_UsesFirstForwardedEntry(t *testing.T) {
	r := limitedRouter(1)

	w := doRequest(r, http.MethodPost, "/query", map[string]string{
		"X-Forwarded-For": "10.0.0.9, 192.168.1.1",
	})
	assert.Equal(t, http.StatusOK, w.Code)

	// Same originating client behind a different proxy hop shares the bucket.
	w = doRequest(r, http.MethodPost, "/query", map[string]string{
		"X-Forwarded-For": "10.0.0.9, 192.168.1.2",
	})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

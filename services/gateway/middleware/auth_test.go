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
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func authRouter(key string) *gin.Engine {
	r := gin.New()
	r.Use(APIKeyAuth(key, nil))
	ok := func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) }
	r.GET("/", ok)
	r.GET("/health", ok)
	r.POST("/query", ok)
	return r
}

func doRequest(r *gin.Engine, method, path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAPIKeyAuth_MissingKey(t *testing.T) {
	r := authRouter("secret")
	w := doRequest(r, http.MethodPost, "/query", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "missing API key")
}

func TestAPIKeyAuth_WrongKey(t *testing.T) {
	r := authRouter("secret")
	w := doRequest(r, http.MethodPost, "/query", map[string]string{"X-API-Key": "wrong"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "invalid API key")
}

func TestAPIKeyAuth_AcceptsBothHeaderForms(t *testing.T) {
	r := authRouter("secret")

	bearer := doRequest(r, http.MethodPost, "/query", map[string]string{"Authorization": "Bearer secret"})
	assert.Equal(t, http.StatusOK, bearer.Code)

	apiKey := doRequest(r, http.MethodPost, "/query", map[string]string{"X-API-Key": "secret"})
	assert.Equal(t, http.StatusOK, apiKey.Code)
}

func TestAPIKeyAuth_ExemptPaths(t *testing.T) {
	r := authRouter("secret")

	assert.Equal(t, http.StatusOK, doRequest(r, http.MethodGet, "/", nil).Code)
	assert.Equal(t, http.StatusOK, doRequest(r, http.MethodGet, "/health", nil).Code)
}

func TestAPIKeyAuth_DisabledWhenUnconfigured(t *testing.T) {
	r := authRouter("")
	w := doRequest(r, http.MethodPost, "/query", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

// The key comparison must not leak the mismatch position through timing.
// With a long key, an early-exit comparison returns far faster on a
// first-byte mismatch than on a last-byte mismatch; a constant-time
// comparison scans the full key either way, so the medians stay in the
// same ballpark.
func TestAPIKeyAuth_ComparisonIsConstantTime(t *testing.T) {
	key := strings.Repeat("k", 64*1024)
	r := authRouter(key)

	firstByteMiss := "x" + key[1:]
	lastByteMiss := key[:len(key)-1] + "x"

	medianRejection := func(provided string) time.Duration {
		const rounds = 64
		samples := make([]time.Duration, rounds)
		for i := range samples {
			start := time.Now()
			w := doRequest(r, http.MethodPost, "/query", map[string]string{"X-API-Key": provided})
			samples[i] = time.Since(start)
			require.Equal(t, http.StatusForbidden, w.Code)
		}
		sort.Slice(samples, func(a, b int) bool { return samples[a] < samples[b] })
		return samples[rounds/2]
	}

	early := medianRejection(firstByteMiss)
	late := medianRejection(lastByteMiss)

	// An early-exit comparison would make the first-byte rejection
	// orders of magnitude faster; allow generous scheduler noise.
	assert.Greater(t, float64(early), float64(late)/4,
		"first-byte mismatch rejected suspiciously faster than last-byte mismatch")
}

func TestAPIKeyAuth_MalformedBearerFallsThroughToAPIKeyHeader(t *testing.T) {
	r := authRouter("secret")
	w := doRequest(r, http.MethodPost, "/query", map[string]string{
		"Authorization": "Basic dXNlcjpwYXNz",
		"X-API-Key":     "secret",
	})
	assert.Equal(t, http.StatusOK, w.Code)
}

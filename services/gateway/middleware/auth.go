// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package middleware provides the gateway's HTTP edge middleware:
// API-key auth, per-client rate limiting, and request-id propagation.
//
// # Authentication Flow
//
// The auth middleware accepts the shared API key via either
// "Authorization: Bearer <key>" or "X-API-Key: <key>". The comparison is
// constant-time. A request with no key at all is 401; a request with a
// wrong key is 403. GET /health and GET / are exempt so probes and load
// balancers never need credentials.
package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/AleutianInsight/services/gateway/observability"
)

// exemptPaths never require a key.
var exemptPaths = map[string]struct{}{
	"/":        {},
	"/health":  {},
	"/metrics": {},
}

// APIKeyAuth returns the shared-key auth middleware. An empty expected
// key disables auth entirely (development mode); callers gate that on
// the environment.
func APIKeyAuth(expectedKey string, metrics *observability.Metrics) gin.HandlerFunc {
	expected := []byte(expectedKey)

	return func(c *gin.Context) {
		if expectedKey == "" {
			c.Next()
			return
		}
		if _, exempt := exemptPaths[c.Request.URL.Path]; exempt {
			c.Next()
			return
		}

		provided := extractKey(c)
		if provided == "" {
			if metrics != nil {
				metrics.AuthRejectionsTotal.WithLabelValues("missing").Inc()
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "missing API key",
			})
			return
		}

		if subtle.ConstantTimeCompare([]byte(provided), expected) == 0 {
			if metrics != nil {
				metrics.AuthRejectionsTotal.WithLabelValues("mismatch").Inc()
			}
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "invalid API key",
			})
			return
		}

		c.Next()
	}
}

// extractKey pulls the API key from the Authorization bearer header or
// the X-API-Key header, in that order.
func extractKey(c *gin.Context) string {
	if auth := c.GetHeader("Authorization"); auth != "" {
		if strings.HasPrefix(auth, "Bearer ") {
			return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
		}
	}
	return strings.TrimSpace(c.GetHeader("X-API-Key"))
}

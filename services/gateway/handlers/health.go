// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/AleutianInsight/services/gateway/health"
)

// HandleHealth serves GET /health with the monitor's aggregated report.
// The HTTP code mirrors the aggregate: 200 healthy, 207 degraded, 503
// unhealthy.
func HandleHealth(monitor *health.Monitor) gin.HandlerFunc {
	return func(c *gin.Context) {
		report := monitor.Report()
		c.JSON(report.HTTPStatus(), report)
	}
}

// HandleRoot serves GET /: a minimal identity document for probes.
func HandleRoot(version string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"service": "aleutian-insight-gateway",
			"version": version,
		})
	}
}

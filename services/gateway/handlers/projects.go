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
	"context"
	"log/slog"
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/codes"
)

// ProjectLister enumerates the indexed project scopes. Satisfied by
// *search.QdrantIndex.
type ProjectLister interface {
	Projects(ctx context.Context) ([]string, error)
}

// HandleProjects serves GET /projects. Projects from the vector
// backend are merged with the static override list from configuration;
// the result is deduplicated and sorted.
func HandleProjects(lister ProjectLister, overrides []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := queryTracer.Start(c.Request.Context(), "HandleProjects")
		defer span.End()

		seen := make(map[string]struct{})
		var projects []string
		add := func(p string) {
			if p == "" {
				return
			}
			if _, dup := seen[p]; dup {
				return
			}
			seen[p] = struct{}{}
			projects = append(projects, p)
		}

		for _, p := range overrides {
			add(p)
		}

		indexed, err := lister.Projects(ctx)
		if err != nil {
			// Degrade to the override list rather than failing the call.
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			slog.Warn("Failed to list projects from vector backend", "error", err)
		}
		for _, p := range indexed {
			add(p)
		}

		sort.Strings(projects)
		if projects == nil {
			projects = []string{}
		}
		c.JSON(http.StatusOK, gin.H{"projects": projects})
	}
}

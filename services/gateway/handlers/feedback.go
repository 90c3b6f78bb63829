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
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/codes"

	"github.com/AleutianAI/AleutianInsight/services/gateway/datatypes"
	"github.com/AleutianAI/AleutianInsight/services/gateway/store"
)

// HandleFeedback serves POST /feedback: attaches a verdict to a prior
// query's metric record.
func HandleFeedback(st store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := queryTracer.Start(c.Request.Context(), "HandleFeedback")
		defer span.End()

		var req datatypes.FeedbackRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			bindingError(c, err)
			return
		}

		feedback := datatypes.QueryFeedback{
			Value:     req.Feedback,
			Comment:   req.Comment,
			Timestamp: time.Now().UTC(),
		}
		err := st.AttachFeedback(ctx, req.RequestID, feedback)
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "no metric found for requestId",
			})
			return
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			slog.Error("Failed to attach feedback", "requestId", req.RequestID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record feedback"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    "recorded",
			"requestId": req.RequestID,
		})
	}
}

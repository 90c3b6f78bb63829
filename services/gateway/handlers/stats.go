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
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/codes"

	"github.com/AleutianAI/AleutianInsight/services/gateway/conversation"
	"github.com/AleutianAI/AleutianInsight/services/llm/fallback"
)

// HandleQueueStats serves GET /queue/stats: an observability readout of
// active conversations and provider health.
func HandleQueueStats(ctrl *conversation.Controller, embedding *fallback.EmbeddingChain, synthesis *fallback.SynthesisChain) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := queryTracer.Start(c.Request.Context(), "HandleQueueStats")
		defer span.End()

		active, err := ctrl.Active(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			slog.Warn("Failed to list active conversations", "error", err)
		}

		conversations := make([]gin.H, 0, len(active))
		for _, state := range active {
			conversations = append(conversations, gin.H{
				"conversationId": state.ID,
				"phase":          state.Phase,
				"round":          state.Round,
				"startedAt":      state.StartedAt,
			})
		}

		providers := gin.H{}
		if embedding != nil {
			providers["embedding"] = embedding.Health()
		}
		if synthesis != nil {
			providers["synthesis"] = synthesis.Health()
		}

		c.JSON(http.StatusOK, gin.H{
			"activeConversations": len(active),
			"conversations":       conversations,
			"providers":           providers,
		})
	}
}

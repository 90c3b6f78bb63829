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
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/AleutianInsight/services/gateway/conversation"
	"github.com/AleutianAI/AleutianInsight/services/gateway/datatypes"
	"github.com/AleutianAI/AleutianInsight/services/gateway/middleware"
	"github.com/AleutianAI/AleutianInsight/services/gateway/orchestrator"
)

var queryTracer = otel.Tracer("aleutian.gateway.handlers")

// statusCode maps a query outcome to its HTTP code: 200 success, 207
// partial, 503 unavailable.
func statusCode(status datatypes.QueryStatus) int {
	switch status {
	case datatypes.StatusPartial:
		return http.StatusMultiStatus
	case datatypes.StatusUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusOK
	}
}

// normalizeRequest fills server-side defaults: request id, timestamp,
// and auto-detected modes.
func normalizeRequest(c *gin.Context, req *datatypes.QueryRequest) {
	if req.RequestID == "" {
		req.RequestID = middleware.GetRequestID(c)
	}
	if req.Timestamp.IsZero() {
		req.Timestamp = time.Now().UTC()
	}
	if req.SynthesisMode == "" {
		req.SynthesisMode = datatypes.SynthesisRaw
	}
	if req.Mode == "" {
		// Ambiguous queries default to the conversational path.
		if conversation.Classify(req.Query) != conversation.Clear {
			req.Mode = datatypes.ModeConversational
		} else {
			req.Mode = datatypes.ModeOneShot
		}
	}
}

// recordQueryOutcome annotates the handler span with the request and
// outcome facts dashboards filter on.
func recordQueryOutcome(span trace.Span, req datatypes.QueryRequest, resp *datatypes.QueryResponse) {
	span.SetAttributes(attribute.String("request_id", req.RequestID))
	span.SetAttributes(attribute.String("intent", string(resp.Intent)))
	span.SetAttributes(attribute.String("status", string(resp.Status)))
	span.SetAttributes(attribute.Int("semantic_count", len(resp.Semantic.Matches)))
	span.SetAttributes(attribute.Int("structural_count", len(resp.Structural.Relationships)))
}

// HandleQuery serves POST /query: the one-shot pipeline. An ambiguous
// query in conversational mode diverts to the controller and returns a
// ConversationResponse instead.
func HandleQuery(orch *orchestrator.Orchestrator, ctrl *conversation.Controller) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := queryTracer.Start(c.Request.Context(), "HandleQuery")
		defer span.End()

		var req datatypes.QueryRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			bindingError(c, err)
			return
		}
		normalizeRequest(c, &req)

		report := conversation.Analyze(req.Query)
		if report.Classification != conversation.Clear && req.Mode != datatypes.ModeOneShot {
			convResp, err := ctrl.Start(ctx, req, orchestrator.ClassifyIntent(req.Query), report.Classification)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				slog.Error("Failed to start conversation", "error", err)
				c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to start conversation"})
				return
			}
			c.JSON(http.StatusOK, convResp)
			return
		}

		resp := orch.Execute(ctx, req)
		recordQueryOutcome(span, req, resp)
		c.JSON(statusCode(resp.Status), resp)
	}
}

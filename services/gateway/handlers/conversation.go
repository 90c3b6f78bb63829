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

	"github.com/AleutianAI/AleutianInsight/services/gateway/conversation"
	"github.com/AleutianAI/AleutianInsight/services/gateway/datatypes"
	"github.com/AleutianAI/AleutianInsight/services/gateway/middleware"
	"github.com/AleutianAI/AleutianInsight/services/gateway/observability"
	"github.com/AleutianAI/AleutianInsight/services/gateway/orchestrator"
)

// HandleConversationStart serves POST /conversation. A clear query
// executes immediately; an ambiguous one opens a clarification
// conversation.
func HandleConversationStart(orch *orchestrator.Orchestrator, ctrl *conversation.Controller, metrics *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := queryTracer.Start(c.Request.Context(), "HandleConversationStart")
		defer span.End()

		var req datatypes.QueryRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			bindingError(c, err)
			return
		}
		req.Mode = datatypes.ModeConversational
		normalizeRequest(c, &req)

		report := conversation.Analyze(req.Query)
		if report.Classification == conversation.Clear {
			resp := orch.Execute(ctx, req)
			recordQueryOutcome(span, req, resp)
			c.JSON(statusCode(resp.Status), resp)
			return
		}

		convResp, err := ctrl.Start(ctx, req, orchestrator.ClassifyIntent(req.Query), report.Classification)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			slog.Error("Failed to start conversation", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to start conversation"})
			return
		}
		if metrics != nil {
			metrics.ObserveConversation("started")
		}
		c.JSON(http.StatusOK, convResp)
	}
}

// HandleConversationContinue serves POST /conversation/:id/continue.
// The controller either returns the next clarification round or an
// execution request, which this handler runs through the orchestrator in
// one-shot mode.
func HandleConversationContinue(orch *orchestrator.Orchestrator, ctrl *conversation.Controller, metrics *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := queryTracer.Start(c.Request.Context(), "HandleConversationContinue")
		defer span.End()

		var req datatypes.ContinueRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			bindingError(c, err)
			return
		}

		id := c.Param("id")
		outcome, err := ctrl.Continue(ctx, id, req.Answers)
		if errors.Is(err, conversation.ErrConversationNotFound) {
			c.JSON(http.StatusServiceUnavailable, unavailableShell(c, "conversation not found or expired"))
			return
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			slog.Error("Conversation continuation failed", "conversationId", id, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "conversation continuation failed"})
			return
		}

		if outcome.Clarification != nil {
			if metrics != nil {
				metrics.ObserveConversation("continued")
			}
			c.JSON(http.StatusOK, outcome.Clarification)
			return
		}

		if metrics != nil {
			metrics.ObserveConversation("executed")
		}
		exec := outcome.Execute
		// The synthesis preference set when the conversation started
		// carries through to the final execution.
		mode := exec.SynthesisMode
		if mode == "" {
			mode = datatypes.SynthesisRaw
		}
		execReq := datatypes.QueryRequest{
			Query:         exec.EnrichedQuery,
			RequestID:     middleware.GetRequestID(c),
			Timestamp:     time.Now().UTC(),
			Project:       exec.Project,
			Mode:          datatypes.ModeOneShot,
			SynthesisMode: mode,
		}
		resp := orch.Execute(ctx, execReq)
		recordQueryOutcome(span, execReq, resp)
		c.JSON(statusCode(resp.Status), resp)
	}
}

// HandleConversationAbort serves DELETE /conversation/:id. Aborting a
// missing conversation still succeeds.
func HandleConversationAbort(ctrl *conversation.Controller, metrics *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := queryTracer.Start(c.Request.Context(), "HandleConversationAbort")
		defer span.End()

		id := c.Param("id")
		if err := ctrl.Abort(ctx, id); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			slog.Error("Conversation abort failed", "conversationId", id, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "abort failed"})
			return
		}
		if metrics != nil {
			metrics.ObserveConversation("aborted")
		}
		c.JSON(http.StatusOK, gin.H{"status": "aborted", "conversationId": id})
	}
}

// unavailableShell builds the unavailable-shaped error body used when a
// conversation cannot be resumed.
func unavailableShell(c *gin.Context, warning string) *datatypes.QueryResponse {
	return &datatypes.QueryResponse{
		RequestID: middleware.GetRequestID(c),
		Status:    datatypes.StatusUnavailable,
		Intent:    datatypes.IntentUnknown,
		Semantic:  datatypes.SemanticResult{Matches: []datatypes.SemanticMatch{}},
		Structural: datatypes.StructuralResult{
			Relationships: []datatypes.StructuralRelationship{},
		},
		Warnings:        []string{warning},
		FallbackMessage: datatypes.FallbackMessage,
		Timestamp:       time.Now().UTC(),
	}
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AleutianAI/AleutianInsight/services/gateway/conversation"
	"github.com/AleutianAI/AleutianInsight/services/gateway/handlers"
	"github.com/AleutianAI/AleutianInsight/services/gateway/health"
	"github.com/AleutianAI/AleutianInsight/services/gateway/middleware"
	"github.com/AleutianAI/AleutianInsight/services/gateway/observability"
	"github.com/AleutianAI/AleutianInsight/services/gateway/orchestrator"
	"github.com/AleutianAI/AleutianInsight/services/gateway/store"
	"github.com/AleutianAI/AleutianInsight/services/llm/fallback"
)

// Deps carries everything the route table needs.
type Deps struct {
	Orchestrator *orchestrator.Orchestrator
	Controller   *conversation.Controller
	Monitor      *health.Monitor
	Store        store.Store
	Embedding    *fallback.EmbeddingChain
	Synthesis    *fallback.SynthesisChain
	Projects     handlers.ProjectLister
	// ProjectOverrides are merged into GET /projects ahead of the
	// indexed list.
	ProjectOverrides []string
	Metrics          *observability.Metrics
	QueryLimiter     *middleware.RateLimiter
	ConvLimiter      *middleware.RateLimiter
	Version          string
}

// SetupRoutes installs the gateway's route table.
func SetupRoutes(router *gin.Engine, d Deps) {
	router.GET("/", handlers.HandleRoot(d.Version))
	router.GET("/health", handlers.HandleHealth(d.Monitor))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.POST("/query", d.QueryLimiter.Middleware(),
		handlers.HandleQuery(d.Orchestrator, d.Controller))

	conversations := router.Group("/conversation", d.ConvLimiter.Middleware())
	{
		conversations.POST("",
			handlers.HandleConversationStart(d.Orchestrator, d.Controller, d.Metrics))
		conversations.POST("/:id/continue",
			handlers.HandleConversationContinue(d.Orchestrator, d.Controller, d.Metrics))
		conversations.DELETE("/:id",
			handlers.HandleConversationAbort(d.Controller, d.Metrics))
	}

	router.POST("/feedback", handlers.HandleFeedback(d.Store))
	router.GET("/projects", handlers.HandleProjects(d.Projects, d.ProjectOverrides))
	router.GET("/queue/stats", handlers.HandleQueueStats(d.Controller, d.Embedding, d.Synthesis))
}

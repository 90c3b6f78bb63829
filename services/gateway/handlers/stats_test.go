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
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianInsight/services/gateway/conversation"
	"github.com/AleutianAI/AleutianInsight/services/gateway/datatypes"
)

func TestHandleQueueStats_ReportsActiveConversations(t *testing.T) {
	fx := newGatewayFixture(t)
	ctrl := fx.ctrl

	_, err := ctrl.Start(context.Background(), datatypes.QueryRequest{
		Query: "How does it work?",
	}, datatypes.IntentExplanation, conversation.Ambiguous)
	require.NoError(t, err)

	r := gin.New()
	r.GET("/queue/stats", HandleQueueStats(ctrl, nil, nil))
	req := httptest.NewRequest(http.MethodGet, "/queue/stats", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		ActiveConversations int `json:"activeConversations"`
		Conversations       []struct {
			ConversationID string `json:"conversationId"`
			Phase          string `json:"phase"`
			Round          int    `json:"round"`
		} `json:"conversations"`
		Providers map[string]json.RawMessage `json:"providers"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 1, body.ActiveConversations)
	require.Len(t, body.Conversations, 1)
	assert.Equal(t, "analyzing", body.Conversations[0].Phase)
	assert.Equal(t, 1, body.Conversations[0].Round)
	assert.Empty(t, body.Providers, "no chains wired in this fixture")
}

func TestHandleRoot(t *testing.T) {
	r := gin.New()
	r.GET("/", HandleRoot("1.2.3"))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "aleutian-insight-gateway")
	assert.Contains(t, w.Body.String(), "1.2.3")
}

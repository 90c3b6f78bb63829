// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"log"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianInsight/services/gateway"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the gateway HTTP server",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := gateway.ConfigFromEnv()
		if err != nil {
			log.Fatalf("Configuration error: %v", err)
		}
		svc, err := gateway.New(cfg)
		if err != nil {
			log.Fatalf("Failed to initialize gateway: %v", err)
		}
		if err := svc.Run(); err != nil {
			log.Fatalf("Gateway exited with error: %v", err)
		}
	},
}

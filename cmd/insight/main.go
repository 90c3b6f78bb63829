// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command insight runs the engineering support gateway and its
// deploy-time diagnostics.
package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error executing command: %v", err)
	}
}

var rootCmd = &cobra.Command{
	Use:   "insight",
	Short: "AleutianInsight engineering support gateway",
}

func init() {
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		// .env is optional; environment variables win on conflict.
		if err := godotenv.Load(); err == nil {
			log.Println("Loaded configuration from .env")
		}
	}
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(tuneCmd)
	rootCmd.AddCommand(providersCmd)
	providersCmd.AddCommand(providersCheckCmd)
	rootCmd.SetOut(os.Stdout)
}

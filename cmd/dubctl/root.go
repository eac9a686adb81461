package main

import (
	"os"

	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var baseURL string
	var apiKey string

	root := &cobra.Command{
		Use:   "dubctl",
		Short: "Inspect a running redub API server",
	}

	root.PersistentFlags().StringVar(&baseURL, "url", envOrDefault("DUBCTL_API_URL", "http://localhost:8000"), "base URL of the redub API")
	root.PersistentFlags().StringVar(&apiKey, "api-key", envOrDefault("DUBCTL_API_KEY", ""), "API key sent as X-API-Key")

	newClient := func() *apiClient {
		return newAPIClient(baseURL, apiKey)
	}

	root.AddCommand(newStatusCommand(newClient))
	root.AddCommand(newJobsCommand(newClient))

	return root
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

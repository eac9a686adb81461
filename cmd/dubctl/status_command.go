package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

type statusResponse struct {
	ActiveJobs       int             `json:"activeJobs"`
	LocalEngineReady bool            `json:"localEngineReady"`
	FreeVramGb       float64         `json:"freeVramGb"`
	VramKnown        bool            `json:"vramKnown"`
	MuxerAvailable   bool            `json:"muxerAvailable"`
	Credentials      map[string]bool `json:"credentials"`
}

func newStatusCommand(newClient func() *apiClient) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show GPU/VRAM, active jobs, and credential presence",
		RunE: func(cmd *cobra.Command, args []string) error {
			var status statusResponse
			if err := newClient().get("/api/system/status", &status); err != nil {
				return err
			}

			vram := "unknown"
			if status.VramKnown {
				vram = fmt.Sprintf("%.1f GB free", status.FreeVramGb)
			}

			headers := []string{"FIELD", "VALUE"}
			rows := [][]string{
				{"Active jobs", fmt.Sprintf("%d", status.ActiveJobs)},
				{"Local engine ready", fmt.Sprintf("%v", status.LocalEngineReady)},
				{"Free VRAM", vram},
				{"Muxer available", fmt.Sprintf("%v", status.MuxerAvailable)},
			}

			names := make([]string, 0, len(status.Credentials))
			for name := range status.Credentials {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				rows = append(rows, []string{"Credential: " + name, fmt.Sprintf("%v", status.Credentials[name])})
			}

			fmt.Fprintln(cmd.OutOrStdout(), renderTable(headers, rows, []columnAlignment{alignLeft, alignLeft}))
			return nil
		},
	}
}

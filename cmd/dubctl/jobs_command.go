package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/redubline/api/internal/model"
)

func newJobsCommand(newClient func() *apiClient) *cobra.Command {
	return &cobra.Command{
		Use:   "jobs",
		Short: "List jobs known to the server, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			var jobs []model.JobView
			if err := newClient().get("/api/jobs", &jobs); err != nil {
				return err
			}

			if len(jobs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No jobs")
				return nil
			}

			headers := []string{"ID", "STATUS", "STAGE", "PROGRESS"}
			rows := make([][]string, 0, len(jobs))
			for _, j := range jobs {
				rows = append(rows, []string{
					j.ID,
					string(j.Status),
					string(j.CurrentStep),
					fmt.Sprintf("%d%%", j.Progress),
				})
			}

			fmt.Fprintln(cmd.OutOrStdout(), renderTable(headers, rows, []columnAlignment{alignLeft, alignLeft, alignLeft, alignRight}))
			return nil
		},
	}
}

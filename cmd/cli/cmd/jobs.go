package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "List jobs, newest first",
	Run: func(cmd *cobra.Command, args []string) {
		client := NewJobClient(viper.GetString("url"))

		jobs, err := client.ListJobs()
		if err != nil {
			printAPIError(cmd, "List failed", err)
			return
		}

		if len(jobs) == 0 {
			cmd.Println("No jobs found.")
			return
		}

		cmd.Printf("%s%-36s  %-12s  %8s  %8s  %s%s\n", colorBold, "JOB ID", "STATUS", "PROGRESS", "DURATION", "CREATED", colorReset)
		for _, j := range jobs {
			cmd.Printf("%-36s  %-12s  %7d%%  %7ds  %s ago\n", j.JobID, j.Status, j.Progress, j.Duration, relativeTime(j.CreatedAt))
		}
	},
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Show server health and job counts",
	Run: func(cmd *cobra.Command, args []string) {
		client := NewJobClient(viper.GetString("url"))

		h, err := client.Health()
		if err != nil {
			printAPIError(cmd, "Health check failed", err)
			return
		}

		cmd.Printf("Status:     %s\n", h.Status)
		cmd.Printf("Uptime:     %ds\n", h.UptimeSeconds)
		cmd.Printf("Total jobs: %d (queued %d, processing %d, completed %d, failed %d)\n",
			h.TotalJobs, h.Jobs.Queued, h.Jobs.Processing, h.Jobs.Completed, h.Jobs.Failed)
	},
}

func init() {
	rootCmd.AddCommand(jobsCmd)
	rootCmd.AddCommand(healthCmd)
}

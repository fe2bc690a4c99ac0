package cmd

import (
	"fmt"
	"time"

	"github.com/ShivamThakkar1/imgtovideo/pkg/api"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit two images for conversion",
	Long: `Queue a new conversion job. The server answers immediately with a job id;
use --wait to poll until the video is ready.

Example:
  vidctl submit --image1 https://example.com/a.jpg --image2 https://example.com/b.jpg --duration 10
  vidctl submit --image1 https://example.com/a.jpg --image2 https://example.com/b.jpg --duration 5 --text "Hello" --wait`,
	Run: func(cmd *cobra.Command, args []string) {
		flags := cmd.Flags()
		image1, _ := flags.GetString("image1")
		image2, _ := flags.GetString("image2")
		duration, _ := flags.GetInt("duration")
		text, _ := flags.GetString("text")
		wait, _ := flags.GetBool("wait")
		pollInterval, _ := flags.GetDuration("poll-interval")
		waitTimeout, _ := flags.GetDuration("wait-timeout")

		if image1 == "" || image2 == "" {
			cmd.Println("Error: --image1 and --image2 are required")
			return
		}

		client := NewJobClient(viper.GetString("url"))

		result, err := client.Convert(api.ConvertRequest{
			Image1URL: image1,
			Image2URL: image2,
			Duration:  duration,
			Text:      text,
		})
		if err != nil {
			printAPIError(cmd, "Submit failed", err)
			return
		}

		cmd.Printf("✓ Job submitted!\nJob ID: %s\nEstimated time: %ds\nStatus URL: %s\n",
			result.JobID, result.EstimatedTimeSeconds, result.StatusURL)

		if !wait {
			return
		}

		job, err := waitForJob(cmd, client, result.JobID, pollInterval, waitTimeout)
		if err != nil {
			printAPIError(cmd, "Wait failed", err)
			return
		}
		printStatus(cmd, *job)
	},
}

// waitForJob polls until the job is terminal or timeout elapses.
func waitForJob(cmd *cobra.Command, client *JobClient, jobID string, interval, timeout time.Duration) (*api.JobResponse, error) {
	deadline := time.Now().Add(timeout)
	lastProgress := -1

	for {
		job, err := client.GetStatus(jobID)
		if err != nil {
			return nil, err
		}

		if job.Progress != lastProgress {
			cmd.Printf("%s %s\n", colorizeStatus(job.Status), progressBar(job.Progress, 20))
			lastProgress = job.Progress
		}

		if job.Status == "completed" || job.Status == "failed" {
			return job, nil
		}
		if time.Now().After(deadline) {
			return job, fmt.Errorf("timed out waiting for job %s", jobID)
		}
		time.Sleep(interval)
	}
}

func init() {
	flags := submitCmd.Flags()
	flags.String("image1", "", "URL of the first image (required)")
	flags.String("image2", "", "URL of the second image (required)")
	flags.IntP("duration", "d", 5, "Video duration in seconds")
	flags.String("text", "", "Overlay text (optional, server default when empty)")
	flags.BoolP("wait", "w", false, "Wait for the job to finish")
	flags.Duration("poll-interval", 2*time.Second, "Polling interval with --wait")
	flags.Duration("wait-timeout", 10*time.Minute, "Maximum time to wait with --wait")

	rootCmd.AddCommand(submitCmd)
}

package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/ShivamThakkar1/imgtovideo/pkg/api"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var statusCmd = &cobra.Command{
	Use:   "status [job_id]",
	Short: "Get status of a job",
	Long:  `Retrieve detailed status information for a job, including its current state (queued, processing, completed, failed), progress, remaining time and download link.`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		client := NewJobClient(viper.GetString("url"))

		job, err := client.GetStatus(args[0])
		if err != nil {
			printAPIError(cmd, "Status request failed", err)
			return
		}

		printStatus(cmd, *job)
	},
}

func printStatus(cmd *cobra.Command, job api.JobResponse) {
	// Header with status icon
	icon := statusIcon(job.Status)
	cmd.Printf("%s %sJob Details%s\n", icon, colorBold, colorReset)
	cmd.Println("──────────────────────────────")

	cmd.Printf("%sID:%s          %s\n", colorDim, colorReset, job.JobID)
	cmd.Printf("%sStatus:%s      %s\n", colorDim, colorReset, colorizeStatus(job.Status))
	cmd.Printf("%sProgress:%s    %s\n", colorDim, colorReset, progressBar(job.Progress, 20))
	cmd.Printf("%sDuration:%s    %ds\n", colorDim, colorReset, job.Duration)
	cmd.Printf("%sEstimate:%s    %ds\n", colorDim, colorReset, job.EstimatedTimeSeconds)

	if job.RemainingTimeSeconds != nil && job.Status == "processing" {
		cmd.Printf("%sRemaining:%s   ~%ds\n", colorDim, colorReset, *job.RemainingTimeSeconds)
	}

	if job.Error != "" {
		cmd.Printf("%sError:%s       %s%s%s\n", colorDim, colorReset, colorRed, job.Error, colorReset)
	}

	cmd.Printf("%sCreated:%s     %s\n", colorDim, colorReset, formatTimeWithRelative(&job.CreatedAt))
	cmd.Printf("%sStarted:%s     %s\n", colorDim, colorReset, formatTimeWithRelative(job.StartedAt))

	// Duration if both times available
	if job.StartedAt != nil && job.CompletedAt != nil {
		took := job.CompletedAt.Sub(*job.StartedAt)
		cmd.Printf("%sFinished:%s    %s %s(%s)%s\n", colorDim, colorReset,
			formatTimeWithRelative(job.CompletedAt),
			colorCyan, formatDuration(took), colorReset)
	} else {
		cmd.Printf("%sFinished:%s    %s\n", colorDim, colorReset, formatTimeWithRelative(job.CompletedAt))
	}

	if job.DownloadURL != "" {
		size := ""
		if job.FileSizeMB != nil {
			size = fmt.Sprintf(" (%.2f MB)", *job.FileSizeMB)
		}
		cmd.Printf("%sDownload:%s    %s%s\n", colorDim, colorReset, job.DownloadURL, size)
	}
}

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorBold   = "\033[1m"
	colorDim    = "\033[2m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
)

func statusIcon(status string) string {
	switch status {
	case "completed":
		return colorGreen + "✓" + colorReset
	case "failed":
		return colorRed + "✗" + colorReset
	case "processing":
		return colorYellow + "⏳" + colorReset
	case "queued":
		return colorCyan + "◯" + colorReset
	default:
		return "•"
	}
}

func colorizeStatus(status string) string {
	icon := statusIcon(status)
	switch status {
	case "completed":
		return icon + " " + colorGreen + status + colorReset
	case "failed":
		return icon + " " + colorRed + status + colorReset
	case "processing":
		return icon + " " + colorYellow + status + colorReset
	case "queued":
		return icon + " " + colorCyan + status + colorReset
	default:
		return status
	}
}

func progressBar(progress, width int) string {
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	filled := progress * width / 100
	return fmt.Sprintf("[%s%s] %d%%", strings.Repeat("#", filled), strings.Repeat(".", width-filled), progress)
}

func formatTimeWithRelative(t *time.Time) string {
	if t == nil {
		return "-"
	}
	relative := relativeTime(*t)
	return fmt.Sprintf("%s %s(%s ago)%s", t.Format("Mon, 02 Jan 2006 15:04:05 MST"), colorDim, relative, colorReset)
}

func relativeTime(t time.Time) string {
	duration := time.Since(t)

	if duration < time.Minute {
		return fmt.Sprintf("%ds", int(duration.Seconds()))
	} else if duration < time.Hour {
		return fmt.Sprintf("%dm", int(duration.Minutes()))
	} else if duration < 24*time.Hour {
		return fmt.Sprintf("%dh", int(duration.Hours()))
	} else {
		days := int(duration.Hours() / 24)
		if days == 1 {
			return "1 day"
		}
		return fmt.Sprintf("%d days", days)
	}
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	} else if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	} else if d < time.Hour {
		return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
}

func printAPIError(cmd *cobra.Command, prefix string, err error) {
	if apiErr, ok := err.(*APIError); ok {
		cmd.Printf("%s (%d): %s\n", prefix, apiErr.StatusCode, apiErr.Message)
		return
	}
	cmd.Printf("%s: %v\n", prefix, err)
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

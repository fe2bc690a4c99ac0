package cmd

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var downloadCmd = &cobra.Command{
	Use:   "download [job_id]",
	Short: "Download the video of a completed job",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		jobID := args[0]
		output, _ := cmd.Flags().GetString("output")
		if output == "" {
			output = "video_" + jobID + ".mp4"
		}

		// Stream into a sibling temp file so a failed download never clobbers
		// an existing file at the destination.
		f, err := os.CreateTemp(filepath.Dir(output), "."+filepath.Base(output)+".*.part")
		if err != nil {
			cmd.Printf("Failed to create %s: %v\n", output, err)
			return
		}
		tmp := f.Name()

		client := NewJobClient(viper.GetString("url"))
		n, err := client.Download(jobID, f)
		closeErr := f.Close()
		if err != nil {
			os.Remove(tmp)
			printAPIError(cmd, "Download failed", err)
			return
		}
		if closeErr != nil {
			os.Remove(tmp)
			cmd.Printf("Failed to write %s: %v\n", output, closeErr)
			return
		}
		if err := os.Rename(tmp, output); err != nil {
			os.Remove(tmp)
			cmd.Printf("Failed to save %s: %v\n", output, err)
			return
		}

		cmd.Printf("✓ Saved %s (%.2f MB)\n", output, float64(n)/(1024*1024))
	},
}

func init() {
	downloadCmd.Flags().StringP("output", "o", "", "Output file (default video_<job_id>.mp4)")
	rootCmd.AddCommand(downloadCmd)
}

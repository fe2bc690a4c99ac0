package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "vidctl",
	Short: "vidctl is a command line tool for the imgtovideo service",
	Long: `vidctl is the command-line interface for imgtovideo, a service that turns
two remote images into a short vertical video.

Jobs are processed asynchronously: a submission returns a job id right away and
the video is rendered in the background.

Common workflows:

  Submit a job and wait for the video:
    vidctl submit --image1 https://example.com/a.jpg --image2 https://example.com/b.jpg --duration 10 --wait

  Check job status:
    vidctl status <job-id>

  Download the finished video:
    vidctl download <job-id> -o video.mp4

  List jobs and check server health:
    vidctl jobs
    vidctl health

Configuration:
  Set the API endpoint via flag, environment variable or config file:
    IMGTOVIDEO_URL    API endpoint (default: http://localhost:8080)`,
}

func Execute() error {
	return rootCmd.Execute()
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}

		// Search config in home directory with name ".vidctl"
		viper.AddConfigPath(home)
		viper.SetConfigName(".vidctl")
		viper.SetConfigType("yaml")
	}

	// Read environment variables that match "IMGTOVIDEO_VARNAME"
	viper.SetEnvPrefix("IMGTOVIDEO")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Println("Using config file:", viper.ConfigFileUsed())
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.vidctl.yaml)")

	rootCmd.PersistentFlags().String("url", "http://localhost:8080", "imgtovideo API URL")
	viper.BindPFlag("url", rootCmd.PersistentFlags().Lookup("url"))
}

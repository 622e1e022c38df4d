package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var logLevel string

var rootCmd = &cobra.Command{
	Use:   "dispatch",
	Short: "Fog City Dispatch game server",
	Long:  `Fog City Dispatch runs timed dispatcher shifts: deal a deck of emergency calls, answer them, and score story arcs.`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error); overrides LOG_LEVEL")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(playCmd)
}

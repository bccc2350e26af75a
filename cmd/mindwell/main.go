package main

import (
	"log"
	"os"

	"github.com/spf13/cobra"
)

// Version information (set via ldflags)
var Version = "dev"

var configFile string

func main() {
	rootCmd := &cobra.Command{
		Use:   "mindwell",
		Short: "Emotion fusion and risk-scoring companion engine",
		Long: `mindwell ingests chat messages, voice notes and camera frames,
fuses the per-modality emotion signals into a single estimate, tracks a
decaying risk score per session and produces supportive replies.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", os.Getenv("MINDWELL_CONFIG"), "configuration file (YAML)")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newChatCmd())
	rootCmd.AddCommand(newVersionCmd())

	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

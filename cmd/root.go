package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgFile   string
	logFormat string
)

// Version is set at build time via -ldflags.
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "aquaponics-server",
	Short: "Sensor data server for aquaponics water level and temperature monitoring",
	Long: `aquaponics-server ingests periodic water level and temperature readings over
HTTP, persists them in PostgreSQL or SQLite, and serves recent and latest
readings back to clients. When the durable database is unreachable the server
degrades to a bounded in-memory buffer instead of failing requests.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "json", "log format (text or json)")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

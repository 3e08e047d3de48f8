// Command chronodb runs and drives the bitemporal document store:
// serve hosts the consume loop and a metrics/health HTTP endpoint,
// submit feeds a transaction into the log from stdin, and as-of,
// history, and scan answer reads against the indexed state.
package main

import (
	"fmt"
	"os"

	"github.com/cuemby/chronodb/pkg/config"
	"github.com/cuemby/chronodb/pkg/log"
	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "chronodb",
	Short: "chronodb - a bitemporal, content-addressed document store",
	Long: `chronodb indexes an append-only transaction log and document
log into an ordered key-value store, answering business-time and
transaction-time queries over the result.`,
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to a YAML configuration file")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error); overrides config")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format; overrides config")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(asOfCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(scanCmd)
}

func initLogging() {
	level, _ := rootCmd.PersistentFlags().GetString("log-level")
	jsonOut, _ := rootCmd.PersistentFlags().GetBool("log-json")
	path, _ := rootCmd.PersistentFlags().GetString("config")
	if cfg, err := config.Load(path); err == nil {
		if level == "" {
			level = cfg.Log.Level
		}
		if !jsonOut {
			jsonOut = cfg.Log.JSONOutput
		}
	}
	if level == "" {
		level = "info"
	}
	log.Init(log.Config{Level: log.Level(level), JSONOutput: jsonOut})
}

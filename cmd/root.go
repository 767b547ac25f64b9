package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"vatfiling/internal/logger"
)

var version = "1.0.0"

var rootCmd = &cobra.Command{
	Use:   "vatfiling",
	Short: "vatfiling - UAE VAT return processing",
	Long: `vatfiling converts, validates, compares and aggregates UAE VAT return
workbooks (VAT 201), and manages the filings built from them.

Workbooks can be local .xlsx files, uploads in object storage, or Google
Sheets. Filing state lives in PostgreSQL (DATABASE_URL).`,
	Version: version,
	Run: func(cmd *cobra.Command, args []string) {
		log := logger.WithComponent("root")
		log.Info().
			Str("version", version).
			Msg("vatfiling executed")

		fmt.Println("Welcome to vatfiling!")
		fmt.Println("Use --help to see available commands and options.")
	},
}

func Execute() {
	log := logger.WithComponent("cmd")

	if err := rootCmd.Execute(); err != nil {
		log.Error().
			Err(err).
			Msg("Command execution failed")
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().BoolP("version", "v", false, "Print version information")
	rootCmd.PersistentFlags().Int("timeout", 300, "Processing timeout in seconds")
}

package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"vatfiling/internal/aggregate"
	"vatfiling/internal/logger"
	"vatfiling/internal/vatreturn"
	"vatfiling/internal/xlsx"
)

var aggregateCmd = &cobra.Command{
	Use:   "aggregate <workbook> [workbook...]",
	Short: "Sum the amounts of several VAT returns into one",
	Long: `Aggregate several VAT return workbooks into one return by summing every
line amount.

Inputs that cannot be read are skipped and listed under "errors". Output
is a JSON summary (default) or a workbook in the VAT 201 layout.`,
	Example: `  # Aggregate a quarter into JSON
  vatfiling aggregate q1/*.xlsx

  # Aggregate into a workbook
  vatfiling aggregate q1/*.xlsx --to xlsx --output q1-total.xlsx`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAggregate,
}

func init() {
	rootCmd.AddCommand(aggregateCmd)

	aggregateCmd.Flags().String("to", "json", "Output format: json or xlsx")
	aggregateCmd.Flags().StringP("output", "o", "", "Output file path (default: stdout)")
}

// aggregateSummary is the JSON form of a local aggregation.
type aggregateSummary struct {
	Document      *vatreturn.Document `json:"data"`
	TotalInvoices int                 `json:"totalInvoices"`
	Errors        map[string]string   `json:"errors,omitempty"`
}

func runAggregate(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("aggregate")

	to, _ := cmd.Flags().GetString("to")
	outputPath, _ := cmd.Flags().GetString("output")
	to = strings.ToLower(to)

	if to != "json" && to != "xlsx" {
		return fmt.Errorf("unknown output format %q: use json or xlsx", to)
	}
	if to == "xlsx" && outputPath == "" {
		return fmt.Errorf("--output is required for xlsx output")
	}

	cfg, err := loadConfig(log)
	if err != nil {
		return err
	}

	ctx, cancel := commandContext(cmd, log)
	defer cancel()

	loader, err := newDocumentLoader(ctx, cfg, args, log)
	if err != nil {
		return handleFilingError(err, log)
	}

	docs := make([]*vatreturn.Document, 0, len(args))
	failures := make(map[string]string)
	for _, r := range loader.LoadAll(ctx, args) {
		if r.Err != nil {
			log.Warn().Err(r.Err).Str("input", r.Ref).Msg("Skipping unreadable input")
			failures[r.Ref] = r.Err.Error()
			continue
		}
		docs = append(docs, r.Document)
	}
	if len(docs) == 0 {
		return fmt.Errorf("none of the %d input(s) could be read", len(args))
	}

	total := aggregate.AggregateAmounts(docs)

	log.Info().
		Int("aggregated", len(docs)).
		Int("skipped", len(failures)).
		Msg("Aggregation completed")

	if to == "xlsx" {
		data, err := xlsx.Encode(loader.mapper.ToRows(total), xlsx.DefaultSheet)
		if err != nil {
			return handleFilingError(err, log)
		}
		return writeOutput(data, outputPath, log)
	}

	summary := aggregateSummary{Document: total, TotalInvoices: len(docs)}
	if len(failures) > 0 {
		summary.Errors = failures
	}
	return outputJSON(summary, outputPath, log)
}

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"vatfiling/internal/diff"
	"vatfiling/internal/logger"
	"vatfiling/internal/vatreturn"
)

var diffCmd = &cobra.Command{
	Use:   "diff <original> <rectified>",
	Short: "Compare two versions of a VAT return",
	Long: `Compare an original VAT return with its rectified version and render
a change report.

Both inputs are local .xlsx or .json files, Google Sheets URLs or
object-store URLs. Version metadata (GeneratedBy, GeneratedOn) is not
compared. When nothing changed no report is written.

The report lists every changed field with its description and old and new
values, in xlsx (default) or pdf form.`,
	Example: `  # Write an xlsx change report next to the inputs
  vatfiling diff march.xlsx march-rectified.xlsx

  # PDF report to a chosen path
  vatfiling diff march.xlsx march-rectified.xlsx --format pdf --output changes.pdf

  # Only list the changes
  vatfiling diff march.xlsx march-rectified.xlsx --json`,
	Args: cobra.ExactArgs(2),
	RunE: runDiff,
}

func init() {
	rootCmd.AddCommand(diffCmd)

	diffCmd.Flags().String("format", "", "Report format: xlsx or pdf (default: REPORT_FORMAT)")
	diffCmd.Flags().StringP("output", "o", "", "Report path (default: generated report name)")
	diffCmd.Flags().Bool("json", false, "Print the change set as JSON instead of writing a report")
}

func runDiff(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("diff")

	formatName, _ := cmd.Flags().GetString("format")
	outputPath, _ := cmd.Flags().GetString("output")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	originalRef, rectifiedRef := args[0], args[1]

	cfg, err := loadConfig(log)
	if err != nil {
		return err
	}
	if formatName == "" {
		formatName = cfg.ReportFormat
	}
	format, err := diff.ParseFormat(formatName)
	if err != nil {
		return handleFilingError(err, log)
	}

	log.Info().
		Str("original", originalRef).
		Str("rectified", rectifiedRef).
		Str("format", string(format)).
		Msg("Starting comparison")

	ctx, cancel := commandContext(cmd, log)
	defer cancel()

	loader, err := newDocumentLoader(ctx, cfg, args, log)
	if err != nil {
		return handleFilingError(err, log)
	}
	loaded := loader.LoadAll(ctx, []string{originalRef, rectifiedRef})
	for _, r := range loaded {
		if r.Err != nil {
			return handleFilingError(r.Err, log)
		}
	}
	original, rectified := loaded[0].Document, loaded[1].Document

	changes, err := diff.DetectChanges(original, rectified)
	if err != nil {
		return handleFilingError(err, log)
	}

	log.Info().
		Int("changes", len(changes)).
		Msg("Comparison completed")

	if jsonOutput {
		return outputJSON(changes, outputPath, log)
	}
	if !changes.Rectified() {
		fmt.Println("No changes detected")
		return nil
	}

	artifact, err := diff.GenerateReport(changes, diff.Meta{
		InvoiceID:   invoiceIDFor(rectifiedRef, rectified),
		GeneratedBy: rectified.Header[vatreturn.HeaderGeneratedBy],
		GeneratedOn: original.Header[vatreturn.HeaderGeneratedOn],
		RectifiedOn: rectified.Header[vatreturn.HeaderGeneratedOn],
	}, format)
	if err != nil {
		return handleFilingError(err, log)
	}

	if outputPath == "" {
		outputPath = artifact.Name
	}
	if err := writeOutput(artifact.Data, outputPath, log); err != nil {
		return err
	}

	fmt.Printf("%d change(s) written to %s\n", len(changes), outputPath)
	return nil
}

package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"vatfiling/internal/config"
	"vatfiling/internal/logger"
	"vatfiling/pkg/services"
)

var filingCmd = &cobra.Command{
	Use:   "filing",
	Short: "Manage VAT filings",
	Long: `Manage VAT filings: groups of invoices that are validated, aggregated
and filed together.

A filing starts as Draft, becomes Validated once every invoice passes
validation, and ends as Filed. Rectifying an invoice sends every open
filing that holds it back to Draft.

Required environment variables:
  DATABASE_URL - PostgreSQL connection string

Optional environment variables:
  GCS_BUCKET - keep uploads and reports in Cloud Storage instead of STORAGE_DIR
  GOOGLE_APPLICATION_CREDENTIALS or GOOGLE_CREDENTIALS - for Google Sheets and Cloud Storage`,
}

var filingCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Open a Draft filing over a set of invoices",
	Example: `  vatfiling filing create --business 100123456700003 --invoice INV-1 --invoice INV-2 \
    --from 2025-01-01 --to 2025-03-31`,
	Args: cobra.NoArgs,
	RunE: runFilingCreate,
}

var filingListCmd = &cobra.Command{
	Use:   "list",
	Short: "List filings, newest first",
	Args:  cobra.NoArgs,
	RunE:  runFilingList,
}

var filingShowCmd = &cobra.Command{
	Use:   "show <vat-id>",
	Short: "Show one filing",
	Args:  cobra.ExactArgs(1),
	RunE:  runFilingShow,
}

var filingValidateCmd = &cobra.Command{
	Use:   "validate <vat-id>",
	Short: "Validate every invoice of a filing",
	Args:  cobra.ExactArgs(1),
	RunE:  runFilingValidate,
}

var filingAggregateCmd = &cobra.Command{
	Use:   "aggregate <vat-id>",
	Short: "Sum the invoices of a filing and export the totals",
	Args:  cobra.ExactArgs(1),
	RunE:  runFilingAggregate,
}

var filingTotalsCmd = &cobra.Command{
	Use:   "totals <vat-id>",
	Short: "Show the stored totals of the last aggregation",
	Args:  cobra.ExactArgs(1),
	RunE:  runFilingTotals,
}

var filingRemoveFailedCmd = &cobra.Command{
	Use:   "remove-failed <vat-id> <invoice-id>",
	Short: "Drop an invoice from the failed list of a filing",
	Args:  cobra.ExactArgs(2),
	RunE:  runFilingRemoveFailed,
}

var filingFileCmd = &cobra.Command{
	Use:   "file <vat-id>",
	Short: "Mark a Validated filing as Filed",
	Args:  cobra.ExactArgs(1),
	RunE:  runFilingFile,
}

func init() {
	rootCmd.AddCommand(filingCmd)
	filingCmd.AddCommand(filingCreateCmd, filingListCmd, filingShowCmd, filingValidateCmd,
		filingAggregateCmd, filingTotalsCmd, filingRemoveFailedCmd, filingFileCmd)

	filingCmd.PersistentFlags().StringP("output", "o", "", "Output file path (default: stdout)")

	filingCreateCmd.Flags().String("business", "", "Tax registration number of the filing business")
	filingCreateCmd.Flags().StringSlice("invoice", nil, "Invoice id to include (repeatable)")
	filingCreateCmd.Flags().String("from", "", "First day of the tax period (YYYY-MM-DD)")
	filingCreateCmd.Flags().String("to", "", "Last day of the tax period (YYYY-MM-DD)")
	_ = filingCreateCmd.MarkFlagRequired("business")

	filingListCmd.Flags().Int("page", 1, "Page number, starting at 1")
	filingListCmd.Flags().Int("size", 20, "Filings per page")
}

func runFilingCreate(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("filing")

	businessID, _ := cmd.Flags().GetString("business")
	invoiceIDs, _ := cmd.Flags().GetStringSlice("invoice")
	from, _ := cmd.Flags().GetString("from")
	to, _ := cmd.Flags().GetString("to")
	outputPath, _ := cmd.Flags().GetString("output")

	period, err := parsePeriod(from, to)
	if err != nil {
		return err
	}

	return withFilingService(cmd, log, func(ctx context.Context, _ *config.Config, svc services.FilingService) error {
		f, err := svc.CreateFiling(ctx, businessID, invoiceIDs, period)
		if err != nil {
			return err
		}
		return outputJSON(f, outputPath, log)
	})
}

func runFilingList(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("filing")

	page, _ := cmd.Flags().GetInt("page")
	size, _ := cmd.Flags().GetInt("size")
	outputPath, _ := cmd.Flags().GetString("output")

	return withFilingService(cmd, log, func(ctx context.Context, _ *config.Config, svc services.FilingService) error {
		result, err := svc.ListFilings(ctx, page, size)
		if err != nil {
			return err
		}
		return outputJSON(result, outputPath, log)
	})
}

func runFilingShow(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("filing")
	outputPath, _ := cmd.Flags().GetString("output")

	return withFilingService(cmd, log, func(ctx context.Context, _ *config.Config, svc services.FilingService) error {
		f, err := svc.GetFiling(ctx, args[0])
		if err != nil {
			return err
		}
		return outputJSON(f, outputPath, log)
	})
}

func runFilingValidate(cmd *cobra.Command, args []string) error {
	log := logger.WithFiling(logger.WithComponent("filing"), args[0])
	outputPath, _ := cmd.Flags().GetString("output")

	return withFilingService(cmd, log, func(ctx context.Context, _ *config.Config, svc services.FilingService) error {
		result, err := svc.ValidateFiling(ctx, args[0])
		if err != nil {
			return err
		}

		log.Info().
			Bool("general_status", result.GeneralStatus).
			Int("failed_invoices", len(result.FailedInvoices)).
			Msg("Filing validated")

		return outputJSON(result, outputPath, log)
	})
}

func runFilingAggregate(cmd *cobra.Command, args []string) error {
	log := logger.WithFiling(logger.WithComponent("filing"), args[0])
	outputPath, _ := cmd.Flags().GetString("output")

	return withFilingService(cmd, log, func(ctx context.Context, _ *config.Config, svc services.FilingService) error {
		summary, err := svc.AggregateFiling(ctx, args[0])
		if err != nil {
			return err
		}
		return outputJSON(summary, outputPath, log)
	})
}

func runFilingTotals(cmd *cobra.Command, args []string) error {
	log := logger.WithFiling(logger.WithComponent("filing"), args[0])
	outputPath, _ := cmd.Flags().GetString("output")

	return withFilingService(cmd, log, func(ctx context.Context, _ *config.Config, svc services.FilingService) error {
		doc, err := svc.Totals(ctx, args[0])
		if err != nil {
			return err
		}
		return outputJSON(doc, outputPath, log)
	})
}

func runFilingRemoveFailed(cmd *cobra.Command, args []string) error {
	log := logger.WithFiling(logger.WithComponent("filing"), args[0])
	outputPath, _ := cmd.Flags().GetString("output")

	return withFilingService(cmd, log, func(ctx context.Context, _ *config.Config, svc services.FilingService) error {
		f, err := svc.RemoveFailedInvoice(ctx, args[0], args[1])
		if err != nil {
			return err
		}
		return outputJSON(f, outputPath, log)
	})
}

func runFilingFile(cmd *cobra.Command, args []string) error {
	log := logger.WithFiling(logger.WithComponent("filing"), args[0])

	return withFilingService(cmd, log, func(ctx context.Context, _ *config.Config, svc services.FilingService) error {
		f, err := svc.MarkFiled(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Filing %s is now %s\n", f.VatID, f.Status)
		return nil
	})
}

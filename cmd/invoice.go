package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"vatfiling/internal/config"
	"vatfiling/internal/logger"
	"vatfiling/internal/objectstore"
	"vatfiling/internal/sheets"
	"vatfiling/pkg/models"
	"vatfiling/pkg/services"
)

var invoiceCmd = &cobra.Command{
	Use:   "invoice",
	Short: "Manage invoice workbooks and their versions",
	Long: `Manage the VAT return workbooks behind a filing.

Each invoice keeps its current workbook and the one it replaced. Uploading
or registering a new workbook for a known invoice makes it the current
version; "invoice diff" then compares the two and writes a change report.

Required environment variables:
  DATABASE_URL - PostgreSQL connection string`,
}

var invoiceUploadCmd = &cobra.Command{
	Use:   "upload <invoice-id> <workbook>",
	Short: "Upload a workbook as the current version of an invoice",
	Example: `  # First upload
  vatfiling invoice upload INV-1 march.xlsx --business 100123456700003

  # Rectified version
  vatfiling invoice upload INV-1 march-rectified.xlsx`,
	Args: cobra.ExactArgs(2),
	RunE: runInvoiceUpload,
}

var invoiceRegisterCmd = &cobra.Command{
	Use:   "register <invoice-id>",
	Short: "Register a Google Sheet or stored workbook as an invoice",
	Long: `Register a workbook that already lives in a Google Sheet or in the
object store. --url takes a comma-separated list; the first entry that is
a Google Sheets URL or lives under the store's base URL is used.`,
	Example: `  vatfiling invoice register INV-2 --url https://docs.google.com/spreadsheets/d/abc/edit`,
	Args:    cobra.ExactArgs(1),
	RunE:    runInvoiceRegister,
}

var invoiceValidateCmd = &cobra.Command{
	Use:   "validate <invoice-id>",
	Short: "Validate the current version of one invoice",
	Args:  cobra.ExactArgs(1),
	RunE:  runInvoiceValidate,
}

var invoiceErrorsCmd = &cobra.Command{
	Use:   "errors <invoice-id>",
	Short: "Print the plain-text error report of one invoice",
	Args:  cobra.ExactArgs(1),
	RunE:  runInvoiceErrors,
}

var invoiceDiffCmd = &cobra.Command{
	Use:   "diff <invoice-id>",
	Short: "Compare the two latest versions of an invoice",
	Long: `Compare the current version of an invoice with the one it replaced.

When anything changed a report is stored and every open filing holding
the invoice goes back to Draft.`,
	Args: cobra.ExactArgs(1),
	RunE: runInvoiceDiff,
}

func init() {
	rootCmd.AddCommand(invoiceCmd)
	invoiceCmd.AddCommand(invoiceUploadCmd, invoiceRegisterCmd, invoiceValidateCmd, invoiceErrorsCmd, invoiceDiffCmd)

	invoiceCmd.PersistentFlags().StringP("output", "o", "", "Output file path (default: stdout)")

	invoiceUploadCmd.Flags().String("business", "", "Tax registration number of the filing business")

	invoiceRegisterCmd.Flags().String("url", "", "Google Sheets or object-store URL(s), comma separated")
	invoiceRegisterCmd.Flags().String("business", "", "Tax registration number of the filing business")
	_ = invoiceRegisterCmd.MarkFlagRequired("url")
}

func runInvoiceUpload(cmd *cobra.Command, args []string) error {
	invoiceID, path := args[0], args[1]
	log := logger.WithInvoice(logger.WithComponent("invoice"), invoiceID)

	businessID, _ := cmd.Flags().GetString("business")
	outputPath, _ := cmd.Flags().GetString("output")

	fileInfo, err := validateWorkbookFile(path, log)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read workbook: %w", err)
	}

	log.Info().
		Str("file", path).
		Int64("size", fileInfo.Size()).
		Msg("Uploading invoice workbook")

	return withFilingService(cmd, log, func(ctx context.Context, _ *config.Config, svc services.FilingService) error {
		inv, err := svc.UploadInvoice(ctx, invoiceID, filepath.Base(path), data)
		if err != nil {
			return err
		}
		if businessID != "" {
			if err := svc.RegisterInvoice(ctx, &models.Invoice{InvoiceID: invoiceID, BusinessID: businessID}); err != nil {
				return err
			}
			inv.BusinessID = businessID
		}
		return outputJSON(inv, outputPath, log)
	})
}

func runInvoiceRegister(cmd *cobra.Command, args []string) error {
	invoiceID := args[0]
	log := logger.WithInvoice(logger.WithComponent("invoice"), invoiceID)

	urls, _ := cmd.Flags().GetString("url")
	businessID, _ := cmd.Flags().GetString("business")

	return withFilingService(cmd, log, func(ctx context.Context, cfg *config.Config, svc services.FilingService) error {
		url, err := resolveInvoiceURL(ctx, cfg, urls)
		if err != nil {
			return err
		}
		if err := svc.RegisterInvoice(ctx, &models.Invoice{
			InvoiceID:  invoiceID,
			BusinessID: businessID,
			ObjectKey:  url,
		}); err != nil {
			return err
		}

		log.Info().Str("url", url).Msg("Invoice registered")
		fmt.Printf("Registered %s -> %s\n", invoiceID, url)
		return nil
	})
}

// resolveInvoiceURL picks the first usable entry of a comma-separated URL
// list: a Google Sheet, or an object under the configured store.
func resolveInvoiceURL(ctx context.Context, cfg *config.Config, list string) (string, error) {
	for _, u := range strings.Split(list, ",") {
		if u = strings.TrimSpace(u); sheets.IsSheetURL(u) {
			return u, nil
		}
	}

	objects, err := createObjectStore(ctx, cfg, logger.WithComponent("invoice"))
	if err != nil {
		return "", err
	}
	url, ok := objectstore.ValidateURL(list, objects.BaseURL())
	if !ok {
		return "", fmt.Errorf("%w: none of %q is under %s", objectstore.ErrForeignURL, list, objects.BaseURL())
	}
	return url, nil
}

func runInvoiceValidate(cmd *cobra.Command, args []string) error {
	log := logger.WithInvoice(logger.WithComponent("invoice"), args[0])
	outputPath, _ := cmd.Flags().GetString("output")

	return withFilingService(cmd, log, func(ctx context.Context, _ *config.Config, svc services.FilingService) error {
		result, err := svc.ValidateInvoice(ctx, args[0])
		if err != nil {
			return err
		}
		return outputJSON(result, outputPath, log)
	})
}

func runInvoiceErrors(cmd *cobra.Command, args []string) error {
	log := logger.WithInvoice(logger.WithComponent("invoice"), args[0])
	outputPath, _ := cmd.Flags().GetString("output")

	return withFilingService(cmd, log, func(ctx context.Context, _ *config.Config, svc services.FilingService) error {
		report, err := svc.InvoiceErrors(ctx, args[0])
		if err != nil {
			return err
		}
		return writeOutput([]byte(report+"\n"), outputPath, log)
	})
}

func runInvoiceDiff(cmd *cobra.Command, args []string) error {
	log := logger.WithInvoice(logger.WithComponent("invoice"), args[0])
	outputPath, _ := cmd.Flags().GetString("output")

	return withFilingService(cmd, log, func(ctx context.Context, _ *config.Config, svc services.FilingService) error {
		outcome, err := svc.InvoiceDiff(ctx, args[0])
		if err != nil {
			return err
		}
		return outputJSON(outcome, outputPath, log)
	})
}

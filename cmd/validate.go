package cmd

import (
	"fmt"
	"maps"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"vatfiling/internal/logger"
	"vatfiling/internal/validation"
	"vatfiling/internal/vatreturn"
)

var validateCmd = &cobra.Command{
	Use:   "validate <workbook> [workbook...]",
	Short: "Validate VAT return workbooks without a filing",
	Long: `Validate one or more VAT return workbooks against the VAT rules.

Each input is a local .xlsx or .json file, a Google Sheets URL or an
object-store URL. The invoice id is read from the ID header field and
falls back to the file name. Inputs that cannot be read are reported
under "errors" and fail the batch without stopping it.

Rules come from VAT_RULES_FILE when set and default to the 5% standard
rate otherwise.`,
	Example: `  # Validate a single workbook
  vatfiling validate return.xlsx

  # Validate a quarter for one business
  vatfiling validate q1/*.xlsx --trn 100123456700003 --from 2025-01-01 --to 2025-03-31

  # Print the plain-text error report of each invoice
  vatfiling validate return.xlsx --report`,
	Args: cobra.MinimumNArgs(1),
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().String("trn", "", "Tax registration number of the filing business")
	validateCmd.Flags().String("from", "", "First day of the tax period (YYYY-MM-DD)")
	validateCmd.Flags().String("to", "", "Last day of the tax period (YYYY-MM-DD)")
	validateCmd.Flags().Bool("report", false, "Print plain-text error reports instead of JSON")
	validateCmd.Flags().StringP("output", "o", "", "Output file path (default: stdout)")
}

func runValidate(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("validate")

	trn, _ := cmd.Flags().GetString("trn")
	from, _ := cmd.Flags().GetString("from")
	to, _ := cmd.Flags().GetString("to")
	report, _ := cmd.Flags().GetBool("report")
	outputPath, _ := cmd.Flags().GetString("output")

	period, err := parsePeriod(from, to)
	if err != nil {
		return err
	}

	log.Info().
		Int("inputs", len(args)).
		Str("trn", trn).
		Bool("report", report).
		Msg("Starting validation")

	cfg, err := loadConfig(log)
	if err != nil {
		return err
	}
	validator, err := newValidator(cfg, log)
	if err != nil {
		return err
	}

	ctx, cancel := commandContext(cmd, log)
	defer cancel()

	loader, err := newDocumentLoader(ctx, cfg, args, log)
	if err != nil {
		return handleFilingError(err, log)
	}
	loaded := loader.LoadAll(ctx, args)

	read := make([]*vatreturn.Document, len(loaded))
	for i, r := range loaded {
		read[i] = r.Document
	}
	ids := uniqueInvoiceIDs(args, read)

	invoices := make([]validation.InvoiceResult, 0, len(args))
	failures := make(map[string]error)
	docs := make(map[string]*vatreturn.Document, len(args))

	for i, r := range loaded {
		id := ids[i]
		if r.Err != nil {
			log.Warn().Err(r.Err).Str("input", r.Ref).Msg("Failed to read input, continuing with the rest")
			failures[id] = r.Err
			continue
		}

		docs[id] = r.Document
		invoices = append(invoices, validator.ValidateInvoice(validation.Subject{
			InvoiceID:  id,
			BusinessID: trn,
			Document:   r.Document,
		}))
	}

	result := validator.Compile(invoices, failures, validation.Options{
		Period: period,
		Single: len(args) == 1,
	})

	log.Info().
		Bool("general_status", result.GeneralStatus).
		Int("total_errors", result.TotalErrors).
		Int("failed_invoices", len(result.FailedInvoices)).
		Msg("Validation completed")

	if !report {
		return outputJSON(result, outputPath, log)
	}

	reports := make([]string, 0, len(result.Invoices))
	for _, inv := range result.Invoices {
		doc := docs[inv.ID]
		reports = append(reports, validation.ErrorReport(validation.ReportMeta{
			InvoiceID:   inv.ID,
			GeneratedBy: doc.Header[vatreturn.HeaderGeneratedBy],
			GeneratedOn: doc.Header[vatreturn.HeaderGeneratedOn],
		}, inv.Errors))
	}
	for _, id := range slices.Sorted(maps.Keys(result.Errors)) {
		reports = append(reports, fmt.Sprintf("invoiceId:%s\n\n%s", id, result.Errors[id]))
	}
	return writeOutput([]byte(strings.Join(reports, "\n\n----\n\n")+"\n"), outputPath, log)
}

// invoiceIDFor prefers the ID header of doc and falls back to the file
// name of ref without its extension.
func invoiceIDFor(ref string, doc *vatreturn.Document) string {
	if doc != nil {
		if id, ok := doc.Header.Get(vatreturn.HeaderID); ok && id != "" {
			return id
		}
	}
	base := filepath.Base(ref)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// uniqueInvoiceIDs names each input by invoiceIDFor. A name already taken
// falls back to the full ref, and a repeated ref gets a "#n" suffix.
func uniqueInvoiceIDs(refs []string, docs []*vatreturn.Document) []string {
	ids := make([]string, len(refs))
	seen := make(map[string]int, len(refs))
	for i, ref := range refs {
		id := invoiceIDFor(ref, docs[i])
		if _, taken := seen[id]; taken {
			id = ref
		}
		if n, taken := seen[id]; taken {
			seen[id] = n + 1
			id = fmt.Sprintf("%s#%d", id, n+1)
		}
		seen[id] = 1
		ids[i] = id
	}
	return ids
}

package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"vatfiling/internal/logger"
	"vatfiling/internal/sheets"
	"vatfiling/internal/vatreturn"
	"vatfiling/internal/xlsx"
)

var convertCmd = &cobra.Command{
	Use:   "convert <input>",
	Short: "Convert a VAT return between workbook, JSON, XML and Google Sheets",
	Long: `Convert a VAT return between its representations.

The input is a local .xlsx workbook, a local .json document, a Google Sheets
URL or an object-store URL. The output format is chosen with --to:

  json   canonical JSON document (default)
  xlsx   workbook in the VAT 201 layout
  xml    archival XML return
  sheet  writes the VAT 201 layout into a Google Sheet

Sheet output uses GOOGLE_SHEET_URL and GOOGLE_SHEET_WORKSHEET unless
--sheet-url and --worksheet are given.`,
	Example: `  # Workbook to canonical JSON
  vatfiling convert return.xlsx

  # JSON back to a workbook
  vatfiling convert return.json --to xlsx --output return.xlsx

  # Publish a workbook to a Google Sheet
  vatfiling convert return.xlsx --to sheet --sheet-url https://docs.google.com/spreadsheets/d/abc/edit`,
	Args: cobra.ExactArgs(1),
	RunE: runConvert,
}

func init() {
	rootCmd.AddCommand(convertCmd)

	convertCmd.Flags().String("to", "json", "Output format: json, xlsx, xml or sheet")
	convertCmd.Flags().StringP("output", "o", "", "Output file path (default: stdout)")
	convertCmd.Flags().String("sheet-url", "", "Target Google Sheet for --to sheet (default: GOOGLE_SHEET_URL)")
	convertCmd.Flags().String("worksheet", "", "Target worksheet (default: GOOGLE_SHEET_WORKSHEET)")
}

func runConvert(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("convert")

	to, _ := cmd.Flags().GetString("to")
	outputPath, _ := cmd.Flags().GetString("output")
	sheetURL, _ := cmd.Flags().GetString("sheet-url")
	worksheet, _ := cmd.Flags().GetString("worksheet")

	input := args[0]
	to = strings.ToLower(to)

	log.Info().
		Str("input", input).
		Str("to", to).
		Str("output", outputPath).
		Msg("Starting conversion")

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
	doc, err := loader.Load(ctx, input)
	if err != nil {
		return handleFilingError(err, log)
	}
	mapper := loader.mapper

	switch to {
	case "json":
		return outputJSON(doc, outputPath, log)

	case "xlsx":
		if outputPath == "" {
			return fmt.Errorf("--output is required for xlsx output")
		}
		data, err := xlsx.Encode(mapper.ToRows(doc), xlsx.DefaultSheet)
		if err != nil {
			return handleFilingError(err, log)
		}
		return writeOutput(data, outputPath, log)

	case "xml":
		data, err := vatreturn.EncodeXML(doc)
		if err != nil {
			return handleFilingError(err, log)
		}
		return writeOutput(data, outputPath, log)

	case "sheet":
		if sheetURL == "" {
			sheetURL = cfg.GoogleSheetURL
		}
		if worksheet == "" {
			worksheet = cfg.GoogleSheetWorksheet
		}
		if sheetURL == "" {
			return fmt.Errorf("no target sheet: set --sheet-url or GOOGLE_SHEET_URL")
		}

		sheetsService, err := sheets.NewSheetsService(ctx, sheetURL)
		if err != nil {
			log.Error().Err(err).Msg("Failed to create sheets service")
			return fmt.Errorf("failed to create sheets service: %w", err)
		}
		if err := sheetsService.WriteRows(ctx, worksheet, mapper.ToRows(doc)); err != nil {
			return handleFilingError(err, log)
		}

		fmt.Printf("Wrote VAT return to worksheet %q\n", worksheet)
		return nil

	default:
		return fmt.Errorf("unknown output format %q: use json, xlsx, xml or sheet", to)
	}
}

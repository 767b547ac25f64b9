package diff

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	maroto "github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/consts/pagesize"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
	"github.com/xuri/excelize/v2"
)

// Format selects how a change report is rendered.
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatPDF  Format = "pdf"
)

// ParseFormat resolves a format name. An empty name means xlsx.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatXLSX:
		return FormatXLSX, nil
	case FormatPDF:
		return FormatPDF, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// ContentType returns the MIME type of the rendered report.
func (f Format) ContentType() string {
	if f == FormatPDF {
		return "application/pdf"
	}
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

// Meta describes the invoice versions a report compares.
type Meta struct {
	InvoiceID   string
	GeneratedBy string // who produced the rectified version
	GeneratedOn string // when the original invoice was created
	RectifiedOn string // when the rectified version was produced
}

// Artifact is a rendered change report.
type Artifact struct {
	ID          string
	Name        string
	ContentType string
	Data        []byte
}

const reportSheet = "Changes"

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// GenerateReport renders a change set. It makes no decisions; an empty
// change set renders a report with an empty table.
func GenerateReport(changes ChangeSet, meta Meta, format Format) (*Artifact, error) {
	const op = "GenerateReport"

	var (
		data []byte
		err  error
	)
	switch format {
	case FormatXLSX, "":
		format = FormatXLSX
		data, err = renderXLSX(changes, meta)
	case FormatPDF:
		data, err = renderPDF(changes, meta)
	default:
		return nil, NewDiffError(op, ErrUnknownFormat, string(format))
	}
	if err != nil {
		return nil, fmt.Errorf("%s: failed to render %s report: %w", op, format, err)
	}

	id := uuid.NewString()
	invoice := unsafeName.ReplaceAllString(meta.InvoiceID, "_")
	if invoice == "" {
		invoice = "invoice"
	}

	return &Artifact{
		ID:          id,
		Name:        fmt.Sprintf("%s-changes-%s.%s", invoice, id[:8], format),
		ContentType: format.ContentType(),
		Data:        data,
	}, nil
}

func metaRows(meta Meta) [][2]string {
	return [][2]string{
		{"Invoice ID", meta.InvoiceID},
		{"Generated By", meta.GeneratedBy},
		{"Generated On", meta.GeneratedOn},
		{"Rectified On", meta.RectifiedOn},
	}
}

var tableHeader = []string{"Field", "Description", "Old Value", "New Value"}

func renderXLSX(changes ChangeSet, meta Meta) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), reportSheet); err != nil {
		return nil, err
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}

	rowNum := 1
	setRow := func(values []interface{}) error {
		cell, err := excelize.CoordinatesToCellName(1, rowNum)
		if err != nil {
			return err
		}
		rowNum++
		return f.SetSheetRow(reportSheet, cell, &values)
	}

	for _, m := range metaRows(meta) {
		if err := setRow([]interface{}{m[0], m[1]}); err != nil {
			return nil, err
		}
	}
	if err := f.SetCellStyle(reportSheet, "A1", fmt.Sprintf("A%d", rowNum-1), bold); err != nil {
		return nil, err
	}

	rowNum++
	headerRow := rowNum
	header := make([]interface{}, len(tableHeader))
	for i, h := range tableHeader {
		header[i] = h
	}
	if err := setRow(header); err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(reportSheet, fmt.Sprintf("A%d", headerRow), fmt.Sprintf("D%d", headerRow), bold); err != nil {
		return nil, err
	}

	for _, c := range changes {
		if err := setRow([]interface{}{c.Field, Describe(c.Field), c.OldValue, c.NewValue}); err != nil {
			return nil, err
		}
	}

	if err := f.SetColWidth(reportSheet, "A", "A", 22); err != nil {
		return nil, err
	}
	if err := f.SetColWidth(reportSheet, "B", "B", 60); err != nil {
		return nil, err
	}
	if err := f.SetColWidth(reportSheet, "C", "D", 18); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

var (
	colorPrimary = &props.Color{Red: 0, Green: 70, Blue: 127}
	colorGray    = &props.Color{Red: 100, Green: 100, Blue: 100}
)

func renderPDF(changes ChangeSet, meta Meta) ([]byte, error) {
	cfg := config.NewBuilder().
		WithPageSize(pagesize.A4).
		WithLeftMargin(10).WithRightMargin(10).
		WithTopMargin(10).WithBottomMargin(10).
		WithDefaultFont(&props.Font{Family: "helvetica", Size: 9}).
		WithTitle("VAT invoice change report", true).
		Build()

	m := maroto.New(cfg)

	m.AddRows(row.New(10).Add(
		col.New(12).Add(text.New("Invoice Change Report", props.Text{
			Style: fontstyle.Bold, Size: 14, Color: colorPrimary,
		})),
	))
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.5}))
	for _, mr := range metaRows(meta) {
		m.AddRows(row.New(6).Add(
			col.New(3).Add(text.New(mr[0], props.Text{Style: fontstyle.Bold, Size: 9, Top: 1})),
			col.New(9).Add(text.New(mr[1], props.Text{Size: 9, Top: 1})),
		))
	}
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}))

	m.AddRows(pdfTableHeader())
	for _, c := range changes {
		m.AddRows(pdfChangeRow(c))
	}
	if len(changes) == 0 {
		m.AddRows(row.New(7).Add(
			col.New(12).Add(text.New("No changes detected.", props.Text{Size: 8, Color: colorGray, Top: 1})),
		))
	}

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("pdf: generate document: %w", err)
	}
	return doc.GetBytes(), nil
}

func pdfTableHeader() core.Row {
	h := func(label string, size int, a align.Type) core.Col {
		return col.New(size).Add(text.New(label, props.Text{
			Style: fontstyle.Bold, Size: 8, Align: a, Color: colorPrimary, Top: 2, Left: 1, Right: 1,
		}))
	}
	return row.New(8).Add(
		h(tableHeader[0], 2, align.Left),
		h(tableHeader[1], 6, align.Left),
		h(tableHeader[2], 2, align.Right),
		h(tableHeader[3], 2, align.Right),
	)
}

func pdfChangeRow(c Change) core.Row {
	return row.New(7).Add(
		col.New(2).Add(text.New(c.Field, props.Text{Size: 8, Align: align.Left, Top: 1, Left: 1})),
		col.New(6).Add(text.New(Describe(c.Field), props.Text{Size: 8, Align: align.Left, Top: 1, Left: 1})),
		col.New(2).Add(text.New(c.OldValue, props.Text{Size: 8, Align: align.Right, Top: 1, Right: 1})),
		col.New(2).Add(text.New(c.NewValue, props.Text{Size: 8, Align: align.Right, Top: 1, Right: 1})),
	)
}

package vatreturn

import (
	"strings"
	"unicode"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"vatfiling/internal/logger"
)

// Row is one spreadsheet row. Cells are kept as text; numeric cells are
// parsed by the mapper.
type Row []string

const (
	profitSchemeLabel = "Profit Scheme"
	amountColumnLabel = "Amount (AED)"
)

// DefaultLegacyPayableAmount is the value the legacy mapping writes into
// line 14.
var DefaultLegacyPayableAmount = decimal.NewFromInt(9550)

// MapperOptions tunes row mapping.
type MapperOptions struct {
	// LegacyLineMapping reproduces the line handling of returns produced by
	// the previous filing system: line 11 keeps its input tax under
	// VAT_Amount_AED instead of Recoverable_VAT_amount_AED, and line 14
	// Amount_AED is replaced by LegacyPayableAmount.
	LegacyLineMapping   bool
	LegacyPayableAmount decimal.Decimal
}

// Mapper converts between sheet rows and canonical documents.
type Mapper struct {
	opts MapperOptions
	log  zerolog.Logger
}

// NewMapper creates a row mapper.
func NewMapper(opts MapperOptions) *Mapper {
	if opts.LegacyLineMapping && opts.LegacyPayableAmount.IsZero() {
		opts.LegacyPayableAmount = DefaultLegacyPayableAmount
	}
	return &Mapper{
		opts: opts,
		log:  logger.WithComponent("vatreturn-mapper"),
	}
}

// ToCanonical builds a document from sheet rows. Header labels are matched
// exactly, line labels by their leading line code. Column-header rows,
// section titles, blank rows and unknown labels are skipped. Numeric cells
// that do not parse count as zero.
func (m *Mapper) ToCanonical(rows []Row) *Document {
	doc := NewDocument()

	for i, row := range rows {
		label := strings.TrimSpace(cell(row, 0))
		value := strings.TrimSpace(cell(row, 1))

		switch {
		case IsHeaderField(label):
			if value != "" {
				doc.Header[label] = value
			}
		case label == profitSchemeLabel:
			doc.ProfitScheme = isTrue(value)
		case label == "" && value == amountColumnLabel:
			continue
		default:
			line, ok := LookupLabel(label)
			if !ok {
				if label != "" {
					m.log.Debug().
						Int("row", i+1).
						Str("label", label).
						Msg("Skipping row with unrecognised label")
				}
				continue
			}
			doc.Lines[line.Key] = m.readLine(line, row)
		}
	}

	if m.opts.LegacyLineMapping {
		m.applyLegacyMapping(doc)
	}

	return doc
}

func (m *Mapper) readLine(line Line, row Row) LineItem {
	item := make(LineItem, len(line.Fields))
	for idx, f := range ColumnFields(line.Section) {
		if line.Has(f) {
			item[f] = ParseAmount(cell(row, idx+1))
		}
	}
	return item
}

func (m *Mapper) applyLegacyMapping(doc *Document) {
	if item, ok := doc.Lines[LineExpenseTotals]; ok {
		if v, ok := item[FieldRecoverable]; ok {
			delete(item, FieldRecoverable)
			item[FieldVAT] = v
		}
		m.log.Warn().
			Str("line", LineExpenseTotals).
			Msg("Legacy mapping: input tax kept under VAT_Amount_AED")
	}

	item, ok := doc.Lines[LinePayableTax]
	if !ok {
		item = make(LineItem, 1)
		doc.Lines[LinePayableTax] = item
	}
	m.log.Warn().
		Str("line", LinePayableTax).
		Str("original", item[FieldAmount].String()).
		Str("override", m.opts.LegacyPayableAmount.String()).
		Msg("Legacy mapping: payable tax amount overridden")
	item[FieldAmount] = m.opts.LegacyPayableAmount
}

// ToRows renders doc in the fixed sheet layout: header fields, then the
// sales, expense and net-due sections each preceded by a title row, then
// the profit scheme flag. Sections are separated by blank rows.
func (m *Mapper) ToRows(doc *Document) []Row {
	if doc == nil {
		doc = NewDocument()
	}

	rows := make([]Row, 0, 48)
	for _, name := range HeaderFields {
		v, ok := doc.Header.Get(name)
		if !ok && (name == HeaderGeneratedBy || name == HeaderGeneratedOn) {
			continue
		}
		rows = append(rows, Row{name, v})
	}
	rows = append(rows, Row{})

	rows = append(rows, Row{string(SectionSales)})
	rows = append(rows, Row{"", amountColumnLabel, "VAT Amount (AED)", "Adjustment Amount (AED)"})
	rows = append(rows, m.itemRows(doc, SectionSales, 3)...)
	rows = append(rows, Row{})

	rows = append(rows, Row{string(SectionExpenses)})
	rows = append(rows, Row{"", amountColumnLabel, "Recoverable VAT amount (AED)", "Adjustment Amount (AED)"})
	rows = append(rows, m.itemRows(doc, SectionExpenses, 3)...)
	rows = append(rows, Row{})

	rows = append(rows, Row{string(SectionNetDue)})
	rows = append(rows, m.itemRows(doc, SectionNetDue, 1)...)
	rows = append(rows, Row{})

	flag := "FALSE"
	if doc.ProfitScheme {
		flag = "TRUE"
	}
	rows = append(rows, Row{profitSchemeLabel, flag})

	return rows
}

func (m *Mapper) itemRows(doc *Document, s Section, columns int) []Row {
	fields := ColumnFields(s)[:columns]
	lines := LinesIn(s)
	rows := make([]Row, 0, len(lines))
	for _, l := range lines {
		item := doc.Lines[l.Key]
		row := Row{TitleCase(l.Key)}
		for _, f := range fields {
			row = append(row, FormatAmount(item[f]))
		}
		rows = append(rows, row)
	}
	return rows
}

// TitleCase turns a line key into its sheet label: underscores become
// spaces and the first character of every word is upper-cased.
func TitleCase(key string) string {
	var b strings.Builder
	b.Grow(len(key))
	prevWord := false
	for _, r := range strings.ReplaceAll(key, "_", " ") {
		isWord := unicode.IsLetter(r) || unicode.IsDigit(r)
		if isWord && !prevWord {
			r = unicode.ToUpper(r)
		}
		b.WriteRune(r)
		prevWord = isWord
	}
	return b.String()
}

func cell(row Row, idx int) string {
	if idx < len(row) {
		return row[idx]
	}
	return ""
}

func isTrue(s string) bool {
	return strings.EqualFold(strings.TrimSpace(s), "TRUE")
}

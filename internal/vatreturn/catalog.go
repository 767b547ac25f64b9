package vatreturn

import "strings"

// Section names double as the first element of every field path, so they
// must stay byte-stable.
type Section string

const (
	SectionInvoiceDetails Section = "Invoice Details"
	SectionSales          Section = "VAT on Sales and all other Outputs"
	SectionExpenses       Section = "VAT on Expenses and all other Inputs"
	SectionNetDue         Section = "Net VAT Due"
	SectionProfitScheme   Section = "Profit Scheme"
)

// SubField names a numeric column of a line item.
type SubField string

const (
	FieldAmount      SubField = "Amount_AED"
	FieldVAT         SubField = "VAT_Amount_AED"
	FieldRecoverable SubField = "Recoverable_VAT_amount_AED"
	FieldAdjustment  SubField = "Adjustment_Amount_AED"
)

// Canonical line keys.
const (
	LineAbuDhabi           = "1a_Standard_rated_supplies_in_Abu_Dhabi"
	LineDubai              = "1b_Standard_rated_supplies_in_Dubai"
	LineSharjah            = "1c_Standard_rated_supplies_in_Sharjah"
	LineAjman              = "1d_Standard_rated_supplies_in_Ajman"
	LineUmmAlQuwain        = "1e_Standard_rated_supplies_in_Umm_Al_Quwain"
	LineRasAlKhaimah       = "1f_Standard_rated_supplies_in_Ras_Al_Khaimah"
	LineFujairah           = "1g_Standard_rated_supplies_in_Fujairah"
	LineTouristRefunds     = "2_Tax_refunds_provided_to_tourists"
	LineReverseChargeSales = "3_Supplies_subject_to_reverse_charge_provisions"
	LineZeroRated          = "4_Zero_rated_supplies"
	LineExempt             = "5_Exempt_supplies"
	LineImports            = "6_Goods_imported_into_the_UAE"
	LineImportAdjustments  = "7_Adjustments_to_goods_imported_into_the_UAE"
	LineSalesTotals        = "8_Totals"
	LineStandardExpenses   = "9_Standard_rated_expenses"
	LineReverseChargeInput = "10_Supplies_subject_to_reverse_charge_provisions"
	LineExpenseTotals      = "11_Totals"
	LineDueTax             = "12_Total_value_of_due_tax_for_the_period"
	LineRecoverableTax     = "13_Total_Value_of_recoverable_tax_for_the_period"
	LinePayableTax         = "14_Payable_tax_for_the_period"
)

// Header field names, in the order they are written to a sheet.
const (
	HeaderUUID                        = "UUID"
	HeaderProfileID                   = "ProfileID"
	HeaderID                          = "ID"
	HeaderIssueTime                   = "IssueTime"
	HeaderInvoiceTypeCode             = "InvoiceTypeCode"
	HeaderDocumentCurrencyCode        = "DocumentCurrencyCode"
	HeaderTaxCurrencyCode             = "TaxCurrencyCode"
	HeaderAdditionalDocumentReference = "AdditionalDocumentReference"
	HeaderTaxCategoryID               = "TaxCategoryID"
	HeaderTaxCategoryPercent          = "TaxCategoryPercent"
	HeaderTaxCategoryTaxScheme        = "TaxCategoryTaxScheme"
	HeaderGeneratedBy                 = "GeneratedBy"
	HeaderGeneratedOn                 = "GeneratedOn"
)

// HeaderFields lists every recognised header field in row order.
var HeaderFields = []string{
	HeaderUUID,
	HeaderProfileID,
	HeaderID,
	HeaderIssueTime,
	HeaderInvoiceTypeCode,
	HeaderDocumentCurrencyCode,
	HeaderTaxCurrencyCode,
	HeaderAdditionalDocumentReference,
	HeaderTaxCategoryID,
	HeaderTaxCategoryPercent,
	HeaderTaxCategoryTaxScheme,
	HeaderGeneratedBy,
	HeaderGeneratedOn,
}

// Line describes one numbered box of the return.
type Line struct {
	Code    string
	Key     string
	Section Section
	// Fields lists the sub-fields the line carries, in column order.
	Fields []SubField
}

// Has reports whether the line carries sub-field f.
func (l Line) Has(f SubField) bool {
	for _, field := range l.Fields {
		if field == f {
			return true
		}
	}
	return false
}

// IsTotal reports whether the line is a section total.
func (l Line) IsTotal() bool {
	return l.Key == LineSalesTotals || l.Key == LineExpenseTotals
}

var (
	salesFull   = []SubField{FieldAmount, FieldVAT, FieldAdjustment}
	salesVAT    = []SubField{FieldAmount, FieldVAT}
	amountOnly  = []SubField{FieldAmount}
	expenseFull = []SubField{FieldAmount, FieldRecoverable, FieldAdjustment}
)

var catalog = []Line{
	{Code: "1a", Key: LineAbuDhabi, Section: SectionSales, Fields: salesFull},
	{Code: "1b", Key: LineDubai, Section: SectionSales, Fields: salesFull},
	{Code: "1c", Key: LineSharjah, Section: SectionSales, Fields: salesFull},
	{Code: "1d", Key: LineAjman, Section: SectionSales, Fields: salesFull},
	{Code: "1e", Key: LineUmmAlQuwain, Section: SectionSales, Fields: salesFull},
	{Code: "1f", Key: LineRasAlKhaimah, Section: SectionSales, Fields: salesFull},
	{Code: "1g", Key: LineFujairah, Section: SectionSales, Fields: salesFull},
	{Code: "2", Key: LineTouristRefunds, Section: SectionSales, Fields: salesVAT},
	{Code: "3", Key: LineReverseChargeSales, Section: SectionSales, Fields: salesVAT},
	{Code: "4", Key: LineZeroRated, Section: SectionSales, Fields: amountOnly},
	{Code: "5", Key: LineExempt, Section: SectionSales, Fields: amountOnly},
	{Code: "6", Key: LineImports, Section: SectionSales, Fields: salesVAT},
	{Code: "7", Key: LineImportAdjustments, Section: SectionSales, Fields: salesFull},
	{Code: "8", Key: LineSalesTotals, Section: SectionSales, Fields: salesFull},
	{Code: "9", Key: LineStandardExpenses, Section: SectionExpenses, Fields: expenseFull},
	{Code: "10", Key: LineReverseChargeInput, Section: SectionExpenses, Fields: expenseFull},
	{Code: "11", Key: LineExpenseTotals, Section: SectionExpenses, Fields: expenseFull},
	{Code: "12", Key: LineDueTax, Section: SectionNetDue, Fields: amountOnly},
	{Code: "13", Key: LineRecoverableTax, Section: SectionNetDue, Fields: amountOnly},
	{Code: "14", Key: LinePayableTax, Section: SectionNetDue, Fields: amountOnly},
}

var (
	linesByCode = make(map[string]Line, len(catalog))
	linesByKey  = make(map[string]Line, len(catalog))
	headerSet   = make(map[string]struct{}, len(HeaderFields))
)

func init() {
	for _, l := range catalog {
		linesByCode[l.Code] = l
		linesByKey[l.Key] = l
	}
	for _, h := range HeaderFields {
		headerSet[h] = struct{}{}
	}
}

// Lines returns the full line catalog in return order.
func Lines() []Line {
	out := make([]Line, len(catalog))
	copy(out, catalog)
	return out
}

// LinesIn returns the lines of one section in return order.
func LinesIn(s Section) []Line {
	var out []Line
	for _, l := range catalog {
		if l.Section == s {
			out = append(out, l)
		}
	}
	return out
}

// LookupKey resolves a canonical line key.
func LookupKey(key string) (Line, bool) {
	l, ok := linesByKey[key]
	return l, ok
}

// LookupLabel resolves a sheet label to its line by the leading line code.
// "2 Tax Refunds provided to Tourists", "2 Tax Refunds Provided To Tourists"
// and "2_Tax_refunds_provided_to_tourists" all resolve to line 2.
func LookupLabel(label string) (Line, bool) {
	code := lineCode(label)
	if code == "" {
		return Line{}, false
	}
	l, ok := linesByCode[code]
	return l, ok
}

// IsHeaderField reports whether name is a recognised header label.
func IsHeaderField(name string) bool {
	_, ok := headerSet[name]
	return ok
}

// IsLineSection reports whether s holds line items.
func IsLineSection(s Section) bool {
	return s == SectionSales || s == SectionExpenses || s == SectionNetDue
}

// ColumnFields returns the sub-field behind each numeric column of a
// section's data rows.
func ColumnFields(s Section) []SubField {
	switch s {
	case SectionExpenses:
		return expenseFull
	case SectionNetDue:
		return []SubField{FieldAmount, FieldVAT, FieldAdjustment}
	default:
		return salesFull
	}
}

func lineCode(label string) string {
	label = strings.TrimSpace(label)
	if label == "" || label[0] < '0' || label[0] > '9' {
		return ""
	}
	end := strings.IndexAny(label, " _")
	if end < 0 {
		end = len(label)
	}
	return strings.ToLower(label[:end])
}

package validation

import (
	"fmt"
	"strings"
)

// ReportMeta identifies the invoice version an error report is about.
type ReportMeta struct {
	InvoiceID   string
	GeneratedBy string
	GeneratedOn string
}

// ErrorReport renders the plain-text error report for one invoice.
func ErrorReport(meta ReportMeta, errs []ErrorRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "username: %s\ncreated_at: %s\ninvoiceId:%s\n\n", meta.GeneratedBy, meta.GeneratedOn, meta.InvoiceID)

	if len(errs) == 0 {
		b.WriteString("No errors found.")
		return b.String()
	}

	lines := make([]string, len(errs))
	for i, e := range errs {
		lines[i] = fmt.Sprintf("Category: %s, Code: %s, Message: %s", e.Category, e.Code, e.Message)
	}
	b.WriteString(strings.Join(lines, "\n\n"))
	return b.String()
}

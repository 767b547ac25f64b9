package validation_test

import (
	"fmt"

	"vatfiling/internal/validation"
)

func ExampleVATCheck() {
	rules := validation.DefaultRules()

	fmt.Println(validation.VATCheck(rules, map[string]string{"amount1a": "75000", "vatAmount1a": "3750"}))
	fmt.Println(validation.VATCheck(rules, map[string]string{"amount1a": "75000", "vatAmount1a": "4000"}))
	// Output:
	// map[vatAmount1a:true]
	// map[vatAmount1a:false]
}

func ExampleErrorReport() {
	meta := validation.ReportMeta{InvoiceID: "INV-7", GeneratedBy: "amira", GeneratedOn: "2024-11-20"}

	fmt.Println(validation.ErrorReport(meta, []validation.ErrorRecord{
		{Category: "Amount Check", Code: "AMOUNT_NOT_POSITIVE", Message: "amount1a must be positive"},
		{Category: "VAT Check", Code: "VAT_CHECK_FAILED", Message: "vatAmount1a validation failed"},
	}))
	// Output:
	// username: amira
	// created_at: 2024-11-20
	// invoiceId:INV-7
	//
	// Category: Amount Check, Code: AMOUNT_NOT_POSITIVE, Message: amount1a must be positive
	//
	// Category: VAT Check, Code: VAT_CHECK_FAILED, Message: vatAmount1a validation failed
}

func ExampleErrorReport_clean() {
	fmt.Println(validation.ErrorReport(validation.ReportMeta{InvoiceID: "INV-8", GeneratedBy: "omar", GeneratedOn: "2024-11-21"}, nil))
	// Output:
	// username: omar
	// created_at: 2024-11-21
	// invoiceId:INV-8
	//
	// No errors found.
}

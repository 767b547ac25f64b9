package validation_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vatfiling/internal/validation"
	"vatfiling/internal/vatreturn"
	"vatfiling/pkg/models"
)

func TestVATCheck(t *testing.T) {
	rules := validation.DefaultRules()

	tests := []struct {
		name string
		data map[string]string
		want map[string]bool
	}{
		{
			name: "exact standard rate",
			data: map[string]string{"amount1a": "75000", "vatAmount1a": "3750"},
			want: map[string]bool{"vatAmount1a": true},
		},
		{
			name: "over-charged",
			data: map[string]string{"amount1a": "75000", "vatAmount1a": "4000"},
			want: map[string]bool{"vatAmount1a": false},
		},
		{
			name: "ten percent",
			data: map[string]string{"amount9": "1000", "vatAmount9": "100"},
			want: map[string]bool{"vatAmount9": false},
		},
		{
			name: "within tolerance",
			data: map[string]string{"amount1b": "1000", "vatAmount1b": "50.4"},
			want: map[string]bool{"vatAmount1b": true},
		},
		{
			name: "just outside tolerance",
			data: map[string]string{"amount1b": "1000", "vatAmount1b": "50.6"},
			want: map[string]bool{"vatAmount1b": false},
		},
		{
			name: "exempt lines pass regardless of ratio",
			data: map[string]string{"amount2": "100", "vatAmount2": "99", "amount4": "12000", "amount14": "1"},
			want: map[string]bool{"vatAmount2": true, "vatAmount4": true, "vatAmount14": true},
		},
		{
			name: "zero amount on a rated line",
			data: map[string]string{"amount1c": "0", "vatAmount1c": "0"},
			want: map[string]bool{"vatAmount1c": false},
		},
		{
			name: "non-numeric vat",
			data: map[string]string{"amount6": "100", "vatAmount6": "five"},
			want: map[string]bool{"vatAmount6": false},
		},
		{
			name: "exponent notation within range",
			data: map[string]string{"amount1a": "1e3", "vatAmount1a": "5E1"},
			want: map[string]bool{"vatAmount1a": true},
		},
		{
			name: "out-of-range exponent is not a number",
			data: map[string]string{"amount1a": "1000", "vatAmount1a": "1e-3000000"},
			want: map[string]bool{"vatAmount1a": false},
		},
		{
			name: "empty amount is skipped",
			data: map[string]string{"amount1d": "", "vatAmount1d": "5"},
			want: map[string]bool{},
		},
		{
			name: "totals are not amount keys",
			data: map[string]string{"totalAmount8": "100", "totalVatAmount8": "50"},
			want: map[string]bool{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, validation.VATCheck(rules, tt.data))
		})
	}
}

func TestCheckPositiveAmounts(t *testing.T) {
	got := validation.CheckPositiveAmounts(map[string]string{
		"amount1a":     "-1",
		"amount1b":     "0",
		"amount1c":     "250.50",
		"amount1d":     "abc",
		"amount1e":     "",
		"vatAmount1a":  "-5",
		"totalAmount8": "-10",
	})

	assert.Equal(t, map[string]bool{
		"amount1a": false,
		"amount1b": true,
		"amount1c": true,
		"amount1d": false,
	}, got)
}

func TestCheckInvoiceID(t *testing.T) {
	rules := validation.DefaultRules()
	assert.True(t, validation.CheckInvoiceID(rules, "100123456700003"))
	assert.False(t, validation.CheckInvoiceID(rules, "10012345670000"))
	assert.False(t, validation.CheckInvoiceID(rules, "10012345670000A"))
	assert.False(t, validation.CheckInvoiceID(rules, ""))
}

func TestCheckInvoiceDate(t *testing.T) {
	q4 := models.DateRange{
		Start: time.Date(2024, 10, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC),
	}
	assert.True(t, validation.CheckInvoiceDate(q4, "2024-11-20"))
	assert.True(t, validation.CheckInvoiceDate(q4, "11/20/2024"))
	assert.True(t, validation.CheckInvoiceDate(q4, "2024-12-31T18:00:00Z"))
	assert.False(t, validation.CheckInvoiceDate(q4, "2025-01-02"))
	assert.True(t, validation.CheckInvoiceDate(q4, ""), "missing dates are not checked")
	assert.True(t, validation.CheckInvoiceDate(models.DateRange{}, "1999-01-01"))
}

func TestValidateInvoice(t *testing.T) {
	v := validation.NewValidator(validation.DefaultRules())
	doc := vatreturn.NewDocument()
	doc.Lines[vatreturn.LineAbuDhabi] = vatreturn.LineItem{
		vatreturn.FieldAmount: decimal.NewFromInt(-100),
		vatreturn.FieldVAT:    decimal.NewFromInt(-5),
	}
	doc.Lines[vatreturn.LineDubai] = vatreturn.LineItem{
		vatreturn.FieldAmount: decimal.NewFromInt(75000),
		vatreturn.FieldVAT:    decimal.NewFromInt(3750),
	}
	doc.Lines[vatreturn.LineSharjah] = vatreturn.LineItem{
		vatreturn.FieldAmount: decimal.NewFromInt(1000),
		vatreturn.FieldVAT:    decimal.NewFromInt(100),
	}

	res := v.ValidateInvoice(validation.Subject{InvoiceID: "INV-7", Document: doc})

	assert.False(t, res.IsValidated)
	require.NotEmpty(t, res.Errors)
	assert.Equal(t, validation.ErrorRecord{
		Category:  "Amount Check",
		Code:      "AMOUNT_NOT_POSITIVE",
		Message:   "amount1a must be positive",
		InvoiceID: "INV-7",
	}, res.Errors[0])

	var vatMessages []string
	for _, e := range res.Errors[1:] {
		assert.Equal(t, validation.CodeVATCheckFailed, e.Code)
		vatMessages = append(vatMessages, e.Message)
	}
	// Lines left blank read as zero and fail the rate check too.
	assert.Equal(t, []string{
		"vatAmount1a validation failed",
		"vatAmount1c validation failed",
		"vatAmount1d validation failed",
		"vatAmount1e validation failed",
		"vatAmount1f validation failed",
		"vatAmount1g validation failed",
		"vatAmount6 validation failed",
		"vatAmount9 validation failed",
		"vatAmount10 validation failed",
	}, vatMessages)
	assert.NotEmpty(t, res.Warnings, "line 8 does not add up")
}

func fullyRatedDocument() *vatreturn.Document {
	doc := vatreturn.NewDocument()
	for _, l := range vatreturn.Lines() {
		item := vatreturn.LineItem{vatreturn.FieldAmount: decimal.NewFromInt(1000)}
		switch {
		case l.Has(vatreturn.FieldVAT):
			item[vatreturn.FieldVAT] = decimal.NewFromInt(50)
		case l.Has(vatreturn.FieldRecoverable):
			item[vatreturn.FieldRecoverable] = decimal.NewFromInt(50)
		}
		doc.Lines[l.Key] = item
	}
	return doc
}

func TestCompile(t *testing.T) {
	v := validation.NewValidator(validation.DefaultRules())

	clean := fullyRatedDocument()
	clean.Header[vatreturn.HeaderIssueTime] = "2024-11-02"
	dirty := fullyRatedDocument()
	dirty.Lines[vatreturn.LineDubai][vatreturn.FieldVAT] = decimal.NewFromInt(80)
	dirty.Header[vatreturn.HeaderIssueTime] = "2025-02-02"

	results := []validation.InvoiceResult{
		v.ValidateInvoice(validation.Subject{InvoiceID: "INV-1", BusinessID: "100123456700003", Document: clean}),
		v.ValidateInvoice(validation.Subject{InvoiceID: "INV-2", BusinessID: "12345", Document: dirty}),
	}
	require.True(t, results[0].IsValidated)

	res := v.Compile(results, map[string]error{"INV-3": errors.New("object not found")}, validation.Options{
		Period: models.DateRange{
			Start: time.Date(2024, 10, 1, 0, 0, 0, 0, time.UTC),
			End:   time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC),
		},
	})

	assert.False(t, res.GeneralStatus)
	assert.Equal(t, 1, res.TotalErrors)
	assert.Equal(t, 1, res.TotalInvoiceWithErrors)
	assert.Equal(t, []string{"INV-2", "INV-3"}, res.FailedInvoices)
	assert.Equal(t, "object not found", res.Errors["INV-3"])
	assert.Equal(t, validation.CheckList{
		Check1: false,
		Check2: true,
		Check3: false,
		Check4: false,
		Check5: false,
	}, res.CheckList)
}

func TestCompile_SingleCleanInvoice(t *testing.T) {
	v := validation.NewValidator(validation.DefaultRules())
	res := v.Compile([]validation.InvoiceResult{
		v.ValidateInvoice(validation.Subject{InvoiceID: "INV-1", Document: fullyRatedDocument()}),
	}, nil, validation.Options{Single: true})

	assert.True(t, res.GeneralStatus)
	assert.Empty(t, res.FailedInvoices)
	assert.Nil(t, res.Errors)
	assert.Equal(t, validation.CheckList{
		Check1: true,
		Check2: true,
		Check3: true,
		Check4: true,
		Check5: true,
	}, res.CheckList)
}

func TestParseRules(t *testing.T) {
	rules, err := validation.ParseRules([]byte(`
standard_rate: "10"
exempt_lines: ["1A", "9"]
`))
	require.NoError(t, err)

	assert.Equal(t, "10", rules.StandardRate().String())
	assert.Equal(t, "0.05", rules.Tolerance().String())
	assert.Equal(t, 15, rules.TRNLength())
	assert.True(t, rules.IsExempt("1a"))
	assert.False(t, rules.IsExempt("2"))

	got := validation.VATCheck(rules, map[string]string{"amount1b": "100", "vatAmount1b": "10"})
	assert.True(t, got["vatAmount1b"])

	_, err = validation.ParseRules([]byte(`tolerance: "-1"`))
	assert.ErrorIs(t, err, validation.ErrInvalidRules)
	_, err = validation.ParseRules([]byte(`trn_length: 0`))
	assert.ErrorIs(t, err, validation.ErrInvalidRules)
	_, err = validation.ParseRules([]byte(`standard_rate: [`))
	assert.ErrorIs(t, err, validation.ErrInvalidRules)
}

func TestLoadRules(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tolerance: \"0.5\"\n"), 0o600))

	rules, err := validation.LoadRules(path)
	require.NoError(t, err)
	assert.Equal(t, "0.5", rules.Tolerance().String())
	assert.True(t, rules.IsExempt("13"))

	_, err = validation.LoadRules(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

package xlsx_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"vatfiling/internal/vatreturn"
	"vatfiling/internal/xlsx"
)

func TestEncodeDecode(t *testing.T) {
	rows := []vatreturn.Row{
		{"ID", "INV-1"},
		{},
		{"VAT on Sales and all other Outputs"},
		{"", "Amount (AED)", "VAT Amount (AED)", "Adjustment Amount (AED)"},
		{"1b Standard Rated Supplies In Dubai", "75000", "3750", ""},
		{"Profit Scheme", "TRUE"},
	}

	data, err := xlsx.Encode(rows, "")
	require.NoError(t, err)

	back, err := xlsx.Decode(data)
	require.NoError(t, err)

	require.Len(t, back, len(rows))
	assert.Equal(t, vatreturn.Row{"ID", "INV-1"}, back[0])
	assert.Empty(t, back[1])
	assert.Equal(t, vatreturn.Row{"1b Standard Rated Supplies In Dubai", "75000", "3750"}, back[4])
	assert.Equal(t, vatreturn.Row{"Profit Scheme", "TRUE"}, back[5])
}

func TestDecode_MapsThroughMapper(t *testing.T) {
	m := vatreturn.NewMapper(vatreturn.MapperOptions{})
	doc := vatreturn.NewDocument()
	doc.Header[vatreturn.HeaderID] = "INV-9"
	doc.Lines[vatreturn.LineDubai] = vatreturn.LineItem{
		vatreturn.FieldAmount: vatreturn.ParseAmount("1000.25"),
		vatreturn.FieldVAT:    vatreturn.ParseAmount("50.01"),
	}
	doc.ProfitScheme = true

	data, err := xlsx.Encode(m.ToRows(doc), "Q4")
	require.NoError(t, err)
	rows, err := xlsx.Decode(data)
	require.NoError(t, err)

	again := m.ToCanonical(rows)
	assert.Equal(t, vatreturn.Flatten(doc), vatreturn.Flatten(again))
	assert.Equal(t, "INV-9", again.Header[vatreturn.HeaderID])
	assert.True(t, again.ProfitScheme)
}

func TestDecode_Garbage(t *testing.T) {
	_, err := xlsx.Decode([]byte("definitely not a zip archive"))
	assert.Error(t, err)
}

// styledWorkbook writes typed cells whose number formats hide their real
// values: "0" rounds, the accounting format wraps negatives in brackets.
func styledWorkbook(t *testing.T) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	style := func(numFmt int) int {
		id, err := f.NewStyle(&excelize.Style{NumFmt: numFmt})
		require.NoError(t, err)
		return id
	}
	whole, accounting, date := style(1), style(38), style(14)

	cells := []struct {
		cell  string
		value interface{}
		style int
	}{
		{"A1", "1b Standard Rated Supplies In Dubai", 0},
		{"B1", 1000.4, whole},
		{"C1", 50.02, whole},
		{"D1", -500, accounting},
		{"A2", "Period start", 0},
		{"B2", 45598, date},
	}
	for _, c := range cells {
		require.NoError(t, f.SetCellValue(sheet, c.cell, c.value))
		if c.style != 0 {
			require.NoError(t, f.SetCellStyle(sheet, c.cell, c.cell, c.style))
		}
	}

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestDecode_IgnoresNumberFormats(t *testing.T) {
	rows, err := xlsx.Decode(styledWorkbook(t))
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, vatreturn.Row{"1b Standard Rated Supplies In Dubai", "1000.4", "50.02", "-500"}, rows[0])
	assert.Equal(t, vatreturn.Row{"Period start", "2024-11-02"}, rows[1])

	doc := vatreturn.NewMapper(vatreturn.MapperOptions{}).ToCanonical(rows)
	line, ok := doc.Line(vatreturn.LineDubai)
	require.True(t, ok)
	assert.True(t, line[vatreturn.FieldAmount].Equal(decimal.RequireFromString("1000.4")))
	assert.True(t, line[vatreturn.FieldVAT].Equal(decimal.RequireFromString("50.02")))
	assert.True(t, line[vatreturn.FieldAdjustment].Equal(decimal.NewFromInt(-500)), line[vatreturn.FieldAdjustment].String())
}

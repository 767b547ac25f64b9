package aggregate_test

import (
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vatfiling/internal/aggregate"
	"vatfiling/internal/vatreturn"
)

func invoice(id string, amount1a int64) *vatreturn.Document {
	doc := vatreturn.NewDocument()
	doc.Header[vatreturn.HeaderID] = id
	doc.ProfitScheme = true
	doc.Lines[vatreturn.LineAbuDhabi] = vatreturn.LineItem{
		vatreturn.FieldAmount: decimal.NewFromInt(amount1a),
		vatreturn.FieldVAT:    decimal.NewFromInt(amount1a).Div(decimal.NewFromInt(20)),
	}
	return doc
}

func TestAggregateAmounts_Additive(t *testing.T) {
	agg := aggregate.AggregateAmounts([]*vatreturn.Document{invoice("INV-1", 100), invoice("INV-2", 200)})

	flat := vatreturn.Flatten(agg)
	assert.Equal(t, "300", flat["amount1a"])
	assert.Equal(t, "15", flat["vatAmount1a"])
	assert.Equal(t, "0", flat["adjustment1a"])
}

func TestAggregateAmounts_DropsHeaderAndFlag(t *testing.T) {
	agg := aggregate.AggregateAmounts([]*vatreturn.Document{invoice("INV-1", 100)})

	assert.Empty(t, agg.Header)
	assert.False(t, agg.ProfitScheme)
}

func TestAggregateAmounts_ExactDecimals(t *testing.T) {
	var docs []*vatreturn.Document
	for i := 0; i < 10; i++ {
		doc := vatreturn.NewDocument()
		doc.Lines[vatreturn.LineExpenseTotals] = vatreturn.LineItem{
			vatreturn.FieldAmount:      decimal.RequireFromString("0.1"),
			vatreturn.FieldRecoverable: decimal.RequireFromString("0.01"),
		}
		docs = append(docs, doc)
	}
	docs = append(docs, nil)

	agg := aggregate.AggregateAmounts(docs)
	assert.Equal(t, "1", vatreturn.Get(agg, "VAT on Expenses and all other Inputs.11_Totals", "Amount_AED"))
	assert.Equal(t, "0.1", vatreturn.Get(agg, "VAT on Expenses and all other Inputs.11_Totals", "Recoverable_VAT_amount_AED"))
}

func TestAggregateAmounts_RendersAsRows(t *testing.T) {
	m := vatreturn.NewMapper(vatreturn.MapperOptions{})
	agg := aggregate.AggregateAmounts([]*vatreturn.Document{invoice("INV-1", 100), invoice("INV-2", 200)})

	again := m.ToCanonical(m.ToRows(agg))
	require.NotNil(t, again)
	assert.Equal(t, vatreturn.Flatten(agg), vatreturn.Flatten(again))
}

func TestAggregateAmounts_Empty(t *testing.T) {
	agg := aggregate.AggregateAmounts(nil)
	require.NotNil(t, agg)
	assert.Empty(t, agg.Lines)
}

func ExampleAggregateAmounts() {
	a := vatreturn.NewDocument()
	a.Lines[vatreturn.LineAbuDhabi] = vatreturn.LineItem{vatreturn.FieldAmount: decimal.NewFromInt(100)}
	b := vatreturn.NewDocument()
	b.Lines[vatreturn.LineAbuDhabi] = vatreturn.LineItem{vatreturn.FieldAmount: decimal.NewFromInt(200)}

	agg := aggregate.AggregateAmounts([]*vatreturn.Document{a, b})
	fmt.Println(vatreturn.Flatten(agg)["amount1a"])
	// Output: 300
}

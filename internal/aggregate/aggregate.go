// Package aggregate sums invoice returns into one filing-level return.
package aggregate

import (
	"vatfiling/internal/vatreturn"
)

// AggregateAmounts sums every numeric sub-field across docs. Header fields
// are dropped and the profit scheme flag is left false. The caller decides
// which invoices to pass in; nothing is filtered here except nil entries.
//
// The result has the canonical layout, so it renders through
// (*vatreturn.Mapper).ToRows like any single invoice.
func AggregateAmounts(docs []*vatreturn.Document) *vatreturn.Document {
	out := vatreturn.NewDocument()

	for _, doc := range docs {
		if doc == nil {
			continue
		}
		for _, l := range vatreturn.Lines() {
			item, ok := doc.Line(l.Key)
			if !ok {
				continue
			}
			sum, ok := out.Lines[l.Key]
			if !ok {
				sum = make(vatreturn.LineItem, len(l.Fields))
				out.Lines[l.Key] = sum
			}
			for _, f := range l.Fields {
				v, ok := item.Value(f)
				if !ok {
					continue
				}
				sum[f] = sum[f].Add(v)
			}
		}
	}

	return out
}

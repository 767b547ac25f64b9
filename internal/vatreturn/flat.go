package vatreturn

import (
	"sort"
	"strings"
)

// FlatField binds a flat key such as "vatAmount1a" to the line and
// sub-field it reads.
type FlatField struct {
	Key   string
	Line  Line
	Field SubField
}

// Path returns the field path of the line the key reads from.
func (f FlatField) Path() string {
	return LinePath(f.Line)
}

var (
	flatFields []FlatField
	flatIndex  map[string]int
)

func init() {
	for _, l := range catalog {
		fields := l.Fields
		if l.Section == SectionNetDue {
			// Net-due lines expose all three keys; the ones they do not
			// carry read as "0".
			fields = []SubField{FieldAmount, FieldVAT, FieldAdjustment}
		}
		for _, f := range fields {
			flatFields = append(flatFields, FlatField{
				Key:   flatKey(l, f),
				Line:  l,
				Field: f,
			})
		}
	}
	flatIndex = make(map[string]int, len(flatFields))
	for i, f := range flatFields {
		flatIndex[f.Key] = i
	}
}

func flatKey(l Line, f SubField) string {
	var prefix string
	switch f {
	case FieldAmount:
		prefix = "amount"
	case FieldVAT, FieldRecoverable:
		prefix = "vatAmount"
	case FieldAdjustment:
		prefix = "adjustment"
	}
	if l.IsTotal() {
		prefix = "total" + strings.ToUpper(prefix[:1]) + prefix[1:]
	}
	return prefix + l.Code
}

// FlatFields returns the flat key space in return order.
func FlatFields() []FlatField {
	out := make([]FlatField, len(flatFields))
	copy(out, flatFields)
	return out
}

// Flatten reads every flat key from doc. Missing values read as "0".
func Flatten(doc *Document) map[string]string {
	out := make(map[string]string, len(flatFields))
	for _, f := range flatFields {
		out[f.Key] = Get(doc, f.Path(), string(f.Field))
	}
	return out
}

// SortFlatKeys orders keys by their position in the flat key space.
// Unknown keys sort last, alphabetically.
func SortFlatKeys(keys []string) {
	sort.SliceStable(keys, func(i, j int) bool {
		a, aok := flatIndex[keys[i]]
		b, bok := flatIndex[keys[j]]
		switch {
		case aok && bok:
			return a < b
		case aok != bok:
			return aok
		default:
			return keys[i] < keys[j]
		}
	})
}

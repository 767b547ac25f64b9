package vatreturn

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// Header holds the invoice header fields. A missing or empty value means
// the field is absent.
type Header map[string]string

// Get returns the value of a header field and whether it is set.
func (h Header) Get(name string) (string, bool) {
	v, ok := h[name]
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// LineItem maps the sub-fields carried by one line to their amounts.
type LineItem map[SubField]decimal.Decimal

// Value returns the amount of sub-field f and whether the line carries it.
func (li LineItem) Value(f SubField) (decimal.Decimal, bool) {
	d, ok := li[f]
	return d, ok
}

func (li LineItem) clone() LineItem {
	out := make(LineItem, len(li))
	for k, v := range li {
		out[k] = v
	}
	return out
}

// Document is the canonical VAT return for one invoice or one filing.
type Document struct {
	Header Header
	// Lines is keyed by canonical line key. The owning section comes
	// from the line catalog.
	Lines        map[string]LineItem
	ProfitScheme bool
}

// NewDocument returns an empty document.
func NewDocument() *Document {
	return &Document{
		Header: make(Header),
		Lines:  make(map[string]LineItem),
	}
}

// Line returns the line item stored under key.
func (d *Document) Line(key string) (LineItem, bool) {
	if d == nil {
		return nil, false
	}
	li, ok := d.Lines[key]
	return li, ok
}

// Clone returns a deep copy of d.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	out := NewDocument()
	for k, v := range d.Header {
		out.Header[k] = v
	}
	for k, li := range d.Lines {
		out.Lines[k] = li.clone()
	}
	out.ProfitScheme = d.ProfitScheme
	return out
}

// MarshalJSON writes the nested section layout, e.g.
//
//	{"Invoice Details": {...}, "VAT on Sales and all other Outputs": {"1a_...": {"Amount_AED": 75000}}, ...}
func (d *Document) MarshalJSON() ([]byte, error) {
	header := make(map[string]*string, len(HeaderFields))
	for _, name := range HeaderFields {
		if v, ok := d.Header.Get(name); ok {
			v := v
			header[name] = &v
		} else if name != HeaderGeneratedBy && name != HeaderGeneratedOn {
			header[name] = nil
		}
	}

	out := map[string]any{
		string(SectionInvoiceDetails): header,
		string(SectionProfitScheme):   d.ProfitScheme,
	}
	for _, s := range []Section{SectionSales, SectionExpenses, SectionNetDue} {
		lines := make(map[string]map[SubField]json.Number)
		for _, l := range LinesIn(s) {
			li, ok := d.Lines[l.Key]
			if !ok {
				continue
			}
			fields := make(map[SubField]json.Number, len(li))
			for f, v := range li {
				fields[f] = json.Number(v.String())
			}
			lines[l.Key] = fields
		}
		out[string(s)] = lines
	}
	return json.Marshal(out)
}

// UnmarshalJSON reads the layout written by MarshalJSON. Lines are matched
// by their line code, so keys that differ only in wording are accepted.
// Unknown sections and lines are ignored.
func (d *Document) UnmarshalJSON(data []byte) error {
	const op = "UnmarshalJSON"

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return NewMappingError(op, ErrMalformedDocument, err.Error())
	}

	doc := NewDocument()
	if msg, ok := raw[string(SectionInvoiceDetails)]; ok {
		var header map[string]any
		if err := json.Unmarshal(msg, &header); err != nil {
			return NewMappingError(op, ErrMalformedDocument, "invoice details: "+err.Error())
		}
		for k, v := range header {
			if !IsHeaderField(k) || v == nil {
				continue
			}
			if s := fmt.Sprint(v); s != "" {
				doc.Header[k] = s
			}
		}
	}

	for _, s := range []Section{SectionSales, SectionExpenses, SectionNetDue} {
		msg, ok := raw[string(s)]
		if !ok {
			continue
		}
		dec := json.NewDecoder(bytes.NewReader(msg))
		dec.UseNumber()
		var lines map[string]map[string]any
		if err := dec.Decode(&lines); err != nil {
			return NewMappingError(op, ErrMalformedDocument, string(s)+": "+err.Error())
		}
		keys := make([]string, 0, len(lines))
		for k := range lines {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			l, ok := LookupLabel(k)
			if !ok || l.Section != s {
				continue
			}
			li := make(LineItem)
			for f, v := range lines[k] {
				sf := SubField(f)
				if !l.Has(sf) || v == nil {
					continue
				}
				li[sf] = ParseAmount(fmt.Sprint(v))
			}
			doc.Lines[l.Key] = li
		}
	}

	if msg, ok := raw[string(SectionProfitScheme)]; ok {
		var flag any
		if err := json.Unmarshal(msg, &flag); err != nil {
			return NewMappingError(op, ErrMalformedDocument, "profit scheme: "+err.Error())
		}
		switch v := flag.(type) {
		case bool:
			doc.ProfitScheme = v
		case string:
			doc.ProfitScheme = isTrue(v)
		}
	}

	*d = *doc
	return nil
}

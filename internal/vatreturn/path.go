package vatreturn

import (
	"fmt"
	"strings"
)

// FieldPath is a resolved field path. Line and Field are empty when the
// path stops at a section or line.
type FieldPath struct {
	Section Section
	Line    string
	Field   string
}

// String renders the dotted form.
func (p FieldPath) String() string {
	parts := []string{string(p.Section)}
	if p.Line != "" {
		parts = append(parts, p.Line)
	}
	if p.Field != "" {
		parts = append(parts, p.Field)
	}
	return strings.Join(parts, ".")
}

// ParsePath resolves a dotted path such as
// "Net VAT Due.14_Payable_tax_for_the_period.Amount_AED" against the
// return layout.
func ParsePath(path string) (FieldPath, error) {
	const op = "ParsePath"

	parts := strings.Split(path, ".")
	p := FieldPath{Section: Section(parts[0])}

	switch {
	case p.Section == SectionProfitScheme:
		if len(parts) != 1 {
			return FieldPath{}, NewMappingError(op, ErrInvalidPath, path)
		}
		return p, nil

	case p.Section == SectionInvoiceDetails:
		if len(parts) > 2 {
			return FieldPath{}, NewMappingError(op, ErrInvalidPath, path)
		}
		if len(parts) == 2 {
			if !IsHeaderField(parts[1]) {
				return FieldPath{}, NewMappingError(op, ErrInvalidPath, fmt.Sprintf("%s: unknown header field", path))
			}
			p.Field = parts[1]
		}
		return p, nil

	case IsLineSection(p.Section):
		if len(parts) > 3 {
			return FieldPath{}, NewMappingError(op, ErrInvalidPath, path)
		}
		if len(parts) >= 2 {
			l, ok := LookupKey(parts[1])
			if !ok || l.Section != p.Section {
				return FieldPath{}, NewMappingError(op, ErrInvalidPath, fmt.Sprintf("%s: unknown line", path))
			}
			p.Line = l.Key
		}
		if len(parts) == 3 {
			p.Field = parts[2]
		}
		return p, nil
	}

	return FieldPath{}, NewMappingError(op, ErrInvalidPath, fmt.Sprintf("%s: unknown section", path))
}

// Get returns sub-field subField of the line addressed by path as a
// decimal string. It returns "0" as soon as any step is missing, including
// when the path does not name a line. An empty subField means Amount_AED.
func Get(doc *Document, path string, subField string) string {
	if subField == "" {
		subField = string(FieldAmount)
	}
	if doc == nil {
		return "0"
	}
	p, err := ParsePath(path)
	if err != nil || p.Line == "" || p.Field != "" {
		return "0"
	}
	item, ok := doc.Lines[p.Line]
	if !ok {
		return "0"
	}
	v, ok := item[SubField(subField)]
	if !ok {
		return "0"
	}
	return v.String()
}

// GetValue resolves path and returns nil on any missing step. Header
// fields resolve to string, "Profit Scheme" to bool, lines to LineItem and
// line sub-fields to a decimal string. A bare section resolves to a copy of
// its contents.
func GetValue(doc *Document, path string) any {
	if doc == nil {
		return nil
	}
	p, err := ParsePath(path)
	if err != nil {
		return nil
	}

	switch p.Section {
	case SectionProfitScheme:
		return doc.ProfitScheme
	case SectionInvoiceDetails:
		if p.Field == "" {
			out := make(Header, len(doc.Header))
			for _, name := range HeaderFields {
				if v, ok := doc.Header.Get(name); ok {
					out[name] = v
				}
			}
			return out
		}
		v, ok := doc.Header.Get(p.Field)
		if !ok {
			return nil
		}
		return v
	}

	if p.Line == "" {
		out := make(map[string]LineItem)
		for _, l := range LinesIn(p.Section) {
			if item, ok := doc.Lines[l.Key]; ok {
				out[l.Key] = item.clone()
			}
		}
		return out
	}

	item, ok := doc.Lines[p.Line]
	if !ok {
		return nil
	}
	if p.Field == "" {
		return item.clone()
	}
	v, ok := item[SubField(p.Field)]
	if !ok {
		return nil
	}
	return v.String()
}

// LinePath builds the field path of a line.
func LinePath(l Line) string {
	return string(l.Section) + "." + l.Key
}

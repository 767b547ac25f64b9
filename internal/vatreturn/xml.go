package vatreturn

import (
	"strconv"

	"github.com/beevik/etree"
	"github.com/google/uuid"
)

var sectionTags = map[Section]string{
	SectionSales:    "SalesOutputs",
	SectionExpenses: "ExpenseInputs",
	SectionNetDue:   "NetVATDue",
}

// EncodeXML renders doc as an indented XML return for archival. A document
// without a UUID header gets a freshly generated one.
func EncodeXML(doc *Document) ([]byte, error) {
	const op = "EncodeXML"

	if doc == nil {
		return nil, NewMappingError(op, ErrMalformedDocument, "nil document")
	}

	x := etree.NewDocument()
	x.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	root := x.CreateElement("VATReturn")

	details := root.CreateElement("InvoiceDetails")
	for _, name := range HeaderFields {
		v, ok := doc.Header.Get(name)
		if !ok {
			if name != HeaderUUID {
				continue
			}
			v = uuid.NewString()
		}
		details.CreateElement(name).SetText(v)
	}

	for _, s := range []Section{SectionSales, SectionExpenses, SectionNetDue} {
		sec := root.CreateElement(sectionTags[s])
		sec.CreateAttr("name", string(s))
		for _, l := range LinesIn(s) {
			item, ok := doc.Lines[l.Key]
			if !ok {
				continue
			}
			el := sec.CreateElement("Line")
			el.CreateAttr("code", l.Code)
			el.CreateAttr("key", l.Key)
			for _, f := range l.Fields {
				if v, ok := item[f]; ok {
					el.CreateElement(string(f)).SetText(v.String())
				}
			}
		}
	}

	root.CreateElement("ProfitScheme").SetText(strconv.FormatBool(doc.ProfitScheme))

	x.Indent(2)
	out, err := x.WriteToBytes()
	if err != nil {
		return nil, WrapMappingError(op, err, "write xml")
	}
	return out, nil
}

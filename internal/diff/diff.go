package diff

import (
	"strconv"

	"vatfiling/internal/vatreturn"
)

// Change is one field that differs between two versions of an invoice.
type Change struct {
	Field    string `json:"field"`
	OldValue string `json:"oldValue"`
	NewValue string `json:"newValue"`
}

// ChangeSet lists changes in a fixed order: flat amount keys first, then
// the profit scheme flag, then header fields.
type ChangeSet []Change

// Rectified reports whether the new version changed anything. A rectified
// invoice sends every open filing holding it back to Draft.
func (c ChangeSet) Rectified() bool {
	return len(c) > 0
}

// ProfitSchemeField is the field name used for profit scheme changes.
const ProfitSchemeField = string(vatreturn.SectionProfitScheme)

// versionFields identify a version rather than its content and are not
// compared.
var versionFields = map[string]struct{}{
	vatreturn.HeaderGeneratedBy: {},
	vatreturn.HeaderGeneratedOn: {},
}

// DetectChanges compares two versions of the same invoice field by field.
// An empty set means nothing changed. A nil document is malformed input,
// which is reported as ErrMalformedInput rather than as "no changes".
func DetectChanges(oldDoc, newDoc *vatreturn.Document) (ChangeSet, error) {
	const op = "DetectChanges"

	switch {
	case oldDoc == nil:
		return nil, NewDiffError(op, ErrMalformedInput, "old version is missing")
	case newDoc == nil:
		return nil, NewDiffError(op, ErrMalformedInput, "new version is missing")
	}

	changes := ChangeSet{}

	oldFlat := vatreturn.Flatten(oldDoc)
	newFlat := vatreturn.Flatten(newDoc)
	for _, f := range vatreturn.FlatFields() {
		if oldFlat[f.Key] != newFlat[f.Key] {
			changes = append(changes, Change{Field: f.Key, OldValue: oldFlat[f.Key], NewValue: newFlat[f.Key]})
		}
	}

	if oldDoc.ProfitScheme != newDoc.ProfitScheme {
		changes = append(changes, Change{
			Field:    ProfitSchemeField,
			OldValue: strconv.FormatBool(oldDoc.ProfitScheme),
			NewValue: strconv.FormatBool(newDoc.ProfitScheme),
		})
	}

	for _, name := range vatreturn.HeaderFields {
		if _, skip := versionFields[name]; skip {
			continue
		}
		oldValue, oldOK := oldDoc.Header.Get(name)
		newValue, newOK := newDoc.Header.Get(name)
		if !oldOK && !newOK {
			continue
		}
		if oldValue != newValue {
			changes = append(changes, Change{
				Field:    string(vatreturn.SectionInvoiceDetails) + "." + name,
				OldValue: oldValue,
				NewValue: newValue,
			})
		}
	}

	return changes, nil
}

// Describe returns a readable label for a change field, e.g.
// "1a Standard Rated Supplies In Abu Dhabi (VAT_Amount_AED)".
func Describe(field string) string {
	for _, f := range vatreturn.FlatFields() {
		if f.Key == field {
			return vatreturn.TitleCase(f.Line.Key) + " (" + string(f.Field) + ")"
		}
	}
	return field
}

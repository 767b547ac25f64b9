package validation

import (
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Rules holds the statutory constants the checks run against. A Rules
// value is never modified after construction; use the With* methods to
// derive a variant.
type Rules struct {
	standardRate decimal.Decimal
	tolerance    decimal.Decimal
	exempt       map[string]struct{}
	trnLength    int
}

// DefaultRules returns the UAE rules: a 5% standard rate checked within
// 0.05 percentage points, with lines 2, 3, 4, 5, 7, 12, 13 and 14 exempt.
func DefaultRules() Rules {
	return NewRules(
		decimal.NewFromInt(5),
		decimal.RequireFromString("0.05"),
		[]string{"2", "3", "4", "5", "7", "12", "13", "14"},
		15,
	)
}

// NewRules builds a Rules value. Exempt line codes are matched
// case-insensitively.
func NewRules(rate, tolerance decimal.Decimal, exemptLines []string, trnLength int) Rules {
	exempt := make(map[string]struct{}, len(exemptLines))
	for _, code := range exemptLines {
		exempt[strings.ToLower(strings.TrimSpace(code))] = struct{}{}
	}
	return Rules{
		standardRate: rate,
		tolerance:    tolerance,
		exempt:       exempt,
		trnLength:    trnLength,
	}
}

func (r Rules) StandardRate() decimal.Decimal { return r.standardRate }
func (r Rules) Tolerance() decimal.Decimal    { return r.tolerance }
func (r Rules) TRNLength() int                { return r.trnLength }

// IsExempt reports whether the line with the given code skips the rate
// check.
func (r Rules) IsExempt(code string) bool {
	_, ok := r.exempt[strings.ToLower(code)]
	return ok
}

// ExemptLines returns the exempt line codes in no particular order.
func (r Rules) ExemptLines() []string {
	out := make([]string, 0, len(r.exempt))
	for code := range r.exempt {
		out = append(out, code)
	}
	return out
}

// rulesFile is the on-disk layout of a rules file:
//
//	standard_rate: "5"
//	tolerance: "0.05"
//	exempt_lines: ["2", "3", "4", "5", "7", "12", "13", "14"]
//	trn_length: 15
//
// Omitted keys keep their default.
type rulesFile struct {
	StandardRate *string  `yaml:"standard_rate"`
	Tolerance    *string  `yaml:"tolerance"`
	ExemptLines  []string `yaml:"exempt_lines"`
	TRNLength    *int     `yaml:"trn_length"`
}

// LoadRules reads a YAML rules file on top of DefaultRules.
func LoadRules(path string) (Rules, error) {
	const op = "LoadRules"

	data, err := os.ReadFile(path)
	if err != nil {
		return Rules{}, fmt.Errorf("%s: failed to read rules file: %w", op, err)
	}
	return ParseRules(data)
}

// ParseRules decodes YAML rules on top of DefaultRules.
func ParseRules(data []byte) (Rules, error) {
	const op = "ParseRules"

	var raw rulesFile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Rules{}, fmt.Errorf("%s: %w: %v", op, ErrInvalidRules, err)
	}

	def := DefaultRules()
	rate, tolerance, trnLength := def.standardRate, def.tolerance, def.trnLength
	exempt := def.ExemptLines()

	var err error
	if raw.StandardRate != nil {
		if rate, err = decimal.NewFromString(*raw.StandardRate); err != nil || !rate.IsPositive() {
			return Rules{}, fmt.Errorf("%s: %w: standard_rate %q", op, ErrInvalidRules, *raw.StandardRate)
		}
	}
	if raw.Tolerance != nil {
		if tolerance, err = decimal.NewFromString(*raw.Tolerance); err != nil || tolerance.IsNegative() {
			return Rules{}, fmt.Errorf("%s: %w: tolerance %q", op, ErrInvalidRules, *raw.Tolerance)
		}
	}
	if raw.ExemptLines != nil {
		exempt = raw.ExemptLines
	}
	if raw.TRNLength != nil {
		if *raw.TRNLength < 1 {
			return Rules{}, fmt.Errorf("%s: %w: trn_length %d", op, ErrInvalidRules, *raw.TRNLength)
		}
		trnLength = *raw.TRNLength
	}

	return NewRules(rate, tolerance, exempt, trnLength), nil
}

// Package filter holds the attribute constraints a search can carry:
// exact tag matches and inclusive numeric ranges, all ANDed together.
package filter

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

const (
	MaxConditions     = 8
	MaxMatchValueSize = 256

	// TagSeparator splits multi-value tags in the search index, so no match
	// value may contain it.
	TagSeparator = "|"
)

var errNoKey = errors.New("filter key is required")

// Expression is a conjunction. The zero value matches everything.
type Expression struct {
	must []Condition
}

func NewExpression(must ...Condition) (Expression, error) {
	if n := len(must); n > MaxConditions {
		return Expression{}, fmt.Errorf("%d filter conditions given, at most %d allowed", n, MaxConditions)
	}
	return Expression{must: must}, nil
}

func (e Expression) Must() []Condition { return e.must }

func (e Expression) IsEmpty() bool { return len(e.must) == 0 }

// Accept reports whether a record with these attributes passes every condition.
// A condition on an attribute the record lacks fails.
func (e Expression) Accept(tags map[string]string, numerics map[string]float64) bool {
	for _, c := range e.must {
		if !c.holds(tags, numerics) {
			return false
		}
	}
	return true
}

// Condition constrains one attribute, by exact value or by numeric range.
type Condition struct {
	key   string
	match string
	span  *Range
}

// NewMatch builds a case-sensitive equality condition. The value must be
// non-blank, free of control characters and TagSeparator, and at most
// MaxMatchValueSize bytes.
func NewMatch(key, match string) (Condition, error) {
	if key == "" {
		return Condition{}, errNoKey
	}
	switch {
	case strings.TrimSpace(match) == "":
		return Condition{}, fmt.Errorf("%s: match value is required", key)
	case len(match) > MaxMatchValueSize:
		return Condition{}, fmt.Errorf("%s: match value too long, %d bytes over the %d limit",
			key, len(match)-MaxMatchValueSize, MaxMatchValueSize)
	case strings.ContainsFunc(match, unicode.IsControl):
		return Condition{}, fmt.Errorf("%s: match value contains control characters", key)
	case strings.Contains(match, TagSeparator):
		return Condition{}, fmt.Errorf("%s: match value contains %q", key, TagSeparator)
	}
	return Condition{key: key, match: match}, nil
}

func NewRange(key string, r Range) (Condition, error) {
	if key == "" {
		return Condition{}, errNoKey
	}
	return Condition{key: key, span: &r}, nil
}

func (c Condition) Key() string { return c.key }
func (c Condition) Match() string { return c.match }
func (c Condition) Range() *Range { return c.span }
func (c Condition) IsMatch() bool { return c.match != "" }
func (c Condition) IsRange() bool { return c.span != nil }

func (c Condition) holds(tags map[string]string, numerics map[string]float64) bool {
	if c.span != nil {
		v, ok := numerics[c.key]
		return ok && c.span.Contains(v)
	}
	v, ok := tags[c.key]
	return ok && v == c.match
}

// Range is inclusive on both ends; a nil bound is unbounded.
type Range struct {
	gte, lte *float64
}

// NewRangeFilter needs at least one bound, and gte must not exceed lte.
func NewRangeFilter(gte, lte *float64) (Range, error) {
	switch {
	case gte == nil && lte == nil:
		return Range{}, errors.New("range needs at least one boundary")
	case gte != nil && lte != nil && *gte > *lte:
		return Range{}, fmt.Errorf("range is empty: lower bound %g is greater than upper bound %g", *gte, *lte)
	}
	return Range{gte: gte, lte: lte}, nil
}

func (r Range) GTE() *float64 { return r.gte }
func (r Range) LTE() *float64 { return r.lte }

func (r Range) Contains(v float64) bool {
	return (r.gte == nil || v >= *r.gte) && (r.lte == nil || v <= *r.lte)
}

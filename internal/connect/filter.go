package connect

import (
	"net/url"
	"strings"
)

// Criterion is one equality condition of a Filter.
type Criterion struct {
	Field string
	Value string
}

// Filter is a conjunction of equality criteria, rendered as RQL on the wire.
type Filter struct {
	Criteria []Criterion
}

// Eq starts a filter with a single field == value criterion.
func Eq(field, value string) Filter {
	return Filter{Criteria: []Criterion{{Field: field, Value: value}}}
}

// And returns a copy of f with an additional field == value criterion.
func (f Filter) And(field, value string) Filter {
	criteria := make([]Criterion, 0, len(f.Criteria)+1)
	criteria = append(criteria, f.Criteria...)
	criteria = append(criteria, Criterion{Field: field, Value: value})
	return Filter{Criteria: criteria}
}

// IsZero reports whether the filter matches everything.
func (f Filter) IsZero() bool {
	return len(f.Criteria) == 0
}

// String renders the filter as a URL-safe RQL expression, e.g.
// and(eq(marketplace.id,MP-1),eq(status,active)).
func (f Filter) String() string {
	switch len(f.Criteria) {
	case 0:
		return ""
	case 1:
		return f.Criteria[0].rql()
	}
	parts := make([]string, 0, len(f.Criteria))
	for _, c := range f.Criteria {
		parts = append(parts, c.rql())
	}
	return "and(" + strings.Join(parts, ",") + ")"
}

func (c Criterion) rql() string {
	return "eq(" + c.Field + "," + url.QueryEscape(c.Value) + ")"
}

// selectFields renders an RQL projection.
func selectFields(fields []string) string {
	if len(fields) == 0 {
		return ""
	}
	return "select(" + strings.Join(fields, ",") + ")"
}

// joinQuery joins non-empty raw query terms with "&".
func joinQuery(terms ...string) string {
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		if t != "" {
			out = append(out, t)
		}
	}
	return strings.Join(out, "&")
}

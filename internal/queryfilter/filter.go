// Package queryfilter maps free-text questions to optional structured
// metadata predicates. Classification is heuristic, so produced filters
// are deliberately recall-biased: an OR over every recognized axis, so
// a chunk matching any one axis stays eligible.
package queryfilter

// Equality is a single field-equality predicate over chunk metadata.
type Equality struct {
	Field string
	Value string
}

// Filter is a disjunction of field equalities. It is the only predicate
// shape the vector index supports: no ranges, prefixes or negations.
// Filters are constructed fresh per query and never persisted.
type Filter struct {
	Any []Equality
}

// Eq builds a single-equality filter.
func Eq(field, value string) *Filter {
	return &Filter{Any: []Equality{{Field: field, Value: value}}}
}

// Or appends an equality to the disjunction and returns the filter.
func (f *Filter) Or(field, value string) *Filter {
	f.Any = append(f.Any, Equality{Field: field, Value: value})
	return f
}

// Matches reports whether the metadata satisfies the filter, i.e. at
// least one equality holds. A nil filter matches everything.
func (f *Filter) Matches(metadata map[string]string) bool {
	if f == nil || len(f.Any) == 0 {
		return true
	}
	for _, eq := range f.Any {
		if metadata[eq.Field] == eq.Value {
			return true
		}
	}
	return false
}

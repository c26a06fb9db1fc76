/*
Package pipeline derives the visible list from a base collection and the
current view state.

PURPOSE:
  Pure, synchronous search -> filter -> sort. Given the same collection and
  the same State the output is identical on every call.

STEPS:
  Search:  a non-empty SearchTerm keeps entities where at least one search
           field contains the term, compared with Unicode case folding.
           Fields may be dotted paths ("address.city"); string elements of
           arrays are searched too. Non-string values never match, and
           a config without search fields matches nothing.
  Filter:  every named filter must pass (AND across keys). A key with
           several values passes when any value does (OR within a key).
           "" values are ignored and an "all" value disables the key.
           A registered Predicate decides when present, otherwise the field's
           canonical scalar must equal the value. Missing fields never match.
  Sort:    SortBy selects a registered or built-in comparator and the result
           is stable-sorted. Unknown names leave the order unchanged.

BUILT-IN SORTS:
  name-asc, name-desc:  native string order of the display field
  date-asc, date-desc:  parsed createdAt; unparseable dates sort as the zero time

USAGE:
  cfg := pipeline.FromSchema(schema)
  visible := cfg.Apply(coll, pipeline.State{SearchTerm: "john", Filters: map[string][]string{"status": {"active"}}})

SEE ALSO:
  - generic/schema.go: search and display fields per type
  - api/handlers.go: applies the pipeline to ?search= and ?sortBy=
*/
package pipeline

import (
	"slices"
	"strings"
	"time"

	"golang.org/x/text/cases"

	"github.com/warp/dashboard-engine/generic"
)

// Built-in sort names.
const (
	SortNameAsc  = "name-asc"
	SortNameDesc = "name-desc"
	SortDateAsc  = "date-asc"
	SortDateDesc = "date-desc"
)

// Predicate decides whether e passes a filter set to value.
type Predicate func(e generic.Entity, value string) bool

// Comparator orders two entities like strings.Compare.
type Comparator func(a, b generic.Entity) int

// Config declares how one entity type is searched, filtered and sorted.
type Config struct {
	SearchFields []string

	// DisplayField backs name-asc/name-desc. Defaults to "name".
	DisplayField string

	// DateField backs date-asc/date-desc. Defaults to "createdAt".
	DateField string

	// Filters override plain field equality for the named filter keys.
	Filters map[string]Predicate

	// Sorts add or override comparators by name.
	Sorts map[string]Comparator
}

// State is the per-session view state. Filters holds every value given for
// a key, as repeated query parameters do.
type State struct {
	SearchTerm string
	Filters    map[string][]string
	SortBy     string
}

// Apply runs search, filter and sort in that order. The input collection is
// not modified; the result is never nil.
func (c Config) Apply(coll generic.Collection, st State) generic.Collection {
	out := make(generic.Collection, 0, len(coll))
	out = append(out, coll...)

	out = c.search(out, st.SearchTerm)
	out = c.filter(out, st.Filters)
	c.sort(out, st.SortBy)
	return out
}

// =============================================================================
// SEARCH
// =============================================================================

func (c Config) search(coll generic.Collection, term string) generic.Collection {
	if term == "" {
		return coll
	}
	// A Caser holds state; one per call keeps Apply safe for concurrent use.
	fold := cases.Fold()
	needle := fold.String(term)

	out := coll[:0]
	for _, e := range coll {
		if c.matchesSearch(e, fold, needle) {
			out = append(out, e)
		}
	}
	return out
}

func (c Config) matchesSearch(e generic.Entity, fold cases.Caser, needle string) bool {
	for _, field := range c.SearchFields {
		v, ok := e.Lookup(field)
		if !ok {
			continue
		}
		switch val := v.(type) {
		case string:
			if strings.Contains(fold.String(val), needle) {
				return true
			}
		case []any:
			for _, item := range val {
				if s, ok := item.(string); ok && strings.Contains(fold.String(s), needle) {
					return true
				}
			}
		}
	}
	return false
}

// =============================================================================
// FILTER
// =============================================================================

func (c Config) filter(coll generic.Collection, filters map[string][]string) generic.Collection {
	active := activeFilters(filters)
	if len(active) == 0 {
		return coll
	}
	keys := make([]string, 0, len(active))
	for k := range active {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	out := coll[:0]
	for _, e := range coll {
		if c.passes(e, keys, active) {
			out = append(out, e)
		}
	}
	return out
}

// activeFilters drops "" values and keys that are empty or carry "all".
func activeFilters(filters map[string][]string) map[string][]string {
	active := make(map[string][]string, len(filters))
	for k, values := range filters {
		if slices.Contains(values, generic.AllSentinel) {
			continue
		}
		kept := make([]string, 0, len(values))
		for _, v := range values {
			if v != "" {
				kept = append(kept, v)
			}
		}
		if len(kept) > 0 {
			active[k] = kept
		}
	}
	return active
}

func (c Config) passes(e generic.Entity, keys []string, filters map[string][]string) bool {
	for _, k := range keys {
		pred, ok := c.Filters[k]
		if !ok {
			pred = FieldEquals(k)
		}
		if !slices.ContainsFunc(filters[k], func(want string) bool { return pred(e, want) }) {
			return false
		}
	}
	return true
}

// FieldEquals is the default filter: the field's canonical scalar equals value.
func FieldEquals(field string) Predicate {
	return func(e generic.Entity, value string) bool {
		v, ok := e.Lookup(field)
		if !ok {
			return false
		}
		got, ok := generic.Scalar(v)
		return ok && got == value
	}
}

// Contains passes when field is an array holding value as an element.
func Contains(field string) Predicate {
	return func(e generic.Entity, value string) bool {
		v, ok := e.Lookup(field)
		if !ok {
			return false
		}
		items, ok := v.([]any)
		if !ok {
			return false
		}
		for _, item := range items {
			if s, ok := generic.Scalar(item); ok && s == value {
				return true
			}
		}
		return false
	}
}

// DateFrom passes when field is on or after value. Both sides are parsed
// timestamps (or plain dates); anything unparseable fails.
func DateFrom(field string) Predicate {
	return dateBound(field, false)
}

// DateTo passes when field is on or before value. A plain date bound
// ("2024-03-31") covers that whole day.
func DateTo(field string) Predicate {
	return dateBound(field, true)
}

const plainDate = "2006-01-02"

func dateBound(field string, upper bool) Predicate {
	return func(e generic.Entity, value string) bool {
		raw, found := e.Lookup(field)
		if !found {
			return false
		}
		s, isStr := raw.(string)
		if !isStr {
			return false
		}
		got, parsed := generic.ParseTimestamp(s)
		if !parsed {
			return false
		}
		bound, parsed := generic.ParseTimestamp(value)
		if !parsed {
			return false
		}
		if !upper {
			return !got.Before(bound)
		}
		if _, err := time.Parse(plainDate, value); err == nil {
			bound = bound.AddDate(0, 0, 1)
			return got.Before(bound)
		}
		return !got.After(bound)
	}
}

// =============================================================================
// SORT
// =============================================================================

func (c Config) sort(coll generic.Collection, sortBy string) {
	cmp, ok := c.comparator(sortBy)
	if !ok {
		return
	}
	slices.SortStableFunc(coll, cmp)
}

func (c Config) comparator(name string) (Comparator, bool) {
	if name == "" {
		return nil, false
	}
	if cmp, ok := c.Sorts[name]; ok {
		return cmp, true
	}
	switch name {
	case SortNameAsc:
		return ByString(c.display()), true
	case SortNameDesc:
		return Reverse(ByString(c.display())), true
	case SortDateAsc:
		return ByDate(c.date()), true
	case SortDateDesc:
		return Reverse(ByDate(c.date())), true
	}
	return nil, false
}

func (c Config) display() string {
	if c.DisplayField == "" {
		return "name"
	}
	return c.DisplayField
}

func (c Config) date() string {
	if c.DateField == "" {
		return generic.FieldCreatedAt
	}
	return c.DateField
}

// ByString compares a string field in native byte order. Missing or
// non-string values compare as "".
func ByString(field string) Comparator {
	return func(a, b generic.Entity) int {
		return strings.Compare(stringAt(a, field), stringAt(b, field))
	}
}

// ByDate compares a timestamp field. Unparseable dates are the zero time.
func ByDate(field string) Comparator {
	return func(a, b generic.Entity) int {
		return dateAt(a, field).Compare(dateAt(b, field))
	}
}

// Reverse flips a comparator. Ties stay ties, so stability is preserved.
func Reverse(cmp Comparator) Comparator {
	return func(a, b generic.Entity) int { return cmp(b, a) }
}

func stringAt(e generic.Entity, field string) string {
	v, _ := e.Lookup(field)
	s, _ := v.(string)
	return s
}

func dateAt(e generic.Entity, field string) time.Time {
	t, ok := generic.ParseTimestamp(stringAt(e, field))
	if !ok {
		return time.Time{}
	}
	return t
}

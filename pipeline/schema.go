package pipeline

import (
	"github.com/warp/dashboard-engine/generic"
)

// FromSchema builds the view config for a type from its schema. Types with
// extra view filters get them here.
func FromSchema(s generic.Schema) Config {
	cfg := Config{
		SearchFields: append([]string(nil), s.SearchFields...),
		DisplayField: s.Display(),
	}
	if s.Type == generic.TypeProjects {
		cfg.Filters = ProjectFilters()
	}
	return cfg
}

// ProjectFilters are the project list filters that are not plain equality.
func ProjectFilters() map[string]Predicate {
	return map[string]Predicate{
		"teamMemberId":  Contains("team"),
		"startDateFrom": DateFrom("startDate"),
		"startDateTo":   DateTo("startDate"),
		"endDateFrom":   DateFrom("endDate"),
		"endDateTo":     DateTo("endDate"),
	}
}

// HasFilter reports whether key is handled by a registered predicate rather
// than by field equality.
func (c Config) HasFilter(key string) bool {
	_, ok := c.Filters[key]
	return ok
}

// Pushdown returns the filters a store can apply as plain equality: keys
// without a registered predicate that carry exactly one value. Everything
// else is left to Apply.
func (c Config) Pushdown(filters map[string][]string) map[string]string {
	out := make(map[string]string, len(filters))
	for k, values := range filters {
		if len(values) == 1 && !c.HasFilter(k) {
			out[k] = values[0]
		}
	}
	return out
}

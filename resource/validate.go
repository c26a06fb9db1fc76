package resource

import (
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"github.com/warp/dashboard-engine/generic"
)

// =============================================================================
// VALIDATION - Schema rules applied before anything is persisted
// =============================================================================

// validateCreate checks a complete new entity.
func validateCreate(s generic.Schema, e generic.Entity) error {
	return collect(s, e, func(string) bool { return true })
}

// validatePatch checks only the fields an update touches. Required fields
// may not be blanked; enum and email fields must stay well-formed.
func validatePatch(s generic.Schema, patch generic.Entity) error {
	return collect(s, patch, func(field string) bool {
		_, ok := patch[field]
		return ok
	})
}

func collect(s generic.Schema, e generic.Entity, applies func(field string) bool) error {
	errs := validation.Errors{}

	for _, field := range s.Required {
		if !applies(field) {
			continue
		}
		if err := validation.Validate(trimmed(e[field]), validation.Required); err != nil {
			errs[field] = err
		}
	}
	for field, allowed := range s.Enums {
		if !applies(field) || errs[field] != nil {
			continue
		}
		values := make([]any, len(allowed))
		for i, v := range allowed {
			values[i] = v
		}
		if err := validation.Validate(e[field], validation.In(values...).Error("must be one of "+strings.Join(allowed, ", "))); err != nil {
			errs[field] = err
		}
	}
	for _, field := range s.Emails {
		if !applies(field) || errs[field] != nil {
			continue
		}
		v, ok := e[field].(string)
		if e[field] != nil && !ok {
			errs[field] = validation.NewError("validation_is_email", "must be a valid email address")
			continue
		}
		if err := validation.Validate(v, is.EmailFormat); err != nil {
			errs[field] = err
		}
	}

	if len(errs) == 0 {
		return nil
	}
	out := &generic.ValidationError{Type: s.Type, Fields: make(map[string]string, len(errs))}
	for field, err := range errs {
		out.Fields[field] = err.Error()
	}
	return out
}

// trimmed makes whitespace-only strings count as blank.
func trimmed(v any) any {
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return v
}

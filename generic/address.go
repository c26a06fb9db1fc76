package generic

import (
	"fmt"
	"strings"
)

// =============================================================================
// ADDRESS - Structured or freeform, normalized at the resource boundary
// =============================================================================

// StructuredAddress is the canonical postal address.
type StructuredAddress struct {
	Street     string `json:"street,omitempty"`
	City       string `json:"city,omitempty"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postalCode,omitempty"`
	Country    string `json:"country,omitempty"`

	// Extra holds any other string keys of a structured address (unit,
	// region, ...). They are kept verbatim.
	Extra map[string]string `json:"-"`
}

// Address is either Structured or Freeform, never both.
type Address struct {
	Structured *StructuredAddress
	Freeform   string
}

// ParseAddress reads the wire form: a JSON object or a string. Anything
// else is rejected.
func ParseAddress(v any) (Address, error) {
	switch val := v.(type) {
	case string:
		return Address{Freeform: val}, nil
	case map[string]any:
		sa := &StructuredAddress{}
		for k, raw := range val {
			s, ok := raw.(string)
			if !ok {
				if raw == nil {
					continue
				}
				return Address{}, fmt.Errorf("address field %q must be a string", k)
			}
			switch k {
			case "street":
				sa.Street = s
			case "city":
				sa.City = s
			case "state":
				sa.State = s
			case "postalCode":
				sa.PostalCode = s
			case "country":
				sa.Country = s
			default:
				if sa.Extra == nil {
					sa.Extra = map[string]string{}
				}
				sa.Extra[k] = s
			}
		}
		return Address{Structured: sa}, nil
	default:
		return Address{}, fmt.Errorf("address must be an object or a string")
	}
}

// Normalize converts the address to its structured form. Freeform text is
// split on commas: the first part is the street and the last the country;
// the parts between fill city, state and postal code in that order.
func (a Address) Normalize() StructuredAddress {
	if a.Structured != nil {
		return *a.Structured
	}
	var parts []string
	for _, p := range strings.Split(a.Freeform, ",") {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	var sa StructuredAddress
	switch len(parts) {
	case 0:
	case 1:
		sa.Street = parts[0]
	case 2:
		sa.Street, sa.City = parts[0], parts[1]
	case 3:
		sa.Street, sa.City, sa.Country = parts[0], parts[1], parts[2]
	case 4:
		sa.Street, sa.City, sa.State, sa.Country = parts[0], parts[1], parts[2], parts[3]
	default:
		n := len(parts)
		sa.Street = strings.Join(parts[:n-4], ", ")
		sa.City, sa.State, sa.PostalCode, sa.Country = parts[n-4], parts[n-3], parts[n-2], parts[n-1]
	}
	return sa
}

// Value is the JSON-object form stored on entities. Extra keys come back
// unchanged.
func (sa StructuredAddress) Value() map[string]any {
	out := make(map[string]any, len(sa.Extra)+5)
	for k, v := range sa.Extra {
		out[k] = v
	}
	set := func(k, v string) {
		if v != "" {
			out[k] = v
		}
	}
	set("street", sa.Street)
	set("city", sa.City)
	set("state", sa.State)
	set("postalCode", sa.PostalCode)
	set("country", sa.Country)
	return out
}

// String renders the address on one line.
func (sa StructuredAddress) String() string {
	var parts []string
	for _, p := range []string{sa.Street, sa.City, sa.State, sa.PostalCode, sa.Country} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

// NormalizeAddressFields rewrites each named address field of e to the
// structured form. Absent and null fields are left alone.
func NormalizeAddressFields(e Entity, fields []string) error {
	for _, f := range fields {
		raw, ok := e[f]
		if !ok || raw == nil {
			continue
		}
		addr, err := ParseAddress(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", f, err)
		}
		e[f] = addr.Normalize().Value()
	}
	return nil
}

/*
Package factory builds entity schemas from Go presets or config files.

PURPOSE:
  Converts schema definitions into generic.Schema values. The built-in
  dashboard types come from DefaultSchemas; deployments add or override
  types with a YAML (or JSON) file so new entity types need no code change.

FILE FORMAT:
  types:
    - type: widgets
      idPrefix: WID
      required: [name]
      enums:
        status: [active, retired]
      emails: [ownerEmail]
      defaults:
        status: active
        count: 0
      searchFields: [name, ownerEmail]
      displayField: name
      addressFields: [location]

  JSON files use the same keys; YAML is a superset of JSON so one parser
  reads both.

USAGE:
  reg := factory.NewRegistry()                  // built-in types
  err := factory.LoadSchemas(reg, "schemas.yaml") // overrides

SEE ALSO:
  - generic/schema.go: Schema and Registry
  - resource/validate.go: Enforces Required/Enums/Emails
*/
package factory

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/warp/dashboard-engine/generic"
)

// =============================================================================
// FILE SCHEMA TYPES
// =============================================================================

// SchemaFile is the top-level document read by LoadSchemas.
type SchemaFile struct {
	Types []SchemaDef `yaml:"types" json:"types"`
}

// SchemaDef is the file representation of one entity type.
type SchemaDef struct {
	Type          string              `yaml:"type" json:"type"`
	IDPrefix      string              `yaml:"idPrefix" json:"idPrefix"`
	Required      []string            `yaml:"required" json:"required"`
	Enums         map[string][]string `yaml:"enums" json:"enums"`
	Emails        []string            `yaml:"emails" json:"emails"`
	Defaults      map[string]any      `yaml:"defaults" json:"defaults"`
	SearchFields  []string            `yaml:"searchFields" json:"searchFields"`
	DisplayField  string              `yaml:"displayField" json:"displayField"`
	AddressFields []string            `yaml:"addressFields" json:"addressFields"`
}

// =============================================================================
// BUILT-IN SCHEMAS
// =============================================================================

var zero = json.Number("0")

// DefaultSchemas returns the dashboard's built-in entity types.
func DefaultSchemas() []generic.Schema {
	return []generic.Schema{
		{
			Type:          generic.TypeClients,
			Required:      []string{"name", "email"},
			Enums:         map[string][]string{"status": {"active", "inactive", "lead"}},
			Emails:        []string{"email"},
			SearchFields:  []string{"name", "email", "company"},
			AddressFields: []string{"address"},
		},
		{
			Type:         generic.TypeProjects,
			IDPrefix:     "PRJ",
			Required:     []string{"name"},
			Enums:        map[string][]string{"status": {"planning", "active", "on-hold", "completed", "cancelled"}},
			Defaults:     map[string]any{"status": "planning", "progress": zero},
			SearchFields: []string{"name", "description", "clientName"},
		},
		{
			Type:     generic.TypeInvoices,
			IDPrefix: "INV",
			Required: []string{"clientId"},
			Enums:    map[string][]string{"status": {"draft", "sent", "paid", "overdue", "cancelled"}},
			Defaults: map[string]any{
				"status":    "draft",
				"items":     []any{},
				"total":     zero,
				"tax":       zero,
				"amountDue": zero,
			},
			SearchFields: []string{"id", "clientName", "notes"},
			DisplayField: "id",
		},
		{
			Type:         generic.TypeDevices,
			Required:     []string{"name", "type"},
			Enums:        map[string][]string{"status": {"active", "inactive", "maintenance"}},
			SearchFields: []string{"name", "type", "location"},
		},
		{
			Type:         generic.TypeStrategies,
			Required:     []string{"name"},
			Enums:        map[string][]string{"status": {"active", "inactive", "draft", "archived"}},
			SearchFields: []string{"name", "description"},
		},
		{
			Type:         generic.TypeTimelines,
			Required:     []string{"name"},
			Defaults:     map[string]any{"status": "planning", "progress": zero},
			SearchFields: []string{"name", "description"},
		},
		{
			Type:         generic.TypeEvents,
			Required:     []string{"title"},
			SearchFields: []string{"title", "description", "location"},
			DisplayField: "title",
		},
		{
			Type:         generic.TypeTasks,
			Required:     []string{"title"},
			SearchFields: []string{"title", "description"},
			DisplayField: "title",
		},
	}
}

// NewRegistry returns a registry holding DefaultSchemas.
func NewRegistry() *generic.Registry {
	return generic.NewRegistry(DefaultSchemas()...)
}

// =============================================================================
// FILE LOADING
// =============================================================================

// ParseSchemas decodes a schema document (YAML or JSON).
func ParseSchemas(data []byte) ([]generic.Schema, error) {
	var f SchemaFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse schemas: %w", err)
	}
	out := make([]generic.Schema, 0, len(f.Types))
	for i, def := range f.Types {
		s, err := FromDef(def)
		if err != nil {
			return nil, fmt.Errorf("schema %d: %w", i, err)
		}
		out = append(out, s)
	}
	return out, nil
}

// LoadSchemas reads path and registers every schema in it, replacing
// built-in types of the same name. An empty path is a no-op.
func LoadSchemas(reg *generic.Registry, path string) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read schemas: %w", err)
	}
	schemas, err := ParseSchemas(data)
	if err != nil {
		return err
	}
	for _, s := range schemas {
		reg.Register(s)
	}
	return nil
}

// FromDef validates a definition and converts it.
func FromDef(def SchemaDef) (generic.Schema, error) {
	t := generic.EntityType(def.Type)
	if !t.Valid() {
		return generic.Schema{}, fmt.Errorf("invalid type name %q", def.Type)
	}
	defaults, err := normalizeDefaults(def.Defaults)
	if err != nil {
		return generic.Schema{}, fmt.Errorf("%s defaults: %w", t, err)
	}
	for field, allowed := range def.Enums {
		if len(allowed) == 0 {
			return generic.Schema{}, fmt.Errorf("%s enum %q has no values", t, field)
		}
	}
	return generic.Schema{
		Type:          t,
		IDPrefix:      def.IDPrefix,
		Required:      def.Required,
		Enums:         def.Enums,
		Emails:        def.Emails,
		Defaults:      defaults,
		SearchFields:  def.SearchFields,
		DisplayField:  def.DisplayField,
		AddressFields: def.AddressFields,
	}, nil
}

// ToDef is the inverse of FromDef, used to print effective schemas.
func ToDef(s generic.Schema) SchemaDef {
	return SchemaDef{
		Type:          string(s.Type),
		IDPrefix:      s.IDPrefix,
		Required:      s.Required,
		Enums:         s.Enums,
		Emails:        s.Emails,
		Defaults:      s.Defaults,
		SearchFields:  s.SearchFields,
		DisplayField:  s.Display(),
		AddressFields: s.AddressFields,
	}
}

// normalizeDefaults converts YAML-decoded values (int, float64, nested
// maps) into the JSON value model entities use, with exact numbers.
func normalizeDefaults(in map[string]any) (map[string]any, error) {
	if len(in) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(in)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var out map[string]any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

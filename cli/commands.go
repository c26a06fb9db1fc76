package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/warp/dashboard-engine/generic"
	"github.com/warp/dashboard-engine/pipeline"
)

// =============================================================================
// TYPES
// =============================================================================

// NewTypesCommand lists the entity types the server knows.
func NewTypesCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "types",
		Short: "List entity types",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			types, err := rootOpts.API().Types(cmd.Context())
			if err != nil {
				return err
			}
			out := newFormatter(cmd, rootOpts)
			if rootOpts.Format == "json" {
				return out.JSON(map[string]any{"types": types})
			}
			for _, t := range types {
				out.Line(string(t))
			}
			return nil
		},
	}
}

// =============================================================================
// LIST
// =============================================================================

// ListOptions holds flags for the list command.
type ListOptions struct {
	*RootOptions
	Search  string
	SortBy  string
	Filters []string
}

// NewListCommand lists one collection through the cache and view pipeline.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ListOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "list <type>",
		Short: "List entities of a type",
		Long: `List entities of a type.

Filters given with --filter key=value are sent to the server as equality
params unless the type defines a view filter for the key (for example
teamMemberId or startDateFrom on projects), which is applied locally.
Repeating a key matches any of its values and is also applied locally.`,
		Example: `  dashctl list clients --search acme --sort name-asc
  dashctl list projects --filter status=active --filter teamMemberId=u-ana
  dashctl list projects --filter status=active --filter status=planning`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd, opts, generic.EntityType(args[0]))
		},
	}

	cmd.Flags().StringVar(&opts.Search, "search", "", "case-insensitive search term")
	cmd.Flags().StringVar(&opts.SortBy, "sort", "", "sort option (name-asc, name-desc, date-asc, date-desc)")
	cmd.Flags().StringArrayVarP(&opts.Filters, "filter", "f", nil, "filter as key=value (repeatable)")

	return cmd
}

func runList(cmd *cobra.Command, opts *ListOptions, t generic.EntityType) error {
	reg, err := opts.Registry()
	if err != nil {
		return err
	}
	schema, ok := reg.Lookup(t)
	if !ok {
		return &generic.UnknownTypeError{Type: t}
	}
	cfg := pipeline.FromSchema(schema)

	state := pipeline.State{
		SearchTerm: opts.Search,
		SortBy:     opts.SortBy,
		Filters:    map[string][]string{},
	}
	for _, raw := range opts.Filters {
		key, value, ok := strings.Cut(raw, "=")
		if !ok || key == "" {
			return fmt.Errorf("invalid filter %q: want key=value", raw)
		}
		state.Filters[key] = append(state.Filters[key], value)
	}

	out := newFormatter(cmd, opts.RootOptions)
	params := generic.NewParams(cfg.Pushdown(state.Filters))
	out.VerboseLog("GET %s/api/%s?%s", opts.Server, t, params.Encode())

	coll, err := opts.Client().List(cmd.Context(), t, params)
	if err != nil {
		return err
	}
	return out.Collection(schema, cfg.Apply(coll, state))
}

// =============================================================================
// GET / CREATE / UPDATE / DELETE
// =============================================================================

// NewGetCommand shows one entity.
func NewGetCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <type> <id>",
		Short: "Show one entity",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := rootOpts.Client().Get(cmd.Context(), generic.EntityType(args[0]), args[1])
			if err != nil {
				return err
			}
			return newFormatter(cmd, rootOpts).Entity(e)
		},
	}
}

// MutateOptions holds flags for create and update.
type MutateOptions struct {
	*RootOptions
	Data string
}

// NewCreateCommand creates an entity from a JSON object.
func NewCreateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MutateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:     "create <type>",
		Short:   "Create an entity",
		Example: `  dashctl create clients --data '{"name":"Acme","email":"ops@acme.test"}'`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fields, err := parseData(opts.Data)
			if err != nil {
				return err
			}
			e, err := opts.Client().Create(cmd.Context(), generic.EntityType(args[0]), fields)
			if err != nil {
				return err
			}
			return newFormatter(cmd, rootOpts).Entity(e)
		},
	}

	cmd.Flags().StringVarP(&opts.Data, "data", "d", "", "entity fields as a JSON object (required)")
	_ = cmd.MarkFlagRequired("data")

	return cmd
}

// NewUpdateCommand merges a JSON object into an existing entity.
func NewUpdateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MutateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:     "update <type> <id>",
		Short:   "Update an entity",
		Example: `  dashctl update projects PRJ-1001 --data '{"status":"on-hold"}'`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			fields, err := parseData(opts.Data)
			if err != nil {
				return err
			}
			e, err := opts.Client().Update(cmd.Context(), generic.EntityType(args[0]), args[1], fields)
			if err != nil {
				return err
			}
			return newFormatter(cmd, rootOpts).Entity(e)
		},
	}

	cmd.Flags().StringVarP(&opts.Data, "data", "d", "", "fields to change as a JSON object (required)")
	_ = cmd.MarkFlagRequired("data")

	return cmd
}

// NewDeleteCommand removes an entity.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <type> <id>",
		Short: "Delete an entity",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, id := generic.EntityType(args[0]), args[1]
			if err := rootOpts.Client().Remove(cmd.Context(), t, id); err != nil {
				return err
			}
			out := newFormatter(cmd, rootOpts)
			if rootOpts.Format == "json" {
				return out.JSON(map[string]string{"status": "deleted", "type": string(t), "id": id})
			}
			out.Line(fmt.Sprintf("deleted %s/%s", t, id))
			return nil
		},
	}
}

func parseData(data string) (generic.Entity, error) {
	fields, err := generic.DecodeEntity([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("invalid --data: %w", err)
	}
	return fields, nil
}

/*
Package cli implements dashctl, a command-line client for the dashboard API.

PURPOSE:
  Browses and edits entities on a running server. Reads go through the
  query cache and the view pipeline, the same path a dashboard session
  takes: equality filters are sent to the server, search/sort and view
  filters are applied locally.

COMMANDS:
  types                          List entity types
  list <type>                    List with --search, --sort, --filter k=v
  get <type> <id>                Show one entity
  create <type> --data '{...}'   Create
  update <type> <id> --data ...  Partial update
  delete <type> <id>             Remove

CONFIGURATION:
  Unset --server, --stale-after and --schemas come from the server's
  configuration (config.Load): http://localhost:<server.port>,
  cache.staleAfter and schemas.

SEE ALSO:
  - cmd/dashctl/main.go: entry point
  - resource/httpclient.go: REST client
  - query/client.go: cache in front of it
*/
package cli

import (
	"fmt"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/warp/dashboard-engine/config"
	"github.com/warp/dashboard-engine/factory"
	"github.com/warp/dashboard-engine/generic"
	"github.com/warp/dashboard-engine/query"
	"github.com/warp/dashboard-engine/resource"
)

// DefaultServer is the --server default shown in help. When the flag is
// not given the port follows server.port from the configuration.
const DefaultServer = "http://localhost:3000"

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	Server     string
	StaleAfter time.Duration
	Schemas    string

	api      *resource.HTTPClient
	client   *query.Client
	registry *generic.Registry
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for dashctl.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dashctl",
		Short: "dashctl - dashboard API client",
		Long:  "Browse and edit clients, projects, invoices and other dashboard entities on a running server.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return opts.applyConfig(cmd)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVarP(&opts.Server, "server", "s", DefaultServer, "API base URL")
	cmd.PersistentFlags().DurationVar(&opts.StaleAfter, "stale-after", query.DefaultStaleAfter, "cache staleness window")
	cmd.PersistentFlags().StringVar(&opts.Schemas, "schemas", "", "schema overrides (search and display fields)")

	// Add subcommands
	cmd.AddCommand(NewTypesCommand(opts))
	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewGetCommand(opts))
	cmd.AddCommand(NewCreateCommand(opts))
	cmd.AddCommand(NewUpdateCommand(opts))
	cmd.AddCommand(NewDeleteCommand(opts))

	return cmd
}

// applyConfig fills the flags the user did not set from the shared server
// configuration (.env, DASHBOARD_CONFIG_PATH, DASHBOARD_* variables).
func (o *RootOptions) applyConfig(cmd *cobra.Command) error {
	flags := cmd.Flags()
	if flags.Changed("server") && flags.Changed("stale-after") && flags.Changed("schemas") {
		return nil
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if !flags.Changed("server") {
		o.Server = fmt.Sprintf("http://localhost:%d", cfg.Server.Port)
	}
	if !flags.Changed("stale-after") {
		o.StaleAfter = cfg.Cache.StaleAfter
	}
	if !flags.Changed("schemas") {
		o.Schemas = cfg.Schemas
	}
	return nil
}

// API returns the raw REST client.
func (o *RootOptions) API() *resource.HTTPClient {
	if o.api == nil {
		o.api = resource.NewHTTPClient(o.Server, nil)
	}
	return o.api
}

// Execute runs dashctl with os.Args and returns the process exit code.
func Execute() int {
	cmd := NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), "Error:", err)
		return ExitCode(err)
	}
	return ExitSuccess
}

// Client returns the cached resource client, built on first use.
func (o *RootOptions) Client() *query.Client {
	if o.client == nil {
		o.client = query.NewClient(o.API(), query.WithStaleAfter(o.StaleAfter))
	}
	return o.client
}

// Registry holds the schemas used for local search and sort.
func (o *RootOptions) Registry() (*generic.Registry, error) {
	if o.registry == nil {
		reg := factory.NewRegistry()
		if err := factory.LoadSchemas(reg, o.Schemas); err != nil {
			return nil, err
		}
		o.registry = reg
	}
	return o.registry, nil
}

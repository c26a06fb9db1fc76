package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"

	"github.com/spf13/cobra"

	"github.com/warp/dashboard-engine/generic"
)

// Exit codes for dashctl.
const (
	ExitSuccess     = 0
	ExitFailure     = 1 // transport, server or usage error
	ExitInvalid     = 2 // validation rejected the input
	ExitNotFound    = 3 // unknown type or id
	ExitUnavailable = 4 // storage unavailable, retry may succeed
)

// ExitCode maps an error onto the exit codes above.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitSuccess
	case generic.IsNotFound(err):
		return ExitNotFound
	case generic.IsClientError(err):
		return ExitInvalid
	case generic.IsRetryable(err):
		return ExitUnavailable
	default:
		return ExitFailure
	}
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // verbose output, kept off Writer so JSON stays clean
	Verbose   bool
}

func newFormatter(cmd *cobra.Command, opts *RootOptions) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}

// JSON writes v indented.
func (f *OutputFormatter) JSON(v any) error {
	enc := json.NewEncoder(f.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Line writes one line of text.
func (f *OutputFormatter) Line(s string) {
	fmt.Fprintln(f.Writer, s)
}

// Collection writes one "id<TAB>display" line per entity in text mode.
func (f *OutputFormatter) Collection(s generic.Schema, coll generic.Collection) error {
	if f.Format == "json" {
		return f.JSON(coll)
	}
	display := s.Display()
	for _, e := range coll {
		name, _ := generic.Scalar(e[display])
		fmt.Fprintf(f.Writer, "%s\t%s\n", e.ID(), name)
	}
	return nil
}

// Entity writes "key: value" lines sorted by key in text mode. Nested
// values are rendered as compact JSON.
func (f *OutputFormatter) Entity(e generic.Entity) error {
	if f.Format == "json" {
		return f.JSON(e)
	}
	keys := make([]string, 0, len(e))
	for k := range e {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		fmt.Fprintf(f.Writer, "%s: %s\n", k, render(e[k]))
	}
	return nil
}

// VerboseLog writes to ErrWriter only when --verbose is set.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	w := f.ErrWriter
	if w == nil {
		w = f.Writer
	}
	fmt.Fprintf(w, format+"\n", args...)
}

func render(v any) string {
	if s, ok := generic.Scalar(v); ok {
		return s
	}
	if v == nil {
		return "null"
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}

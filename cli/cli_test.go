package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/dashboard-engine/api"
	"github.com/warp/dashboard-engine/factory"
	"github.com/warp/dashboard-engine/generic"
	memstore "github.com/warp/dashboard-engine/generic/store"
	"github.com/warp/dashboard-engine/resource"
)

// setupServer serves the agency scenario from memory.
func setupServer(t *testing.T) string {
	t.Helper()
	svc := resource.NewService(factory.NewRegistry(), memstore.NewMemory())
	h := api.NewHandler(svc)
	_, err := h.Load(context.Background(), "agency")
	require.NoError(t, err)
	srv := httptest.NewServer(api.NewRouter(h, api.RouterOptions{}))
	t.Cleanup(srv.Close)
	return srv.URL
}

// run executes one dashctl invocation on a fresh command tree.
func run(t *testing.T, server string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{"--server", server}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func lines(s string) []string {
	return strings.Split(strings.TrimRight(s, "\n"), "\n")
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "dashctl", cmd.Use)
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"types", "list", "get", "create", "update", "delete"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	serverFlag := cmd.PersistentFlags().Lookup("server")
	require.NotNil(t, serverFlag)
	assert.Equal(t, DefaultServer, serverFlag.DefValue)
}

func TestUnsetFlagsComeFromConfig(t *testing.T) {
	// GIVEN: Cache and port settings in the environment
	t.Setenv("DASHBOARD_CONFIG_PATH", "")
	t.Setenv("DASHBOARD_CACHE_STALE_AFTER", "42s")
	t.Setenv("DASHBOARD_SERVER_PORT", "4123")

	cases := []struct {
		name       string
		args       []string
		wantServer string
		wantStale  time.Duration
	}{
		{"config fills unset flags", nil, "http://localhost:4123", 42 * time.Second},
		{"flags win", []string{"--stale-after", "3s", "--server", "http://api.test"}, "http://api.test", 3 * time.Second},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			opts := &RootOptions{}
			root := newRootCommand(opts)
			sub, _, err := root.Find([]string{"types"})
			require.NoError(t, err)
			require.NoError(t, sub.ParseFlags(tc.args))

			// WHEN: The pre-run hook resolves options
			require.NoError(t, root.PersistentPreRunE(sub, nil))

			// THEN: Unset flags follow the configuration
			assert.Equal(t, tc.wantServer, opts.Server)
			assert.Equal(t, tc.wantStale, opts.StaleAfter)
		})
	}
}

func TestInvalidConfigFails(t *testing.T) {
	t.Setenv("DASHBOARD_CONFIG_PATH", "")
	t.Setenv("DASHBOARD_CACHE_STALE_AFTER", "soon")

	_, err := run(t, "http://127.0.0.1:0", "types")

	assert.ErrorContains(t, err, "load config")
}

func TestInvalidFormat(t *testing.T) {
	_, err := run(t, "http://127.0.0.1:0", "--format", "yaml", "types")

	assert.ErrorContains(t, err, "invalid format")
}

func TestTypes(t *testing.T) {
	server := setupServer(t)

	out, err := run(t, server, "types")

	require.NoError(t, err)
	assert.Contains(t, lines(out), "clients")
	assert.Contains(t, lines(out), "projects")
}

func TestList_SearchSortAndViewFilters(t *testing.T) {
	server := setupServer(t)

	cases := []struct {
		name string
		args []string
		want []string
	}{
		{
			name: "search matches email",
			args: []string{"list", "clients", "--search", "NORTHWIND"},
			want: []string{"6f1c2a7e-3b4d-4e5f-8a9b-0c1d2e3f4a5b\tMarcus Lee"},
		},
		{
			name: "equality filter",
			args: []string{"list", "clients", "--filter", "status=lead"},
			want: []string{"9a8b7c6d-5e4f-4a3b-9c2d-1e0f9a8b7c6d\tPriya Patel"},
		},
		{
			name: "view filter and name sort",
			args: []string{"list", "projects", "-f", "teamMemberId=u-ana", "--sort", "name-asc"},
			want: []string{"PRJ-1003\tShowroom Lighting", "PRJ-1001\tSmart Home Retrofit"},
		},
		{
			name: "repeated filter matches any value",
			args: []string{"list", "projects", "-f", "status=active", "-f", "status=planning", "--sort", "name-asc"},
			want: []string{"PRJ-1002\tOffice Network Upgrade", "PRJ-1001\tSmart Home Retrofit"},
		},
		{
			name: "display field",
			args: []string{"list", "invoices", "--filter", "status=draft"},
			want: []string{"INV-2004\tINV-2004"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out, err := run(t, server, tc.args...)

			require.NoError(t, err)
			assert.Equal(t, tc.want, lines(out))
		})
	}
}

func TestList_JSON(t *testing.T) {
	server := setupServer(t)

	out, err := run(t, server, "--format", "json", "list", "projects", "--filter", "status=active")

	require.NoError(t, err)
	coll, err := generic.DecodeCollection([]byte(out))
	require.NoError(t, err)
	assert.Equal(t, []string{"PRJ-1001"}, coll.IDs())
}

func TestList_Rejects(t *testing.T) {
	server := setupServer(t)

	_, err := run(t, server, "list", "clients", "--filter", "status")
	assert.ErrorContains(t, err, "invalid filter")

	_, err = run(t, server, "list", "widgets")
	assert.Equal(t, ExitNotFound, ExitCode(err))
}

func TestGet(t *testing.T) {
	server := setupServer(t)

	out, err := run(t, server, "get", "projects", "PRJ-1001")

	require.NoError(t, err)
	assert.Contains(t, lines(out), "name: Smart Home Retrofit")
	assert.Contains(t, lines(out), "progress: 65")
	assert.Contains(t, lines(out), `team: ["u-ana","u-ben"]`)

	_, err = run(t, server, "get", "projects", "PRJ-9999")
	assert.Equal(t, ExitNotFound, ExitCode(err))

	_, err = run(t, server, "get", "clients", "")
	assert.Equal(t, ExitNotFound, ExitCode(err))
}

func TestCreateUpdateDelete(t *testing.T) {
	server := setupServer(t)

	// GIVEN: A new client created through the CLI
	out, err := run(t, server, "--format", "json", "create", "clients", "--data", `{"name":"Dana Ortiz","email":"dana@ortiz.dev"}`)
	require.NoError(t, err)
	var created map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &created))
	id, _ := created["id"].(string)
	require.NotEmpty(t, id)

	// WHEN: Updating one field
	out, err = run(t, server, "update", "clients", id, "-d", `{"company":"Ortiz Labs"}`)

	// THEN: The rest of the entity is kept
	require.NoError(t, err)
	assert.Contains(t, lines(out), "company: Ortiz Labs")
	assert.Contains(t, lines(out), "name: Dana Ortiz")

	// WHEN: Deleting it
	out, err = run(t, server, "delete", "clients", id)
	require.NoError(t, err)
	assert.Equal(t, "deleted clients/"+id+"\n", out)

	// THEN: It is gone
	_, err = run(t, server, "get", "clients", id)
	assert.Equal(t, ExitNotFound, ExitCode(err))
}

func TestCreate_Errors(t *testing.T) {
	server := setupServer(t)

	_, err := run(t, server, "create", "clients", "--data", `{"name":"No Email"}`)
	assert.Equal(t, ExitInvalid, ExitCode(err))

	_, err = run(t, server, "create", "clients", "--data", `not json`)
	assert.ErrorContains(t, err, "invalid --data")

	_, err = run(t, server, "create", "clients")
	assert.Error(t, err, "--data is required")
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, ExitCode(nil))
	assert.Equal(t, ExitNotFound, ExitCode(&generic.NotFoundError{Type: generic.TypeClients, ID: "x"}))
	assert.Equal(t, ExitInvalid, ExitCode(&generic.ValidationError{Type: generic.TypeClients}))
	assert.Equal(t, ExitUnavailable, ExitCode(&resource.APIError{Status: 503, Message: "Storage unavailable"}))
	assert.Equal(t, ExitFailure, ExitCode(assert.AnError))
}

package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/dashboard-engine/generic"
)

// =============================================================================
// STUB DRIVER - understands the three statements the store issues
// =============================================================================

type stubConn struct {
	mu       sync.Mutex
	docs     map[string]string
	execs    []string
	failPing bool
}

type stubDriver struct{ conn *stubConn }

func (d *stubDriver) Open(string) (driver.Conn, error) { return d.conn, nil }

func (c *stubConn) Prepare(string) (driver.Stmt, error) { return nil, fmt.Errorf("not implemented") }
func (c *stubConn) Close() error                        { return nil }
func (c *stubConn) Begin() (driver.Tx, error)           { return nil, fmt.Errorf("not implemented") }

func (c *stubConn) Ping(context.Context) error {
	if c.failPing {
		return fmt.Errorf("connection refused")
	}
	return nil
}

func (c *stubConn) ExecContext(_ context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.execs = append(c.execs, query)
	if strings.HasPrefix(strings.TrimSpace(query), "INSERT INTO collections") {
		c.docs[args[0].Value.(string)] = args[1].Value.(string)
	}
	return driver.RowsAffected(1), nil
}

func (c *stubConn) QueryContext(_ context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if strings.Contains(query, "jsonb_array_elements") {
		return nil, fmt.Errorf("stub: jsonb functions unsupported")
	}
	rows := &stubRows{}
	if doc, ok := c.docs[args[0].Value.(string)]; ok {
		rows.rows = []string{doc}
	}
	return rows, nil
}

type stubRows struct {
	rows []string
	idx  int
}

func (r *stubRows) Columns() []string { return []string{"doc"} }
func (r *stubRows) Close() error      { return nil }

func (r *stubRows) Next(dest []driver.Value) error {
	if r.idx >= len(r.rows) {
		return io.EOF
	}
	dest[0] = r.rows[r.idx]
	r.idx++
	return nil
}

func newStubStore(t *testing.T) (*Store, *stubConn) {
	t.Helper()
	conn := &stubConn{docs: map[string]string{}}
	name := fmt.Sprintf("stubpg%d", time.Now().UnixNano())
	sql.Register(name, &stubDriver{conn: conn})

	prev := sqlOpen
	sqlOpen = func(_, _ string) (*sql.DB, error) { return sql.Open(name, "stub") }
	t.Cleanup(func() { sqlOpen = prev })

	st, err := New(context.Background(), "")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st, conn
}

// =============================================================================
// TESTS
// =============================================================================

func TestPostgres_NewEnsuresTable(t *testing.T) {
	_, conn := newStubStore(t)

	require.NotEmpty(t, conn.execs)
	assert.Contains(t, conn.execs[0], "CREATE TABLE IF NOT EXISTS collections")
}

func TestPostgres_PingFailureIsReported(t *testing.T) {
	conn := &stubConn{docs: map[string]string{}, failPing: true}
	name := fmt.Sprintf("stubpg-fail%d", time.Now().UnixNano())
	sql.Register(name, &stubDriver{conn: conn})
	prev := sqlOpen
	sqlOpen = func(_, _ string) (*sql.DB, error) { return sql.Open(name, "stub") }
	defer func() { sqlOpen = prev }()

	_, err := New(context.Background(), "")
	assert.ErrorContains(t, err, "ping postgres")
}

func TestPostgres_RoundTripAndFallbackQuery(t *testing.T) {
	// GIVEN: A written collection
	ctx := context.Background()
	st, _ := newStubStore(t)
	require.NoError(t, st.WriteCollection(ctx, generic.TypeInvoices, generic.Collection{
		{"id": "i1", "clientId": "a"},
		{"id": "i2", "clientId": "b"},
	}))

	// WHEN: Reading and querying (the stub rejects the jsonb pushdown)
	all, err := st.ReadCollection(ctx, generic.TypeInvoices)
	require.NoError(t, err)
	some, err := st.QueryCollection(ctx, generic.TypeInvoices, generic.NewParams(map[string]string{"clientId": "b"}))
	require.NoError(t, err)

	// THEN: Both succeed, the query via the in-Go fallback
	assert.Equal(t, []string{"i1", "i2"}, all.IDs())
	assert.Equal(t, []string{"i2"}, some.IDs())
}

func TestPostgres_CorruptDocument(t *testing.T) {
	st, conn := newStubStore(t)
	conn.docs["clients"] = `{"not":"an array"}`

	_, err := st.ReadCollection(context.Background(), generic.TypeClients)
	assert.ErrorIs(t, err, generic.ErrCorruptCollection)
}

func TestBuildQuery_BindsFieldNames(t *testing.T) {
	q, args := buildQuery(generic.TypeProjects, generic.NewParams(map[string]string{"status": "active", "clientId": "c1"}))

	assert.Equal(t, []any{"projects", "clientId", "c1", "status", "active"}, args)
	assert.Contains(t, q, "e.elem->>$2::text = $3")
	assert.Contains(t, q, "e.elem->>$4::text = $5")
	assert.NotContains(t, q, "status")
}

// TestPostgres_Live runs against a real server when DASHBOARD_TEST_POSTGRES_DSN is set.
func TestPostgres_Live(t *testing.T) {
	dsn := os.Getenv("DASHBOARD_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("DASHBOARD_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	st, err := New(ctx, dsn)
	require.NoError(t, err)
	defer st.Close()

	typ := generic.EntityType(fmt.Sprintf("test_%d", time.Now().UnixNano()))
	require.NoError(t, st.WriteCollection(ctx, typ, generic.Collection{
		{"id": "a", "status": "active", "paid": true},
		{"id": "b", "status": "draft", "paid": false},
		{"id": "c", "status": "active", "paid": false},
	}))

	got, err := st.QueryCollection(ctx, typ, generic.NewParams(map[string]string{"status": "active", "paid": "false"}))
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, got.IDs())
}

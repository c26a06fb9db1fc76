package generic_test

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/dashboard-engine/generic"
)

// =============================================================================
// PARAMS
// =============================================================================

func TestParams_EncodeIsStableAcrossKeyOrder(t *testing.T) {
	// GIVEN: Two structurally equal param maps built in different orders
	a := generic.NewParams(map[string]string{"status": "active", "clientId": "c1"})
	b := generic.NewParams(map[string]string{"clientId": "c1"}).With("status", "active")

	// THEN: They encode identically (same cache key)
	assert.Equal(t, a.Encode(), b.Encode())
	assert.Equal(t, "clientId=c1&status=active", a.Encode())
}

func TestParams_AreImmutable(t *testing.T) {
	src := map[string]string{"status": "active"}
	p := generic.NewParams(src)
	src["status"] = "inactive"

	got, _ := p.Get("status")
	assert.Equal(t, "active", got)

	q := p.With("clientId", "c1")
	assert.Equal(t, 1, p.Len())
	assert.Equal(t, 2, q.Len())
}

func TestParams_DropsEmptyAndAllSentinel(t *testing.T) {
	p := generic.NewParams(map[string]string{"status": "all", "clientId": "", "type": "x"})

	assert.Equal(t, []string{"status", "type"}, p.Keys())
	assert.Equal(t, map[string]string{"type": "x"}, p.Filters())
}

func TestParams_MatchesByScalarEquality(t *testing.T) {
	e := generic.Entity{"status": "active", "progress": json.Number("40"), "archived": false}

	assert.True(t, generic.NewParams(map[string]string{"status": "active"}).Matches(e))
	assert.True(t, generic.NewParams(map[string]string{"progress": "40"}).Matches(e))
	assert.True(t, generic.NewParams(map[string]string{"archived": "false"}).Matches(e))
	assert.False(t, generic.NewParams(map[string]string{"clientId": "c1"}).Matches(e), "absent field never matches")
}

// =============================================================================
// ENTITY
// =============================================================================

func TestEntity_MergeIsShallow(t *testing.T) {
	// GIVEN: An entity with a nested address
	e := generic.Entity{
		"id":      "c1",
		"name":    "Sarah",
		"address": map[string]any{"street": "1 Main", "city": "London"},
	}

	// WHEN: Patching address with only a city
	merged := e.Merge(generic.Entity{"address": map[string]any{"city": "Leeds"}})

	// THEN: The nested object is replaced wholesale, other fields persist
	assert.Equal(t, map[string]any{"city": "Leeds"}, merged["address"])
	assert.Equal(t, "Sarah", merged["name"])
	assert.Equal(t, "London", e["address"].(map[string]any)["city"], "original untouched")
}

func TestEntity_LookupDottedPath(t *testing.T) {
	e := generic.Entity{"address": map[string]any{"city": "London"}}

	v, ok := e.Lookup("address.city")
	require.True(t, ok)
	assert.Equal(t, "London", v)

	_, ok = e.Lookup("address.country")
	assert.False(t, ok)
	_, ok = e.Lookup("name.first")
	assert.False(t, ok)
}

// =============================================================================
// COLLECTION ENCODING
// =============================================================================

func TestDecodeCollection_EmptyDocumentIsEmpty(t *testing.T) {
	coll, err := generic.DecodeCollection([]byte("  \n"))
	require.NoError(t, err)
	assert.Empty(t, coll)
	assert.NotNil(t, coll)
}

func TestDecodeCollection_RejectsWrongShapes(t *testing.T) {
	cases := map[string]string{
		"object":     `{"id":"a"}`,
		"scalars":    `[1,2]`,
		"null item":  `[null]`,
		"missing id": `[{"name":"x"}]`,
		"duplicate":  `[{"id":"a"},{"id":"a"}]`,
		"truncated":  `[{"id":"a"`,
		"trailing":   `[] []`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := generic.DecodeCollection([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestEncodeDecode_KeepsNumbersExact(t *testing.T) {
	coll := generic.Collection{{"id": "inv-1", "amount": json.Number("1234.10")}}

	data, err := generic.EncodeCollection(coll)
	require.NoError(t, err)
	back, err := generic.DecodeCollection(data)
	require.NoError(t, err)

	assert.Equal(t, json.Number("1234.10"), back[0]["amount"])
}

func TestEncodeCollection_NilIsEmptyArray(t *testing.T) {
	data, err := generic.EncodeCollection(nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))
}

// =============================================================================
// ERRORS
// =============================================================================

func TestErrors_UnwrapToSentinels(t *testing.T) {
	cause := errors.New("disk on fire")

	assert.ErrorIs(t, &generic.NotFoundError{Type: "clients", ID: "x"}, generic.ErrNotFound)
	assert.ErrorIs(t, &generic.StorageError{Op: "read", Type: "clients", Err: cause}, generic.ErrStorageUnavailable)
	assert.ErrorIs(t, &generic.StorageError{Op: "read", Type: "clients", Err: cause}, cause)
	assert.ErrorIs(t, &generic.CorruptCollectionError{Type: "clients", Err: cause}, generic.ErrCorruptCollection)
	assert.ErrorIs(t, &generic.ValidationError{Type: "clients"}, generic.ErrValidation)

	assert.True(t, generic.IsRetryable(&generic.StorageError{Err: cause}))
	assert.True(t, generic.IsNotFound(&generic.UnknownTypeError{Type: "widgets"}))
}

func TestValidationError_MessageIsSorted(t *testing.T) {
	err := &generic.ValidationError{Type: "clients", Fields: map[string]string{"name": "cannot be blank", "email": "cannot be blank"}}
	assert.Equal(t, "invalid clients: email: cannot be blank; name: cannot be blank", err.Error())
}

// =============================================================================
// TIMESTAMPS
// =============================================================================

func TestNextTimestamp_StrictlyIncreases(t *testing.T) {
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	prev := generic.FormatTimestamp(now)

	// WHEN: The clock has not moved
	next := generic.NextTimestamp(prev, now)

	// THEN: One millisecond later
	assert.Equal(t, "2024-01-02T03:04:05.001Z", next)

	// WHEN: The clock moved forward
	assert.Equal(t, "2024-01-02T03:04:06.000Z", generic.NextTimestamp(prev, now.Add(time.Second)))
}

func TestParseTimestamp_AcceptsDatesAndISO(t *testing.T) {
	d, ok := generic.ParseTimestamp("2024-01-02")
	require.True(t, ok)
	assert.Equal(t, 2, d.Day())

	_, ok = generic.ParseTimestamp("2023-01-01T00:00:00Z")
	assert.True(t, ok)

	_, ok = generic.ParseTimestamp("yesterday")
	assert.False(t, ok)
}

func TestEntityType_Valid(t *testing.T) {
	assert.True(t, generic.TypeClients.Valid())
	assert.True(t, generic.EntityType("floor-plans_2").Valid())
	assert.False(t, generic.EntityType("../etc").Valid())
	assert.False(t, generic.EntityType("").Valid())
	assert.False(t, generic.EntityType("Clients").Valid())
}

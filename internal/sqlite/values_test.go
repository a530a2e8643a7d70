// Unit tests for GetValues, schema evolution as seen by readers, and the
// reverse category lookups.
package sqlite

import (
	"context"
	"fmt"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/registry/pkg/types"
)

func stringArray(n int, active []int) types.PropertyArrayDescriptor {
	columnTypes := make([]types.ValueType, n)
	for i := range columnTypes {
		columnTypes[i] = types.TypeString
	}
	return types.MustPropertyArrayDescriptor("labels", columnTypes, active, types.NoOrderColumn)
}

func TestGetValues_SchemaEvolutionLeavesNulls(t *testing.T) {
	b := setupBackend(t)
	first := deposit(t, b, tracks, []feature{{Name: "a", Rank: 1}, {Name: "b", Rank: 2}}, nameOf, rankOf)
	second := deposit(t, b, tracks, []feature{{Score: 0.5, Active: true}}, scoreOf, activeOf)

	ids := append(append([]int64(nil), first...), second...)
	m := values(t, b, ids, nameProp, rankProp, scoreProp, activeProp)

	assert.Equal(t, []any{"a", "b", nil}, m.Values(nameProp))
	assert.Equal(t, []any{int64(1), int64(2), nil}, m.Values(rankProp))
	assert.Equal(t, []any{nil, nil, 0.5}, m.Values(scoreProp))
	assert.Equal(t, []any{nil, nil, true}, m.Values(activeProp))
}

func TestGetValues_ArrayGrowth(t *testing.T) {
	b := setupBackend(t)
	five := stringArray(5, nil)
	ten := stringArray(10, nil)
	onlySeventh := stringArray(10, []int{7})

	short := types.NewArrayAccessor(five, func(f feature) []any { return f.Readings })
	sparse := types.NewArrayAccessor(onlySeventh, func(f feature) []any { return f.Readings })

	first := deposit(t, b, tracks, []feature{{Readings: []any{"s0", "s1", "s2", "s3", "s4"}}}, short)
	second := deposit(t, b, tracks, []feature{{Readings: []any{"x"}}}, sparse)

	m := values(t, b, []int64{first[0], second[0]}, ten)
	got := m.Values(ten)
	assert.Equal(t, []any{"s0", "s1", "s2", "s3", "s4", nil, nil, nil, nil, nil}, got[0])
	assert.Equal(t, []any{nil, nil, nil, nil, nil, nil, nil, "x", nil, nil}, got[1])

	projected := stringArray(10, []int{4, 0})
	m = values(t, b, []int64{first[0]}, projected)
	assert.Equal(t, []any{[]any{"s4", "s0"}}, m.Values(projected), "projection order is kept")
}

func TestGetValues_ArrayBeyondStoredWidth(t *testing.T) {
	b := setupBackend(t)
	ids := deposit(t, b, tracks, []feature{{Readings: []any{1.0, 2.0, 3.0}}}, readingsOf)

	wider := types.MustPropertyArrayDescriptor("readings",
		[]types.ValueType{types.TypeFloat, types.TypeFloat, types.TypeFloat, types.TypeFloat}, []int{3, 2}, types.NoOrderColumn)
	m := values(t, b, ids, wider)
	assert.Equal(t, []any{[]any{nil, 3.0}}, m.Values(wider))
}

func TestGetValues_OrderAndUnknownIDs(t *testing.T) {
	b := setupBackend(t)
	ids := deposit(t, b, tracks, named("a", "b", "c"), nameOf)
	other := deposit(t, b, stations, named("s"), nameOf, rankOf)

	request := []int64{ids[2], 9999, other[0], ids[0], ids[2]}
	m := values(t, b, request, nameProp, rankProp, scoreProp)

	assert.Equal(t, []int64{ids[2], other[0], ids[0], ids[2]}, m.IDs(), "unknown ids are skipped")
	assert.Equal(t, []any{"c", "s", "a", "c"}, m.Values(nameProp))
	assert.Equal(t, []any{nil, int64(0), nil, nil}, m.Values(rankProp))
	assert.Equal(t, []any{nil, nil, nil, nil}, m.Values(scoreProp))
}

func TestGetValues_TypeMismatchReadsNull(t *testing.T) {
	b := setupBackend(t)
	ids := deposit(t, b, tracks, named("a"), nameOf)
	asInteger := types.NewPropertyDescriptor("name", types.TypeInteger)

	m := values(t, b, ids, asInteger, nameProp)
	assert.Equal(t, []any{nil}, m.Values(asInteger))
	assert.Equal(t, []any{"a"}, m.Values(nameProp))
}

func TestGetValues_Progress(t *testing.T) {
	b := setupBackend(t)
	var ids []int64
	for i := 0; i < 3; i++ {
		c := types.NewDataModelCategory("wfs", "layer", fmt.Sprintf("c%d", i))
		ids = append(ids, deposit(t, b, c, named("a", "b"), nameOf)...)
	}

	var calls [][2]int
	m := types.NewPropertyValueMap(nameProp)
	require.NoError(t, b.GetValues(context.Background(), ids, m, func(done, total int) {
		calls = append(calls, [2]int{done, total})
	}))

	require.Len(t, calls, 3)
	assert.Equal(t, [2]int{6, 6}, calls[2])
	for i := 1; i < len(calls); i++ {
		assert.Greater(t, calls[i][0], calls[i-1][0])
	}
	assert.Equal(t, 6, m.Len())
}

func TestGetDataModelCategories(t *testing.T) {
	b := setupBackend(t)
	ctx := context.Background()
	planes := types.NewDataModelCategory("wfs", "tracks", "aircraft")
	radar := types.NewDataModelCategory("radar", "tracks", "vessels")

	v := deposit(t, b, tracks, named("a", "b"), nameOf)
	p := deposit(t, b, planes, named("c"), nameOf)
	r := deposit(t, b, radar, named("d"), nameOf)
	s := deposit(t, b, stations, named("e"), nameOf)

	got, err := b.GetDataModelCategories(ctx, []int64{p[0], 12345, v[1]})
	require.NoError(t, err)
	assert.Equal(t, []types.DataModelCategory{planes, {}, tracks}, got)

	all := []int64{v[0], p[0], r[0], v[1], s[0]}
	tests := []struct {
		name                           string
		bySource, byFamily, byCategory bool
		want                           []types.DataModelCategory
	}{
		{"fully distinct", true, true, true, []types.DataModelCategory{tracks, planes, radar, stations}},
		{"ignore source", false, true, true, []types.DataModelCategory{
			{Family: "tracks", Category: "vessels"},
			{Family: "tracks", Category: "aircraft"},
			{Family: "stations", Category: "weather"},
		}},
		{"family only", false, true, false, []types.DataModelCategory{{Family: "tracks"}, {Family: "stations"}}},
		{"nothing distinct", false, false, false, []types.DataModelCategory{{}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := b.GetDataModelCategoriesByModelID(ctx, all, tt.bySource, tt.byFamily, tt.byCategory)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGetValues_GeometryReadsBackAsPolygon(t *testing.T) {
	b := setupBackend(t)
	ring := orb.Ring{{0, 0}, {2, 0}, {2, 2}, {0, 0}}
	bound := orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{3, 3}}
	ids := deposit(t, b, tracks, []feature{{Shape: ring}, {Shape: bound}}, shapeOf)

	got := values(t, b, ids, shapeProp).Values(shapeProp)
	assert.Equal(t, orb.Polygon{ring}, got[0])
	assert.Equal(t, bound.ToPolygon(), got[1])
}

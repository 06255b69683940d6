package metadata

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMap_Contains(t *testing.T) {
	doc := Map{
		"category": String("tutorial"),
		"version":  Number(1.11),
		"draft":    Bool(false),
		"tags":     Strings("maps", "tilesets"),
		"source": Nested(Map{
			"crawler": String("docs-sync"),
			"depth":   Number(2),
		}),
	}

	tests := []struct {
		name   string
		filter Map
		want   bool
	}{
		{name: "empty filter matches", filter: Map{}, want: true},
		{name: "nil filter matches", filter: nil, want: true},
		{name: "scalar match", filter: Map{"category": String("tutorial")}, want: true},
		{name: "scalar mismatch", filter: Map{"category": String("reference")}, want: false},
		{name: "missing key", filter: Map{"author": String("anyone")}, want: false},
		{name: "kind mismatch", filter: Map{"version": String("1.11")}, want: false},
		{name: "bool match", filter: Map{"draft": Bool(false)}, want: true},
		{
			name:   "nested containment",
			filter: Map{"source": Nested(Map{"crawler": String("docs-sync")})},
			want:   true,
		},
		{
			name:   "nested mismatch",
			filter: Map{"source": Nested(Map{"depth": Number(3)})},
			want:   false,
		},
		{name: "list equality", filter: Map{"tags": Strings("maps", "tilesets")}, want: true},
		{name: "list is not a subset match", filter: Map{"tags": Strings("maps")}, want: false},
		{
			name: "multiple keys all required",
			filter: Map{
				"category": String("tutorial"),
				"draft":    Bool(true),
			},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, doc.Contains(tt.filter))
		})
	}
}

func TestMap_Contains_NilMap(t *testing.T) {
	var m Map
	assert.True(t, m.Contains(nil))
	assert.True(t, m.Contains(Map{}))
	assert.False(t, m.Contains(Map{"k": String("v")}))
}

func TestParseMap_RoundTrip(t *testing.T) {
	in := []byte(`{
		"category": "map-editing",
		"features": ["infinite maps", "layers"],
		"version_info": {"added_in": "1.3"},
		"score": 0.87,
		"unknown": null
	}`)

	m, err := ParseMap(in)
	require.NoError(t, err)

	// null entries are dropped, not preserved
	_, ok := m["unknown"]
	assert.False(t, ok)

	cat, ok := m["category"].AsString()
	require.True(t, ok)
	assert.Equal(t, "map-editing", cat)

	score, ok := m["score"].AsNumber()
	require.True(t, ok)
	assert.InDelta(t, 0.87, score, 1e-9)

	encoded, err := EncodeMap(m)
	require.NoError(t, err)

	back, err := ParseMap(encoded)
	require.NoError(t, err)
	assert.True(t, back.Contains(m))
	assert.True(t, m.Contains(back))
}

func TestParseMap_Empty(t *testing.T) {
	m, err := ParseMap(nil)
	require.NoError(t, err)
	assert.Empty(t, m)

	m, err = ParseMap([]byte(`{}`))
	require.NoError(t, err)
	assert.Empty(t, m)
}

func TestValue_UnmarshalJSON(t *testing.T) {
	var v Value
	require.NoError(t, json.Unmarshal([]byte(`{"a": [1, "two", true]}`), &v))

	m, ok := v.AsMap()
	require.True(t, ok)
	list, ok := m["a"].AsList()
	require.True(t, ok)
	require.Len(t, list, 3)

	n, ok := list[0].AsNumber()
	require.True(t, ok)
	assert.Equal(t, float64(1), n)

	s, ok := list[1].AsString()
	require.True(t, ok)
	assert.Equal(t, "two", s)

	b, ok := list[2].AsBool()
	require.True(t, ok)
	assert.True(t, b)
}

func TestValue_Scalar(t *testing.T) {
	s, ok := String("x").Scalar()
	require.True(t, ok)
	assert.Equal(t, "x", s)

	s, ok = Number(2.5).Scalar()
	require.True(t, ok)
	assert.Equal(t, "2.5", s)

	s, ok = Bool(true).Scalar()
	require.True(t, ok)
	assert.Equal(t, "true", s)

	_, ok = Strings("a").Scalar()
	assert.False(t, ok)
	_, ok = Nested(Map{}).Scalar()
	assert.False(t, ok)
}

func TestMap_Clone(t *testing.T) {
	orig := Map{
		"tags":   Strings("a"),
		"nested": Nested(Map{"k": String("v")}),
	}
	cp := orig.Clone()
	require.True(t, cp.Contains(orig))

	// mutating the clone must not affect the original
	inner, _ := cp["nested"].AsMap()
	inner["k"] = String("changed")
	origInner, _ := orig["nested"].AsMap()
	v, _ := origInner["k"].AsString()
	assert.Equal(t, "v", v)

	assert.Nil(t, Map(nil).Clone())
}

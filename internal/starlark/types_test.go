package starlark

import (
	"testing"

	"github.com/leapstack-labs/leaplg/internal/lg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.starlark.net/starlark"
)

type point struct {
	X int    `json:"x"`
	Y int    `json:"y"`
	L string `json:"label"`
}

func TestGoToStarlark(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"nil", nil, "None"},
		{"string", "hi", `"hi"`},
		{"int", 3, "3"},
		{"int32", int32(3), "3"},
		{"uint", uint(3), "3"},
		{"float", 1.5, "1.5"},
		{"bool", true, "True"},
		{"strings", []string{"a"}, `["a"]`},
		{"any list", []any{1, "a", nil}, `[1, "a", None]`},
		{"string map", map[string]string{"k": "v"}, `{"k": "v"}`},
		{"typed slice", []int{1, 2}, "[1, 2]"},
		{"struct", point{X: 1, Y: 2, L: "p"}, `{"label": "p", "x": 1, "y": 2}`},
		{"float via json", []float64{0.5}, "[0.5]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := GoToStarlark(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}

	_, err := GoToStarlark(make(chan int))
	assert.Error(t, err)
}

func TestToGo(t *testing.T) {
	dict := starlark.NewDict(2)
	require.NoError(t, dict.SetKey(starlark.String("a"), starlark.MakeInt(1)))
	require.NoError(t, dict.SetKey(starlark.MakeInt(2), starlark.None))

	tests := []struct {
		name string
		in   starlark.Value
		want any
	}{
		{"none", starlark.None, nil},
		{"string", starlark.String("s"), "s"},
		{"int", starlark.MakeInt(7), int64(7)},
		{"big int", starlark.MakeInt64(1).Lsh(70), "1180591620717411303424"},
		{"float", starlark.Float(0.25), 0.25},
		{"bool", starlark.False, false},
		{"list", starlark.NewList([]starlark.Value{starlark.MakeInt(1)}), []any{int64(1)}},
		{"tuple", starlark.Tuple{starlark.String("x")}, []any{"x"}},
		{"dict", dict, map[string]any{"a": int64(1), "2": nil}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToGo(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestToGo_Truthiness(t *testing.T) {
	tests := []struct {
		in   starlark.Value
		want bool
	}{
		{starlark.False, false},
		{starlark.MakeInt(0), false},
		{starlark.True, true},
		{starlark.MakeInt(2), true},
		{starlark.String(""), true},
		{starlark.NewList(nil), true},
	}

	for _, tt := range tests {
		t.Run(tt.in.String(), func(t *testing.T) {
			got, err := ToGo(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, lg.Truthy(got))
		})
	}
}

func TestBuiltinDocs(t *testing.T) {
	for _, name := range BuiltinNames {
		doc, ok := BuiltinDocs[name]
		if assert.True(t, ok, "builtin %s has no doc", name) {
			assert.Contains(t, doc.Signature, name+"(")
		}
	}
	assert.Len(t, BuiltinDocs, len(BuiltinNames))
}

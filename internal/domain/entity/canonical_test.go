package entity

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonical(t *testing.T) {
	tests := []struct {
		name     string
		value    any
		expected string
	}{
		{
			name:     "sorted keys",
			value:    Fields{"b": "2", "a": "1", "c": Fields{"z": true, "y": nil}},
			expected: `{"a":"1","b":"2","c":{"y":null,"z":true}}`,
		},
		{
			name:     "no html escaping",
			value:    Fields{"note": "<b>&</b>"},
			expected: `{"note":"<b>&</b>"}`,
		},
		{
			name:     "nfc normalization",
			value:    Fields{"name": "Mu\u0308ller"},
			expected: "{\"name\":\"M\u00fcller\"}",
		},
		{
			name:     "numbers of different go types",
			value:    []any{1, int64(2), json.Number("3"), 4.0, json.Number("5.50"), 0.25},
			expected: `[1,2,3,4,5.5,0.25]`,
		},
		{
			name:     "typed slices",
			value:    Fields{"ids": []string{"a", "b"}},
			expected: `{"ids":["a","b"]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Canonical(tt.value)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(got))
		})
	}
}

func TestEqual(t *testing.T) {
	a := Fields{"id": "p1", "age": json.Number("42"), "tags": []any{"x"}}
	b := Fields{"tags": []any{"x"}, "age": 42, "id": "p1"}

	eq, err := Equal(a, b)
	require.NoError(t, err)
	assert.True(t, eq)

	b["age"] = 43
	eq, err = Equal(a, b)
	require.NoError(t, err)
	assert.False(t, eq)
}

func TestCanonical_Unsupported(t *testing.T) {
	_, err := Canonical(Fields{"ch": make(chan int)})
	assert.ErrorIs(t, err, ErrUnsupportedValue)
}

func TestFieldsOf(t *testing.T) {
	type sample struct {
		ID    string `json:"id"`
		Count int64  `json:"count"`
	}

	f, err := FieldsOf(sample{ID: "x", Count: 9007199254740993})
	require.NoError(t, err)
	assert.Equal(t, json.Number("9007199254740993"), f["count"])

	_, err = DecodeFields([]byte(`null`))
	assert.ErrorIs(t, err, ErrNotAnObject)
}

func TestFields_ShapeAndClone(t *testing.T) {
	f := Fields{ShapeTagKey: "visit", "nested": map[string]any{"k": []any{"v"}}}

	shape, ok := f.Shape()
	assert.True(t, ok)
	assert.Equal(t, ShapeVisit, shape)

	stripped := f.WithoutShape()
	_, ok = stripped.Shape()
	assert.False(t, ok)

	clone := f.Clone()
	clone["nested"].(map[string]any)["k"].([]any)[0] = "changed"
	assert.Equal(t, "v", f["nested"].(map[string]any)["k"].([]any)[0])
}

func TestType_Category(t *testing.T) {
	assert.Equal(t, CategoryMasterData, TypePatient.Category())
	assert.Equal(t, CategoryMasterData, TypeAvailability.Category())
	assert.Equal(t, CategoryTransactional, TypeSession.Category())
	assert.Equal(t, CategoryParameter, TypeICDCode.Category())
	assert.False(t, Type("unknown").Valid())
}

package jsonfix

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFixupLeavesValidJSONAlone(t *testing.T) {
	in := `[{"name": "Cafe A", "latitude": 10.7}]`
	assert.Equal(t, in, FixupBrokenJSON(in))
}

func TestFixupEvaluatesArithmetic(t *testing.T) {
	in := `[
  {
    "name": "Cafe A",
    "latitude": 10.7 + 0.01,
    "longitude": 106 - 0.5,
    "rating": "4.5/5"
  }
]`
	out := FixupBrokenJSON(in)
	var places []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &places))
	require.Len(t, places, 1)
	assert.Equal(t, "Cafe A", places[0]["name"])
	assert.InDelta(t, 10.71, places[0]["latitude"], 1e-9)
	assert.InDelta(t, 105.5, places[0]["longitude"], 1e-9)
	assert.Equal(t, "4.5/5", places[0]["rating"])
}

func TestFixupUsesMathLibrary(t *testing.T) {
	in := "{\n  \"latitude\": math.floor(10.9),\n  \"longitude\": 2 * 53\n}"
	var place map[string]any
	require.NoError(t, json.Unmarshal([]byte(FixupBrokenJSON(in)), &place))
	assert.InDelta(t, 10, place["latitude"], 1e-9)
	assert.InDelta(t, 106, place["longitude"], 1e-9)
}

func TestFixupKeepsUnevaluableValues(t *testing.T) {
	in := "{\n  \"name\": Cafe A,\n  \"latitude\": 1 +\n}"
	assert.Equal(t, in, FixupBrokenJSON(in))
}

func TestEvalExpressionRejectsNonScalars(t *testing.T) {
	_, ok := evalExpression("os.exit(1)")
	assert.False(t, ok)
	_, ok = evalExpression("1/0")
	assert.False(t, ok)
	v, ok := evalExpression("0.1 - 0.1")
	assert.True(t, ok)
	assert.Equal(t, "0", v)
}

package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomhq/loom/internal/xjson"
)

func TestMergeMapsOverridesScalarsAppendsSlices(t *testing.T) {
	dst := map[string]interface{}{
		"name": "old",
		"tags": []interface{}{"a"},
		"meta": map[string]interface{}{"keep": true},
	}
	src := map[string]interface{}{
		"name": "new",
		"tags": []interface{}{"b"},
		"meta": map[string]interface{}{"added": float64(1)},
	}

	merged, err := MergeMaps(dst, src)
	require.NoError(t, err)

	assert.Equal(t, "new", merged["name"])
	assert.Equal(t, []interface{}{"a", "b"}, merged["tags"])
	meta := merged["meta"].(map[string]interface{})
	assert.Equal(t, true, meta["keep"])
	assert.Equal(t, float64(1), meta["added"])
}

func TestMergeStatesObjects(t *testing.T) {
	merged, err := MergeStates(
		xjson.RawMessage(`{"count": 1, "nested": {"a": 1}}`),
		xjson.RawMessage(`{"count": 2, "nested": {"b": 2}}`),
	)
	require.NoError(t, err)

	var got map[string]interface{}
	require.NoError(t, xjson.Unmarshal(merged, &got))
	assert.Equal(t, float64(2), got["count"])
	nested := got["nested"].(map[string]interface{})
	assert.Equal(t, float64(1), nested["a"])
	assert.Equal(t, float64(2), nested["b"])
}

func TestMergeStatesArraysConcatenate(t *testing.T) {
	merged, err := MergeStates(xjson.RawMessage(`[1]`), xjson.RawMessage(`[2, 3]`))
	require.NoError(t, err)

	var got []interface{}
	require.NoError(t, xjson.Unmarshal(merged, &got))
	assert.Equal(t, []interface{}{float64(1), float64(2), float64(3)}, got)
}

func TestMergeStatesMismatchedShapes(t *testing.T) {
	merged, err := MergeStates(xjson.RawMessage(`{"a": 1}`), xjson.RawMessage(`"replacement"`))
	require.NoError(t, err)
	assert.Equal(t, `"replacement"`, string(merged))

	merged, err = MergeStates(nil, xjson.RawMessage(`{"a": 1}`))
	require.NoError(t, err)
	assert.Equal(t, `{"a": 1}`, string(merged))
}

package domain

import (
	"dario.cat/mergo"

	"github.com/loomhq/loom/internal/xjson"
)

// MergeMaps deep-merges src into dst. Overlapping scalar values are
// overridden by src; slices are appended.
func MergeMaps(dst, src map[string]interface{}) (map[string]interface{}, error) {
	if dst == nil {
		return src, nil
	}
	if src == nil {
		return dst, nil
	}
	if err := mergo.Merge(&dst, src, mergo.WithOverride, mergo.WithAppendSlice); err != nil {
		return nil, err
	}
	return dst, nil
}

// MergeStates deep-merges two JSON documents. Objects merge recursively,
// arrays concatenate, and mismatched shapes resolve in favour of results.
func MergeStates(current, results xjson.RawMessage) (xjson.RawMessage, error) {
	if len(current) == 0 {
		return results, nil
	}
	if len(results) == 0 {
		return current, nil
	}

	var currentData, resultsData interface{}
	if err := xjson.Unmarshal(current, &currentData); err != nil {
		return nil, err
	}
	if err := xjson.Unmarshal(results, &resultsData); err != nil {
		return nil, err
	}

	switch {
	case isObject(currentData) && isObject(resultsData):
		merged, err := MergeMaps(currentData.(map[string]interface{}), resultsData.(map[string]interface{}))
		if err != nil {
			return nil, err
		}
		return xjson.Marshal(merged)

	case isArray(currentData) && isArray(resultsData):
		currentSlice := currentData.([]interface{})
		resultsSlice := resultsData.([]interface{})
		merged := make([]interface{}, 0, len(currentSlice)+len(resultsSlice))
		merged = append(merged, currentSlice...)
		merged = append(merged, resultsSlice...)
		return xjson.Marshal(merged)

	default:
		return results, nil
	}
}

func isObject(v interface{}) bool {
	_, ok := v.(map[string]interface{})
	return ok
}

func isArray(v interface{}) bool {
	_, ok := v.([]interface{})
	return ok
}

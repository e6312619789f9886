package mapping

import (
	"strconv"
	"strings"

	"github.com/loomhq/loom/internal/domain"
)

// parsePath splits dot/array-index notation into flat segments;
// "items[0].name" and "items.0.name" both become ["items", "0", "name"].
func parsePath(path string) []string {
	if path == "" {
		return nil
	}
	var segments []string
	for _, part := range strings.Split(path, ".") {
		for {
			open := strings.IndexByte(part, '[')
			if open < 0 {
				if part != "" {
					segments = append(segments, part)
				}
				break
			}
			if head := part[:open]; head != "" {
				segments = append(segments, head)
			}
			closing := strings.IndexByte(part, ']')
			if closing < open {
				segments = append(segments, part[open:])
				break
			}
			segments = append(segments, part[open+1:closing])
			part = part[closing+1:]
		}
	}
	return segments
}

// resolvePath descends a value along parsed segments. Numeric segments index
// arrays. The boolean result distinguishes "present but null" from "absent":
// only a missing key, out-of-range index or non-container step reports false.
func resolvePath(value interface{}, path string) (interface{}, bool) {
	current := value
	for _, seg := range parsePath(path) {
		switch container := current.(type) {
		case map[string]interface{}:
			next, ok := container[seg]
			if !ok {
				return nil, false
			}
			current = next
		case []interface{}:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(container) {
				return nil, false
			}
			current = container[idx]
		default:
			return nil, false
		}
	}
	return current, true
}

// setPath writes value into result at the target path, creating intermediate
// maps or arrays depending on whether the next segment is numeric. When both
// the existing and the incoming value at the final position are objects they
// are deep-merged so sibling mappings can build up one subtree.
func setPath(result map[string]interface{}, path string, value interface{}) error {
	segments := parsePath(path)
	if len(segments) == 0 {
		return &domain.FieldResolutionError{Field: path, Message: "empty target path"}
	}
	if indexSegment(segments[0]) >= 0 {
		return &domain.FieldResolutionError{Field: path, Message: "target path cannot start with an array index"}
	}
	_, err := setSegments(result, segments, value, path)
	return err
}

func setSegments(container interface{}, segments []string, value interface{}, fullPath string) (interface{}, error) {
	seg := segments[0]
	last := len(segments) == 1

	if idx := indexSegment(seg); idx >= 0 {
		arr, _ := container.([]interface{})
		for len(arr) <= idx {
			arr = append(arr, nil)
		}
		if last {
			merged, err := mergeAssign(arr[idx], value)
			if err != nil {
				return nil, err
			}
			arr[idx] = merged
			return arr, nil
		}
		child, err := setSegments(arr[idx], segments[1:], value, fullPath)
		if err != nil {
			return nil, err
		}
		arr[idx] = child
		return arr, nil
	}

	m, ok := container.(map[string]interface{})
	if !ok || m == nil {
		m = make(map[string]interface{})
	}
	if last {
		merged, err := mergeAssign(m[seg], value)
		if err != nil {
			return nil, err
		}
		m[seg] = merged
		return m, nil
	}
	child, err := setSegments(m[seg], segments[1:], value, fullPath)
	if err != nil {
		return nil, err
	}
	m[seg] = child
	return m, nil
}

// mergeAssign deep-merges when both sides are objects, otherwise the new
// value wins.
func mergeAssign(existing, value interface{}) (interface{}, error) {
	existingMap, ok := existing.(map[string]interface{})
	if !ok {
		return value, nil
	}
	incomingMap, ok := value.(map[string]interface{})
	if !ok {
		return value, nil
	}
	return domain.MergeMaps(existingMap, incomingMap)
}

// indexSegment returns the numeric value of an array-index segment, or -1.
func indexSegment(seg string) int {
	idx, err := strconv.Atoi(seg)
	if err != nil || idx < 0 {
		return -1
	}
	return idx
}

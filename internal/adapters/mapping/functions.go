package mapping

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/loomhq/loom/internal/ports"
)

var slugifyPattern = regexp.MustCompile(`[^a-z0-9]+`)

func builtinFunctions() map[string]ports.HelperFunc {
	return map[string]ports.HelperFunc{
		"coalesce":    fnCoalesce,
		"if":          fnIf,
		"default":     fnDefault,
		"upper":       fnUpper,
		"lower":       fnLower,
		"trim":        fnTrim,
		"substring":   fnSubstring,
		"slugify":     fnSlugify,
		"concat":      fnConcat,
		"length":      fnLength,
		"join":        fnJoin,
		"split":       fnSplit,
		"round":       fnRound,
		"floor":       fnFloor,
		"ceil":        fnCeil,
		"abs":         fnAbs,
		"min":         fnMin,
		"max":         fnMax,
		"to_number":   fnToNumber,
		"format_date": fnFormatDate,
		"filter":      fnFilter,
		"map":         fnMap,
	}
}

// fnCoalesce returns the first argument that is neither null nor an empty
// string.
func fnCoalesce(args []interface{}) (interface{}, error) {
	for _, arg := range args {
		if arg == nil {
			continue
		}
		if s, ok := arg.(string); ok && s == "" {
			continue
		}
		return arg, nil
	}
	return nil, nil
}

func fnIf(args []interface{}) (interface{}, error) {
	if len(args) != 3 {
		return nil, fmt.Errorf("if expects 3 arguments, got %d", len(args))
	}
	if truthy(args[0]) {
		return args[1], nil
	}
	return args[2], nil
}

func fnDefault(args []interface{}) (interface{}, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("default expects 2 arguments, got %d", len(args))
	}
	if args[0] == nil {
		return args[1], nil
	}
	return args[0], nil
}

func fnUpper(args []interface{}) (interface{}, error) {
	s, err := singleString("upper", args)
	if err != nil {
		return nil, err
	}
	return strings.ToUpper(s), nil
}

func fnLower(args []interface{}) (interface{}, error) {
	s, err := singleString("lower", args)
	if err != nil {
		return nil, err
	}
	return strings.ToLower(s), nil
}

func fnTrim(args []interface{}) (interface{}, error) {
	s, err := singleString("trim", args)
	if err != nil {
		return nil, err
	}
	return strings.TrimSpace(s), nil
}

func fnSubstring(args []interface{}) (interface{}, error) {
	if len(args) < 2 || len(args) > 3 {
		return nil, fmt.Errorf("substring expects 2 or 3 arguments, got %d", len(args))
	}
	s := stringify(args[0])
	start, ok := toFloat(args[1])
	if !ok {
		return nil, fmt.Errorf("substring start must be numeric")
	}
	from := clampIndex(int(start), len(s))
	to := len(s)
	if len(args) == 3 {
		end, ok := toFloat(args[2])
		if !ok {
			return nil, fmt.Errorf("substring end must be numeric")
		}
		to = clampIndex(int(end), len(s))
	}
	if to < from {
		to = from
	}
	return s[from:to], nil
}

func fnSlugify(args []interface{}) (interface{}, error) {
	s, err := singleString("slugify", args)
	if err != nil {
		return nil, err
	}
	return slugify(s), nil
}

func slugify(s string) string {
	s = slugifyPattern.ReplaceAllString(strings.ToLower(s), "-")
	return strings.Trim(s, "-")
}

func fnConcat(args []interface{}) (interface{}, error) {
	var sb strings.Builder
	for _, arg := range args {
		sb.WriteString(stringify(arg))
	}
	return sb.String(), nil
}

func fnLength(args []interface{}) (interface{}, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("length expects 1 argument, got %d", len(args))
	}
	switch v := args[0].(type) {
	case nil:
		return float64(0), nil
	case string:
		return float64(len(v)), nil
	case []interface{}:
		return float64(len(v)), nil
	case map[string]interface{}:
		return float64(len(v)), nil
	}
	return nil, fmt.Errorf("length expects a string, array or object, got %T", args[0])
}

func fnJoin(args []interface{}) (interface{}, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("join expects 2 arguments, got %d", len(args))
	}
	arr, ok := args[0].([]interface{})
	if !ok {
		return nil, fmt.Errorf("join expects an array, got %T", args[0])
	}
	sep := stringify(args[1])
	parts := make([]string, len(arr))
	for i, item := range arr {
		parts[i] = stringify(item)
	}
	return strings.Join(parts, sep), nil
}

func fnSplit(args []interface{}) (interface{}, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("split expects 2 arguments, got %d", len(args))
	}
	parts := strings.Split(stringify(args[0]), stringify(args[1]))
	result := make([]interface{}, len(parts))
	for i, part := range parts {
		result[i] = part
	}
	return result, nil
}

func fnRound(args []interface{}) (interface{}, error) {
	return mathUnary("round", args, math.Round)
}

func fnFloor(args []interface{}) (interface{}, error) {
	return mathUnary("floor", args, math.Floor)
}

func fnCeil(args []interface{}) (interface{}, error) {
	return mathUnary("ceil", args, math.Ceil)
}

func fnAbs(args []interface{}) (interface{}, error) {
	return mathUnary("abs", args, math.Abs)
}

func fnMin(args []interface{}) (interface{}, error) {
	return fold("min", args, math.Min)
}

func fnMax(args []interface{}) (interface{}, error) {
	return fold("max", args, math.Max)
}

func fnToNumber(args []interface{}) (interface{}, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("to_number expects 1 argument, got %d", len(args))
	}
	return coerceNumber(args[0])
}

// fnFormatDate accepts an RFC 3339 timestamp or epoch seconds plus a pattern
// using YYYY, MM, DD, HH, mm, ss tokens.
func fnFormatDate(args []interface{}) (interface{}, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("format_date expects 2 arguments, got %d", len(args))
	}
	t, err := parseTimestamp(args[0])
	if err != nil {
		return nil, err
	}
	pattern, ok := args[1].(string)
	if !ok {
		return nil, fmt.Errorf("format_date pattern must be a string")
	}
	return t.Format(translateDatePattern(pattern)), nil
}

func parseTimestamp(v interface{}) (time.Time, error) {
	switch val := v.(type) {
	case string:
		if t, err := time.Parse(time.RFC3339, val); err == nil {
			return t, nil
		}
		if t, err := time.Parse("2006-01-02", val); err == nil {
			return t, nil
		}
		return time.Time{}, fmt.Errorf("cannot parse timestamp %q", val)
	}
	if epoch, ok := toFloat(v); ok {
		return time.Unix(int64(epoch), 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("cannot parse timestamp from %T", v)
}

var dateTokens = [][2]string{
	{"YYYY", "2006"},
	{"MM", "01"},
	{"DD", "02"},
	{"HH", "15"},
	{"mm", "04"},
	{"ss", "05"},
}

func translateDatePattern(pattern string) string {
	for _, pair := range dateTokens {
		pattern = strings.ReplaceAll(pattern, pair[0], pair[1])
	}
	return pattern
}

// fnFilter keeps array elements whose field equals the given value.
func fnFilter(args []interface{}) (interface{}, error) {
	if len(args) != 3 {
		return nil, fmt.Errorf("filter expects 3 arguments, got %d", len(args))
	}
	arr, ok := args[0].([]interface{})
	if !ok {
		return nil, fmt.Errorf("filter expects an array, got %T", args[0])
	}
	field, ok := args[1].(string)
	if !ok {
		return nil, fmt.Errorf("filter field must be a string")
	}
	result := make([]interface{}, 0, len(arr))
	for _, item := range arr {
		if m, ok := item.(map[string]interface{}); ok && looseEqual(m[field], args[2]) {
			result = append(result, item)
		}
	}
	return result, nil
}

// fnMap projects a single field out of each array element.
func fnMap(args []interface{}) (interface{}, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("map expects 2 arguments, got %d", len(args))
	}
	arr, ok := args[0].([]interface{})
	if !ok {
		return nil, fmt.Errorf("map expects an array, got %T", args[0])
	}
	field, ok := args[1].(string)
	if !ok {
		return nil, fmt.Errorf("map field must be a string")
	}
	result := make([]interface{}, len(arr))
	for i, item := range arr {
		if m, ok := item.(map[string]interface{}); ok {
			result[i] = m[field]
		}
	}
	return result, nil
}

func singleString(name string, args []interface{}) (string, error) {
	if len(args) != 1 {
		return "", fmt.Errorf("%s expects 1 argument, got %d", name, len(args))
	}
	return stringify(args[0]), nil
}

func mathUnary(name string, args []interface{}, fn func(float64) float64) (interface{}, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("%s expects 1 argument, got %d", name, len(args))
	}
	num, ok := toFloat(args[0])
	if !ok {
		return nil, fmt.Errorf("%s expects a number, got %T", name, args[0])
	}
	return fn(num), nil
}

func fold(name string, args []interface{}, fn func(float64, float64) float64) (interface{}, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("%s expects at least 1 argument", name)
	}
	acc, ok := toFloat(args[0])
	if !ok {
		return nil, fmt.Errorf("%s expects numbers, got %T", name, args[0])
	}
	for _, arg := range args[1:] {
		num, ok := toFloat(arg)
		if !ok {
			return nil, fmt.Errorf("%s expects numbers, got %T", name, arg)
		}
		acc = fn(acc, num)
	}
	return acc, nil
}

func clampIndex(i, length int) int {
	if i < 0 {
		i = length + i
	}
	if i < 0 {
		return 0
	}
	if i > length {
		return length
	}
	return i
}

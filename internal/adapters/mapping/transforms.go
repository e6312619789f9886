package mapping

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/loomhq/loom/internal/ports"
	"github.com/loomhq/loom/internal/xjson"
)

func builtinTransforms() map[string]ports.TransformFunc {
	return map[string]ports.TransformFunc{
		"uppercase": func(v interface{}) (interface{}, error) {
			return strings.ToUpper(stringify(v)), nil
		},
		"lowercase": func(v interface{}) (interface{}, error) {
			return strings.ToLower(stringify(v)), nil
		},
		"trim": func(v interface{}) (interface{}, error) {
			return strings.TrimSpace(stringify(v)), nil
		},
		"slugify": func(v interface{}) (interface{}, error) {
			return slugify(stringify(v)), nil
		},
		"round":     numericTransform("round", math.Round),
		"floor":     numericTransform("floor", math.Floor),
		"ceil":      numericTransform("ceil", math.Ceil),
		"to_number": coerceNumber,
		"to_string": func(v interface{}) (interface{}, error) {
			return stringify(v), nil
		},
		"to_boolean": func(v interface{}) (interface{}, error) {
			return truthy(v), nil
		},
		"length": func(v interface{}) (interface{}, error) {
			return fnLength([]interface{}{v})
		},
		"join": func(v interface{}) (interface{}, error) {
			return fnJoin([]interface{}{v, ","})
		},
		"split": func(v interface{}) (interface{}, error) {
			return fnSplit([]interface{}{v, ","})
		},
		"json_parse": func(v interface{}) (interface{}, error) {
			s, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("json_parse expects a string, got %T", v)
			}
			var out interface{}
			if err := xjson.Unmarshal([]byte(s), &out); err != nil {
				return nil, fmt.Errorf("json_parse: %w", err)
			}
			return out, nil
		},
		"json_stringify": func(v interface{}) (interface{}, error) {
			data, err := xjson.Marshal(v)
			if err != nil {
				return nil, fmt.Errorf("json_stringify: %w", err)
			}
			return string(data), nil
		},
	}
}

func numericTransform(name string, fn func(float64) float64) ports.TransformFunc {
	return func(v interface{}) (interface{}, error) {
		num, ok := toFloat(v)
		if !ok {
			return nil, fmt.Errorf("%s expects a number, got %T", name, v)
		}
		return fn(num), nil
	}
}

func coerceNumber(v interface{}) (interface{}, error) {
	if num, ok := toFloat(v); ok {
		return num, nil
	}
	switch val := v.(type) {
	case string:
		num, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return nil, fmt.Errorf("cannot convert %q to a number", val)
		}
		return num, nil
	case bool:
		if val {
			return float64(1), nil
		}
		return float64(0), nil
	}
	return nil, fmt.Errorf("cannot convert %T to a number", v)
}

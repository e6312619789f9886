package xjson

import (
	stdjson "encoding/json"

	gjson "github.com/goccy/go-json"
)

// Marshal/Unmarshal wrappers so the codec can be swapped between
// encoding/json and goccy/go-json at a single import site.

func Marshal(v interface{}) ([]byte, error) {
	return gjson.Marshal(v)
}

func Unmarshal(data []byte, v interface{}) error {
	return gjson.Unmarshal(data, v)
}

// RawMessage stays compatible with encoding/json's RawMessage type.
type RawMessage = stdjson.RawMessage

package validator

import (
	"errors"
	"strconv"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/loomhq/loom/internal/domain"
	"github.com/loomhq/loom/internal/xjson"
)

const graphSchemaDoc = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["id", "name", "nodes", "edges"],
  "properties": {
    "id": {"type": "string", "minLength": 1},
    "name": {"type": "string", "minLength": 1},
    "nodes": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["id", "type"],
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "type": {"type": "string", "minLength": 1},
          "params": {"type": ["object", "null"]},
          "position": {
            "type": "object",
            "required": ["x", "y"],
            "properties": {
              "x": {"type": "number"},
              "y": {"type": "number"}
            }
          }
        }
      }
    },
    "edges": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "source", "target"],
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "source": {"type": "string", "minLength": 1},
          "target": {"type": "string", "minLength": 1}
        }
      }
    }
  }
}`

var graphSchema = jsonschema.MustCompileString("graph.schema.json", graphSchemaDoc)

// checkSchema verifies the serialized graph against the compiled document
// schema. Empty strings serialize away under omitempty-free tags, so missing
// and empty required fields both surface here.
func (v *Validator) checkSchema(raw []byte, result *domain.ValidationResult) {
	var doc interface{}
	if err := xjson.Unmarshal(raw, &doc); err != nil {
		result.AddError("/", "graph is not valid JSON: "+err.Error(), "malformed_graph")
		return
	}

	err := graphSchema.Validate(doc)
	if err == nil {
		return
	}

	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		result.AddError("/", "schema validation failed: "+err.Error(), "schema_violation")
		return
	}

	for _, leaf := range leafCauses(ve) {
		path := leaf.InstanceLocation
		if path == "" {
			path = "/"
		}
		result.AddError(path, leaf.Message, "schema_violation")
	}
}

func leafCauses(ve *jsonschema.ValidationError) []*jsonschema.ValidationError {
	if len(ve.Causes) == 0 {
		return []*jsonschema.ValidationError{ve}
	}
	var leaves []*jsonschema.ValidationError
	for _, cause := range ve.Causes {
		leaves = append(leaves, leafCauses(cause)...)
	}
	return leaves
}

func nodePath(node *domain.Node, index int) string {
	if node.ID != "" {
		return "/nodes/" + node.ID
	}
	return "/nodes/" + strconv.Itoa(index)
}

func edgePath(edge *domain.Edge, index int) string {
	if edge.ID != "" {
		return "/edges/" + edge.ID
	}
	return "/edges/" + strconv.Itoa(index)
}

package planner

import (
	"encoding/json"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// actionSchema constrains the model's step output before any field is
// trusted. Parameters stay loose; tool-specific checks happen in parse.
const actionSchema = `{
	"type": "object",
	"required": ["action"],
	"properties": {
		"thought": {"type": "string"},
		"action": {
			"type": "object",
			"required": ["tool_name"],
			"properties": {
				"tool_name": {"type": "string", "minLength": 1},
				"parameters": {"type": "object"}
			}
		}
	}
}`

var compiledActionSchema = jsonschema.MustCompileString("action.json", actionSchema)

func validateActionJSON(raw string) error {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var doc interface{}
	if err := dec.Decode(&doc); err != nil {
		return err
	}
	return compiledActionSchema.Validate(doc)
}

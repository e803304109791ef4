package costmodel

import (
	"encoding/json"
	"sync"

	"github.com/pkg/errors"
	"github.com/santhosh-tekuri/jsonschema/v6"
)

// globalsSchemaJSON restricts a globals bag to a flat-or-nested JSON object
// whose values are the JSON types value.Value understands: numbers,
// strings, booleans, nulls, arrays, and nested objects of the same. It
// exists to turn a malformed globals bag into a precise schema-validation
// error instead of an opaque decode failure further down the pipeline.
const globalsSchemaJSON = `{
	"type": "object",
	"additionalProperties": {
		"$ref": "#/$defs/value"
	},
	"$defs": {
		"value": {
			"anyOf": [
				{"type": "number"},
				{"type": "string"},
				{"type": "boolean"},
				{"type": "null"},
				{"type": "array", "items": {"$ref": "#/$defs/value"}},
				{"type": "object", "additionalProperties": {"$ref": "#/$defs/value"}}
			]
		}
	}
}`

var (
	globalsSchemaOnce sync.Once
	globalsSchema     *jsonschema.Schema
	globalsSchemaErr  error
)

func compiledGlobalsSchema() (*jsonschema.Schema, error) {
	globalsSchemaOnce.Do(func() {
		var doc interface{}
		if err := json.Unmarshal([]byte(globalsSchemaJSON), &doc); err != nil {
			globalsSchemaErr = errors.Wrap(err, "costmodel: parsing globals schema")
			return
		}

		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("globals.json", doc); err != nil {
			globalsSchemaErr = errors.Wrap(err, "costmodel: adding globals schema resource")
			return
		}

		schema, err := compiler.Compile("globals.json")
		if err != nil {
			globalsSchemaErr = errors.Wrap(err, "costmodel: compiling globals schema")
			return
		}
		globalsSchema = schema
	})
	return globalsSchema, globalsSchemaErr
}

// validateGlobalsJSON rejects a globals bag that isn't a flat-or-nested JSON
// object of the types value.Value understands.
func validateGlobalsJSON(globalsJSON string) error {
	if globalsJSON == "" {
		return nil
	}

	schema, err := compiledGlobalsSchema()
	if err != nil {
		return err
	}

	var doc interface{}
	if err := json.Unmarshal([]byte(globalsJSON), &doc); err != nil {
		return errors.Wrap(err, "costmodel: invalid globals JSON")
	}

	if err := schema.Validate(doc); err != nil {
		return errors.Wrap(err, "costmodel: globals failed schema validation")
	}
	return nil
}

package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const decimalPattern = `^-?[0-9]+(\.[0-9]+)?$`

// TradeRecordSchema is the JSON Schema every published record must satisfy.
var TradeRecordSchema = map[string]any{
	"$schema":              "https://json-schema.org/draft/2020-12/schema",
	"type":                 "object",
	"additionalProperties": false,
	"required":             []string{"order_id", "date_received", "order_type", "legs"},
	"properties": map[string]any{
		"order_id":      map[string]any{"type": "string", "pattern": `^[0-9]+$`},
		"date_received": map[string]any{"type": "string", "format": "date-time"},
		"order_type":    map[string]any{"type": "string", "minLength": 1},
		"legs": map[string]any{
			"type":     "array",
			"minItems": 1,
			"items": map[string]any{
				"type":                 "object",
				"additionalProperties": false,
				"required":             []string{"action", "quantity", "symbol", "fill_price", "fill_time"},
				"properties": map[string]any{
					"action":      map[string]any{"enum": []string{"Buy", "Sell"}},
					"quantity":    map[string]any{"type": "integer", "minimum": 1},
					"symbol":      map[string]any{"type": "string", "minLength": 1},
					"expiration":  map[string]any{"type": "string", "format": "date"},
					"option_type": map[string]any{"enum": []string{"Put", "Call"}},
					"strike":      map[string]any{"type": "string", "pattern": decimalPattern},
					"fill_price":  map[string]any{"type": "string", "pattern": decimalPattern},
					"fill_time":   map[string]any{"type": "string", "format": "date-time"},
				},
				// option fields come as a set
				"dependentRequired": map[string]any{
					"expiration":  []string{"option_type", "strike"},
					"option_type": []string{"expiration", "strike"},
					"strike":      []string{"expiration", "option_type"},
				},
			},
		},
	},
}

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func recordSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiledSchema, schemaErr = compileSchema(TradeRecordSchema)
	})
	return compiledSchema, schemaErr
}

func compileSchema(schemaMap map[string]any) (*jsonschema.Schema, error) {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	compiler.AssertFormat = true
	if err := compiler.AddResource("trade_record.json", bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("trade_record.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
}

// ValidateJSON validates raw record JSON against TradeRecordSchema.
func ValidateJSON(data []byte) error {
	schema, err := recordSchema()
	if err != nil {
		return err
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}

// ValidateRecord validates a record against TradeRecordSchema.
func ValidateRecord(rec TradeRecord) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	return ValidateJSON(b)
}

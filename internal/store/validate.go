package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// ErrInvalidTrajectory is returned when an update would rewrite or drop
// persisted trajectory entries.
var ErrInvalidTrajectory = errors.New("trajectory entries are append-only")

// ErrInvalidRecord indicates a record that does not conform to its schema,
// either on write or when read back.
type ErrInvalidRecord struct {
	Schema  string
	Content json.RawMessage
	Err     error
}

func (e *ErrInvalidRecord) Error() string {
	return fmt.Sprintf("invalid %s record: %v", e.Schema, e.Err)
}

func (e *ErrInvalidRecord) Unwrap() error { return e.Err }

// recordSchema is a named JSON schema for a persisted record.
type recordSchema struct {
	Name       string
	Definition map[string]any
}

var (
	trajectoryEntrySchema = &recordSchema{
		Name: "trajectory_entry",
		Definition: map[string]any{
			"type":     "object",
			"required": []any{"question_id", "difficulty", "score", "adjustment", "rationale", "timestamp"},
			"properties": map[string]any{
				"question_id": map[string]any{"type": "string", "minLength": 1},
				"difficulty":  map[string]any{"type": "integer", "minimum": 0, "maximum": 100},
				"score":       map[string]any{"type": "integer", "minimum": 0, "maximum": 100},
				"adjustment":  map[string]any{"type": "integer", "minimum": -100, "maximum": 100},
				"rationale":   map[string]any{"type": "string"},
				"synthetic":   map[string]any{"type": "boolean"},
				"timestamp":   map[string]any{"type": "string", "minLength": 1},
			},
		},
	}

	responseSchema = &recordSchema{
		Name: "response",
		Definition: map[string]any{
			"type":     "object",
			"required": []any{"user_id", "concept_id", "type", "score", "difficulty"},
			"properties": map[string]any{
				"user_id":           map[string]any{"type": "string", "minLength": 1},
				"concept_id":        map[string]any{"type": "string", "minLength": 1},
				"type":              map[string]any{"type": "string", "minLength": 1},
				"score":             map[string]any{"type": "integer", "minimum": 0, "maximum": 100},
				"difficulty":        map[string]any{"type": "integer", "minimum": 0, "maximum": 100},
				"calibration_delta": map[string]any{"type": "integer", "minimum": -100, "maximum": 100},
			},
		},
	}

	summarySchema = &recordSchema{
		Name: "session_summary",
		Definition: map[string]any{
			"type":     "object",
			"required": []any{"session_id", "total_questions", "difficulty_progression", "adaptations", "mastery_status", "efficiency"},
			"properties": map[string]any{
				"session_id":      map[string]any{"type": "string", "minLength": 1},
				"total_questions": map[string]any{"type": "integer", "minimum": 0},
				"difficulty_progression": map[string]any{
					"type":  "array",
					"items": map[string]any{"type": "integer", "minimum": 0, "maximum": 100},
				},
				"adaptations": map[string]any{
					"type": "array",
					"items": map[string]any{
						"type":     "object",
						"required": []any{"position", "rationale"},
					},
				},
				"mastery_status": map[string]any{"enum": []any{"VERIFIED", "IN_PROGRESS", "NOT_STARTED"}},
				"efficiency": map[string]any{
					"type":     "object",
					"required": []any{"questions_asked", "questions_saved", "time_saved_percent"},
				},
			},
		},
	}
)

// schemaCache caches compiled JSON schemas by name.
var schemaCache sync.Map // map[string]*jsonschema.Schema

// validateRecord validates raw JSON against the given schema.
// Returns *ErrInvalidRecord on failure.
func validateRecord(schema *recordSchema, raw []byte) error {
	var parsed any
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return &ErrInvalidRecord{
			Schema:  schema.Name,
			Content: raw,
			Err:     fmt.Errorf("invalid JSON: %w", err),
		}
	}

	compiled, err := getCompiledSchema(schema)
	if err != nil {
		return &ErrInvalidRecord{
			Schema:  schema.Name,
			Content: raw,
			Err:     fmt.Errorf("compile schema: %w", err),
		}
	}

	if err := compiled.Validate(parsed); err != nil {
		return &ErrInvalidRecord{
			Schema:  schema.Name,
			Content: raw,
			Err:     fmt.Errorf("schema validation failed: %w", err),
		}
	}
	return nil
}

// validateValue marshals v and validates it against schema, returning the
// JSON encoding.
func validateValue(schema *recordSchema, v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", schema.Name, err)
	}
	if err := validateRecord(schema, raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// getCompiledSchema returns a cached compiled schema or compiles and caches it.
func getCompiledSchema(schema *recordSchema) (*jsonschema.Schema, error) {
	if cached, ok := schemaCache.Load(schema.Name); ok {
		return cached.(*jsonschema.Schema), nil
	}

	// The compiler wants a parsed JSON value, so normalize the Go literal
	// through a JSON round trip.
	defBytes, err := json.Marshal(schema.Definition)
	if err != nil {
		return nil, fmt.Errorf("marshal schema definition: %w", err)
	}
	var defParsed any
	if err := json.Unmarshal(defBytes, &defParsed); err != nil {
		return nil, fmt.Errorf("parse schema definition: %w", err)
	}

	c := jsonschema.NewCompiler()
	schemaURL := fmt.Sprintf("schema://%s.json", schema.Name)
	if err := c.AddResource(schemaURL, defParsed); err != nil {
		return nil, fmt.Errorf("add resource: %w", err)
	}

	compiled, err := c.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile: %w", err)
	}

	schemaCache.Store(schema.Name, compiled)
	return compiled, nil
}

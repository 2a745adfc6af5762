package ai

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"

	"bellsched/internal/model"
)

const clockPattern = `^[0-9]{2}:[0-9]{2}:[0-9]{2}$`

func intPtr(n int) *int { return &n }

// scheduleSchema is the contract for model output. Period invariants the
// schema cannot express are enforced by the model package on decode.
var scheduleSchema = &jsonschema.Schema{
	Type:     "object",
	Required: []string{"periods"},
	Properties: map[string]*jsonschema.Schema{
		"periods": {
			Type: "array",
			Items: &jsonschema.Schema{
				Type:     "object",
				Required: []string{"type", "interval"},
				Properties: map[string]*jsonschema.Schema{
					"type": {
						Type: "string",
						Enum: []any{string(model.Instructional), string(model.Break), string(model.Passing)},
					},
					"id":   {Types: []string{"string", "null"}},
					"name": {Types: []string{"string", "null"}},
					"interval": {
						Type:        "array",
						Description: "Start and end as 24 hour HH:MM:SS",
						Items:       &jsonschema.Schema{Type: "string", Pattern: clockPattern},
						MinItems:    intPtr(2),
						MaxItems:    intPtr(2),
					},
				},
			},
		},
		"message": {
			Types:       []string{"string", "null"},
			Description: "Short human readable reason for the change",
		},
	},
}

var (
	resolveOnce sync.Once
	resolved    *jsonschema.Resolved
	resolveErr  error
)

// Schema returns the DailySchedule JSON schema sent to the model.
func Schema() *jsonschema.Schema { return scheduleSchema }

func resolvedSchema() (*jsonschema.Resolved, error) {
	resolveOnce.Do(func() {
		resolved, resolveErr = scheduleSchema.Resolve(nil)
	})
	return resolved, resolveErr
}

// DecodeSchedule validates raw model JSON against the schema and decodes
// it into a DailySchedule.
func DecodeSchedule(text string) (model.DailySchedule, error) {
	var doc any
	if err := json.Unmarshal([]byte(text), &doc); err != nil {
		return model.DailySchedule{}, fmt.Errorf("model output is not JSON: %w", err)
	}
	rs, err := resolvedSchema()
	if err != nil {
		return model.DailySchedule{}, fmt.Errorf("schedule schema: %w", err)
	}
	if err := rs.Validate(doc); err != nil {
		return model.DailySchedule{}, fmt.Errorf("model output does not match schema: %w", err)
	}
	return model.UnmarshalSchedule([]byte(text))
}

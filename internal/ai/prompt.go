package ai

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"
	"time"

	"bellsched/internal/model"
	"bellsched/internal/schedule"
)

//go:embed prompt.tmpl
var promptText string

var promptTmpl = template.Must(template.New("prompt").Parse(promptText))

const noSchoolDescription = "a day without school"

type promptData struct {
	Stub              string
	NormalDescription string
	Weekday           string
	NormalPeriods     string
	UsedMessages      string
	Schema            string
	Periods           []schedule.PeriodRef
	Final             schedule.PeriodRef
}

// BuildPrompt renders the inference prompt for stub. normal is the
// template the stub's weekday would use, or nil on weekends.
func BuildPrompt(stub model.EventStub, normal *schedule.Template, used []model.UsedMessage) (Prompt, error) {
	day, err := stub.Day(time.UTC)
	if err != nil {
		return Prompt{}, err
	}

	data := promptData{
		NormalDescription: noSchoolDescription,
		Weekday:           day.Weekday().String(),
		NormalPeriods:     "[]",
		Periods:           schedule.KnownPeriods(),
		Final:             schedule.FinalRef(5),
	}
	if data.Stub, err = compactJSON(stub); err != nil {
		return Prompt{}, err
	}
	if normal != nil {
		data.NormalDescription = normal.AIDescription
		if data.NormalPeriods, err = compactJSON(normal.Periods); err != nil {
			return Prompt{}, err
		}
	}
	if used == nil {
		used = []model.UsedMessage{}
	}
	if data.UsedMessages, err = compactJSON(used); err != nil {
		return Prompt{}, err
	}
	if data.Schema, err = compactJSON(Schema()); err != nil {
		return Prompt{}, err
	}

	var b strings.Builder
	if err := promptTmpl.Execute(&b, data); err != nil {
		return Prompt{}, fmt.Errorf("render prompt: %w", err)
	}
	return Prompt{User: b.String()}, nil
}

func compactJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode prompt data: %w", err)
	}
	return string(b), nil
}

package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// PeriodType discriminates the variants of Period.
type PeriodType string

const (
	Instructional PeriodType = "instructional"
	Break         PeriodType = "break"
	Passing       PeriodType = "passing"
)

func (t PeriodType) Valid() bool {
	switch t {
	case Instructional, Break, Passing:
		return true
	}
	return false
}

// Visible reports whether periods of this type carry an id and a name.
func (t PeriodType) Visible() bool {
	return t == Instructional || t == Break
}

// Period is a template period: a named span defined by time of day only.
//
// Instructional and break periods always have an ID and a Name. Passing
// periods never have either. Use NewPeriod or Validate to enforce this;
// JSON decoding validates automatically.
type Period struct {
	Type PeriodType
	ID   string
	Name string
	Span Span
}

// NewPeriod builds a validated Period.
func NewPeriod(typ PeriodType, id, name string, span Span) (Period, error) {
	p := Period{Type: typ, ID: id, Name: name, Span: span}
	if err := p.Validate(); err != nil {
		return Period{}, err
	}
	return p, nil
}

// NewPassing builds a passing period over span.
func NewPassing(span Span) Period {
	return Period{Type: Passing, Span: span}
}

func (p Period) Validate() error {
	if !p.Type.Valid() {
		return validationf("period type %q is not one of instructional, break, passing", p.Type)
	}
	if err := p.Span.Validate(); err != nil {
		return &ValidationError{Field: "interval", Reason: err.Error()}
	}
	if p.Type.Visible() {
		if strings.TrimSpace(p.ID) == "" {
			return validationf("%s period %s requires an id", p.Type, p.Span.Start)
		}
		if strings.TrimSpace(p.Name) == "" {
			return validationf("%s period %q requires a name", p.Type, p.ID)
		}
		return nil
	}
	if p.ID != "" {
		return validationf("passing period %s must not have an id (got %q)", p.Span.Start, p.ID)
	}
	if p.Name != "" {
		return validationf("passing period %s must not have a name", p.Span.Start)
	}
	return nil
}

// periodJSON is the wire shape shared by storage and model output.
type periodJSON struct {
	Type     PeriodType `json:"type"`
	ID       *string    `json:"id,omitempty"`
	Name     *string    `json:"name,omitempty"`
	Interval Span       `json:"interval"`
}

func (p Period) MarshalJSON() ([]byte, error) {
	w := periodJSON{Type: p.Type, Interval: p.Span}
	if p.Type.Visible() {
		id, name := p.ID, p.Name
		w.ID, w.Name = &id, &name
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes and validates a period. A name on a passing
// period is dropped; an id on a passing period is rejected.
func (p *Period) UnmarshalJSON(data []byte) error {
	var w periodJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	out := Period{Type: w.Type, Span: w.Interval}
	if w.ID != nil {
		out.ID = *w.ID
	}
	if w.Name != nil && w.Type != Passing {
		out.Name = *w.Name
	}
	if err := out.Validate(); err != nil {
		return err
	}
	*p = out
	return nil
}

func (p Period) String() string {
	if p.Type == Passing {
		return fmt.Sprintf("passing %s-%s", p.Span.Start, p.Span.End)
	}
	return fmt.Sprintf("%s %s-%s", p.ID, p.Span.Start, p.Span.End)
}

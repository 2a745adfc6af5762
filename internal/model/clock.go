package model

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
)

var clockPattern = regexp.MustCompile(`^([0-9]{2}):([0-9]{2}):([0-9]{2})$`)

// Clock is a wall-clock time of day, independent of any date.
type Clock struct {
	Hour   int
	Minute int
	Second int
}

// ParseClock parses "HH:MM:SS" in 24-hour form. Every component must have
// exactly two digits.
func ParseClock(s string) (Clock, error) {
	m := clockPattern.FindStringSubmatch(s)
	if m == nil {
		return Clock{}, fmt.Errorf("invalid time of day %q: want HH:MM:SS", s)
	}
	h, _ := strconv.Atoi(m[1])
	mi, _ := strconv.Atoi(m[2])
	sec, _ := strconv.Atoi(m[3])
	c := Clock{Hour: h, Minute: mi, Second: sec}
	if h > 23 || mi > 59 || sec > 59 {
		return Clock{}, fmt.Errorf("invalid time of day %q: out of range", s)
	}
	return c, nil
}

// MustClock is ParseClock for static tables.
func MustClock(s string) Clock {
	c, err := ParseClock(s)
	if err != nil {
		panic(err)
	}
	return c
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", c.Hour, c.Minute, c.Second)
}

// Seconds returns the number of seconds since midnight.
func (c Clock) Seconds() int {
	return c.Hour*3600 + c.Minute*60 + c.Second
}

func (c Clock) Before(o Clock) bool { return c.Seconds() < o.Seconds() }

func (c Clock) After(o Clock) bool { return c.Seconds() > o.Seconds() }

func (c Clock) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

func (c *Clock) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseClock(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Span is a template interval [Start, End) within a day.
type Span struct {
	Start Clock
	End   Clock
}

// NewSpan parses two "HH:MM:SS" strings into a Span.
func NewSpan(start, end string) (Span, error) {
	s, err := ParseClock(start)
	if err != nil {
		return Span{}, err
	}
	e, err := ParseClock(end)
	if err != nil {
		return Span{}, err
	}
	sp := Span{Start: s, End: e}
	if err := sp.Validate(); err != nil {
		return Span{}, err
	}
	return sp, nil
}

func (s Span) Validate() error {
	if !s.End.After(s.Start) {
		return fmt.Errorf("interval %s-%s: end must be after start", s.Start, s.End)
	}
	return nil
}

// MarshalJSON encodes the span as a two-element ["HH:MM:SS","HH:MM:SS"]
// tuple.
func (s Span) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]string{s.Start.String(), s.End.String()})
}

func (s *Span) UnmarshalJSON(data []byte) error {
	var pair []string
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("interval must have exactly two elements, got %d", len(pair))
	}
	sp, err := NewSpan(pair[0], pair[1])
	if err != nil {
		return err
	}
	*s = sp
	return nil
}

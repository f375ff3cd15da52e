package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// MetricValueKind identifies which variant a MetricValue holds
type MetricValueKind int

const (
	// MetricValueNumber is a numeric measurement (distance, duration, count)
	MetricValueNumber MetricValueKind = iota
	// MetricValueString is a categorical measurement (mood, intensity)
	MetricValueString
)

// MetricValue is either a number or a string. The zero value is the number 0.
type MetricValue struct {
	kind MetricValueKind
	num  float64
	str  string
}

// NumberValue returns a numeric MetricValue
func NumberValue(v float64) MetricValue {
	return MetricValue{kind: MetricValueNumber, num: v}
}

// StringValue returns a categorical MetricValue
func StringValue(v string) MetricValue {
	return MetricValue{kind: MetricValueString, str: v}
}

// Kind reports which variant the value holds
func (v MetricValue) Kind() MetricValueKind {
	return v.kind
}

// IsNumber reports whether the value is numeric
func (v MetricValue) IsNumber() bool {
	return v.kind == MetricValueNumber
}

// Number returns the numeric value and whether the value is numeric
func (v MetricValue) Number() (float64, bool) {
	return v.num, v.kind == MetricValueNumber
}

// Text returns the string value and whether the value is a string
func (v MetricValue) Text() (string, bool) {
	return v.str, v.kind == MetricValueString
}

// IsZero reports whether the value is falsy: the number 0 or the empty string.
// Aggregation skips these values.
func (v MetricValue) IsZero() bool {
	if v.kind == MetricValueString {
		return v.str == ""
	}
	return v.num == 0
}

func (v MetricValue) String() string {
	if v.kind == MetricValueString {
		return v.str
	}
	return strconv.FormatFloat(v.num, 'f', -1, 64)
}

// MarshalJSON encodes the value as a bare JSON number or string
func (v MetricValue) MarshalJSON() ([]byte, error) {
	if v.kind == MetricValueString {
		return json.Marshal(v.str)
	}
	return json.Marshal(v.num)
}

// UnmarshalJSON accepts a JSON number, string or null. Null decodes to the number 0.
func (v *MetricValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*v = NumberValue(0)
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = StringValue(s)
		return nil
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		var f float64
		if err := json.Unmarshal(data, &f); err != nil {
			return err
		}
		*v = NumberValue(f)
		return nil
	default:
		return fmt.Errorf("metric value must be a number or string, got %s", string(data))
	}
}

// Metric is one typed measurement extracted from an entry
type Metric struct {
	Type       string      `json:"type" validate:"required"`
	Value      MetricValue `json:"value"`
	Unit       *string     `json:"unit"`
	Confidence float64     `json:"confidence" validate:"gte=0,lte=1"`
}

// UnitOrEmpty returns the unit, or "" when the metric is unitless
func (m Metric) UnitOrEmpty() string {
	if m.Unit == nil {
		return ""
	}
	return *m.Unit
}

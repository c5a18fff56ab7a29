package model

import "github.com/rotisserie/eris"

// DeviationClass classifies why a cell disagrees with its column type.
type DeviationClass string

const (
	DeviationCoercionFail DeviationClass = "TYPE_COERCION_FAIL"
	DeviationWidening     DeviationClass = "TYPE_WIDENING"
	DeviationNullable     DeviationClass = "NULLABLE"
	DeviationTruncated    DeviationClass = "TRUNCATED"
)

// Severity orders deviation classes; higher is worse.
type Severity int

const (
	SeverityNone Severity = iota
	SeverityLow
	SeverityMedium
	SeverityHigh
)

// String returns the lowercase severity name.
func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	default:
		return "none"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Severity) UnmarshalText(b []byte) error {
	v, err := ParseSeverity(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// ParseSeverity converts a lowercase severity name back into a Severity.
func ParseSeverity(name string) (Severity, error) {
	for _, s := range []Severity{SeverityNone, SeverityLow, SeverityMedium, SeverityHigh} {
		if s.String() == name {
			return s, nil
		}
	}
	return SeverityNone, eris.Errorf("model: unknown severity %q", name)
}

// Severity returns the fixed severity of the deviation class.
func (d DeviationClass) Severity() Severity {
	switch d {
	case DeviationCoercionFail:
		return SeverityHigh
	case DeviationNullable:
		return SeverityMedium
	case DeviationWidening:
		return SeverityLow
	default:
		return SeverityNone
	}
}

// OutlierReport is one cell whose type cannot be unified with its column.
// A report with DeviationTruncated marks the point where scanning stopped.
type OutlierReport struct {
	RowIndex    int64          `json:"row_index" yaml:"row_index"`
	ColumnIndex int            `json:"column_index" yaml:"column_index"`
	Column      string         `json:"column" yaml:"column"`
	Expected    PrimitiveType  `json:"expected" yaml:"expected"`
	Actual      PrimitiveType  `json:"actual" yaml:"actual"`
	// Value is the offending cell, cut to at most 100 bytes on a rune boundary.
	Value       string         `json:"actual_value" yaml:"actual_value"`
	Deviation   DeviationClass `json:"deviation_class" yaml:"deviation_class"`
	Severity    Severity       `json:"severity" yaml:"severity"`
}

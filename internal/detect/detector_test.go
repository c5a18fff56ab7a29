package detect

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/schemaproof/internal/model"
)

func TestDetect(t *testing.T) {
	d := Default()
	tests := []struct {
		name  string
		value string
		want  model.PrimitiveType
	}{
		{"empty", "", model.TypeNull},
		{"NULL", "NULL", model.TypeNull},
		{"null", "null", model.TypeNull},
		{"N/A", "N/A", model.TypeNull},
		{"NA", "NA", model.TypeNull},
		{"dash", "-", model.TypeNull},
		{"None", "None", model.TypeNull},
		{"nil", "nil", model.TypeNull},
		{"backslash N", `\N`, model.TypeNull},
		{"null sentinel is case sensitive", "Nil", model.TypeString},
		{"padded empty", "   ", model.TypeNull},
		{"true", "true", model.TypeBoolean},
		{"TRUE", "TRUE", model.TypeBoolean},
		{"Yes", "Yes", model.TypeBoolean},
		{"one", "1", model.TypeBoolean},
		{"zero", "0", model.TypeBoolean},
		{"f", "F", model.TypeBoolean},
		{"int", "42", model.TypeInt64},
		{"negative int", "-7", model.TypeInt64},
		{"18 digits", "123456789012345678", model.TypeInt64},
		{"19 digits is not int", "1234567890123456789", model.TypeString},
		{"float", "100.5", model.TypeFloat64},
		{"negative float", "-0.25", model.TypeFloat64},
		{"exponent", "1.5e10", model.TypeFloat64},
		{"trailing dot", "1.", model.TypeString},
		{"iso date", "2024-01-15", model.TypeDateISO},
		{"iso bad month", "2024-13-01", model.TypeString},
		{"datetime T", "2024-01-15T10:30:00Z", model.TypeDateTime},
		{"datetime space", "2024-01-15 10:30", model.TypeDateTime},
		{"datetime offset", "2024-01-15T10:30:00.123+02:00", model.TypeDateTime},
		{"slash us", "01/25/2024", model.TypeDateSlashUS},
		{"slash eu", "25/01/2024", model.TypeDateSlashEU},
		{"slash ambiguous", "01/02/2024", model.TypeDateSlashAmbiguous},
		{"slash invalid", "13/13/2024", model.TypeString},
		{"uuid", "550e8400-e29b-41d4-a716-446655440000", model.TypeUUID},
		{"email", "ops@example.com", model.TypeEmail},
		{"url", "https://example.com/a?b=1", model.TypeURL},
		{"json object", `{"a":1}`, model.TypeJSON},
		{"json array", `[1,2,3]`, model.TypeJSON},
		{"broken json", `{"a":}`, model.TypeString},
		{"text", "VOID", model.TypeString},
		{"padded int", " 12 ", model.TypeInt64},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, d.Detect(tt.value))
		})
	}
}

func TestDetect_Deterministic(t *testing.T) {
	d := Default()
	values := []string{"1", "2.5", "2024-01-02", "03/04/2024", "x"}
	first := make([]model.PrimitiveType, len(values))
	for i, v := range values {
		first[i] = d.Detect(v)
	}
	for range 100 {
		for i, v := range values {
			assert.Equal(t, first[i], d.Detect(v))
		}
	}
}

func TestNew_OverridesTables(t *testing.T) {
	d := New(Config{
		NullSentinels:   []string{"?"},
		BooleanPatterns: []string{"on", "off"},
	})

	assert.Equal(t, model.TypeNull, d.Detect("?"))
	assert.Equal(t, model.TypeBoolean, d.Detect("ON"))
	// Defaults are replaced, not merged.
	assert.Equal(t, model.TypeString, d.Detect("NULL"))
	assert.Equal(t, model.TypeInt64, d.Detect("1"))
	assert.Equal(t, model.TypeString, d.Detect(""))
}

func TestNew_EmptyConfigUsesDefaults(t *testing.T) {
	d := New(Config{})
	assert.True(t, d.IsNull("N/A"))
	assert.True(t, d.IsBoolean("yes"))
}

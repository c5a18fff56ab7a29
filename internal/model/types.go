package model

import (
	"github.com/rotisserie/eris"
)

// PrimitiveType is the closed set of scalar types a value can be classified as.
type PrimitiveType uint8

// Primitive types. The order is the lattice rank used by widening tables and
// must stay stable.
const (
	TypeNull PrimitiveType = iota
	TypeBoolean
	TypeInt64
	TypeFloat64
	TypeDateISO
	TypeDateSlashAmbiguous
	TypeDateSlashUS
	TypeDateSlashEU
	TypeDateTime
	TypeUUID
	TypeEmail
	TypeURL
	TypeJSON
	TypeString
	// TypeUnknown marks a column whose observed values were all null.
	TypeUnknown

	NumTypes = int(TypeUnknown) + 1
)

var typeNames = [NumTypes]string{
	TypeNull:               "Null",
	TypeBoolean:            "Boolean",
	TypeInt64:              "Int64",
	TypeFloat64:            "Float64",
	TypeDateISO:            "Date(Iso)",
	TypeDateSlashAmbiguous: "Date(SlashAmbiguous)",
	TypeDateSlashUS:        "Date(SlashUs)",
	TypeDateSlashEU:        "Date(SlashEu)",
	TypeDateTime:           "DateTime",
	TypeUUID:               "Uuid",
	TypeEmail:              "Email",
	TypeURL:                "Url",
	TypeJSON:               "Json",
	TypeString:             "String",
	TypeUnknown:            "Unknown",
}

// AllTypes returns every primitive type in rank order.
func AllTypes() []PrimitiveType {
	out := make([]PrimitiveType, NumTypes)
	for i := range out {
		out[i] = PrimitiveType(i)
	}
	return out
}

// String returns the canonical name used in signatures and reports.
func (t PrimitiveType) String() string {
	if int(t) < NumTypes {
		return typeNames[t]
	}
	return "Invalid"
}

// Valid reports whether t is one of the declared types.
func (t PrimitiveType) Valid() bool {
	return int(t) < NumTypes
}

// IsDate reports whether t is one of the Date variants. DateTime is not a Date.
func (t PrimitiveType) IsDate() bool {
	switch t {
	case TypeDateISO, TypeDateSlashUS, TypeDateSlashEU, TypeDateSlashAmbiguous:
		return true
	default:
		return false
	}
}

// IsSlashDate reports whether t is a slash-delimited Date variant.
func (t PrimitiveType) IsSlashDate() bool {
	return t == TypeDateSlashUS || t == TypeDateSlashEU || t == TypeDateSlashAmbiguous
}

// IsNullish reports whether t carries no value evidence (Null or Unknown).
func (t PrimitiveType) IsNullish() bool {
	return t == TypeNull || t == TypeUnknown
}

// MarshalText implements encoding.TextMarshaler.
func (t PrimitiveType) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, eris.Errorf("model: invalid primitive type %d", uint8(t))
	}
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *PrimitiveType) UnmarshalText(b []byte) error {
	v, err := ParsePrimitiveType(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// ParsePrimitiveType converts a canonical type name back into a PrimitiveType.
func ParsePrimitiveType(s string) (PrimitiveType, error) {
	for i, name := range typeNames {
		if name == s {
			return PrimitiveType(i), nil
		}
	}
	return 0, eris.Errorf("model: unknown primitive type %q", s)
}

// FileFormat is the detected container format of a file.
type FileFormat string

const (
	FormatCSV    FileFormat = "csv"
	FormatJSON   FileFormat = "json"
	FormatNDJSON FileFormat = "ndjson"
	FormatXML    FileFormat = "xml"
	FormatXLSX   FileFormat = "xlsx"
	FormatBinary FileFormat = "binary"
)

// Keyed reports whether records of the format are addressed by key rather
// than by position.
func (f FileFormat) Keyed() bool {
	return f == FormatJSON || f == FormatNDJSON || f == FormatXML
}

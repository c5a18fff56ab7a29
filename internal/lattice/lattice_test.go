package lattice

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/schemaproof/internal/model"
)

func TestWiden(t *testing.T) {
	tests := []struct {
		name string
		a, b model.PrimitiveType
		want model.PrimitiveType
	}{
		{"null int", model.TypeNull, model.TypeInt64, model.TypeInt64},
		{"int float", model.TypeInt64, model.TypeFloat64, model.TypeFloat64},
		{"int string", model.TypeInt64, model.TypeString, model.TypeString},
		{"bool int", model.TypeBoolean, model.TypeInt64, model.TypeInt64},
		{"bool float", model.TypeBoolean, model.TypeFloat64, model.TypeFloat64},
		{"int iso date", model.TypeInt64, model.TypeDateISO, model.TypeString},
		{"us eu conflict", model.TypeDateSlashUS, model.TypeDateSlashEU, model.TypeString},
		{"us ambiguous", model.TypeDateSlashUS, model.TypeDateSlashAmbiguous, model.TypeDateSlashUS},
		{"ambiguous eu", model.TypeDateSlashAmbiguous, model.TypeDateSlashEU, model.TypeDateSlashEU},
		{"ambiguous ambiguous", model.TypeDateSlashAmbiguous, model.TypeDateSlashAmbiguous, model.TypeDateSlashAmbiguous},
		{"iso datetime", model.TypeDateISO, model.TypeDateTime, model.TypeDateTime},
		{"iso slash", model.TypeDateISO, model.TypeDateSlashUS, model.TypeString},
		{"uuid email", model.TypeUUID, model.TypeEmail, model.TypeString},
		{"null null", model.TypeNull, model.TypeNull, model.TypeNull},
		{"null unknown", model.TypeNull, model.TypeUnknown, model.TypeUnknown},
		{"unknown json", model.TypeUnknown, model.TypeJSON, model.TypeJSON},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Widen(tt.a, tt.b))
			assert.Equal(t, tt.want, Widen(tt.b, tt.a), "widen must be commutative")
		})
	}
}

func TestWiden_LatticeLaws(t *testing.T) {
	for _, a := range model.AllTypes() {
		assert.Equal(t, a, Widen(a, a), "idempotent for %s", a)
		assert.Equal(t, model.TypeString, Widen(a, model.TypeString), "String is top for %s", a)
		for _, b := range model.AllTypes() {
			ab := Widen(a, b)
			assert.True(t, IsSubtype(a, ab), "%s ⊑ %s∨%s", a, a, b)
			assert.True(t, IsSubtype(b, ab), "%s ⊑ %s∨%s", b, a, b)
			for _, c := range model.AllTypes() {
				assert.Equal(t, Widen(Widen(a, b), c), Widen(a, Widen(b, c)), "associative %s %s %s", a, b, c)
			}
		}
	}
}

func TestIsSubtype(t *testing.T) {
	assert.True(t, IsSubtype(model.TypeNull, model.TypeInt64))
	assert.True(t, IsSubtype(model.TypeNull, model.TypeDateSlashEU))
	assert.True(t, IsSubtype(model.TypeInt64, model.TypeFloat64))
	assert.True(t, IsSubtype(model.TypeFloat64, model.TypeString))
	assert.True(t, IsSubtype(model.TypeDateSlashUS, model.TypeString))
	assert.True(t, IsSubtype(model.TypeDateSlashAmbiguous, model.TypeDateSlashUS))
	assert.False(t, IsSubtype(model.TypeFloat64, model.TypeInt64))
	assert.False(t, IsSubtype(model.TypeString, model.TypeInt64))
	assert.False(t, IsSubtype(model.TypeDateSlashUS, model.TypeDateSlashEU))
	assert.False(t, IsSubtype(model.TypeInt64, model.TypeUnknown))
}

func TestFold_DistributionInvariant(t *testing.T) {
	orders := [][]model.PrimitiveType{
		{model.TypeInt64, model.TypeFloat64, model.TypeInt64, model.TypeFloat64},
		{model.TypeFloat64, model.TypeInt64, model.TypeFloat64, model.TypeInt64},
		{model.TypeInt64, model.TypeInt64, model.TypeFloat64, model.TypeFloat64},
		{model.TypeNull, model.TypeFloat64, model.TypeInt64, model.TypeNull},
	}
	for _, o := range orders {
		assert.Equal(t, model.TypeFloat64, Fold(o...))
	}
}

func TestFinalize(t *testing.T) {
	assert.Equal(t, model.TypeUnknown, Finalize(Fold(model.TypeNull, model.TypeNull)))
	assert.Equal(t, model.TypeUnknown, Finalize(Fold()))
	assert.Equal(t, model.TypeInt64, Finalize(Fold(model.TypeNull, model.TypeInt64)))
}

func TestPromote(t *testing.T) {
	assert.Equal(t, RelaxedNumeric, Promote(model.TypeBoolean))
	assert.Equal(t, RelaxedNumeric, Promote(model.TypeInt64))
	assert.Equal(t, RelaxedNumeric, Promote(model.TypeFloat64))
	assert.Equal(t, RelaxedDate, Promote(model.TypeDateISO))
	assert.Equal(t, RelaxedDate, Promote(model.TypeDateSlashAmbiguous))
	assert.Equal(t, "DateTime", Promote(model.TypeDateTime))
	assert.Equal(t, "String", Promote(model.TypeString))
}

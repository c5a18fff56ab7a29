package lattice

import "github.com/sells-group/schemaproof/internal/model"

// Relaxed type tokens produced by Promote.
const (
	RelaxedNumeric = "Numeric"
	RelaxedDate    = "Date"
)

// Promote maps a strict type onto the coarser token used by relaxed
// signatures. It is a post-pass over the strict mask, so strict and relaxed
// grouping always derive from the same lattice.
func Promote(t model.PrimitiveType) string {
	switch {
	case t == model.TypeBoolean, t == model.TypeInt64, t == model.TypeFloat64:
		return RelaxedNumeric
	case t.IsDate():
		return RelaxedDate
	default:
		return t.String()
	}
}

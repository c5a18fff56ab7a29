// Package lattice implements the partial order over primitive types and its
// least-upper-bound operator.
package lattice

import (
	"github.com/sells-group/schemaproof/internal/model"
)

// edges lists the covering relations below String. Everything not connected
// through these edges widens to String; Null and Unknown sit below everything.
var edges = [][2]model.PrimitiveType{
	{model.TypeBoolean, model.TypeInt64},
	{model.TypeInt64, model.TypeFloat64},
	{model.TypeDateSlashAmbiguous, model.TypeDateSlashUS},
	{model.TypeDateSlashAmbiguous, model.TypeDateSlashEU},
	{model.TypeDateISO, model.TypeDateTime},
}

var (
	// above[a][b] is true when a ⊑ b.
	above      [model.NumTypes][model.NumTypes]bool
	widenTable [model.NumTypes][model.NumTypes]model.PrimitiveType
)

func init() {
	buildOrder()
	buildWidenTable()
}

func buildOrder() {
	for i := range model.NumTypes {
		t := model.PrimitiveType(i)
		above[t][t] = true
		above[t][model.TypeString] = true
	}
	for _, bottom := range []model.PrimitiveType{model.TypeNull, model.TypeUnknown} {
		for i := range model.NumTypes {
			above[bottom][i] = true
		}
	}
	// Unknown is only below Null's peers, never below Null itself.
	above[model.TypeUnknown][model.TypeNull] = false

	for _, e := range edges {
		above[e[0]][e[1]] = true
	}
	// Transitive closure; the table is tiny.
	for k := range model.NumTypes {
		for i := range model.NumTypes {
			if !above[i][k] {
				continue
			}
			for j := range model.NumTypes {
				if above[k][j] {
					above[i][j] = true
				}
			}
		}
	}
}

func buildWidenTable() {
	for i := range model.NumTypes {
		for j := range model.NumTypes {
			widenTable[i][j] = leastUpperBound(model.PrimitiveType(i), model.PrimitiveType(j))
		}
	}
}

// leastUpperBound returns the smallest common upper bound of a and b. The
// lattice is small enough that the minimum is found by scanning candidates.
func leastUpperBound(a, b model.PrimitiveType) model.PrimitiveType {
	var best model.PrimitiveType
	found := false
	for i := range model.NumTypes {
		c := model.PrimitiveType(i)
		if !above[a][c] || !above[b][c] {
			continue
		}
		if !found || above[c][best] {
			best = c
			found = true
		}
	}
	return best
}

// Widen returns the least upper bound of a and b.
func Widen(a, b model.PrimitiveType) model.PrimitiveType {
	if !a.Valid() || !b.Valid() {
		return model.TypeString
	}
	return widenTable[a][b]
}

// IsSubtype reports whether a value of type a can be losslessly read as b.
func IsSubtype(a, b model.PrimitiveType) bool {
	return Widen(a, b) == b
}

// Fold widens every type in ts starting from Null.
func Fold(ts ...model.PrimitiveType) model.PrimitiveType {
	acc := model.TypeNull
	for _, t := range ts {
		acc = Widen(acc, t)
	}
	return acc
}

// Finalize turns a fold that never saw a non-null value into Unknown.
func Finalize(t model.PrimitiveType) model.PrimitiveType {
	if t == model.TypeNull {
		return model.TypeUnknown
	}
	return t
}

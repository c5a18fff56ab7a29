package signature

import (
	"sort"

	"github.com/sells-group/schemaproof/internal/lattice"
	"github.com/sells-group/schemaproof/internal/model"
)

// buildColumns finalizes folded profiles into columns and fills the
// serialized parts of c. Headers are sorted stably so duplicate names keep
// their original relative order; the type mask follows the sorted headers
// and is empty when no data row was seen. keys is nil for positional formats.
func buildColumns(c *model.SignatureComponents, names, keys []string, cols []columnProfile, rows int64, hint model.DateFormat) {
	c.Columns = make([]model.Column, len(names))
	for i, name := range names {
		t := lattice.Finalize(cols[i].typ)
		if t == model.TypeDateSlashAmbiguous {
			c.HasAmbiguousDates = true
			if hint == model.DateFormatUS || hint == model.DateFormatEU {
				t = hint.DateType()
			}
		}
		c.Columns[i] = model.Column{
			Name:     name,
			Index:    i,
			Type:     t,
			Nullable: cols[i].nullable,
		}
		if keys != nil {
			c.Columns[i].Key = keys[i]
		}
	}

	order := make([]int, len(names))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return names[order[a]] < names[order[b]]
	})

	c.ColumnCount = len(names)
	c.DataRows = rows
	c.Headers = make([]string, len(order))
	for i, idx := range order {
		c.Headers[i] = names[idx]
	}
	c.TypeMask = []model.PrimitiveType{}
	if rows > 0 {
		c.TypeMask = make([]model.PrimitiveType, len(order))
		for i, idx := range order {
			c.TypeMask[i] = c.Columns[idx].Type
		}
	}
}

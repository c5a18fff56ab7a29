package drift

import (
	"sort"

	"github.com/sells-group/schemaproof/internal/model"
)

// Diff compares two signatures structurally. Headers are compared as sets;
// type changes are reported for headers present in both, in header order.
func Diff(prev, next *model.SignatureComponents) model.SchemaDiff {
	d := model.SchemaDiff{
		AddedHeaders:   []string{},
		RemovedHeaders: []string{},
		TypeChanges:    []model.TypeChange{},
	}

	before := headerSet(prev)
	after := headerSet(next)
	for h := range after {
		if !before[h] {
			d.AddedHeaders = append(d.AddedHeaders, h)
		}
	}
	for h := range before {
		if !after[h] {
			d.RemovedHeaders = append(d.RemovedHeaders, h)
		}
	}
	sort.Strings(d.AddedHeaders)
	sort.Strings(d.RemovedHeaders)

	common := make([]string, 0, len(before))
	for h := range before {
		if after[h] {
			common = append(common, h)
		}
	}
	sort.Strings(common)
	for _, h := range common {
		old, _ := prev.TypeOf(h)
		cur, _ := next.TypeOf(h)
		if old != cur {
			d.TypeChanges = append(d.TypeChanges, model.TypeChange{Column: h, Old: old, New: cur})
		}
	}

	d.Format = change(string(prev.Format), string(next.Format))
	d.Encoding = change(prev.Encoding, next.Encoding)
	d.Delimiter = change(prev.Delimiter, next.Delimiter)
	return d
}

func headerSet(c *model.SignatureComponents) map[string]bool {
	set := make(map[string]bool, len(c.Columns))
	for _, col := range c.Columns {
		set[col.Name] = true
	}
	for _, h := range c.Headers {
		set[h] = true
	}
	return set
}

func change(old, cur string) *model.ValueChange {
	if old == cur {
		return nil
	}
	return &model.ValueChange{Old: old, New: cur}
}

package corpus

import (
	"sort"

	"github.com/sells-group/schemaproof/internal/model"
)

// Group is a set of files sharing one signature hash.
type Group struct {
	Hash        string           `json:"hash" yaml:"hash"`
	Format      model.FileFormat `json:"format" yaml:"format"`
	Headers     []string         `json:"headers" yaml:"headers"`
	ColumnCount int              `json:"column_count" yaml:"column_count"`
	Files       []string         `json:"files" yaml:"files"`
}

// GroupBySignature buckets signed files by strict hash, or by relaxed hash
// when relaxed is set. Groups are ordered by size descending, then hash.
// Failed files are left out.
func GroupBySignature(files []FileResult, relaxed bool) []Group {
	idx := make(map[string]int)
	var groups []Group
	for _, f := range files {
		if f.Signature == nil {
			continue
		}
		key := f.Signature.Hash
		if relaxed {
			key = f.Signature.Relaxed
		}
		i, ok := idx[key]
		if !ok {
			c := &f.Signature.Components
			i = len(groups)
			idx[key] = i
			groups = append(groups, Group{
				Hash:        key,
				Format:      c.Format,
				Headers:     c.Headers,
				ColumnCount: c.ColumnCount,
			})
		}
		groups[i].Files = append(groups[i].Files, f.Path)
	}

	for i := range groups {
		sort.Strings(groups[i].Files)
	}
	sort.SliceStable(groups, func(i, j int) bool {
		if len(groups[i].Files) != len(groups[j].Files) {
			return len(groups[i].Files) > len(groups[j].Files)
		}
		return groups[i].Hash < groups[j].Hash
	})
	if groups == nil {
		groups = []Group{}
	}
	return groups
}

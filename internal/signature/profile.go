package signature

import (
	"sort"
	"strconv"

	"github.com/sells-group/schemaproof/internal/detect"
	"github.com/sells-group/schemaproof/internal/lattice"
	"github.com/sells-group/schemaproof/internal/model"
)

// columnProfile folds the observed values of one column.
type columnProfile struct {
	typ      model.PrimitiveType
	nullable bool
	present  int64
}

func (c *columnProfile) observe(det *detect.Detector, v string) {
	t := det.Detect(v)
	if t == model.TypeNull {
		c.nullable = true
	}
	c.typ = lattice.Widen(c.typ, t)
	c.present++
}

// positionalProfile accumulates delimited and XLSX rows. The first record is
// held aside until the header decision is made.
type positionalProfile struct {
	det    *detect.Detector
	first  []string
	cols   []columnProfile
	rows   int64
	ragged int64
}

func newPositionalProfile(det *detect.Detector, first []string) *positionalProfile {
	return &positionalProfile{
		det:   det,
		first: first,
		cols:  make([]columnProfile, len(first)),
	}
}

func (p *positionalProfile) width() int { return len(p.first) }

// add folds one data row. Missing cells count as null; extra cells are ignored.
func (p *positionalProfile) add(fields []string) {
	if len(fields) != len(p.cols) {
		p.ragged++
	}
	for i := range p.cols {
		if i >= len(fields) {
			p.cols[i].nullable = true
			continue
		}
		p.cols[i].observe(p.det, fields[i])
	}
	p.rows++
}

// firstIsHeader decides whether the first record names the columns. It must
// be all String (empty or null cells allowed, at least one String). A lone
// such row is a header. Otherwise the folded data shape must differ from the
// first row's shape, so a file of String columns only is headerless.
func (p *positionalProfile) firstIsHeader() bool {
	firstTypes := make([]model.PrimitiveType, len(p.first))
	anyString := false
	for i, v := range p.first {
		t := p.det.Detect(v)
		switch t {
		case model.TypeString:
			anyString = true
		case model.TypeNull:
		default:
			return false
		}
		firstTypes[i] = t
	}
	if !anyString {
		return false
	}
	if p.rows == 0 {
		return true
	}
	for i, t := range firstTypes {
		if p.cols[i].typ != t {
			return true
		}
	}
	return false
}

// resolve applies the header decision and returns column names and profiles.
func (p *positionalProfile) resolve(overrides []string) (names []string, headerless bool) {
	names = make([]string, len(p.first))
	if p.firstIsHeader() {
		for i, v := range p.first {
			name := detect.Normalize(v)
			if name == "" {
				name = syntheticName(i)
			}
			names[i] = name
		}
	} else {
		headerless = true
		p.add(p.first)
		for i := range names {
			names[i] = syntheticName(i)
		}
	}
	for i, o := range overrides {
		if i < len(names) && o != "" {
			names[i] = o
		}
	}
	return names, headerless
}

func syntheticName(i int) string {
	return "col_" + strconv.Itoa(i)
}

// keyedProfile accumulates JSON, NDJSON and XML records by flattened key.
type keyedProfile struct {
	det  *detect.Detector
	cols map[string]*columnProfile
	rows int64
}

func newKeyedProfile(det *detect.Detector) *keyedProfile {
	return &keyedProfile{det: det, cols: make(map[string]*columnProfile)}
}

func (k *keyedProfile) add(rec map[string]string) {
	for key, v := range rec {
		c, ok := k.cols[key]
		if !ok {
			c = &columnProfile{}
			k.cols[key] = c
		}
		c.observe(k.det, v)
	}
	k.rows++
}

// resolve returns the sorted key union and the matching profiles.
func (k *keyedProfile) resolve() ([]string, []columnProfile) {
	names := make([]string, 0, len(k.cols))
	for key := range k.cols {
		names = append(names, key)
	}
	sort.Strings(names)
	cols := make([]columnProfile, len(names))
	for i, n := range names {
		c := *k.cols[n]
		if c.present < k.rows {
			c.nullable = true
		}
		cols[i] = c
	}
	return names, cols
}

// Package solver proves column types across many files by eliminating
// candidate types, keeping the evidence for every elimination.
package solver

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sells-group/schemaproof/internal/detect"
	"github.com/sells-group/schemaproof/internal/lattice"
	"github.com/sells-group/schemaproof/internal/model"
)

// candidate is a type the solver can still prove. String is the implicit
// top and never a candidate.
type candidate uint8

const (
	candBoolean candidate = iota
	candInt64
	candFloat64
	candDate
	candDateTime
	candUUID
	candEmail
	candURL
	candJSON
	numCandidates
)

var candidateNames = [numCandidates]string{
	candBoolean:  "Boolean",
	candInt64:    "Int64",
	candFloat64:  "Float64",
	candDate:     "Date",
	candDateTime: "DateTime",
	candUUID:     "Uuid",
	candEmail:    "Email",
	candURL:      "Url",
	candJSON:     "Json",
}

var candidateReasons = [numCandidates]string{
	candBoolean:  "not a boolean literal",
	candInt64:    "not an integer literal",
	candFloat64:  "not a numeric literal",
	candDate:     "not an ISO or slash date",
	candDateTime: "not an ISO date or date-time",
	candUUID:     "not a UUID",
	candEmail:    "not an email address",
	candURL:      "not a URL",
	candJSON:     "not a JSON object or array",
}

func (c candidate) String() string { return candidateNames[c] }

var dateFormats = []model.DateFormat{model.DateFormatISO, model.DateFormatUS, model.DateFormatEU}

// ColumnSolver narrows the possible types of one column. Candidates are only
// ever removed. A ColumnSolver is owned by one goroutine.
type ColumnSolver struct {
	column string
	det    *detect.Detector

	possible [numCandidates]bool
	formats  map[model.DateFormat]bool

	evidence       []model.EliminationEvidence
	contradictions []model.Contradiction
	nullSentinels  map[string]struct{}
	dist           model.ValueDistribution

	usProof  *model.EliminationEvidence
	euProof  *model.EliminationEvidence
	freeText bool
	values   int64
	nulls    int64
}

// NewColumnSolver returns a solver with every candidate alive. A nil det
// uses the default tables.
func NewColumnSolver(column string, det *detect.Detector) *ColumnSolver {
	if det == nil {
		det = detect.Default()
	}
	s := &ColumnSolver{
		column:        column,
		det:           det,
		formats:       make(map[model.DateFormat]bool, len(dateFormats)),
		nullSentinels: make(map[string]struct{}),
		dist:          model.ValueDistribution{ByType: make(map[string]int64)},
	}
	for i := range s.possible {
		s.possible[i] = true
	}
	for _, f := range dateFormats {
		s.formats[f] = true
	}
	return s
}

// Column returns the column name.
func (s *ColumnSolver) Column() string { return s.column }

func (s *ColumnSolver) accepts(c candidate, v string) bool {
	switch c {
	case candBoolean:
		return s.det.IsBoolean(v)
	case candInt64:
		return detect.IsInteger(v)
	case candFloat64:
		return detect.IsInteger(v) || detect.IsDecimal(v)
	case candDate:
		return detect.IsISODate(v) || detect.JudgeSlashDate(v).Valid
	case candDateTime:
		return detect.IsISODate(v) || detect.IsDateTime(v)
	case candUUID:
		return detect.IsUUID(v)
	case candEmail:
		return detect.IsEmail(v)
	case candURL:
		return detect.IsURL(v)
	case candJSON:
		return detect.IsJSON(v)
	default:
		return false
	}
}

func (s *ColumnSolver) eliminate(name, value, file string, row int64, reason string) {
	s.evidence = append(s.evidence, model.EliminationEvidence{
		Eliminated:     name,
		BecauseOfValue: value,
		FilePath:       file,
		Row:            row,
		Reason:         reason,
	})
}

// AddValue folds one observed cell into the solver.
func (s *ColumnSolver) AddValue(value, file string, row int64) {
	v := detect.Normalize(value)
	if s.det.IsNull(v) {
		s.nulls++
		s.nullSentinels[v] = struct{}{}
		return
	}
	s.values++
	s.dist.ByType[s.det.Detect(v).String()]++

	anyAccepts := false
	for c := range numCandidates {
		ok := s.accepts(c, v)
		anyAccepts = anyAccepts || ok
		if s.possible[c] && !ok {
			s.possible[c] = false
			s.eliminate(c.String(), v, file, row, candidateReasons[c])
		}
	}
	if !anyAccepts {
		s.freeText = true
	}

	if s.possible[candDate] {
		s.narrowFormats(v, file, row)
	}
}

func (s *ColumnSolver) dropFormat(f model.DateFormat, value, file string, row int64, reason string) {
	if !s.formats[f] {
		return
	}
	s.formats[f] = false
	s.eliminate("Date:"+string(f), value, file, row, reason)
}

// narrowFormats applies the day/month proof rule of one date value.
func (s *ColumnSolver) narrowFormats(v, file string, row int64) {
	if detect.IsISODate(v) {
		s.dropFormat(model.DateFormatUS, v, file, row, "ISO date is not slash-delimited")
		s.dropFormat(model.DateFormatEU, v, file, row, "ISO date is not slash-delimited")
	} else {
		s.dropFormat(model.DateFormatISO, v, file, row, "slash date is not ISO")
		j := detect.JudgeSlashDate(v)
		switch f, proven := j.Proof(); {
		case !proven:
			s.dist.Ambiguous++
		case f == model.DateFormatEU:
			s.dist.EUProofs++
			reason := fmt.Sprintf("first position %d > 12 cannot be a month", j.First)
			s.recordProof(&s.euProof, model.DateFormatUS, v, file, row, reason)
		case f == model.DateFormatUS:
			s.dist.USProofs++
			reason := fmt.Sprintf("second position %d > 12 cannot be a month", j.Second)
			s.recordProof(&s.usProof, model.DateFormatEU, v, file, row, reason)
		}
	}

	if s.usProof != nil && s.euProof != nil && len(s.contradictions) == 0 {
		s.contradictions = append(s.contradictions, model.Contradiction{
			Column: s.column,
			Kind:   "date_format",
			First:  *s.usProof,
			Second: *s.euProof,
			Describe: fmt.Sprintf("value %q proves month/day order while %q proves day/month order",
				s.usProof.BecauseOfValue, s.euProof.BecauseOfValue),
		})
	}
	if s.liveFormats() == 0 {
		s.possible[candDate] = false
		s.eliminate(candDate.String(), v, file, row, "no date format fits every value")
	}
}

// recordProof keeps the first proof of a format and drops the opposite one.
func (s *ColumnSolver) recordProof(proof **model.EliminationEvidence, opposite model.DateFormat, v, file string, row int64, reason string) {
	if *proof == nil {
		*proof = &model.EliminationEvidence{
			Eliminated:     "Date:" + string(opposite),
			BecauseOfValue: v,
			FilePath:       file,
			Row:            row,
			Reason:         reason,
		}
	}
	s.dropFormat(opposite, v, file, row, reason)
}

func (s *ColumnSolver) liveFormats() int {
	n := 0
	for _, f := range dateFormats {
		if s.formats[f] {
			n++
		}
	}
	return n
}

func (s *ColumnSolver) survivors() []candidate {
	var out []candidate
	for c := range numCandidates {
		if s.possible[c] {
			out = append(out, c)
		}
	}
	return out
}

// IsResolved reports whether further values can no longer change the
// outcome's type: one candidate left with at most one date format and no
// contradiction, or every candidate eliminated by free text.
func (s *ColumnSolver) IsResolved() bool {
	if len(s.contradictions) > 0 {
		return false
	}
	surv := s.survivors()
	switch len(surv) {
	case 0:
		return s.freeText
	case 1:
		return surv[0] != candDate || s.liveFormats() <= 1
	default:
		return false
	}
}

// dateType refines the Date candidate by its surviving formats.
func (s *ColumnSolver) dateType() (model.PrimitiveType, model.DateFormat) {
	var live []model.DateFormat
	for _, f := range dateFormats {
		if s.formats[f] {
			live = append(live, f)
		}
	}
	if len(live) == 1 {
		return live[0].DateType(), live[0]
	}
	return model.TypeDateSlashAmbiguous, ""
}

func (s *ColumnSolver) primitive(c candidate) model.PrimitiveType {
	switch c {
	case candBoolean:
		return model.TypeBoolean
	case candInt64:
		return model.TypeInt64
	case candFloat64:
		return model.TypeFloat64
	case candDate:
		t, _ := s.dateType()
		return t
	case candDateTime:
		return model.TypeDateTime
	case candUUID:
		return model.TypeUUID
	case candEmail:
		return model.TypeEmail
	case candURL:
		return model.TypeURL
	default:
		return model.TypeJSON
	}
}

// Result reports the current outcome. It can be called at any time.
func (s *ColumnSolver) Result() model.ColumnResult {
	res := model.ColumnResult{
		Column:        s.column,
		Evidence:      append([]model.EliminationEvidence{}, s.evidence...),
		Nullable:      s.nulls > 0,
		NullSentinels: s.sentinels(),
	}

	if len(s.contradictions) > 0 {
		res.Status = model.StatusContradiction
		res.Type = model.TypeString
		res.Contradictions = append([]model.Contradiction{}, s.contradictions...)
		res.Distribution = s.distribution()
		res.Suggestion = "values prove both month/day and day/month order; split the source or fix the outlying rows"
		return res
	}
	if s.values == 0 {
		res.Status = model.StatusAmbiguous
		res.Type = model.TypeUnknown
		res.Suggestion = "only null values were seen; add files with non-null data"
		return res
	}

	surv := s.survivors()
	if len(surv) == 0 {
		if s.freeText {
			res.Status = model.StatusResolved
			res.Type = model.TypeString
		} else {
			res.Status = model.StatusNoValidType
			res.Type = model.TypeString
			res.Suggestion = "no single type accepts every value; check for mixed columns"
		}
		return res
	}

	types := make([]model.PrimitiveType, len(surv))
	for i, c := range surv {
		types[i] = s.primitive(c)
	}
	res.Candidates = types
	if s.possible[candDate] {
		for _, f := range dateFormats {
			if s.formats[f] {
				res.FormatCandidates = append(res.FormatCandidates, f)
			}
		}
	}

	least, chain := leastOfChain(types)
	switch {
	case !chain:
		res.Status = model.StatusAmbiguous
		res.Type = lattice.Fold(types...)
		res.Suggestion = "incomparable types survive: " + joinTypes(types)
	case least == model.TypeDateSlashAmbiguous:
		res.Status = model.StatusAmbiguous
		res.Type = least
		res.Suggestion = "no value proves the day/month order; set a date format hint or add data"
	default:
		res.Status = model.StatusResolved
		res.Type = least
		if least.IsDate() {
			_, res.Format = s.dateType()
		}
	}
	return res
}

func (s *ColumnSolver) sentinels() []string {
	if len(s.nullSentinels) == 0 {
		return nil
	}
	out := make([]string, 0, len(s.nullSentinels))
	for v := range s.nullSentinels {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func (s *ColumnSolver) distribution() *model.ValueDistribution {
	d := model.ValueDistribution{
		ByType:    make(map[string]int64, len(s.dist.ByType)),
		USProofs:  s.dist.USProofs,
		EUProofs:  s.dist.EUProofs,
		Ambiguous: s.dist.Ambiguous,
	}
	for k, v := range s.dist.ByType {
		d.ByType[k] = v
	}
	return &d
}

// leastOfChain returns the least element when ts is totally ordered by the
// lattice.
func leastOfChain(ts []model.PrimitiveType) (model.PrimitiveType, bool) {
	least := ts[0]
	for _, t := range ts[1:] {
		switch {
		case lattice.IsSubtype(t, least):
			least = t
		case lattice.IsSubtype(least, t):
		default:
			return model.TypeString, false
		}
	}
	for _, t := range ts {
		if !lattice.IsSubtype(least, t) {
			return model.TypeString, false
		}
	}
	return least, true
}

func joinTypes(ts []model.PrimitiveType) string {
	names := make([]string, len(ts))
	for i, t := range ts {
		names[i] = t.String()
	}
	return strings.Join(names, ", ")
}

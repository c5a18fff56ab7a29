package detect

import (
	"regexp"
	"strconv"

	"github.com/sells-group/schemaproof/internal/model"
)

var slashDateRe = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{4})$`)

// DateJudgement is the per-value verdict on a slash-delimited date.
type DateJudgement struct {
	// Valid is false when no reading of the value is a calendar date.
	Valid bool
	// First and Second are the two leading numeric positions (A/B/YYYY).
	First, Second int
	// USPossible and EUPossible report which readings survive the domain
	// constraints (month <= 12, day <= 31).
	USPossible, EUPossible bool
}

// Proof returns the format proven by this value, if exactly one reading survives.
func (j DateJudgement) Proof() (model.DateFormat, bool) {
	switch {
	case !j.Valid:
		return "", false
	case j.USPossible && !j.EUPossible:
		return model.DateFormatUS, true
	case j.EUPossible && !j.USPossible:
		return model.DateFormatEU, true
	default:
		return "", false
	}
}

// Type maps the judgement onto a PrimitiveType.
func (j DateJudgement) Type() model.PrimitiveType {
	if !j.Valid {
		return model.TypeString
	}
	if f, ok := j.Proof(); ok {
		return f.DateType()
	}
	return model.TypeDateSlashAmbiguous
}

// IsSlashDateShape reports whether s looks like A/B/YYYY, valid or not.
func IsSlashDateShape(s string) bool {
	return slashDateRe.MatchString(s)
}

// JudgeSlashDate applies the elimination rule to one A/B/YYYY value: a
// position holding a number above 12 cannot be the month.
func JudgeSlashDate(s string) DateJudgement {
	m := slashDateRe.FindStringSubmatch(s)
	if m == nil {
		return DateJudgement{}
	}
	a, _ := strconv.Atoi(m[1])
	b, _ := strconv.Atoi(m[2])
	j := DateJudgement{First: a, Second: b}
	if a == 0 || b == 0 {
		return j
	}
	j.USPossible = a <= 12 && b <= 31
	j.EUPossible = b <= 12 && a <= 31
	j.Valid = j.USPossible || j.EUPossible
	return j
}

// ResolveSlashDate classifies one slash date as SlashUs, SlashEu,
// SlashAmbiguous, or String when no reading is a valid date.
func ResolveSlashDate(s string) model.PrimitiveType {
	return JudgeSlashDate(s).Type()
}

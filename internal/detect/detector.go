// Package detect classifies raw scalar strings into primitive types using
// fixed, priority-ordered rules.
package detect

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/sells-group/schemaproof/internal/model"
)

var (
	intRe      = regexp.MustCompile(`^-?\d{1,18}$`)
	floatRe    = regexp.MustCompile(`^-?\d+\.\d+([eE][+-]?\d+)?$`)
	isoDateRe  = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})$`)
	dateTimeRe = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})[T ](\d{2}):(\d{2})(:(\d{2})(\.\d{1,9})?)?(Z|[+-]\d{2}:?\d{2})?$`)
	uuidRe     = regexp.MustCompile(`(?i)^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)
	emailRe    = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	urlRe      = regexp.MustCompile(`(?i)^(https?|ftp)://[^\s/$.?#][^\s]*$`)
)

// Detector classifies values. It is immutable and safe for concurrent use.
type Detector struct {
	nulls map[string]struct{}
	bools map[string]struct{}
}

// New builds a Detector from cfg. Empty tables fall back to the defaults.
func New(cfg Config) *Detector {
	cfg = cfg.withDefaults()
	return &Detector{
		nulls: toSet(cfg.NullSentinels, false),
		bools: toSet(cfg.BooleanPatterns, true),
	}
}

// Default returns a Detector using the default tables.
func Default() *Detector {
	return New(DefaultConfig())
}

// Normalize trims the surrounding spaces and tabs every rule ignores.
func Normalize(value string) string {
	return strings.Trim(value, " \t")
}

// IsNull reports whether value is a null sentinel.
func (d *Detector) IsNull(value string) bool {
	_, ok := d.nulls[Normalize(value)]
	return ok
}

// IsBoolean reports whether value matches a boolean pattern.
func (d *Detector) IsBoolean(value string) bool {
	_, ok := d.bools[strings.ToLower(Normalize(value))]
	return ok
}

// Detect returns the single type of value. The first matching rule wins.
func (d *Detector) Detect(value string) model.PrimitiveType {
	v := Normalize(value)

	if _, ok := d.nulls[v]; ok {
		return model.TypeNull
	}
	if _, ok := d.bools[strings.ToLower(v)]; ok {
		return model.TypeBoolean
	}
	if v == "" {
		// Only reachable when "" was removed from the null table.
		return model.TypeString
	}
	if intRe.MatchString(v) {
		return model.TypeInt64
	}
	if floatRe.MatchString(v) {
		return model.TypeFloat64
	}
	if IsISODate(v) {
		return model.TypeDateISO
	}
	if IsDateTime(v) {
		return model.TypeDateTime
	}
	if IsSlashDateShape(v) {
		return ResolveSlashDate(v)
	}
	switch {
	case uuidRe.MatchString(v):
		return model.TypeUUID
	case emailRe.MatchString(v):
		return model.TypeEmail
	case urlRe.MatchString(v):
		return model.TypeURL
	case isJSON(v):
		return model.TypeJSON
	}
	return model.TypeString
}

// IsInteger reports whether v (already normalized) is an Int64 literal.
func IsInteger(v string) bool {
	return intRe.MatchString(v)
}

// IsDecimal reports whether v (already normalized) is a Float64 literal.
func IsDecimal(v string) bool {
	return floatRe.MatchString(v)
}

// IsISODate reports whether v is YYYY-MM-DD with a plausible month and day.
func IsISODate(v string) bool {
	m := isoDateRe.FindStringSubmatch(v)
	if m == nil {
		return false
	}
	return validMonthDay(m[2], m[3])
}

// IsDateTime reports whether v is an ISO date followed by a time of day.
func IsDateTime(v string) bool {
	m := dateTimeRe.FindStringSubmatch(v)
	if m == nil || !validMonthDay(m[2], m[3]) {
		return false
	}
	hour, _ := strconv.Atoi(m[4])
	minute, _ := strconv.Atoi(m[5])
	if hour > 23 || minute > 59 {
		return false
	}
	if m[7] != "" {
		sec, _ := strconv.Atoi(m[7])
		if sec > 60 {
			return false
		}
	}
	return true
}

// IsUUID, IsEmail and IsURL expose the pattern rules to the constraint solver.
func IsUUID(v string) bool  { return uuidRe.MatchString(v) }
func IsEmail(v string) bool { return emailRe.MatchString(v) }
func IsURL(v string) bool   { return urlRe.MatchString(v) }

// IsJSON reports whether v is a JSON object or array.
func IsJSON(v string) bool { return isJSON(v) }

func validMonthDay(month, day string) bool {
	mo, _ := strconv.Atoi(month)
	dd, _ := strconv.Atoi(day)
	return mo >= 1 && mo <= 12 && dd >= 1 && dd <= 31
}

func isJSON(v string) bool {
	if len(v) < 2 {
		return false
	}
	first, last := v[0], v[len(v)-1]
	if !(first == '{' && last == '}') && !(first == '[' && last == ']') {
		return false
	}
	return json.Valid([]byte(v))
}

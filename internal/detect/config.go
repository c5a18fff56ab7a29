package detect

import "strings"

// Config holds the sentinel tables consulted by a Detector. A Config is
// copied into the Detector at construction and never mutated afterwards.
type Config struct {
	// NullSentinels are matched exactly (case-sensitive).
	NullSentinels []string `yaml:"null_sentinels" mapstructure:"null_sentinels"`
	// BooleanPatterns are matched case-insensitively.
	BooleanPatterns []string `yaml:"boolean_patterns" mapstructure:"boolean_patterns"`
}

// DefaultNullSentinels returns the default null sentinel table.
func DefaultNullSentinels() []string {
	return []string{"", "NULL", "null", "N/A", "NA", "-", "None", "nil", `\N`}
}

// DefaultBooleanPatterns returns the default boolean pattern table.
func DefaultBooleanPatterns() []string {
	return []string{"true", "false", "yes", "no", "1", "0", "t", "f"}
}

// DefaultConfig returns a Config populated with the default tables.
func DefaultConfig() Config {
	return Config{
		NullSentinels:   DefaultNullSentinels(),
		BooleanPatterns: DefaultBooleanPatterns(),
	}
}

// withDefaults fills empty tables. An explicitly empty table is not
// representable; use a sentinel that can never match to disable a rule.
func (c Config) withDefaults() Config {
	if len(c.NullSentinels) == 0 {
		c.NullSentinels = DefaultNullSentinels()
	}
	if len(c.BooleanPatterns) == 0 {
		c.BooleanPatterns = DefaultBooleanPatterns()
	}
	return c
}

func toSet(values []string, fold bool) map[string]struct{} {
	m := make(map[string]struct{}, len(values))
	for _, v := range values {
		if fold {
			v = strings.ToLower(v)
		}
		m[v] = struct{}{}
	}
	return m
}

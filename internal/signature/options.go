package signature

import "github.com/sells-group/schemaproof/internal/model"

// Defaults for Options.
const (
	DefaultSampleRows   = 30
	DefaultMaxColumns   = 10_000
	DefaultTailMaxBytes = 100 << 20
	DefaultComment      = "#"
)

// Options tunes one Compute call.
type Options struct {
	// SampleRows is the total row budget; head, middle and tail windows
	// each take a third of it.
	SampleRows int `yaml:"sample_rows" mapstructure:"sample_rows"`
	// HeaderOverrides renames columns positionally; empty entries keep the
	// detected name.
	HeaderOverrides []string `yaml:"header_overrides" mapstructure:"header_overrides"`
	// EncodingOverride forces a WHATWG encoding label instead of detection.
	EncodingOverride string `yaml:"encoding_override" mapstructure:"encoding_override"`
	// DateFormatHint settles Date(SlashAmbiguous) columns after the fold.
	// It never overrides a proven format.
	DateFormatHint model.DateFormat `yaml:"date_format_hint" mapstructure:"date_format_hint"`
	// MaxColumns is the hard column limit.
	MaxColumns int `yaml:"max_columns" mapstructure:"max_columns"`
	// TailMaxBytes is the size below which the tail window is sampled.
	TailMaxBytes int64 `yaml:"tail_max_bytes" mapstructure:"tail_max_bytes"`
	// Comment marks preamble lines of delimited files. "none" disables it.
	Comment string `yaml:"comment" mapstructure:"comment"`
}

// DefaultOptions returns Options with every default applied.
func DefaultOptions() Options {
	return Options{}.withDefaults()
}

func (o Options) withDefaults() Options {
	if o.SampleRows <= 0 {
		o.SampleRows = DefaultSampleRows
	}
	if o.MaxColumns <= 0 {
		o.MaxColumns = DefaultMaxColumns
	}
	if o.TailMaxBytes <= 0 {
		o.TailMaxBytes = DefaultTailMaxBytes
	}
	if o.Comment == "" {
		o.Comment = DefaultComment
	}
	return o
}

// window is the row budget of one sampling window.
func (o Options) window() int {
	return max(o.SampleRows/3, 1)
}

// CommentByte returns the comment marker, or 0 when disabled.
func (o Options) CommentByte() byte {
	if o.Comment == "none" || o.Comment == "" {
		return 0
	}
	return o.Comment[0]
}

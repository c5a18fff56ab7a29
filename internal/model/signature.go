package model

// Column describes one column in original file order.
type Column struct {
	Name     string        `json:"name" yaml:"name"`
	// Key is the flattened record key a keyed-format column was read from.
	// It differs from Name only when a header override renamed the column.
	Key      string        `json:"key,omitempty" yaml:"key,omitempty"`
	Index    int           `json:"index" yaml:"index"`
	Type     PrimitiveType `json:"type" yaml:"type"`
	Nullable bool          `json:"nullable" yaml:"nullable"`
}

// SignatureComponents is the structural description of one file. Only the
// serialized fields (column count, delimiter, encoding, format, headers and
// type mask) contribute to the signature hash.
type SignatureComponents struct {
	ContentHash        string          `json:"content_hash" yaml:"content_hash"`
	Format             FileFormat      `json:"format" yaml:"format"`
	Encoding           string          `json:"encoding" yaml:"encoding"`
	EncodingConfidence float64         `json:"encoding_confidence" yaml:"encoding_confidence"`
	Delimiter          string          `json:"delimiter" yaml:"delimiter"`
	Headers            []string        `json:"headers" yaml:"headers"`
	TypeMask           []PrimitiveType `json:"type_mask" yaml:"type_mask"`
	Columns            []Column        `json:"columns" yaml:"columns"`
	ColumnCount        int             `json:"column_count" yaml:"column_count"`
	Headerless         bool            `json:"headerless" yaml:"headerless"`
	HasAmbiguousDates  bool            `json:"has_ambiguous_dates" yaml:"has_ambiguous_dates"`
	DataRows           int64           `json:"data_rows" yaml:"data_rows"`
	Truncated          bool            `json:"truncated" yaml:"truncated"`
}

// TypeOf returns the type recorded for the named header and whether it exists.
// With duplicate header names the first column wins.
func (c *SignatureComponents) TypeOf(header string) (PrimitiveType, bool) {
	for _, col := range c.Columns {
		if col.Name == header {
			return col.Type, true
		}
	}
	return TypeUnknown, false
}

// Signature pairs the strict and relaxed hashes with the components they
// were computed from.
type Signature struct {
	Hash       string              `json:"signature_hash" yaml:"signature_hash"`
	Relaxed    string              `json:"signature_relaxed" yaml:"signature_relaxed"`
	Components SignatureComponents `json:"components" yaml:"components"`
}

// Warnings collects degraded-but-usable conditions met while reading a file.
type Warnings struct {
	InvalidUTF8Replaced  int64 `json:"invalid_utf8_replaced,omitempty" yaml:"invalid_utf8_replaced,omitempty"`
	MalformedRowsSkipped int64 `json:"malformed_rows_skipped,omitempty" yaml:"malformed_rows_skipped,omitempty"`
	RaggedRows           int64 `json:"ragged_rows,omitempty" yaml:"ragged_rows,omitempty"`
	UnknownKeys          int64 `json:"unknown_keys,omitempty" yaml:"unknown_keys,omitempty"`
	HeadOnlySample       bool  `json:"head_only_sample,omitempty" yaml:"head_only_sample,omitempty"`
	Truncated            bool  `json:"truncated,omitempty" yaml:"truncated,omitempty"`
}

// Empty reports whether no warning was raised.
func (w Warnings) Empty() bool {
	return w == Warnings{}
}

// Merge adds the counters of o into w.
func (w *Warnings) Merge(o Warnings) {
	w.InvalidUTF8Replaced += o.InvalidUTF8Replaced
	w.MalformedRowsSkipped += o.MalformedRowsSkipped
	w.RaggedRows += o.RaggedRows
	w.UnknownKeys += o.UnknownKeys
	w.HeadOnlySample = w.HeadOnlySample || o.HeadOnlySample
	w.Truncated = w.Truncated || o.Truncated
}

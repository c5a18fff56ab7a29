package fetcher

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/schemaproof/internal/model"
)

// Framing is everything needed to re-read a file the way its signature saw it.
type Framing struct {
	Format    model.FileFormat
	Encoding  string
	Delimiter string
	// Headers lists the keys positional records are aligned to for keyed
	// formats. Ignored for delimited and XLSX input.
	Headers []string
	// Comment is the preamble comment marker for delimited input.
	Comment byte
}

// FramingOf recreates how a signature read its file. Keyed formats align
// records to the source keys in original order, so renamed columns still
// match their records.
func FramingOf(c *model.SignatureComponents, comment byte) Framing {
	f := Framing{
		Format:    c.Format,
		Encoding:  c.Encoding,
		Delimiter: c.Delimiter,
		Comment:   comment,
	}
	if c.Format.Keyed() {
		f.Headers = make([]string, len(c.Columns))
		for i, col := range c.Columns {
			f.Headers[i] = col.Key
			if col.Key == "" {
				f.Headers[i] = col.Name
			}
		}
	}
	return f
}

// Reader bundles a RowSource with the counters it maintains.
type Reader struct {
	RowSource
	text      *TextReader
	delimited *DelimitedReader
	aligned   *AlignedReader
}

// Warnings reports the degraded conditions met so far.
func (r *Reader) Warnings() model.Warnings {
	var w model.Warnings
	if r.text != nil {
		w.InvalidUTF8Replaced = r.text.Replaced()
		w.MalformedRowsSkipped = r.text.SkippedLines()
	}
	if r.delimited != nil {
		w.MalformedRowsSkipped += r.delimited.Malformed()
	}
	if r.aligned != nil {
		w.MalformedRowsSkipped += r.aligned.Malformed()
		w.UnknownKeys = r.aligned.UnknownKeys()
	}
	return w
}

// Delimited returns the underlying delimited reader, if any.
func (r *Reader) Delimited() *DelimitedReader { return r.delimited }

// DelimiterRune returns the first rune of a delimiter label, or 0.
func DelimiterRune(d string) rune {
	for _, r := range d {
		return r
	}
	return 0
}

// OpenRecords opens src at its current position as positional records.
func OpenRecords(src *Source, f Framing) (*Reader, error) {
	if f.Format == model.FormatXLSX {
		x, err := NewXLSXReader(src.Reader(), XLSXOptions{})
		if err != nil {
			return nil, err
		}
		return &Reader{RowSource: x}, nil
	}
	if f.Format == model.FormatBinary {
		return nil, eris.New("fetcher: binary files have no records")
	}

	tr, err := NewTextReader(src.Reader(), f.Encoding)
	if err != nil {
		return nil, err
	}
	out := &Reader{text: tr}
	switch f.Format {
	case model.FormatJSON:
		out.aligned = NewAlignedReader(NewJSONReader(tr), f.Headers)
		out.RowSource = out.aligned
	case model.FormatNDJSON:
		out.aligned = NewAlignedReader(NewNDJSONReader(tr), f.Headers)
		out.RowSource = out.aligned
	case model.FormatXML:
		out.aligned = NewAlignedReader(NewXMLReader(tr, Predecoded(f.Encoding)), f.Headers)
		out.RowSource = out.aligned
	default:
		out.delimited = NewDelimitedReader(tr, DelimitedOptions{
			Delimiter: DelimiterRune(f.Delimiter),
			Comment:   f.Comment,
		})
		out.RowSource = out.delimited
	}
	return out, nil
}

// OpenKeyed opens src at its current position as keyed records.
func OpenKeyed(src *Source, f Framing) (KeyedReader, *TextReader, error) {
	tr, err := NewTextReader(src.Reader(), f.Encoding)
	if err != nil {
		return nil, nil, err
	}
	switch f.Format {
	case model.FormatJSON:
		return NewJSONReader(tr), tr, nil
	case model.FormatNDJSON:
		return NewNDJSONReader(tr), tr, nil
	case model.FormatXML:
		return NewXMLReader(tr, Predecoded(f.Encoding)), tr, nil
	default:
		return nil, nil, eris.Errorf("fetcher: format %s is not keyed", f.Format)
	}
}

// Predecoded reports whether text read under label has already been
// transcoded to UTF-8 before an XML prolog could declare a charset.
func Predecoded(label string) bool {
	switch label {
	case "", EncodingUTF8, EncodingUTF8Replaced:
		return false
	default:
		return true
	}
}

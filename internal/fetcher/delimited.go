package fetcher

import (
	"io"
	"strings"

	"github.com/rotisserie/eris"
)

// DefaultMaxContinuationLines bounds how many extra physical lines a quoted
// field may span before its record is treated as malformed.
const DefaultMaxContinuationLines = 10

// DelimitedOptions configures a DelimitedReader.
type DelimitedOptions struct {
	// Delimiter separates fields. Zero reads each record as a single field.
	Delimiter rune
	// Comment marks preamble lines skipped before the first record (0 = none).
	Comment byte
	// MaxContinuationLines defaults to DefaultMaxContinuationLines.
	MaxContinuationLines int
}

// Record is one logical row of a delimited file.
type Record struct {
	Fields []string
	// Line is the 1-based physical line the record starts on.
	Line int64
	// Truncated is set on a final record that ended at EOF inside an open
	// quote. Its fields are unreliable.
	Truncated bool
	// Terminated is false when the record was the last bytes of the stream
	// and had no trailing newline.
	Terminated bool
	// Absent marks fields synthesized for keys missing from a keyed record.
	Absent []bool
}

// IsAbsent reports whether field i was missing from the source record.
func (r Record) IsAbsent(i int) bool {
	if i >= len(r.Fields) {
		return true
	}
	return r.Absent != nil && r.Absent[i]
}

// Cut reports a final record cut short by end of input: an open quote, or
// fewer than width fields without a line terminator.
func (r Record) Cut(width int) bool {
	return r.Truncated || (!r.Terminated && len(r.Fields) < width)
}

// DelimitedReader reads quote-aware delimited records from a TextReader.
// Blank lines are skipped. Records whose quoted field spans more than
// MaxContinuationLines extra lines are dropped and counted.
type DelimitedReader struct {
	tr        *TextReader
	opts      DelimitedOptions
	line      int64
	started   bool
	malformed int64
}

// NewDelimitedReader returns a reader over tr.
func NewDelimitedReader(tr *TextReader, opts DelimitedOptions) *DelimitedReader {
	if opts.MaxContinuationLines <= 0 {
		opts.MaxContinuationLines = DefaultMaxContinuationLines
	}
	return &DelimitedReader{tr: tr, opts: opts}
}

// Malformed returns how many records were dropped for exceeding the
// continuation limit.
func (d *DelimitedReader) Malformed() int64 { return d.malformed }

// Replaced returns how many invalid UTF-8 sequences were replaced.
func (d *DelimitedReader) Replaced() int64 { return d.tr.Replaced() }

// SkipLine discards the rest of the current physical line. It is used to
// resynchronise after seeking into the middle of a file.
func (d *DelimitedReader) SkipLine() error {
	_, _, err := d.tr.ReadLine()
	if err == io.EOF {
		return nil
	}
	d.line++
	return err
}

// Read returns the next record or io.EOF.
func (d *DelimitedReader) Read() (Record, error) {
	for {
		raw, terminated, err := d.tr.ReadLine()
		if err != nil {
			return Record{}, err
		}
		d.line++
		start := d.line

		if len(strings.TrimSpace(string(raw))) == 0 {
			continue
		}
		if !d.started && d.opts.Comment != 0 && raw[0] == d.opts.Comment {
			continue
		}
		d.started = true

		p := fieldParser{delim: d.opts.Delimiter}
		p.feed(string(raw))
		continuations := 0
		for p.inQuotes && terminated {
			if continuations == d.opts.MaxContinuationLines {
				break
			}
			next, term, err := d.tr.ReadLine()
			if err == io.EOF {
				terminated = false
				break
			}
			if err != nil {
				return Record{}, err
			}
			d.line++
			continuations++
			terminated = term
			p.field.WriteByte('\n')
			p.feed(string(next))
		}

		if p.inQuotes && terminated {
			// Continuation limit exceeded.
			d.malformed++
			continue
		}

		rec := Record{
			Fields:     p.finish(),
			Line:       start,
			Terminated: terminated,
			Truncated:  p.inQuotes,
		}
		return rec, nil
	}
}

// ReadAll drains the reader. Intended for small inputs and tests.
func (d *DelimitedReader) ReadAll() ([]Record, error) {
	var out []Record
	for {
		rec, err := d.Read()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, eris.Wrap(err, "delimited: read all")
		}
		out = append(out, rec)
	}
}

// fieldParser is an incremental RFC 4180 field splitter. Quotes only open a
// quoted field at the start of a field; a doubled quote inside a quoted
// field is a literal quote. Bytes after a closing quote are kept verbatim.
type fieldParser struct {
	delim    rune
	fields   []string
	field    strings.Builder
	inQuotes bool
	atStart  bool
	begun    bool
}

func (p *fieldParser) feed(s string) {
	if !p.begun {
		p.begun = true
		p.atStart = true
	}
	runes := []rune(s)
	for i := 0; i < len(runes); i++ {
		c := runes[i]
		if p.inQuotes {
			if c == '"' {
				if i+1 < len(runes) && runes[i+1] == '"' {
					p.field.WriteRune('"')
					i++
					continue
				}
				p.inQuotes = false
				continue
			}
			p.field.WriteRune(c)
			continue
		}
		switch {
		case c == '"' && p.atStart:
			p.inQuotes = true
			p.atStart = false
		case p.delim != 0 && c == p.delim:
			p.fields = append(p.fields, p.field.String())
			p.field.Reset()
			p.atStart = true
		default:
			p.field.WriteRune(c)
			p.atStart = false
		}
	}
}

func (p *fieldParser) finish() []string {
	return append(p.fields, p.field.String())
}

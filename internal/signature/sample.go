package signature

import (
	"io"

	"github.com/rotisserie/eris"

	"github.com/sells-group/schemaproof/internal/detect"
	"github.com/sells-group/schemaproof/internal/fetcher"
	"github.com/sells-group/schemaproof/internal/model"
)

// sample is the folded evidence of all sampling windows.
type sample struct {
	names      []string
	keys       []string // source keys, keyed formats only
	cols       []columnProfile
	rows       int64
	headerless bool
	truncated  bool
	delimiter  string
	warnings   model.Warnings
}

// sampler reads the head, middle and tail windows of one source.
type sampler struct {
	det   *detect.Detector
	opts  Options
	src   *fetcher.Source
	in    io.Reader // raw stream, follows src seeks
	body  io.Reader // stream from offset 0
	sniff *sniffResult
}

func (s *sampler) run() (*sample, error) {
	switch s.sniff.format {
	case model.FormatXLSX:
		return s.xlsx()
	case model.FormatJSON, model.FormatNDJSON, model.FormatXML:
		return s.keyed()
	default:
		return s.delimited()
	}
}

// headOnly reports whether only the head window can be read.
func (s *sampler) headOnly() bool {
	return !s.src.Seekable() || s.src.Size() < 0
}

func (s *sampler) headLimit() int {
	if s.headOnly() {
		return s.opts.SampleRows
	}
	return s.opts.window()
}

// midOffset is the resync point of the middle window. UTF-16 offsets stay
// on a code unit boundary.
func (s *sampler) midOffset() int64 {
	off := s.src.Size() / 2
	if s.sniff.encoding == fetcher.EncodingUTF16LE || s.sniff.encoding == fetcher.EncodingUTF16BE {
		off &^= 1
	}
	return off
}

// midEncoding is the label used to decode from the middle of the file,
// where no BOM is present.
func (s *sampler) midEncoding() string {
	if s.sniff.encoding == fetcher.EncodingUTF8BOM {
		return fetcher.EncodingUTF8
	}
	return s.sniff.encoding
}

func (s *sampler) checkWidth(n int) error {
	if n > s.opts.MaxColumns {
		return eris.Wrapf(ErrTooManyColumns, "signature: %d columns, limit %d", n, s.opts.MaxColumns)
	}
	return nil
}

// foldRows folds up to limit records of src into prof. With strictWidth,
// records of another width are dropped without counting. It reports whether
// src was exhausted.
func foldRows(src fetcher.RowSource, prof *positionalProfile, limit int, strictWidth bool, out *sample) (bool, error) {
	width := prof.width()
	for taken := 0; taken < limit; {
		rec, err := src.Read()
		if err == io.EOF {
			return true, nil
		}
		if err != nil {
			return false, err
		}
		if rec.Cut(width) {
			out.truncated = true
			continue
		}
		if strictWidth && len(rec.Fields) != width {
			continue
		}
		prof.add(rec.Fields)
		taken++
	}
	return false, nil
}

func (s *sampler) delimited() (*sample, error) {
	comment := s.opts.CommentByte()
	delim := sniffDelimiter(s.sniff.text, comment)
	out := &sample{delimiter: DelimiterLabel(delim)}

	tr, err := fetcher.NewTextReader(s.body, s.sniff.encoding)
	if err != nil {
		return nil, err
	}
	dr := fetcher.NewDelimitedReader(tr, fetcher.DelimitedOptions{Delimiter: delim, Comment: comment})

	first, err := dr.Read()
	if err == io.EOF {
		return nil, ErrFileEmpty
	}
	if err != nil {
		return nil, err
	}
	if err := s.checkWidth(len(first.Fields)); err != nil {
		return nil, err
	}
	if first.Truncated {
		out.truncated = true
	}

	prof := newPositionalProfile(s.det, first.Fields)
	exhausted, err := foldRows(dr, prof, s.headLimit(), false, out)
	if err != nil {
		return nil, err
	}
	s.addTextWarnings(out, tr, dr.Malformed())

	if !exhausted {
		if s.headOnly() {
			out.warnings.HeadOnlySample = true
		} else if err := s.delimitedRest(delim, prof, out); err != nil {
			return nil, err
		}
	}

	out.names, out.headerless = prof.resolve(s.opts.HeaderOverrides)
	out.cols = prof.cols
	out.rows = prof.rows
	out.warnings.RaggedRows = prof.ragged
	return out, nil
}

// delimitedRest samples the middle window and, for files under
// TailMaxBytes, the last window of rows.
func (s *sampler) delimitedRest(delim rune, prof *positionalProfile, out *sample) error {
	if err := s.src.Seek(s.midOffset()); err != nil {
		return err
	}
	tr, err := fetcher.NewTextReader(s.in, s.midEncoding())
	if err != nil {
		return err
	}
	dr := fetcher.NewDelimitedReader(tr, fetcher.DelimitedOptions{Delimiter: delim})
	defer func() { s.addTextWarnings(out, tr, dr.Malformed()) }()

	if err := dr.SkipLine(); err != nil {
		return err
	}
	exhausted, err := foldRows(dr, prof, s.opts.window(), true, out)
	if err != nil || exhausted || s.src.Size() >= s.opts.TailMaxBytes {
		return err
	}

	width := prof.width()
	last := newRing[[]string](s.opts.window())
	for {
		rec, err := dr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		if rec.Cut(width) {
			out.truncated = true
			continue
		}
		if len(rec.Fields) == width {
			last.push(rec.Fields)
		}
	}
	for _, f := range last.items() {
		prof.add(f)
	}
	return nil
}

func (s *sampler) addTextWarnings(out *sample, tr *fetcher.TextReader, malformed int64) {
	out.warnings.InvalidUTF8Replaced += tr.Replaced()
	out.warnings.MalformedRowsSkipped += tr.SkippedLines() + malformed
}

func (s *sampler) xlsx() (*sample, error) {
	xr, err := fetcher.NewXLSXReader(s.body, fetcher.XLSXOptions{})
	if err != nil {
		return nil, err
	}
	out := &sample{}
	first, err := xr.Read()
	if err == io.EOF {
		return nil, ErrFileEmpty
	}
	if err != nil {
		return nil, err
	}
	if err := s.checkWidth(len(first.Fields)); err != nil {
		return nil, err
	}
	prof := newPositionalProfile(s.det, first.Fields)
	if _, err := foldRows(xr, prof, s.opts.SampleRows, false, out); err != nil {
		return nil, err
	}
	out.names, out.headerless = prof.resolve(s.opts.HeaderOverrides)
	out.cols = prof.cols
	out.rows = prof.rows
	out.warnings.RaggedRows = prof.ragged
	return out, nil
}

func (s *sampler) keyed() (*sample, error) {
	tr, err := fetcher.NewTextReader(s.body, s.sniff.encoding)
	if err != nil {
		return nil, err
	}
	out := &sample{}
	prof := newKeyedProfile(s.det)
	kr := s.keyedReader(tr)

	limit := s.opts.SampleRows
	if s.sniff.format == model.FormatNDJSON {
		limit = s.headLimit()
	}
	exhausted, err := foldKeyed(kr, prof, limit, out)
	if err != nil {
		return nil, err
	}
	s.addTextWarnings(out, tr, kr.Malformed())

	if s.sniff.format == model.FormatNDJSON && !exhausted {
		if s.headOnly() {
			out.warnings.HeadOnlySample = true
		} else if err := s.ndjsonRest(prof, out); err != nil {
			return nil, err
		}
	}

	if prof.rows == 0 {
		return nil, ErrFileEmpty
	}
	out.names, out.cols = prof.resolve()
	if err := s.checkWidth(len(out.names)); err != nil {
		return nil, err
	}
	out.rows = prof.rows
	out.keys = append([]string(nil), out.names...)
	for i, o := range s.opts.HeaderOverrides {
		if i < len(out.names) && o != "" {
			out.names[i] = o
		}
	}
	return out, nil
}

func (s *sampler) keyedReader(tr *fetcher.TextReader) fetcher.KeyedReader {
	switch s.sniff.format {
	case model.FormatNDJSON:
		return fetcher.NewNDJSONReader(tr)
	case model.FormatXML:
		return fetcher.NewXMLReader(tr, fetcher.Predecoded(s.sniff.encoding))
	default:
		return fetcher.NewJSONReader(tr)
	}
}

// foldKeyed folds up to limit records. A document cut off mid-value marks
// the sample truncated and ends it.
func foldKeyed(kr fetcher.KeyedReader, prof *keyedProfile, limit int, out *sample) (bool, error) {
	for taken := 0; taken < limit; taken++ {
		rec, err := kr.Next()
		if err == io.EOF {
			return true, nil
		}
		if fetcher.IsTruncation(err) {
			out.truncated = true
			return true, nil
		}
		if err != nil {
			return false, err
		}
		prof.add(rec)
	}
	return false, nil
}

func (s *sampler) ndjsonRest(prof *keyedProfile, out *sample) error {
	if err := s.src.Seek(s.midOffset()); err != nil {
		return err
	}
	tr, err := fetcher.NewTextReader(s.in, s.midEncoding())
	if err != nil {
		return err
	}
	nr := fetcher.NewNDJSONReader(tr)
	// The partial first line is neither a record nor malformed.
	if _, _, err := tr.ReadLine(); err != nil && err != io.EOF {
		return err
	}
	defer func() { s.addTextWarnings(out, tr, nr.Malformed()) }()

	exhausted, err := foldKeyed(nr, prof, s.opts.window(), out)
	if err != nil || exhausted || s.src.Size() >= s.opts.TailMaxBytes {
		return err
	}

	last := newRing[map[string]string](s.opts.window())
	for {
		rec, err := nr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		last.push(rec)
	}
	for _, rec := range last.items() {
		prof.add(rec)
	}
	return nil
}

// ring keeps the last n items pushed.
type ring[T any] struct {
	buf  []T
	next int
	full bool
}

func newRing[T any](n int) *ring[T] {
	return &ring[T]{buf: make([]T, n)}
}

func (r *ring[T]) push(v T) {
	r.buf[r.next] = v
	r.next = (r.next + 1) % len(r.buf)
	if r.next == 0 {
		r.full = true
	}
}

// items returns the kept items oldest first.
func (r *ring[T]) items() []T {
	if !r.full {
		return r.buf[:r.next]
	}
	out := make([]T, 0, len(r.buf))
	out = append(out, r.buf[r.next:]...)
	return append(out, r.buf[:r.next]...)
}

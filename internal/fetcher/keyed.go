package fetcher

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"errors"
	"io"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
)

// ScalarKey names the single field of records that are bare scalars.
const ScalarKey = "value"

// KeyedReader yields flattened records addressed by key.
type KeyedReader interface {
	// Next returns the next record or io.EOF.
	Next() (map[string]string, error)
	// Malformed returns how many records were skipped as unparseable.
	Malformed() int64
}

// JSONReader streams records from a JSON document. A top-level array yields
// one record per element. A top-level object is treated as an envelope: the
// first key (in document order) holding an array of objects supplies the
// records. An object without such a key is a single record.
type JSONReader struct {
	dec       *json.Decoder
	state     int
	malformed int64
}

const (
	jsonInit = iota
	jsonArray
	jsonDone
)

// NewJSONReader returns a reader over r.
func NewJSONReader(r io.Reader) *JSONReader {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	return &JSONReader{dec: dec}
}

// Malformed implements KeyedReader. JSON syntax errors are fatal, so it is
// always zero.
func (j *JSONReader) Malformed() int64 { return j.malformed }

// Next implements KeyedReader.
func (j *JSONReader) Next() (map[string]string, error) {
	switch j.state {
	case jsonInit:
		return j.start()
	case jsonArray:
		return j.nextElement()
	default:
		return nil, io.EOF
	}
}

func (j *JSONReader) start() (map[string]string, error) {
	tok, err := j.dec.Token()
	if err == io.EOF {
		j.state = jsonDone
		return nil, io.EOF
	}
	if err != nil {
		return nil, eris.Wrap(err, "json: read opening token")
	}
	switch tok {
	case json.Delim('['):
		j.state = jsonArray
		return j.nextElement()
	case json.Delim('{'):
		return j.envelope()
	default:
		j.state = jsonDone
		return Flatten(tok), nil
	}
}

func (j *JSONReader) nextElement() (map[string]string, error) {
	if !j.dec.More() {
		j.state = jsonDone
		if _, err := j.dec.Token(); err != nil && err != io.EOF {
			return nil, eris.Wrap(err, "json: read closing token")
		}
		return nil, io.EOF
	}
	var item any
	if err := j.dec.Decode(&item); err != nil {
		return nil, eris.Wrap(err, "json: decode element")
	}
	return Flatten(item), nil
}

// envelope scans the keys of a top-level object after its '{'.
func (j *JSONReader) envelope() (map[string]string, error) {
	fields := make(map[string]any)
	for j.dec.More() {
		keyTok, err := j.dec.Token()
		if err != nil {
			return nil, eris.Wrap(err, "json: read key")
		}
		key, _ := keyTok.(string)
		tok, err := j.dec.Token()
		if err != nil {
			return nil, eris.Wrapf(err, "json: read value of %q", key)
		}
		if tok != json.Delim('[') {
			v, err := readValue(j.dec, tok)
			if err != nil {
				return nil, err
			}
			fields[key] = v
			continue
		}
		if !j.dec.More() {
			if _, err := j.dec.Token(); err != nil {
				return nil, eris.Wrap(err, "json: read closing token")
			}
			fields[key] = []any{}
			continue
		}
		var first any
		if err := j.dec.Decode(&first); err != nil {
			return nil, eris.Wrap(err, "json: decode element")
		}
		if obj, ok := first.(map[string]any); ok {
			j.state = jsonArray
			return Flatten(obj), nil
		}
		rest := []any{first}
		for j.dec.More() {
			var v any
			if err := j.dec.Decode(&v); err != nil {
				return nil, eris.Wrap(err, "json: decode element")
			}
			rest = append(rest, v)
		}
		if _, err := j.dec.Token(); err != nil {
			return nil, eris.Wrap(err, "json: read closing token")
		}
		fields[key] = rest
	}
	j.state = jsonDone
	return Flatten(fields), nil
}

// readValue rebuilds the value that starts with tok.
func readValue(dec *json.Decoder, tok json.Token) (any, error) {
	switch tok {
	case json.Delim('{'):
		m := make(map[string]any)
		for dec.More() {
			kt, err := dec.Token()
			if err != nil {
				return nil, eris.Wrap(err, "json: read key")
			}
			vt, err := dec.Token()
			if err != nil {
				return nil, eris.Wrap(err, "json: read value")
			}
			v, err := readValue(dec, vt)
			if err != nil {
				return nil, err
			}
			k, _ := kt.(string)
			m[k] = v
		}
		_, err := dec.Token()
		return m, eris.Wrap(err, "json: read object end")
	case json.Delim('['):
		var arr []any
		for dec.More() {
			var v any
			if err := dec.Decode(&v); err != nil {
				return nil, eris.Wrap(err, "json: decode element")
			}
			arr = append(arr, v)
		}
		_, err := dec.Token()
		return arr, eris.Wrap(err, "json: read array end")
	default:
		return tok, nil
	}
}

// NDJSONReader reads one JSON object per line. Lines that are not objects
// are skipped and counted.
type NDJSONReader struct {
	tr        *TextReader
	malformed int64
}

// NewNDJSONReader returns a reader over tr.
func NewNDJSONReader(tr *TextReader) *NDJSONReader {
	return &NDJSONReader{tr: tr}
}

// Malformed implements KeyedReader.
func (n *NDJSONReader) Malformed() int64 { return n.malformed }

// Next implements KeyedReader.
func (n *NDJSONReader) Next() (map[string]string, error) {
	for {
		line, _, err := n.tr.ReadLine()
		if err != nil {
			return nil, err
		}
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		dec := json.NewDecoder(bytes.NewReader(line))
		dec.UseNumber()
		var v map[string]any
		if err := dec.Decode(&v); err != nil || v == nil {
			n.malformed++
			continue
		}
		return Flatten(v), nil
	}
}

// Flatten turns a decoded JSON value into a string record. Nested objects
// are joined with "."; arrays are kept as JSON text; null becomes "".
// A non-object value becomes a single ScalarKey field.
func Flatten(v any) map[string]string {
	out := make(map[string]string)
	if m, ok := v.(map[string]any); ok {
		flattenInto("", m, out)
		return out
	}
	out[ScalarKey] = scalarString(v)
	return out
}

func flattenInto(prefix string, m map[string]any, out map[string]string) {
	for k, v := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := v.(map[string]any); ok && len(nested) > 0 {
			flattenInto(key, nested, out)
			continue
		}
		out[key] = scalarString(v)
	}
}

func scalarString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		if t {
			return "true"
		}
		return "false"
	case json.Number:
		return t.String()
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

// SortedKeys returns the keys of m in ascending order.
func SortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// AlignedReader projects keyed records onto a fixed header list so they can
// be consumed as positional records. Keys outside the list are counted.
type AlignedReader struct {
	k       KeyedReader
	headers []string
	index   map[string]int
	unknown int64
	n       int64
}

// NewAlignedReader returns a reader aligning k to headers.
func NewAlignedReader(k KeyedReader, headers []string) *AlignedReader {
	idx := make(map[string]int, len(headers))
	for i, h := range headers {
		if _, dup := idx[h]; !dup {
			idx[h] = i
		}
	}
	return &AlignedReader{k: k, headers: headers, index: idx}
}

// UnknownKeys returns how many keys were seen that are not in the header list.
func (a *AlignedReader) UnknownKeys() int64 { return a.unknown }

// Malformed returns the underlying reader's skipped record count.
func (a *AlignedReader) Malformed() int64 { return a.k.Malformed() }

// Read implements RowSource.
func (a *AlignedReader) Read() (Record, error) {
	m, err := a.k.Next()
	if err != nil {
		return Record{}, err
	}
	a.n++
	fields := make([]string, len(a.headers))
	absent := make([]bool, len(a.headers))
	for i := range absent {
		absent[i] = true
	}
	for k, v := range m {
		i, ok := a.index[k]
		if !ok {
			a.unknown++
			continue
		}
		fields[i] = v
		absent[i] = false
	}
	return Record{Fields: fields, Absent: absent, Line: a.n, Terminated: true}, nil
}

// IsTruncation reports whether err is a decoder hitting end of input in the
// middle of a document, as happens with a cut-off JSON or XML file.
func IsTruncation(err error) bool {
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var se *xml.SyntaxError
	return errors.As(err, &se) && strings.Contains(se.Msg, "unexpected EOF")
}

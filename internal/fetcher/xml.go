package fetcher

import (
	"encoding/xml"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/htmlindex"
)

// XMLReader streams the children of the document root as records. Child
// elements are flattened into dotted paths, attributes become "@name" keys,
// and a record holding only text becomes a single ScalarKey field.
type XMLReader struct {
	dec   *xml.Decoder
	depth int
}

type xmlFrame struct {
	path     string
	children bool
	text     strings.Builder
}

// NewXMLReader returns a reader over r. When decoded is true, r already
// carries UTF-8 and any charset declared in the prolog is ignored.
func NewXMLReader(r io.Reader, decoded bool) *XMLReader {
	dec := xml.NewDecoder(r)
	dec.Strict = false
	dec.CharsetReader = func(charset string, input io.Reader) (io.Reader, error) {
		if decoded {
			return input, nil
		}
		enc, err := htmlindex.Get(charset)
		if err != nil {
			return nil, eris.Wrapf(err, "xml: unsupported charset %q", charset)
		}
		return enc.NewDecoder().Reader(input), nil
	}
	return &XMLReader{dec: dec}
}

// Malformed implements KeyedReader. XML syntax errors are fatal.
func (x *XMLReader) Malformed() int64 { return 0 }

// Next implements KeyedReader.
func (x *XMLReader) Next() (map[string]string, error) {
	for {
		tok, err := x.dec.Token()
		if err == io.EOF {
			return nil, io.EOF
		}
		if err != nil {
			return nil, eris.Wrap(err, "xml: read token")
		}
		switch t := tok.(type) {
		case xml.StartElement:
			x.depth++
			if x.depth == 2 {
				return x.record(t)
			}
		case xml.EndElement:
			x.depth--
		}
	}
}

// record consumes one child of the root, starting at its StartElement.
func (x *XMLReader) record(start xml.StartElement) (map[string]string, error) {
	out := make(map[string]string)
	addAttrs(out, "", start.Attr)

	stack := []*xmlFrame{{}}
	for {
		tok, err := x.dec.Token()
		if err != nil {
			return nil, eris.Wrap(err, "xml: read record")
		}
		top := stack[len(stack)-1]
		switch t := tok.(type) {
		case xml.StartElement:
			top.children = true
			path := t.Name.Local
			if top.path != "" {
				path = top.path + "." + path
			}
			addAttrs(out, path, t.Attr)
			stack = append(stack, &xmlFrame{path: path})
		case xml.CharData:
			top.text.Write(t)
		case xml.EndElement:
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				x.depth--
				if !top.children {
					if text := strings.TrimSpace(top.text.String()); text != "" || len(out) == 0 {
						out[ScalarKey] = text
					}
				}
				return out, nil
			}
			if !top.children {
				out[top.path] = strings.TrimSpace(top.text.String())
			}
		}
	}
}

func addAttrs(out map[string]string, path string, attrs []xml.Attr) {
	for _, a := range attrs {
		if a.Name.Space == "xmlns" || a.Name.Local == "xmlns" {
			continue
		}
		key := "@" + a.Name.Local
		if path != "" {
			key = path + "." + key
		}
		out[key] = a.Value
	}
}

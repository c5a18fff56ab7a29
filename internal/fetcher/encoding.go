package fetcher

import (
	"bufio"
	"bytes"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Encoding labels recorded in signature components.
const (
	EncodingUTF8         = "utf-8"
	EncodingUTF8BOM      = "utf-8-bom"
	EncodingUTF16LE      = "utf-16le"
	EncodingUTF16BE      = "utf-16be"
	EncodingUTF8Replaced = "utf-8-replaced"
)

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// MaxLineBytes bounds a single physical line. Longer lines are skipped.
const MaxLineBytes = 16 << 20

// DetectEncoding inspects the leading bytes of a stream. A BOM is decisive;
// otherwise strict UTF-8 validity is checked. Truncated multi-byte sequences
// at the very end of head are tolerated since head is a window, not the file.
func DetectEncoding(head []byte) (label string, confidence float64) {
	switch {
	case bytes.HasPrefix(head, bomUTF8):
		return EncodingUTF8BOM, 1.0
	case bytes.HasPrefix(head, bomUTF16LE):
		return EncodingUTF16LE, 1.0
	case bytes.HasPrefix(head, bomUTF16BE):
		return EncodingUTF16BE, 1.0
	}
	if validUTF8Window(head) {
		return EncodingUTF8, 0.99
	}
	return EncodingUTF8Replaced, 0.5
}

func validUTF8Window(b []byte) bool {
	if utf8.Valid(b) {
		return true
	}
	// Allow a cut rune in the last three bytes.
	for cut := 1; cut <= 3 && cut < len(b); cut++ {
		if utf8.Valid(b[:len(b)-cut]) && !utf8.FullRune(b[len(b)-cut:]) {
			return true
		}
	}
	return false
}

// DecodedText reports the UTF-8 view of head under label, used for sniffing
// formats and delimiters on UTF-16 input.
func DecodedText(head []byte, label string) []byte {
	tr, err := NewTextReader(bytes.NewReader(head), label)
	if err != nil {
		return head
	}
	out, _ := io.ReadAll(tr)
	return out
}

// TextReader yields UTF-8 lines from an encoded stream. Invalid UTF-8 is
// replaced with U+FFFD and counted.
type TextReader struct {
	br       *bufio.Reader
	replaced int64
	skipped  int64
	pending  []byte
}

// NewTextReader decodes r according to label. Unknown labels are resolved
// through the WHATWG encoding index.
func NewTextReader(r io.Reader, label string) (*TextReader, error) {
	var dec io.Reader
	switch strings.ToLower(label) {
	case "", EncodingUTF8, EncodingUTF8Replaced:
		dec = r
	case EncodingUTF8BOM:
		dec = &bomSkipper{r: r, bom: bomUTF8}
	case EncodingUTF16LE:
		dec = transform.NewReader(r, unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder())
	case EncodingUTF16BE:
		dec = transform.NewReader(r, unicode.UTF16(unicode.BigEndian, unicode.UseBOM).NewDecoder())
	default:
		enc, err := htmlindex.Get(label)
		if err != nil {
			return nil, eris.Wrapf(err, "encoding: unsupported label %q", label)
		}
		dec = enc.NewDecoder().Reader(r)
	}
	return &TextReader{br: bufio.NewReaderSize(dec, 64<<10)}, nil
}

// Replaced returns how many invalid UTF-8 sequences were replaced so far.
func (t *TextReader) Replaced() int64 { return t.replaced }

// SkippedLines returns how many over-long lines were dropped.
func (t *TextReader) SkippedLines() int64 { return t.skipped }

// ReadLine returns the next physical line without its terminator. terminated
// is false for a final line that ended at EOF without a newline. io.EOF is
// returned once no bytes remain.
func (t *TextReader) ReadLine() (line []byte, terminated bool, err error) {
	for {
		line, terminated, err = t.readRaw()
		if err == errLineTooLong {
			t.skipped++
			continue
		}
		if err != nil {
			return nil, false, err
		}
		return t.sanitize(line), terminated, nil
	}
}

var errLineTooLong = eris.New("encoding: line too long")

func (t *TextReader) readRaw() ([]byte, bool, error) {
	var buf []byte
	tooLong := false
	for {
		chunk, err := t.br.ReadSlice('\n')
		if !tooLong {
			buf = append(buf, chunk...)
			if len(buf) > MaxLineBytes {
				tooLong = true
				buf = nil
			}
		}
		switch {
		case err == bufio.ErrBufferFull:
			continue
		case err == io.EOF:
			if tooLong {
				return nil, false, errLineTooLong
			}
			if len(buf) == 0 {
				return nil, false, io.EOF
			}
			return trimCR(buf), false, nil
		case err != nil:
			return nil, false, eris.Wrap(err, "encoding: read line")
		}
		if tooLong {
			return nil, true, errLineTooLong
		}
		return trimCR(buf[:len(buf)-1]), true, nil
	}
}

func trimCR(b []byte) []byte {
	if n := len(b); n > 0 && b[n-1] == '\r' {
		return b[:n-1]
	}
	return b
}

// Read implements io.Reader over the sanitized text, for decoders that need
// a byte stream (JSON, XML).
func (t *TextReader) Read(p []byte) (int, error) {
	for len(t.pending) == 0 {
		line, terminated, err := t.ReadLine()
		if err != nil {
			return 0, err
		}
		t.pending = line
		if terminated {
			t.pending = append(t.pending, '\n')
		}
	}
	n := copy(p, t.pending)
	t.pending = t.pending[n:]
	return n, nil
}

func (t *TextReader) sanitize(b []byte) []byte {
	if utf8.Valid(b) {
		return b
	}
	out := make([]byte, 0, len(b)+8)
	for len(b) > 0 {
		r, size := utf8.DecodeRune(b)
		if r == utf8.RuneError && size <= 1 {
			t.replaced++
			out = utf8.AppendRune(out, utf8.RuneError)
			b = b[1:]
			continue
		}
		out = append(out, b[:size]...)
		b = b[size:]
	}
	return out
}

// bomSkipper drops a leading byte-order mark if present.
type bomSkipper struct {
	r    io.Reader
	bom  []byte
	done bool
	buf  []byte
}

func (b *bomSkipper) Read(p []byte) (int, error) {
	if !b.done {
		b.done = true
		head := make([]byte, len(b.bom))
		n, err := io.ReadFull(b.r, head)
		head = head[:n]
		if !bytes.Equal(head, b.bom) {
			b.buf = head
		}
		if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
			return 0, err
		}
	}
	if len(b.buf) > 0 {
		n := copy(p, b.buf)
		b.buf = b.buf[n:]
		return n, nil
	}
	return b.r.Read(p)
}

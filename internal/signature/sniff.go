package signature

import (
	"bytes"
	"encoding/json"

	"github.com/sells-group/schemaproof/internal/fetcher"
	"github.com/sells-group/schemaproof/internal/model"
)

// sniffWindow is how many leading bytes content sniffing looks at.
const sniffWindow = 64 << 10

var binaryMagic = [][]byte{
	[]byte("PK\x03\x04"),          // zip
	{0x1F, 0x8B},                  // gzip
	[]byte("%PDF"),                // pdf
	[]byte("\x89PNG"),             // png
	{0xFF, 0xD8, 0xFF},            // jpeg
	[]byte("GIF8"),                // gif
	[]byte("PAR1"),                // parquet
	[]byte("SQLite format 3\x00"), // sqlite
	[]byte("BZh"),                 // bzip2
	{0xFD, '7', 'z', 'X', 'Z'},    // xz
	{'7', 'z', 0xBC, 0xAF},        // 7z
}

// sniffResult is what the leading window tells about a file.
type sniffResult struct {
	format     model.FileFormat
	encoding   string
	confidence float64
	// text is the head window decoded to UTF-8.
	text []byte
}

// magicPrefix returns up to the first 8 bytes of head.
func magicPrefix(head []byte) []byte {
	return head[:min(len(head), 8)]
}

func isBinary(head []byte, ext string) (binary, xlsx bool) {
	if bytes.HasPrefix(head, []byte("PK\x03\x04")) {
		if ext == ".xlsx" || ext == ".xlsm" ||
			(bytes.Contains(head, []byte("[Content_Types].xml")) && bytes.Contains(head, []byte("xl/"))) {
			return false, true
		}
	}
	for _, m := range binaryMagic {
		if bytes.HasPrefix(head, m) {
			return true, false
		}
	}
	if bytes.HasPrefix(head, []byte{0xFF, 0xFE}) || bytes.HasPrefix(head, []byte{0xFE, 0xFF}) {
		return false, false
	}
	return bytes.IndexByte(head, 0) >= 0, false
}

// sniff classifies the head window. It returns ErrFileEmpty for content that
// is empty once any BOM and whitespace are removed.
func sniff(head []byte, ext, encodingOverride string) (*sniffResult, error) {
	if len(head) == 0 {
		return nil, ErrFileEmpty
	}
	if bin, xlsx := isBinary(head, ext); bin {
		return &sniffResult{format: model.FormatBinary}, nil
	} else if xlsx {
		return &sniffResult{format: model.FormatXLSX, encoding: fetcher.EncodingUTF8, confidence: 1.0}, nil
	}

	res := &sniffResult{}
	if encodingOverride != "" {
		res.encoding, res.confidence = encodingOverride, 1.0
	} else {
		res.encoding, res.confidence = fetcher.DetectEncoding(head)
	}
	res.text = fetcher.DecodedText(head, res.encoding)

	trimmed := bytes.TrimSpace(res.text)
	if len(trimmed) == 0 {
		return nil, ErrFileEmpty
	}

	switch trimmed[0] {
	case '<':
		res.format = model.FormatXML
	case '[':
		res.format = model.FormatJSON
	case '{':
		if ext == ".ndjson" || ext == ".jsonl" || looksLikeNDJSON(res.text) {
			res.format = model.FormatNDJSON
		} else {
			res.format = model.FormatJSON
		}
	default:
		res.format = model.FormatCSV
	}
	return res, nil
}

// looksLikeNDJSON reports whether the first two non-blank lines are each a
// complete JSON object.
func looksLikeNDJSON(text []byte) bool {
	seen := 0
	for _, line := range bytes.Split(text, []byte("\n")) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		if line[0] != '{' || !json.Valid(line) {
			return false
		}
		seen++
		if seen == 2 {
			return true
		}
	}
	return false
}

package signature

import (
	"encoding/hex"
	"sort"
	"strconv"
	"strings"

	"lukechampine.com/blake3"

	"github.com/sells-group/schemaproof/internal/lattice"
	"github.com/sells-group/schemaproof/internal/model"
)

// valueEscaper keeps header and label values from colliding with the
// "|" list separator and the line structure.
var valueEscaper = strings.NewReplacer(`\`, `\\`, "|", `\|`, "\n", `\n`, "\r", `\r`, "\t", `\t`)

// Serialize renders the strict canonical form of c: alphabetical key=value
// lines, each terminated by "\n".
func Serialize(c *model.SignatureComponents) string {
	mask := make([]string, len(c.TypeMask))
	for i, t := range c.TypeMask {
		mask[i] = t.String()
	}
	return render(c, c.Headers, mask)
}

// SerializeRelaxed renders the relaxed canonical form: headers lowercased with
// spaces, underscores, hyphens and dots removed; types promoted; pairs
// re-sorted by normalized header.
func SerializeRelaxed(c *model.SignatureComponents) string {
	type pair struct {
		header string
		typ    string
	}
	pairs := make([]pair, len(c.Headers))
	for i, h := range c.Headers {
		pairs[i].header = NormalizeHeader(h)
		if i < len(c.TypeMask) {
			pairs[i].typ = lattice.Promote(c.TypeMask[i])
		}
	}
	sort.SliceStable(pairs, func(a, b int) bool {
		if pairs[a].header != pairs[b].header {
			return pairs[a].header < pairs[b].header
		}
		return pairs[a].typ < pairs[b].typ
	})

	headers := make([]string, len(pairs))
	for i, p := range pairs {
		headers[i] = p.header
	}
	var mask []string
	if len(c.TypeMask) > 0 {
		mask = make([]string, len(pairs))
		for i, p := range pairs {
			mask[i] = p.typ
		}
	}
	return render(c, headers, mask)
}

func render(c *model.SignatureComponents, headers, mask []string) string {
	esc := make([]string, len(headers))
	for i, h := range headers {
		esc[i] = valueEscaper.Replace(h)
	}
	var b strings.Builder
	b.WriteString("column_count=")
	b.WriteString(strconv.Itoa(c.ColumnCount))
	b.WriteString("\ndelimiter=")
	b.WriteString(valueEscaper.Replace(c.Delimiter))
	b.WriteString("\nencoding=")
	b.WriteString(valueEscaper.Replace(c.Encoding))
	b.WriteString("\nformat=")
	b.WriteString(string(c.Format))
	b.WriteString("\nheaders=")
	b.WriteString(strings.Join(esc, "|"))
	b.WriteString("\ntype_mask=")
	b.WriteString(strings.Join(mask, "|"))
	b.WriteString("\n")
	return b.String()
}

var headerStripper = strings.NewReplacer(" ", "", "_", "", "-", "", ".", "")

// NormalizeHeader lowercases h and removes spaces, underscores, hyphens and dots.
func NormalizeHeader(h string) string {
	return headerStripper.Replace(strings.ToLower(h))
}

// HashBytes returns the hex blake3-256 digest of b.
func HashBytes(b []byte) string {
	sum := blake3.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// Sign computes both hashes of c.
func Sign(c model.SignatureComponents) model.Signature {
	return model.Signature{
		Hash:       HashBytes([]byte(Serialize(&c))),
		Relaxed:    HashBytes([]byte(SerializeRelaxed(&c))),
		Components: c,
	}
}

// binarySignature short-circuits files that are not tabular.
func binarySignature(c model.SignatureComponents, ext string, magic []byte) model.Signature {
	h := HashBytes([]byte("BINARY:" + ext + string(magic)))
	return model.Signature{Hash: h, Relaxed: h, Components: c}
}

package fetcher

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestXMLReader_Records(t *testing.T) {
	input := `<?xml version="1.0"?>
<rows xmlns="urn:x">
  <row id="1"><name>Alice</name><addr zip="10001"><city>NYC</city></addr></row>
  <row id="2"><name></name></row>
  <!-- comment -->
  <row>3</row>
</rows>`
	r := NewXMLReader(strings.NewReader(input), false)
	recs := drainKeyed(t, r)
	require.Len(t, recs, 3)
	assert.Equal(t, map[string]string{
		"@id":       "1",
		"name":      "Alice",
		"addr.@zip": "10001",
		"addr.city": "NYC",
	}, recs[0])
	assert.Equal(t, map[string]string{"@id": "2", "name": ""}, recs[1])
	assert.Equal(t, map[string]string{"value": "3"}, recs[2])
}

func TestXMLReader_Charset(t *testing.T) {
	input := "<?xml version=\"1.0\" encoding=\"ISO-8859-1\"?><r><i><c>caf\xe9</c></i></r>"
	recs := drainKeyed(t, NewXMLReader(strings.NewReader(input), false))
	require.Len(t, recs, 1)
	assert.Equal(t, "café", recs[0]["c"])
}

func TestXMLReader_BadCharset(t *testing.T) {
	input := `<?xml version="1.0" encoding="x-made-up"?><r><i>1</i></r>`
	_, err := NewXMLReader(strings.NewReader(input), false).Next()
	require.Error(t, err)
}

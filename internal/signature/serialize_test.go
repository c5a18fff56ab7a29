package signature

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/schemaproof/internal/model"
)

func TestSerialize(t *testing.T) {
	c := model.SignatureComponents{
		ColumnCount: 2,
		Delimiter:   "\t",
		Encoding:    "utf-8",
		Format:      model.FormatCSV,
		Headers:     []string{"a|b", `c\d`},
		TypeMask:    []model.PrimitiveType{model.TypeInt64, model.TypeDateSlashUS},
	}
	assert.Equal(t,
		"column_count=2\ndelimiter=\\t\nencoding=utf-8\nformat=csv\nheaders=a\\|b|c\\\\d\ntype_mask=Int64|Date(SlashUs)\n",
		Serialize(&c))
}

func TestSerialize_IgnoresUnserializedFields(t *testing.T) {
	a := model.SignatureComponents{ColumnCount: 1, Format: model.FormatJSON, Headers: []string{"id"}, TypeMask: []model.PrimitiveType{model.TypeInt64}}
	b := a
	b.ContentHash = "ffff"
	b.DataRows = 99
	b.Truncated = true
	b.HasAmbiguousDates = true
	assert.Equal(t, Sign(a).Hash, Sign(b).Hash)
}

func TestSerializeRelaxed(t *testing.T) {
	c := model.SignatureComponents{
		ColumnCount: 3,
		Delimiter:   ",",
		Encoding:    "utf-8",
		Format:      model.FormatCSV,
		Headers:     []string{"Order-Date", "Total Amount", "id"},
		TypeMask:    []model.PrimitiveType{model.TypeDateSlashEU, model.TypeFloat64, model.TypeBoolean},
	}
	assert.Equal(t,
		"column_count=3\ndelimiter=,\nencoding=utf-8\nformat=csv\nheaders=id|orderdate|totalamount\ntype_mask=Numeric|Date|Numeric\n",
		SerializeRelaxed(&c))
}

func TestSerializeRelaxed_EmptyMask(t *testing.T) {
	c := model.SignatureComponents{ColumnCount: 1, Format: model.FormatCSV, Headers: []string{"A"}, TypeMask: []model.PrimitiveType{}}
	assert.Equal(t, "column_count=1\ndelimiter=\nencoding=\nformat=csv\nheaders=a\ntype_mask=\n", SerializeRelaxed(&c))
}

func TestNormalizeHeader(t *testing.T) {
	tests := map[string]string{
		"Amount":        "amount",
		"order_id":      "orderid",
		"Order ID":      "orderid",
		"order-id":      "orderid",
		"order.id":      "orderid",
		"ÉTAT":          "état",
		"already_lower": "alreadylower",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeHeader(in), in)
	}
}

func TestHashBytes(t *testing.T) {
	h := HashBytes([]byte("abc"))
	assert.Len(t, h, 64)
	assert.Equal(t, "6437b3ac38465133ffb63b75273a8db548c558465d79db03fd359c6cd5bd9d85", h)
}

package outlier

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/sells-group/schemaproof/internal/fetcher"
	"github.com/sells-group/schemaproof/internal/model"
	"github.com/sells-group/schemaproof/internal/signature"
)

func csvSig(headerless bool, cols ...model.Column) *model.Signature {
	for i := range cols {
		cols[i].Index = i
	}
	return &model.Signature{Components: model.SignatureComponents{
		Format:     model.FormatCSV,
		Encoding:   "utf-8",
		Delimiter:  ",",
		Columns:    cols,
		Headerless: headerless,
	}}
}

func scan(t *testing.T, data string, sig *model.Signature, opts Options) *Result {
	t.Helper()
	res, err := NewScanner(nil, opts).Scan(context.Background(), fetcher.BytesSource("f.csv", []byte(data)), sig)
	require.NoError(t, err)
	return res
}

func TestScan_CoercionFail(t *testing.T) {
	sig := csvSig(false,
		model.Column{Name: "id", Type: model.TypeInt64},
		model.Column{Name: "amount", Type: model.TypeInt64},
	)
	res := scan(t, "id,amount\n1,100\n2,200\n3,VOID\n4,400", sig, Options{})

	require.Len(t, res.Outliers, 1)
	assert.Equal(t, model.OutlierReport{
		RowIndex:    3,
		ColumnIndex: 1,
		Column:      "amount",
		Expected:    model.TypeInt64,
		Actual:      model.TypeString,
		Value:       "VOID",
		Deviation:   model.DeviationCoercionFail,
		Severity:    model.SeverityHigh,
	}, res.Outliers[0])
	assert.Equal(t, int64(1), res.Total)
	assert.Equal(t, int64(4), res.RowsScanned)
	assert.False(t, res.Capped)
}

func TestScan_Classes(t *testing.T) {
	sig := csvSig(false,
		model.Column{Name: "qty", Type: model.TypeInt64},
		model.Column{Name: "day", Type: model.TypeDateISO},
		model.Column{Name: "note", Type: model.TypeString},
	)
	data := "qty,day,note\n" +
		"10,2024-01-01,a\n" +
		"2.5,2024-01-02T10:00:00,b\n" +
		",,\n" +
		"x,2024-01-03,c\n"

	res := scan(t, data, sig, Options{})
	require.Len(t, res.Outliers, 3)
	assert.Equal(t, model.DeviationCoercionFail, res.Outliers[0].Deviation)
	assert.Equal(t, int64(4), res.Outliers[0].RowIndex)
	assert.Equal(t, model.DeviationWidening, res.Outliers[1].Deviation)
	assert.Equal(t, int64(2), res.Outliers[1].RowIndex)
	assert.Equal(t, 0, res.Outliers[1].ColumnIndex)
	assert.Equal(t, model.DeviationWidening, res.Outliers[2].Deviation)
	assert.Equal(t, "day", res.Outliers[2].Column)
	assert.Equal(t, model.TypeDateTime, res.Outliers[2].Actual)

	strict := scan(t, data, sig, Options{StrictNulls: true})
	require.Len(t, strict.Outliers, 6)
	assert.Equal(t, model.DeviationNullable, strict.Outliers[1].Deviation)
	assert.Equal(t, model.SeverityMedium, strict.Outliers[1].Severity)
	assert.Equal(t, int64(3), strict.Outliers[1].RowIndex)
}

func TestScan_NullableColumnsAllowNulls(t *testing.T) {
	sig := csvSig(false,
		model.Column{Name: "a", Type: model.TypeInt64, Nullable: true},
		model.Column{Name: "b", Type: model.TypeUnknown},
	)
	res := scan(t, "a,b\n,\n10,\n", sig, Options{StrictNulls: true})
	assert.Empty(t, res.Outliers)
}

func TestScan_TopNAndCap(t *testing.T) {
	sig := csvSig(false, model.Column{Name: "n", Type: model.TypeInt64})
	var b strings.Builder
	b.WriteString("n\n")
	for i := range 20 {
		fmt.Fprintf(&b, "bad%d\n", i)
	}

	res := scan(t, b.String(), sig, Options{TopN: 3})
	assert.Len(t, res.Outliers, 3)
	assert.Equal(t, int64(20), res.Total)
	assert.Equal(t, int64(1), res.Outliers[0].RowIndex)

	res = scan(t, b.String(), sig, Options{Cap: 5})
	require.Len(t, res.Outliers, 6)
	assert.True(t, res.Capped)
	assert.Equal(t, int64(5), res.Total)
	last := res.Outliers[5]
	assert.Equal(t, model.DeviationTruncated, last.Deviation)
	assert.Equal(t, int64(6), last.RowIndex)
	assert.Equal(t, int64(6), res.RowsScanned)
}

func TestScan_Headerless(t *testing.T) {
	sig := csvSig(true, model.Column{Name: "col_0", Type: model.TypeInt64})
	res := scan(t, "10\n20\nx\n", sig, Options{})
	require.Len(t, res.Outliers, 1)
	assert.Equal(t, int64(3), res.Outliers[0].RowIndex)
}

func TestScan_RaggedAndTruncated(t *testing.T) {
	sig := csvSig(false,
		model.Column{Name: "a", Type: model.TypeInt64},
		model.Column{Name: "b", Type: model.TypeInt64},
	)
	res := scan(t, "a,b\n10,20,30\n40,50\n60", sig, Options{})
	assert.Equal(t, int64(1), res.Warnings.RaggedRows)
	assert.True(t, res.Warnings.Truncated)
	assert.Equal(t, int64(2), res.RowsScanned)
}

func TestScan_Keyed(t *testing.T) {
	sig := &model.Signature{Components: model.SignatureComponents{
		Format:   model.FormatJSON,
		Encoding: "utf-8",
		Columns: []model.Column{
			{Name: "id", Index: 0, Type: model.TypeInt64},
			{Name: "v", Index: 1, Type: model.TypeString, Nullable: true},
		},
	}}
	src := fetcher.BytesSource("r.json", []byte(`[{"id":10,"v":"a"},{"id":"x"},{"id":30,"extra":1}]`))
	res, err := NewScanner(nil, Options{}).Scan(context.Background(), src, sig)
	require.NoError(t, err)
	require.Len(t, res.Outliers, 1)
	assert.Equal(t, int64(2), res.Outliers[0].RowIndex)
	assert.Equal(t, "id", res.Outliers[0].Column)
	assert.Equal(t, int64(1), res.Warnings.UnknownKeys)
}

func TestScan_ValueClipped(t *testing.T) {
	sig := csvSig(false, model.Column{Name: "n", Type: model.TypeInt64})
	long := strings.Repeat("x", 5000)
	res := scan(t, "n\n1\n"+long+"\n", sig, Options{})
	require.Len(t, res.Outliers, 1)
	assert.Equal(t, long[:MaxValueBytes], res.Outliers[0].Value)

	// 99 ASCII bytes then a 2-byte rune straddling the limit.
	mixed := strings.Repeat("a", 99) + "é" + "tail"
	res = scan(t, "n\n"+mixed+"\n", sig, Options{})
	require.Len(t, res.Outliers, 1)
	assert.Equal(t, strings.Repeat("a", 99), res.Outliers[0].Value)
	assert.True(t, utf8.ValidString(res.Outliers[0].Value))
}

func TestClipValue(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"short", "VOID", "VOID"},
		{"exact", strings.Repeat("b", 100), strings.Repeat("b", 100)},
		{"long", strings.Repeat("b", 101), strings.Repeat("b", 100)},
		{"rune boundary", strings.Repeat("b", 98) + "日本", strings.Repeat("b", 98)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, clipValue(tt.in))
		})
	}
}

func TestScan_KeyedHeaderOverrides(t *testing.T) {
	src := fetcher.BytesSource("r.json", []byte(`[{"id":10},{"id":20},{"id":30}]`))
	sigRes, err := signature.NewComputer(nil).Compute(context.Background(), src, signature.Options{HeaderOverrides: []string{"ident"}})
	require.NoError(t, err)
	sig := sigRes.Signature
	require.Len(t, sig.Components.Columns, 1)
	sig.Components.Columns[0].Type = model.TypeBoolean

	res, err := NewScanner(nil, Options{}).Scan(context.Background(), src, &sig)
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.Total)
	assert.Zero(t, res.Warnings.UnknownKeys)
	assert.Equal(t, "ident", res.Outliers[0].Column)
}

func TestScan_AfterCompute(t *testing.T) {
	src := fetcher.BytesSource("clean.csv", []byte("# export\nid,amount\n10,1.5\n20,2\n"))
	sigRes, err := signature.NewComputer(nil).Compute(context.Background(), src, signature.Options{})
	require.NoError(t, err)

	res, err := NewScanner(nil, Options{}).Scan(context.Background(), src, &sigRes.Signature)
	require.NoError(t, err)
	assert.Empty(t, res.Outliers)
	assert.Equal(t, int64(2), res.RowsScanned)
}

func TestScan_Binary(t *testing.T) {
	sig := &model.Signature{Components: model.SignatureComponents{Format: model.FormatBinary}}
	_, err := NewScanner(nil, Options{}).Scan(context.Background(), fetcher.BytesSource("x.png", nil), sig)
	require.Error(t, err)
}

func TestScan_Cancelled(t *testing.T) {
	defer goleak.VerifyNone(t)

	sig := csvSig(false, model.Column{Name: "n", Type: model.TypeInt64})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := NewScanner(nil, Options{}).Scan(ctx, fetcher.BytesSource("f.csv", []byte("n\n1\n2\n")), sig)
	require.Error(t, err)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, context.Canceled)
}

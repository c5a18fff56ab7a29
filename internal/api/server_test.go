package api

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/schemaproof/internal/drift"
	"github.com/sells-group/schemaproof/internal/model"
	"github.com/sells-group/schemaproof/internal/signature"
	"github.com/sells-group/schemaproof/internal/solver"
)

func newTestServer(t *testing.T, opts Options) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(New(nil, drift.NewDetector(drift.NewMemoryStore()), opts).Router())
	t.Cleanup(srv.Close)
	return srv
}

func post(t *testing.T, url, contentType string, body []byte) *http.Response {
	t.Helper()
	resp, err := http.Post(url, contentType, bytes.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() }) //nolint:errcheck
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, Options{})

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.Equal(t, "ok", decode[map[string]string](t, resp)["status"])
}

func TestSignature(t *testing.T) {
	srv := newTestServer(t, Options{})

	resp := post(t, srv.URL+"/v1/signature?name=ledger.csv", "text/csv",
		[]byte("id,amount\n1,100\n2,250.5\n"))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	res := decode[signature.Result](t, resp)
	c := res.Signature.Components
	assert.Equal(t, model.FormatCSV, c.Format)
	assert.Equal(t, []string{"id", "amount"}, c.Headers)
	assert.Equal(t, []model.PrimitiveType{model.TypeInt64, model.TypeFloat64}, c.TypeMask)
	assert.NotEmpty(t, res.Signature.Hash)
}

func TestSignature_DateHint(t *testing.T) {
	srv := newTestServer(t, Options{})
	data := []byte("booked\n03/04/2024\n05/06/2024\n")

	res := decode[signature.Result](t, post(t, srv.URL+"/v1/signature?name=a.csv&date_format=eu", "text/csv", data))
	assert.Equal(t, []model.PrimitiveType{model.TypeDateSlashEU}, res.Signature.Components.TypeMask)

	resp := post(t, srv.URL+"/v1/signature?name=a.csv&date_format=iso8601", "text/csv", data)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "BAD_OPTION", decode[errorBody](t, resp).Code)
}

func TestSignature_Errors(t *testing.T) {
	srv := newTestServer(t, Options{MaxBodyBytes: 64})

	tests := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{"empty", "", http.StatusUnprocessableEntity, "FILE_EMPTY"},
		{"whitespace", "  \n\n", http.StatusUnprocessableEntity, "FILE_EMPTY"},
		{"too large", strings.Repeat("a,b\n", 100), http.StatusRequestEntityTooLarge, "BODY_TOO_LARGE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := post(t, srv.URL+"/v1/signature?name=x.csv", "text/csv", []byte(tt.body))
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, tt.code, decode[errorBody](t, resp).Code)
		})
	}
}

func TestOutliers(t *testing.T) {
	srv := newTestServer(t, Options{})

	var b strings.Builder
	b.WriteString("id,amount\n")
	for i := range 40 {
		if i == 12 {
			b.WriteString("13,VOID\n")
			continue
		}
		b.WriteString("1,100\n")
	}

	resp := post(t, srv.URL+"/v1/outliers?name=ledger.csv", "text/csv", []byte(b.String()))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Signature model.Signature       `json:"signature"`
		Outliers  []model.OutlierReport `json:"outliers"`
		Total     int64                 `json:"total"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, model.TypeInt64, out.Signature.Components.TypeMask[1])
	assert.Equal(t, int64(1), out.Total)
	require.Len(t, out.Outliers, 1)
	assert.Equal(t, "VOID", out.Outliers[0].Value)
}

func TestDrift(t *testing.T) {
	srv := newTestServer(t, Options{})
	url := srv.URL + "/v1/drift/vendor-feed?name=feed.csv"

	first := decode[model.DriftResult](t, post(t, url, "text/csv", []byte("id,amount\n1,100\n")))
	assert.False(t, first.Drift)
	assert.True(t, first.Record.IsCurrent)

	same := decode[model.DriftResult](t, post(t, url, "text/csv", []byte("id,amount\n2,300\n")))
	assert.False(t, same.Drift)
	assert.Equal(t, first.Record.ID, same.Record.ID)

	changed := decode[model.DriftResult](t, post(t, url, "text/csv", []byte("id,amount,region\n1,100,west\n")))
	require.True(t, changed.Drift)
	require.NotNil(t, changed.Alert)
	assert.Equal(t, []string{"region"}, changed.Alert.Diff.AddedHeaders)
	assert.Equal(t, first.Record.SignatureHash, changed.Alert.PreviousSignature)

	resp, err := http.Get(srv.URL + "/v1/drift/vendor-feed/history")
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck
	hist := decode[map[string][]model.DriftRecord](t, resp)["records"]
	require.Len(t, hist, 2)
	assert.True(t, hist[0].IsCurrent)
	assert.False(t, hist[1].IsCurrent)
}

func TestDrift_NoStore(t *testing.T) {
	srv := httptest.NewServer(New(nil, nil, Options{}).Router())
	defer srv.Close()

	resp := post(t, srv.URL+"/v1/drift/x?name=a.csv", "text/csv", []byte("a\n1\n"))
	assert.Equal(t, http.StatusNotImplemented, resp.StatusCode)
}

func multipartBody(t *testing.T, files ...[2]string) (string, []byte) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, f := range files {
		w, err := mw.CreateFormFile("file", f[0])
		require.NoError(t, err)
		_, err = w.Write([]byte(f[1]))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return mw.FormDataContentType(), buf.Bytes()
}

func TestSolve(t *testing.T) {
	srv := newTestServer(t, Options{Batch: solver.DefaultBatchOptions()})

	ct, body := multipartBody(t,
		[2]string{"jan.csv", "id,booked\n10,03/04/2024\n"},
		[2]string{"empty.csv", ""},
		[2]string{"mar.csv", "id,booked\n13,25/03/2024\n"},
	)
	resp := post(t, srv.URL+"/v1/solve", ct, body)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	res := decode[solver.BatchResult](t, resp)
	assert.Equal(t, 3, res.FilesConsumed)
	assert.Equal(t, []string{"empty.csv"}, res.FilesSkipped)

	require.Len(t, res.Columns, 2)
	booked := res.Columns[0]
	assert.Equal(t, model.TypeDateSlashEU, booked.Type)

	var proof *model.EliminationEvidence
	for i := range booked.Evidence {
		if booked.Evidence[i].Eliminated == "Date:us" {
			proof = &booked.Evidence[i]
		}
	}
	require.NotNil(t, proof)
	assert.Equal(t, "mar.csv", proof.FilePath)
}

func TestSolve_NoFiles(t *testing.T) {
	srv := newTestServer(t, Options{})

	resp := post(t, srv.URL+"/v1/solve", "text/csv", []byte("a\n1\n"))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	ct, body := multipartBody(t)
	resp = post(t, srv.URL+"/v1/solve", ct, body)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "NO_FILES", decode[errorBody](t, resp).Code)
}

func TestCORS(t *testing.T) {
	srv := newTestServer(t, Options{CORSOrigins: []string{"https://app.example.com"}})

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/v1/signature", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck
	assert.Equal(t, "https://app.example.com", resp.Header.Get("Access-Control-Allow-Origin"))
}

package proxy

import (
	"archive/zip"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/gigapi/gigapi-explorer/core"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTransport struct {
	lastReq *core.Request
	resp    *core.Response
	err     error
}

func (f *fakeTransport) ListTables(context.Context) ([]string, error) {
	return []string{"nebula.test"}, f.err
}

func (f *fakeTransport) GetTableState(_ context.Context, table string) (*core.TableSchema, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &core.TableSchema{RowCount: 10, Dimensions: []string{"_time_", "country"}, Metrics: []string{"value"}}, nil
}

func (f *fakeTransport) RunQuery(_ context.Context, req *core.Request) (*core.Response, error) {
	f.lastReq = req
	return f.resp, f.err
}

func (f *fakeTransport) Close() error { return nil }

func newTestServer(tr core.Transport) *httptest.Server {
	ui := afero.NewMemMapFs()
	afero.WriteFile(ui, "/index.html", []byte("<html>explorer</html>"), 0o644)
	afero.WriteFile(ui, "/app.js", []byte("console.log(1)"), 0o644)

	s := &Server{Transport: tr, UIFS: ui, AuthHeader: "X-Forwarded-User"}
	return httptest.NewServer(s.Handler())
}

func get(t *testing.T, srv *httptest.Server, query url.Values, header http.Header) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, srv.URL+"/?"+query.Encode(), nil)
	require.NoError(t, err)
	for k, v := range header {
		req.Header[k] = v
	}
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return res, string(body)
}

func TestTablesAndState(t *testing.T) {
	srv := newTestServer(&fakeTransport{})
	defer srv.Close()

	res, body := get(t, srv, url.Values{"api": {"tables"}}, nil)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.JSONEq(t, `["nebula.test"]`, body)
	assert.Equal(t, "*", res.Header.Get("Access-Control-Allow-Origin"))

	res, body = get(t, srv, url.Values{"api": {"state"}, "table": {"nebula.test"}}, nil)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	var ts core.TableSchema
	require.NoError(t, json.Unmarshal([]byte(body), &ts))
	assert.Equal(t, int64(10), ts.RowCount)
	assert.Equal(t, []string{"country", "value"}, ts.Columns())

	res, _ = get(t, srv, url.Values{"api": {"state"}}, nil)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestBackendFailure(t *testing.T) {
	srv := newTestServer(&fakeTransport{err: errors.New("connection refused")})
	defer srv.Close()

	res, body := get(t, srv, url.Values{"api": {"tables"}}, nil)
	assert.Equal(t, http.StatusBadGateway, res.StatusCode)
	assert.Contains(t, body, "connection refused")
}

func TestUser(t *testing.T) {
	srv := newTestServer(&fakeTransport{})
	defer srv.Close()

	_, body := get(t, srv, url.Values{"api": {"user"}}, http.Header{"X-Forwarded-User": {"ann"}})
	assert.JSONEq(t, `{"auth":true,"user":"ann"}`, body)

	_, body = get(t, srv, url.Values{"api": {"user"}}, nil)
	assert.JSONEq(t, `{"auth":false}`, body)
}

func TestQuery(t *testing.T) {
	tr := &fakeTransport{resp: &core.Response{Duration: 9, Data: []byte(`[{"country":"us","value.count":3}]`)}}
	srv := newTestServer(tr)
	defer srv.Close()

	raw := `{"table":"nebula.test","start":1548979200000,"end":1548982800000,"keys":["country"],"display":1,"metrics":"value","rollup":0,"sort":1,"limit":10}`
	res, body := get(t, srv, url.Values{"api": {"query"}, "query": {raw}}, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, body)

	var resp core.Response
	require.NoError(t, json.Unmarshal([]byte(body), &resp))
	assert.Equal(t, int64(9), resp.Duration)
	assert.Equal(t, `[{"country":"us","value.count":3}]`, string(resp.Data))

	require.NotNil(t, tr.lastReq)
	assert.Equal(t, int64(1548979200), tr.lastReq.Start)
	assert.Equal(t, []string{"country"}, tr.lastReq.Dimensions)
	assert.Equal(t, 10, tr.lastReq.Top)
}

func TestQueryNDJson(t *testing.T) {
	tr := &fakeTransport{resp: &core.Response{Data: []byte(`[{"a":1},{"a":2}]`)}}
	srv := newTestServer(tr)
	defer srv.Close()

	raw := `{"table":"t","start":1000,"end":2000,"keys":["a"],"display":1}`
	res, body := get(t, srv, url.Values{"api": {"query"}, "query": {raw}, "format": {"ndjson"}}, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "application/x-ndjson", res.Header.Get("Content-Type"))
	assert.Equal(t, "{\"a\":1}\n{\"a\":2}\n", body)

	tr.resp = &core.Response{Error: "boom"}
	res, body = get(t, srv, url.Values{"api": {"query"}, "query": {raw}, "format": {"ndjson"}}, nil)
	assert.Equal(t, http.StatusBadGateway, res.StatusCode)
	assert.Contains(t, body, "boom")
}

func TestQueryRejected(t *testing.T) {
	tr := &fakeTransport{}
	srv := newTestServer(tr)
	defer srv.Close()

	tests := []struct {
		name  string
		query string
		want  string
	}{
		{name: "Not JSON", query: "{", want: "parse state"},
		{name: "Samples without keys", query: `{"table":"t","start":1000,"end":2000,"display":0}`, want: "Please specify dimensions for samples"},
		{name: "Too many buckets", query: `{"table":"t","start":0,"end":3600000,"display":2,"window":1}`, want: "Too many data points to return 3600"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, body := get(t, srv, url.Values{"api": {"query"}, "query": {tt.query}}, nil)
			assert.Equal(t, http.StatusBadRequest, res.StatusCode)
			assert.Contains(t, body, tt.want)
		})
	}
	assert.Nil(t, tr.lastReq)

	res, _ := get(t, srv, url.Values{"api": {"query"}}, nil)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	res, _ = get(t, srv, url.Values{"api": {"query"}, "query": {"{}"}, "format": {"xml"}}, nil)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	res, _ = get(t, srv, url.Values{"api": {"bogus"}}, nil)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestUIHealthAndMetrics(t *testing.T) {
	srv := newTestServer(&fakeTransport{})
	defer srv.Close()

	res, body := get(t, srv, url.Values{}, nil)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, body, "explorer")

	res, err := http.Get(srv.URL + "/app.js")
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)

	res, err = http.Get(srv.URL + "/missing.css")
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusNotFound, res.StatusCode)

	res, err = http.Get(srv.URL + "/health")
	require.NoError(t, err)
	b, _ := io.ReadAll(res.Body)
	res.Body.Close()
	assert.Contains(t, string(b), `"status":"ok"`)

	res, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	b, _ = io.ReadAll(res.Body)
	res.Body.Close()
	assert.Contains(t, string(b), "explorer_http_requests_total")
}

func TestDisableUI(t *testing.T) {
	s := &Server{Transport: &fakeTransport{}, DisableUI: true, UIFS: afero.NewMemMapFs()}
	rec := httptest.NewRecorder()
	s.HandleRoot(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOpenUI(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("dir ui"), 0o644))

	fs, err := OpenUI(dir)
	require.NoError(t, err)
	b, err := afero.ReadFile(fs, "/index.html")
	require.NoError(t, err)
	assert.Equal(t, "dir ui", string(b))

	archive := filepath.Join(t.TempDir(), "release.zip")
	f, err := os.Create(archive)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	w, err := zw.Create("dist/index.html")
	require.NoError(t, err)
	w.Write([]byte("zip ui"))
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	fs, err = OpenUI(archive)
	require.NoError(t, err)
	b, err = afero.ReadFile(fs, "/index.html")
	require.NoError(t, err)
	assert.Equal(t, "zip ui", string(b))

	_, err = OpenUI(filepath.Join(dir, "nope"))
	assert.Error(t, err)
}

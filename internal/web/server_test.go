package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/bomimport/internal/attachment"
	"github.com/JonMunkholm/bomimport/internal/config"
	"github.com/JonMunkholm/bomimport/internal/core"
	"github.com/JonMunkholm/bomimport/internal/sheet"
	"github.com/JonMunkholm/bomimport/internal/store/memory"
)

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

func testConfig(t *testing.T, env map[string]string) *config.Config {
	t.Helper()
	base := map[string]string{
		"DATABASE_URL":       "postgres://localhost/test",
		"RATE_LIMIT_ENABLED": "false",
	}
	for k, v := range env {
		base[k] = v
	}
	cfg, err := config.LoadFrom(func(k string) (string, bool) {
		v, ok := base[k]
		return v, ok
	})
	require.NoError(t, err)
	return cfg
}

type testServer struct {
	*Server
	store *memory.Store
}

func newTestServer(t *testing.T, env map[string]string, health Pinger) *testServer {
	t.Helper()
	cfg := testConfig(t, env)

	st := memory.New()
	files := attachment.NewMemoryStore()
	svc, err := core.NewService(core.Deps{
		Rows:        sheet.NewReader(files, cfg.Import.MaxFileSize),
		Attachments: files,
		Catalog:     st,
		Trees:       st,
		Requests:    st,
	}, core.Options{Company: "Acme", Currency: "USD"})
	require.NoError(t, err)

	srv := NewServer(svc, health, cfg)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return &testServer{Server: srv, store: st}
}

func (ts *testServer) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	ts.Router().ServeHTTP(rec, req)
	return rec
}

func uploadRequest(t *testing.T, fileName, body string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", fileName)
	require.NoError(t, err)
	_, err = io.WriteString(fw, body)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/requests", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

// createRequest uploads body and returns the new request id.
func (ts *testServer) createRequest(t *testing.T, body string) string {
	t.Helper()
	rec := ts.do(t, uploadRequest(t, "parts.csv", body))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var req core.Request
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &req))
	assert.Equal(t, "/api/requests/"+req.ID, rec.Header().Get("Location"))
	return req.ID
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return resp
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, nil, stubPinger{})
	rec := ts.do(t, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	ts = newTestServer(t, nil, stubPinger{err: errors.New("dial tcp: connection refused")})
	rec = ts.do(t, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "Unable to connect to database")
}

func TestItemImportFlow(t *testing.T) {
	ts := newTestServer(t, nil, nil)
	id := ts.createRequest(t, "Number,Part Type\nBRK-1,Hardware\n,Hardware\n")

	rec := ts.do(t, httptest.NewRequest(http.MethodPost, "/api/requests/"+id+"/items", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result core.ImportResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "Created: 1, Duplicates: 0, Skipped: 1, Errors: 0.", result.Summary)

	rec = ts.do(t, httptest.NewRequest(http.MethodGet, "/api/requests/"+id, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var req core.Request
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &req))
	assert.Equal(t, result.Log, req.ItemLog)

	rec = ts.do(t, httptest.NewRequest(http.MethodGet, "/api/requests/"+id+"/log.csv", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, result.Summary, rec.Header().Get("X-Import-Summary"))
	assert.Equal(t,
		"row,item_code,outcome,reason\n2,BRK-1,created,\n3,,skipped,missing item code\n",
		rec.Body.String())

	rec = ts.do(t, httptest.NewRequest(http.MethodGet, "/api/requests/"+id+"/log.csv?kind=bom", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "REQ002", decodeError(t, rec).Code)

	rec = ts.do(t, httptest.NewRequest(http.MethodGet, "/api/requests/"+id+"/log.csv?kind=audit", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTreeImportFlow(t *testing.T) {
	ts := newTestServer(t, nil, nil)
	ts.store.AddItem(core.Item{Code: "ASM-1", StockUOM: "Nos"}, 0)
	ts.store.AddItem(core.Item{Code: "P-1", StockUOM: "Nos"}, 2.5)
	id := ts.createRequest(t, "Level,Number,Qty\n1,ASM-1,1\n2,P-1,4\n2,NOPE,1\n")

	rec := ts.do(t, httptest.NewRequest(http.MethodGet, "/api/trees/ASM-1/latest-bom", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "BOM002", decodeError(t, rec).Code)

	rec = ts.do(t, httptest.NewRequest(http.MethodPost, "/api/requests/"+id+"/bom-tree/preview", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"bom_tree":"ASM-1"`)
	assert.Empty(t, ts.store.TreeNames())

	rec = ts.do(t, httptest.NewRequest(http.MethodPost, "/api/requests/"+id+"/bom-tree", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result core.ImportResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "Created BOM tree ASM-1. Items: 1, Skipped: 1, Errors: 0.", result.Summary)
	assert.Equal(t, "BOM-ASM-1-001", result.BOM)

	rec = ts.do(t, httptest.NewRequest(http.MethodGet, "/api/trees/ASM-1/latest-bom", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"bom_tree":"ASM-1","bom":"BOM-ASM-1-001"}`, rec.Body.String())

	rec = ts.do(t, httptest.NewRequest(http.MethodGet, "/api/requests/"+id+"/log.csv?kind=bom", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "row,item_code,outcome,reason\n4,NOPE,skipped,item not found\n", rec.Body.String())
}

func TestImportErrors(t *testing.T) {
	ts := newTestServer(t, nil, nil)

	rec := ts.do(t, httptest.NewRequest(http.MethodPost, "/api/requests/missing/items", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "REQ001", decodeError(t, rec).Code)

	id := ts.createRequest(t, "Level,Number\n1,NOPE\n")
	rec = ts.do(t, httptest.NewRequest(http.MethodPost, "/api/requests/"+id+"/bom-tree", nil))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, "BOM001", resp.Code)
	assert.Equal(t, "Root item NOPE not found. Please create the item first.", resp.Message)
}

func TestCreateRequestErrors(t *testing.T) {
	ts := newTestServer(t, nil, nil)

	rec := ts.do(t, uploadRequest(t, "parts.pdf", "%PDF"))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "FILE002", decodeError(t, rec).Code)

	req := httptest.NewRequest(http.MethodPost, "/api/requests", strings.NewReader("not multipart"))
	req.Header.Set("Content-Type", "text/plain")
	rec = ts.do(t, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateRequestTooLarge(t *testing.T) {
	ts := newTestServer(t, map[string]string{"IMPORT_MAX_FILE_SIZE": "16"}, nil)
	rec := ts.do(t, uploadRequest(t, "parts.csv", "Number\n"+strings.Repeat("A\n", 20)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, "FILE001", decodeError(t, rec).Code)
}

func TestAPIKeyRequired(t *testing.T) {
	ts := newTestServer(t, map[string]string{"REQUIRE_API_KEY": "true", "API_KEYS": "secret"}, nil)

	rec := ts.do(t, httptest.NewRequest(http.MethodGet, "/api/requests/x", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/requests/x", nil)
	req.Header.Set("X-API-Key", "secret")
	rec = ts.do(t, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t, nil, nil)
	ts.do(t, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	rec := ts.do(t, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `plm_http_requests_total{method="GET",route="/healthz",status="200"}`)
}

func TestRateLimit(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"RATE_LIMIT_ENABLED":             "true",
		"RATE_LIMIT_REQUESTS_PER_MINUTE": "2",
	}, nil)

	for i := 0; i < 2; i++ {
		rec := ts.do(t, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		require.Equal(t, http.StatusOK, rec.Code, "request %d", i)
	}
	rec := ts.do(t, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.Equal(t, "RATE001", decodeError(t, rec).Code)
}

func TestShutdownStopsRateLimiter(t *testing.T) {
	ts := newTestServer(t, map[string]string{"RATE_LIMIT_ENABLED": "true"}, nil)
	require.NotNil(t, ts.limiter)

	require.NoError(t, ts.Shutdown(context.Background()), "never started")
	require.NoError(t, ts.Shutdown(context.Background()), "second shutdown")

	select {
	case <-ts.limiter.done:
	case <-time.After(time.Second):
		t.Fatal("rate limiter cleanup loop still running after Shutdown")
	}
}

func TestRateLimiterEvictsStaleVisitors(t *testing.T) {
	rl := newRateLimiter(1, 10*time.Millisecond)
	defer rl.stop()

	require.True(t, rl.allow("10.0.0.1"))
	assert.False(t, rl.allow("10.0.0.1"))

	assert.Eventually(t, func() bool {
		rl.mu.Lock()
		defer rl.mu.Unlock()
		return len(rl.visitors) == 0
	}, time.Second, 5*time.Millisecond)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{core.ErrRequestNotFound, http.StatusNotFound},
		{core.ErrTooManyImports, http.StatusServiceUnavailable},
		{fmt.Errorf("x: %w", core.ErrMissingLevelColumn), http.StatusUnprocessableEntity},
		{errors.New("insert: duplicate key value"), http.StatusConflict},
		{errors.New("load attachment a/b.csv: attachment not found"), http.StatusNotFound},
		{errors.New("file too large: 10 bytes"), http.StatusRequestEntityTooLarge},
		{errors.New("read xlsx: zip: not a valid zip file"), http.StatusUnprocessableEntity},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{context.Canceled, statusClientClosed},
		{errors.New("dial tcp: connection refused"), http.StatusServiceUnavailable},
		{errors.New("something strange"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err, core.MapError(tt.err).Code))
		})
	}
}

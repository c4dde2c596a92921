package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brunobiangulo/contractgraph"
	"github.com/brunobiangulo/contractgraph/store"
)

type fakeService struct {
	runPath    string
	runOpts    contractgraph.RunOptions
	runErr     error
	summaryReq contractgraph.SummaryRequest
	summary    []byte
	summaryErr error
	panicOnRun bool
}

func (f *fakeService) Run(ctx context.Context, path string, opts contractgraph.RunOptions) (*contractgraph.RunResult, error) {
	if f.panicOnRun {
		panic("boom")
	}
	f.runPath, f.runOpts = path, opts
	if f.runErr != nil {
		return nil, f.runErr
	}
	return &contractgraph.RunResult{DocumentID: "nda", Imported: true}, nil
}

func (f *fakeService) Summarize(ctx context.Context, req contractgraph.SummaryRequest) ([]byte, error) {
	f.summaryReq = req
	return f.summary, f.summaryErr
}

func (f *fakeService) Status(ctx context.Context, limit int) (*contractgraph.Status, error) {
	return &contractgraph.Status{
		Stats:     &store.Stats{Documents: 1, Complete: 1},
		Documents: []store.Document{{DocumentID: "nda", Status: store.StatusComplete}},
	}, nil
}

func (f *fakeService) DocumentStatus(ctx context.Context, docID string) (*contractgraph.DocumentStatus, error) {
	if docID != "nda" {
		return nil, contractgraph.ErrDocumentNotFound
	}
	return &contractgraph.DocumentStatus{
		Document: &store.Document{DocumentID: "nda", Status: store.StatusComplete},
		Runs:     []store.StageRun{{ID: "r1", Stage: contractgraph.StageConvert, Status: store.StatusComplete}},
	}, nil
}

func newTestServer(t *testing.T, svc *fakeService, apiKey string, origins ...string) (http.Handler, string) {
	t.Helper()
	dir := t.TempDir()
	return newRouter(newHandler(svc, dir), apiKey, origins), dir
}

func do(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	h, _ := newTestServer(t, &fakeService{}, "secret")
	rec := do(h, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestAuth(t *testing.T) {
	h, _ := newTestServer(t, &fakeService{}, "secret")

	rec := do(h, httptest.NewRequest(http.MethodGet, "/documents", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/documents", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	assert.Equal(t, http.StatusUnauthorized, do(h, req).Code)

	req = httptest.NewRequest(http.MethodGet, "/documents", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec = do(h, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var st contractgraph.Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, 1, st.Stats.Documents)
	assert.Equal(t, "nda", st.Documents[0].DocumentID)
}

func TestCORSPreflight(t *testing.T) {
	h, _ := newTestServer(t, &fakeService{}, "secret", "http://localhost:5173")

	req := httptest.NewRequest(http.MethodOptions, "/documents", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec := do(h, req)

	assert.Less(t, rec.Code, 300, "preflight bypasses auth")
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestProcessJSONPath(t *testing.T) {
	svc := &fakeService{}
	h, dir := newTestServer(t, svc, "")
	pdf := filepath.Join(dir, "nda.pdf")
	require.NoError(t, os.WriteFile(pdf, []byte("%PDF"), 0o644))

	body := fmt.Sprintf(`{"path":%q,"method":"native","force":true}`, pdf)
	rec := do(h, httptest.NewRequest(http.MethodPost, "/process", bytes.NewBufferString(body)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, pdf, svc.runPath)
	assert.Equal(t, contractgraph.RunOptions{Method: "native", Force: true}, svc.runOpts)
	assert.Contains(t, rec.Body.String(), `"document_id":"nda"`)
}

func TestProcessValidation(t *testing.T) {
	h, dir := newTestServer(t, &fakeService{}, "")

	tests := []struct {
		name string
		body string
	}{
		{"bad json", `{`},
		{"no path", `{}`},
		{"missing file", `{"path":"/does/not/exist.pdf"}`},
		{"directory", fmt.Sprintf(`{"path":%q}`, dir)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(h, httptest.NewRequest(http.MethodPost, "/process", bytes.NewBufferString(tt.body)))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func multipartUpload(t *testing.T, filename string, fields map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	fw.Write([]byte("%PDF-1.4"))
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/process", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestProcessUpload(t *testing.T) {
	svc := &fakeService{}
	h, dir := newTestServer(t, svc, "")

	rec := do(h, multipartUpload(t, "../../evil/nda.pdf", map[string]string{"force": "true"}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	want, err := filepath.Abs(filepath.Join(dir, "uploads", "nda.pdf"))
	require.NoError(t, err)
	assert.Equal(t, want, svc.runPath)
	assert.True(t, svc.runOpts.Force)
	assert.FileExists(t, want)
}

func TestProcessUploadRejectsNonPDF(t *testing.T) {
	h, _ := newTestServer(t, &fakeService{}, "")
	rec := do(h, multipartUpload(t, "notes.docx", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProcessErrorStatus(t *testing.T) {
	svc := &fakeService{runErr: fmt.Errorf("extract: %w", contractgraph.ErrNoUsableInput)}
	h, dir := newTestServer(t, svc, "")
	pdf := filepath.Join(dir, "nda.pdf")
	require.NoError(t, os.WriteFile(pdf, []byte("%PDF"), 0o644))

	rec := do(h, httptest.NewRequest(http.MethodPost, "/process", bytes.NewBufferString(fmt.Sprintf(`{"path":%q}`, pdf))))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestSummary(t *testing.T) {
	svc := &fakeService{summary: []byte("# NDA\n")}
	h, dir := newTestServer(t, svc, "")

	rec := do(h, httptest.NewRequest(http.MethodGet, "/contracts/nda/summary", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "# NDA\n", rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/markdown")
	assert.Equal(t, contractgraph.SummaryRequest{DocumentID: "nda"}, svc.summaryReq)

	rec = do(h, httptest.NewRequest(http.MethodGet, "/contracts/nda/summary?source=json&format=html", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Equal(t, contractgraph.SummaryRequest{
		InputPath: filepath.Join(dir, "nda_enhanced.json"),
		HTML:      true,
	}, svc.summaryReq)
}

func TestSummaryErrors(t *testing.T) {
	svc := &fakeService{summaryErr: contractgraph.ErrContractNotFound}
	h, _ := newTestServer(t, svc, "")

	assert.Equal(t, http.StatusNotFound, do(h, httptest.NewRequest(http.MethodGet, "/contracts/nda/summary", nil)).Code)
	assert.Equal(t, http.StatusBadRequest, do(h, httptest.NewRequest(http.MethodGet, "/contracts/nda/summary?format=pdf", nil)).Code)
	assert.Equal(t, http.StatusBadRequest, do(h, httptest.NewRequest(http.MethodGet, "/contracts/nda/summary?source=s3", nil)).Code)
	assert.Equal(t, http.StatusBadRequest, do(h, httptest.NewRequest(http.MethodGet, "/contracts/..hidden/summary", nil)).Code)

	svc.summaryErr = contractgraph.ErrGraphUnavailable
	assert.Equal(t, http.StatusServiceUnavailable, do(h, httptest.NewRequest(http.MethodGet, "/contracts/nda/summary", nil)).Code)
}

func TestRecovery(t *testing.T) {
	h, dir := newTestServer(t, &fakeService{panicOnRun: true}, "")
	pdf := filepath.Join(dir, "nda.pdf")
	require.NoError(t, os.WriteFile(pdf, []byte("%PDF"), 0o644))

	rec := do(h, httptest.NewRequest(http.MethodPost, "/process", bytes.NewBufferString(fmt.Sprintf(`{"path":%q}`, pdf))))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestGetDocument(t *testing.T) {
	h, _ := newTestServer(t, &fakeService{}, "")

	rec := do(h, httptest.NewRequest(http.MethodGet, "/documents/nda", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var got contractgraph.DocumentStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, store.StatusComplete, got.Document.Status)
	require.Len(t, got.Runs, 1)
	assert.Equal(t, contractgraph.StageConvert, got.Runs[0].Stage)

	rec = do(h, httptest.NewRequest(http.MethodGet, "/documents/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

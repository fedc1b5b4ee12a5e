package web

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/JonMunkholm/sheetqr/internal/config"
	"github.com/JonMunkholm/sheetqr/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCSV = "name,link,sku\n" +
	"Acme,https://acme.example/a,A1\n" +
	"Acme,https://acme.example/b,A2\n" +
	"Beta,https://beta.example,B1\n" +
	",,\n" +
	"Gamma,,G1\n"

func newTestServer(t *testing.T, mutate func(*config.Config)) *Server {
	t.Helper()
	cfg := config.Default()
	cfg.Rate.Enabled = false
	if mutate != nil {
		mutate(cfg)
	}
	svc, err := core.NewService(core.ServiceOptions{
		MaxFileSize: cfg.Upload.MaxFileSize,
		MaxSessions: cfg.Session.MaxSessions,
		Workers:     2,
		DefaultRender: core.RenderSpec{
			ModuleSize: cfg.Render.ModuleSize,
			Border:     cfg.Render.Border,
		},
	})
	require.NoError(t, err)
	srv := NewServer(svc, cfg)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv
}

func do(t *testing.T, srv *Server, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func uploadRequest(t *testing.T, fileName, content string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", fileName)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/workbooks", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func upload(t *testing.T, srv *Server) core.SessionSummary {
	t.Helper()
	rec := do(t, srv, uploadRequest(t, "codes.csv", testCSV))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var sum core.SessionSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sum))
	return sum
}

func jsonRequest(method, target string, v any) *http.Request {
	b, _ := json.Marshal(v)
	req := httptest.NewRequest(method, target, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var er ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &er), rec.Body.String())
	return er
}

func TestIndex(t *testing.T) {
	srv := newTestServer(t, nil)
	rec := do(t, srv, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), `hx-post="/api/workbooks"`)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
}

func TestUploadWorkbook(t *testing.T) {
	srv := newTestServer(t, nil)
	sum := upload(t, srv)

	assert.NotEmpty(t, sum.ID)
	assert.Equal(t, "codes.csv", sum.FileName)
	require.Len(t, sum.Sheets, 1)
	sh := sum.Sheets[0]
	assert.Equal(t, "Sheet1", sh.Name)
	assert.Equal(t, 4, sh.Rows)
	assert.Equal(t, "link", sh.SuggestedURL)
	assert.False(t, sh.NeedsURLInput)

	rec := do(t, srv, httptest.NewRequest(http.MethodGet, "/api/workbooks/"+sum.ID, nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), sum.ID)

	rec = do(t, srv, httptest.NewRequest(http.MethodGet, "/api/workbooks", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), sum.ID)
}

func TestUploadWorkbook_Errors(t *testing.T) {
	srv := newTestServer(t, func(c *config.Config) { c.Upload.MaxFileSize = 64 })

	tests := []struct {
		name     string
		req      *http.Request
		wantCode int
		errCode  string
	}{
		{
			"no file",
			httptest.NewRequest(http.MethodPost, "/api/workbooks", strings.NewReader("")),
			http.StatusBadRequest, "FILE004",
		},
		{"unsupported format", uploadRequest(t, "report.pdf", "%PDF-1.4"), http.StatusUnsupportedMediaType, "FILE002"},
		{"header only", uploadRequest(t, "empty.csv", "a,b\n"), http.StatusUnprocessableEntity, "FILE005"},
		{"too large", uploadRequest(t, "big.csv", "name,link\n"+strings.Repeat("x,https://x.example\n", 20)), http.StatusRequestEntityTooLarge, "FILE001"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, srv, tt.req)
			assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			assert.Equal(t, tt.errCode, decodeError(t, rec).Code)
		})
	}
}

func TestPreviewSheet(t *testing.T) {
	srv := newTestServer(t, nil)
	sum := upload(t, srv)

	rec := do(t, srv, httptest.NewRequest(http.MethodGet, "/api/workbooks/"+sum.ID+"/sheets/Sheet1/preview?limit=2", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var p core.SheetPreview
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	assert.Equal(t, []string{"name", "link", "sku"}, p.Columns)
	assert.Len(t, p.Rows, 2)
	assert.Equal(t, 4, p.TotalRows)

	rec = do(t, srv, httptest.NewRequest(http.MethodGet, "/api/workbooks/"+sum.ID+"/sheets/"+url.PathEscape("No Such")+"/preview", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "SET003", decodeError(t, rec).Code)
}

func TestValidate(t *testing.T) {
	srv := newTestServer(t, nil)
	sum := upload(t, srv)
	target := "/api/workbooks/" + sum.ID + "/validate"

	rec := do(t, srv, jsonRequest(http.MethodPost, target, map[string]any{
		"filename": map[string]any{"url_column": "link", "filename_columns": []string{"name"}, "filename_separator": "_"},
	}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var vr validateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &vr))
	assert.True(t, vr.Valid)
	assert.Equal(t, 1, vr.Dropped)
	require.Len(t, vr.Filenames, 3)
	assert.Equal(t, "Acme.png", vr.Filenames[0].Filename)
	assert.Regexp(t, `^Acme_[0-9a-f]{8}\.png$`, vr.Filenames[1].Filename)

	rec = do(t, srv, jsonRequest(http.MethodPost, target, map[string]any{
		"filename": map[string]any{"url_column": "link", "filename_columns": []string{"name"}, "filename_separator": "|"},
	}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "SET001", decodeError(t, rec).Code)

	rec = do(t, srv, jsonRequest(http.MethodPost, target, map[string]any{
		"filename": map[string]any{"url_column": "link", "filename_columns": []string{"name"}},
		"render":   map[string]any{"module_size": 0, "border": 4},
	}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "SET002", decodeError(t, rec).Code)

	rec = do(t, srv, jsonRequest(http.MethodPost, target, map[string]any{"bogus": true}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "REQ001", decodeError(t, rec).Code)
}

func TestGenerateAndDownload(t *testing.T) {
	srv := newTestServer(t, nil)
	sum := upload(t, srv)
	base := "/api/workbooks/" + sum.ID

	rec := do(t, srv, httptest.NewRequest(http.MethodGet, base+"/archive", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "BAT003", decodeError(t, rec).Code)

	rec = do(t, srv, jsonRequest(http.MethodPost, base+"/generate", map[string]any{
		"filename": map[string]any{"url_column": "link", "filename_columns": []string{"name", "sku"}, "filename_separator": "-"},
		"render":   map[string]any{"module_size": 2, "border": 1, "output_resolution": 120},
	}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var gr generateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &gr))
	assert.Equal(t, 4, gr.Report.TotalRows)
	assert.Equal(t, 3, gr.Report.Generated)
	assert.Equal(t, 3, gr.Report.Packed)
	assert.Equal(t, 1, gr.Report.DroppedRows)
	assert.Equal(t, base+"/archive", gr.ArchiveURL)
	require.Len(t, gr.Preview, 3)
	assert.Equal(t, "Acme-A1.png", gr.Preview[0].Name)
	assert.Equal(t, base+"/codes/Acme-A1.png", gr.Preview[0].URL)

	rec = do(t, srv, httptest.NewRequest(http.MethodGet, base+"/archive", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/zip", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), `filename="qr_codes.zip"`)
	zr, err := zip.NewReader(bytes.NewReader(rec.Body.Bytes()), int64(rec.Body.Len()))
	require.NoError(t, err)
	names := make([]string, len(zr.File))
	for i, f := range zr.File {
		names[i] = f.Name
	}
	assert.Equal(t, []string{"Acme-A1.png", "Acme-A2.png", "Beta-B1.png"}, names)

	rec = do(t, srv, httptest.NewRequest(http.MethodGet, base+"/codes", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var codes []codeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &codes))
	assert.Len(t, codes, 3)

	rec = do(t, srv, httptest.NewRequest(http.MethodGet, base+"/codes/Beta-B1.png", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	img, err := png.Decode(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, 120, img.Bounds().Dx())

	rec = do(t, srv, httptest.NewRequest(http.MethodGet, base+"/codes/nope.png", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "BAT004", decodeError(t, rec).Code)

	rec = do(t, srv, httptest.NewRequest(http.MethodGet, base+"/report", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"generated":3`)
}

func TestGenerate_HTMXForm(t *testing.T) {
	srv := newTestServer(t, nil)
	sum := upload(t, srv)

	form := url.Values{
		"sheet":              {"Sheet1"},
		"url_column":         {"link"},
		"filename_columns":   {"name"},
		"filename_separator": {"_"},
		"module_size":        {"3"},
		"border":             {"2"},
		"output_resolution":  {"not a number"},
	}
	req := httptest.NewRequest(http.MethodPost, "/api/workbooks/"+sum.ID+"/generate", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("HX-Request", "true")

	rec := do(t, srv, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	body := rec.Body.String()
	assert.Contains(t, body, "<li>Generated: 3</li>")
	assert.Contains(t, body, "qr_codes.zip")
	assert.Equal(t, 3, strings.Count(body, "<img "))
}

func TestHTMXErrorFragment(t *testing.T) {
	srv := newTestServer(t, nil)
	req := jsonRequest(http.MethodPost, "/api/workbooks/missing/generate", map[string]any{})
	req.Header.Set("HX-Request", "true")

	rec := do(t, srv, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `class="alert alert-error"`)
	assert.Contains(t, rec.Body.String(), "BAT002")
}

func TestDeleteWorkbook(t *testing.T) {
	srv := newTestServer(t, nil)
	sum := upload(t, srv)

	rec := do(t, srv, httptest.NewRequest(http.MethodDelete, "/api/workbooks/"+sum.ID, nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, srv, httptest.NewRequest(http.MethodGet, "/api/workbooks/"+sum.ID, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "BAT002", decodeError(t, rec).Code)
}

func TestStatus(t *testing.T) {
	srv := newTestServer(t, nil)
	upload(t, srv)

	rec := do(t, srv, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var st statusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, "ok", st.Status)
	assert.Equal(t, 1, st.Sessions)
	assert.Equal(t, 0, st.Batches.Active)
	assert.Equal(t, "none", st.Storage)
}

func TestRateLimit(t *testing.T) {
	srv := newTestServer(t, func(c *config.Config) {
		c.Rate.Enabled = true
		c.Rate.RequestsPerMinute = 2
	})

	for i := 0; i < 2; i++ {
		rec := do(t, srv, httptest.NewRequest(http.MethodGet, "/api/status", nil))
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec := do(t, srv, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.Equal(t, "RATE001", decodeError(t, rec).Code)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{core.ErrFileTooLarge, http.StatusRequestEntityTooLarge},
		{core.ErrUnsupportedFormat, http.StatusUnsupportedMediaType},
		{core.ErrEmptyWorkbook, http.StatusUnprocessableEntity},
		{core.ErrInvalidFilenameSpec, http.StatusBadRequest},
		{core.ErrSessionNotFound, http.StatusNotFound},
		{core.ErrTooManyBatches, http.StatusServiceUnavailable},
		{assert.AnError, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}

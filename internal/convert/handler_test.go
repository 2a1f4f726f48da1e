package convert

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/pixload/darkroom/internal/imageproc"
	"github.com/rs/zerolog"
)

func newTestHandler(t *testing.T) (*Handler, *testEnv) {
	t.Helper()
	env := newTestEnv(t, nil)
	return NewHandler(env.service, NewValidator(testToken), 8<<20, zerolog.Nop()), env
}

// multipartRequest builds a POST /convert with the given fields and an
// optional file part.
func multipartRequest(t *testing.T, fields map[string]string, file []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for name, value := range fields {
		if err := writer.WriteField(name, value); err != nil {
			t.Fatal(err)
		}
	}
	if file != nil {
		part, err := writer.CreateFormFile("file", "photo.jpg")
		if err != nil {
			t.Fatal(err)
		}
		part.Write(file)
	}
	if err := writer.Close(); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodPost, "/convert", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var resp errorResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	return resp
}

func TestHandleConvertBinary(t *testing.T) {
	handler, env := newTestHandler(t)
	req := multipartRequest(t, map[string]string{
		"token":         testToken,
		"format":        "jpg",
		"size":          "800",
		"return_binary": "true",
	}, []byte("jpeg bytes"))
	rr := httptest.NewRecorder()

	handler.HandleConvert(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); ct != "image/jpeg" {
		t.Errorf("Content-Type = %s", ct)
	}
	if cd := rr.Header().Get("Content-Disposition"); cd != `attachment; filename=output.jpg` {
		t.Errorf("Content-Disposition = %s", cd)
	}
	if rr.Body.String() != "encoded:jpeg bytes" {
		t.Errorf("body = %q", rr.Body.String())
	}
	if rr.Header().Get("X-Storage-Key") != "" {
		t.Error("no storage headers expected without upload")
	}
	env.assertScratchEmpty(t)
}

func TestHandleConvertJSON(t *testing.T) {
	handler, _ := newTestHandler(t)
	req := multipartRequest(t, map[string]string{
		"token":     testToken,
		"format":    "webp",
		"upload_s3": "true",
		"key_name":  "gallery/one.webp",
	}, []byte("png bytes"))
	rr := httptest.NewRecorder()

	handler.HandleConvert(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %s", ct)
	}

	var resp Response
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !resp.OK || resp.Format != "webp" {
		t.Errorf("unexpected response: %+v", resp)
	}
	if resp.Key != "gallery/one.webp" || resp.URL != "https://cdn.example.com/gallery/one.webp" {
		t.Errorf("key=%s url=%s", resp.Key, resp.URL)
	}
	if resp.Bytes != len("encoded:png bytes") || !strings.HasPrefix(resp.Hash, "sha256:") {
		t.Errorf("bytes=%d hash=%s", resp.Bytes, resp.Hash)
	}
	if resp.Width != 800 || resp.Height != 600 {
		t.Errorf("dimensions = %dx%d", resp.Width, resp.Height)
	}
}

func TestHandleConvertBinaryWithUploadHeaders(t *testing.T) {
	handler, _ := newTestHandler(t)
	req := multipartRequest(t, map[string]string{
		"token":         testToken,
		"upload_s3":     "1",
		"key_name":      "x/y.jpg",
		"return_binary": "1",
	}, []byte("jpeg bytes"))
	rr := httptest.NewRecorder()

	handler.HandleConvert(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	if rr.Header().Get("X-Storage-Key") != "x/y.jpg" {
		t.Errorf("X-Storage-Key = %s", rr.Header().Get("X-Storage-Key"))
	}
	if cd := rr.Header().Get("Content-Disposition"); cd != `attachment; filename=y.jpg` {
		t.Errorf("Content-Disposition = %s", cd)
	}
}

func TestHandleConvertURLEncoded(t *testing.T) {
	srv := imageServer(t)
	handler, _ := newTestHandler(t)
	form := url.Values{
		"token":   {testToken},
		"src_url": {srv.URL + "/source.jpg"},
		"format":  {"png"},
	}
	req := httptest.NewRequest(http.MethodPost, "/convert", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()

	handler.HandleConvert(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
}

func TestHandleConvertErrors(t *testing.T) {
	tests := []struct {
		name   string
		fields map[string]string
		file   []byte
		status int
		detail string
	}{
		{
			name:   "missing source",
			fields: map[string]string{"token": testToken},
			status: http.StatusBadRequest,
			detail: "Provide 'file' or 'src_url'",
		},
		{
			name:   "unsupported format",
			fields: map[string]string{"token": testToken, "format": "bmp"},
			file:   []byte("x"),
			status: http.StatusBadRequest,
			detail: "Format unsupported: bmp",
		},
		{
			name:   "bad token",
			fields: map[string]string{"token": "wrong"},
			file:   []byte("x"),
			status: http.StatusUnauthorized,
			detail: "Unauthorized",
		},
		{
			name:   "source fetch failure",
			fields: map[string]string{"token": testToken, "src_url": "http://127.0.0.1:1/nothing.jpg"},
			status: http.StatusBadGateway,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, env := newTestHandler(t)
			rr := httptest.NewRecorder()

			handler.HandleConvert(rr, multipartRequest(t, tt.fields, tt.file))

			if rr.Code != tt.status {
				t.Fatalf("status = %d, expected %d (body %s)", rr.Code, tt.status, rr.Body.String())
			}
			resp := decodeError(t, rr)
			if resp.OK {
				t.Error("ok should be false")
			}
			if tt.detail != "" && resp.Detail != tt.detail {
				t.Errorf("detail = %q, expected %q", resp.Detail, tt.detail)
			}
			if len(env.engine.plans) != 0 {
				t.Error("engine should not run for rejected requests")
			}
			env.assertScratchEmpty(t)
		})
	}
}

func TestHandleConvertEngineErrorDetail(t *testing.T) {
	handler, env := newTestHandler(t)
	env.engine.err = &imageproc.EngineError{ExitCode: 1, Stderr: "no decode delegate"}
	rr := httptest.NewRecorder()

	handler.HandleConvert(rr, multipartRequest(t, map[string]string{"token": testToken}, []byte("x")))

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rr.Code)
	}
	if resp := decodeError(t, rr); resp.Detail != "Processing Engine Error: no decode delegate" {
		t.Errorf("detail = %q", resp.Detail)
	}
	env.assertScratchEmpty(t)
}

package http

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ochronus/goneocities/internal/app"
	"github.com/ochronus/goneocities/internal/config"
	"github.com/ochronus/goneocities/internal/site"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Username = "testuser"
	cfg.Password = "testpass"
	cfg.APIKey = "test-api-key"
	cfg.Loglevel = "error"
	cfg.MockServer.Sitename = "testsite"
	return cfg
}

func setupTestServer(t *testing.T) *Server {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return NewServer(&app.Container{Config: testConfig(), Logger: logger})
}

func basicAuthHeader(username, password string) string {
	auth := username + ":" + password
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(auth))
}

func doRequest(router http.Handler, method, target string, body *bytes.Buffer, contentType, auth string) *httptest.ResponseRecorder {
	if body == nil {
		body = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func multipartBody(t *testing.T, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for name, content := range files {
		fw, err := writer.CreateFormFile(name, name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return &buf, writer.FormDataContentType()
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestValidateUser(t *testing.T) {
	s := setupTestServer(t)

	tests := []struct {
		name     string
		auth     string
		expected int
	}{
		{"valid basic credentials", basicAuthHeader("testuser", "testpass"), http.StatusOK},
		{"valid api key", "Bearer test-api-key", http.StatusOK},
		{"wrong password", basicAuthHeader("testuser", "nope"), http.StatusUnauthorized},
		{"wrong api key", "Bearer nope", http.StatusUnauthorized},
		{"malformed basic", "Basic !!!", http.StatusUnauthorized},
		{"unknown scheme", "Digest abc", http.StatusUnauthorized},
		{"no header", "", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(s.GetRouter(), http.MethodGet, "/api/list", nil, "", tt.auth)
			assert.Equal(t, tt.expected, w.Code)
			if tt.expected == http.StatusUnauthorized {
				body := decode(t, w)
				assert.Equal(t, "error", body["result"])
				assert.Equal(t, "invalid_auth", body["error_type"])
			}
		})
	}
}

func TestUploadThenList(t *testing.T) {
	s := setupTestServer(t)
	router := s.GetRouter()
	auth := "Bearer test-api-key"

	body, ct := multipartBody(t, map[string]string{
		"index.html":        "<h1>hi</h1>",
		"/blog/2024/a.html": "a",
	})
	w := doRequest(router, http.MethodPost, "/api/upload", body, ct, auth)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "success", decode(t, w)["result"])

	w = doRequest(router, http.MethodGet, "/api/list", nil, "", auth)
	require.Equal(t, http.StatusOK, w.Code)

	entries, err := site.ParseManifest(w.Body.String())
	require.NoError(t, err)

	paths := make(map[string]site.Entry)
	for _, e := range entries {
		paths[e.EntryPath()] = e
	}
	assert.Len(t, paths, 4)
	assert.IsType(t, &site.Dir{}, paths["/blog"])
	assert.IsType(t, &site.Dir{}, paths["/blog/2024"])

	f, ok := paths["/index.html"].(*site.File)
	require.True(t, ok)
	assert.Equal(t, site.HashString("<h1>hi</h1>"), f.SHA1Hash)
	assert.Equal(t, uint64(len("<h1>hi</h1>")), f.Size)
	assert.WithinDuration(t, time.Now(), f.Modified, time.Minute)
}

func TestListWithPath(t *testing.T) {
	s := setupTestServer(t)
	router := s.GetRouter()
	auth := "Bearer test-api-key"

	body, ct := multipartBody(t, map[string]string{
		"index.html":   "x",
		"blog/a.html":  "a",
		"blog/x/b.txt": "b",
	})
	require.Equal(t, http.StatusOK, doRequest(router, http.MethodPost, "/api/upload", body, ct, auth).Code)

	w := doRequest(router, http.MethodGet, "/api/list?path=blog", nil, "", auth)
	require.Equal(t, http.StatusOK, w.Code)

	entries, err := site.ParseManifest(w.Body.String())
	require.NoError(t, err)
	var got []string
	for _, e := range entries {
		got = append(got, e.EntryPath())
	}
	assert.Equal(t, []string{"/blog/a.html", "/blog/x", "/blog/x/b.txt"}, got)
}

func TestUploadRejectsBadRequests(t *testing.T) {
	s := setupTestServer(t)
	router := s.GetRouter()
	auth := "Bearer test-api-key"

	w := doRequest(router, http.MethodPost, "/api/upload", nil, "", auth)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "missing_files", decode(t, w)["error_type"])

	body, ct := multipartBody(t, map[string]string{"../escape.html": "x"})
	w = doRequest(router, http.MethodPost, "/api/upload", body, ct, auth)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	body, ct = multipartBody(t, map[string]string{"a.html": "x"})
	w = doRequest(router, http.MethodPost, "/api/upload", body, ct, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestDelete(t *testing.T) {
	s := setupTestServer(t)
	router := s.GetRouter()
	auth := basicAuthHeader("testuser", "testpass")

	body, ct := multipartBody(t, map[string]string{
		"index.html":  "x",
		"a.html":      "a",
		"img/b.png":   "b",
		"img/c/d.png": "d",
	})
	require.Equal(t, http.StatusOK, doRequest(router, http.MethodPost, "/api/upload", body, ct, auth).Code)

	tests := []struct {
		name      string
		query     string
		status    int
		errorType string
	}{
		{"no filenames", "", http.StatusBadRequest, "missing_filenames"},
		{"index protected", "?filenames[]=index.html", http.StatusBadRequest, "cannot_delete_index"},
		{"missing file", "?filenames[]=a.html&filenames[]=nope.html", http.StatusBadRequest, "missing_files"},
		{"file and directory", "?filenames[]=a.html&filenames[]=img", http.StatusOK, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(router, http.MethodPost, "/api/delete"+tt.query, nil, "", auth)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			if tt.errorType != "" {
				assert.Equal(t, tt.errorType, decode(t, w)["error_type"])
			}
		})
	}

	w := doRequest(router, http.MethodGet, "/api/list", nil, "", auth)
	entries, err := site.ParseManifest(w.Body.String())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "/index.html", entries[0].EntryPath())
}

func TestInfo(t *testing.T) {
	s := setupTestServer(t)
	router := s.GetRouter()

	w := doRequest(router, http.MethodGet, "/api/info?sitename=testsite", nil, "", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	info, ok := body["info"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "testsite", info["sitename"])
	assert.Nil(t, info["last_updated"])

	w = doRequest(router, http.MethodGet, "/api/info?sitename=other", nil, "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "site_not_found", decode(t, w)["error_type"])

	w = doRequest(router, http.MethodGet, "/api/info", nil, "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doRequest(router, http.MethodGet, "/api/info", nil, "", "Bearer test-api-key")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestKey(t *testing.T) {
	s := setupTestServer(t)

	w := doRequest(s.GetRouter(), http.MethodGet, "/api/key", nil, "", basicAuthHeader("testuser", "testpass"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "test-api-key", decode(t, w)["api_key"])
}

func TestKeyDerivedWhenNotConfigured(t *testing.T) {
	cfg := testConfig()
	cfg.APIKey = ""
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	s := NewServer(&app.Container{Config: cfg, Logger: logger})

	w := doRequest(s.GetRouter(), http.MethodGet, "/api/key", nil, "", basicAuthHeader("testuser", "testpass"))
	require.Equal(t, http.StatusOK, w.Code)
	key, _ := decode(t, w)["api_key"].(string)
	assert.Len(t, key, 32)

	w = doRequest(s.GetRouter(), http.MethodGet, "/api/list", nil, "", "Bearer "+key)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestServeFile(t *testing.T) {
	s := setupTestServer(t)
	router := s.GetRouter()

	body, ct := multipartBody(t, map[string]string{"index.html": "<p>home</p>", "css/site.css": "p{}"})
	require.Equal(t, http.StatusOK, doRequest(router, http.MethodPost, "/api/upload", body, ct, "Bearer test-api-key").Code)

	w := doRequest(router, http.MethodGet, "/site/", nil, "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "<p>home</p>", w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")

	w = doRequest(router, http.MethodGet, "/site/css/site.css", nil, "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/css")

	w = doRequest(router, http.MethodGet, "/site/missing.html", nil, "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCleanPath(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"index.html", "index.html", false},
		{"/index.html", "index.html", false},
		{"a//b/./c.html", "a/b/c.html", false},
		{"../x", "", true},
		{"a/../../x", "", true},
		{"", "", true},
		{"/", "", true},
	}
	for _, tt := range tests {
		got, err := cleanPath(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		assert.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}

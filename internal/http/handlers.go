package http

import (
	"crypto/subtle"
	"encoding/base64"
	"io"
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/ochronus/goneocities/internal/config"
	"github.com/ochronus/goneocities/internal/site"
	"github.com/sirupsen/logrus"
)

const maxUploadMemory = 32 << 20

// Handler contains the HTTP handlers of the mock Neocities API.
type Handler struct {
	config *config.Config
	logger *logrus.Logger
	store  *siteStore
}

// NewHandler creates a new HTTP handler backed by an empty site.
func NewHandler(cfg *config.Config, logger *logrus.Logger) *Handler {
	return &Handler{
		config: cfg,
		logger: logger,
		store:  newSiteStore(cfg.MockServer.Sitename),
	}
}

func apiError(c *gin.Context, status int, errorType, message string) {
	c.JSON(status, gin.H{
		"result":     "error",
		"error_type": errorType,
		"message":    message,
	})
}

func apiSuccess(c *gin.Context, message string) {
	c.JSON(http.StatusOK, gin.H{
		"result":  "success",
		"message": message,
	})
}

func (h *Handler) requireAuth(c *gin.Context) bool {
	if h.validateUser(c) {
		return true
	}
	apiError(c, http.StatusUnauthorized, "invalid_auth", "invalid credentials - please check your username and password (or your api key)")
	return false
}

// Info handles GET /api/info. Credentials are only needed without ?sitename.
func (h *Handler) Info(c *gin.Context) {
	if name, ok := c.GetQuery("sitename"); ok {
		if name != h.store.sitename {
			apiError(c, http.StatusNotFound, "site_not_found", "could not find site")
			return
		}
	} else if !h.requireAuth(c) {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"result": "success",
		"info":   h.store.info(),
	})
}

// List handles GET /api/list with an optional ?path filter.
func (h *Handler) List(c *gin.Context) {
	if !h.requireAuth(c) {
		return
	}

	prefix := ""
	if p := c.Query("path"); p != "" && p != "/" {
		cleaned, err := cleanPath(p)
		if err != nil {
			apiError(c, http.StatusBadRequest, "invalid_path", err.Error())
			return
		}
		prefix = cleaned
	}

	c.JSON(http.StatusOK, gin.H{
		"result": "success",
		"files":  h.store.list(prefix),
	})
}

// Upload handles POST /api/upload. Each multipart file field names its remote path.
func (h *Handler) Upload(c *gin.Context) {
	if !h.requireAuth(c) {
		return
	}

	if err := c.Request.ParseMultipartForm(maxUploadMemory); err != nil {
		apiError(c, http.StatusBadRequest, "missing_files", "you must provide files to upload")
		return
	}
	form := c.Request.MultipartForm
	if form == nil || len(form.File) == 0 {
		apiError(c, http.StatusBadRequest, "missing_files", "you must provide files to upload")
		return
	}

	files := make(map[string][]byte)
	for field, headers := range form.File {
		for _, fh := range headers {
			name := field
			if name == "" {
				name = fh.Filename
			}
			p, err := cleanPath(name)
			if err != nil {
				apiError(c, http.StatusBadRequest, "invalid_file_type", err.Error())
				return
			}

			f, err := fh.Open()
			if err != nil {
				apiError(c, http.StatusBadRequest, "missing_files", err.Error())
				return
			}
			data, err := io.ReadAll(f)
			f.Close()
			if err != nil {
				apiError(c, http.StatusBadRequest, "missing_files", err.Error())
				return
			}
			files[p] = data
		}
	}

	h.store.put(files)
	h.logger.Infof("mock: uploaded %d file(s)", len(files))
	apiSuccess(c, "your file(s) have been successfully uploaded")
}

// Delete handles POST /api/delete with repeated filenames[] in the query or form body.
func (h *Handler) Delete(c *gin.Context) {
	if !h.requireAuth(c) {
		return
	}

	names := c.QueryArray("filenames[]")
	names = append(names, c.PostFormArray("filenames[]")...)
	if len(names) == 0 {
		apiError(c, http.StatusBadRequest, "missing_filenames", "you must provide files to delete")
		return
	}

	paths := make([]string, 0, len(names))
	for _, name := range names {
		p, err := cleanPath(name)
		if err != nil {
			apiError(c, http.StatusBadRequest, "bad_filename", err.Error())
			return
		}
		if p == "index.html" {
			apiError(c, http.StatusBadRequest, "cannot_delete_index", "you cannot delete your index.html file, canceled deleting")
			return
		}
		if !h.store.exists(p) {
			apiError(c, http.StatusBadRequest, "missing_files", p+" was not found on your site, canceled deleting")
			return
		}
		paths = append(paths, p)
	}

	h.store.remove(paths)
	h.logger.Infof("mock: deleted %d path(s)", len(paths))
	apiSuccess(c, "file(s) have been deleted")
}

// Key handles GET /api/key.
func (h *Handler) Key(c *gin.Context) {
	if !h.requireAuth(c) {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"result":  "success",
		"api_key": h.apiKey(),
	})
}

// ServeFile serves uploaded content so the mock site can be previewed.
func (h *Handler) ServeFile(c *gin.Context) {
	p := strings.TrimPrefix(c.Param("filepath"), "/")
	if p == "" || strings.HasSuffix(p, "/") {
		p += "index.html"
	}
	cleaned, err := cleanPath(p)
	if err != nil {
		c.Status(http.StatusNotFound)
		return
	}
	data, ok := h.store.file(cleaned)
	if !ok {
		c.Status(http.StatusNotFound)
		return
	}

	contentType := mime.TypeByExtension(path.Ext(cleaned))
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	c.Data(http.StatusOK, contentType, data)
}

// apiKey is the configured key, or one derived from the configured credentials.
func (h *Handler) apiKey() string {
	if h.config.APIKey != "" {
		return h.config.APIKey
	}
	return site.HashString(h.config.Username + ":" + h.config.Password)[:32]
}

// validateUser accepts Basic credentials matching the config or the Bearer API key.
func (h *Handler) validateUser(c *gin.Context) bool {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return false
	}

	if strings.HasPrefix(authHeader, "Bearer ") {
		token := strings.TrimPrefix(authHeader, "Bearer ")
		return subtle.ConstantTimeCompare([]byte(token), []byte(h.apiKey())) == 1
	}

	if !strings.HasPrefix(authHeader, "Basic ") {
		return false
	}

	encoded := strings.TrimPrefix(authHeader, "Basic ")
	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return false
	}

	parts := strings.SplitN(string(decoded), ":", 2)
	if len(parts) != 2 {
		return false
	}

	username := parts[0]
	password := parts[1]

	if h.config.Username == "" {
		return false
	}
	return username == h.config.Username && password == h.config.Password
}

package neocities

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

const (
	// DefaultBaseURL is the public Neocities service
	DefaultBaseURL = "https://neocities.org"
	// DefaultTimeout bounds each HTTP request
	DefaultTimeout = 30 * time.Second
)

type authMode int

const (
	authNone authMode = iota
	authBasic
	authKey
)

// Client represents a Neocities API client
type Client struct {
	baseURL    string
	auth       authMode
	username   string
	password   string
	apiKey     string
	httpClient *http.Client
}

var _ ClientAPI = (*Client)(nil)

// Option customizes a Client.
type Option func(*Client)

// WithBaseURL points the client at another host, e.g. the local mock server.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

func newClient(mode authMode, opts []Option) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		auth:    mode,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewClient creates a client authenticating with a username and password.
func NewClient(username, password string, opts ...Option) *Client {
	c := newClient(authBasic, opts)
	c.username = username
	c.password = password
	return c
}

// NewClientWithKey creates a client authenticating with an API key.
func NewClientWithKey(apiKey string, opts ...Option) *Client {
	c := newClient(authKey, opts)
	c.apiKey = apiKey
	return c
}

// NewClientNoAuth creates an anonymous client. Only InfoNoAuth works; every
// other call fails with ErrAuth before touching the network.
func NewClientNoAuth(opts ...Option) *Client {
	return newClient(authNone, opts)
}

// Part is one file in a multipart upload. Name is the remote path.
type Part struct {
	Name string
	Data []byte
}

// QueryPair is one query parameter; order and repetition are preserved.
type QueryPair struct {
	Key   string
	Value string
}

// UploadPath maps a local file to its remote path.
type UploadPath struct {
	Local  string
	Remote string
}

// SiteInfo represents the info block of a site
type SiteInfo struct {
	Sitename       string   `json:"sitename"`
	Views          int64    `json:"views"`
	Hits           int64    `json:"hits"`
	CreatedAt      string   `json:"created_at"`
	LastUpdated    *string  `json:"last_updated"`
	Domain         *string  `json:"domain"`
	Tags           []string `json:"tags"`
	LatestIPFSHash *string  `json:"latest_ipfs_hash"`
}

// InfoResponse represents the API response for site info
type InfoResponse struct {
	Result string   `json:"result"`
	Info   SiteInfo `json:"info"`
}

// KeyResponse represents the API response for the key endpoint
type KeyResponse struct {
	Result string `json:"result"`
	APIKey string `json:"api_key"`
}

func (c *Client) endpointURL(endpoint string) string {
	return c.baseURL + "/api/" + strings.TrimLeft(endpoint, "/")
}

func (c *Client) authorize(req *http.Request) error {
	switch c.auth {
	case authKey:
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.apiKey))
	case authBasic:
		req.SetBasicAuth(c.username, c.password)
	default:
		return &Error{Kind: KindAuth, Op: req.Method + " " + req.URL.Path}
	}
	return nil
}

// doRequest executes an HTTP request and returns the body as text
func (c *Client) doRequest(method, rawURL string, body io.Reader, contentType string, authenticated bool) (string, error) {
	req, err := http.NewRequest(method, rawURL, body)
	if err != nil {
		return "", NetworkError(method+" "+rawURL, err)
	}
	op := method + " " + req.URL.Path

	if authenticated {
		if err := c.authorize(req); err != nil {
			return "", err
		}
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", NetworkError(op, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", NetworkError(op, fmt.Errorf("reading response body: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if apiErr := CheckResult(string(data)); apiErr != nil {
			return "", NetworkError(op, fmt.Errorf("%s: %w", resp.Status, apiErr))
		}
		return "", NetworkError(op, fmt.Errorf("unexpected status: %s", resp.Status))
	}

	return string(data), nil
}

// Get issues an authenticated GET against an API endpoint.
func (c *Client) Get(endpoint string) (string, error) {
	return c.doRequest(http.MethodGet, c.endpointURL(endpoint), nil, "", true)
}

// PostMultipart posts each part as a form file named after its remote path.
func (c *Client) PostMultipart(endpoint string, parts []Part) (string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	for _, p := range parts {
		fw, err := writer.CreateFormFile(p.Name, p.Name)
		if err != nil {
			return "", NetworkError("POST "+endpoint, err)
		}
		if _, err := fw.Write(p.Data); err != nil {
			return "", NetworkError("POST "+endpoint, err)
		}
	}
	if err := writer.Close(); err != nil {
		return "", NetworkError("POST "+endpoint, err)
	}

	return c.doRequest(http.MethodPost, c.endpointURL(endpoint), &buf, writer.FormDataContentType(), true)
}

// PostQuery posts with the given pairs encoded in the query string.
func (c *Client) PostQuery(endpoint string, pairs []QueryPair) (string, error) {
	target := c.endpointURL(endpoint)
	if len(pairs) > 0 {
		target += "?" + encodePairs(pairs)
	}
	return c.doRequest(http.MethodPost, target, nil, "", true)
}

func encodePairs(pairs []QueryPair) string {
	encoded := make([]string, 0, len(pairs))
	for _, p := range pairs {
		encoded = append(encoded, url.QueryEscape(p.Key)+"="+url.QueryEscape(p.Value))
	}
	return strings.Join(encoded, "&")
}

// Info gets info about the authenticated user's site.
func (c *Client) Info() (string, error) {
	return c.Get("info")
}

// InfoNoAuth gets info about any site. It never sends credentials.
func (c *Client) InfoNoAuth(siteName string) (string, error) {
	target := c.endpointURL("info") + "?" + url.Values{"sitename": {siteName}}.Encode()
	return c.doRequest(http.MethodGet, target, nil, "", false)
}

// ListAll lists every file and directory on the authenticated user's site.
func (c *Client) ListAll() (string, error) {
	return c.Get("list")
}

// List lists files and directories below path.
func (c *Client) List(path string) (string, error) {
	return c.Get("list?" + url.Values{"path": {path}}.Encode())
}

// Upload uploads a local file to remotePath relative to the site root.
func (c *Client) Upload(localPath, remotePath string) (string, error) {
	return c.UploadMultiple([]UploadPath{{Local: localPath, Remote: remotePath}})
}

// UploadMultiple reads every local file before sending a single request.
func (c *Client) UploadMultiple(paths []UploadPath) (string, error) {
	parts := make([]Part, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p.Local)
		if err != nil {
			return "", LocalIOError("upload", err)
		}
		parts = append(parts, Part{Name: p.Remote, Data: data})
	}
	return c.UploadBytesMultiple(parts)
}

// UploadBytes uploads data as a file at remotePath.
func (c *Client) UploadBytes(data []byte, remotePath string) (string, error) {
	return c.UploadBytesMultiple([]Part{{Name: remotePath, Data: data}})
}

// UploadBytesMultiple uploads several in-memory files in one request.
func (c *Client) UploadBytesMultiple(parts []Part) (string, error) {
	return c.PostMultipart("upload", parts)
}

// Delete deletes a file or directory on the site.
func (c *Client) Delete(path string) (string, error) {
	return c.DeleteMultiple([]string{path})
}

// DeleteMultiple deletes several files or directories in one request.
func (c *Client) DeleteMultiple(paths []string) (string, error) {
	pairs := make([]QueryPair, 0, len(paths))
	for _, p := range paths {
		pairs = append(pairs, QueryPair{Key: "filenames[]", Value: p})
	}
	return c.PostQuery("delete", pairs)
}

// GetKey returns the API key of the authenticated user.
func (c *Client) GetKey() (string, error) {
	return c.Get("key")
}

// DecodeInfo parses an info response body.
func DecodeInfo(body string) (*InfoResponse, error) {
	if err := CheckResult(body); err != nil {
		return nil, err
	}
	var result InfoResponse
	if err := json.Unmarshal([]byte(body), &result); err != nil {
		return nil, fmt.Errorf("error decoding info response: %w", err)
	}
	return &result, nil
}

// DecodeKey extracts the API key from a key response body.
func DecodeKey(body string) (string, error) {
	if err := CheckResult(body); err != nil {
		return "", err
	}
	var result KeyResponse
	if err := json.Unmarshal([]byte(body), &result); err != nil {
		return "", fmt.Errorf("error decoding key response: %w", err)
	}
	if result.APIKey == "" {
		return "", fmt.Errorf("api_key not found in response")
	}
	return result.APIKey, nil
}

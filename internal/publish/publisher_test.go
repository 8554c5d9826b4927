package publish

import (
	"context"
	"errors"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/ochronus/goneocities/internal/app"
	"github.com/ochronus/goneocities/internal/config"
	mockapi "github.com/ochronus/goneocities/internal/http"
	"github.com/ochronus/goneocities/internal/services/neocities"
	"github.com/ochronus/goneocities/internal/site"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "publish-test-key"

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

// startMockSite runs the mock API and returns a client authenticated against it.
func startMockSite(t *testing.T) *neocities.Client {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.DefaultConfig()
	cfg.APIKey = testKey
	cfg.MockServer.Sitename = "publishtest"

	server := mockapi.NewServer(&app.Container{Config: cfg, Logger: quietLogger()})
	ts := httptest.NewServer(server.GetRouter())
	t.Cleanup(ts.Close)

	return neocities.NewClientWithKey(testKey, neocities.WithBaseURL(ts.URL))
}

func newTestPublisher(t *testing.T, client neocities.ClientAPI, batchSize int) *Publisher {
	t.Helper()
	catalog, err := site.Load(client)
	require.NoError(t, err)
	return NewPublisher(client, catalog, quietLogger(), batchSize)
}

func TestPublishRoundTrip(t *testing.T) {
	client := startMockSite(t)
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"index.html":     "<h1>home</h1>",
		"about.html":     "about",
		"blog/one.html":  "one",
		"blog/two.html":  "two",
		"css/site.css":   "body{}",
		".git/config":    "[core]",
		"notes.txt.swp":  "swap",
		"img/banner.png": "png",
	})
	excludes := []string{".git", "*.swp"}

	pub := newTestPublisher(t, client, 2)
	require.Equal(t, 0, pub.Catalog().Len())

	plan, err := pub.Plan(context.Background(), dir, excludes, 4, false)
	require.NoError(t, err)
	require.Len(t, plan.Uploads, 6)

	result, err := pub.Apply(context.Background(), plan, false)
	require.NoError(t, err)
	assert.Equal(t, 6, result.Uploaded)
	assert.Equal(t, plan.UploadBytes(), result.UploadedBytes)

	for _, rel := range []string{"index.html", "about.html", "blog/one.html", "blog/two.html", "css/site.css", "img/banner.png"} {
		assert.True(t, pub.Catalog().FileExists("/"+rel), rel)
	}
	assert.True(t, pub.Catalog().DirExists("/blog"))
	assert.False(t, pub.Catalog().Exists("/.git/config"))

	changed, err := pub.Catalog().FileChangedLocal(filepath.Join(dir, "index.html"), "/index.html")
	require.NoError(t, err)
	assert.False(t, changed)

	again, err := pub.Plan(context.Background(), dir, excludes, 4, true)
	require.NoError(t, err)
	assert.True(t, again.Empty())
	assert.Len(t, again.Unchanged, 6)
}

func TestPublishUpdatesAndDeletes(t *testing.T) {
	client := startMockSite(t)
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"index.html": "v1",
		"old.html":   "old",
		"keep.html":  "keep",
	})

	pub := newTestPublisher(t, client, 0)
	plan, err := pub.Plan(context.Background(), dir, nil, 2, false)
	require.NoError(t, err)
	_, err = pub.Apply(context.Background(), plan, false)
	require.NoError(t, err)

	dir2 := t.TempDir()
	writeTree(t, dir2, map[string]string{
		"keep.html": "keep",
		"new.html":  "new",
	})

	plan, err = pub.Plan(context.Background(), dir2, nil, 2, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"/old.html"}, plan.Deletes)
	require.Len(t, plan.Uploads, 1)
	assert.Equal(t, ReasonNew, plan.Uploads[0].Reason)

	result, err := pub.Apply(context.Background(), plan, false)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Uploaded)
	assert.Equal(t, 1, result.Deleted)
	assert.Equal(t, 1, result.Unchanged)

	assert.False(t, pub.Catalog().Exists("/old.html"))
	assert.True(t, pub.Catalog().FileExists("/index.html"))
	assert.True(t, pub.Catalog().FileExists("/new.html"))
}

func TestPublishDryRunSendsNothing(t *testing.T) {
	client := startMockSite(t)
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{"index.html": "home", "a.html": "a"})

	pub := newTestPublisher(t, client, 10)
	plan, err := pub.Plan(context.Background(), dir, nil, 2, false)
	require.NoError(t, err)

	result, err := pub.Apply(context.Background(), plan, true)
	require.NoError(t, err)
	assert.Zero(t, result.Uploaded)

	body, err := client.ListAll()
	require.NoError(t, err)
	entries, err := site.ParseManifest(body)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

type failingClient struct {
	neocities.ClientAPI
	uploadBody string
	uploadErr  error
	uploads    int
	lists      int
}

func (f *failingClient) ListAll() (string, error) {
	f.lists++
	return `{"result":"success","files":[]}`, nil
}

func (f *failingClient) UploadMultiple([]neocities.UploadPath) (string, error) {
	f.uploads++
	return f.uploadBody, f.uploadErr
}

func TestApplyStopsOnUploadFailure(t *testing.T) {
	tests := []struct {
		name   string
		client *failingClient
		kind   error
	}{
		{
			name:   "transport error",
			client: &failingClient{uploadErr: neocities.NetworkError("POST /api/upload", errors.New("reset"))},
			kind:   neocities.ErrNetwork,
		},
		{
			name:   "api error body",
			client: &failingClient{uploadBody: `{"result":"error","error_type":"too_large","message":"file too large"}`},
			kind:   neocities.ErrAPI,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub := newTestPublisher(t, tt.client, 1)
			plan := Plan{Uploads: []Change{
				{File: localFile("a.html", "a"), Reason: ReasonNew},
				{File: localFile("b.html", "b"), Reason: ReasonNew},
			}}

			result, err := pub.Apply(context.Background(), plan, false)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.kind), "got %v", err)
			assert.Equal(t, 1, tt.client.uploads)
			assert.Zero(t, result.Uploaded)
			assert.Equal(t, 1, tt.client.lists, "catalog must not be refreshed after a failed upload")
		})
	}
}

func TestApplyHonorsCanceledContext(t *testing.T) {
	client := &failingClient{uploadBody: `{"result":"success"}`}
	pub := newTestPublisher(t, client, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := pub.Apply(ctx, Plan{Uploads: []Change{{File: localFile("a.html", "a")}}}, false)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, client.uploads)
}

package main

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/imglabel/internal/app"
	"github.com/phrazzld/imglabel/internal/config"
	"github.com/phrazzld/imglabel/internal/platform/logger"
)

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Port:             8080,
			LogLevel:         "debug",
			MaxUploadBytes:   1 << 20,
			UploadRateLimit:  2,
			UploadRateWindow: time.Minute,
			ShutdownTimeout:  time.Second,
		},
		Queue: config.QueueConfig{
			Backend:           "memory",
			VisibilityTimeout: 30 * time.Second,
			MaxReceiveCount:   2,
			MaxMessages:       10,
			PollInterval:      10 * time.Millisecond,
		},
		Storage:       config.StorageConfig{Backend: "memory"},
		ObjectStore:   config.ObjectStoreConfig{Backend: "memory", ImageBucket: "images", ThumbnailBucket: "thumbnails"},
		Notifications: config.NotificationsConfig{Emit: true, Suffixes: []string{".jpeg"}},
		Vision:        config.VisionConfig{Provider: "rekognition", MaxLabels: 10, MinConfidence: 70},
		Thumbnail:     config.ThumbnailConfig{Variants: map[string]int{"small": 16}, JPEGQuality: 80},
	}
}

func newTestServer(t *testing.T) (*httptest.Server, *app.App) {
	t.Helper()
	log, _ := logger.GetTestLogger(t)
	a, err := app.New(context.Background(), testConfig(), log, app.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	srv := httptest.NewServer(newRouter(a))
	t.Cleanup(srv.Close)
	return srv, a
}

func jpegBody(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, image.NewGray(image.Rect(0, 0, 8, 8)), nil))
	return buf.Bytes()
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestUploadIsRateLimited(t *testing.T) {
	srv, _ := newTestServer(t)

	var codes []int
	for i := 0; i < 3; i++ {
		resp, err := http.Post(srv.URL+"/api/images", "image/jpeg", bytes.NewReader(jpegBody(t)))
		require.NoError(t, err)
		resp.Body.Close()
		codes = append(codes, resp.StatusCode)
	}

	assert.Equal(t, []int{http.StatusAccepted, http.StatusAccepted, http.StatusTooManyRequests}, codes)
}

func TestUploadOfUnprocessedTypeIsRejected(t *testing.T) {
	srv, a := newTestServer(t)
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 8, 8))))

	resp, err := http.Post(srv.URL+"/api/images", "image/png", &buf)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusUnsupportedMediaType, resp.StatusCode)
	stats, err := a.Stats.Stats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.Visible, "nothing is queued for a type no worker processes")
}

func TestUploadEnqueuesNotification(t *testing.T) {
	srv, a := newTestServer(t)

	resp, err := http.Post(srv.URL+"/api/images", "image/jpeg", bytes.NewReader(jpegBody(t)))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	stats, err := a.Stats.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Visible)
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Post(srv.URL+"/api/images", "image/jpeg", bytes.NewReader(jpegBody(t)))
	require.NoError(t, err)
	resp.Body.Close()

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.Contains(string(body), "imglabel_uploads_total 1"))
}

func TestUnknownImageLabels(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/images/unknown/labels")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Trace-ID"))
}

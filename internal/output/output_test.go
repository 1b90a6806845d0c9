package output

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanchriswhite/FlexiView/internal/frame"
)

func TestDiscardCountsFrames(t *testing.T) {
	d := NewDiscard()
	require.NoError(t, d.Start())
	assert.True(t, d.IsRunning())
	require.NoError(t, d.WriteFrame(frame.Filled(7, 5, color.RGBA{A: 255})))
	require.NoError(t, d.WriteFrame(frame.Filled(7, 5, color.RGBA{A: 255})))
	assert.Equal(t, uint64(2), d.Frames())
	assert.Equal(t, image.Pt(7, 5), d.LastSize())
	require.NoError(t, d.Stop())
	assert.False(t, d.IsRunning())
}

func TestMJPEGSnapshot(t *testing.T) {
	m := NewMJPEGOutput(Config{Width: 16, Height: 8, FPS: 30})
	assert.Error(t, m.WriteFrame(frame.Filled(16, 8, color.RGBA{A: 255})), "not running")

	require.NoError(t, m.Start())
	defer m.Stop()

	_, ok := m.Snapshot()
	assert.False(t, ok)

	require.NoError(t, m.WriteFrame(frame.Filled(16, 8, color.RGBA{R: 255, A: 255})))
	snap, ok := m.Snapshot()
	require.True(t, ok)
	img, err := jpeg.Decode(bytes.NewReader(snap))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 16, 8), img.Bounds())

	stats := m.Stats()
	assert.True(t, stats.Running)
	assert.Equal(t, uint64(1), stats.Frames)
}

func TestMJPEGHandlers(t *testing.T) {
	m := NewMJPEGOutput(Config{Width: 8, Height: 8, FPS: 30, Quality: 50})
	require.NoError(t, m.Start())
	defer m.Stop()

	rec := httptest.NewRecorder()
	m.GetSnapshotHandler()(rec, httptest.NewRequest(http.MethodGet, "/preview.jpg", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	require.NoError(t, m.WriteFrame(frame.Filled(8, 8, color.RGBA{G: 255, A: 255})))

	rec = httptest.NewRecorder()
	m.GetSnapshotHandler()(rec, httptest.NewRequest(http.MethodGet, "/preview.jpg", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/jpeg", rec.Header().Get("Content-Type"))

	rec = httptest.NewRecorder()
	m.GetStatsHandler()(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))
	var stats MJPEGStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 8, stats.Width)
}

func TestMJPEGStreamPrimesClient(t *testing.T) {
	m := NewMJPEGOutput(Config{Width: 8, Height: 8, FPS: 30})
	require.NoError(t, m.Start())
	defer m.Stop()
	require.NoError(t, m.WriteFrame(frame.Filled(8, 8, color.RGBA{B: 255, A: 255})))

	srv := httptest.NewServer(m.GetHTTPHandler())
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "multipart/x-mixed-replace; boundary=frame", resp.Header.Get("Content-Type"))
	line, err := bufio.NewReader(resp.Body).ReadString('\n')
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(line, "--frame"))
}

func TestPackBGR(t *testing.T) {
	img := frame.Filled(2, 1, color.RGBA{R: 1, G: 2, B: 3, A: 255})
	stride := padTo(2*3, 4)
	assert.Equal(t, 8, stride)

	dst := make([]byte, stride)
	packBGR(dst, img, stride, 3)
	assert.Equal(t, []byte{3, 2, 1, 3, 2, 1, 0, 0}, dst)

	dst = make([]byte, 8)
	packBGR(dst, img, 8, 4)
	assert.Equal(t, []byte{3, 2, 1, 0, 3, 2, 1, 0}, dst)
}

func TestBandRows(t *testing.T) {
	// 1920 px * 4 bytes per row against the classic 256 KiB request limit.
	rows := bandRows(262140, 7680, 1080)
	assert.Equal(t, 34, rows)
	assert.LessOrEqual(t, rows*7680+putImageHeader, 262140)

	assert.Equal(t, 1, bandRows(100, 7680, 1080))
	assert.Equal(t, 10, bandRows(1<<30, 7680, 10))
}

package api_test

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanchriswhite/FlexiView/internal/api"
	"github.com/bryanchriswhite/FlexiView/internal/app"
	"github.com/bryanchriswhite/FlexiView/internal/app/apptest"
	"github.com/bryanchriswhite/FlexiView/internal/infrared"
	"github.com/bryanchriswhite/FlexiView/internal/output"
	"github.com/bryanchriswhite/FlexiView/internal/player"
	"github.com/bryanchriswhite/FlexiView/internal/preset"
	"github.com/bryanchriswhite/FlexiView/internal/source"
)

type harness struct {
	fx       *apptest.Fixture
	srv      *httptest.Server
	mediaDir string
	presets  *preset.Store
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{fx: apptest.New(t), mediaDir: t.TempDir()}

	var err error
	h.presets, err = preset.NewStore(filepath.Join(t.TempDir(), "presets"))
	require.NoError(t, err)

	s := api.NewServer(api.Options{
		App:            h.fx.App,
		Presets:        h.presets,
		MediaDir:       h.mediaDir,
		Preview:        output.NewMJPEGOutput(output.Config{FPS: 30}),
		StatusInterval: 20 * time.Millisecond,
	})
	h.srv = httptest.NewServer(s.Handler())
	t.Cleanup(h.srv.Close)
	return h
}

func (h *harness) do(t *testing.T, method, path string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var rd *bytes.Reader
	switch b := body.(type) {
	case nil:
		rd = bytes.NewReader(nil)
	case string:
		rd = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, h.srv.URL+path, rd)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		_ = json.NewDecoder(resp.Body).Decode(&out)
	}
	return resp, out
}

func (h *harness) status(t *testing.T) app.Status {
	t.Helper()
	resp, err := http.Get(h.srv.URL + "/api/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var st app.Status
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&st))
	return st
}

func TestHealthAndCORS(t *testing.T) {
	h := newHarness(t)
	resp, body := h.do(t, http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))

	resp, _ = h.do(t, http.MethodOptions, "/api/display", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestUpdateDisplay(t *testing.T) {
	h := newHarness(t)
	resp, body := h.do(t, http.MethodPost, "/api/display", map[string]any{
		"scale":            1.5,
		"rotation":         "sideways",
		"offset_x":         12,
		"mirror_h":         true,
		"background_color": []int{255, 0, 0},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["warnings"], 1)

	st := h.status(t)
	assert.Equal(t, 1.5, st.Display.Scale)
	assert.Equal(t, 0.0, st.Display.Rotation)
	assert.Equal(t, 12, st.Display.OffsetX)
	assert.True(t, st.Display.MirrorHorizontal)
	assert.Equal(t, [3]uint8{255, 0, 0}, st.Display.BackgroundColor)

	resp, _ = h.do(t, http.MethodPost, "/api/display", map[string]any{"scale": -2})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, 1.5, h.status(t).Display.Scale)

	resp, _ = h.do(t, http.MethodPost, "/api/display", map[string]any{"enabled": false})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, h.status(t).Presentation.Running)

	resp, _ = h.do(t, http.MethodPost, "/api/display/reset", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1.0, h.status(t).Display.Scale)
}

func TestUpdateGuide(t *testing.T) {
	h := newHarness(t)
	resp, body := h.do(t, http.MethodPost, "/api/guide", map[string]any{"enabled": true, "width": 200})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["enabled"])
	assert.Equal(t, 200.0, body["width"])
	assert.Equal(t, 600.0, body["height"])

	resp, _ = h.do(t, http.MethodPost, "/api/guide", "{broken")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPlayFromMediaDir(t *testing.T) {
	h := newHarness(t)
	h.fx.VideoFPS = 1
	require.NoError(t, os.WriteFile(filepath.Join(h.mediaDir, "clip.mp4"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(h.mediaDir, "notes.txt"), []byte("x"), 0644))

	resp, body := h.do(t, http.MethodGet, "/api/files", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []any{"clip.mp4"}, body["files"])

	resp, _ = h.do(t, http.MethodPost, "/api/play", map[string]any{"filename": "missing.mp4"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp, _ = h.do(t, http.MethodPost, "/api/play", map[string]any{"filename": "notes.txt"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = h.do(t, http.MethodPost, "/api/play", map[string]any{"filename": "../clip.mp4", "loop": false})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	st := h.status(t).Session
	assert.Equal(t, source.KindVideo, st.SourceKind)
	assert.False(t, st.Loop)

	resp, body = h.do(t, http.MethodPost, "/api/pause", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["paused"])
	resp, _ = h.do(t, http.MethodPost, "/api/resume", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, player.StatePlaying, h.status(t).Session.State)

	resp, body = h.do(t, http.MethodPost, "/api/seek", map[string]any{"frame_index": 3})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 3.0, body["current_frame"])

	resp, _ = h.do(t, http.MethodPost, "/api/loop", map[string]any{"loop": true})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, h.status(t).Session.Loop)

	resp, _ = h.do(t, http.MethodPost, "/api/stop", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, player.StateStopped, h.status(t).Session.State)

	resp, _ = h.do(t, http.MethodPost, "/api/clear", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, player.StateEmpty, h.status(t).Session.State)

	resp, _ = h.do(t, http.MethodPost, "/api/seek", map[string]any{"frame_index": 1})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestUploadMedia(t *testing.T) {
	h := newHarness(t)

	upload := func(name string) *http.Response {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		fw, err := mw.CreateFormFile("file", name)
		require.NoError(t, err)
		fw.Write([]byte("data"))
		require.NoError(t, mw.Close())
		resp, err := http.Post(h.srv.URL+"/api/upload", mw.FormDataContentType(), &buf)
		require.NoError(t, err)
		resp.Body.Close()
		return resp
	}

	assert.Equal(t, http.StatusOK, upload("still.png").StatusCode)
	assert.Equal(t, http.StatusBadRequest, upload("script.sh").StatusCode)
	_, err := os.Stat(filepath.Join(h.mediaDir, "still.png"))
	assert.NoError(t, err)
}

func TestCamerasAndInfrared(t *testing.T) {
	h := newHarness(t)

	_, body := h.do(t, http.MethodGet, "/api/cameras", nil)
	assert.Len(t, body["cameras"], 2)

	_, body = h.do(t, http.MethodGet, "/api/monitors", nil)
	assert.Len(t, body["monitors"], 2)

	_, body = h.do(t, http.MethodGet, "/api/ir_cameras", nil)
	assert.Equal(t, true, body["available"])
	assert.Len(t, body["cameras"], 2)

	resp, body := h.do(t, http.MethodPost, "/api/ir_config", map[string]any{"filter_mode": "RAW"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "IR controller not active", body["message"])

	resp, _ = h.do(t, http.MethodPost, "/api/play_ir", map[string]any{"camera_index": 0, "filter_mode": "bogus"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = h.do(t, http.MethodPost, "/api/play_ir", map[string]any{"camera_index": 0, "mapping_mode": "JET"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	st := h.status(t)
	require.NotNil(t, st.Infrared.State)
	assert.Equal(t, infrared.MappingJet, st.Infrared.State.Mapping)
	assert.Equal(t, player.StatePlaying, st.Session.State)

	resp, _ = h.do(t, http.MethodPost, "/api/ir_config", map[string]any{"filter_mode": "ILLUMINATED", "cycle_mapping": true})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	st = h.status(t)
	assert.Equal(t, infrared.FilterIlluminatedOnly, st.Infrared.State.Filter)
	assert.Equal(t, infrared.MappingJet.Next(), st.Infrared.State.Mapping)

	resp, _ = h.do(t, http.MethodPost, "/api/play_camera", map[string]any{"camera_id": 0})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	st = h.status(t)
	assert.Equal(t, source.KindCamera, st.Session.SourceKind)
	assert.False(t, st.Infrared.Active)
}

func TestPresetRoutes(t *testing.T) {
	h := newHarness(t)

	resp, body := h.do(t, http.MethodPost, "/api/configs/save", map[string]any{
		"filename": "stage",
		"config":   map[string]any{"scale": 2, "guide": map[string]any{"enabled": true}},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "stage.yaml", body["filename"])

	resp, _ = h.do(t, http.MethodPost, "/api/configs/save", map[string]any{"filename": "current.json"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	_, body = h.do(t, http.MethodGet, "/api/configs", nil)
	assert.Equal(t, []any{"current.json", "stage.yaml"}, body["files"])

	resp, _ = h.do(t, http.MethodPost, "/api/configs/load", map[string]any{"filename": "stage.yaml"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	st := h.status(t)
	assert.Equal(t, 2.0, st.Display.Scale)
	assert.True(t, st.Guide.Enabled)

	resp, _ = h.do(t, http.MethodPost, "/api/configs/load", map[string]any{"filename": "absent"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	dl, err := http.Get(h.srv.URL + "/api/configs/download/current.json")
	require.NoError(t, err)
	defer dl.Body.Close()
	assert.Equal(t, http.StatusOK, dl.StatusCode)
	assert.Contains(t, dl.Header.Get("Content-Disposition"), "current.json")

	resp, _ = h.do(t, http.MethodDelete, "/api/configs/current.json", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = h.do(t, http.MethodDelete, "/api/configs/current.json", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestQuickConfig(t *testing.T) {
	h := newHarness(t)

	resp, _ := h.do(t, http.MethodPost, "/api/load_config", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	require.NoError(t, h.fx.App.SetRotation(180))
	resp, _ = h.do(t, http.MethodPost, "/api/config", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, h.fx.App.SetRotation(0))
	resp, _ = h.do(t, http.MethodPost, "/api/load_config", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 180.0, h.status(t).Display.Rotation)

	_, body := h.do(t, http.MethodGet, "/api/config", nil)
	assert.Equal(t, 180.0, body["rotation"])
}

func TestUploadConfig(t *testing.T) {
	h := newHarness(t)

	post := func(name, content string) *http.Response {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		fw, err := mw.CreateFormFile("file", name)
		require.NoError(t, err)
		fw.Write([]byte(content))
		require.NoError(t, mw.Close())
		resp, err := http.Post(h.srv.URL+"/api/configs/upload", mw.FormDataContentType(), &buf)
		require.NoError(t, err)
		resp.Body.Close()
		return resp
	}

	assert.Equal(t, http.StatusOK, post("venue.json", `{"scale": 3}`).StatusCode)
	assert.Equal(t, http.StatusBadRequest, post("bad.json", `{"scale": `).StatusCode)

	infos, err := h.presets.List()
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, "venue.json", infos[0].Name)
}

func TestPreviewMode(t *testing.T) {
	h := newHarness(t)

	resp, body := h.do(t, http.MethodPost, "/api/preview/mode", map[string]any{"processed": true, "width": 320})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["processed"])
	assert.Equal(t, 320.0, body["width"])
	assert.Equal(t, 90.0, body["height"])

	resp, _ = h.do(t, http.MethodPost, "/api/preview/mode", map[string]any{"height": 0})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	snap, err := http.Get(h.srv.URL + "/api/preview.jpg")
	require.NoError(t, err)
	snap.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, snap.StatusCode)
}

func TestStatusStream(t *testing.T) {
	h := newHarness(t)
	url := "ws" + strings.TrimPrefix(h.srv.URL, "http") + "/api/status/stream"

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	var first app.Status
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, player.StateEmpty, first.Session.State)

	require.NoError(t, h.fx.App.LoadImage("still.png"))
	require.Eventually(t, func() bool {
		var st app.Status
		if err := conn.ReadJSON(&st); err != nil {
			return false
		}
		return st.Session.State == player.StateLoaded
	}, 2*time.Second, time.Millisecond)
}

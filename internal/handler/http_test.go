package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"math/rand"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecowise-backend/internal/catalog"
	"github.com/ecowise-backend/internal/config"
	"github.com/ecowise-backend/internal/detector"
	"github.com/ecowise-backend/internal/memory"
	"github.com/ecowise-backend/internal/normalizer"
	"github.com/ecowise-backend/internal/scoring"
	"github.com/ecowise-backend/internal/service"
	"github.com/ecowise-backend/internal/storage"
	"github.com/ecowise-backend/internal/websocket"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	uploads, err := storage.NewStore(&config.UploadsConfig{Dir: t.TempDir(), MaxSizeMB: 4}, logger)
	require.NoError(t, err)

	ledger := memory.NewLedger()
	centers := memory.NewCenterStore()

	submissions := service.NewSubmissionService(
		uploads,
		detector.NewMockDetector(rand.New(rand.NewSource(11))),
		normalizer.New(logger),
		scoring.New(catalog.Default(), logger),
		ledger,
		nil,
		logger,
	)
	leaderboard := service.NewLeaderboardService(
		nil,
		ledger,
		centers,
		&config.LeaderboardConfig{DefaultLimit: 20, MaxLimit: 100},
		logger,
	)

	hub := websocket.NewHub(logger)
	go hub.Run()
	t.Cleanup(hub.Stop)

	h := NewHandler(submissions, leaderboard, hub, logger)
	srv := httptest.NewServer(h.Router())
	t.Cleanup(srv.Close)
	return srv
}

func postImage(t *testing.T, srv *httptest.Server, username, filename string) *http.Response {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("image", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte("fake-image-bytes"))
	require.NoError(t, err)
	if username != "" {
		require.NoError(t, writer.WriteField("username", username))
	}
	require.NoError(t, writer.Close())

	resp, err := http.Post(srv.URL+"/api/v1/detect", writer.FormDataContentType(), &body)
	require.NoError(t, err)
	return resp
}

func decodeData(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	defer resp.Body.Close()

	var envelope struct {
		Success bool                   `json:"success"`
		Data    map[string]interface{} `json:"data"`
		Error   string                 `json:"error"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	require.True(t, envelope.Success, envelope.Error)
	return envelope.Data
}

func TestHealthEndpoints(t *testing.T) {
	srv := newTestServer(t)

	for _, path := range []string{"/health", "/ready"} {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
		resp.Body.Close()
	}
}

func TestDetectEndpoint(t *testing.T) {
	srv := newTestServer(t)

	resp := postImage(t, srv, "alice", "plastic_bottle.jpg")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data := decodeData(t, resp)

	assert.Equal(t, float64(10), data["eco_points"])
	assert.InDelta(t, 0.2, data["carbon_saved_kg"], 1e-9)
	assert.Equal(t, float64(1), data["objects_detected"])
	assert.Equal(t, true, data["stats_recorded"])
	assert.Equal(t, "plastic_bottle.jpg", data["filename"])

	objects, ok := data["detected_objects"].([]interface{})
	require.True(t, ok)
	require.Len(t, objects, 1)
	first := objects[0].(map[string]interface{})
	assert.Equal(t, "plastic_bottle", first["name"])
	assert.Equal(t, "plastic", first["category"])

	user, ok := data["user"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "alice", user["username"])
	assert.Equal(t, float64(10), user["eco_points"])
}

func TestDetectDefaultsToGuest(t *testing.T) {
	srv := newTestServer(t)

	resp := postImage(t, srv, "", "can.jpg")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data := decodeData(t, resp)

	user := data["user"].(map[string]interface{})
	assert.Equal(t, "guest", user["username"])
}

func TestDetectRejectsUnsupportedType(t *testing.T) {
	srv := newTestServer(t)

	resp := postImage(t, srv, "alice", "notes.txt")
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDetectRequiresImageField(t *testing.T) {
	srv := newTestServer(t)

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	require.NoError(t, writer.WriteField("username", "alice"))
	require.NoError(t, writer.Close())

	resp, err := http.Post(srv.URL+"/api/v1/detect", writer.FormDataContentType(), &body)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestLeaderboardEndpoint(t *testing.T) {
	srv := newTestServer(t)

	postImage(t, srv, "alice", "glass.jpg").Body.Close()
	postImage(t, srv, "bob", "bottle.jpg").Body.Close()
	postImage(t, srv, "bob", "bottle2.jpg").Body.Close()

	resp, err := http.Get(srv.URL + "/api/v1/leaderboard?limit=10")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var envelope struct {
		Success bool `json:"success"`
		Data    []struct {
			Rank      int64  `json:"rank"`
			Username  string `json:"username"`
			EcoPoints int    `json:"eco_points"`
			Level     string `json:"level"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	require.True(t, envelope.Success)
	require.Len(t, envelope.Data, 2)

	// bob: two plastic bottles at 10 each; alice: one glass at 12.
	assert.Equal(t, "bob", envelope.Data[0].Username)
	assert.Equal(t, 20, envelope.Data[0].EcoPoints)
	assert.Equal(t, int64(1), envelope.Data[0].Rank)
	assert.Equal(t, "alice", envelope.Data[1].Username)
	assert.Equal(t, 12, envelope.Data[1].EcoPoints)
}

func TestUserEndpoints(t *testing.T) {
	srv := newTestServer(t)

	postImage(t, srv, "alice", "paper.jpg").Body.Close()

	resp, err := http.Get(srv.URL + "/api/v1/users/alice/")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data := decodeData(t, resp)
	assert.Equal(t, "alice", data["username"])
	assert.Equal(t, float64(5), data["eco_points"])
	assert.Equal(t, "Eco Friend", data["level"])

	resp, err = http.Get(srv.URL + "/api/v1/users/alice/history")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data = decodeData(t, resp)
	history, ok := data["history"].([]interface{})
	require.True(t, ok)
	require.Len(t, history, 1)
	record := history[0].(map[string]interface{})
	assert.Equal(t, "paper.jpg", record["filename"])
	assert.Equal(t, float64(5), record["points_earned"])
}

func TestCentersEndpoints(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/v1/centers/")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data := decodeData(t, resp)
	centers, ok := data["centers"].([]interface{})
	require.True(t, ok)
	require.NotEmpty(t, centers)

	resp, err = http.Get(srv.URL + "/api/v1/centers/1/directions")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data = decodeData(t, resp)
	assert.Contains(t, data["directions"], "Head to ")

	resp, err = http.Get(srv.URL + "/api/v1/centers/9999/directions")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/api/v1/centers/abc/directions")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestStatsEndpoint(t *testing.T) {
	srv := newTestServer(t)

	postImage(t, srv, "alice", "glass.jpg").Body.Close()

	resp, err := http.Get(srv.URL + "/api/v1/stats")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data := decodeData(t, resp)
	assert.Equal(t, float64(1), data["users"])
	assert.Equal(t, float64(12), data["total_points"])
	assert.Equal(t, float64(2), data["centers"])
}

func TestWebSocketStatsEndpoint(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/v1/ws/stats")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data := decodeData(t, resp)
	assert.Equal(t, float64(0), data["total_connections"])
}

package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticSource map[string]any

func (s staticSource) GetStatus() map[string]any { return s }

func newTestServer(t *testing.T, source StatusSource, registry *prometheus.Registry) (*Server, *httptest.Server) {
	t.Helper()
	s := New(Config{Addr: ":0", PushInterval: 20 * time.Millisecond}, source, registry, zerolog.Nop())
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

func TestStatusEndpoint(t *testing.T) {
	source := staticSource{"state": "idle", "tool": 2, "loaded": true}
	_, ts := newTestServer(t, source, nil)

	resp, err := http.Get(ts.URL + "/status")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var payload map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))

	chamoisStatus, ok := payload["chamois"].(map[string]any)
	require.True(t, ok, "expected chamois object, got %v", payload)
	assert.Equal(t, "idle", chamoisStatus["state"])
	assert.Equal(t, true, chamoisStatus["loaded"])
	assert.NotNil(t, payload["timestamp"])
}

func TestMetricsEndpoint(t *testing.T) {
	registry := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chamois_tool_changes_total",
		Help: "test counter",
	})
	registry.MustRegister(counter)
	counter.Inc()

	_, ts := newTestServer(t, staticSource{}, registry)

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := make([]byte, 64*1024)
	n, _ := resp.Body.Read(body)
	assert.Contains(t, string(body[:n]), "chamois_tool_changes_total 1")
}

func TestWebsocketPush(t *testing.T) {
	source := staticSource{"state": "loading"}
	_, ts := newTestServer(t, source, nil)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/websocket"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var payload map[string]any
	require.NoError(t, conn.ReadJSON(&payload))

	chamoisStatus, ok := payload["chamois"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "loading", chamoisStatus["state"])
}

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/websocket"

	"faultsim/internal/events"
	"faultsim/internal/metrics"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func waitIdle(t *testing.T, s *Server) {
	t.Helper()
	require.Eventually(t, func() bool {
		return !s.status().Running
	}, 10*time.Second, 5*time.Millisecond)
}

func TestStatusIdle(t *testing.T) {
	s := NewServer(":0")

	w := do(t, s, http.MethodGet, "/api/status", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp StatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Running)
	assert.Equal(t, 0, resp.NodeCount)
	assert.Nil(t, resp.Chaos)
	assert.Nil(t, resp.Recovery)
}

func TestStatusReportsFaultStats(t *testing.T) {
	s := NewServer(":0")

	w := do(t, s, http.MethodPost, "/api/scenario/start", `{"preset":"crash-recovery","rounds":50,"seed":3}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	waitIdle(t, s)

	w = do(t, s, http.MethodGet, "/api/status", "")
	require.Equal(t, http.StatusOK, w.Code)
	var status StatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	require.NotNil(t, status.Chaos)
	require.NotNil(t, status.Recovery)

	w = do(t, s, http.MethodGet, "/api/scenario/result", "")
	var resp ResultResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Result)

	assert.Positive(t, status.Chaos.Draws)
	assert.Equal(t, resp.Result.CrashDraws, status.Chaos.Draws)
	assert.Equal(t, resp.Result.Crashes, status.Chaos.Crashes)
	assert.Equal(t, resp.Result.CrashSuppressed, status.Chaos.Suppressed)
	assert.Equal(t, resp.Result.RecoveryDraws, status.Recovery.Draws)
	assert.Equal(t, resp.Result.Recoveries, status.Recovery.Recoveries)
}

func TestNodesAndMetricsEmpty(t *testing.T) {
	s := NewServer(":0")

	w := do(t, s, http.MethodGet, "/api/nodes", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())

	w = do(t, s, http.MethodGet, "/api/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	var snap metrics.Snapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.Zero(t, snap.MessagesAttempted)
}

func TestPresets(t *testing.T) {
	s := NewServer(":0")

	w := do(t, s, http.MethodGet, "/api/presets", "")
	require.Equal(t, http.StatusOK, w.Code)

	var presets []PresetInfo
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &presets))
	require.Len(t, presets, 6)

	names := make([]string, len(presets))
	for i, p := range presets {
		names[i] = p.Name
		assert.NotEmpty(t, p.Description)
	}
	assert.Contains(t, names, "crash-recovery")
	assert.Contains(t, names, "quick")
}

func TestScenarioLifecycle(t *testing.T) {
	s := NewServer(":0")

	w := do(t, s, http.MethodGet, "/api/scenario/result", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, s, http.MethodPost, "/api/scenario/start", `{"preset":"quick","rounds":5,"seed":7}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"started"`)

	waitIdle(t, s)

	w = do(t, s, http.MethodGet, "/api/scenario/result", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp ResultResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Result)
	assert.Empty(t, resp.Error)
	assert.Equal(t, "quick", resp.Result.ScenarioName)
	assert.Equal(t, uint64(7), resp.Result.Seed)
	assert.Equal(t, 5, resp.Result.Rounds)

	w = do(t, s, http.MethodGet, "/api/nodes", "")
	var nodes []NodeInfo
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &nodes))
	assert.Len(t, nodes, 3)

	w = do(t, s, http.MethodGet, "/api/metrics", "")
	var snap metrics.Snapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.Equal(t, resp.Result.Messages.Attempted, snap.MessagesAttempted)
}

func TestScenarioStartConflictAndStop(t *testing.T) {
	s := NewServer(":0")

	w := do(t, s, http.MethodPost, "/api/scenario/start", `{"preset":"default","rounds":100000000}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(t, s, http.MethodPost, "/api/scenario/start", `{"preset":"quick"}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(t, s, http.MethodPost, "/api/scenario/stop", "")
	require.Equal(t, http.StatusOK, w.Code)

	waitIdle(t, s)

	w = do(t, s, http.MethodGet, "/api/scenario/result", "")
	require.Equal(t, http.StatusOK, w.Code)
	var resp ResultResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp.Error, "context canceled")

	w = do(t, s, http.MethodPost, "/api/scenario/stop", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestScenarioStartBadRequests(t *testing.T) {
	s := NewServer(":0")

	tests := []struct {
		name string
		body string
	}{
		{"malformed body", `{"preset":`},
		{"unknown preset", `{"preset":"nope"}`},
		{"negative rounds", `{"rounds":-1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, s, http.MethodPost, "/api/scenario/start", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
	assert.False(t, s.status().Running)
}

func TestPrometheusEndpoint(t *testing.T) {
	s := NewServer(":0")

	w := do(t, s, http.MethodPost, "/api/scenario/start", `{"preset":"quick","rounds":3}`)
	require.Equal(t, http.StatusOK, w.Code)
	waitIdle(t, s)

	w = do(t, s, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.True(t, strings.Contains(body, "faultsim_decisions_total"), "missing decisions counter")
	assert.True(t, strings.Contains(body, "faultsim_round_duration_seconds"), "missing round histogram")
}

func TestScenarioEventsOnBus(t *testing.T) {
	s := NewServer(":0")
	ch := s.Bus().Subscribe(events.EventScenarioComplete)

	w := do(t, s, http.MethodPost, "/api/scenario/start", `{"preset":"quick","rounds":2}`)
	require.Equal(t, http.StatusOK, w.Code)

	select {
	case e := <-ch:
		assert.Equal(t, "quick", e.Data.Scenario)
	case <-time.After(10 * time.Second):
		t.Fatal("timeout waiting for scenario_complete")
	}
	waitIdle(t, s)
}

func TestWebSocketStreamsEvents(t *testing.T) {
	s := NewServer(":0")
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.broadcastLoop(ctx)
	require.Eventually(t, func() bool {
		return s.Bus().SubscriberCount() == 1
	}, time.Second, time.Millisecond)

	ws, err := websocket.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", "", ts.URL)
	require.NoError(t, err)
	defer ws.Close()
	require.Eventually(t, func() bool {
		s.mu.RLock()
		defer s.mu.RUnlock()
		return len(s.wsClients) == 1
	}, time.Second, time.Millisecond)

	w := do(t, s, http.MethodPost, "/api/scenario/start", `{"preset":"crash-recovery","rounds":20}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	require.NoError(t, ws.SetReadDeadline(time.Now().Add(10*time.Second)))
	for {
		var raw string
		require.NoError(t, websocket.Message.Receive(ws, &raw))

		var msg struct {
			Type  string       `json:"type"`
			Event events.Event `json:"event"`
		}
		require.NoError(t, json.Unmarshal([]byte(raw), &msg))
		if msg.Type != "event" {
			continue
		}
		assert.Contains(t, []events.EventType{
			events.EventNodeCrashed,
			events.EventCrashSuppressed,
			events.EventNodeRecovered,
			events.EventScenarioComplete,
		}, msg.Event.Type)
		if msg.Event.Type == events.EventScenarioComplete {
			assert.Equal(t, "crash-recovery", msg.Event.Data.Scenario)
			break
		}
	}
	waitIdle(t, s)
}

package app

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang/geo/r3"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/rigid_body_tracker/internal/feed"
)

func getJSON(t *testing.T, url string, v any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusOK && v != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
	}
	return resp.StatusCode
}

func TestWebAPI(t *testing.T) {
	sess := testSession(t, true)
	srv := httptest.NewServer(NewWebHandler(sess, 10*time.Millisecond, clock.New()))
	defer srv.Close()

	assert.Equal(t, http.StatusServiceUnavailable, getJSON(t, srv.URL+"/api/points", nil))

	feedPoses(sess, r3.Vector{X: 5}, r3.Vector{})

	var st StatusResponse
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/status", &st))
	assert.Equal(t, "connected", st.Status)
	assert.Equal(t, femurID, st.FemurID)
	require.NotNil(t, st.Femur)
	assert.Equal(t, 5.0, st.Femur.Position.X)
	assert.Equal(t, []string{"L1", "M1"}, st.Labels)

	var pairs []PairMessage
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/points", &pairs))
	require.Len(t, pairs, 1)
	assert.InDelta(t, 105, pairs[0].L.Position[0], 1e-9)
	assert.InDelta(t, -95, pairs[0].M.Position[0], 1e-9)
	assert.Equal(t, "connected", pairs[0].L.Status)

	var p feed.PointResult
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/points/l1", &p))
	assert.Equal(t, "L1", p.Label)
	assert.Equal(t, [3]float64{105, 0, 50}, p.Position)
	require.Len(t, p.Matrix, 4)
	assert.Equal(t, []float64{0, 0, 0, 1}, p.Matrix[3])

	assert.Equal(t, http.StatusNotFound, getJSON(t, srv.URL+"/api/points/L9", nil))
}

func TestWebSocketPushesPairs(t *testing.T) {
	sess := testSession(t, true)
	feedPoses(sess, r3.Vector{}, r3.Vector{})
	srv := httptest.NewServer(NewWebHandler(sess, 10*time.Millisecond, clock.New()))
	defer srv.Close()

	u := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/points"
	ws, _, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	defer ws.Close()

	require.NoError(t, ws.SetReadDeadline(time.Now().Add(5*time.Second)))
	for i := 0; i < 2; i++ {
		var msg WSResponse
		require.NoError(t, ws.ReadJSON(&msg))
		assert.Equal(t, "pairs", msg.Type)
		assert.Equal(t, "connected", msg.Status)
		require.Len(t, msg.Pairs, 1)
		assert.Equal(t, "L1", msg.Pairs[0].L.Label)
	}
}

func TestWebSocketReportsErrors(t *testing.T) {
	sess := testSession(t, true)
	srv := httptest.NewServer(NewWebHandler(sess, 10*time.Millisecond, clock.New()))
	defer srv.Close()

	u := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/points"
	ws, _, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	defer ws.Close()

	require.NoError(t, ws.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg WSResponse
	require.NoError(t, ws.ReadJSON(&msg))
	assert.Equal(t, "error", msg.Type)
	assert.Contains(t, msg.Message, "no femur tracker data")
}

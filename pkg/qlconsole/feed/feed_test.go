package feed_test

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qlconsole/qlconsole-go/pkg/qlconsole"
	"github.com/qlconsole/qlconsole-go/pkg/qlconsole/event"
	"github.com/qlconsole/qlconsole-go/pkg/qlconsole/feed"
)

func setup(t *testing.T, opts ...feed.Option) (*qlconsole.Projector, *feed.Hub, *httptest.Server) {
	t.Helper()
	hub := feed.NewHub(4)
	p, err := qlconsole.NewProjector(qlconsole.WithSink(hub))
	require.NoError(t, err)

	srv := httptest.NewServer(feed.New(p, hub, opts...).Handler())
	t.Cleanup(srv.Close)
	return p, hub, srv
}

func connected(name string) event.Result {
	return event.Result{Kind: event.PlayerConnected, PlayerName: name}
}

func TestRoster(t *testing.T) {
	p, _, srv := setup(t)
	p.Apply(event.Result{Kind: event.ConfigStrings, Players: []event.Player{{ID: 3, Name: "Lucy", Team: event.TeamRed}}})

	resp, err := http.Get(srv.URL + "/roster")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var snap qlconsole.Snapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	assert.Equal(t, uint64(1), snap.Generation)
	assert.Equal(t, "Lucy", snap.Players[3].Name)
}

func TestRoutes(t *testing.T) {
	_, _, srv := setup(t)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode, "metrics need a gatherer")

	resp, err = http.Post(srv.URL+"/roster", "application/json", strings.NewReader("{}"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := qlconsole.NewMetrics(reg)
	hub := feed.NewHub(0)
	p, err := qlconsole.NewProjector(qlconsole.WithSink(hub), qlconsole.WithMetrics(m))
	require.NoError(t, err)
	p.Apply(connected("Lucy"))

	srv := httptest.NewServer(feed.New(p, hub, feed.WithGatherer(reg)).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	buf := new(strings.Builder)
	_, err = io.Copy(buf, resp.Body)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "qlconsole_projector_pending_players 1")
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/deltas"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) feed.Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	var m feed.Message
	require.NoError(t, conn.ReadJSON(&m))
	return m
}

func TestDeltas(t *testing.T) {
	p, hub, srv := setup(t)
	p.Apply(connected("Klesk"))

	conn := dial(t, srv)
	m := readMessage(t, conn)
	require.Equal(t, feed.TypeSnapshot, m.Type)
	require.NotNil(t, m.Snapshot)
	assert.Equal(t, uint64(1), m.Snapshot.Generation)

	require.Eventually(t, func() bool { return hub.Len() == 1 }, time.Second, 10*time.Millisecond)
	p.Apply(connected("Lucy"))

	m = readMessage(t, conn)
	require.Equal(t, feed.TypeDelta, m.Type)
	require.NotNil(t, m.Delta)
	assert.Equal(t, event.PlayerConnected, m.Delta.Cause)
	assert.Equal(t, uint64(2), m.Delta.Generation)
	require.Len(t, m.Delta.Joined, 1)
	assert.Equal(t, "Lucy", m.Delta.Joined[0].Name)
}

func TestDeltas_ClientClose(t *testing.T) {
	_, hub, srv := setup(t)
	conn := dial(t, srv)
	readMessage(t, conn)
	require.Eventually(t, func() bool { return hub.Len() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	assert.Eventually(t, func() bool { return hub.Len() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHub_SlowSubscriberDropped(t *testing.T) {
	hub := feed.NewHub(2)
	ch, cancel := hub.Subscribe()
	defer cancel()

	for i := 0; i < 3; i++ {
		hub.Publish(qlconsole.RosterDelta{Generation: uint64(i + 1)})
	}
	assert.Equal(t, 0, hub.Len())

	var got []uint64
	for d := range ch {
		got = append(got, d.Generation)
	}
	assert.Equal(t, []uint64{1, 2}, got)
}

func TestHub_Cancel(t *testing.T) {
	hub := feed.NewHub(0)
	ch, cancel := hub.Subscribe()
	assert.Equal(t, 1, hub.Len())

	cancel()
	cancel()
	_, ok := <-ch
	assert.False(t, ok)
	assert.Equal(t, 0, hub.Len())

	require.NotPanics(t, func() { hub.Publish(qlconsole.RosterDelta{}) })
}

func TestListenAndServe(t *testing.T) {
	hub := feed.NewHub(0)
	p, err := qlconsole.NewProjector(qlconsole.WithSink(hub))
	require.NoError(t, err)

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- feed.New(p, hub).ListenAndServe(ctx, addr)
	}()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/healthz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

package wsclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/streambridge/errors"
	"github.com/c360/streambridge/types"
)

// echoServer upgrades every request and echoes binary messages back
func echoServer(t *testing.T) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade failed: %v", err)
			return
		}
		defer conn.Close()
		for {
			mt, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err := conn.WriteMessage(mt, data); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestClient_WriteReadLoopback(t *testing.T) {
	srv := echoServer(t)

	client := NewClient(wsURL(srv), WithQueueLimit(8))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, client.Connect(ctx))
	defer client.Close()

	service := types.NewServiceDescription("camera", "front", "frames")

	var reader Reader
	require.NoError(t, reader.Open(client, service))
	defer reader.Close()

	var writer Writer
	require.NoError(t, writer.Open(client, service))
	defer writer.Close()

	require.NoError(t, writer.Write([]byte("frame-1")))

	require.Eventually(t, func() bool {
		payload, err := reader.Take()
		return err == nil && string(payload) == "frame-1"
	}, 2*time.Second, 5*time.Millisecond, "echoed payload must reach the reader")
}

func TestClient_DispatchRoutesByService(t *testing.T) {
	client := NewClient("ws://unused", WithQueueLimit(4))

	serviceA := types.NewServiceDescription("a", "main", "data")
	serviceB := types.NewServiceDescription("b", "main", "data")

	var readerA, readerB Reader
	require.NoError(t, readerA.Open(client, serviceA))
	require.NoError(t, readerB.Open(client, serviceB))

	client.dispatch(Envelope{Service: serviceA, Payload: []byte("for-a")})
	client.dispatch(Envelope{Service: serviceB, Payload: []byte("for-b")})

	got, err := readerA.Take()
	require.NoError(t, err)
	assert.Equal(t, []byte("for-a"), got)

	got, err = readerB.Take()
	require.NoError(t, err)
	assert.Equal(t, []byte("for-b"), got)

	_, err = readerA.Take()
	assert.ErrorIs(t, err, errors.ErrNoData)
}

func TestClient_DispatchDropsWhenQueueFull(t *testing.T) {
	client := NewClient("ws://unused", WithQueueLimit(1))
	service := types.NewServiceDescription("a", "main", "data")

	var reader Reader
	require.NoError(t, reader.Open(client, service))

	client.dispatch(Envelope{Service: service, Payload: []byte("kept")})
	client.dispatch(Envelope{Service: service, Payload: []byte("dropped")})

	got, err := reader.Take()
	require.NoError(t, err)
	assert.Equal(t, []byte("kept"), got)

	_, err = reader.Take()
	assert.ErrorIs(t, err, errors.ErrNoData, "overflow payload must be dropped, not queued")
}

func TestClient_DispatchWithoutReaderIsDropped(t *testing.T) {
	client := NewClient("ws://unused")
	client.dispatch(Envelope{
		Service: types.NewServiceDescription("ghost", "main", "data"),
		Payload: []byte("x"),
	})
	// nothing to assert beyond not blocking or panicking
}

func TestReader_CloseUnregisters(t *testing.T) {
	client := NewClient("ws://unused", WithQueueLimit(4))
	service := types.NewServiceDescription("a", "main", "data")

	var reader Reader
	require.NoError(t, reader.Open(client, service))
	reader.Close()

	_, err := reader.Take()
	assert.ErrorIs(t, err, errors.ErrTerminalClosed)

	client.mu.Lock()
	_, registered := client.queues[service]
	client.mu.Unlock()
	assert.False(t, registered)
}

func TestWriter_WriteBeforeOpen(t *testing.T) {
	var writer Writer
	err := writer.Write([]byte("x"))
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrTerminalClosed)
}

func TestClient_SendWithoutConnection(t *testing.T) {
	client := NewClient("ws://unused")
	err := client.Send(Envelope{Service: types.NewServiceDescription("a", "b", "c")})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrNoConnection)
	assert.True(t, errors.IsTransient(err))
}

func TestClient_CloseIsIdempotent(t *testing.T) {
	srv := echoServer(t)

	client := NewClient(wsURL(srv))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, client.Connect(ctx))

	client.Close()
	client.Close()

	err := client.Send(Envelope{Service: types.NewServiceDescription("a", "b", "c")})
	assert.ErrorIs(t, err, errors.ErrNoConnection)
}

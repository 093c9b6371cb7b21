package realtime

import (
	"sync"
	"testing"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientWriter_DeliversEnqueuedMessages(t *testing.T) {
	server, client := newTestConnPair(t)

	cw := newClientWriter(server, clockwork.NewRealClock())
	t.Cleanup(func() { cw.stop() })

	require.True(t, cw.enqueue([]byte(`{"type":"pong"}`)))

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := client.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"pong"}`, string(raw))
}

func TestClientWriter_EnqueueFullBuffer(t *testing.T) {
	// A fake clock keeps the run goroutine from draining, so the buffer
	// fills deterministically.
	server, client := newTestConnPair(t)
	t.Cleanup(func() { client.Close() })

	cw := &clientWriter{
		connection:  server,
		clock:       clockwork.NewFakeClock(),
		sendChannel: make(chan []byte, messageBufferSize),
		doneChannel: make(chan struct{}),
	}

	for i := 0; i < messageBufferSize; i++ {
		require.True(t, cw.enqueue([]byte("x")))
	}
	assert.False(t, cw.enqueue([]byte("overflow")))
}

func TestClientWriter_StopIdempotent(t *testing.T) {
	server, client := newTestConnPair(t)
	t.Cleanup(func() { client.Close() })

	cw := newClientWriter(server, clockwork.NewRealClock())

	cw.stop()
	cw.stop()
	cw.stop()
}

func TestClientWriter_ConcurrentStop(t *testing.T) {
	server, client := newTestConnPair(t)
	t.Cleanup(func() { client.Close() })

	cw := newClientWriter(server, clockwork.NewRealClock())

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cw.stop()
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("concurrent stop calls deadlocked")
	}
}

func TestClientWriter_StopGracefulSendsCloseFrame(t *testing.T) {
	server, client := newTestConnPair(t)

	cw := newClientWriter(server, clockwork.NewRealClock())

	cw.stopGraceful("Server shutting down")

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := client.ReadMessage()
	if closeErr, ok := err.(*ws.CloseError); ok {
		assert.Equal(t, ws.CloseNormalClosure, closeErr.Code)
		assert.Contains(t, closeErr.Text, "shutting down")
	} else {
		assert.Error(t, err, "connection should be closed")
	}
}

package server

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	ws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rojikaru/article-ajax/internal/domain"
	"github.com/rojikaru/article-ajax/internal/realtime"
)

// wsClient is one registered realtime connection in a test.
type wsClient struct {
	t    *testing.T
	conn *ws.Conn
	id   uuid.UUID
}

// dialWS connects, registers with the given identity and waits for the
// assigned client id.
func dialWS(t *testing.T, serverURL string, identity *domain.Identity) *wsClient {
	t.Helper()

	url := "ws" + strings.TrimPrefix(serverURL, "http") + "/ws"
	conn, resp, err := ws.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })

	client := &wsClient{t: t, conn: conn}
	client.send(realtime.TypeRegister, realtime.RegisterPayload{User: identity})

	env := client.read()
	require.Equal(t, realtime.TypeRegistered, env.Type)
	var payload realtime.RegisteredPayload
	require.NoError(t, json.Unmarshal(env.Payload, &payload))
	client.id = payload.ClientID
	return client
}

func (c *wsClient) send(msgType string, payload any) {
	c.t.Helper()
	data, err := realtime.Encode(msgType, payload)
	require.NoError(c.t, err)
	require.NoError(c.t, c.conn.WriteMessage(ws.TextMessage, data))
}

func (c *wsClient) read() realtime.Envelope {
	c.t.Helper()
	c.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := c.conn.ReadMessage()
	require.NoError(c.t, err)
	var env realtime.Envelope
	require.NoError(c.t, json.Unmarshal(raw, &env))
	return env
}

// readEditingStatus skips frames until the next editing_status arrives.
func (c *wsClient) readEditingStatus() realtime.EditingStatusPayload {
	c.t.Helper()
	for {
		env := c.read()
		if env.Type != realtime.TypeEditingStatus {
			continue
		}
		var payload realtime.EditingStatusPayload
		require.NoError(c.t, json.Unmarshal(env.Payload, &payload))
		return payload
	}
}

func newWSTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	srv := newTestServer(t)
	httpSrv := httptest.NewServer(srv.echo)
	t.Cleanup(func() { httpSrv.Close() })
	return srv, httpSrv.URL
}

func TestWebSocket_RegisterAssignsClientID(t *testing.T) {
	_, url := newWSTestServer(t)

	client := dialWS(t, url, nil)
	assert.NotEqual(t, uuid.Nil, client.id)
}

func TestWebSocket_PingPong(t *testing.T) {
	_, url := newWSTestServer(t)

	client := dialWS(t, url, nil)
	client.send(realtime.TypePing, nil)

	env := client.read()
	assert.Equal(t, realtime.TypePong, env.Type)
}

func TestWebSocket_MalformedMessageKeepsConnectionOpen(t *testing.T) {
	_, url := newWSTestServer(t)

	client := dialWS(t, url, nil)

	require.NoError(t, client.conn.WriteMessage(ws.TextMessage, []byte("{not json")))
	require.NoError(t, client.conn.WriteMessage(ws.TextMessage, []byte(`{"payload":{}}`)))

	// The connection still answers after garbage.
	client.send(realtime.TypePing, nil)
	env := client.read()
	assert.Equal(t, realtime.TypePong, env.Type)
}

func TestWebSocket_EditingStatusFlow(t *testing.T) {
	_, url := newWSTestServer(t)

	alice := dialWS(t, url, &domain.Identity{Username: "alice", Role: domain.RoleUser})
	bob := dialWS(t, url, &domain.Identity{Username: "bob", Role: domain.RoleUser})

	alice.send(realtime.TypeStartEditing, realtime.EditingPayload{ClientID: alice.id, ArticleID: 7})

	for _, c := range []*wsClient{alice, bob} {
		status := c.readEditingStatus()
		assert.Equal(t, 7, status.ArticleID)
		require.Len(t, status.Editors, 1)
		assert.Equal(t, "alice", status.Editors[0].Username)
	}

	bob.send(realtime.TypeStartEditing, realtime.EditingPayload{ClientID: bob.id, ArticleID: 7})

	// Editor sets keep call order, oldest first.
	for _, c := range []*wsClient{alice, bob} {
		status := c.readEditingStatus()
		require.Len(t, status.Editors, 2)
		assert.Equal(t, "alice", status.Editors[0].Username)
		assert.Equal(t, "bob", status.Editors[1].Username)
	}

	alice.send(realtime.TypeStopEditing, realtime.EditingPayload{ClientID: alice.id, ArticleID: 7})

	status := bob.readEditingStatus()
	require.Len(t, status.Editors, 1)
	assert.Equal(t, "bob", status.Editors[0].Username)
}

func TestWebSocket_StartEditingRequiresIdentity(t *testing.T) {
	_, url := newWSTestServer(t)

	anon := dialWS(t, url, nil)
	watcher := dialWS(t, url, &domain.Identity{Username: "bob", Role: domain.RoleUser})

	anon.send(realtime.TypeStartEditing, realtime.EditingPayload{ClientID: anon.id, ArticleID: 7})

	// No editing_status goes out; a ping round-trip proves the silence is
	// not just latency.
	watcher.send(realtime.TypePing, nil)
	env := watcher.read()
	assert.Equal(t, realtime.TypePong, env.Type)
}

func TestWebSocket_SingleEditingSessionPerClient(t *testing.T) {
	_, url := newWSTestServer(t)

	alice := dialWS(t, url, &domain.Identity{Username: "alice", Role: domain.RoleUser})
	watcher := dialWS(t, url, &domain.Identity{Username: "bob", Role: domain.RoleUser})

	alice.send(realtime.TypeStartEditing, realtime.EditingPayload{ClientID: alice.id, ArticleID: 5})
	status := watcher.readEditingStatus()
	assert.Equal(t, 5, status.ArticleID)

	// Switching articles ends the old session before starting the new one.
	alice.send(realtime.TypeStartEditing, realtime.EditingPayload{ClientID: alice.id, ArticleID: 7})

	stopped := watcher.readEditingStatus()
	assert.Equal(t, 5, stopped.ArticleID)
	assert.Empty(t, stopped.Editors)

	started := watcher.readEditingStatus()
	assert.Equal(t, 7, started.ArticleID)
	require.Len(t, started.Editors, 1)
	assert.Equal(t, "alice", started.Editors[0].Username)
}

func TestWebSocket_DisconnectDropsEditorEverywhere(t *testing.T) {
	srv, url := newWSTestServer(t)

	alice := dialWS(t, url, &domain.Identity{Username: "alice", Role: domain.RoleUser})
	watcher := dialWS(t, url, &domain.Identity{Username: "bob", Role: domain.RoleUser})

	alice.send(realtime.TypeStartEditing, realtime.EditingPayload{ClientID: alice.id, ArticleID: 7})
	status := watcher.readEditingStatus()
	require.Len(t, status.Editors, 1)

	alice.conn.Close()

	// Disconnect cleanup announces the emptied editor set.
	status = watcher.readEditingStatus()
	assert.Equal(t, 7, status.ArticleID)
	assert.Empty(t, status.Editors)

	waitFor(t, func() bool { return srv.registry.Len() == 1 })
}

func TestWebSocket_ModeratorNotificationOnCreate(t *testing.T) {
	srv, url := newWSTestServer(t)

	moderator := dialWS(t, url, &domain.Identity{Username: "admin", Role: domain.RoleModerator})
	user := dialWS(t, url, &domain.Identity{Username: "bob", Role: domain.RoleUser})

	cookies := login(t, srv, "writer", "writer123")
	rec := doJSON(t, srv, "POST", "/api/articles", `{"title":"Hello","body":"World"}`, cookies)
	require.Equal(t, 201, rec.Code)

	// Everyone sees the article_update, only the moderator gets the
	// moderator_notification.
	sawNotification := false
	for i := 0; i < 2; i++ {
		env := moderator.read()
		switch env.Type {
		case realtime.TypeArticleUpdate:
			var payload realtime.ArticleUpdatePayload
			require.NoError(t, json.Unmarshal(env.Payload, &payload))
			assert.Equal(t, domain.ActionCreated, payload.Action)
			assert.Equal(t, "Hello", payload.Article.Title)
		case realtime.TypeModeratorNotification:
			var payload realtime.ModeratorNotificationPayload
			require.NoError(t, json.Unmarshal(env.Payload, &payload))
			assert.Equal(t, "New article awaiting review", payload.Message)
			sawNotification = true
		}
	}
	assert.True(t, sawNotification)

	env := user.read()
	assert.Equal(t, realtime.TypeArticleUpdate, env.Type)

	user.conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	_, _, err := user.conn.ReadMessage()
	assert.Error(t, err, "non-moderator must not receive the notification")
}

func TestWebSocket_ConcurrentEditorsKeepStatusOrder(t *testing.T) {
	_, url := newWSTestServer(t)

	alice := dialWS(t, url, &domain.Identity{Username: "alice", Role: domain.RoleUser})
	bob := dialWS(t, url, &domain.Identity{Username: "bob", Role: domain.RoleUser})
	watcher := dialWS(t, url, &domain.Identity{Username: "carol", Role: domain.RoleUser})

	// Two read pumps race start/stop on the same article. Every start is
	// paired with a stop, so the final mutation leaves the editor set
	// empty, and mutation-ordered delivery means the last frame the
	// watcher sees must be the empty set.
	const rounds = 20
	done := make(chan struct{}, 2)
	for _, c := range []*wsClient{alice, bob} {
		go func(c *wsClient) {
			defer func() { done <- struct{}{} }()
			for i := 0; i < rounds; i++ {
				c.send(realtime.TypeStartEditing, realtime.EditingPayload{ClientID: c.id, ArticleID: 7})
				c.send(realtime.TypeStopEditing, realtime.EditingPayload{ClientID: c.id, ArticleID: 7})
				time.Sleep(time.Millisecond)
			}
		}(c)
	}
	<-done
	<-done

	var last realtime.EditingStatusPayload
	sawAny := false
	for {
		watcher.conn.SetReadDeadline(time.Now().Add(500 * time.Millisecond))
		_, raw, err := watcher.conn.ReadMessage()
		if err != nil {
			break // quiescent
		}
		var env realtime.Envelope
		require.NoError(t, json.Unmarshal(raw, &env))
		if env.Type != realtime.TypeEditingStatus {
			continue
		}
		require.NoError(t, json.Unmarshal(env.Payload, &last))
		sawAny = true
	}

	require.True(t, sawAny)
	assert.Equal(t, 7, last.ArticleID)
	assert.Empty(t, last.Editors, "last delivered frame must reflect the final editor set")
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	for i := 0; i < 100; i++ {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

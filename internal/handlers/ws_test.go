package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialFeed(t *testing.T, app *testApp, c *http.Client) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(app.url("/ws"), "http")

	header := http.Header{}
	if c != nil && c.Jar != nil {
		req, _ := http.NewRequest(http.MethodGet, app.url("/"), nil)
		for _, ck := range c.Jar.Cookies(req.URL) {
			header.Add("Cookie", ck.String())
		}
	}

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var e Event
	require.NoError(t, conn.ReadJSON(&e))
	return e
}

func TestFeedReceivesLiveEvents(t *testing.T) {
	app := newTestApp(t, 5*time.Second)
	alice := app.signUp(t, "alice")

	viewer := dialFeed(t, app, nil)
	hello := readEvent(t, viewer)
	assert.Equal(t, EventInit, hello.Type)
	assert.Zero(t, hello.UserID)
	assert.Equal(t, 1, hello.Clients)

	resp, _ := app.createPost(t, alice, "live!", "", nil)
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)

	created := readEvent(t, viewer)
	require.Equal(t, EventPostCreated, created.Type)
	require.NotNil(t, created.Post)
	assert.Equal(t, "live!", created.Post.Content)
	postID := created.PostID

	resp, body := doJSON(t, alice, http.MethodPost, app.url("/addLike/"+strconv.Itoa(postID)), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, float64(1), body["current_likes"])

	liked := readEvent(t, viewer)
	assert.Equal(t, EventLikeToggled, liked.Type)
	assert.Equal(t, postID, liked.PostID)
	require.NotNil(t, liked.CurrentLikes)
	assert.Equal(t, 1, *liked.CurrentLikes)
}

func TestFeedKnowsLoggedInUser(t *testing.T) {
	app := newTestApp(t, 5*time.Second)
	alice := app.signUp(t, "alice")

	conn := dialFeed(t, app, alice)
	hello := readEvent(t, conn)
	assert.Equal(t, EventInit, hello.Type)
	assert.NotZero(t, hello.UserID)
}

func TestFeedIsReadOnly(t *testing.T) {
	app := newTestApp(t, 5*time.Second)
	conn := dialFeed(t, app, nil)
	readEvent(t, conn)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"chat"}`)))
	e := readEvent(t, conn)
	assert.Equal(t, EventError, e.Type)
	assert.Equal(t, "The live feed is read-only", e.Message)
}

func TestHubTracksClients(t *testing.T) {
	app := newTestApp(t, 5*time.Second)

	first := dialFeed(t, app, nil)
	readEvent(t, first)
	second := dialFeed(t, app, nil)
	assert.Equal(t, 2, readEvent(t, second).Clients)

	second.Close()
	assert.Eventually(t, func() bool { return app.hub.ClientCount() == 1 }, 5*time.Second, 10*time.Millisecond)
}

func TestBroadcastNeverBlocks(t *testing.T) {
	hub := NewHub(nil)

	done := make(chan struct{})
	go func() {
		// nothing drains the queue; extra events are dropped
		for i := 0; i < 1000; i++ {
			hub.Broadcast(likeEvent(1, i))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Broadcast blocked with a full queue")
	}
}

func TestHubRunStopsWithContext(t *testing.T) {
	hub := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())

	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()
	cancel()

	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

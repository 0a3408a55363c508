package chat

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mosspond/wildspawn/pkg/events"
)

// testServer starts an httptest server around the chat routes and returns a
// dialer URL builder.
func testServer(t *testing.T, handle func(Message)) (*Server, func(user, channel string) string) {
	t.Helper()
	bus := events.NewBus()
	srv := NewServer(Config{}, bus, handle, nil)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http")
	return srv, func(user, channel string) string {
		return wsURL + "/ws?user=" + user + "&channel=" + channel
	}
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestWebSocketInbound(t *testing.T) {
	inbound := make(chan Message, 1)
	_, urlFor := testServer(t, func(m Message) { inbound <- m })

	conn := dial(t, urlFor("alice", "pond"))
	frame := map[string]any{"text": "pkmn team", "mentions": []string{"bob"}}
	if err := conn.WriteJSON(frame); err != nil {
		t.Fatalf("write: %v", err)
	}

	select {
	case m := <-inbound:
		if m.Author != "alice" || m.Channel != "pond" || m.Text != "pkmn team" {
			t.Errorf("message = %+v", m)
		}
		if len(m.Mentions) != 1 || m.Mentions[0] != "bob" {
			t.Errorf("mentions = %v", m.Mentions)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("inbound line never delivered")
	}
}

func TestWebSocketOutboundEvent(t *testing.T) {
	srv, urlFor := testServer(t, func(Message) {})
	conn := dial(t, urlFor("alice", "pond"))

	// Wait for the subscription to land before emitting.
	deadline := time.Now().Add(2 * time.Second)
	for srv.bus.ChannelSubscribers("pond") == 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscription never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	srv.bus.Emit(events.Event{
		Type:    events.EvSpawn,
		Channel: "pond",
		Text:    "A wild Ditto has appeared!",
		Card:    &events.Card{Title: "A wild Ditto has appeared!", Color: 0x00AE86},
	})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var frame struct {
		Type string `json:"type"`
		Text string `json:"text"`
		Card *struct {
			Title string `json:"title"`
			Color int    `json:"color"`
		} `json:"card"`
	}
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatalf("read: %v", err)
	}
	if frame.Type != "spawn" || !strings.Contains(frame.Text, "Ditto") {
		t.Errorf("frame = %+v", frame)
	}
	if frame.Card == nil || frame.Card.Color != 0x00AE86 {
		t.Errorf("card = %+v", frame.Card)
	}
}

func TestWebSocketPrivateEvent(t *testing.T) {
	srv, urlFor := testServer(t, func(Message) {})
	alice := dial(t, urlFor("alice", "pond"))
	bob := dial(t, urlFor("bob", "pond"))

	deadline := time.Now().Add(2 * time.Second)
	for srv.bus.ChannelSubscribers("pond") < 2 {
		if time.Now().After(deadline) {
			t.Fatal("subscriptions never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	srv.bus.Emit(events.Event{Type: events.EvTraining, User: "alice", Text: "Training finished."})

	alice.SetReadDeadline(time.Now().Add(2 * time.Second))
	var frame struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if err := alice.ReadJSON(&frame); err != nil {
		t.Fatalf("alice read: %v", err)
	}
	if frame.Type != "training" {
		t.Errorf("frame = %+v", frame)
	}

	// Bob sees nothing.
	bob.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	if err := bob.ReadJSON(&frame); err == nil {
		t.Errorf("bob received a private event: %+v", frame)
	}
}

func TestWebSocketRequiresIdentity(t *testing.T) {
	_, urlFor := testServer(t, func(Message) {})
	base := strings.Split(urlFor("x", "y"), "?")[0]

	if _, resp, err := websocket.DefaultDialer.Dial(base, nil); err == nil {
		t.Error("dial without identity succeeded")
	} else if resp != nil && resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestHealthEndpoint(t *testing.T) {
	bus := events.NewBus()
	srv := NewServer(Config{}, bus, func(Message) {}, nil)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("get /health: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestOriginFiltering(t *testing.T) {
	bus := events.NewBus()
	srv := NewServer(Config{AllowedOrigins: []string{"https://ok.example.com"}}, bus, func(Message) {}, nil)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?user=alice&channel=pond"

	header := http.Header{"Origin": []string{"https://evil.example.com"}}
	if _, _, err := websocket.DefaultDialer.Dial(wsURL, header); err == nil {
		t.Error("disallowed origin accepted")
	}

	header = http.Header{"Origin": []string{"https://ok.example.com"}}
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err != nil {
		t.Fatalf("allowed origin rejected: %v", err)
	}
	conn.Close()
}

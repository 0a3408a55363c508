package chat

import (
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mosspond/wildspawn/pkg/events"
)

const writeTimeout = 10 * time.Second

// Descriptor is one connected websocket client. It subscribes to the event
// bus for its channel and its user and encodes events as JSON frames.
type Descriptor struct {
	mu      sync.Mutex
	conn    *websocket.Conn
	user    string
	channel string
	closed  bool
}

// newDescriptor wraps an upgraded connection.
func newDescriptor(conn *websocket.Conn, user, channel string) *Descriptor {
	return &Descriptor{conn: conn, user: user, channel: channel}
}

// Receive implements events.Subscriber.
func (d *Descriptor) Receive(ev events.Event) {
	frame := outboundFrame{
		Type:    ev.Type.String(),
		Channel: ev.Channel,
		From:    ev.Source,
		Text:    ev.Text,
	}
	if ev.Card != nil {
		frame.Card = &cardFrame{
			Title:       ev.Card.Title,
			Description: ev.Card.Description,
			Color:       ev.Card.Color,
			ImageURL:    ev.Card.ImageURL,
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := d.conn.WriteJSON(frame); err != nil {
		log.Printf("chat: write to %s@%s failed: %v", d.user, d.channel, err)
		d.closed = true
	}
}

// Closed implements events.Subscriber.
func (d *Descriptor) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// Close marks the descriptor closed and closes the socket.
func (d *Descriptor) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.closed = true
	d.conn.Close()
}

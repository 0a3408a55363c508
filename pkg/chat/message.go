// Package chat is the websocket chat transport. The game core depends only
// on the Message shape and a delivery callback, not on the websocket
// framing.
package chat

// Message is one inbound chat line.
type Message struct {
	Author   string   // user identity of the sender
	Channel  string   // channel identity the line was sent to
	Text     string   // raw text content
	Mentions []string // user identities mentioned in the text
	Private  bool     // true for direct/private channels
}

// inboundFrame is the JSON wire form of a client -> server line.
type inboundFrame struct {
	Text     string   `json:"text"`
	Mentions []string `json:"mentions,omitempty"`
	Private  bool     `json:"private,omitempty"`
}

// outboundFrame is the JSON wire form of a server -> client event.
type outboundFrame struct {
	Type    string     `json:"type"`
	Channel string     `json:"channel,omitempty"`
	From    string     `json:"from,omitempty"`
	Text    string     `json:"text,omitempty"`
	Card    *cardFrame `json:"card,omitempty"`
}

// cardFrame carries a structured embed to the client.
type cardFrame struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Color       int    `json:"color,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
}

package events

import "sync"

// Subscriber receives events from the bus.
type Subscriber interface {
	Receive(ev Event)
	Closed() bool
}

// Bus is a per-channel/per-user pub/sub event bus with support for global
// subscribers. Game code emits structured events; each subscriber (chat
// descriptor, activity ledger, logger) encodes them per-transport.
type Bus struct {
	mu       sync.RWMutex
	channels map[string][]Subscriber
	users    map[string][]Subscriber
	global   []Subscriber
}

// NewBus creates a new event bus.
func NewBus() *Bus {
	return &Bus{
		channels: make(map[string][]Subscriber),
		users:    make(map[string][]Subscriber),
	}
}

// Subscribe registers a subscriber for a channel's events.
func (b *Bus) Subscribe(channel string, sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.channels[channel] = append(b.channels[channel], sub)
}

// SubscribeUser registers a subscriber for a user's private events.
func (b *Bus) SubscribeUser(user string, sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.users[user] = append(b.users[user], sub)
}

// Unsubscribe removes a subscriber from a channel.
func (b *Bus) Unsubscribe(channel string, sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.channels[channel] = remove(b.channels[channel], sub)
	if len(b.channels[channel]) == 0 {
		delete(b.channels, channel)
	}
}

// UnsubscribeUser removes a subscriber from a user's private events.
func (b *Bus) UnsubscribeUser(user string, sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.users[user] = remove(b.users[user], sub)
	if len(b.users[user]) == 0 {
		delete(b.users, user)
	}
}

// SubscribeGlobal registers a subscriber that receives all events.
func (b *Bus) SubscribeGlobal(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.global = append(b.global, sub)
}

// Emit routes an event to the subscribers of its channel and/or user, and
// to all global subscribers.
func (b *Bus) Emit(ev Event) {
	b.mu.RLock()
	var subs []Subscriber
	if ev.Channel != "" {
		subs = append(subs, b.channels[ev.Channel]...)
	}
	if ev.User != "" {
		subs = append(subs, b.users[ev.User]...)
	}
	globals := b.global
	b.mu.RUnlock()

	for _, s := range subs {
		if !s.Closed() {
			s.Receive(ev)
		}
	}
	for _, s := range globals {
		if !s.Closed() {
			s.Receive(ev)
		}
	}
}

// ChannelSubscribers returns the number of subscribers for a channel.
func (b *Bus) ChannelSubscribers(channel string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.channels[channel])
}

// Cleanup removes closed subscribers from all lists.
func (b *Bus) Cleanup() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for channel, subs := range b.channels {
		if live := alive(subs); len(live) == 0 {
			delete(b.channels, channel)
		} else {
			b.channels[channel] = live
		}
	}
	for user, subs := range b.users {
		if live := alive(subs); len(live) == 0 {
			delete(b.users, user)
		} else {
			b.users[user] = live
		}
	}
	b.global = alive(b.global)
}

func remove(subs []Subscriber, sub Subscriber) []Subscriber {
	for i, s := range subs {
		if s == sub {
			return append(subs[:i], subs[i+1:]...)
		}
	}
	return subs
}

func alive(subs []Subscriber) []Subscriber {
	var live []Subscriber
	for _, s := range subs {
		if !s.Closed() {
			live = append(live, s)
		}
	}
	return live
}

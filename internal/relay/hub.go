package relay

import (
	"encoding/json"

	"chatcord/pkg/logger"
)

type inbound struct {
	client *Client
	data   []byte
}

// rosterUpdate is the outbound snapshot of one room's membership. It is a
// dedicated shape so the member list is always present on the wire, [] for an
// emptied room.
type rosterUpdate struct {
	Type    EventType `json:"type"`
	Room    string    `json:"room"`
	Members []Member  `json:"members"`
}

// Hub owns all live connections and the voice roster, and fans events out to
// the right audience. A single Run goroutine processes every register,
// unregister and inbound event in turn, so the roster never needs a lock and
// no client ever observes a half-applied update.
type Hub struct {
	clients map[string]*Client
	roster  *Roster

	Register   chan *Client
	Unregister chan *Client
	inbound    chan inbound
	shutdown   chan struct{}
}

// NewHub wires a hub around an injected roster so the membership state can be
// exercised in isolation.
func NewHub(roster *Roster) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		roster:     roster,
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		inbound:    make(chan inbound),
		shutdown:   make(chan struct{}),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case <-h.shutdown:
			for _, client := range h.clients {
				close(client.send)
			}
			return

		case client := <-h.Register:
			h.addClient(client)

		case client := <-h.Unregister:
			h.removeClient(client)

		case msg := <-h.inbound:
			h.dispatch(msg.client, msg.data)
		}
	}
}

func (h *Hub) Shutdown() {
	close(h.shutdown)
}

func (h *Hub) addClient(c *Client) {
	h.clients[c.id] = c
	logger.Info("User %s connected (%s)", c.username, c.id)
}

// removeClient handles both explicit disconnects and clients dropped for a
// full send buffer; the clients-map check keeps the second path from closing
// the send channel twice.
func (h *Hub) removeClient(c *Client) {
	if _, ok := h.clients[c.id]; !ok {
		return
	}
	delete(h.clients, c.id)
	close(c.send)

	if room, changed := h.roster.Leave(c.id); changed {
		h.broadcastRoster(room)
	}
	logger.Info("User %s disconnected (%s)", c.username, c.id)
}

// dispatch applies one inbound event. Payloads that do not parse or that miss
// required fields are dropped; a misbehaving client can never take the relay
// down.
func (h *Hub) dispatch(c *Client, data []byte) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		logger.Debug("Dropping malformed payload from %s: %v", c.id, err)
		return
	}

	switch ev.Type {
	case EventJoinTextRoom:
		if ev.Room == "" {
			return
		}
		c.textRoom = ev.Room

	case EventSendChat:
		h.handleChat(c, ev)

	case EventJoinVoiceRoom:
		h.handleJoinVoice(c, ev)

	case EventLeaveVoice:
		if room, changed := h.roster.Leave(c.id); changed {
			h.broadcastRoster(room)
		}

	default:
		logger.Debug("Unknown event type %q from %s", ev.Type, c.id)
	}
}

// handleChat re-emits a chat message to every client subscribed to the same
// text room. The sender already renders its own message locally and is
// excluded.
func (h *Hub) handleChat(c *Client, ev Event) {
	if ev.Room == "" || ev.Text == "" {
		return
	}

	out := Event{
		Type:      EventChatReceived,
		Room:      ev.Room,
		Author:    ev.Author,
		Text:      ev.Text,
		Timestamp: ev.Timestamp,
	}
	data, err := json.Marshal(out)
	if err != nil {
		logger.Error("Error marshaling chat message: %v", err)
		return
	}

	var recipients []*Client
	for _, client := range h.clients {
		if client.textRoom == ev.Room && client.id != c.id {
			recipients = append(recipients, client)
		}
	}
	h.fanOut(recipients, data)
}

// handleJoinVoice moves the connection into a voice room. Every roster that
// changed is re-broadcast to all clients, and the members that were already
// in the room are told the newcomer's peer address so each can open a media
// handshake toward it.
func (h *Hub) handleJoinVoice(c *Client, ev Event) {
	if ev.Room == "" || ev.PeerID == "" {
		return
	}

	username := ev.Username
	if username == "" {
		username = c.username
	}

	left, existing := h.roster.Join(ev.Room, Member{
		Username:     username,
		PeerID:       ev.PeerID,
		ConnectionID: c.id,
	})

	for _, room := range left {
		h.broadcastRoster(room)
	}
	h.broadcastRoster(ev.Room)

	announce, err := json.Marshal(Event{Type: EventPeerAnnounce, PeerID: ev.PeerID})
	if err != nil {
		logger.Error("Error marshaling peer announce: %v", err)
		return
	}
	var targets []*Client
	for _, m := range existing {
		if client, ok := h.clients[m.ConnectionID]; ok {
			targets = append(targets, client)
		}
	}
	h.fanOut(targets, announce)

	logger.Info("User %s joined voice room %s", username, ev.Room)
}

// broadcastRoster pushes a room's full member list to every connected client,
// not just the room's members. Recipients filter by the room they display;
// the global broadcast keeps every voice roster view consistent without
// per-client subscription bookkeeping.
func (h *Hub) broadcastRoster(roomID string) {
	ev := rosterUpdate{
		Type:    EventRosterUpdate,
		Room:    roomID,
		Members: h.roster.Members(roomID),
	}
	data, err := json.Marshal(ev)
	if err != nil {
		logger.Error("Error marshaling roster update: %v", err)
		return
	}

	all := make([]*Client, 0, len(h.clients))
	for _, client := range h.clients {
		all = append(all, client)
	}
	h.fanOut(all, data)
}

// fanOut queues data for each client, dropping clients that cannot keep up
// rather than blocking the loop. Drops are processed only after every send
// has been attempted; a drop that changes a room's membership re-broadcasts
// that roster so surviving clients never keep a vanished member in view. The
// recursion ends because each client can be dropped at most once.
func (h *Hub) fanOut(clients []*Client, data []byte) {
	var dropped []*Client
	for _, c := range clients {
		select {
		case c.send <- data:
		default:
			dropped = append(dropped, c)
		}
	}

	for _, c := range dropped {
		if _, ok := h.clients[c.id]; !ok {
			continue
		}
		delete(h.clients, c.id)
		close(c.send)
		logger.Debug("Dropping slow client %s (%s)", c.username, c.id)

		if room, changed := h.roster.Leave(c.id); changed {
			h.broadcastRoster(room)
		}
	}
}

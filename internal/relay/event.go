package relay

type EventType string

const (
	// Client to server
	EventJoinTextRoom  EventType = "join_text_room"
	EventSendChat      EventType = "send_chat"
	EventJoinVoiceRoom EventType = "join_voice_room"
	EventLeaveVoice    EventType = "leave_voice_room"

	// Server to client
	EventChatReceived EventType = "chat_received"
	EventRosterUpdate EventType = "voice_roster_update"
	EventPeerAnnounce EventType = "peer_announce"
)

// Event is the envelope for every message on a chatcord socket, in both
// directions. Unused fields are omitted on the wire.
type Event struct {
	Type      EventType `json:"type"`
	Room      string    `json:"room,omitempty"`
	Author    string    `json:"author,omitempty"`
	Text      string    `json:"text,omitempty"`
	Timestamp string    `json:"timestamp,omitempty"`
	Username  string    `json:"username,omitempty"`
	PeerID    string    `json:"peer_id,omitempty"`
	Members   []Member  `json:"members,omitempty"`
}

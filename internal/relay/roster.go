package relay

// Member is one participant of a voice room. PeerID is the opaque address of
// the member's media-negotiation peer; the server forwards it but never
// interprets it.
type Member struct {
	Username     string `json:"username"`
	PeerID       string `json:"peer_id"`
	ConnectionID string `json:"connection_id"`
}

// Roster tracks which connection is in which voice room. A connection belongs
// to at most one room at a time; joining a new room implicitly leaves the old
// one. Rooms are created on first join and vanish once their last member
// leaves. Member slices keep join order.
//
// Roster is not safe for concurrent use; the hub serializes all access on its
// event loop.
type Roster struct {
	rooms map[string][]Member
}

func NewRoster() *Roster {
	return &Roster{
		rooms: make(map[string][]Member),
	}
}

// Join adds m to roomID after removing its connection from every room it
// currently occupies. It returns the rooms the implicit leave actually
// changed, and the members that were already in roomID before m was appended
// (the peer-announce audience).
func (r *Roster) Join(roomID string, m Member) (left []string, existing []Member) {
	left = r.removeEverywhere(m.ConnectionID)
	existing = r.Members(roomID)
	r.rooms[roomID] = append(r.rooms[roomID], m)
	return left, existing
}

// Leave removes the connection from whichever room contains it. It reports
// the room that changed; calling Leave for an absent connection is a no-op.
func (r *Roster) Leave(connectionID string) (roomID string, changed bool) {
	rooms := r.removeEverywhere(connectionID)
	if len(rooms) == 0 {
		return "", false
	}
	return rooms[0], true
}

// Members returns a copy of roomID's member list, empty for unknown rooms.
func (r *Roster) Members(roomID string) []Member {
	members := r.rooms[roomID]
	out := make([]Member, len(members))
	copy(out, members)
	return out
}

func (r *Roster) removeEverywhere(connectionID string) []string {
	var changed []string
	for roomID, members := range r.rooms {
		var kept []Member
		for _, m := range members {
			if m.ConnectionID != connectionID {
				kept = append(kept, m)
			}
		}
		if len(kept) == len(members) {
			continue
		}
		changed = append(changed, roomID)
		if len(kept) == 0 {
			delete(r.rooms, roomID)
		} else {
			r.rooms[roomID] = kept
		}
	}
	return changed
}

package livesync

import (
	"github.com/google/uuid"
	"github.com/vedran77/orbit/internal/domain"
)

// View is one consistent snapshot of everything a signed-in user sees.
type View struct {
	Profile     *domain.Profile             `json:"profile"`
	Connections []domain.ResolvedConnection `json:"connections"`
	Incoming    []domain.ConnectionRequest  `json:"incoming"`
	Outgoing    []domain.ConnectionRequest  `json:"outgoing"`
	Accepted    []domain.ConnectionRequest  `json:"accepted"`
	Location    *domain.Location            `json:"location,omitempty"`
}

// Connection returns the entry for peerID, or nil.
func (v View) Connection(peerID uuid.UUID) *domain.ResolvedConnection {
	for i := range v.Connections {
		if v.Connections[i].ID == peerID {
			return &v.Connections[i]
		}
	}
	return nil
}

func buildView(userID uuid.UUID, st *state) View {
	v := View{
		Profile:     st.profile.Clone(),
		Connections: make([]domain.ResolvedConnection, 0, len(st.entries)),
		Incoming:    []domain.ConnectionRequest{},
		Outgoing:    []domain.ConnectionRequest{},
		Accepted:    []domain.ConnectionRequest{},
	}
	for _, e := range st.entries {
		v.Connections = append(v.Connections, cloneResolved(e))
	}
	for _, req := range st.requests {
		switch {
		case req.Status == domain.RequestAccepted:
			v.Accepted = append(v.Accepted, req)
		case req.Status == domain.RequestPending && req.ToID == userID:
			v.Incoming = append(v.Incoming, req)
		case req.Status == domain.RequestPending && req.FromID == userID:
			v.Outgoing = append(v.Outgoing, req)
		}
	}

	switch {
	case st.location != nil:
		loc := *st.location
		v.Location = &loc
	case v.Profile != nil && v.Profile.Location != nil:
		loc := *v.Profile.Location
		v.Location = &loc
	}
	return v
}

func cloneResolved(rc domain.ResolvedConnection) domain.ResolvedConnection {
	rc.ConnectionRef = rc.ConnectionRef.Clone()
	if rc.PeerPhotoURL != nil {
		v := *rc.PeerPhotoURL
		rc.PeerPhotoURL = &v
	}
	if rc.Location != nil {
		v := *rc.Location
		rc.Location = &v
	}
	if rc.Mood != nil {
		v := *rc.Mood
		rc.Mood = &v
	}
	return rc
}

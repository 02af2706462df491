package domain

import (
	"time"

	"github.com/google/uuid"
)

type Profile struct {
	ID           uuid.UUID       `json:"id"`
	Email        string          `json:"email"`
	DisplayName  string          `json:"display_name"`
	PasswordHash string          `json:"-"`
	PhotoURL     *string         `json:"photo_url,omitempty"`
	Mood         *Mood           `json:"mood,omitempty"`
	Location     *Location       `json:"location,omitempty"`
	Connections  []ConnectionRef `json:"connections"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Connection returns the ref to peerID, or nil.
func (p *Profile) Connection(peerID uuid.UUID) *ConnectionRef {
	for i := range p.Connections {
		if p.Connections[i].ID == peerID {
			return &p.Connections[i]
		}
	}
	return nil
}

func (p *Profile) IsConnected(peerID uuid.UUID) bool {
	return p.Connection(peerID) != nil
}

// Clone returns a deep copy so that callers can hand profiles across goroutines.
func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}
	c := *p
	if p.PhotoURL != nil {
		v := *p.PhotoURL
		c.PhotoURL = &v
	}
	if p.Mood != nil {
		v := *p.Mood
		c.Mood = &v
	}
	if p.Location != nil {
		v := *p.Location
		c.Location = &v
	}
	c.Connections = make([]ConnectionRef, len(p.Connections))
	for i, ref := range p.Connections {
		c.Connections[i] = ref.Clone()
	}
	return &c
}

// Mood is the user's live status.
type Mood struct {
	Emoji     string    `json:"emoji"`
	Text      string    `json:"text"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ConnectionRef is the denormalized peer entry embedded in a profile. Nickname and
// PhotoURL are annotations local to the owning profile and are never mirrored.
type ConnectionRef struct {
	ID          uuid.UUID `json:"id"`
	DisplayName string    `json:"display_name"`
	Email       string    `json:"email"`
	Nickname    *string   `json:"nickname,omitempty"`
	PhotoURL    *string   `json:"photo_url,omitempty"`
	ConnectedAt time.Time `json:"connected_at"`
}

func (r ConnectionRef) Clone() ConnectionRef {
	if r.Nickname != nil {
		v := *r.Nickname
		r.Nickname = &v
	}
	if r.PhotoURL != nil {
		v := *r.PhotoURL
		r.PhotoURL = &v
	}
	return r
}

// RefTo builds the ref that the owner of another profile keeps for p.
func (p *Profile) RefTo(now time.Time) ConnectionRef {
	return ConnectionRef{
		ID:          p.ID,
		DisplayName: p.DisplayName,
		Email:       p.Email,
		ConnectedAt: now,
	}
}

type SyncState string

const (
	SyncOptimistic SyncState = "optimistic"
	SyncConfirmed  SyncState = "confirmed"
)

// ResolvedConnection is a ConnectionRef joined with the peer's live profile fields.
// It is built at read time and never persisted.
type ResolvedConnection struct {
	ConnectionRef
	PeerPhotoURL *string   `json:"peer_photo_url,omitempty"`
	Location     *Location `json:"location,omitempty"`
	Mood         *Mood     `json:"mood,omitempty"`
	State        SyncState `json:"state"`
}

// Resolve joins ref with the peer's current profile.
func Resolve(ref ConnectionRef, peer *Profile, state SyncState) ResolvedConnection {
	rc := ResolvedConnection{ConnectionRef: ref.Clone(), State: state}
	if peer == nil {
		return rc
	}
	peer = peer.Clone()
	rc.PeerPhotoURL = peer.PhotoURL
	rc.Location = peer.Location
	rc.Mood = peer.Mood
	return rc
}

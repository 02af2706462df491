// Package mongo is the document store backend. Ids are stored as their string form
// and change streams feed the changefeed.Broker.
package mongo

import (
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/orbit/internal/domain"
	"github.com/vedran77/orbit/internal/repository/search"
)

const (
	profilesCollection = "profiles"
	requestsCollection = "connection_requests"
)

type profileDoc struct {
	ID           string          `bson:"_id"`
	Email        string          `bson:"email"`
	EmailLower   string          `bson:"email_lower"`
	DisplayName  string          `bson:"display_name"`
	PasswordHash string          `bson:"password_hash"`
	PhotoURL     *string         `bson:"photo_url,omitempty"`
	Mood         *moodDoc        `bson:"mood,omitempty"`
	Location     *locationDoc    `bson:"location,omitempty"`
	Connections  []connectionDoc `bson:"connections"`
	CreatedAt    time.Time       `bson:"created_at"`
	UpdatedAt    time.Time       `bson:"updated_at"`

	// folded email and display name, and their trigrams under a multikey index
	SearchFields []string `bson:"search_fields"`
	SearchGrams  []string `bson:"search_grams"`
}

type moodDoc struct {
	Emoji     string    `bson:"emoji"`
	Text      string    `bson:"text"`
	UpdatedAt time.Time `bson:"updated_at"`
}

type locationDoc struct {
	Latitude  float64   `bson:"latitude"`
	Longitude float64   `bson:"longitude"`
	Timestamp time.Time `bson:"timestamp"`
	Accuracy  *float64  `bson:"accuracy,omitempty"`
}

type connectionDoc struct {
	ID          string    `bson:"id"`
	DisplayName string    `bson:"display_name"`
	Email       string    `bson:"email"`
	Nickname    *string   `bson:"nickname,omitempty"`
	PhotoURL    *string   `bson:"photo_url,omitempty"`
	ConnectedAt time.Time `bson:"connected_at"`
}

type requestDoc struct {
	ID          string     `bson:"_id"`
	FromID      string     `bson:"from_id"`
	FromName    string     `bson:"from_name"`
	FromEmail   string     `bson:"from_email"`
	ToID        string     `bson:"to_id"`
	Pair        string     `bson:"pair"`
	Status      string     `bson:"status"`
	CreatedAt   time.Time  `bson:"created_at"`
	RespondedAt *time.Time `bson:"responded_at,omitempty"`
}

// pairKey is the same for both directions between a and b.
func pairKey(a, b uuid.UUID) string {
	x, y := a.String(), b.String()
	if x > y {
		x, y = y, x
	}
	return x + ":" + y
}

func toProfileDoc(p *domain.Profile) profileDoc {
	doc := profileDoc{
		ID:           p.ID.String(),
		Email:        p.Email,
		EmailLower:   emailKey(p.Email),
		DisplayName:  p.DisplayName,
		PasswordHash: p.PasswordHash,
		PhotoURL:     p.PhotoURL,
		Mood:         toMoodDoc(p.Mood),
		Location:     toLocationDoc(p.Location),
		Connections:  make([]connectionDoc, 0, len(p.Connections)),
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
	for _, ref := range p.Connections {
		doc.Connections = append(doc.Connections, toConnectionDoc(ref))
	}
	doc.SearchFields, doc.SearchGrams = search.FieldGrams(p.Email, p.DisplayName)
	return doc
}

func (d profileDoc) profile() (*domain.Profile, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, err
	}
	p := &domain.Profile{
		ID:           id,
		Email:        d.Email,
		DisplayName:  d.DisplayName,
		PasswordHash: d.PasswordHash,
		PhotoURL:     d.PhotoURL,
		Connections:  make([]domain.ConnectionRef, 0, len(d.Connections)),
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
	if d.Mood != nil {
		p.Mood = &domain.Mood{Emoji: d.Mood.Emoji, Text: d.Mood.Text, UpdatedAt: d.Mood.UpdatedAt}
	}
	if d.Location != nil {
		p.Location = &domain.Location{
			Latitude:  d.Location.Latitude,
			Longitude: d.Location.Longitude,
			Timestamp: d.Location.Timestamp,
			Accuracy:  d.Location.Accuracy,
		}
	}
	for _, c := range d.Connections {
		peerID, err := uuid.Parse(c.ID)
		if err != nil {
			return nil, err
		}
		p.Connections = append(p.Connections, domain.ConnectionRef{
			ID:          peerID,
			DisplayName: c.DisplayName,
			Email:       c.Email,
			Nickname:    c.Nickname,
			PhotoURL:    c.PhotoURL,
			ConnectedAt: c.ConnectedAt,
		})
	}
	return p, nil
}

func toMoodDoc(m *domain.Mood) *moodDoc {
	if m == nil {
		return nil
	}
	return &moodDoc{Emoji: m.Emoji, Text: m.Text, UpdatedAt: m.UpdatedAt}
}

func toLocationDoc(l *domain.Location) *locationDoc {
	if l == nil {
		return nil
	}
	return &locationDoc{
		Latitude:  l.Latitude,
		Longitude: l.Longitude,
		Timestamp: l.Timestamp,
		Accuracy:  l.Accuracy,
	}
}

func toConnectionDoc(ref domain.ConnectionRef) connectionDoc {
	return connectionDoc{
		ID:          ref.ID.String(),
		DisplayName: ref.DisplayName,
		Email:       ref.Email,
		Nickname:    ref.Nickname,
		PhotoURL:    ref.PhotoURL,
		ConnectedAt: ref.ConnectedAt,
	}
}

func toRequestDoc(req *domain.ConnectionRequest) requestDoc {
	return requestDoc{
		ID:          req.ID.String(),
		FromID:      req.FromID.String(),
		FromName:    req.FromName,
		FromEmail:   req.FromEmail,
		ToID:        req.ToID.String(),
		Pair:        pairKey(req.FromID, req.ToID),
		Status:      string(req.Status),
		CreatedAt:   req.CreatedAt,
		RespondedAt: req.RespondedAt,
	}
}

func (d requestDoc) request() (*domain.ConnectionRequest, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, err
	}
	from, err := uuid.Parse(d.FromID)
	if err != nil {
		return nil, err
	}
	to, err := uuid.Parse(d.ToID)
	if err != nil {
		return nil, err
	}
	return &domain.ConnectionRequest{
		ID:          id,
		FromID:      from,
		FromName:    d.FromName,
		FromEmail:   d.FromEmail,
		ToID:        to,
		Status:      domain.RequestStatus(d.Status),
		CreatedAt:   d.CreatedAt,
		RespondedAt: d.RespondedAt,
	}, nil
}

package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/orbit/internal/domain"
	"github.com/vedran77/orbit/internal/repository"
)

var ErrInvalidLocation = errors.New("coordinates out of range")

type ProfileService struct {
	profiles repository.ProfileRepository
	now      func() time.Time
}

func NewProfileService(profiles repository.ProfileRepository) *ProfileService {
	return &ProfileService{profiles: profiles, now: time.Now}
}

type UpdateProfileInput struct {
	DisplayName *string `json:"display_name,omitempty"`
	PhotoURL    *string `json:"photo_url,omitempty"`
}

type SetMoodInput struct {
	Emoji string `json:"emoji"`
	Text  string `json:"text"`
}

type UpdateLocationInput struct {
	Latitude  float64    `json:"latitude"`
	Longitude float64    `json:"longitude"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
	Accuracy  *float64   `json:"accuracy,omitempty"`
}

func (s *ProfileService) Get(ctx context.Context, userID uuid.UUID) (*domain.Profile, error) {
	profile, err := s.profiles.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading profile: %w", err)
	}
	if profile == nil {
		return nil, ErrUserNotFound
	}
	return profile, nil
}

func (s *ProfileService) Update(ctx context.Context, userID uuid.UUID, input UpdateProfileInput) (*domain.Profile, error) {
	update := repository.ProfileUpdate{PhotoURL: input.PhotoURL}
	if input.DisplayName != nil {
		name := strings.TrimSpace(*input.DisplayName)
		update.DisplayName = &name
	}
	if err := s.check(s.profiles.Update(ctx, userID, update)); err != nil {
		return nil, err
	}
	return s.Get(ctx, userID)
}

func (s *ProfileService) SetMood(ctx context.Context, userID uuid.UUID, input SetMoodInput) (*domain.Mood, error) {
	mood := &domain.Mood{
		Emoji:     input.Emoji,
		Text:      strings.TrimSpace(input.Text),
		UpdatedAt: s.now(),
	}
	if err := s.check(s.profiles.SetMood(ctx, userID, mood)); err != nil {
		return nil, err
	}
	return mood, nil
}

func (s *ProfileService) ClearMood(ctx context.Context, userID uuid.UUID) error {
	return s.check(s.profiles.SetMood(ctx, userID, nil))
}

// UpdateLocation overwrites the stored location. A missing timestamp means now.
func (s *ProfileService) UpdateLocation(ctx context.Context, userID uuid.UUID, input UpdateLocationInput) (*domain.Location, error) {
	loc := domain.Location{
		Latitude:  input.Latitude,
		Longitude: input.Longitude,
		Accuracy:  input.Accuracy,
	}
	if input.Timestamp != nil {
		loc.Timestamp = input.Timestamp.UTC()
	} else {
		loc.Timestamp = s.now().UTC()
	}
	if !loc.Valid() {
		return nil, ErrInvalidLocation
	}

	if err := s.check(s.profiles.SetLocation(ctx, userID, loc)); err != nil {
		return nil, err
	}
	return &loc, nil
}

func (s *ProfileService) check(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrUserNotFound
	}
	if err != nil {
		return fmt.Errorf("updating profile: %w", err)
	}
	return nil
}

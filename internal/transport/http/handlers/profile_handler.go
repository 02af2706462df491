package handlers

import (
	"errors"
	"net/http"

	"github.com/vedran77/orbit/internal/service"
	"github.com/vedran77/orbit/internal/transport/http/middleware"
	"github.com/vedran77/orbit/pkg/validator"
)

type ProfileHandler struct {
	profileService *service.ProfileService
	photoService   *service.PhotoService
}

func NewProfileHandler(profileService *service.ProfileService, photoService *service.PhotoService) *ProfileHandler {
	return &ProfileHandler{profileService: profileService, photoService: photoService}
}

func (h *ProfileHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	profile, err := h.profileService.Get(r.Context(), userID)
	if err != nil {
		h.writeProfileError(w, "get profile", err)
		return
	}

	writeJSON(w, http.StatusOK, profile)
}

func (h *ProfileHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var input service.UpdateProfileInput
	if !decodeJSON(w, r, &input) {
		return
	}
	if errs := validator.ValidateProfileUpdate(input.DisplayName, input.PhotoURL); errs.HasErrors() {
		writeValidationErrors(w, errs)
		return
	}

	profile, err := h.profileService.Update(r.Context(), userID, input)
	if err != nil {
		h.writeProfileError(w, "update profile", err)
		return
	}

	writeJSON(w, http.StatusOK, profile)
}

func (h *ProfileHandler) SetMood(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var input service.SetMoodInput
	if !decodeJSON(w, r, &input) {
		return
	}
	if errs := validator.ValidateMood(input.Emoji, input.Text); errs.HasErrors() {
		writeValidationErrors(w, errs)
		return
	}

	mood, err := h.profileService.SetMood(r.Context(), userID, input)
	if err != nil {
		h.writeProfileError(w, "set mood", err)
		return
	}

	writeJSON(w, http.StatusOK, mood)
}

func (h *ProfileHandler) ClearMood(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	if err := h.profileService.ClearMood(r.Context(), userID); err != nil {
		h.writeProfileError(w, "clear mood", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *ProfileHandler) UpdateLocation(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var input service.UpdateLocationInput
	if !decodeJSON(w, r, &input) {
		return
	}
	if errs := validator.ValidateLocation(input.Latitude, input.Longitude, input.Accuracy); errs.HasErrors() {
		writeValidationErrors(w, errs)
		return
	}

	loc, err := h.profileService.UpdateLocation(r.Context(), userID, input)
	if err != nil {
		h.writeProfileError(w, "update location", err)
		return
	}

	writeJSON(w, http.StatusOK, loc)
}

func (h *ProfileHandler) PhotoUpload(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var input service.PhotoUploadInput
	if !decodeJSON(w, r, &input) {
		return
	}

	upload, err := h.photoService.UploadURL(r.Context(), userID, input)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUploadsDisabled):
			writeError(w, http.StatusServiceUnavailable, "UPLOADS_DISABLED", "Photo uploads are not available")
		case errors.Is(err, service.ErrUnsupportedImage):
			writeError(w, http.StatusBadRequest, "UNSUPPORTED_IMAGE", "Only JPEG, PNG and WebP images are supported")
		default:
			writeInternal(w, "photo upload", err)
		}
		return
	}

	writeJSON(w, http.StatusOK, upload)
}

func (h *ProfileHandler) writeProfileError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, service.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Profile not found")
	case errors.Is(err, service.ErrInvalidLocation):
		writeError(w, http.StatusBadRequest, "INVALID_LOCATION", "Coordinates out of range")
	default:
		writeInternal(w, op, err)
	}
}

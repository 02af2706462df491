package location

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/vedran77/orbit/internal/domain"
)

// HTTPPositioner reads fixes from a local GPS bridge that answers GET requests with
// {"latitude", "longitude", "accuracy", "timestamp"}.
type HTTPPositioner struct {
	URL    string
	Client *http.Client
}

type fixResponse struct {
	Latitude  *float64   `json:"latitude"`
	Longitude *float64   `json:"longitude"`
	Accuracy  *float64   `json:"accuracy"`
	Timestamp *time.Time `json:"timestamp"`
}

func (p *HTTPPositioner) Position(ctx context.Context) (domain.Location, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.URL, nil)
	if err != nil {
		return domain.Location{}, err
	}

	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return domain.Location{}, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		return domain.Location{}, ErrPermissionDenied
	case http.StatusNotImplemented:
		return domain.Location{}, ErrUnsupported
	default:
		return domain.Location{}, fmt.Errorf("gps bridge returned %s", resp.Status)
	}

	var fix fixResponse
	if err := json.NewDecoder(resp.Body).Decode(&fix); err != nil {
		return domain.Location{}, fmt.Errorf("decoding fix: %w", err)
	}
	if fix.Latitude == nil || fix.Longitude == nil {
		return domain.Location{}, fmt.Errorf("gps bridge returned no coordinates")
	}

	loc := domain.Location{
		Latitude:  *fix.Latitude,
		Longitude: *fix.Longitude,
		Accuracy:  fix.Accuracy,
		Timestamp: time.Now().UTC(),
	}
	if fix.Timestamp != nil {
		loc.Timestamp = fix.Timestamp.UTC()
	}
	return loc, nil
}

// Package directory resolves user ids to the display data that invitations
// and applications copy for listing.
package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

var ErrUserNotFound = errors.New("user not found")

type UserSummary struct {
	ID          uuid.UUID `json:"id"`
	DisplayName string    `json:"display_name"`
}

// Resolver looks up a user by id.
type Resolver interface {
	Resolve(ctx context.Context, userID uuid.UUID) (*UserSummary, error)
}

// HTTPResolver asks the accounts service over its internal API.
type HTTPResolver struct {
	baseURL      string
	serviceToken string
	client       *http.Client
}

func NewHTTPResolver(baseURL, serviceToken string) *HTTPResolver {
	return &HTTPResolver{
		baseURL:      strings.TrimRight(baseURL, "/"),
		serviceToken: serviceToken,
		client:       &http.Client{Timeout: 5 * time.Second},
	}
}

func (r *HTTPResolver) Resolve(ctx context.Context, userID uuid.UUID) (*UserSummary, error) {
	url := fmt.Sprintf("%s/internal/accounts/%s", r.baseURL, userID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("X-Service-Token", r.serviceToken)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach accounts service: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, ErrUserNotFound
	default:
		return nil, fmt.Errorf("accounts service returned %d", resp.StatusCode)
	}

	var summary UserSummary
	if err := json.NewDecoder(resp.Body).Decode(&summary); err != nil {
		return nil, fmt.Errorf("failed to decode account: %w", err)
	}
	summary.ID = userID
	return &summary, nil
}

// StaticResolver is used when no accounts service is configured. Every id
// resolves, with display names taken from Names when present.
type StaticResolver struct {
	Names map[uuid.UUID]string
}

func (r StaticResolver) Resolve(ctx context.Context, userID uuid.UUID) (*UserSummary, error) {
	return &UserSummary{ID: userID, DisplayName: r.Names[userID]}, nil
}

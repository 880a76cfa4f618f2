// internal/clients/membership_client.go
package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"lendhall/internal/domain"
)

// MemberSummary is the slice of member state the approvals service needs.
type MemberSummary struct {
	ID     domain.MemberID `json:"id"`
	Name   string          `json:"name"`
	Active bool            `json:"active"`
}

// MembershipClient resolves members from the lending service. Calls go through
// a circuit breaker so a down lending service fails fast instead of piling up
// requests.
type MembershipClient struct {
	baseURL string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
}

func NewMembershipClient(baseURL string) *MembershipClient {
	return &MembershipClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 5 * time.Second},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "membership",
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		}),
	}
}

// GetMember fetches a member by id. A 404 from the lending service maps to a
// domain not-found error.
func (c *MembershipClient) GetMember(ctx context.Context, id domain.MemberID) (*MemberSummary, error) {
	result, err := c.breaker.Execute(func() (any, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/members/%s", c.baseURL, id), nil)
		if err != nil {
			return nil, err
		}

		resp, err := c.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusNotFound {
			return nil, domain.NotFoundf("member %s", id)
		}
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
		}

		var member MemberSummary
		if err := json.NewDecoder(resp.Body).Decode(&member); err != nil {
			return nil, err
		}
		return &member, nil
	})
	if err != nil {
		return nil, err
	}

	return result.(*MemberSummary), nil
}
